package fixtures

import (
	"time"

	"github.com/squareft/sms-gateway/internal/model"
)

var (
	TestSession1 = model.Session{
		UserID:       "user-1",
		AccessToken:  "access-token-1",
		RefreshToken: "refresh-token-1",
	}

	TestSession2 = model.Session{
		UserID:       "user-2",
		AccessToken:  "access-token-2",
		RefreshToken: "refresh-token-2",
	}
)

func NewOutboundMessage(to, body string) *model.OutboundMessage {
	return &model.OutboundMessage{
		To:   to,
		Body: body,
	}
}

func NewDeliveryResult(sid, to string, status model.DeliveryStatus) *model.DeliveryResult {
	return &model.DeliveryResult{
		ProviderMessageID: sid,
		Status:            status,
		To:                to,
		From:              "+15550000000",
		Body:              "Test message",
		CreatedAt:         time.Now(),
	}
}

func NewBroadcastRequest(template string, recipients ...model.Recipient) model.BroadcastRequest {
	return model.BroadcastRequest{
		MessageTemplate: template,
		Recipients:      recipients,
	}
}

func NewTicket(orgID int64, status model.TicketStatus) *model.Ticket {
	return &model.Ticket{
		OrganizationID: orgID,
		Subject:        "Leaking faucet in unit 4B",
		Status:         status,
		CreatedAt:      time.Now(),
	}
}

var (
	ValidPhoneNumbers = []string{
		"+15551234567",
		"5551234567",
		"(555) 123-4567",
		"1-555-123-4567",
		"555.123.4567",
	}

	InvalidPhoneNumbers = []string{
		"",
		"+0123456789",
		"0000000000000000",
	}

	ValidMessageBodies = []string{
		"Rent reminder",
		"Hi {{name}}, your maintenance request was received",
		"Short",
	}

	BlankMessageBodies = []string{
		"",
		"   ",
		"\n\t",
	}
)

func DeliveryFilterByRecipient(to string) model.DeliveryFilter {
	return model.DeliveryFilter{
		To:     &to,
		Limit:  50,
		Offset: 0,
	}
}

func DeliveryFilterByStatus(statuses ...model.DeliveryStatus) model.DeliveryFilter {
	return model.DeliveryFilter{
		Statuses: statuses,
		Limit:    50,
		Offset:   0,
	}
}

func DeliveryFilterWithPagination(limit, offset int) model.DeliveryFilter {
	return model.DeliveryFilter{
		Limit:  limit,
		Offset: offset,
		Desc:   true,
	}
}
