package twilio

import (
	"fmt"
	"time"

	"github.com/squareft/sms-gateway/internal/model"
)

// Twilio's timestamp format (RFC 1123 with numeric zone).
const timeLayout = time.RFC1123Z

// messageResource is the provider's Message resource shape.
type messageResource struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	To           string  `json:"to"`
	From         string  `json:"from"`
	Body         string  `json:"body"`
	DateCreated  string  `json:"date_created"`
	DateSent     *string `json:"date_sent"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

// accountResource is the provider's Account resource shape.
type accountResource struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	Type         string `json:"type"`
}

// apiError is the provider's error envelope for 4xx/5xx responses.
type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// SendError wraps a rejected provider call. The provider's own message is
// carried through so the API surfaces it to callers.
type SendError struct {
	Code       int
	Message    string
	HTTPStatus int
}

func (e *SendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio: send rejected (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("twilio: send rejected: %s", e.Message)
}

// LookupError wraps a failed status fetch for an unknown or erroring
// message id.
type LookupError struct {
	MessageID  string
	Message    string
	HTTPStatus int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("twilio: status lookup for %q failed: %s", e.MessageID, e.Message)
}

func (r *messageResource) toDeliveryResult() *model.DeliveryResult {
	out := &model.DeliveryResult{
		ProviderMessageID: r.SID,
		Status:            model.DeliveryStatus(r.Status),
		To:                r.To,
		From:              r.From,
		Body:              r.Body,
	}

	if t, err := time.Parse(timeLayout, r.DateCreated); err == nil {
		out.CreatedAt = t
	} else {
		out.CreatedAt = time.Now()
	}
	if r.DateSent != nil {
		if t, err := time.Parse(timeLayout, *r.DateSent); err == nil {
			out.SentAt = &t
		}
	}
	if r.ErrorCode != nil {
		out.ErrorCode = fmt.Sprintf("%d", *r.ErrorCode)
	}
	if r.ErrorMessage != nil {
		out.ErrorMessage = *r.ErrorMessage
	}
	return out
}
