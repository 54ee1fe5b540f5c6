package services

import (
	"context"
	"errors"
	"strings"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/internal/phone"
	"github.com/squareft/sms-gateway/pkg/logger"
	"github.com/squareft/sms-gateway/pkg/prom"
)

var (
	ErrEmptyMessage     = errors.New("message content cannot be empty")
	ErrMissingRecipient = errors.New("recipient phone number is required")
	ErrInvalidPhone     = errors.New("invalid phone number")
	ErrNoRecipients     = errors.New("at least one recipient is required")
)

type Provider interface {
	SendSMS(ctx context.Context, msg *model.OutboundMessage) (*model.DeliveryResult, error)
	SendBulkSMS(ctx context.Context, msgs []*model.OutboundMessage) []*model.DeliveryResult
	GetAccountInfo(ctx context.Context) (*model.AccountInfo, error)
}

type DeliveryStore interface {
	Create(ctx context.Context, dr *model.DeliveryResult) (*model.DeliveryResult, error)
	List(ctx context.Context, f model.DeliveryFilter) ([]*model.DeliveryResult, int64, error)
}

// StatusQueue receives refresh jobs for sends whose delivery status is not
// yet terminal.
type StatusQueue interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type SMSService struct {
	provider    Provider
	deliveries  DeliveryStore
	queue       StatusQueue
	countryCode string
}

func NewSMSService(provider Provider, deliveries DeliveryStore, queue StatusQueue, countryCode string) *SMSService {
	return &SMSService{
		provider:    provider,
		deliveries:  deliveries,
		queue:       queue,
		countryCode: countryCode,
	}
}

// SendIndividual normalizes and validates the recipient, performs one send
// and records the outcome. A provider rejection is returned to the caller
// untouched; nothing is persisted for a send that never reached the provider.
func (s *SMSService) SendIndividual(ctx context.Context, to, body string) (*model.DeliveryResult, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if strings.TrimSpace(to) == "" {
		return nil, ErrMissingRecipient
	}

	formatted := phone.Format(to, s.countryCode)
	if !phone.Validate(formatted) {
		return nil, ErrInvalidPhone
	}

	result, err := s.provider.SendSMS(ctx, &model.OutboundMessage{To: formatted, Body: body})
	if err != nil {
		prom.CountSend("individual", string(model.DeliveryStatusFailed))
		return nil, err
	}
	prom.CountSend("individual", string(result.Status))

	s.record(ctx, result)
	return result, nil
}

// SendBroadcast expands the template per recipient and fans the batch out in
// one all-settled bulk send. Recipient phones get the same lenient
// normalization as individual sends; a number the normalizer passes through
// unchanged is still attempted and fails at the provider, keeping its slot
// in the result slice.
func (s *SMSService) SendBroadcast(ctx context.Context, req model.BroadcastRequest) ([]*model.DeliveryResult, error) {
	template := strings.TrimSpace(req.MessageTemplate)
	if template == "" {
		return nil, ErrEmptyMessage
	}
	if len(req.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	msgs := make([]*model.OutboundMessage, len(req.Recipients))
	for i, r := range req.Recipients {
		msgs[i] = &model.OutboundMessage{
			To:   phone.Format(r.Phone, s.countryCode),
			Body: r.PersonalizedBody(template),
		}
	}

	results := s.provider.SendBulkSMS(ctx, msgs)
	for _, result := range results {
		prom.CountSend("broadcast", string(result.Status))
		s.record(ctx, result)
	}
	return results, nil
}

// record persists the outcome and queues a status refresh when the provider
// may still change its mind. Persistence failures are logged, not surfaced;
// the send already happened.
func (s *SMSService) record(ctx context.Context, result *model.DeliveryResult) {
	if s.deliveries != nil {
		created, err := s.deliveries.Create(ctx, result)
		if err != nil {
			logger.Error("failed to persist delivery result", "sid", result.ProviderMessageID, "error", err)
		} else {
			result.ID = created.ID
		}
	}

	if s.queue != nil && result.ProviderMessageID != "" && !result.Status.Terminal() {
		if _, err := s.queue.PublishJSON(ctx, result, nil); err != nil {
			logger.Error("failed to enqueue status refresh", "sid", result.ProviderMessageID, "error", err)
		}
	}
}

func (s *SMSService) History(ctx context.Context, f model.DeliveryFilter) ([]*model.DeliveryResult, int64, error) {
	return s.deliveries.List(ctx, f)
}

func (s *SMSService) AccountInfo(ctx context.Context) (*model.AccountInfo, error) {
	return s.provider.GetAccountInfo(ctx)
}
