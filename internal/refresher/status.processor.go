package refresher

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/internal/queue"
	"github.com/squareft/sms-gateway/internal/repository"
	"github.com/squareft/sms-gateway/internal/twilio"
	"github.com/squareft/sms-gateway/pkg/logger"
)

type StatusClient interface {
	GetMessageStatus(ctx context.Context, id string) (*model.DeliveryResult, error)
}

type DeliveryUpdater interface {
	UpdateFromLookup(ctx context.Context, sid string, lookup *model.DeliveryResult) error
}

// Republisher re-queues a job whose delivery status is still in flight.
type Republisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// StatusProcessor refreshes one stored delivery row per queue message. There
// is no locking around a refresh: the update is idempotent, so two consumers
// racing on the same sid both write the same provider truth.
type StatusProcessor struct {
	client     StatusClient
	deliveries DeliveryUpdater
	requeue    Republisher
}

func NewStatusProcessor(client StatusClient, deliveries DeliveryUpdater, requeue Republisher) *StatusProcessor {
	return &StatusProcessor{
		client:     client,
		deliveries: deliveries,
		requeue:    requeue,
	}
}

func (p *StatusProcessor) GetType() string {
	return "status-refresh"
}

func (p *StatusProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job model.DeliveryResult
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal refresh job", "error", err)
		return err
	}

	sid := job.ProviderMessageID
	if sid == "" {
		logger.Warn("Refresh job without provider message id, dropping")
		return nil
	}

	lookup, err := p.client.GetMessageStatus(ctx, sid)
	if err != nil {
		var lookupErr *twilio.LookupError
		if errors.As(err, &lookupErr) && lookupErr.HTTPStatus == 404 {
			// the provider no longer knows the sid; nothing to refresh
			logger.Warn("Provider does not know message, dropping", "sid", sid)
			return nil
		}
		logger.Error("Status lookup failed", "sid", sid, "error", err)
		return err
	}

	if err := p.deliveries.UpdateFromLookup(ctx, sid, lookup); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("No stored row for refreshed message, dropping", "sid", sid)
			return nil
		}
		logger.Error("Failed to update delivery row", "sid", sid, "error", err)
		return err
	}

	logger.Info("Delivery status refreshed", "sid", sid, "status", string(lookup.Status))

	if !lookup.Status.Terminal() && p.requeue != nil {
		lookup.ProviderMessageID = sid
		if _, err := p.requeue.PublishJSON(ctx, lookup, nil); err != nil {
			logger.Warn("Failed to re-queue non-terminal message", "sid", sid, "error", err)
		}
	}
	return nil
}
