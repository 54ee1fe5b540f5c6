package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/internal/repository"
	"github.com/squareft/sms-gateway/pkg/logger"
	"github.com/squareft/sms-gateway/pkg/prom"
	"github.com/squareft/sms-gateway/pkg/redis"
)

const badgeKeyPrefix = "badge:"

type TicketReader interface {
	OrgIDForUser(ctx context.Context, userID string) (int64, error)
	CountTriage(ctx context.Context, orgID int64) (int64, error)
}

type SessionDirectory interface {
	Get(userID string) (*model.Session, error)
	ActiveUserIDs() ([]string, error)
}

// BadgeService keeps the per-user triage-ticket count warm in Redis. The
// count is recomputed on demand and by a periodic sweep over every active
// session.
type BadgeService struct {
	tickets  TicketReader
	sessions SessionDirectory
	redis    redis.RedisAdapter
	interval time.Duration
}

func NewBadgeService(tickets TicketReader, sessions SessionDirectory, adapter redis.RedisAdapter, interval time.Duration) *BadgeService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &BadgeService{
		tickets:  tickets,
		sessions: sessions,
		redis:    adapter,
		interval: interval,
	}
}

// Badge returns the cached count for a user, recomputing on a cache miss.
// A user without a session gets an empty badge.
func (b *BadgeService) Badge(ctx context.Context, userID string) (int64, error) {
	data, err := b.redis.Get(badgeKeyPrefix + userID)
	if err == nil {
		count, perr := strconv.ParseInt(string(data), 10, 64)
		if perr == nil {
			return count, nil
		}
	} else if !errors.Is(err, redis.NilError) {
		return 0, err
	}

	if _, err := b.sessions.Get(userID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return b.refresh(ctx, userID, "miss")
}

// Refresh recomputes the count immediately, outside the sweep schedule.
func (b *BadgeService) Refresh(ctx context.Context, userID string) (int64, error) {
	return b.refresh(ctx, userID, "manual")
}

func (b *BadgeService) Clear(userID string) error {
	return b.redis.Del(badgeKeyPrefix + userID)
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (b *BadgeService) Run(ctx context.Context) {
	b.sweep(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweep(ctx)
		}
	}
}

func (b *BadgeService) sweep(ctx context.Context) {
	userIDs, err := b.sessions.ActiveUserIDs()
	if err != nil {
		logger.Error("badge sweep failed to list sessions", "error", err)
		return
	}

	for _, userID := range userIDs {
		if _, err := b.refresh(ctx, userID, "timer"); err != nil {
			logger.Warn("badge refresh failed", "user_id", userID, "error", err)
		}
	}
}

func (b *BadgeService) refresh(ctx context.Context, userID, trigger string) (int64, error) {
	orgID, err := b.tickets.OrgIDForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoMembership) {
			return 0, b.store(userID, 0)
		}
		return 0, err
	}

	count, err := b.tickets.CountTriage(ctx, orgID)
	if err != nil {
		return 0, err
	}

	if err := b.store(userID, count); err != nil {
		return 0, err
	}

	prom.IncCounterVec(prom.SystemBadge, prom.MetricBadgeRefreshCount, trigger)
	prom.SetGaugeVec(prom.SystemBadge, prom.MetricBadgeTicketsInQueue, float64(count), strconv.FormatInt(orgID, 10))
	return count, nil
}

func (b *BadgeService) store(userID string, count int64) error {
	// cache outlives two sweep intervals so a slow sweep never leaves
	// readers with an expired key
	return b.redis.Set(badgeKeyPrefix+userID, []byte(strconv.FormatInt(count, 10)), 2*b.interval)
}
