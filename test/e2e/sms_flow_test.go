package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/internal/queue"
	"github.com/squareft/sms-gateway/internal/refresher"
	"github.com/squareft/sms-gateway/internal/repository"
	"github.com/squareft/sms-gateway/internal/services"
	"github.com/squareft/sms-gateway/internal/twilio"
	"github.com/squareft/sms-gateway/pkg/pg"
	"github.com/squareft/sms-gateway/pkg/redis"
	"github.com/squareft/sms-gateway/test/fixtures"
	"github.com/squareft/sms-gateway/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccountSID = "ACe2e00000000000000000000000000000"

// fakeProvider is an in-process stand-in for the Twilio REST API. Numbers
// added to rejected fail at send time; statuses maps a sid to the status
// the next lookup reports.
type fakeProvider struct {
	mu       sync.Mutex
	nextID   int
	rejected map[string]bool
	statuses map[string]string
	server   *httptest.Server
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{
		rejected: make(map[string]bool),
		statuses: make(map[string]string),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	return p
}

func (p *fakeProvider) reject(number string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected[number] = true
}

func (p *fakeProvider) setStatus(sid, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[sid] = status
}

func (p *fakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/Messages.json"):
		p.createMessage(w, r)
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/Messages/"):
		p.getMessage(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, ".json"):
		json.NewEncoder(w).Encode(map[string]string{
			"sid":           testAccountSID,
			"friendly_name": "E2E Account",
			"status":        "active",
			"type":          "Full",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *fakeProvider) createMessage(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	to := r.PostFormValue("To")

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rejected[to] || !strings.HasPrefix(to, "+") {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    21211,
			"message": "The 'To' number is not a valid phone number.",
			"status":  400,
		})
		return
	}

	p.nextID++
	sid := fmt.Sprintf("SM%032d", p.nextID)
	p.statuses[sid] = "queued"

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"sid":          sid,
		"status":       "queued",
		"to":           to,
		"from":         r.PostFormValue("From"),
		"body":         r.PostFormValue("Body"),
		"date_created": time.Now().UTC().Format(time.RFC1123Z),
	})
}

func (p *fakeProvider) getMessage(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	sid := strings.TrimSuffix(parts[len(parts)-1], ".json")

	p.mu.Lock()
	status, ok := p.statuses[sid]
	p.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    20404,
			"message": "The requested resource was not found.",
			"status":  404,
		})
		return
	}

	resp := map[string]interface{}{
		"sid":    sid,
		"status": status,
	}
	if status == "sent" || status == "delivered" {
		resp["date_sent"] = time.Now().UTC().Format(time.RFC1123Z)
	}
	json.NewEncoder(w).Encode(resp)
}

type TestEnvironment struct {
	DB             *pg.DB
	Redis          *miniredis.Miniredis
	RedisAdapter   redis.RedisAdapter
	Queue          *queue.Queue
	Provider       *fakeProvider
	DeliveryRepo   *repository.DeliveryRepository
	TicketRepo     *repository.TicketRepository
	SMSService     *services.SMSService
	SessionService *services.SessionService
	BadgeService   *services.BadgeService
	Processor      *refresher.StatusProcessor
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	mr, adapter := helpers.SetupTestRedis(t)

	q, err := queue.NewQueue(adapter, queue.QueueConfig{
		Name:              "refresh:queue",
		ConsumerGroup:     "e2e-group",
		ConsumerName:      "e2e-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      100 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	})
	require.NoError(t, err)

	provider := newFakeProvider()

	client, err := twilio.NewClient(twilio.Config{
		AccountSID: testAccountSID,
		AuthToken:  "e2e-token",
		From:       "+15550000000",
		BaseURL:    provider.server.URL,
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)

	deliveryRepo := repository.NewDeliveryRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	smsService := services.NewSMSService(client, deliveryRepo, q, "+1")
	sessionService := services.NewSessionService(adapter, time.Hour)
	badgeService := services.NewBadgeService(ticketRepo, sessionService, adapter, time.Minute)
	processor := refresher.NewStatusProcessor(client, deliveryRepo, q)

	return &TestEnvironment{
		DB:             db,
		Redis:          mr,
		RedisAdapter:   adapter,
		Queue:          q,
		Provider:       provider,
		DeliveryRepo:   deliveryRepo,
		TicketRepo:     ticketRepo,
		SMSService:     smsService,
		SessionService: sessionService,
		BadgeService:   badgeService,
		Processor:      processor,
	}
}

func (env *TestEnvironment) Cleanup() {
	if env.Queue != nil {
		_ = env.Queue.Stop(5 * time.Second)
	}
	time.Sleep(100 * time.Millisecond)
	if env.Provider != nil {
		env.Provider.server.Close()
	}
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func TestE2E_IndividualSendPersistsAndEnqueues(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	result, err := env.SMSService.SendIndividual(ctx, "(555) 123-4567", "Rent reminder")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ProviderMessageID)
	assert.Equal(t, "+15551234567", result.To)
	assert.Equal(t, model.DeliveryStatusQueued, result.Status)

	stored, err := env.DeliveryRepo.GetByProviderMessageID(ctx, result.ProviderMessageID)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", stored.To)
	assert.Equal(t, model.DeliveryStatusQueued, stored.Status)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))
}

func TestE2E_ProviderRejectionNotPersisted(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	env.Provider.reject("+15559990000")

	result, err := env.SMSService.SendIndividual(ctx, "+15559990000", "Rent reminder")
	require.Error(t, err)
	assert.Nil(t, result)

	var sendErr *twilio.SendError
	assert.ErrorAs(t, err, &sendErr)

	_, total, err := env.SMSService.History(ctx, model.DeliveryFilter{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestE2E_BroadcastMixedOutcome(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	env.Provider.reject("+15551230002")

	req := fixtures.NewBroadcastRequest("Hi {{name}}, rent is due",
		model.Recipient{Phone: "+15551230001", Name: "Alex"},
		model.Recipient{Phone: "+15551230002"},
	)

	results, err := env.SMSService.SendBroadcast(ctx, req)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NotEmpty(t, results[0].ProviderMessageID)
	assert.Equal(t, "Hi Alex, rent is due", results[0].Body)

	assert.Empty(t, results[1].ProviderMessageID)
	assert.Equal(t, model.DeliveryStatusFailed, results[1].Status)

	// both outcomes are persisted, only the accepted one is queued for refresh
	_, total, err := env.SMSService.History(ctx, model.DeliveryFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMessages)
}

func TestE2E_StatusRefreshUpdatesRow(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	result, err := env.SMSService.SendIndividual(ctx, "+15551234567", "Rent reminder")
	require.NoError(t, err)
	sid := result.ProviderMessageID

	env.Provider.setStatus(sid, "delivered")

	err = env.Queue.Consume(func(ctx context.Context, msg *queue.Message) error {
		return env.Processor.Process(ctx, msg)
	})
	require.NoError(t, err)

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		stored, err := env.DeliveryRepo.GetByProviderMessageID(ctx, sid)
		return err == nil && stored.Status == model.DeliveryStatusDelivered
	}, "delivery row not refreshed to delivered")
}

func TestE2E_BadgeCountsTriageTickets(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	helpers.CreateTestMembership(t, env.DB, "user-1", 42)
	helpers.CreateTestTicket(t, env.DB, 42, string(model.TicketStatusTriage))
	helpers.CreateTestTicket(t, env.DB, 42, string(model.TicketStatusTriage))
	helpers.CreateTestTicket(t, env.DB, 42, string(model.TicketStatusResolved))

	require.NoError(t, env.SessionService.Adopt(fixtures.TestSession1))

	count, err := env.BadgeService.Refresh(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	cached, err := env.BadgeService.Badge(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cached)
}

func TestE2E_LogoutClearsSessionAndBadge(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()

	helpers.CreateTestMembership(t, env.DB, "user-2", 7)
	require.NoError(t, env.SessionService.Adopt(fixtures.TestSession2))

	_, err := env.BadgeService.Refresh(ctx, "user-2")
	require.NoError(t, err)

	require.NoError(t, env.SessionService.Clear("user-2"))
	require.NoError(t, env.BadgeService.Clear("user-2"))

	_, err = env.SessionService.Get("user-2")
	assert.ErrorIs(t, err, services.ErrSessionNotFound)

	ids, err := env.SessionService.ActiveUserIDs()
	require.NoError(t, err)
	assert.NotContains(t, ids, "user-2")
}
