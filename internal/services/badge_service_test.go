package services

import (
	"context"
	"testing"
	"time"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTicketReader struct {
	mock.Mock
}

func (m *MockTicketReader) OrgIDForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTicketReader) CountTriage(ctx context.Context, orgID int64) (int64, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).(int64), args.Error(1)
}

func newBadgeFixture(t *testing.T) (*BadgeService, *SessionService, *MockTicketReader) {
	adapter := newTestRedis(t)
	sessions := NewSessionService(adapter, time.Hour)
	tickets := new(MockTicketReader)
	badge := NewBadgeService(tickets, sessions, adapter, 5*time.Minute)
	return badge, sessions, tickets
}

func TestBadgeService_Refresh(t *testing.T) {
	ctx := context.Background()
	badge, _, tickets := newBadgeFixture(t)

	tickets.On("OrgIDForUser", ctx, "user-1").Return(int64(42), nil)
	tickets.On("CountTriage", ctx, int64(42)).Return(int64(3), nil)

	count, err := badge.Refresh(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// cached value served without another DB hit
	count, err = badge.Badge(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	tickets.AssertNumberOfCalls(t, "CountTriage", 1)
}

func TestBadgeService_Badge_NoSession(t *testing.T) {
	ctx := context.Background()
	badge, _, tickets := newBadgeFixture(t)

	count, err := badge.Badge(ctx, "user-unknown")
	require.NoError(t, err)
	assert.Zero(t, count)
	tickets.AssertNotCalled(t, "OrgIDForUser", mock.Anything, mock.Anything)
}

func TestBadgeService_Badge_RecomputesOnMiss(t *testing.T) {
	ctx := context.Background()
	badge, sessions, tickets := newBadgeFixture(t)

	require.NoError(t, sessions.Adopt(model.Session{UserID: "user-1", AccessToken: "a", RefreshToken: "r"}))

	tickets.On("OrgIDForUser", ctx, "user-1").Return(int64(42), nil)
	tickets.On("CountTriage", ctx, int64(42)).Return(int64(7), nil)

	count, err := badge.Badge(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	tickets.AssertExpectations(t)
}

func TestBadgeService_Refresh_NoMembership(t *testing.T) {
	ctx := context.Background()
	badge, _, tickets := newBadgeFixture(t)

	tickets.On("OrgIDForUser", ctx, "user-1").Return(int64(0), repository.ErrNoMembership)

	count, err := badge.Refresh(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBadgeService_Clear(t *testing.T) {
	ctx := context.Background()
	badge, sessions, tickets := newBadgeFixture(t)

	require.NoError(t, sessions.Adopt(model.Session{UserID: "user-1", AccessToken: "a", RefreshToken: "r"}))
	tickets.On("OrgIDForUser", ctx, "user-1").Return(int64(42), nil)
	tickets.On("CountTriage", ctx, int64(42)).Return(int64(3), nil)

	_, err := badge.Refresh(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, badge.Clear("user-1"))

	// miss after clear triggers a recompute
	count, err := badge.Badge(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	tickets.AssertNumberOfCalls(t, "CountTriage", 2)
}
