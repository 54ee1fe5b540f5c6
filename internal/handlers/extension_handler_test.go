package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/squareft/sms-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBadgeService struct {
	mock.Mock
}

func (m *MockBadgeService) Badge(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBadgeService) Refresh(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBadgeService) Clear(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Adopt(session model.Session) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *MockSessionService) Clear(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func TestExtensionHandler_GetBadge(t *testing.T) {
	t.Run("returns the count", func(t *testing.T) {
		badge := new(MockBadgeService)
		handler := NewExtensionHandler(badge, new(MockSessionService))

		badge.On("Badge", mock.Anything, "user-1").Return(int64(4), nil)

		ctx := setupTestContext("GET", "/api/extension/badge?user_id=user-1", nil)
		handler.GetBadge(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response badgeResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(4), response.Count)
		badge.AssertExpectations(t)
	})

	t.Run("missing user_id", func(t *testing.T) {
		handler := NewExtensionHandler(new(MockBadgeService), new(MockSessionService))

		ctx := setupTestContext("GET", "/api/extension/badge", nil)
		handler.GetBadge(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestExtensionHandler_RefreshBadge(t *testing.T) {
	badge := new(MockBadgeService)
	handler := NewExtensionHandler(badge, new(MockSessionService))

	badge.On("Refresh", mock.Anything, "user-1").Return(int64(2), nil)

	bodyBytes, _ := json.Marshal(userRequest{UserID: "user-1"})
	ctx := setupTestContext("POST", "/api/extension/refresh", bodyBytes)
	handler.RefreshBadge(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response badgeResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(2), response.Count)
	badge.AssertExpectations(t)
}

func TestExtensionHandler_AdoptSession(t *testing.T) {
	t.Run("adopts a token pair", func(t *testing.T) {
		sessions := new(MockSessionService)
		handler := NewExtensionHandler(new(MockBadgeService), sessions)

		sessions.On("Adopt", model.Session{
			UserID:       "user-1",
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
		}).Return(nil)

		bodyBytes, _ := json.Marshal(adoptSessionRequest{
			UserID:       "user-1",
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
		})
		ctx := setupTestContext("POST", "/api/extension/session", bodyBytes)
		handler.AdoptSession(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		sessions.AssertExpectations(t)
	})

	t.Run("missing tokens", func(t *testing.T) {
		handler := NewExtensionHandler(new(MockBadgeService), new(MockSessionService))

		bodyBytes, _ := json.Marshal(adoptSessionRequest{UserID: "user-1"})
		ctx := setupTestContext("POST", "/api/extension/session", bodyBytes)
		handler.AdoptSession(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestExtensionHandler_Logout(t *testing.T) {
	badge := new(MockBadgeService)
	sessions := new(MockSessionService)
	handler := NewExtensionHandler(badge, sessions)

	sessions.On("Clear", "user-1").Return(nil)
	badge.On("Clear", "user-1").Return(nil)

	bodyBytes, _ := json.Marshal(userRequest{UserID: "user-1"})
	ctx := setupTestContext("POST", "/api/extension/logout", bodyBytes)
	handler.Logout(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	sessions.AssertExpectations(t)
	badge.AssertExpectations(t)
}
