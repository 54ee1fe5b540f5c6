package handlers

import (
	"testing"
	"time"

	"github.com/squareft/sms-gateway/internal/model"
	xhttp "github.com/squareft/sms-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSessionRefresher struct {
	mock.Mock
}

func (m *MockSessionRefresher) Refresh(userID string) (*model.Session, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func testRouteConfig() RouteConfig {
	return RouteConfig{
		ProtectedPrefix: "/dashboard",
		DashboardPath:   "/dashboard",
		LegacyPrefixes:  []string{"/app", "/portal", "/landlord", "/property-dashboard"},
	}
}

func runMiddleware(t *testing.T, sessions SessionRefresher, method, path string) (*xhttp.RequestCtx, bool) {
	t.Helper()

	called := false
	next := func(ctx *xhttp.RequestCtx) {
		called = true
		ctx.SetStatusCode(xhttp.StatusOK)
	}

	ctx := setupTestContext(method, path, nil)
	RouteMiddleware(sessions, testRouteConfig())(next)(ctx)
	return ctx, called
}

func TestRouteMiddleware_LegacyRedirects(t *testing.T) {
	for _, p := range []string{"/app", "/portal/settings", "/landlord/units/12", "/property-dashboard"} {
		t.Run(p, func(t *testing.T) {
			ctx, called := runMiddleware(t, new(MockSessionRefresher), "GET", p)

			assert.Equal(t, 302, ctx.Response.StatusCode())
			assert.Equal(t, "/dashboard", string(ctx.Response.Header.Peek("Location")))
			assert.False(t, called)
		})
	}
}

func TestRouteMiddleware_SkipsAPIStaticAndFiles(t *testing.T) {
	sessions := new(MockSessionRefresher)

	for _, p := range []string{"/api/sms/send", "/static/app.css", "/app/logo.png"} {
		t.Run(p, func(t *testing.T) {
			ctx, called := runMiddleware(t, sessions, "GET", p)

			assert.True(t, called)
			assert.NotEqual(t, 302, ctx.Response.StatusCode())
		})
	}
	sessions.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestRouteMiddleware_ProtectedRefreshesSession(t *testing.T) {
	sessions := new(MockSessionRefresher)
	sessions.On("Refresh", "user-1").Return(&model.Session{
		UserID:       "user-1",
		AccessToken:  "at-new",
		RefreshToken: "rt-new",
		RefreshedAt:  time.Now(),
	}, nil)

	called := false
	next := func(ctx *xhttp.RequestCtx) { called = true }

	ctx := setupTestContext("GET", "/dashboard/units", nil)
	ctx.Request.Header.SetCookie(sessionCookie, "user-1")

	RouteMiddleware(sessions, testRouteConfig())(next)(ctx)

	assert.True(t, called)
	sessions.AssertExpectations(t)

	cookies := map[string]string{}
	ctx.Response.Header.VisitAllCookie(func(key, value []byte) {
		cookies[string(key)] = string(value)
	})
	assert.Contains(t, cookies, accessCookie)
	assert.Contains(t, cookies, refreshCookie)
}

func TestRouteMiddleware_ProtectedWithoutCookiePassesThrough(t *testing.T) {
	sessions := new(MockSessionRefresher)

	_, called := runMiddleware(t, sessions, "GET", "/dashboard")

	assert.True(t, called)
	sessions.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestRouteMiddleware_RefreshFailureDoesNotBlockPage(t *testing.T) {
	sessions := new(MockSessionRefresher)
	sessions.On("Refresh", "user-1").Return(nil, assert.AnError)

	called := false
	next := func(ctx *xhttp.RequestCtx) { called = true }

	ctx := setupTestContext("GET", "/dashboard", nil)
	ctx.Request.Header.SetCookie(sessionCookie, "user-1")

	RouteMiddleware(sessions, testRouteConfig())(next)(ctx)

	assert.True(t, called)
	assert.Empty(t, ctx.Response.Header.PeekCookie(accessCookie))
}
