package handlers

import (
	"path"
	"strings"

	"github.com/squareft/sms-gateway/internal/model"
	xhttp "github.com/squareft/sms-gateway/pkg/http"
	"github.com/valyala/fasthttp"
)

const (
	sessionCookie = "sf_session"
	accessCookie  = "sf_access"
	refreshCookie = "sf_refresh"
)

type SessionRefresher interface {
	Refresh(userID string) (*model.Session, error)
}

// RouteConfig drives the page-route middleware. API routes, static assets
// and file requests are never touched by it.
type RouteConfig struct {
	ProtectedPrefix string
	DashboardPath   string
	LegacyPrefixes  []string
}

// RouteMiddleware rewrites legacy page paths to the canonical dashboard and
// keeps sessions fresh on protected pages. Redirects are temporary; the old
// prefixes may come back as real pages.
func RouteMiddleware(sessions SessionRefresher, cfg RouteConfig) xhttp.MiddlewareFunc {
	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		return func(ctx *xhttp.RequestCtx) {
			p := string(ctx.Path())

			if skipRoute(p) {
				next(ctx)
				return
			}

			for _, legacy := range cfg.LegacyPrefixes {
				if underPrefix(p, legacy) {
					ctx.Redirect(cfg.DashboardPath, xhttp.StatusFound)
					return
				}
			}

			if underPrefix(p, cfg.ProtectedPrefix) {
				refreshSessionCookies(ctx, sessions)
			}

			next(ctx)
		}
	}
}

func skipRoute(p string) bool {
	if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/static/") {
		return true
	}
	return path.Ext(p) != ""
}

func underPrefix(p, prefix string) bool {
	if prefix == "" {
		return false
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// refreshSessionCookies re-arms the server-side session and propagates the
// current token pair back to the browser. An absent or expired session is
// not an error here; the page's own auth check handles that.
func refreshSessionCookies(ctx *xhttp.RequestCtx, sessions SessionRefresher) {
	userID := string(ctx.Request.Header.Cookie(sessionCookie))
	if userID == "" {
		return
	}

	session, err := sessions.Refresh(userID)
	if err != nil {
		return
	}

	setCookie(ctx, sessionCookie, session.UserID)
	setCookie(ctx, accessCookie, session.AccessToken)
	setCookie(ctx, refreshCookie, session.RefreshToken)
}

func setCookie(ctx *xhttp.RequestCtx, name, value string) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)

	c.SetKey(name)
	c.SetValue(value)
	c.SetPath("/")
	c.SetHTTPOnly(true)
	c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	ctx.Response.Header.SetCookie(c)
}
