package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/fasthttp/router"
	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/internal/services"
	xhttp "github.com/squareft/sms-gateway/pkg/http"
)

type BadgeService interface {
	Badge(ctx context.Context, userID string) (int64, error)
	Refresh(ctx context.Context, userID string) (int64, error)
	Clear(userID string) error
}

type SessionService interface {
	Adopt(session model.Session) error
	Clear(userID string) error
}

// ExtensionHandler serves the companion browser extension: badge counts,
// session adoption and logout.
type ExtensionHandler struct {
	badge    BadgeService
	sessions SessionService
}

func NewExtensionHandler(badge BadgeService, sessions SessionService) *ExtensionHandler {
	return &ExtensionHandler{
		badge:    badge,
		sessions: sessions,
	}
}

func RegisterExtensionRoutes(e *router.Group, h *ExtensionHandler) {
	e.GET("/extension/badge", h.GetBadge)
	e.POST("/extension/refresh", h.RefreshBadge)
	e.POST("/extension/session", h.AdoptSession)
	e.POST("/extension/logout", h.Logout)
}

type badgeResponse struct {
	Count int64 `json:"count"`
}

type adoptSessionRequest struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type userRequest struct {
	UserID string `json:"user_id"`
}

func (h *ExtensionHandler) GetBadge(ctx *xhttp.RequestCtx) {
	userID := query(ctx, "user_id")
	if userID == "" {
		writeError(ctx, xhttp.StatusBadRequest, "user_id is required")
		return
	}

	count, err := h.badge.Badge(ctx, userID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, badgeResponse{Count: count})
}

func (h *ExtensionHandler) RefreshBadge(ctx *xhttp.RequestCtx) {
	var req userRequest
	if err := readJSON(ctx, &req); err != nil || req.UserID == "" {
		writeError(ctx, xhttp.StatusBadRequest, "user_id is required")
		return
	}

	count, err := h.badge.Refresh(ctx, req.UserID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, badgeResponse{Count: count})
}

func (h *ExtensionHandler) AdoptSession(ctx *xhttp.RequestCtx) {
	var req adoptSessionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || req.AccessToken == "" || req.RefreshToken == "" {
		writeError(ctx, xhttp.StatusBadRequest, "user_id, access_token and refresh_token are required")
		return
	}

	err := h.sessions.Adopt(model.Session{
		UserID:       req.UserID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]bool{"success": true})
}

// Logout clears the session and the cached badge together.
func (h *ExtensionHandler) Logout(ctx *xhttp.RequestCtx) {
	var req userRequest
	if err := readJSON(ctx, &req); err != nil || req.UserID == "" {
		writeError(ctx, xhttp.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.sessions.Clear(req.UserID); err != nil && !errors.Is(err, services.ErrSessionNotFound) {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	if err := h.badge.Clear(req.UserID); err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]bool{"success": true})
}
