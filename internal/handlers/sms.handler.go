package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/squareft/sms-gateway/internal/model"
	"github.com/squareft/sms-gateway/internal/services"
	xhttp "github.com/squareft/sms-gateway/pkg/http"
)

type SMSService interface {
	SendIndividual(ctx context.Context, to, body string) (*model.DeliveryResult, error)
	SendBroadcast(ctx context.Context, req model.BroadcastRequest) ([]*model.DeliveryResult, error)
	History(ctx context.Context, f model.DeliveryFilter) ([]*model.DeliveryResult, int64, error)
	AccountInfo(ctx context.Context) (*model.AccountInfo, error)
}

type SMSHandler struct {
	svc SMSService
}

func NewSMSHandler(svc SMSService) *SMSHandler {
	return &SMSHandler{
		svc: svc,
	}
}

func RegisterSMSRoutes(e *router.Group, h *SMSHandler) {
	e.POST("/sms/send", h.Send)
	e.GET("/sms/history", h.History)
	e.GET("/sms/account", h.Account)
}

const (
	typeIndividual = "individual"
	typeBroadcast  = "broadcast"
)

type sendRequest struct {
	To         string            `json:"to"`
	Message    string            `json:"message"`
	Type       string            `json:"type"`
	Recipients []model.Recipient `json:"recipients"`
}

type sendSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type sendResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Results []*model.DeliveryResult `json:"results"`
	Summary sendSummary             `json:"summary"`
}

type historyResponse struct {
	Items []*model.DeliveryResult `json:"items"`
	Total int64                   `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

// Send accepts individual and broadcast requests on the same endpoint.
// Failure of some recipients inside a broadcast is reported through the
// summary, never through the HTTP status; only a provider error on the
// individual path or an unexpected failure produces a 500.
func (h *SMSHandler) Send(ctx *xhttp.RequestCtx) {
	var req sendRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "Invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(ctx, xhttp.StatusBadRequest, "Message content is required")
		return
	}

	msgType := req.Type
	if msgType == "" {
		msgType = typeIndividual
	}

	var results []*model.DeliveryResult
	switch msgType {
	case typeIndividual:
		result, err := h.svc.SendIndividual(ctx, req.To, req.Message)
		if err != nil {
			h.writeSendError(ctx, err)
			return
		}
		results = []*model.DeliveryResult{result}

	case typeBroadcast:
		var err error
		results, err = h.svc.SendBroadcast(ctx, model.BroadcastRequest{
			MessageTemplate: req.Message,
			Recipients:      req.Recipients,
		})
		if err != nil {
			h.writeSendError(ctx, err)
			return
		}

	default:
		writeError(ctx, xhttp.StatusBadRequest, "Invalid message type")
		return
	}

	summary := sendSummary{Total: len(results)}
	for _, r := range results {
		if r.Status == model.DeliveryStatusFailed {
			summary.Failed++
		} else {
			summary.Successful++
		}
	}

	writeJSON(ctx, xhttp.StatusOK, sendResponse{
		Success: true,
		Message: fmt.Sprintf("Processed %d message(s): %d successful, %d failed", summary.Total, summary.Successful, summary.Failed),
		Results: results,
		Summary: summary,
	})
}

func (h *SMSHandler) writeSendError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		writeError(ctx, xhttp.StatusBadRequest, "Message content is required")
	case errors.Is(err, services.ErrMissingRecipient):
		writeError(ctx, xhttp.StatusBadRequest, "Recipient phone number is required")
	case errors.Is(err, services.ErrInvalidPhone):
		writeError(ctx, xhttp.StatusBadRequest, "Invalid phone number format")
	case errors.Is(err, services.ErrNoRecipients):
		writeError(ctx, xhttp.StatusBadRequest, "Recipients are required for broadcast messages")
	default:
		writeJSON(ctx, xhttp.StatusInternalServerError, map[string]string{
			"error":   "Failed to send SMS",
			"details": err.Error(),
		})
	}
}

func (h *SMSHandler) History(ctx *xhttp.RequestCtx) {
	var f model.DeliveryFilter

	if v := query(ctx, "to"); v != "" {
		f.To = &v
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.DeliveryStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "until"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.Until = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.History(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, historyResponse{Items: items, Total: total})
}

func (h *SMSHandler) Account(ctx *xhttp.RequestCtx) {
	info, err := h.svc.AccountInfo(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, info)
}

/* --------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
