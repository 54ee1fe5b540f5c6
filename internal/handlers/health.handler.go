package handlers

import (
	xhttp "github.com/squareft/sms-gateway/pkg/http"
)

func RegisterHealthRoutes(r *xhttp.Router) {
	r.GET("/health", func(ctx *xhttp.RequestCtx) {
		writeJSON(ctx, xhttp.StatusOK, map[string]string{"status": "ok"})
	})
}
