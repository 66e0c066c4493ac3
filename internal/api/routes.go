package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Webhook ingress
	mux.Handle("POST /webhook/{webhook_id}", chain(http.HandlerFunc(h.Webhook)))

	// Executions (read-only)
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))
	mux.Handle("GET /api/v1/executions/{id}/results", chain(http.HandlerFunc(h.ListExecutionResults)))
}
