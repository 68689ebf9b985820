// Package handlers contains all HTTP handler functions for the lead magnet host.
// each handler file groups related endpoints by resource or concern.
// handlers decode a request, call into the db, publish or site layer, and write the response.
// no business logic lives in handlers; they are thin translation layers between HTTP and the domain.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is the readiness dependency of the health handler. *db.Database satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler holds the dependencies needed by the health endpoints.
type HealthHandler struct {
	logger   *slog.Logger
	database Pinger
}

// NewHealthHandler constructs a HealthHandler. (basically the constructor)
func NewHealthHandler(inputLogger *slog.Logger, database Pinger) *HealthHandler {
	return &HealthHandler{logger: inputLogger, database: database}
}

// healthResponse is the JSON body returned by the health endpoints.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /health.
// the minimum signal that the process is alive and the HTTP stack works:
// no db check, no auth, no business logic.
func (handler *HealthHandler) Health(responseWriter http.ResponseWriter, request *http.Request) {
	writeJsonAndRespond(responseWriter, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready.
// 200 only when the record store answers a ping within two seconds, 503 otherwise,
// so a load balancer stops routing to an instance whose database is gone.
func (handler *HealthHandler) Ready(responseWriter http.ResponseWriter, request *http.Request) {
	pingContext, cancel := context.WithTimeout(request.Context(), 2*time.Second)
	defer cancel()

	if err := handler.database.Ping(pingContext); err != nil {
		handler.logger.Error("readiness check failed", "error", err)
		writeJsonAndRespond(responseWriter, http.StatusServiceUnavailable, healthResponse{
			Status:    "unavailable",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJsonAndRespond(responseWriter, http.StatusOK, healthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
