// Package handler provides HTTP handlers for all API endpoints. Handlers are
// thin: they parse the request, call the monitor service and shape the
// response.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/albapepper/vitalsync/internal/api/respond"
	"github.com/albapepper/vitalsync/internal/cache"
	"github.com/albapepper/vitalsync/internal/monitor"
	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/scheduler"
	"github.com/albapepper/vitalsync/internal/store"
)

// Service is the set of monitor operations the API exposes.
type Service interface {
	TriggerAuthorization(ctx context.Context, memberID string) (string, error)
	CompleteAuthorization(ctx context.Context, state, code string) (string, error)
	ListMembers(ctx context.Context) ([]store.Member, error)
	GetLatestReading(ctx context.Context, memberID string) (provider.Reading, error)
	GetHistoricalSeries(ctx context.Context, memberID string, period provider.Period) (provider.Series, error)
	NeedsReauthentication(ctx context.Context, memberID string) bool
	RunSyncPass(ctx context.Context) scheduler.PassResult
	RunAlertSweep(ctx context.Context) scheduler.SweepResult
	LastPasses() (*scheduler.PassResult, *scheduler.SweepResult)
}

// HealthChecker reports backing store connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	svc   Service
	cache *cache.Cache
	db    HealthChecker
}

// New creates a Handler. db may be nil when no database backs the store.
func New(svc Service, c *cache.Cache, db HealthChecker) *Handler {
	return &Handler{svc: svc, cache: c, db: db}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "VitalSync API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns service health, including the database when one is
// configured.
// @Summary Health check
// @Description Returns health status, cache statistics and database connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if sync, sweep := h.svc.LastPasses(); sync != nil || sweep != nil {
		passes := map[string]any{}
		if sync != nil {
			passes["sync"] = sync.Summary()
			passes["sync_at"] = sync.StartedAt.UTC().Format(time.RFC3339)
		}
		if sweep != nil {
			passes["sweep"] = sweep.Summary()
			passes["sweep_at"] = sweep.StartedAt.UTC().Format(time.RFC3339)
		}
		body["last_passes"] = passes
	}
	if h.db == nil {
		respond.WriteJSONObject(w, http.StatusOK, body)
		return
	}
	if err := h.db.HealthCheck(r.Context()); err != nil {
		body["status"] = "unhealthy"
		body["database"] = "disconnected"
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, body)
		return
	}
	body["database"] = "connected"
	respond.WriteJSONObject(w, http.StatusOK, body)
}

// writeServiceError maps monitor and store errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case store.IsNotFound(err):
		respond.WriteError(w, respond.CodeMemberNotFound, "Member not found")
	case errors.Is(err, monitor.ErrNoReading):
		respond.WriteError(w, respond.CodeNoReading, "No reading has been synced for this member")
	case errors.Is(err, monitor.ErrInvalidState):
		respond.WriteError(w, respond.CodeInvalidState, "Authorization state is invalid or expired")
	case errors.Is(err, monitor.ErrOAuthNotConfigured):
		respond.WriteError(w, respond.CodeOAuthNotConfigured, "OAuth credentials are not configured")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.WriteError(w, respond.CodeTimeout, "Request was cancelled")
	default:
		respond.WriteErrorDetail(w, respond.CodeInternal, "Internal error", err.Error())
	}
}
