package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/vitalsync/internal/api/respond"
	"github.com/albapepper/vitalsync/internal/cache"
	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/report"
)

const membersKey = "members"

// ListMembers returns every member profile.
// @Summary List members
// @Description Returns all member profiles with their latest reading and token status. Credentials are never included.
// @Tags members
// @Produce json
// @Success 200 {array} store.Member
// @Router /api/health-data [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ttl := cache.TTLMembers
	if data, etag, ok := h.cache.Get(membersKey); ok {
		respond.WriteCached(w, r, respond.Payload{Body: data, ETag: etag, TTL: ttl, Hit: true})
		return
	}

	members, err := h.svc.ListMembers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := json.Marshal(members)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	etag := h.cache.Set(membersKey, data, ttl)
	respond.WriteCached(w, r, respond.Payload{Body: data, ETag: etag, TTL: ttl})
}

// GetLatest returns the member's stored reading.
// @Summary Latest reading
// @Description Returns the most recent synced reading. Fields the provider did not report are omitted.
// @Tags members
// @Produce json
// @Param memberID path string true "Member ID"
// @Success 200 {object} provider.Reading
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/member/{memberID}/latest [get]
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	reading, err := h.svc.GetLatestReading(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, reading)
}

// GetHistory returns the member's series in chart-friendly columns.
// Provider-backed series are cached; synthetic ones never are.
// @Summary Historical series
// @Description Returns one value per day for the period. Falls back to a synthetic series when the provider is unavailable; the X-Series-Source header tells which.
// @Tags members
// @Produce json
// @Param memberID path string true "Member ID"
// @Param period query string false "Period" Enums(week, month, year) default(week)
// @Success 200 {object} provider.Columns
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/member/{memberID}/history [get]
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	period, err := provider.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		respond.WriteError(w, respond.CodeInvalidPeriod, "period must be one of week, month, year")
		return
	}

	cacheKey := fmt.Sprintf("history:%s:%s", memberID, period)
	ttl := cache.TTLHistory
	if data, etag, ok := h.cache.Get(cacheKey); ok {
		respond.SetSource(w, provider.SourceProvider)
		respond.WriteCached(w, r, respond.Payload{Body: data, ETag: etag, TTL: ttl, Hit: true})
		return
	}

	series, err := h.svc.GetHistoricalSeries(r.Context(), memberID, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.SetSource(w, series.Source)

	if series.Source != provider.SourceProvider {
		respond.WriteJSONObject(w, http.StatusOK, series.Columns())
		return
	}
	data, err := json.Marshal(series.Columns())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	etag := h.cache.Set(cacheKey, data, ttl)
	respond.WriteCached(w, r, respond.Payload{Body: data, ETag: etag, TTL: ttl})
}

// GetHistoryXLSX returns the member's series as a spreadsheet.
// @Summary Historical series workbook
// @Description Same series as /history, rendered as an XLSX workbook.
// @Tags members
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param memberID path string true "Member ID"
// @Param period query string false "Period" Enums(week, month, year) default(week)
// @Success 200 {file} file
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/member/{memberID}/history.xlsx [get]
func (h *Handler) GetHistoryXLSX(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	period, err := provider.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		respond.WriteError(w, respond.CodeInvalidPeriod, "period must be one of week, month, year")
		return
	}

	series, err := h.svc.GetHistoricalSeries(r.Context(), memberID, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := report.SeriesXLSX(series)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteWorkbook(w, memberID, string(period), series.Source, data)
}

// RunSync runs one sync pass immediately. The pass is detached from the
// request, so a client disconnect does not skip members.
// @Summary Run sync pass
// @Description Fetches the latest reading for every member and dispatches alerts. Returns the pass summary.
// @Tags operations
// @Produce json
// @Success 200 {object} scheduler.PassResult
// @Router /api/sync [post]
func (h *Handler) RunSync(w http.ResponseWriter, r *http.Request) {
	result := h.svc.RunSyncPass(context.WithoutCancel(r.Context()))
	h.cache.Delete(membersKey)
	respond.WriteJSONObject(w, http.StatusOK, result)
}

// RunSweep runs one alert sweep immediately.
// @Summary Run alert sweep
// @Description Re-evaluates every stored reading against the alert thresholds.
// @Tags operations
// @Produce json
// @Success 200 {object} scheduler.SweepResult
// @Router /api/alerts/sweep [post]
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.svc.RunAlertSweep(context.WithoutCancel(r.Context())))
}

// GetAuthStatus reports whether the member must redo the authorization
// handshake. A stale token is renewed as a side effect.
// @Summary Authorization status
// @Tags auth
// @Produce json
// @Param memberID path string true "Member ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/member/{memberID}/auth-status [get]
func (h *Handler) GetAuthStatus(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"member_id":    memberID,
		"needs_reauth": h.svc.NeedsReauthentication(r.Context(), memberID),
	})
}
