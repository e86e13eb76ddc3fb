package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/vitalsync/internal/api/respond"
)

// StartAuth redirects the browser to the provider's consent page.
// @Summary Start authorization
// @Description Redirects to the Google consent screen for the member. The state parameter is a single-use nonce valid for ten minutes.
// @Tags auth
// @Param memberID path string true "Member ID"
// @Success 302
// @Failure 404 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /auth/{memberID} [get]
func (h *Handler) StartAuth(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")
	authURL, err := h.svc.TriggerAuthorization(r.Context(), memberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// AuthCallback completes the authorization handshake.
// @Summary Authorization callback
// @Description Exchanges the authorization code and stores the member's credentials.
// @Tags auth
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "State nonce from /auth/{memberID}"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /auth/google/callback [get]
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		respond.WriteError(w, respond.CodeConsentDenied, "Authorization was not granted: "+e)
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		respond.WriteError(w, respond.CodeMissingParams, "code and state query parameters are required")
		return
	}

	memberID, err := h.svc.CompleteAuthorization(r.Context(), state, code)
	if err != nil {
		if memberID == "" {
			writeServiceError(w, err)
			return
		}
		respond.WriteErrorDetail(w, respond.CodeExchangeFailed, "Could not complete authorization", err.Error())
		return
	}
	h.cache.Delete(membersKey)

	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"member_id": memberID,
		"status":    "authorized",
	})
}
