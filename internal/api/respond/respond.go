// Package respond writes API responses: cached member payloads, series tagged
// with their data source, workbook downloads and coded errors.
//
// Health data is per-family, so nothing here is ever publicly cacheable.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/albapepper/vitalsync/internal/cache"
)

// SourceHeader tells clients whether a series came from the provider or the
// synthetic generator.
const SourceHeader = "X-Series-Source"

// XLSXContentType is the media type of workbook downloads.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Code identifies an API error. Each code maps to one HTTP status.
type Code string

const (
	CodeInvalidPeriod      Code = "INVALID_PERIOD"
	CodeMissingParams      Code = "MISSING_PARAMS"
	CodeConsentDenied      Code = "CONSENT_DENIED"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeMemberNotFound     Code = "MEMBER_NOT_FOUND"
	CodeNoReading          Code = "NO_READING"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeExchangeFailed     Code = "EXCHANGE_FAILED"
	CodeOAuthNotConfigured Code = "OAUTH_NOT_CONFIGURED"
	CodeTimeout            Code = "TIMEOUT"
	CodeInternal           Code = "INTERNAL"
)

var codeStatus = map[Code]int{
	CodeInvalidPeriod:      http.StatusBadRequest,
	CodeMissingParams:      http.StatusBadRequest,
	CodeConsentDenied:      http.StatusBadRequest,
	CodeInvalidState:       http.StatusBadRequest,
	CodeMemberNotFound:     http.StatusNotFound,
	CodeNoReading:          http.StatusNotFound,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeExchangeFailed:     http.StatusBadGateway,
	CodeOAuthNotConfigured: http.StatusServiceUnavailable,
	CodeTimeout:            http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
}

// Status returns the HTTP status for the code. Unknown codes are 500.
func (c Code) Status() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ErrorBody is the payload of an error response.
type ErrorBody struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorResponse is the error shape for every endpoint.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteError sends a coded error with the code's status.
func WriteError(w http.ResponseWriter, code Code, message string) {
	WriteErrorDetail(w, code, message, "")
}

// WriteErrorDetail sends a coded error carrying the underlying cause.
func WriteErrorDetail(w http.ResponseWriter, code Code, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{Code: code, Message: message, Detail: detail}})
}

// Payload is an encoded body held in the response cache.
type Payload struct {
	Body []byte
	ETag string
	TTL  time.Duration
	Hit  bool
}

// WriteCached answers 304 when the request already holds p's ETag and sends
// the body otherwise. Clients may reuse it privately until the TTL lapses,
// after which they must revalidate.
func WriteCached(w http.ResponseWriter, r *http.Request, p Payload) {
	w.Header().Set("ETag", p.ETag)
	if p.Hit && cache.CheckETagMatch(r.Header.Get("If-None-Match"), p.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	status := "MISS"
	if p.Hit {
		status = "HIT"
	}
	w.Header().Set("X-Cache", status)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Vary", "Accept-Encoding")
	w.Header().Set("Cache-Control",
		fmt.Sprintf("private, max-age=%d, must-revalidate", int(p.TTL.Seconds())))
	w.WriteHeader(http.StatusOK)
	w.Write(p.Body)
}

// SetSource tags the response with the series data source.
func SetSource(w http.ResponseWriter, source string) {
	w.Header().Set(SourceHeader, source)
}

// WriteJSONObject marshals v and writes it uncached.
func WriteJSONObject(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteWorkbook sends an XLSX download for a member's series.
func WriteWorkbook(w http.ResponseWriter, memberID, period, source string, data []byte) {
	SetSource(w, source)
	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", memberID+"-"+period+".xlsx"))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
