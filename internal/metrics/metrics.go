// Package metrics defines the Prometheus collectors for the sync engine and
// the HTTP API. Collectors are package-level so every component can record
// without threading a registry through constructors; Register attaches them.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncMembers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalsync_sync_members_total",
		Help: "Members processed by sync passes, by result",
	}, []string{"result"}) // result: updated|needs_reauth|fetch_failed|store_failed

	SyncPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vitalsync_sync_pass_duration_seconds",
		Help:    "Wall time of one full sync pass",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	TokenRefresh = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalsync_token_refresh_total",
		Help: "Access token refresh attempts, by result",
	}, []string{"result"}) // result: success|failure|no_refresh_token

	Violations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalsync_violations_total",
		Help: "Threshold violations detected, by metric",
	}, []string{"metric"})

	AlertsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalsync_alerts_dispatched_total",
		Help: "Alert dispatch outcomes, by result",
	}, []string{"result"}) // result: sent|duplicate|failed

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalsync_http_requests_total",
		Help: "HTTP requests served, by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vitalsync_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Register registers every collector on reg (the default registerer if nil).
// Collectors already registered are not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		SyncMembers, SyncPassDuration, TokenRefresh, Violations,
		AlertsDispatched, HTTPRequests, HTTPDuration,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
