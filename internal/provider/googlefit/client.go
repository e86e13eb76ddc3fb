// Package googlefit fetches and normalizes Google Fit aggregate data.
//
// The Fitness API groups samples into time buckets: bucket → dataset → point.
// Every point carries typed values (intVal or fpVal) whose layout depends on
// the data type. This package turns those nested responses into the canonical
// provider.Reading and provider.Series types.
//
// Rate limiting is handled via a token bucket limiter shared by every request
// the client makes, across all members.
package googlefit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/albapepper/vitalsync/internal/provider"
)

// Data types queried from the aggregate endpoint.
const (
	TypeHeartRate     = "com.google.heart_rate.bpm"
	TypeSteps         = "com.google.step_count.delta"
	TypeSleep         = "com.google.sleep.segment"
	TypeBloodPressure = "com.google.blood_pressure"
	TypeOxygen        = "com.google.oxygen_saturation"
)

// ErrNoData is returned by FetchLatest when every query succeeded but no
// metric had a sample in the window.
var ErrNoData = errors.New("no data in window")

// TokenSource yields a valid access token for a member, or an error wrapping
// token.ErrNeedsReauth.
type TokenSource interface {
	AccessToken(ctx context.Context, memberID string) (string, error)
}

// Client is the rate-limited Google Fit client.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	tokens  TokenSource
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithClock overrides the time source used to compute query windows.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a Google Fit client with rate limiting.
func NewClient(baseURL string, requestsPerMinute int, timeout time.Duration, tokens TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 120
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := float64(requestsPerMinute) / 60.0
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		tokens:  tokens,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --------------------------------------------------------------------------
// Wire types
// --------------------------------------------------------------------------

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

type aggregateRequest struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

type aggregateResponse struct {
	Bucket []bucket `json:"bucket"`
}

type bucket struct {
	StartTimeMillis provider.Int64String `json:"startTimeMillis"`
	EndTimeMillis   provider.Int64String `json:"endTimeMillis"`
	Dataset         []dataset            `json:"dataset"`
}

type dataset struct {
	DataSourceID string  `json:"dataSourceId"`
	Point        []point `json:"point"`
}

type point struct {
	StartTimeNanos provider.Int64String `json:"startTimeNanos"`
	EndTimeNanos   provider.Int64String `json:"endTimeNanos"`
	DataTypeName   string               `json:"dataTypeName"`
	Value          []provider.Value     `json:"value"`
}

func (p point) start() time.Time { return time.Unix(0, int64(p.StartTimeNanos)) }
func (p point) end() time.Time   { return time.Unix(0, int64(p.EndTimeNanos)) }

// points returns every point in the bucket across all datasets.
func (b bucket) points() []point {
	var out []point
	for _, ds := range b.Dataset {
		out = append(out, ds.Point...)
	}
	return out
}

// aggregate performs one rate-limited aggregate query.
func (c *Client) aggregate(ctx context.Context, accessToken, dataType string, start, end time.Time, bucketSize time.Duration) (*aggregateResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	durMs := bucketSize.Milliseconds()
	if durMs <= 0 {
		durMs = 1
	}
	body := aggregateRequest{
		AggregateBy:     []aggregateBy{{DataTypeName: dataType}},
		BucketByTime:    bucketByTime{DurationMillis: durMs},
		StartTimeMillis: start.UnixMilli(),
		EndTimeMillis:   end.UnixMilli(),
	}

	var result aggregateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(body).
		SetResult(&result).
		Post("/users/me/dataset:aggregate")
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", dataType, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("aggregate %s returned %d: %s", dataType, resp.StatusCode(), truncate(resp.Body(), 200))
	}
	return &result, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
