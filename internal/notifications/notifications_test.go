package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/vitalsync/internal/alerts"
	"github.com/albapepper/vitalsync/internal/store"
)

type recordingTransport struct {
	sent []Message
	err  error
}

func (r *recordingTransport) Send(ctx context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type brokenLedger struct{}

func (brokenLedger) Claim(ctx context.Context, key string) (bool, error) {
	return false, errors.New("connection refused")
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testViolation() alerts.Violation {
	at := time.Date(2026, 5, 10, 13, 55, 0, 0, time.UTC)
	return alerts.Violation{
		ID: "v1", MemberID: "mom", Metric: alerts.MetricHeartRate,
		Value: 165, Threshold: 160, Unit: "bpm", Kind: alerts.ExceedsHigh,
		CapturedAt: at, CreatedAt: at.Add(5 * time.Minute),
	}
}

func TestBuildMessage_Format(t *testing.T) {
	msg := buildMessage("contact@example.com", "Mom", testViolation())

	assert.Equal(t, "contact@example.com", msg.To)
	assert.Equal(t, "[VitalSync] Health alert for Mom: heart rate above safe maximum", msg.Subject)
	assert.Contains(t, msg.Body, "Health alert for Mom")
	assert.Contains(t, msg.Body, "Metric:     Heart rate (heart_rate)")
	assert.Contains(t, msg.Body, "Value:      165 bpm")
	assert.Contains(t, msg.Body, "Threshold:  160 bpm")
	assert.Contains(t, msg.Body, "Condition:  exceeds-high")
	assert.Contains(t, msg.Body, "Recorded:   2026-05-10T13:55:00Z")
}

func TestBuildMessage_LowOxygen(t *testing.T) {
	v := testViolation()
	v.Metric, v.Kind, v.Value, v.Threshold, v.Unit = alerts.MetricOxygenSaturation, alerts.FallsBelowLow, 92.5, 95, "%"

	msg := buildMessage("x@example.com", "Dad", v)
	assert.Contains(t, msg.Subject, "oxygen saturation below safe minimum")
	assert.Contains(t, msg.Body, "Value:      92.5 %")
}

func TestDispatcher_Dispatch_SendsOnce(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(tr, alerts.NewMemoryLedger(time.Hour), "", discard())
	member := store.Member{ID: "mom", Name: "Mom", Email: "mom@example.com"}
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, member, testViolation()))

	again := testViolation()
	again.ID = "v2"
	assert.ErrorIs(t, d.Dispatch(ctx, member, again), ErrAlreadySent)

	require.Len(t, tr.sent, 1)
	assert.Equal(t, "mom@example.com", tr.sent[0].To)
}

func TestDispatcher_Dispatch_ConfiguredRecipient(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(tr, nil, "family@example.com", discard())

	require.NoError(t, d.Dispatch(context.Background(), store.Member{ID: "mom", Email: "mom@example.com"}, testViolation()))
	assert.Equal(t, "family@example.com", tr.sent[0].To)
	assert.Contains(t, tr.sent[0].Subject, "for mom")
}

func TestDispatcher_Dispatch_NoRecipient(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(tr, nil, "", discard())

	err := d.Dispatch(context.Background(), store.Member{ID: "mom"}, testViolation())
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, tr.sent)
}

func TestDispatcher_Dispatch_TransportFailureNotRetried(t *testing.T) {
	tr := &recordingTransport{err: errors.New("smtp down")}
	ledger := alerts.NewMemoryLedger(time.Hour)
	d := NewDispatcher(tr, ledger, "x@example.com", discard())
	ctx := context.Background()

	err := d.Dispatch(ctx, store.Member{ID: "mom"}, testViolation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")

	// The claim stands, so the failed alert is not resent by a later pass.
	tr.err = nil
	assert.ErrorIs(t, d.Dispatch(ctx, store.Member{ID: "mom"}, testViolation()), ErrAlreadySent)
	assert.Empty(t, tr.sent)
}

func TestDispatcher_Dispatch_LedgerErrorStillSends(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(tr, brokenLedger{}, "x@example.com", discard())

	require.NoError(t, d.Dispatch(context.Background(), store.Member{ID: "mom"}, testViolation()))
	assert.Len(t, tr.sent, 1)
}

func TestMulti_Send(t *testing.T) {
	good := &recordingTransport{}
	bad := &recordingTransport{err: errors.New("down")}
	msg := buildMessage("x@example.com", "Mom", testViolation())

	require.NoError(t, Multi{bad, good}.Send(context.Background(), msg))
	assert.Len(t, good.sent, 1)

	assert.Error(t, Multi{bad, bad}.Send(context.Background(), msg))
}

func TestNewTransports_NilWhenUnconfigured(t *testing.T) {
	assert.Nil(t, NewSMTPTransport("", 587, "", "", "", "", nil))
	assert.Nil(t, NewAMQPTransport("", "q", nil))
	assert.NotNil(t, NewLogTransport(nil))
}
