package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albapepper/vitalsync/internal/alerts"
	"github.com/albapepper/vitalsync/internal/metrics"
	"github.com/albapepper/vitalsync/internal/store"
)

var (
	// ErrAlreadySent is returned when the violation's observation was already
	// notified.
	ErrAlreadySent = errors.New("alert already sent")
	// ErrNoRecipient is returned when neither a configured contact nor the
	// member's own address is available.
	ErrNoRecipient = errors.New("no alert recipient")
)

// Dispatcher sends each violation at most once.
type Dispatcher struct {
	transport Transport
	ledger    alerts.Ledger
	recipient string
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. recipient is the emergency contact;
// when empty, alerts go to the member's own address.
func NewDispatcher(transport Transport, ledger alerts.Ledger, recipient string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{transport: transport, ledger: ledger, recipient: recipient, logger: logger}
}

// Dispatch composes and sends one notification for the violation.
//
// The ledger key is claimed before sending. A ledger error does not block the
// send.
func (d *Dispatcher) Dispatch(ctx context.Context, member store.Member, v alerts.Violation) error {
	to := d.recipient
	if to == "" {
		to = member.Email
	}
	if to == "" {
		metrics.AlertsDispatched.WithLabelValues("failed").Inc()
		return fmt.Errorf("dispatch %s for %s: %w", v.Metric, member.ID, ErrNoRecipient)
	}

	if d.ledger != nil {
		claimed, err := d.ledger.Claim(ctx, v.Key())
		switch {
		case err != nil:
			d.logger.Warn("Alert ledger unavailable, sending anyway", "member_id", member.ID, "metric", v.Metric, "error", err)
		case !claimed:
			metrics.AlertsDispatched.WithLabelValues("duplicate").Inc()
			return ErrAlreadySent
		}
	}

	name := member.Name
	if name == "" {
		name = member.ID
	}
	msg := buildMessage(to, name, v)
	if err := d.transport.Send(ctx, msg); err != nil {
		metrics.AlertsDispatched.WithLabelValues("failed").Inc()
		d.logger.Error("Alert send failed", "member_id", member.ID, "metric", v.Metric, "error", err)
		return fmt.Errorf("send alert: %w", err)
	}

	metrics.AlertsDispatched.WithLabelValues("sent").Inc()
	d.logger.Info("Alert sent", "member_id", member.ID, "metric", v.Metric,
		"value", v.Value, "threshold", v.Threshold, "to", to)
	return nil
}
