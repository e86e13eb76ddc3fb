package notifications

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mail "github.com/go-mail/mail"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Transport delivers a composed message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// --------------------------------------------------------------------------
// SMTP
// --------------------------------------------------------------------------

// SMTPTransport sends messages as plain-text email.
type SMTPTransport struct {
	Host    string
	Port    int
	From    string
	User    string
	Pass    string
	TLSMode string // "auto" | "starttls" | "ssl" | "none"
	logger  *slog.Logger
}

// NewSMTPTransport creates an SMTP transport. Returns nil if host is empty.
func NewSMTPTransport(host string, port int, from, user, pass, tlsMode string, logger *slog.Logger) *SMTPTransport {
	if host == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tlsMode == "" {
		tlsMode = "auto"
	}
	return &SMTPTransport{Host: host, Port: port, From: from, User: user, Pass: pass, TLSMode: tlsMode, logger: logger}
}

func (s *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.Timeout = 15 * time.Second
	d.TLSConfig = &tls.Config{ServerName: s.Host}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = nil
		d.StartTLSPolicy = mail.NoStartTLS
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.Debug("Alert email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// --------------------------------------------------------------------------
// AMQP
// --------------------------------------------------------------------------

// AMQPTransport publishes messages as JSON to a durable queue, for a
// downstream consumer (pager, SMS gateway) to deliver.
type AMQPTransport struct {
	url    string
	queue  string
	logger *slog.Logger
}

// NewAMQPTransport creates an AMQP transport. Returns nil if url is empty.
func NewAMQPTransport(url, queue string, logger *slog.Logger) *AMQPTransport {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPTransport{url: url, queue: queue, logger: logger}
}

// Send dials a fresh connection per message.
func (a *AMQPTransport) Send(ctx context.Context, msg Message) error {
	conn, err := amqp.Dial(a.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		a.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Violation.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", a.queue, false, false, pub); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	a.logger.Debug("Alert published", "queue", a.queue, "violation_id", msg.Violation.ID)
	return nil
}

// --------------------------------------------------------------------------
// Log and fan-out
// --------------------------------------------------------------------------

// LogTransport writes messages to the logger. Used when no real transport is
// configured.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a log transport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

func (l *LogTransport) Send(ctx context.Context, msg Message) error {
	l.logger.Warn("ALERT", "to", msg.To, "subject", msg.Subject,
		"member_id", msg.Violation.MemberID, "metric", msg.Violation.Metric,
		"value", msg.Violation.Value, "threshold", msg.Violation.Threshold)
	return nil
}

// Multi sends through every transport. It fails only if all of them fail.
type Multi []Transport

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
