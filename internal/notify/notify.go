// Package notify delivers auth.Notification messages out of the process.
//
// The backend never speaks SMTP. Messages either go to a broker topic that
// a mail relay consumes (MQTTNotifier) or, in development, to the log
// (LogNotifier).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
)

// ErrEmptyRecipient is returned for a notification without a recipient.
var ErrEmptyRecipient = errors.New("notify: recipient is required")

// Publisher is the slice of the MQTT client the notifier needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Envelope is the JSON document published for each notification.
type Envelope struct {
	From      string    `json:"from,omitempty"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
}

// MQTTNotifier publishes notifications to a relay topic.
type MQTTNotifier struct {
	pub   Publisher
	topic string
	from  string
	now   func() time.Time
}

// NewMQTTNotifier returns a notifier publishing to topic. from is copied
// into every envelope and may be empty.
func NewMQTTNotifier(pub Publisher, topic, from string) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, topic: topic, from: from, now: time.Now}
}

// Notify publishes n. It returns once the broker has acknowledged the
// message, not when the mail is delivered.
func (m *MQTTNotifier) Notify(ctx context.Context, n auth.Notification) error {
	if n.Recipient == "" {
		return ErrEmptyRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	env := Envelope{
		From:      m.from,
		Recipient: n.Recipient,
		Subject:   n.Subject,
		Body:      n.Body,
		SentAt:    m.now().UTC(),
	}
	if err := m.pub.PublishJSON(m.topic, env); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the log instead of sending them.
// Reset links end up in the log, so it is for development only.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n at info level.
func (l *LogNotifier) Notify(_ context.Context, n auth.Notification) error {
	if n.Recipient == "" {
		return ErrEmptyRecipient
	}
	l.logger.Info("notification",
		"recipient", n.Recipient,
		"subject", n.Subject,
		"body", n.Body,
	)
	return nil
}
