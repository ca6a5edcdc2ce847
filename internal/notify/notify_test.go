package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
)

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) PublishJSON(topic string, v any) error {
	if f.err != nil {
		return f.err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.topic, f.payload = topic, b
	return nil
}

var (
	_ auth.Notifier = (*MQTTNotifier)(nil)
	_ auth.Notifier = (*LogNotifier)(nil)
)

func TestMQTTNotifier_PublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub, "habitat/notify/email", "noreply@habitat.test")
	n.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	err := n.Notify(context.Background(), auth.Notification{
		Recipient: "tenant@x.com",
		Subject:   "Password Reset Request",
		Body:      "Reset your password using the following link: https://x/reset_password/abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "habitat/notify/email", pub.topic)

	var got Envelope
	require.NoError(t, json.Unmarshal(pub.payload, &got))

	want := Envelope{
		From:      "noreply@habitat.test",
		Recipient: "tenant@x.com",
		Subject:   "Password Reset Request",
		Body:      "Reset your password using the following link: https://x/reset_password/abc",
		SentAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
}

func TestMQTTNotifier_Errors(t *testing.T) {
	t.Run("empty recipient", func(t *testing.T) {
		n := NewMQTTNotifier(&fakePublisher{}, "t", "")
		assert.ErrorIs(t, n.Notify(context.Background(), auth.Notification{}), ErrEmptyRecipient)
	})

	t.Run("publish failure is wrapped", func(t *testing.T) {
		boom := errors.New("broker down")
		n := NewMQTTNotifier(&fakePublisher{err: boom}, "t", "")
		err := n.Notify(context.Background(), auth.Notification{Recipient: "a@x.com"})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		pub := &fakePublisher{}
		n := NewMQTTNotifier(pub, "t", "")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, n.Notify(ctx, auth.Notification{Recipient: "a@x.com"}), context.Canceled)
		assert.Empty(t, pub.payload)
	})
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), auth.Notification{
		Recipient: "admin@x.com",
		Subject:   "Password Reset Request",
		Body:      "link",
	}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification", entry["msg"])
	assert.Equal(t, "admin@x.com", entry["recipient"])

	assert.ErrorIs(t, NewLogNotifier(nil).Notify(context.Background(), auth.Notification{}), ErrEmptyRecipient)
}
