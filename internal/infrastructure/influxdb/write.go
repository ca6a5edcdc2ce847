package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
)

// Measurement names written by this package.
const (
	measurementAuthEvents = "auth_events"
	measurementAuthStores = "auth_stores"

	serviceTag = "habitat"
)

// RecordAuthEvent writes one authentication event. It satisfies
// auth.EventRecorder; the write is non-blocking and batched.
//
// Tags stay low cardinality: the event name, the role and the outcome.
// Emails and token ids are never written.
func (c *Client) RecordAuthEvent(event string, role auth.Role, outcome string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(authEventPoint(event, role, outcome, time.Now()))
}

// RecordStoreSizes writes the current size of the in-memory revocation
// registry and reset token store.
func (c *Client) RecordStoreSizes(revoked, pendingResets int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(storeSizePoint(revoked, pendingResets, time.Now()))
}

func authEventPoint(event string, role auth.Role, outcome string, ts time.Time) *write.Point {
	tags := map[string]string{
		"event":   event,
		"outcome": outcome,
	}
	if role != "" {
		tags["role"] = string(role)
	}
	return write.NewPoint(measurementAuthEvents, tags, map[string]interface{}{"count": 1}, ts)
}

// storeSizePoint tags the gauges with the service name.
func storeSizePoint(revoked, pendingResets int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementAuthStores,
		map[string]string{"service": serviceTag},
		map[string]interface{}{
			"revoked_tokens": revoked,
			"pending_resets": pendingResets,
		},
		ts,
	)
}
