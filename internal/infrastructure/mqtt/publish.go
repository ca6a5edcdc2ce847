package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publish sends payload to topic and waits for the broker to acknowledge
// it (QoS 1 and 2) or for the 5 second publish timeout. Notifications
// must not be retained, or a reconnecting relay would deliver them again.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadBytes:
		return fmt.Errorf("%w: %d byte payload exceeds %d", ErrPublishFailed, len(payload), maxPayloadBytes)
	case !c.IsConnected():
		return ErrNotConnected
	}

	if err := wait(context.Background(), c.conn.Publish(topic, qos, retained, payload), publishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// PublishJSON encodes v and publishes it unretained at the configured QoS.
func (c *Client) PublishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, c.qos, false)
}
