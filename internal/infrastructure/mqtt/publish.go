package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic and waits for the broker acknowledgement
// appropriate to qos (none for QoS 0).
//
// Inputs are not validated here; callers run ValidatePublish first so an
// invalid message never reaches the wire.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	token := c.client.Publish(topic, qos, retain, payload)
	if err := waitToken(ctx, token, c.operationTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// ValidatePublish checks a publish request before it is queued.
//
// Returns ErrInvalidTopic, ErrInvalidQoS or ErrPayloadTooLarge.
func ValidatePublish(topic string, payload []byte, qos byte) error {
	if err := ValidateTopicName(topic); err != nil {
		return err
	}
	if err := ValidateQoS(qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	return nil
}
