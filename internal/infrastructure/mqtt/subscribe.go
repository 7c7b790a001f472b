package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe registers topic with the broker and waits for the SUBACK.
//
// Messages matching topic are delivered to Handlers.OnMessage. Topics can
// include MQTT wildcards:
//   - + (single-level): "sensors/+/temperature"
//   - # (multi-level): "sensors/#"
func (c *Client) Subscribe(ctx context.Context, topic string, qos byte) error {
	token := c.client.Subscribe(topic, qos, c.dispatch)
	if err := waitToken(ctx, token, c.operationTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// dispatch forwards a paho message to OnMessage with panic recovery.
func (c *Client) dispatch(_ pahomqtt.Client, msg pahomqtt.Message) {
	handler := c.handlers.OnMessage
	if handler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT message handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}
	}()

	handler(msg.Topic(), msg.Payload())
}
