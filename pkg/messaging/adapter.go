package messaging

import (
	"context"
	"strings"
)

// DefaultChannel receives appointment lifecycle events.
const DefaultChannel = "medibook.appointments"

// BrokerAdapter turns a Broker into a Publisher that wraps every payload in a Message.
type BrokerAdapter struct {
	broker  Broker
	channel string
}

func NewBrokerAdapter(broker Broker, channel string) *BrokerAdapter {
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	return &BrokerAdapter{broker: broker, channel: channel}
}

func (a *BrokerAdapter) Channel() string {
	return a.channel
}

func (a *BrokerAdapter) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return a.broker.Publish(ctx, a.channel, Message{Type: eventType, Payload: payload})
}

func (a *BrokerAdapter) Close() error {
	return a.broker.Close()
}

// NopPublisher drops everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
