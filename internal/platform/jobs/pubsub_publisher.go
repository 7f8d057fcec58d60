package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/pravesh-commerce/api/internal/services"
)

// PubSubOrderPublisher publishes order lifecycle events to a Pub/Sub topic.
// Consumers include the notification worker and the analytics pipeline.
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues an order event message on the configured topic.
// Attributes carry the routing fields so subscribers can filter without
// decoding the payload.
func (p *PubSubOrderPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "status", event.CurrentStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.OrderEventPublisher = (*PubSubOrderPublisher)(nil)
