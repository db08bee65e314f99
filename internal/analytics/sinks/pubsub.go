package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/adhesive-catalog/internal/analytics"
)

// Publisher sends one message and returns the server-assigned id.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// TopicPublisher adapts a Pub/Sub topic publisher to Publisher and propagates
// the trace context through message attributes.
type TopicPublisher struct {
	publisher *pubsub.Publisher
}

// NewTopicPublisher wraps a Pub/Sub publisher.
func NewTopicPublisher(publisher *pubsub.Publisher) *TopicPublisher {
	return &TopicPublisher{publisher: publisher}
}

// Publish implements Publisher.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	if p == nil || p.publisher == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	msg := &pubsub.Message{Data: data, Attributes: make(map[string]string, len(attrs)+2)}
	for k, v := range attrs {
		msg.Attributes[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, &attributeCarrier{attrs: msg.Attributes})

	id, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages and stops the underlying publisher.
func (p *TopicPublisher) Stop() {
	if p != nil && p.publisher != nil {
		p.publisher.Stop()
	}
}

// PubSubSink publishes every search event as its own JSON message.
type PubSubSink struct {
	publisher Publisher
}

// NewPubSubSink returns a sink publishing through p.
func NewPubSubSink(p Publisher) *PubSubSink {
	return &PubSubSink{publisher: p}
}

// Consume publishes the batch, continuing past individual failures and
// returning them joined.
func (s *PubSubSink) Consume(ctx context.Context, batch []analytics.Event) error {
	var errs []error
	for _, evt := range batch {
		data, err := json.Marshal(evt)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal event %s: %w", evt.ID, err))
			continue
		}
		attrs := map[string]string{
			"event_type": "search",
			"empty":      fmt.Sprint(evt.Empty()),
		}
		if _, err := s.publisher.Publish(ctx, data, attrs); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", evt.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Close stops the publisher when it supports stopping.
func (s *PubSubSink) Close(context.Context) error {
	if stopper, ok := s.publisher.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	return nil
}

// attributeCarrier implements propagation.TextMapCarrier over message attributes.
type attributeCarrier struct {
	attrs map[string]string
}

func (c *attributeCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *attributeCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
