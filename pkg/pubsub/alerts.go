package pubsub

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// alertOrderingKey keeps status transitions in the order they were observed.
const alertOrderingKey = "platform-status"

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type messagePublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

// AlertPublisher sends operator alert payloads to a single topic and waits for the server ack.
type AlertPublisher struct {
	publisher *pubsub.Publisher
	override  messagePublisher
}

// Publish sends data with attributes and returns the server-assigned message id. A failed
// publish pauses the ordering key, so it is resumed before returning the error.
func (p *AlertPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	pub := p.messagePublisher()
	if pub == nil {
		return "", errors.New("alert publisher not initialized")
	}
	res := pub.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs, OrderingKey: alertOrderingKey})
	if res == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := res.Get(ctx)
	if err != nil {
		pub.ResumePublish(alertOrderingKey)
		return "", err
	}
	return id, nil
}

func (p *AlertPublisher) messagePublisher() messagePublisher {
	switch {
	case p == nil:
		return nil
	case p.override != nil:
		return p.override
	case p.publisher == nil:
		return nil
	}
	return gcpPublisher{p.publisher}
}

type gcpPublisher struct{ *pubsub.Publisher }

func (g gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return g.Publisher.Publish(ctx, msg)
}
