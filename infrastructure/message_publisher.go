package infrastructure

import (
	"context"

	"github.com/nats-io/nats.go"
)

// MessagePublisher publishes payloads to a message bus subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishMsg(ctx context.Context, msg *nats.Msg) error
}
