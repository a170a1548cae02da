package worker

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MiddlewareFromWatermill adapts a Watermill handler middleware, such as
// middleware.Timeout or middleware.Recoverer, to a worker Middleware. The
// wrapped message carries the event payload and metadata.
func MiddlewareFromWatermill(m message.HandlerMiddleware) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, evt *Event) error {
			id := evt.Record.ID
			if id == "" {
				id = watermill.NewUUID()
			}
			msg := message.NewMessage(id, message.Payload(evt.Payload))
			for key, value := range evt.Metadata {
				msg.Metadata.Set(key, value)
			}
			msg.SetContext(ctx)
			wrapped := m(func(msg *message.Message) ([]*message.Message, error) {
				return nil, next(msg.Context(), evt)
			})
			_, err := wrapped(msg)
			return err
		}
	}
}
