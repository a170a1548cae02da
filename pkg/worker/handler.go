package worker

import "context"

// Handler processes one feed event.
type Handler func(ctx context.Context, evt *Event) error

// Middleware wraps a handler.
type Middleware func(Handler) Handler
