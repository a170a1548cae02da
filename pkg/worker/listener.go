package worker

import "context"

// Listener hooks into the worker lifecycle. Nil callbacks are skipped.
type Listener struct {
	OnStart         func(ctx context.Context)
	OnExit          func(ctx context.Context)
	OnMessageStart  func(ctx context.Context, evt *Event)
	OnMessageFinish func(ctx context.Context, evt *Event, err error)
	// OnError receives decode failures with a nil evt.
	OnError func(ctx context.Context, evt *Event, err error)
}
