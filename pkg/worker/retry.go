package worker

import "context"

// RetryDecision tells the worker whether to redeliver a failed message.
type RetryDecision struct {
	Retry bool
	Nack  bool
}

// RetryPolicy decides what happens to a message whose handling failed.
// evt is nil when the message could not be decoded.
type RetryPolicy interface {
	OnError(ctx context.Context, evt *Event, err error) RetryDecision
}

// NoRetry nacks every failure and leaves redelivery to the broker.
type NoRetry struct{}

func (NoRetry) OnError(ctx context.Context, evt *Event, err error) RetryDecision {
	return RetryDecision{Retry: false, Nack: true}
}

// DropUndecodable acks messages that can never be decoded and defers to
// Next for handler failures.
type DropUndecodable struct {
	Next RetryPolicy
}

func (p DropUndecodable) OnError(ctx context.Context, evt *Event, err error) RetryDecision {
	if evt == nil {
		return RetryDecision{}
	}
	if p.Next == nil {
		return NoRetry{}.OnError(ctx, evt, err)
	}
	return p.Next.OnError(ctx, evt, err)
}

// MaxDeliveries nacks a failed record until it has been attempted limit
// times, then acks it. Attempts are counted per record id in this process.
// Construct it with NewMaxDeliveries.
type MaxDeliveries struct {
	limit    int
	attempts *attemptCounter
}

// NewMaxDeliveries returns a policy giving each record at most limit attempts.
func NewMaxDeliveries(limit int) *MaxDeliveries {
	if limit <= 0 {
		limit = 1
	}
	return &MaxDeliveries{limit: limit, attempts: newAttemptCounter()}
}

func (p *MaxDeliveries) OnError(ctx context.Context, evt *Event, err error) RetryDecision {
	if evt == nil || evt.Record.ID == "" {
		return RetryDecision{}
	}
	if p.attempts.incr(evt.Record.ID) >= p.limit {
		p.attempts.reset(evt.Record.ID)
		return RetryDecision{}
	}
	return RetryDecision{Retry: true, Nack: true}
}
