package internal

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"hookfeed/pkg/events"
)

type blockingPublisher struct {
	started chan events.Record
	release chan struct{}
	seen    []context.Context
}

func (p *blockingPublisher) PublishRecord(ctx context.Context, record events.Record) error {
	p.seen = append(p.seen, ctx)
	p.started <- record
	<-p.release
	return nil
}

// TestPublishQueueDoesNotWaitForRetries tests that a failing driver with
// retries configured costs the caller nothing, while every attempt still runs.
func TestPublishQueueDoesNotWaitForRetries(t *testing.T) {
	stub := &stubPublisher{failures: 10}
	registerStub(t, "unreachable", stub, nil)

	cfg := WatermillConfig{
		Driver:       "unreachable",
		PublishRetry: PublishRetryConfig{Attempts: 3, DelayMS: 200},
	}
	pub, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	fanout := NewFanout(pub, cfg, log.New(io.Discard, "", 0))
	queue := NewPublishQueue(fanout, PublishQueueConfig{Size: 4, Workers: 1}, log.New(io.Discard, "", 0))

	start := time.Now()
	if err := queue.PublishRecord(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("expected enqueue to return immediately, took %v", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := queue.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if stub.failures != 7 {
		t.Fatalf("expected 3 attempts in the background, %d failures left", stub.failures)
	}
}

// TestPublishQueueFullAndClosed tests that overflow and late records are refused.
func TestPublishQueueFullAndClosed(t *testing.T) {
	next := &blockingPublisher{started: make(chan events.Record, 4), release: make(chan struct{})}
	queue := NewPublishQueue(next, PublishQueueConfig{Size: 1, Workers: 1}, log.New(io.Discard, "", 0))

	ctx := context.Background()
	if err := queue.PublishRecord(ctx, sampleRecord()); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	<-next.started
	if err := queue.PublishRecord(ctx, sampleRecord()); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if err := queue.PublishRecord(ctx, sampleRecord()); !errors.Is(err, ErrPublishQueueFull) {
		t.Fatalf("expected full queue, got %v", err)
	}

	close(next.release)
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := queue.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(next.seen) != 2 {
		t.Fatalf("expected 2 records published, got %d", len(next.seen))
	}
	if err := queue.PublishRecord(ctx, sampleRecord()); !errors.Is(err, ErrPublishQueueClosed) {
		t.Fatalf("expected closed queue, got %v", err)
	}
}

// TestPublishQueueDetachesCancellation tests that a finished request does not
// cancel the publish but its request id still travels with the record.
func TestPublishQueueDetachesCancellation(t *testing.T) {
	next := &blockingPublisher{started: make(chan events.Record, 1), release: make(chan struct{})}
	close(next.release)
	queue := NewPublishQueue(next, PublishQueueConfig{Size: 1}, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(ContextWithRequestID(context.Background(), "req-9"))
	cancel()
	if err := queue.PublishRecord(ctx, sampleRecord()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := queue.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(next.seen) != 1 {
		t.Fatalf("expected one publish, got %d", len(next.seen))
	}
	if err := next.seen[0].Err(); err != nil {
		t.Fatalf("expected publish context to outlive the request, got %v", err)
	}
	if got := RequestIDFromContext(next.seen[0]); got != "req-9" {
		t.Fatalf("expected request id req-9, got %q", got)
	}
}
