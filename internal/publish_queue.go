package internal

import (
	"context"
	"errors"
	"log"
	"sync"

	"hookfeed/pkg/events"
)

// ErrPublishQueueFull is returned when a record arrives while every slot of
// the queue is taken.
var ErrPublishQueueFull = errors.New("publish queue is full")

// ErrPublishQueueClosed is returned for records offered after Close.
var ErrPublishQueueClosed = errors.New("publish queue is closed")

// RecordPublisher publishes one stored record.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, record events.Record) error
}

type queuedRecord struct {
	ctx    context.Context
	record events.Record
}

// PublishQueue hands records to a RecordPublisher from background workers so
// that slow or failing drivers, and their retries, never hold up the caller.
type PublishQueue struct {
	next   RecordPublisher
	jobs   chan queuedRecord
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPublishQueue starts workers goroutines draining a queue of size slots.
func NewPublishQueue(next RecordPublisher, cfg PublishQueueConfig, logger *log.Logger) *PublishQueue {
	if logger == nil {
		logger = log.Default()
	}
	size := cfg.Size
	if size <= 0 {
		size = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	q := &PublishQueue{
		next:   next,
		jobs:   make(chan queuedRecord, size),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// PublishRecord enqueues record without waiting for it to be published. The
// record keeps the values of ctx but not its cancellation.
func (q *PublishQueue) PublishRecord(ctx context.Context, record events.Record) error {
	if q == nil {
		return nil
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrPublishQueueClosed
	}
	select {
	case q.jobs <- queuedRecord{ctx: context.WithoutCancel(ctx), record: record}:
		return nil
	default:
		IncPublishDropped()
		return ErrPublishQueueFull
	}
}

// Close stops accepting records and waits for queued ones to be published or
// for ctx to end, whichever comes first.
func (q *PublishQueue) Close(ctx context.Context) error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *PublishQueue) work() {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.next.PublishRecord(job.ctx, job.record); err != nil {
			q.logger.Printf("publish record %s failed: %v", job.record.ID, err)
		}
	}
}
