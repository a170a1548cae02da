package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"hookfeed/pkg/events"

	"github.com/riverqueue/river"
)

// RecordJobKind is the River job kind the riverqueue publisher inserts. It
// must match watermill.riverqueue.kind in the server config.
var RecordJobKind = "hookfeed.record"

// RecordJobArgs is the args column of a record job: the record as JSON.
type RecordJobArgs struct {
	events.Record
}

// Kind implements river.JobArgs.
func (RecordJobArgs) Kind() string { return RecordJobKind }

// RiverRecordWorker runs a Handler for every record job.
type RiverRecordWorker struct {
	river.WorkerDefaults[RecordJobArgs]

	handler    Handler
	middleware []Middleware
}

// NewRiverRecordWorker wraps h with mw, outermost first.
func NewRiverRecordWorker(h Handler, mw ...Middleware) *RiverRecordWorker {
	return &RiverRecordWorker{handler: h, middleware: mw}
}

// Work decodes the job into an Event and runs the handler. A returned error
// lets River schedule the job's next attempt.
func (w *RiverRecordWorker) Work(ctx context.Context, job *river.Job[RecordJobArgs]) error {
	if w.handler == nil {
		return nil
	}
	evt, err := eventFromJob(job)
	if err != nil {
		return err
	}
	wrapped := w.handler
	for i := len(w.middleware) - 1; i >= 0; i-- {
		wrapped = w.middleware[i](wrapped)
	}
	return wrapped(ctx, evt)
}

func eventFromJob(job *river.Job[RecordJobArgs]) (*Event, error) {
	record := job.Args.Record
	metadata := map[string]string{}
	if job.JobRow != nil && len(job.Metadata) > 0 {
		var raw map[string]interface{}
		if err := json.Unmarshal(job.Metadata, &raw); err == nil {
			for key, value := range raw {
				if text, ok := value.(string); ok {
					metadata[key] = text
				}
			}
		}
	}
	if record.Kind == "" {
		record.Kind = events.Kind(metadata["event_kind"])
	}
	if !record.Kind.Valid() {
		return nil, fmt.Errorf("record job: %w: %q", events.ErrUnsupportedKind, string(record.Kind))
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	metadata["driver"] = "riverqueue"
	return &Event{
		Record:   record,
		Topic:    metadata["topic"],
		Metadata: metadata,
		Payload:  payload,
	}, nil
}
