package worker

import (
	"encoding/json"

	"hookfeed/pkg/events"
)

// Event is one stored record delivered to the worker.
type Event struct {
	// Record is the decoded feed record.
	Record events.Record `json:"record"`
	// Topic is the topic the message was received on.
	Topic string `json:"topic"`
	// Metadata carries message metadata such as record_id, request_id and driver.
	Metadata map[string]string `json:"metadata"`
	// Payload is the raw JSON the record was decoded from.
	Payload json.RawMessage `json:"payload"`
}

// Kind is shorthand for evt.Record.Kind.
func (e *Event) Kind() events.Kind {
	if e == nil {
		return ""
	}
	return e.Record.Kind
}

// RequestID returns the ingest request id that produced the record, if known.
func (e *Event) RequestID() string {
	if e == nil {
		return ""
	}
	return e.Metadata["request_id"]
}
