package worker

import (
	"encoding/json"
	"fmt"

	"hookfeed/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Codec decodes broker messages into Events.
type Codec interface {
	Decode(topic string, msg *message.Message) (*Event, error)
}

// DefaultCodec decodes the JSON record published by the ingest server.
// A missing event_kind in the body is taken from message metadata.
type DefaultCodec struct{}

// Decode unmarshals msg into an Event, rejecting records of unknown kinds.
func (DefaultCodec) Decode(topic string, msg *message.Message) (*Event, error) {
	var record events.Record
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		return nil, fmt.Errorf("decode record on %s: %w", topic, err)
	}
	if record.Kind == "" {
		record.Kind = events.Kind(msg.Metadata.Get("event_kind"))
	}
	if record.ID == "" {
		record.ID = msg.Metadata.Get("record_id")
	}
	if !record.Kind.Valid() {
		return nil, fmt.Errorf("decode record on %s: %w: %q", topic, events.ErrUnsupportedKind, string(record.Kind))
	}

	metadata := make(map[string]string, len(msg.Metadata))
	for key, value := range msg.Metadata {
		metadata[key] = value
	}
	return &Event{
		Record:   record,
		Topic:    topic,
		Metadata: metadata,
		Payload:  json.RawMessage(msg.Payload),
	}, nil
}
