package events

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one of the supported webhook event types.
type Kind string

const (
	KindPush        Kind = "push"
	KindPullRequest Kind = "pull_request"
	KindMerge       Kind = "merge"
)

// ErrUnsupportedKind is returned when a kind identifier does not map to a supported Kind.
var ErrUnsupportedKind = errors.New("unsupported event kind")

var kindsByIdentifier = map[string]Kind{
	string(KindPush):        KindPush,
	string(KindPullRequest): KindPullRequest,
	string(KindMerge):       KindMerge,
}

// Kinds returns the supported kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindPush, KindPullRequest, KindMerge}
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := kindsByIdentifier[string(k)]
	return ok
}

func (k Kind) String() string {
	return string(k)
}

// RawEvent is an unprocessed delivery: the kind identifier taken from the
// request and the body exactly as received.
type RawEvent struct {
	KindID     string
	DeliveryID string
	Body       []byte
}

// Classify maps the kind identifier of raw to a supported Kind. It only looks
// at the identifier; the body is never inspected.
func Classify(raw RawEvent) (Kind, error) {
	id := strings.ToLower(strings.TrimSpace(raw.KindID))
	if id == "" {
		return "", fmt.Errorf("%w: missing kind identifier", ErrUnsupportedKind)
	}
	kind, ok := kindsByIdentifier[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, raw.KindID)
	}
	return kind, nil
}
