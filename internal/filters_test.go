package internal

import (
	"bytes"
	"log"
	"testing"

	"hookfeed/pkg/events"
)

func newTestFilterSet(t *testing.T, filters ...Filter) (*FilterSet, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	set, err := NewFilterSet(FiltersConfig{Filters: filters, Logger: log.New(&buf, "", 0)})
	if err != nil {
		t.Fatalf("new filter set: %v", err)
	}
	return set, &buf
}

// TestFilterSetMatchesNestedField tests that escaped dotted parameters reach nested fields.
func TestFilterSetMatchesNestedField(t *testing.T) {
	set, _ := newTestFilterSet(t, Filter{Name: "bots", When: `[sender.type] == "Bot"`})

	name, ok := set.Match(events.KindPush, []byte(`{"sender":{"type":"Bot"}}`))
	if !ok || name != "bots" {
		t.Fatalf("expected bots filter to match, got %q %v", name, ok)
	}
	if _, ok := set.Match(events.KindPush, []byte(`{"sender":{"type":"User"}}`)); ok {
		t.Fatalf("expected user sender to pass")
	}
}

// TestFilterSetKinds tests that a kind-restricted filter ignores other kinds.
func TestFilterSetKinds(t *testing.T) {
	set, _ := newTestFilterSet(t, Filter{Name: "drafts", When: `[pull_request.draft] == true`, Kinds: []string{"pull_request"}})
	body := []byte(`{"pull_request":{"draft":true}}`)

	if _, ok := set.Match(events.KindPullRequest, body); !ok {
		t.Fatalf("expected draft pull request to be dropped")
	}
	if _, ok := set.Match(events.KindMerge, body); ok {
		t.Fatalf("expected merge kind to bypass pull_request filter")
	}
}

// TestFilterSetArrayLength tests filters over array lengths.
func TestFilterSetArrayLength(t *testing.T) {
	set, _ := newTestFilterSet(t, Filter{Name: "empty-push", When: `[commits.#] == 0`})
	if _, ok := set.Match(events.KindPush, []byte(`{"commits":[]}`)); !ok {
		t.Fatalf("expected empty push to be dropped")
	}
	if _, ok := set.Match(events.KindPush, []byte(`{"commits":[{"id":"a"}]}`)); ok {
		t.Fatalf("expected non-empty push to pass")
	}
}

// TestFilterSetMissingFieldDoesNotMatch tests that evaluation errors never drop a delivery.
func TestFilterSetMissingFieldDoesNotMatch(t *testing.T) {
	set, logs := newTestFilterSet(t, Filter{Name: "missing", When: `missing == true`})
	if _, ok := set.Match(events.KindPush, []byte(`{}`)); ok {
		t.Fatalf("expected no match")
	}
	if logs.Len() == 0 {
		t.Fatalf("expected evaluation failure to be logged")
	}
	if _, ok := set.Match(events.KindPush, []byte(`not json`)); ok {
		t.Fatalf("expected invalid json to pass through to extraction")
	}
}

// TestNewFilterSetInvalidExpression tests that bad expressions fail at construction.
func TestNewFilterSetInvalidExpression(t *testing.T) {
	if _, err := NewFilterSet(FiltersConfig{Filters: []Filter{{Name: "bad", When: "(("}}}); err == nil {
		t.Fatalf("expected compile error")
	}
}

// TestNilFilterSet tests that a nil set never matches.
func TestNilFilterSet(t *testing.T) {
	var set *FilterSet
	if _, ok := set.Match(events.KindPush, []byte(`{}`)); ok {
		t.Fatalf("expected nil set to pass everything")
	}
}
