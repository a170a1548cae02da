package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/uuid"
)

// ErrMalformedPayload is returned when a body cannot be decoded or lacks a
// field required by its kind.
var ErrMalformedPayload = errors.New("malformed payload")

// MissingFieldError names the required field that was absent or empty.
type MissingFieldError struct {
	Kind  Kind
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("malformed %s payload: missing field %s", e.Kind, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMalformedPayload
}

// Extractor turns classified payloads into records. The zero value is not
// usable; construct one with NewExtractor.
type Extractor struct {
	now   func() time.Time
	newID func() string
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithClock overrides the clock used for OccurredAt.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how record ids are produced.
func WithIDGenerator(fn func() string) ExtractorOption {
	return func(e *Extractor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewExtractor creates an Extractor stamping records with the server clock.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds a Record of the given kind from body. OccurredAt is always
// the extractor's clock; timestamps inside the payload are ignored.
func (e *Extractor) Extract(kind Kind, body []byte) (Record, error) {
	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return Record{}, fmt.Errorf("%w: %s body is not valid json: %v", ErrMalformedPayload, kind, err)
	}
	if _, ok := root.(map[string]interface{}); !ok {
		return Record{}, fmt.Errorf("%w: %s body must be a json object", ErrMalformedPayload, kind)
	}
	doc := document{kind: kind, root: root}

	var (
		record Record
		err    error
	)
	switch kind {
	case KindPush:
		record, err = extractPush(doc)
	case KindPullRequest:
		record, err = extractPullRequest(doc)
	case KindMerge:
		record, err = extractMerge(doc)
	default:
		return Record{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, string(kind))
	}
	if err != nil {
		return Record{}, err
	}

	record.ID = e.newID()
	record.Kind = kind
	record.OccurredAt = e.now().UTC()
	return record, nil
}

func extractPush(doc document) (Record, error) {
	repo, err := doc.repository()
	if err != nil {
		return Record{}, err
	}
	actor, err := doc.firstOf("pusher.name", "sender.login")
	if err != nil {
		return Record{}, err
	}
	ref, err := doc.require("ref")
	if err != nil {
		return Record{}, err
	}

	branch := ShortBranch(ref)
	commits := doc.length("commits")
	noun := "commits"
	if commits == 1 {
		noun = "commit"
	}
	return Record{
		Repository:  repo,
		Actor:       actor,
		RefOrBranch: ref,
		ToBranch:    branch,
		Summary:     fmt.Sprintf("pushed %d %s to %s", commits, noun, branch),
	}, nil
}

func extractPullRequest(doc document) (Record, error) {
	repo, err := doc.repository()
	if err != nil {
		return Record{}, err
	}
	actor, err := doc.require("pull_request.user.login")
	if err != nil {
		return Record{}, err
	}
	head, err := doc.require("pull_request.head.ref")
	if err != nil {
		return Record{}, err
	}
	base, err := doc.require("pull_request.base.ref")
	if err != nil {
		return Record{}, err
	}
	action, err := doc.require("action")
	if err != nil {
		return Record{}, err
	}
	title, err := doc.require("pull_request.title")
	if err != nil {
		return Record{}, err
	}

	if action == "closed" && doc.boolean("pull_request.merged") {
		action = "merged"
	}
	summary := fmt.Sprintf("%s pull request: %s", action, title)
	if number := doc.number("pull_request.number", "number"); number > 0 {
		summary = fmt.Sprintf("%s pull request #%d: %s", action, number, title)
	}
	return Record{
		Repository:  repo,
		Actor:       actor,
		RefOrBranch: head + " -> " + base,
		FromBranch:  head,
		ToBranch:    base,
		Action:      action,
		Summary:     summary,
	}, nil
}

func extractMerge(doc document) (Record, error) {
	repo, err := doc.repository()
	if err != nil {
		return Record{}, err
	}
	actor, err := doc.firstOf("pull_request.merged_by.login", "pull_request.user.login")
	if err != nil {
		return Record{}, err
	}
	base, err := doc.require("pull_request.base.ref")
	if err != nil {
		return Record{}, err
	}

	head, _ := doc.str("pull_request.head.ref")
	summary := "merge completed into " + base
	if head != "" {
		summary = fmt.Sprintf("merged %s into %s", head, base)
	}
	return Record{
		Repository:  repo,
		Actor:       actor,
		RefOrBranch: base,
		FromBranch:  head,
		ToBranch:    base,
		Summary:     summary,
	}, nil
}

// document resolves dotted field paths against a decoded JSON body.
type document struct {
	kind Kind
	root interface{}
}

func (d document) get(field string) (interface{}, bool) {
	value, err := jsonpath.Get("$."+field, d.root)
	if err != nil || value == nil {
		return nil, false
	}
	return value, true
}

func (d document) str(field string) (string, bool) {
	value, ok := d.get(field)
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

func (d document) require(field string) (string, error) {
	if value, ok := d.str(field); ok {
		return value, nil
	}
	return "", &MissingFieldError{Kind: d.kind, Field: field}
}

// firstOf returns the first non-empty field; the error names the preferred one.
func (d document) firstOf(fields ...string) (string, error) {
	for _, field := range fields {
		if value, ok := d.str(field); ok {
			return value, nil
		}
	}
	return "", &MissingFieldError{Kind: d.kind, Field: fields[0]}
}

func (d document) repository() (string, error) {
	return d.firstOf("repository.full_name", "repository.name")
}

func (d document) length(field string) int {
	value, ok := d.get(field)
	if !ok {
		return 0
	}
	switch typed := value.(type) {
	case []interface{}:
		return len(typed)
	case float64:
		return int(typed)
	default:
		return 0
	}
}

func (d document) boolean(field string) bool {
	value, ok := d.get(field)
	if !ok {
		return false
	}
	b, _ := value.(bool)
	return b
}

func (d document) number(fields ...string) int64 {
	for _, field := range fields {
		value, ok := d.get(field)
		if !ok {
			continue
		}
		if n, ok := value.(float64); ok && n > 0 {
			return int64(n)
		}
	}
	return 0
}
