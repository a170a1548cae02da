package events

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2021, time.April, 1, 21, 30, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return NewExtractor(
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "rec-1" }),
	)
}

const pushBody = `{
	"ref": "refs/heads/main",
	"repository": {"name": "app", "full_name": "acme/app"},
	"pusher": {"name": "alice", "email": "alice@example.com"},
	"commits": [{"id": "a"}, {"id": "b"}, {"id": "c"}],
	"head_commit": {"timestamp": "1999-01-01T00:00:00Z"}
}`

const pullRequestBody = `{
	"action": "opened",
	"number": 12,
	"repository": {"full_name": "acme/app"},
	"pull_request": {
		"title": "Fix bug",
		"user": {"login": "bob"},
		"head": {"ref": "fix-bug"},
		"base": {"ref": "main"},
		"merged": false
	}
}`

const mergeBody = `{
	"action": "closed",
	"repository": {"full_name": "acme/app"},
	"pull_request": {
		"title": "Fix bug",
		"user": {"login": "bob"},
		"merged_by": {"login": "carol"},
		"head": {"ref": "fix-bug"},
		"base": {"ref": "main"},
		"merged": true
	}
}`

// TestExtractPush tests the push field mapping and summary.
func TestExtractPush(t *testing.T) {
	record, err := newTestExtractor().Extract(KindPush, []byte(pushBody))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if record.Kind != KindPush {
		t.Fatalf("expected push kind, got %q", record.Kind)
	}
	if record.Repository != "acme/app" {
		t.Fatalf("expected repository acme/app, got %q", record.Repository)
	}
	if record.Actor != "alice" {
		t.Fatalf("expected actor alice, got %q", record.Actor)
	}
	if record.RefOrBranch != "refs/heads/main" {
		t.Fatalf("expected full ref, got %q", record.RefOrBranch)
	}
	if !strings.Contains(record.Summary, "3") || !strings.Contains(record.Summary, "main") {
		t.Fatalf("expected summary to mention commit count and branch, got %q", record.Summary)
	}
	if record.ID != "rec-1" {
		t.Fatalf("expected generated id, got %q", record.ID)
	}
}

// TestExtractPushCommitCountNumber tests that a numeric commits field is accepted.
func TestExtractPushCommitCountNumber(t *testing.T) {
	body := `{"ref":"refs/heads/main","repository":{"full_name":"acme/app"},"pusher":{"name":"alice"},"commits":1}`
	record, err := newTestExtractor().Extract(KindPush, []byte(body))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if record.Summary != "pushed 1 commit to main" {
		t.Fatalf("unexpected summary %q", record.Summary)
	}
}

// TestExtractIgnoresPayloadTimestamps tests that OccurredAt comes from the clock.
func TestExtractIgnoresPayloadTimestamps(t *testing.T) {
	record, err := newTestExtractor().Extract(KindPush, []byte(pushBody))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !record.OccurredAt.Equal(fixedNow) {
		t.Fatalf("expected occurred_at %v, got %v", fixedNow, record.OccurredAt)
	}
}

// TestExtractPullRequest tests the pull_request field mapping and summary.
func TestExtractPullRequest(t *testing.T) {
	record, err := newTestExtractor().Extract(KindPullRequest, []byte(pullRequestBody))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if record.Actor != "bob" {
		t.Fatalf("expected actor bob, got %q", record.Actor)
	}
	if record.RefOrBranch != "fix-bug -> main" {
		t.Fatalf("expected branch pair, got %q", record.RefOrBranch)
	}
	if record.FromBranch != "fix-bug" || record.ToBranch != "main" {
		t.Fatalf("unexpected branches from=%q to=%q", record.FromBranch, record.ToBranch)
	}
	if !strings.Contains(record.Summary, "opened") || !strings.Contains(record.Summary, "Fix bug") {
		t.Fatalf("expected summary to mention action and title, got %q", record.Summary)
	}
}

// TestExtractPullRequestMergedAction tests that a closed and merged PR reports "merged".
func TestExtractPullRequestMergedAction(t *testing.T) {
	record, err := newTestExtractor().Extract(KindPullRequest, []byte(mergeBody))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.HasPrefix(record.Summary, "merged pull request") {
		t.Fatalf("unexpected summary %q", record.Summary)
	}
	if record.Action != "merged" {
		t.Fatalf("expected action merged, got %q", record.Action)
	}
}

// TestExtractPullRequestKeepsAction tests that non-opening actions are kept on
// the record and reach the display line.
func TestExtractPullRequestKeepsAction(t *testing.T) {
	cases := []struct {
		action string
		want   string
	}{
		{"closed", "bob closed a pull request from fix-bug to main on "},
		{"labeled", "bob updated a pull request (labeled) from fix-bug to main on "},
		{"synchronize", "bob pushed to a pull request from fix-bug to main on "},
	}
	for _, tc := range cases {
		body := strings.Replace(pullRequestBody, `"action": "opened"`, `"action": "`+tc.action+`"`, 1)
		record, err := newTestExtractor().Extract(KindPullRequest, []byte(body))
		if err != nil {
			t.Fatalf("extract %s: %v", tc.action, err)
		}
		if record.Action != tc.action {
			t.Fatalf("expected action %q, got %q", tc.action, record.Action)
		}
		if got := Message(record); !strings.HasPrefix(got, tc.want) {
			t.Fatalf("expected message prefix %q, got %q", tc.want, got)
		}
	}
}

// TestExtractMerge tests the merge field mapping, preferring merged_by.
func TestExtractMerge(t *testing.T) {
	record, err := newTestExtractor().Extract(KindMerge, []byte(mergeBody))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if record.Actor != "carol" {
		t.Fatalf("expected merged_by actor, got %q", record.Actor)
	}
	if record.RefOrBranch != "main" {
		t.Fatalf("expected merged-into branch, got %q", record.RefOrBranch)
	}
	if record.Summary != "merged fix-bug into main" {
		t.Fatalf("unexpected summary %q", record.Summary)
	}
}

// TestExtractMergeFallsBackToAuthor tests the actor fallback when merged_by is null.
func TestExtractMergeFallsBackToAuthor(t *testing.T) {
	body := `{"repository":{"full_name":"acme/app"},"pull_request":{"user":{"login":"bob"},"merged_by":null,"base":{"ref":"main"}}}`
	record, err := newTestExtractor().Extract(KindMerge, []byte(body))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if record.Actor != "bob" {
		t.Fatalf("expected author fallback, got %q", record.Actor)
	}
	if record.Summary != "merge completed into main" {
		t.Fatalf("unexpected summary %q", record.Summary)
	}
}

// TestExtractMissingFields tests that every missing required field fails without a record.
func TestExtractMissingFields(t *testing.T) {
	cases := []struct {
		name  string
		kind  Kind
		body  string
		field string
	}{
		{"push repository", KindPush, `{"ref":"refs/heads/main","pusher":{"name":"a"}}`, "repository.full_name"},
		{"push pusher", KindPush, `{"ref":"refs/heads/main","repository":{"full_name":"acme/app"}}`, "pusher.name"},
		{"push ref", KindPush, `{"repository":{"full_name":"acme/app"},"pusher":{"name":"a"}}`, "ref"},
		{"pr author", KindPullRequest, `{"action":"opened","repository":{"full_name":"acme/app"},"pull_request":{"title":"t","head":{"ref":"h"},"base":{"ref":"b"}}}`, "pull_request.user.login"},
		{"pr base", KindPullRequest, `{"action":"opened","repository":{"full_name":"acme/app"},"pull_request":{"title":"t","user":{"login":"u"},"head":{"ref":"h"}}}`, "pull_request.base.ref"},
		{"pr action", KindPullRequest, `{"repository":{"full_name":"acme/app"},"pull_request":{"title":"t","user":{"login":"u"},"head":{"ref":"h"},"base":{"ref":"b"}}}`, "action"},
		{"pr title", KindPullRequest, `{"action":"opened","repository":{"full_name":"acme/app"},"pull_request":{"title":"  ","user":{"login":"u"},"head":{"ref":"h"},"base":{"ref":"b"}}}`, "pull_request.title"},
		{"merge base", KindMerge, `{"repository":{"full_name":"acme/app"},"pull_request":{"user":{"login":"u"}}}`, "pull_request.base.ref"},
		{"merge actor", KindMerge, `{"repository":{"full_name":"acme/app"},"pull_request":{"base":{"ref":"main"}}}`, "pull_request.merged_by.login"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := newTestExtractor().Extract(tc.kind, []byte(tc.body))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("expected malformed payload error, got %v", err)
			}
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingFieldError, got %T", err)
			}
			if missing.Field != tc.field {
				t.Fatalf("expected missing field %q, got %q", tc.field, missing.Field)
			}
			if record != (Record{}) {
				t.Fatalf("expected no partial record, got %+v", record)
			}
		})
	}
}

// TestExtractInvalidJSON tests that undecodable bodies are malformed payloads.
func TestExtractInvalidJSON(t *testing.T) {
	for _, body := range []string{`{not json`, `[1,2,3]`, `"push"`} {
		if _, err := newTestExtractor().Extract(KindPush, []byte(body)); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("expected malformed payload for %q, got %v", body, err)
		}
	}
}

// TestExtractEveryKind tests that each supported kind has an extraction path.
func TestExtractEveryKind(t *testing.T) {
	bodies := map[Kind]string{
		KindPush:        pushBody,
		KindPullRequest: pullRequestBody,
		KindMerge:       mergeBody,
	}
	for _, kind := range Kinds() {
		body, ok := bodies[kind]
		if !ok {
			t.Fatalf("no fixture for kind %q", kind)
		}
		record, err := newTestExtractor().Extract(kind, []byte(body))
		if err != nil {
			t.Fatalf("extract %s: %v", kind, err)
		}
		if record.Kind != kind || record.Repository == "" {
			t.Fatalf("expected kind %q with repository, got %+v", kind, record)
		}
		if err := record.Validate(); err != nil {
			t.Fatalf("validate %s: %v", kind, err)
		}
	}
}

// TestExtractUnknownKind tests that an unclassified kind is rejected.
func TestExtractUnknownKind(t *testing.T) {
	if _, err := newTestExtractor().Extract(Kind("star"), []byte(`{}`)); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected unsupported kind, got %v", err)
	}
}
