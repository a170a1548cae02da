package events

import (
	"errors"
	"strings"
	"time"
)

// Record is the canonical, normalized form of one webhook delivery. Records
// are written once and never modified.
type Record struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"event_kind"`
	Repository  string    `json:"repository"`
	Actor       string    `json:"actor"`
	RefOrBranch string    `json:"ref_or_branch"`
	FromBranch  string    `json:"from_branch,omitempty"`
	ToBranch    string    `json:"to_branch,omitempty"`
	Action      string    `json:"action,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Summary     string    `json:"summary"`
	DeliveryID  string    `json:"delivery_id,omitempty"`
}

// Validate checks the fields every persisted record must carry.
func (r Record) Validate() error {
	if !r.Kind.Valid() {
		return errors.New("record kind is not supported")
	}
	if strings.TrimSpace(r.Repository) == "" {
		return errors.New("record repository is required")
	}
	return nil
}

// ShortBranch strips the refs/heads/ or refs/tags/ prefix from a git ref.
func ShortBranch(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}
