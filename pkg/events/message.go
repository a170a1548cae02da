package events

import (
	"fmt"
	"strings"
	"time"
)

// Message renders the one-line description shown by the feed display.
func Message(r Record) string {
	when := FormatTimestamp(r.OccurredAt)
	switch r.Kind {
	case KindPush:
		return fmt.Sprintf("%s pushed to %s on %s", r.Actor, branchOr(r.ToBranch, r.RefOrBranch), when)
	case KindPullRequest:
		return fmt.Sprintf("%s %s from %s to %s on %s", r.Actor, pullRequestPhrase(r.Action), r.FromBranch, r.ToBranch, when)
	case KindMerge:
		if r.FromBranch == "" {
			return fmt.Sprintf("%s merged into %s on %s", r.Actor, branchOr(r.ToBranch, r.RefOrBranch), when)
		}
		return fmt.Sprintf("%s merged branch %s to %s on %s", r.Actor, r.FromBranch, branchOr(r.ToBranch, r.RefOrBranch), when)
	default:
		return r.Summary
	}
}

var pullRequestPhrases = map[string]string{
	"":                   "submitted a pull request",
	"opened":             "submitted a pull request",
	"reopened":           "reopened a pull request",
	"closed":             "closed a pull request",
	"merged":             "merged a pull request",
	"edited":             "edited a pull request",
	"synchronize":        "pushed to a pull request",
	"ready_for_review":   "marked a pull request ready for review",
	"converted_to_draft": "converted a pull request to draft",
}

func pullRequestPhrase(action string) string {
	if phrase, ok := pullRequestPhrases[action]; ok {
		return phrase
	}
	return "updated a pull request (" + strings.ReplaceAll(action, "_", " ") + ")"
}

// FormatTimestamp renders t in UTC as "1st April 2021 - 9:30 PM UTC".
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d%s %s UTC", t.Day(), ordinalSuffix(t.Day()), t.Format("January 2006 - 3:04 PM"))
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func branchOr(branch, ref string) string {
	if branch != "" {
		return branch
	}
	return ShortBranch(ref)
}
