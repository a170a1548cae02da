package events

import (
	"testing"
	"time"
)

// TestFormatTimestamp tests the ordinal date rendering.
func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2021, time.April, 1, 21, 30, 0, 0, time.UTC), "1st April 2021 - 9:30 PM UTC"},
		{time.Date(2021, time.April, 2, 9, 5, 0, 0, time.UTC), "2nd April 2021 - 9:05 AM UTC"},
		{time.Date(2021, time.April, 13, 12, 0, 0, 0, time.UTC), "13th April 2021 - 12:00 PM UTC"},
		{time.Date(2021, time.April, 23, 0, 15, 0, 0, time.UTC), "23rd April 2021 - 12:15 AM UTC"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.at); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

// TestMessage tests the display line for each kind.
func TestMessage(t *testing.T) {
	at := time.Date(2021, time.April, 1, 21, 30, 0, 0, time.UTC)
	cases := []struct {
		record Record
		want   string
	}{
		{
			Record{Kind: KindPush, Actor: "alice", RefOrBranch: "refs/heads/main", ToBranch: "main", OccurredAt: at},
			"alice pushed to main on 1st April 2021 - 9:30 PM UTC",
		},
		{
			Record{Kind: KindPullRequest, Actor: "bob", FromBranch: "fix", ToBranch: "main", OccurredAt: at},
			"bob submitted a pull request from fix to main on 1st April 2021 - 9:30 PM UTC",
		},
		{
			Record{Kind: KindPullRequest, Action: "closed", Actor: "bob", FromBranch: "fix", ToBranch: "main", OccurredAt: at},
			"bob closed a pull request from fix to main on 1st April 2021 - 9:30 PM UTC",
		},
		{
			Record{Kind: KindPullRequest, Action: "labeled", Actor: "bob", FromBranch: "fix", ToBranch: "main", OccurredAt: at},
			"bob updated a pull request (labeled) from fix to main on 1st April 2021 - 9:30 PM UTC",
		},
		{
			Record{Kind: KindMerge, Actor: "carol", FromBranch: "fix", ToBranch: "main", OccurredAt: at},
			"carol merged branch fix to main on 1st April 2021 - 9:30 PM UTC",
		},
		{
			Record{Kind: KindMerge, Actor: "carol", RefOrBranch: "main", OccurredAt: at},
			"carol merged into main on 1st April 2021 - 9:30 PM UTC",
		},
	}
	for _, tc := range cases {
		if got := Message(tc.record); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}
