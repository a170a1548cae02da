package controllers

import (
	"context"
	"log"

	"hookfeed/pkg/worker"
)

func HandlePush(ctx context.Context, evt *worker.Event) error {
	log.Printf("push repo=%s actor=%s ref=%s", evt.Record.Repository, evt.Record.Actor, evt.Record.RefOrBranch)
	return nil
}

func HandlePullRequest(ctx context.Context, evt *worker.Event) error {
	log.Printf("pull_request repo=%s actor=%s %s -> %s", evt.Record.Repository, evt.Record.Actor, evt.Record.FromBranch, evt.Record.ToBranch)
	return nil
}

func HandleMerge(ctx context.Context, evt *worker.Event) error {
	log.Printf("merge repo=%s actor=%s into=%s", evt.Record.Repository, evt.Record.Actor, evt.Record.ToBranch)
	return nil
}
