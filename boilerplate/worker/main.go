package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hookfeed/boilerplate/worker/controllers"
	"hookfeed/pkg/events"
	"hookfeed/pkg/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the hookfeed config")
	flag.Parse()

	log.SetPrefix("hookfeed/worker-boilerplate ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	subCfg, err := worker.LoadSubscriberConfig(*configPath)
	if err != nil {
		log.Fatalf("load subscriber config: %v", err)
	}

	sub, err := worker.BuildSubscriber(subCfg)
	if err != nil {
		log.Fatalf("subscriber: %v", err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Printf("subscriber close: %v", err)
		}
	}()

	wk := worker.New(
		worker.WithSubscriber(sub),
		worker.WithTopicPrefix(subCfg.TopicPrefix),
		worker.WithConcurrency(5),
		worker.WithRetry(worker.DropUndecodable{}),
	)

	wk.HandleKind(events.KindPush, controllers.HandlePush)
	wk.HandleKind(events.KindPullRequest, controllers.HandlePullRequest)
	wk.HandleKind(events.KindMerge, controllers.HandleMerge)

	if err := wk.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
