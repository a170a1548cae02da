package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hookfeed/pkg/events"
	worker "hookfeed/pkg/worker"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the hookfeed config")
	driver := flag.String("driver", "", "Override subscriber driver (amqp|nats|kafka|sql|gochannel)")
	concurrency := flag.Int("concurrency", 5, "Messages handled in parallel")
	flag.Parse()

	log.SetPrefix("hookfeed/feed-worker ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	subCfg, err := worker.LoadSubscriberConfig(*configPath)
	if err != nil {
		log.Fatalf("load subscriber config: %v", err)
	}
	if *driver != "" {
		subCfg.Driver = *driver
		subCfg.Drivers = nil
	}

	wk, err := worker.NewFromConfig(subCfg,
		worker.WithConcurrency(*concurrency),
		worker.WithRetry(worker.DropUndecodable{Next: worker.NewMaxDeliveries(3)}),
		worker.WithMiddleware(
			worker.MiddlewareFromWatermill(middleware.Recoverer),
			worker.MiddlewareFromWatermill(middleware.Timeout(10*time.Second)),
		),
		worker.WithListener(worker.Listener{
			OnStart: func(ctx context.Context) { log.Printf("worker started on %v", subCfg.Topics()) },
			OnExit:  func(ctx context.Context) { log.Println("worker stopped") },
			OnError: func(ctx context.Context, evt *worker.Event, err error) {
				log.Printf("worker error: %v", err)
			},
		}),
	)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer func() {
		if err := wk.Close(); err != nil {
			log.Printf("subscriber close: %v", err)
		}
	}()

	logRecord := func(ctx context.Context, evt *worker.Event) error {
		if driver := evt.Metadata["driver"]; driver != "" {
			log.Printf("driver=%s topic=%s", driver, evt.Topic)
		}
		log.Printf("[%s] %s", evt.Record.Repository, events.Message(evt.Record))
		return nil
	}
	for _, kind := range events.Kinds() {
		wk.HandleKind(kind, logRecord)
	}

	if err := wk.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
