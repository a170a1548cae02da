package main

import (
	"context"
	"expvar"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"hookfeed/internal"
	"hookfeed/pkg/api"
	"hookfeed/pkg/events"
	"hookfeed/pkg/storage/records"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	store, err := records.Open(records.Config{
		Driver:      config.Storage.Driver,
		DSN:         config.Storage.DSN,
		Table:       config.Storage.Table,
		AutoMigrate: config.Storage.AutoMigrateEnabled(),
	})
	if err != nil {
		logger.Fatalf("event store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("event store close: %v", err)
		}
	}()

	filters, err := internal.NewFilterSet(internal.FiltersConfig{
		Filters: config.Filters,
		Logger:  internal.NewLogger("filters"),
	})
	if err != nil {
		logger.Fatalf("compile filters: %v", err)
	}

	var queue *internal.PublishQueue
	if config.Watermill.Enabled {
		publisher, err := internal.NewPublisher(config.Watermill)
		if err != nil {
			logger.Fatalf("publisher: %v", err)
		}
		fanout := internal.NewFanout(publisher, config.Watermill, internal.NewLogger("fanout"))
		defer func() {
			if err := fanout.Close(); err != nil {
				logger.Printf("publisher close: %v", err)
			}
		}()
		queue = internal.NewPublishQueue(fanout, config.Watermill.PublishQueue, internal.NewLogger("fanout"))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := queue.Close(ctx); err != nil {
				logger.Printf("publish queue drain: %v", err)
			}
		}()
		logger.Printf("record fan-out enabled with prefix %s", config.Watermill.TopicPrefix)
	}

	ingest := &api.IngestHandler{
		Store:         store,
		Extractor:     events.NewExtractor(),
		Filters:       filters,
		Secret:        config.Webhook.Secret,
		PromoteMerges: config.Webhook.PromoteMergesEnabled(),
		MaxBodyBytes:  config.Server.MaxBodyBytes,
		DebugEvents:   config.Webhook.DebugEvents,
		Logger:        internal.NewLogger("webhook"),
	}
	if queue != nil {
		ingest.Publisher = queue
	}
	if config.Webhook.Secret == "" {
		logger.Printf("webhook secret not set; signatures are not verified")
	}

	limiter := internal.NewRateLimiter(config.Server.RateLimitRPS, config.Server.RateLimitBurst, 10*time.Minute)

	mux := http.NewServeMux()
	mux.Handle(config.Webhook.Path, limiter.Wrap(ingest))
	logger.Printf("webhook enabled on %s", config.Webhook.Path)
	mux.Handle(config.Events.Path, &api.EventsHandler{
		Store:        store,
		DefaultLimit: config.Events.DefaultLimit,
		MaxLimit:     config.Events.MaxLimit,
		Logger:       internal.NewLogger("events"),
	})
	logger.Printf("events endpoint enabled on %s", config.Events.Path)
	mux.Handle(config.Server.HealthPath, &api.HealthHandler{
		Store:  store,
		Logger: internal.NewLogger("health"),
	})
	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
		logger.Printf("metrics enabled on %s", config.Server.MetricsPath)
	}

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           internal.RequestID(mux),
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}
