package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"presenca/internal/broker"
	"presenca/internal/config"
	"presenca/internal/data"
	"presenca/internal/ops"
	"presenca/internal/persist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Persist] Config error: %v", err)
	}

	log.Printf("[Persist] Starting - db: %s, prefetch: %d", cfg.Mongo.DBName, cfg.Rabbit.Prefetch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := data.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Fatalf("[Persist] Mongo error: %v", err)
	}
	defer db.Close(context.Background())
	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatalf("[Persist] Index error: %v", err)
	}

	conn, err := broker.Dial(cfg.Rabbit.URL, 5)
	if err != nil {
		log.Fatalf("[Persist] Broker error: %v", err)
	}
	defer conn.Close()
	if err := conn.DeclareQueues(cfg.Rabbit.RecognitionsQueue); err != nil {
		log.Fatalf("[Persist] Queue error: %v", err)
	}
	if err := conn.Qos(cfg.Rabbit.Prefetch); err != nil {
		log.Fatalf("[Persist] Qos error: %v", err)
	}

	go ops.Serve(cfg.OpsAddr, "Persist")

	worker := persist.NewWorker(persist.Config{
		Presences: db.Presences,
		Frames:    db.Frames,
		Counters:  db.Counters,
		Dedup:     broker.NewDedup(4096, 10*time.Minute),
	})

	consumer := broker.NewConsumer(conn, cfg.Rabbit.RecognitionsQueue)
	log.Printf("[Persist] Waiting for messages on %q", cfg.Rabbit.RecognitionsQueue)
	if err := consumer.Run(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[Persist] Consumer error: %v", err)
	}
	log.Printf("[Persist] Shutdown complete")
}
