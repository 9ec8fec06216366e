package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"presenca/internal/broker"
	"presenca/internal/config"
	"presenca/internal/data"
	"presenca/internal/objstore"
	"presenca/internal/ops"
	"presenca/internal/recognize"
	"presenca/internal/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Recognize] Config error: %v", err)
	}

	threshold, err := vision.ThresholdFor(cfg.Models.ModelName)
	if err != nil {
		log.Fatalf("[Recognize] %v", err)
	}
	log.Printf("[Recognize] Starting - model: %s, threshold: %.3f, vote ratio: %.2f",
		cfg.Models.ModelName, threshold, cfg.Models.MatchVoteRatio)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := objstore.New(objstore.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	})
	if err != nil {
		log.Fatalf("[Recognize] Object store error: %v", err)
	}
	if err := store.EnsureBucket(ctx, cfg.Minio.RecognitionsBucket); err != nil {
		log.Fatalf("[Recognize] Bucket error: %v", err)
	}

	db, err := data.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Fatalf("[Recognize] Mongo error: %v", err)
	}
	defer db.Close(context.Background())

	conn, err := broker.Dial(cfg.Rabbit.URL, 5)
	if err != nil {
		log.Fatalf("[Recognize] Broker error: %v", err)
	}
	defer conn.Close()
	if err := conn.DeclareQueues(cfg.Rabbit.DetectionsQueue, cfg.Rabbit.RecognitionsQueue); err != nil {
		log.Fatalf("[Recognize] Queue error: %v", err)
	}
	if err := conn.Qos(cfg.Rabbit.Prefetch); err != nil {
		log.Fatalf("[Recognize] Qos error: %v", err)
	}

	go ops.Serve(cfg.OpsAddr, "Recognize")

	worker := recognize.NewWorker(recognize.Config{
		Store:      store,
		Pub:        broker.NewPublisher(conn, 3),
		Embedder:   vision.NewEmbedderClient(cfg.Models.EmbedderURL, cfg.Models.ModelName),
		Identities: db.Identities,
		Resolver:   recognize.NewResolver(db.Identities, threshold, cfg.Models.MatchVoteRatio),
		InBucket:   cfg.Minio.DetectionsBucket,
		OutBucket:  cfg.Minio.RecognitionsBucket,
		OutQueue:   cfg.Rabbit.RecognitionsQueue,
	})

	consumer := broker.NewConsumer(conn, cfg.Rabbit.DetectionsQueue)
	log.Printf("[Recognize] Waiting for messages on %q", cfg.Rabbit.DetectionsQueue)
	if err := consumer.Run(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[Recognize] Consumer error: %v", err)
	}
	log.Printf("[Recognize] Shutdown complete")
}
