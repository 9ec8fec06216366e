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
	"presenca/internal/detect"
	"presenca/internal/objstore"
	"presenca/internal/ops"
	"presenca/internal/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Detect] Config error: %v", err)
	}

	log.Printf("[Detect] Starting - detector: %s, prefetch: %d", cfg.Models.DetectorURL, cfg.Rabbit.Prefetch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := objstore.New(objstore.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	})
	if err != nil {
		log.Fatalf("[Detect] Object store error: %v", err)
	}
	if err := store.EnsureBucket(ctx, cfg.Minio.DetectionsBucket); err != nil {
		log.Fatalf("[Detect] Bucket error: %v", err)
	}

	db, err := data.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Fatalf("[Detect] Mongo error: %v", err)
	}
	defer db.Close(context.Background())
	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatalf("[Detect] Index error: %v", err)
	}

	conn, err := broker.Dial(cfg.Rabbit.URL, 5)
	if err != nil {
		log.Fatalf("[Detect] Broker error: %v", err)
	}
	defer conn.Close()
	if err := conn.DeclareQueues(cfg.Rabbit.FramesQueue, cfg.Rabbit.DetectionsQueue); err != nil {
		log.Fatalf("[Detect] Queue error: %v", err)
	}
	if err := conn.Qos(cfg.Rabbit.Prefetch); err != nil {
		log.Fatalf("[Detect] Qos error: %v", err)
	}

	go ops.Serve(cfg.OpsAddr, "Detect")

	worker := detect.NewWorker(detect.Config{
		Store:     store,
		Pub:       broker.NewPublisher(conn, 3),
		Detector:  vision.NewDetectorClient(cfg.Models.DetectorURL, cfg.Models.MinConfidence, cfg.Models.ModelSelection),
		Frames:    db.Frames,
		Counters:  db.Counters,
		InBucket:  cfg.Minio.FramesBucket,
		OutBucket: cfg.Minio.DetectionsBucket,
		OutQueue:  cfg.Rabbit.DetectionsQueue,
		PoolSize:  cfg.Models.PoolSize,
	})

	consumer := broker.NewConsumer(conn, cfg.Rabbit.FramesQueue)
	log.Printf("[Detect] Waiting for messages on %q", cfg.Rabbit.FramesQueue)
	if err := consumer.Run(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[Detect] Consumer error: %v", err)
	}
	log.Printf("[Detect] Shutdown complete")
}
