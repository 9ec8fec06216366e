package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"presenca/internal/broker"
	"presenca/internal/capture"
	"presenca/internal/config"
	"presenca/internal/objstore"
	"presenca/internal/ops"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Capture] Config error: %v", err)
	}
	if cfg.Capture.Source == "" {
		log.Fatal("[Capture] CAPTURE_SOURCE is required")
	}
	if cfg.Capture.TagVideo == "" {
		log.Fatal("[Capture] TAG_VIDEO is required")
	}

	log.Printf("[Capture] Starting - source: %s, tag: %s, fps: %.1f, skip: 1/%d",
		cfg.Capture.Source, cfg.Capture.TagVideo, cfg.Capture.FPS, cfg.Capture.FrameSkip)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := objstore.New(objstore.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	})
	if err != nil {
		log.Fatalf("[Capture] Object store error: %v", err)
	}
	if err := store.EnsureBucket(ctx, cfg.Minio.FramesBucket); err != nil {
		log.Fatalf("[Capture] Bucket error: %v", err)
	}

	conn, err := broker.Dial(cfg.Rabbit.URL, 5)
	if err != nil {
		log.Fatalf("[Capture] Broker error: %v", err)
	}
	defer conn.Close()
	if err := conn.DeclareQueues(cfg.Rabbit.FramesQueue); err != nil {
		log.Fatalf("[Capture] Queue error: %v", err)
	}
	pub := broker.NewPublisher(conn, 3)

	go ops.Serve(cfg.OpsAddr, "Capture")

	source := capture.NewFFmpegSource(cfg.Capture.Source, cfg.Capture.FPS)
	frames, err := source.Frames(ctx)
	if err != nil {
		log.Fatalf("[Capture] Source error: %v", err)
	}

	worker := capture.NewWorker(store, pub, cfg.Rabbit.FramesQueue, cfg.Minio.FramesBucket, cfg.Capture)
	if err := worker.Run(ctx, frames); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Fatalf("[Capture] Run error: %v", err)
	}
	log.Printf("[Capture] Shutdown complete")
}
