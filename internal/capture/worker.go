package capture

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"presenca/internal/config"
	"presenca/internal/messages"
	"presenca/internal/metrics"
	"presenca/internal/objstore"
)

// Publisher is the slice of the broker the worker needs.
type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// Worker drives the capture loop: count every decoded frame, keep one in N,
// upload it and publish a frames message. Upload and publish run on a
// bounded pool so encoding latency never stalls the decode loop.
type Worker struct {
	store   objstore.Store
	pub     Publisher
	queue   string
	bucket  string
	cfg     config.Capture
	sampler *Sampler

	sem chan struct{}
	wg  sync.WaitGroup

	now func() time.Time
}

// NewWorker wires a capture worker.
func NewWorker(store objstore.Store, pub Publisher, queue, bucket string, cfg config.Capture) *Worker {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Worker{
		store:   store,
		pub:     pub,
		queue:   queue,
		bucket:  bucket,
		cfg:     cfg,
		sampler: NewSampler(cfg.FrameSkip),
		sem:     make(chan struct{}, poolSize),
		now:     time.Now,
	}
}

// Run consumes frames until the channel closes, the optional duration
// elapses, or ctx is cancelled, then drains the upload pool.
func (w *Worker) Run(ctx context.Context, frames <-chan []byte) error {
	if w.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(w.cfg.Duration*float64(time.Second)))
		defer cancel()
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case frame, ok := <-frames:
			if !ok {
				break loop
			}
			metrics.FramesCaptured.Inc()
			if !w.sampler.Keep() {
				continue
			}

			w.sem <- struct{}{}
			w.wg.Add(1)
			go func(png []byte) {
				defer w.wg.Done()
				defer func() { <-w.sem }()
				w.uploadAndPublish(png)
			}(frame)
		}
	}

	// Partial batches are awaited before exit.
	w.wg.Wait()
	log.Printf("[Capture] Stopped after %d decoded frames", w.sampler.Seen())
	return ctx.Err()
}

// uploadAndPublish runs off the decode loop. A frame that fails to upload
// or publish is dropped and logged; samples are downstream-idempotent via
// frame_uuid, so losing one is acceptable.
func (w *Worker) uploadAndPublish(png []byte) {
	// Detached context: in-flight uploads finish during shutdown drain.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := w.now()
	inicio := epoch(start)
	key := objstore.FrameKey(start)

	if err := w.store.Put(ctx, w.bucket, key, png); err != nil {
		metrics.FramesDropped.Inc()
		log.Printf("[ERROR] Capture: upload %s failed, frame dropped: %v", key, err)
		return
	}

	nowT := w.now()
	msg := messages.FrameMessage{
		ObjectKey:           key,
		FrameUUID:           uuid.New().String(),
		TagVideo:            w.cfg.TagVideo,
		DataCapturaFrame:    objstore.DayFolder(start),
		InicioProcessamento: inicio,
		TempoCapturaFrame:   epoch(nowT) - inicio,
		Timestamp:           epoch(nowT),
		FPS:                 w.cfg.FPS,
		Duracao:             w.cfg.Duration,
		FimCaptura:          epoch(nowT),
	}

	if err := w.pub.Publish(ctx, w.queue, &msg); err != nil {
		metrics.FramesDropped.Inc()
		log.Printf("[ERROR] Capture: publish for %s failed, frame dropped: %v", key, err)
		return
	}

	metrics.FramesPublished.Inc()
	metrics.StageSeconds.WithLabelValues("capture").Observe(msg.TempoCapturaFrame)
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
