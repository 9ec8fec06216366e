// Package detect consumes frames messages, runs the external face detector,
// filters and crops candidates, and fans one detections message out per kept
// face. Frames with zero kept faces get an empty aggregate row instead.
package detect

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"presenca/internal/broker"
	"presenca/internal/data"
	"presenca/internal/messages"
	"presenca/internal/metrics"
	"presenca/internal/objstore"
	"presenca/internal/vision"
)

// Detector is the external face detection service.
type Detector interface {
	Detect(ctx context.Context, imageBytes []byte) ([]vision.Detection, error)
}

// Publisher is the slice of the broker the worker needs.
type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// Worker handles one frames message at a time; crop uploads within a frame
// run on a bounded pool.
type Worker struct {
	store    objstore.Store
	pub      Publisher
	detector Detector
	frames   data.FrameAggregateRepository
	counters data.CounterRepository

	inBucket  string
	outBucket string
	outQueue  string
	poolSize  int

	now func() time.Time
}

// Config wires a detection worker.
type Config struct {
	Store    objstore.Store
	Pub      Publisher
	Detector Detector
	Frames   data.FrameAggregateRepository
	Counters data.CounterRepository

	InBucket  string
	OutBucket string
	OutQueue  string
	PoolSize  int
}

// NewWorker builds the worker from its dependencies.
func NewWorker(cfg Config) *Worker {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Worker{
		store:     cfg.Store,
		pub:       cfg.Pub,
		detector:  cfg.Detector,
		frames:    cfg.Frames,
		counters:  cfg.Counters,
		inBucket:  cfg.InBucket,
		outBucket: cfg.OutBucket,
		outQueue:  cfg.OutQueue,
		poolSize:  poolSize,
		now:       time.Now,
	}
}

// Handle processes one frames message. Every exit path settles the message:
// poison input is nacked without requeue, everything else ends in an ack so
// the queue never wedges on a bad frame.
func (w *Worker) Handle(ctx context.Context, body []byte) broker.Outcome {
	msg, err := messages.DecodeFrame(body)
	if err != nil {
		metrics.MessagesPoisoned.WithLabelValues(w.outQueue).Inc()
		log.Printf("[ERROR] Detect: poison message: %v", err)
		return broker.NackDiscard
	}

	frameBytes, err := objstore.GetWithRetry(ctx, w.store, w.inBucket, msg.ObjectKey)
	if err != nil {
		log.Printf("[ERROR] Detect: fetch %s failed, frame dropped: %v", msg.ObjectKey, err)
		return broker.Ack
	}

	candidates, err := w.detector.Detect(ctx, frameBytes)
	if err != nil {
		if errors.Is(err, vision.ErrBadInput) {
			metrics.MessagesPoisoned.WithLabelValues(w.outQueue).Inc()
			log.Printf("[ERROR] Detect: unreadable frame %s: %v", msg.ObjectKey, err)
			return broker.NackDiscard
		}
		log.Printf("[ERROR] Detect: detector failed for %s, frame dropped: %v", msg.ObjectKey, err)
		return broker.Ack
	}
	metrics.FacesDetected.Add(float64(len(candidates)))

	keys, err := w.cropAndUpload(ctx, frameBytes, candidates)
	if err != nil {
		metrics.MessagesPoisoned.WithLabelValues(w.outQueue).Inc()
		log.Printf("[ERROR] Detect: undecodable frame %s: %v", msg.ObjectKey, err)
		return broker.NackDiscard
	}

	if len(keys) == 0 {
		w.recordEmptyFrame(ctx, msg)
		return broker.Ack
	}

	w.publishDetections(ctx, msg, keys)
	return broker.Ack
}

// cropAndUpload filters candidates, crops the survivors and uploads each
// crop concurrently. Only successful uploads make it into the returned key
// list; frame_total_faces counts successes, not attempts. A frame the
// detector accepted but that does not decode locally is returned as an
// error; the caller treats it as poison.
func (w *Worker) cropAndUpload(ctx context.Context, frameBytes []byte, candidates []vision.Detection) ([]string, error) {
	img, err := DecodeFrame(frameBytes)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		keys []string
		wg   sync.WaitGroup
		sem  = make(chan struct{}, w.poolSize)
	)

	for i, cand := range candidates {
		if !KeepCandidate(cand) {
			metrics.FacesFiltered.Inc()
			log.Printf("[Detect] Face %d discarded by filter (w=%d, h=%d)", i, cand.Box.W, cand.Box.H)
			continue
		}

		crop, err := CropFace(img, cand.Box)
		if err != nil {
			log.Printf("[Detect] Face %d discarded: %v", i, err)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(seq int, crop []byte) {
			defer wg.Done()
			defer func() { <-sem }()

			key := objstore.CropKey(w.now(), seq)
			if err := objstore.PutWithRetry(ctx, w.store, w.outBucket, key, crop); err != nil {
				log.Printf("[ERROR] Detect: crop upload %s failed: %v", key, err)
				return
			}
			mu.Lock()
			keys = append(keys, key)
			mu.Unlock()
		}(i, crop)
	}
	wg.Wait()
	return keys, nil
}

// recordEmptyFrame writes the zero-counter aggregate so downstream reports
// still see the frame. A redelivered frame that already has a row is an
// accepted no-op.
func (w *Worker) recordEmptyFrame(ctx context.Context, msg *messages.FrameMessage) {
	numero, err := w.counters.Next(ctx, msg.TagVideo)
	if err != nil {
		log.Printf("[ERROR] Detect: sequence for %q failed: %v", msg.TagVideo, err)
		return
	}

	agg := &data.FrameAggregate{
		UUID:                   msg.FrameUUID,
		TagVideo:               msg.TagVideo,
		NumeroFrame:            numero,
		FPS:                    msg.FPS,
		Duracao:                msg.Duracao,
		TotalFacesDetectadas:   0,
		TotalFacesReconhecidas: 0,
		ListaPresencas:         []string{},
	}
	if err := w.frames.Insert(ctx, agg); err != nil {
		if errors.Is(err, data.ErrDuplicateKey) {
			return
		}
		log.Printf("[ERROR] Detect: empty aggregate for %s failed: %v", msg.FrameUUID, err)
		return
	}

	metrics.ZeroFaceFrames.Inc()
	log.Printf("[Detect] Frame %s had no faces, aggregate %d recorded", msg.FrameUUID, numero)
}

// publishDetections emits one sibling message per uploaded crop. All
// siblings carry the same frame_total_faces so the persistence worker can
// set total_faces_detectadas from whichever arrives first.
func (w *Worker) publishDetections(ctx context.Context, msg *messages.FrameMessage, keys []string) {
	nowT := epoch(w.now())
	tempoDeteccao := nowT - msg.InicioProcessamento

	for _, key := range keys {
		out := messages.DetectionMessage{
			ObjectKey:           key,
			FrameUUID:           msg.FrameUUID,
			TagVideo:            msg.TagVideo,
			DataCapturaFrame:    msg.DataCapturaFrame,
			InicioProcessamento: msg.InicioProcessamento,
			TempoCapturaFrame:   msg.TempoCapturaFrame,
			Timestamp:           msg.Timestamp,
			FPS:                 msg.FPS,
			Duracao:             msg.Duracao,
			FimCaptura:          msg.FimCaptura,

			TempoDeteccao:              tempoDeteccao,
			FrameTotalFaces:            len(keys),
			TempoEsperaCapturaDeteccao: nowT - msg.FimCaptura,
			InicioDeteccao:             nowT,
			FimDeteccao:                epoch(w.now()),
		}
		if err := w.pub.Publish(ctx, w.outQueue, &out); err != nil {
			log.Printf("[ERROR] Detect: publish for crop %s failed: %v", key, err)
		}
	}
	metrics.StageSeconds.WithLabelValues("detect").Observe(tempoDeteccao)
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
