package recognize

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"presenca/internal/broker"
	"presenca/internal/data"
	"presenca/internal/messages"
	"presenca/internal/metrics"
	"presenca/internal/objstore"
)

// Embedder is the external face embedding service.
type Embedder interface {
	Represent(ctx context.Context, imageBytes []byte) ([]float64, error)
}

// Publisher is the slice of the broker the worker needs.
type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// Worker resolves one detections message to an identity and publishes the
// recognition.
type Worker struct {
	store      objstore.Store
	pub        Publisher
	embedder   Embedder
	identities data.IdentityRepository
	resolver   *Resolver

	inBucket  string
	outBucket string
	outQueue  string

	now func() time.Time
}

// Config wires a recognition worker.
type Config struct {
	Store      objstore.Store
	Pub        Publisher
	Embedder   Embedder
	Identities data.IdentityRepository
	Resolver   *Resolver

	InBucket  string
	OutBucket string
	OutQueue  string
}

// NewWorker builds the worker from its dependencies.
func NewWorker(cfg Config) *Worker {
	return &Worker{
		store:      cfg.Store,
		pub:        cfg.Pub,
		embedder:   cfg.Embedder,
		identities: cfg.Identities,
		resolver:   cfg.Resolver,
		inBucket:   cfg.InBucket,
		outBucket:  cfg.OutBucket,
		outQueue:   cfg.OutQueue,
		now:        time.Now,
	}
}

// Handle processes one detections message. Messages whose crop cannot be
// embedded are poison: nacked without requeue, no store writes.
func (w *Worker) Handle(ctx context.Context, body []byte) broker.Outcome {
	msg, err := messages.DecodeDetection(body)
	if err != nil {
		metrics.MessagesPoisoned.WithLabelValues(w.outQueue).Inc()
		log.Printf("[ERROR] Recognize: poison message: %v", err)
		return broker.NackDiscard
	}

	inicioRec := epoch(w.now())
	esperaDetRec := inicioRec - msg.FimDeteccao

	cropBytes, err := objstore.GetWithRetry(ctx, w.store, w.inBucket, msg.ObjectKey)
	if err != nil {
		metrics.MessagesPoisoned.WithLabelValues(w.outQueue).Inc()
		log.Printf("[ERROR] Recognize: fetch crop %s failed: %v", msg.ObjectKey, err)
		return broker.NackDiscard
	}

	embedding, err := w.embedder.Represent(ctx, cropBytes)
	if err != nil {
		metrics.MessagesPoisoned.WithLabelValues(w.outQueue).Inc()
		log.Printf("[ERROR] Recognize: embedding for %s failed: %v", msg.ObjectKey, err)
		return broker.NackDiscard
	}

	matchedUUID, err := w.resolver.Resolve(ctx, embedding)
	if err != nil {
		log.Printf("[ERROR] Recognize: candidate scan failed: %v", err)
		return broker.NackDiscard
	}

	if matchedUUID == "" {
		matchedUUID = uuid.New().String()
		fresh := &data.Identity{
			UUID: matchedUUID,
			Tags: []string{matchedUUID},
		}
		if err := w.identities.Insert(ctx, fresh); err != nil {
			log.Printf("[ERROR] Recognize: mint identity failed: %v", err)
			return broker.NackDiscard
		}
		metrics.IdentitiesMinted.Inc()
		log.Printf("[Recognize] New identity %s", matchedUUID)
	} else {
		metrics.IdentitiesMatched.Inc()
		log.Printf("[Recognize] Face matched identity %s", matchedUUID)
	}

	key := objstore.RecognitionKey(matchedUUID, w.now())
	if err := objstore.PutWithRetry(ctx, w.store, w.outBucket, key, cropBytes); err != nil {
		log.Printf("[ERROR] Recognize: upload %s failed: %v", key, err)
		return broker.NackDiscard
	}

	// Single update appends both arrays and bumps last_appearance, keeping
	// |image_paths| == |embeddings| across crashes and concurrent consumers.
	ident, err := w.identities.AppendAppearance(ctx, matchedUUID, key, embedding, epoch(w.now()))
	if err != nil {
		log.Printf("[ERROR] Recognize: append to %s failed: %v", matchedUUID, err)
		return broker.NackDiscard
	}

	fimRec := epoch(w.now())
	out := messages.RecognitionMessage{
		ObjectKey:           msg.ObjectKey,
		FrameUUID:           msg.FrameUUID,
		TagVideo:            msg.TagVideo,
		DataCapturaFrame:    msg.DataCapturaFrame,
		InicioProcessamento: msg.InicioProcessamento,
		TempoCapturaFrame:   msg.TempoCapturaFrame,
		Timestamp:           msg.Timestamp,
		FPS:                 msg.FPS,
		Duracao:             msg.Duracao,
		FimCaptura:          msg.FimCaptura,

		TempoDeteccao:              msg.TempoDeteccao,
		FrameTotalFaces:            msg.FrameTotalFaces,
		TempoEsperaCapturaDeteccao: msg.TempoEsperaCapturaDeteccao,
		InicioDeteccao:             msg.InicioDeteccao,
		FimDeteccao:                msg.FimDeteccao,

		ReconhecimentoPath:                key,
		UUID:                              matchedUUID,
		Tags:                              ident.Tags,
		TempoReconhecimento:               fimRec - inicioRec,
		TempoEsperaDeteccaoReconhecimento: esperaDetRec,
		InicioReconhecimento:              inicioRec,
		FimReconhecimento:                 fimRec,
	}

	if err := w.pub.Publish(ctx, w.outQueue, &out); err != nil {
		// The identity append is already committed; a redelivery would
		// append the same embedding twice. Settle the message instead.
		log.Printf("[ERROR] Recognize: publish for %s failed: %v", key, err)
		return broker.Ack
	}

	metrics.StageSeconds.WithLabelValues("recognize").Observe(out.TempoReconhecimento)
	return broker.Ack
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
