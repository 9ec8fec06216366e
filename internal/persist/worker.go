// Package persist consumes recognitions messages and commits them: one
// presence document plus the per-frame aggregate bookkeeping.
package persist

import (
	"context"
	"errors"
	"log"
	"time"

	"presenca/internal/broker"
	"presenca/internal/data"
	"presenca/internal/messages"
	"presenca/internal/metrics"
)

// Worker records presences. Safe to run with multiple consumers on the same
// queue: sibling detections of one frame commute through increment+append.
type Worker struct {
	presences data.PresenceRepository
	frames    data.FrameAggregateRepository
	counters  data.CounterRepository
	dedup     *broker.Dedup

	now func() time.Time
}

// Config wires a persistence worker. Dedup is optional; when set,
// redeliveries within its window become accepted no-ops instead of extra
// presence rows.
type Config struct {
	Presences data.PresenceRepository
	Frames    data.FrameAggregateRepository
	Counters  data.CounterRepository
	Dedup     *broker.Dedup
}

// NewWorker builds the worker from its dependencies.
func NewWorker(cfg Config) *Worker {
	return &Worker{
		presences: cfg.Presences,
		frames:    cfg.Frames,
		counters:  cfg.Counters,
		dedup:     cfg.Dedup,
		now:       time.Now,
	}
}

// Handle commits one recognition.
func (w *Worker) Handle(ctx context.Context, body []byte) broker.Outcome {
	msg, err := messages.DecodeRecognition(body)
	if err != nil {
		metrics.MessagesPoisoned.WithLabelValues("presencas").Inc()
		log.Printf("[ERROR] Persist: poison message: %v", err)
		return broker.NackDiscard
	}

	if w.dedup != nil && w.dedup.Seen(msg.ReconhecimentoPath+"|"+msg.FrameUUID) {
		log.Printf("[Persist] Duplicate delivery for %s, skipping", msg.ReconhecimentoPath)
		return broker.Ack
	}

	fim := epoch(w.now())
	filaReal := msg.TempoEsperaCapturaDeteccao + msg.TempoEsperaDeteccaoReconhecimento

	presence := &data.Presence{
		TimestampInicial:           msg.InicioProcessamento,
		TimestampFinal:             fim,
		DataCapturaFrame:           msg.DataCapturaFrame,
		InicioProcessamento:        msg.InicioProcessamento,
		FimProcessamento:           fim,
		TempoProcessamentoTotal:    fim - msg.InicioProcessamento,
		TempoCapturaFrame:          msg.TempoCapturaFrame,
		TempoDeteccao:              msg.TempoDeteccao,
		TempoReconhecimento:        msg.TempoReconhecimento,
		Pessoa:                     msg.UUID,
		FotoCaptura:                msg.ReconhecimentoPath,
		Tags:                       msg.Tags,
		TagVideo:                   msg.TagVideo,
		Timestamp:                  msg.Timestamp,
		TempoEsperaCapturaDeteccao: msg.TempoEsperaCapturaDeteccao,
		TempoEsperaDetRec:          msg.TempoEsperaDeteccaoReconhecimento,
		TempoFilaReal:              filaReal,
	}

	presenceID, err := w.presences.Insert(ctx, presence)
	if err != nil {
		log.Printf("[ERROR] Persist: presence insert failed: %v", err)
		return broker.NackDiscard
	}

	if err := w.recordInAggregate(ctx, msg, presenceID); err != nil {
		log.Printf("[ERROR] Persist: aggregate for %s failed: %v", msg.FrameUUID, err)
		// The presence row is committed; redelivery would duplicate it.
		return broker.Ack
	}

	metrics.PresencesRecorded.Inc()
	metrics.StageSeconds.WithLabelValues("total").Observe(presence.TempoProcessamentoTotal)
	log.Printf("[Persist] Presence %s recorded for %s (total %.2fs)", presenceID, msg.UUID, presence.TempoProcessamentoTotal)
	return broker.Ack
}

// recordInAggregate goes update-first: if an aggregate row already exists,
// only the counter and presence list move. Only when nothing matched does
// it allocate a frame number and insert, and a lost insert race falls back
// to the update path, so numero_frame is assigned exactly once per frame.
func (w *Worker) recordInAggregate(ctx context.Context, msg *messages.RecognitionMessage, presenceID string) error {
	matched, err := w.frames.AddPresence(ctx, msg.FrameUUID, presenceID)
	if err != nil {
		return err
	}
	if matched {
		return nil
	}

	numero, err := w.counters.Next(ctx, msg.TagVideo)
	if err != nil {
		return err
	}

	agg := &data.FrameAggregate{
		UUID:                   msg.FrameUUID,
		TagVideo:               msg.TagVideo,
		NumeroFrame:            numero,
		FPS:                    msg.FPS,
		Duracao:                msg.Duracao,
		TotalFacesDetectadas:   msg.FrameTotalFaces,
		TotalFacesReconhecidas: 1,
		ListaPresencas:         []string{presenceID},
	}
	err = w.frames.Insert(ctx, agg)
	if errors.Is(err, data.ErrDuplicateKey) {
		// A sibling won the insert between our update and insert attempts.
		matched, err = w.frames.AddPresence(ctx, msg.FrameUUID, presenceID)
		if err != nil {
			return err
		}
		if !matched {
			return errors.New("aggregate vanished after duplicate key")
		}
		return nil
	}
	return err
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
