package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presenca/internal/broker"
	"presenca/internal/data"
	"presenca/internal/messages"
)

type fakePresenceRepo struct {
	inserted []data.Presence
	err      error
}

func (r *fakePresenceRepo) Insert(_ context.Context, p *data.Presence) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.inserted = append(r.inserted, *p)
	return fmt.Sprintf("presence-%d", len(r.inserted)), nil
}

// fakeAggregateRepo mimics the frames collection with its unique index on
// the frame uuid.
type fakeAggregateRepo struct {
	rows map[string]*data.FrameAggregate

	// dupOnInsert simulates a sibling winning the insert race: the first
	// Insert call returns ErrDuplicateKey after materializing the sibling's
	// row.
	dupOnInsert bool
}

func newFakeAggregateRepo() *fakeAggregateRepo {
	return &fakeAggregateRepo{rows: map[string]*data.FrameAggregate{}}
}

func (r *fakeAggregateRepo) Insert(_ context.Context, agg *data.FrameAggregate) error {
	if r.dupOnInsert {
		r.dupOnInsert = false
		sibling := *agg
		sibling.TotalFacesReconhecidas = 1
		sibling.ListaPresencas = []string{"presence-sibling"}
		r.rows[agg.UUID] = &sibling
		return data.ErrDuplicateKey
	}
	if _, ok := r.rows[agg.UUID]; ok {
		return data.ErrDuplicateKey
	}
	clone := *agg
	clone.ListaPresencas = append([]string(nil), agg.ListaPresencas...)
	r.rows[agg.UUID] = &clone
	return nil
}

func (r *fakeAggregateRepo) AddPresence(_ context.Context, frameUUID, presenceID string) (bool, error) {
	row, ok := r.rows[frameUUID]
	if !ok {
		return false, nil
	}
	row.TotalFacesReconhecidas++
	row.ListaPresencas = append(row.ListaPresencas, presenceID)
	return true, nil
}

type fakeCounterRepo struct {
	next int
}

func (r *fakeCounterRepo) Next(context.Context, string) (int, error) {
	r.next++
	return r.next, nil
}

func recognitionBody(t *testing.T, frameUUID, path string) []byte {
	t.Helper()
	body, err := json.Marshal(messages.RecognitionMessage{
		ObjectKey:           "24-08-2026/face_1.png",
		FrameUUID:           frameUUID,
		TagVideo:            "aula-01",
		DataCapturaFrame:    "24-08-2026",
		InicioProcessamento: 100.0,
		FPS:                 20,
		FrameTotalFaces:     3,

		ReconhecimentoPath:                path,
		UUID:                              "p-1",
		Tags:                              []string{"p-1"},
		TempoEsperaCapturaDeteccao:        0.5,
		TempoEsperaDeteccaoReconhecimento: 0.25,
	})
	require.NoError(t, err)
	return body
}

func fixture() (*Worker, *fakePresenceRepo, *fakeAggregateRepo, *fakeCounterRepo) {
	presences := &fakePresenceRepo{}
	frames := newFakeAggregateRepo()
	counters := &fakeCounterRepo{}
	w := NewWorker(Config{Presences: presences, Frames: frames, Counters: counters})
	return w, presences, frames, counters
}

func TestHandleFirstRecognitionCreatesAggregate(t *testing.T) {
	w, presences, frames, counters := fixture()

	out := w.Handle(context.Background(), recognitionBody(t, "frame-1", "p-1/face_a.png"))
	assert.Equal(t, broker.Ack, out)

	require.Len(t, presences.inserted, 1)
	p := presences.inserted[0]
	assert.Equal(t, "p-1", p.Pessoa)
	assert.Equal(t, "p-1/face_a.png", p.FotoCaptura)
	assert.Equal(t, "aula-01", p.TagVideo)
	assert.InDelta(t, 0.75, p.TempoFilaReal, 1e-9)
	assert.Greater(t, p.TempoProcessamentoTotal, 0.0)

	row := frames.rows["frame-1"]
	require.NotNil(t, row)
	assert.Equal(t, 1, row.NumeroFrame)
	assert.Equal(t, 3, row.TotalFacesDetectadas)
	assert.Equal(t, 1, row.TotalFacesReconhecidas)
	assert.Equal(t, []string{"presence-1"}, row.ListaPresencas)
	assert.Equal(t, 1, counters.next)
}

func TestHandleSiblingRecognitionsShareOneAggregate(t *testing.T) {
	w, _, frames, counters := fixture()

	for i := 0; i < 3; i++ {
		out := w.Handle(context.Background(), recognitionBody(t, "frame-1", fmt.Sprintf("p-1/face_%d.png", i)))
		assert.Equal(t, broker.Ack, out)
	}

	row := frames.rows["frame-1"]
	require.NotNil(t, row)
	assert.Equal(t, 3, row.TotalFacesReconhecidas)
	assert.Len(t, row.ListaPresencas, row.TotalFacesReconhecidas)
	assert.LessOrEqual(t, row.TotalFacesReconhecidas, row.TotalFacesDetectadas)
	assert.Equal(t, 1, counters.next) // numero_frame allocated once
}

func TestHandleLostInsertRaceFallsBackToUpdate(t *testing.T) {
	w, _, frames, _ := fixture()
	frames.dupOnInsert = true

	out := w.Handle(context.Background(), recognitionBody(t, "frame-1", "p-1/face_a.png"))
	assert.Equal(t, broker.Ack, out)

	row := frames.rows["frame-1"]
	require.NotNil(t, row)
	assert.Equal(t, 2, row.TotalFacesReconhecidas)
	assert.Equal(t, []string{"presence-sibling", "presence-1"}, row.ListaPresencas)
}

func TestHandleDuplicateDeliveryIsNoOp(t *testing.T) {
	presences := &fakePresenceRepo{}
	frames := newFakeAggregateRepo()
	w := NewWorker(Config{
		Presences: presences,
		Frames:    frames,
		Counters:  &fakeCounterRepo{},
		Dedup:     broker.NewDedup(16, time.Minute),
	})

	body := recognitionBody(t, "frame-1", "p-1/face_a.png")
	assert.Equal(t, broker.Ack, w.Handle(context.Background(), body))
	assert.Equal(t, broker.Ack, w.Handle(context.Background(), body))

	assert.Len(t, presences.inserted, 1)
	assert.Equal(t, 1, frames.rows["frame-1"].TotalFacesReconhecidas)
}

func TestHandlePoisonBodyIsDiscarded(t *testing.T) {
	w, presences, _, _ := fixture()

	out := w.Handle(context.Background(), []byte(`{"frame_uuid":"f"}`))
	assert.Equal(t, broker.NackDiscard, out)
	assert.Empty(t, presences.inserted)
}

func TestHandlePresenceInsertFailureIsDiscarded(t *testing.T) {
	w, presences, frames, _ := fixture()
	presences.err = errors.New("mongo down")

	out := w.Handle(context.Background(), recognitionBody(t, "frame-1", "p-1/face_a.png"))
	assert.Equal(t, broker.NackDiscard, out)
	assert.Empty(t, frames.rows)
}
