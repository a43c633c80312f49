package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annmariya27/ctg-pro/internal/cache"
	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/ctg"
	"github.com/Annmariya27/ctg-pro/internal/db"
)

type memWriter struct {
	mu   sync.Mutex
	rows []db.Analysis
	fail error
}

func (w *memWriter) InsertAnalysis(_ context.Context, a db.Analysis) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.rows = append(w.rows, a)
	return nil
}

func newStream(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func publish(t *testing.T, c *cache.RedisCache, e AnalysisEvent) {
	t.Helper()
	values, err := e.StreamValues()
	require.NoError(t, err)
	require.NoError(t, c.RecordAnalysisEvent(context.Background(), values))
}

func TestRecorder_FlushWritesRows(t *testing.T) {
	stream := newStream(t)
	w := &memWriter{}
	r := NewRecorder(stream, w, &config.Config{WorkerBatchSize: 10})

	id := uuid.New()
	publish(t, stream, AnalysisEvent{
		AnalysisID:  id.String(),
		SessionKey:  "form-1",
		PatientID:   "P-001",
		PatientName: "Jane Doe",
		ClassIndex:  2,
		Probability: 0.81,
		Features:    map[string]float64{"ASTV": 43},
		Timestamp:   1767225600,
	})

	n := r.Flush(context.Background())
	assert.Equal(t, 1, n)
	require.Len(t, w.rows, 1)

	row := w.rows[0]
	assert.Equal(t, id, row.ID)
	assert.Equal(t, ctg.ClassSuspect, row.ClassIndex)
	assert.Equal(t, 43.0, row.Features["ASTV"])
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), row.CreatedAt)

	assert.Equal(t, 0, r.Flush(context.Background()))
}

func TestRecorder_SkipsBadEvents(t *testing.T) {
	stream := newStream(t)
	w := &memWriter{}
	r := NewRecorder(stream, w, &config.Config{})

	require.NoError(t, stream.RecordAnalysisEvent(context.Background(), map[string]interface{}{"data": "{broken"}))
	require.NoError(t, stream.RecordAnalysisEvent(context.Background(), map[string]interface{}{"other": "x"}))
	publish(t, stream, AnalysisEvent{AnalysisID: "not-a-uuid", ClassIndex: 1})
	publish(t, stream, AnalysisEvent{AnalysisID: uuid.NewString(), ClassIndex: 7})
	publish(t, stream, AnalysisEvent{AnalysisID: uuid.NewString(), ClassIndex: 1})

	assert.Equal(t, 1, r.Flush(context.Background()))
	assert.Len(t, w.rows, 1)
}

func TestRecorder_StoreErrorIsNotFatal(t *testing.T) {
	stream := newStream(t)
	w := &memWriter{fail: errors.New("db down")}
	r := NewRecorder(stream, w, &config.Config{})

	publish(t, stream, AnalysisEvent{AnalysisID: uuid.NewString(), ClassIndex: 3})
	assert.Equal(t, 0, r.Flush(context.Background()))
}

func TestRecorder_RetriesFailedInsert(t *testing.T) {
	ctx := context.Background()
	stream := newStream(t)
	w := &memWriter{fail: errors.New("db down")}
	r := NewRecorder(stream, w, &config.Config{})

	id := uuid.New()
	publish(t, stream, AnalysisEvent{AnalysisID: id.String(), ClassIndex: 3})
	require.NoError(t, stream.RecordAnalysisEvent(ctx, map[string]interface{}{"data": "{broken"}))

	assert.Equal(t, 0, r.Flush(ctx))

	// The bad event is gone; the failed one is still queued.
	pending, err := stream.ReadStream(ctx, cache.AnalysisStream, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	w.mu.Lock()
	w.fail = nil
	w.mu.Unlock()

	assert.Equal(t, 1, r.Flush(ctx))
	require.Len(t, w.rows, 1)
	assert.Equal(t, id, w.rows[0].ID)
	assert.Equal(t, 0, r.Flush(ctx))
}

func TestRecorder_StartFlushesOnShutdown(t *testing.T) {
	stream := newStream(t)
	w := &memWriter{}
	r := NewRecorder(stream, w, &config.Config{WorkerFlushInterval: time.Hour})

	publish(t, stream, AnalysisEvent{AnalysisID: uuid.NewString(), ClassIndex: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Len(t, w.rows, 1)
}
