package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

func TestMemoryStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := NewRecord(&ctg.PredictResponse{ClassIndex: ctg.ClassSuspect, Probability: 0.81}, "Jane Doe", "P-001")
	require.NoError(t, s.Set(ctx, "k", rec))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, s.Clear(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Clear(ctx, "k"))
}

func TestMemoryStore_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "k", &Record{ClassIndex: ctg.ClassNormal}))
	require.NoError(t, s.Set(ctx, "k", &Record{ClassIndex: ctg.ClassPathological}))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, ctg.ClassPathological, got.ClassIndex)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CopiesShapValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := &Record{ShapValues: []ctg.ShapValue{{Feature: "SVM_p0", Value: 1}}}
	require.NoError(t, s.Set(ctx, "k", rec))
	rec.ShapValues[0].Value = 99

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.ShapValues[0].Value)
}

func TestRecord_JSONShape(t *testing.T) {
	rec := NewRecord(&ctg.PredictResponse{ClassIndex: ctg.ClassSuspect, Probability: 0.81}, "Jane Doe", "P-001")

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"class_index":2,"probability":0.81,"patientName":"Jane Doe","patientId":"P-001"}`, string(b))
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1767225600, 0)
	s := NewMemoryStoreWithTTL(time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "old", &Record{PatientID: "P-1"}))
	now = now.Add(30 * time.Minute)
	require.NoError(t, s.Set(ctx, "new", &Record{PatientID: "P-2"}))

	now = now.Add(40 * time.Minute)
	_, err := s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "P-2", got.PatientID)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1767225600, 0)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", &Record{}))
	now = now.Add(24 * 365 * time.Hour)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Sweep())
}

func TestMemoryStore_RunJanitorStopsOnCancel(t *testing.T) {
	s := NewMemoryStoreWithTTL(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
