package db

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = r.values[i].(uuid.UUID)
		case *string:
			*p = r.values[i].(string)
		case *int16:
			*p = r.values[i].(int16)
		case *float64:
			*p = r.values[i].(float64)
		case *[]byte:
			*p = []byte(r.values[i].(string))
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestScanAnalysis(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		id, "sess", "P-001", "Jane Doe", int16(2), 0.81,
		`[{"feature":"SVM_p1","value":0.4}]`,
		`{"ASTV":43,"DL":1}`,
		created,
	}}

	a, err := scanAnalysis(row)
	require.NoError(t, err)

	assert.Equal(t, id, a.ID)
	assert.Equal(t, ctg.ClassSuspect, a.ClassIndex)
	assert.Equal(t, []ctg.ShapValue{{Feature: "SVM_p1", Value: 0.4}}, a.ShapValues)
	assert.Equal(t, created, a.CreatedAt)

	v := a.Vector()
	assert.Equal(t, 43.0, v[ctg.ASTV])
	assert.Equal(t, 1.0, v[ctg.DL])
	assert.Equal(t, 0.0, v[ctg.LB])
}

func TestScanAnalysis_BadJSON(t *testing.T) {
	row := fakeRow{values: []any{
		uuid.New(), "s", "p", "n", int16(1), 0.5, `not json`, `{}`, time.Now(),
	}}
	_, err := scanAnalysis(row)
	assert.Error(t, err)
}

func TestScanAnalysis_PropagatesScanError(t *testing.T) {
	boom := errors.New("boom")
	_, err := scanAnalysis(fakeRow{err: boom})
	assert.ErrorIs(t, err, boom)
}
