package impact

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

func TestComputeDisplayRows_SortsAndNormalises(t *testing.T) {
	rows := ComputeDisplayRows([]ctg.ShapValue{
		{Feature: "a", Value: 5},
		{Feature: "b", Value: 10},
		{Feature: "c", Value: 1},
	}, 10)

	require.Len(t, rows, 3)
	assert.Equal(t, "b", rows[0].Feature)
	assert.Equal(t, "a", rows[1].Feature)
	assert.Equal(t, "c", rows[2].Feature)
	assert.InDelta(t, 1.0, rows[0].Width, 1e-12)
	assert.InDelta(t, 0.5, rows[1].Width, 1e-12)
	assert.InDelta(t, 0.1, rows[2].Width, 1e-12)
	assert.Equal(t, "10.0000", rows[0].Display)
	assert.Equal(t, "5.0000", rows[1].Display)
}

func TestComputeDisplayRows_Empty(t *testing.T) {
	assert.Empty(t, ComputeDisplayRows(nil, 10))
	assert.NotNil(t, ComputeDisplayRows(nil, 10))
	assert.Empty(t, ComputeDisplayRows([]ctg.ShapValue{}, 0))
}

func TestComputeDisplayRows_TruncatesToLargest(t *testing.T) {
	entries := make([]ctg.ShapValue, 15)
	for i := range entries {
		// 0, 7, 14, 6, 13, ... a permutation of 0..14
		entries[i] = ctg.ShapValue{Feature: fmt.Sprintf("f%d", i), Value: float64((i * 7) % 15)}
	}

	rows := ComputeDisplayRows(entries, 10)

	require.Len(t, rows, 10)
	for i, r := range rows {
		assert.Equal(t, float64(14-i), r.Value)
	}
}

func TestComputeDisplayRows_DefaultLimit(t *testing.T) {
	entries := make([]ctg.ShapValue, 12)
	for i := range entries {
		entries[i] = ctg.ShapValue{Feature: fmt.Sprintf("f%d", i), Value: float64(i)}
	}
	assert.Len(t, ComputeDisplayRows(entries, 0), DefaultLimit)
	assert.Len(t, ComputeDisplayRows(entries, -3), DefaultLimit)
	assert.Len(t, ComputeDisplayRows(entries, 3), 3)
}

func TestComputeDisplayRows_TiesKeepInputOrder(t *testing.T) {
	rows := ComputeDisplayRows([]ctg.ShapValue{
		{Feature: "x", Value: 2},
		{Feature: "y", Value: 3},
		{Feature: "z", Value: 2},
		{Feature: "w", Value: 2},
	}, 10)

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Feature
	}
	assert.Equal(t, []string{"y", "x", "z", "w"}, got)
}

func TestComputeDisplayRows_NonPositiveMax(t *testing.T) {
	rows := ComputeDisplayRows([]ctg.ShapValue{
		{Feature: "a", Value: -0.2},
		{Feature: "b", Value: -0.5},
	}, 10)

	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, 0.0, r.Width)
	}
	assert.Equal(t, "-0.2000", rows[0].Display)
}

func TestComputeDisplayRows_NegativeBelowPositiveMax(t *testing.T) {
	rows := ComputeDisplayRows([]ctg.ShapValue{
		{Feature: "a", Value: 0.4},
		{Feature: "b", Value: -0.1},
	}, 10)

	assert.Equal(t, 1.0, rows[0].Width)
	assert.Equal(t, 0.0, rows[1].Width)
}

func TestComputeDisplayRows_NaNSortsLast(t *testing.T) {
	rows := ComputeDisplayRows([]ctg.ShapValue{
		{Feature: "n", Value: math.NaN()},
		{Feature: "a", Value: 1},
	}, 10)

	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Feature)
	assert.Equal(t, "n", rows[1].Feature)
	assert.Equal(t, 0.0, rows[1].Width)
}

func TestComputeDisplayRows_Labels(t *testing.T) {
	rows := ComputeDisplayRows([]ctg.ShapValue{
		{Feature: "CatBoost_p2", Value: 0.3},
		{Feature: "ASTV", Value: 0.2},
		{Feature: "", Value: 0.1},
	}, 10)

	assert.Equal(t, "CatBoost (Pathological)", rows[0].Label)
	assert.Equal(t, "ASTV", rows[1].Label)
	assert.Equal(t, "", rows[2].Label)
}

func TestComputeDisplayRows_IsPure(t *testing.T) {
	in := []ctg.ShapValue{
		{Feature: "a", Value: 5},
		{Feature: "b", Value: 10},
		{Feature: "c", Value: 1},
	}
	first := ComputeDisplayRows(in, 2)
	second := ComputeDisplayRows(in, 2)

	assert.Equal(t, first, second)
	assert.Equal(t, "a", in[0].Feature, "input must not be reordered")
}

func TestRenderChart(t *testing.T) {
	rows := ComputeDisplayRows([]ctg.ShapValue{
		{Feature: "SVM_p1", Value: 0.42},
		{Feature: "XGBoost_p1", Value: 0.21},
	}, 10)

	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, rows, ChartOptions{Subtitle: "P-001"}))

	html := buf.String()
	assert.Contains(t, html, "Feature Impact on Prediction (Top 2)")
	assert.Contains(t, html, "SVM (Suspect)")
	assert.Contains(t, html, "0.4200")
	assert.Contains(t, html, "P-001")
}
