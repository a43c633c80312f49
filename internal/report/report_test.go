package report

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		class       ctg.Class
		title       string
		showDetails bool
		pending     bool
	}{
		{ctg.ClassNormal, "Normal", false, false},
		{ctg.ClassSuspect, "Suspect", true, false},
		{ctg.ClassPathological, "Pathological", true, false},
		{ctg.Class(0), PendingTitle, false, true},
		{ctg.Class(4), PendingTitle, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Interpret(tt.class)
			assert.Equal(t, tt.title, got.Title)
			assert.Equal(t, tt.showDetails, got.ShowDetails)
			assert.Equal(t, tt.pending, got.Pending)
			assert.Equal(t, int(tt.class), got.ClassIndex)
		})
	}
}

func TestEvaluate(t *testing.T) {
	var v ctg.Vector
	v[ctg.ASTV] = 43
	v[ctg.DL] = 1
	v[ctg.UC] = 2
	v[ctg.AC] = 0

	findings := Evaluate(v)
	require.Len(t, findings, 4)

	got := map[string]bool{}
	for _, f := range findings {
		got[f.Feature] = f.Triggered
	}
	assert.Equal(t, map[string]bool{"ASTV": false, "DL": true, "UC": false, "AC": true}, got)
	assert.Equal(t, "Late deceleration", findings[1].Finding)
	assert.Equal(t, 1.0, findings[1].Value)
}

func TestAllGuidanceOrder(t *testing.T) {
	g := AllGuidance()
	require.Len(t, g, 4)
	assert.Equal(t, "ASTV < 20", g[0].Condition)
	assert.Equal(t, "AC = 0", g[3].Condition)
}

func TestQRService(t *testing.T) {
	s := NewQRService("http://localhost:8080")
	assert.Equal(t, "http://localhost:8080/v1/analysis/results/abc", s.ReportURL("abc"))

	data, err := s.ReportPNG("abc", 10)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, MinQRSize, img.Bounds().Dx())
}
