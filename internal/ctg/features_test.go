package ctg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatures_OrderAndIdentifiers(t *testing.T) {
	want := []string{
		"LB", "AC", "FM", "UC", "ASTV", "MSTV", "ALTV", "MLTV",
		"DL", "DS", "DP", "DR", "Width", "Min", "Max", "Nmax",
		"Nzeros", "Mode", "Mean", "Median", "Variance", "Tendency",
	}

	features := Features()
	require.Len(t, features, NumFeatures)
	require.Equal(t, 22, NumFeatures)

	for i, f := range features {
		assert.Equal(t, want[i], f.ID())
		assert.NotEmpty(t, f.Label())

		parsed, ok := ParseFeature(want[i])
		assert.True(t, ok)
		assert.Equal(t, f, parsed)
	}
}

func TestParseFeature_Unknown(t *testing.T) {
	_, ok := ParseFeature("astv")
	assert.False(t, ok)

	_, ok = ParseFeature("")
	assert.False(t, ok)
}

func TestVector_Payload(t *testing.T) {
	var v Vector
	for i := range v {
		v[i] = float64(i) + 0.5
	}
	v[ASTV] = 43

	payload := v.Payload()
	require.Len(t, payload, NumFeatures)
	assert.Equal(t, 43.0, payload["ASTV"])
	assert.Equal(t, 0.5, payload["LB"])
	assert.Equal(t, float64(Tendency)+0.5, payload["Tendency"])

	back, missing, err := VectorFromPayload(payload)
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Equal(t, v, back)
}

func TestVectorFromPayload_MissingAndNonFinite(t *testing.T) {
	_, missing, err := VectorFromPayload(map[string]float64{"LB": 120})
	require.NoError(t, err)
	assert.Len(t, missing, NumFeatures-1)
	assert.Equal(t, "AC", missing[0])

	_, _, err = VectorFromPayload(map[string]float64{"LB": math.Inf(1)})
	assert.Error(t, err)
}

func TestClass_String(t *testing.T) {
	assert.Equal(t, "Normal", ClassNormal.String())
	assert.Equal(t, "Suspect", ClassSuspect.String())
	assert.Equal(t, "Pathological", ClassPathological.String())
	assert.Equal(t, "Unknown", Class(0).String())
	assert.False(t, Class(4).Valid())
}
