package ctg

import (
	"fmt"
	"math"
)

// Feature identifies one of the 22 CTG measurements sent to the prediction service.
// The numeric value of a Feature is its position in the payload vector.
type Feature int

// The feature order is significant: it defines positional mapping of a Vector.
const (
	LB Feature = iota
	AC
	FM
	UC
	ASTV
	MSTV
	ALTV
	MLTV
	DL
	DS
	DP
	DR
	Width
	Min
	Max
	Nmax
	Nzeros
	Mode
	Mean
	Median
	Variance
	Tendency

	// NumFeatures is the length of every Vector.
	NumFeatures = int(Tendency) + 1
)

type featureInfo struct {
	id    string
	label string
}

var featureTable = [NumFeatures]featureInfo{
	LB:       {"LB", "Baseline value (SisPorto)"},
	AC:       {"AC", "Acceleration (SisPorto)"},
	FM:       {"FM", "Fetal movement (SisPorto)"},
	UC:       {"UC", "Uterine contraction (SisPorto)"},
	ASTV:     {"ASTV", "Percentage of time with abnormal short-term variability (SisPorto)"},
	MSTV:     {"MSTV", "Mean value of short-term variability (SisPorto)"},
	ALTV:     {"ALTV", "Percentage of time with abnormal long-term variability (SisPorto)"},
	MLTV:     {"MLTV", "Mean value of long-term variability (SisPorto)"},
	DL:       {"DL", "Light decelerations"},
	DS:       {"DS", "Severe decelerations"},
	DP:       {"DP", "Prolonged decelerations"},
	DR:       {"DR", "Repetitive decelerations"},
	Width:    {"Width", "Histogram width"},
	Min:      {"Min", "Histogram minimum"},
	Max:      {"Max", "Histogram maximum"},
	Nmax:     {"Nmax", "Histogram number of peaks"},
	Nzeros:   {"Nzeros", "Histogram number of zeros"},
	Mode:     {"Mode", "Histogram mode"},
	Mean:     {"Mean", "Histogram mean"},
	Median:   {"Median", "Histogram median"},
	Variance: {"Variance", "Histogram variance"},
	Tendency: {"Tendency", "Histogram tendency"},
}

var featureByID = func() map[string]Feature {
	m := make(map[string]Feature, NumFeatures)
	for i, info := range featureTable {
		m[info.id] = Feature(i)
	}
	return m
}()

// Features returns all features in payload order.
func Features() []Feature {
	out := make([]Feature, NumFeatures)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

// ID returns the wire identifier, e.g. "ASTV".
func (f Feature) ID() string {
	if !f.Valid() {
		return fmt.Sprintf("Feature(%d)", int(f))
	}
	return featureTable[f].id
}

// Label returns the human readable field label.
func (f Feature) Label() string {
	if !f.Valid() {
		return f.ID()
	}
	return featureTable[f].label
}

// String implements fmt.Stringer.
func (f Feature) String() string {
	return f.ID()
}

// Valid reports whether f is one of the 22 known features.
func (f Feature) Valid() bool {
	return f >= 0 && int(f) < NumFeatures
}

// ParseFeature looks up a feature by its wire identifier.
func ParseFeature(id string) (Feature, bool) {
	f, ok := featureByID[id]
	return f, ok
}

// Vector holds one finite value per feature, in feature order.
type Vector [NumFeatures]float64

// Payload maps the positional vector onto the named JSON object expected by
// POST /predict.
func (v Vector) Payload() map[string]float64 {
	out := make(map[string]float64, NumFeatures)
	for i, val := range v {
		out[featureTable[i].id] = val
	}
	return out
}

// Get returns the value for a feature.
func (v Vector) Get(f Feature) float64 {
	return v[f]
}

// VectorFromPayload is the inverse of Payload. It reports the identifiers
// that are missing and fails on non-finite values.
func VectorFromPayload(payload map[string]float64) (Vector, []string, error) {
	var v Vector
	var missing []string
	for i, info := range featureTable {
		val, ok := payload[info.id]
		if !ok {
			missing = append(missing, info.id)
			continue
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return v, nil, fmt.Errorf("feature %s is not a finite number", info.id)
		}
		v[i] = val
	}
	return v, missing, nil
}
