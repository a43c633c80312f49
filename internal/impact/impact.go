// Package impact turns a prediction's feature-impact (SHAP) values into the
// sorted, normalised rows drawn by the impact bar chart.
package impact

import (
	"math"
	"sort"
	"strconv"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

// DefaultLimit is the number of rows shown when no limit is given.
const DefaultLimit = 10

// labels translates the meta-model feature names emitted by the stacked
// classifier.
var labels = map[string]string{
	"SVM_p0":          "SVM (Normal)",
	"SVM_p1":          "SVM (Suspect)",
	"SVM_p2":          "SVM (Pathological)",
	"RandomForest_p0": "RF (Normal)",
	"RandomForest_p1": "RF (Suspect)",
	"RandomForest_p2": "RF (Pathological)",
	"XGBoost_p0":      "XGB (Normal)",
	"XGBoost_p1":      "XGB (Suspect)",
	"XGBoost_p2":      "XGB (Pathological)",
	"CatBoost_p0":     "CatBoost (Normal)",
	"CatBoost_p1":     "CatBoost (Suspect)",
	"CatBoost_p2":     "CatBoost (Pathological)",
}

// Row is one bar of the chart.
type Row struct {
	Feature string  `json:"feature"`
	Label   string  `json:"label"`
	Width   float64 `json:"width"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// Label returns the display label for a feature name, or the name itself.
func Label(feature string) string {
	if l, ok := labels[feature]; ok {
		return l
	}
	return feature
}

// ComputeDisplayRows sorts entries by value descending, keeps the first
// limit, and scales each width against the largest kept value.
// Equal values keep their input order. A limit <= 0 means DefaultLimit.
// The input slice is not modified.
func ComputeDisplayRows(entries []ctg.ShapValue, limit int) []Row {
	if limit <= 0 {
		limit = DefaultLimit
	}

	sorted := make([]ctg.ShapValue, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i].Value) > sortKey(sorted[j].Value)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	rows := make([]Row, len(sorted))
	if len(sorted) == 0 {
		return rows
	}

	maxValue := sorted[0].Value
	for i, e := range sorted {
		rows[i] = Row{
			Feature: e.Feature,
			Label:   Label(e.Feature),
			Width:   widthFraction(e.Value, maxValue),
			Value:   e.Value,
			Display: strconv.FormatFloat(e.Value, 'f', 4, 64),
		}
	}
	return rows
}

// sortKey orders NaN below every number.
func sortKey(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}

func widthFraction(v, maxValue float64) float64 {
	if !(maxValue > 0) || math.IsInf(maxValue, 1) {
		return 0
	}
	w := v / maxValue
	switch {
	case math.IsNaN(w), w < 0:
		return 0
	case w > 1:
		return 1
	}
	return w
}
