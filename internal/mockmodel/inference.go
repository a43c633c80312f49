package mockmodel

import (
	"math"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

// Base learners whose per-class probabilities feed the meta model.
var learners = []struct {
	name   string
	weight float64
}{
	{"SVM", 0.9},
	{"RandomForest", 1.0},
	{"XGBoost", 1.1},
	{"CatBoost", 1.05},
}

// Classify scores a feature vector with a fixed rule-based heuristic.
// It is deterministic: equal vectors give equal responses.
func Classify(v ctg.Vector) ctg.PredictResponse {
	risk := 0.0
	if v.Get(ctg.ASTV) < 20 {
		risk++
	}
	if v.Get(ctg.DL) > 0 {
		risk += 1.5
	}
	if v.Get(ctg.UC) > 2 {
		risk++
	}
	if v.Get(ctg.AC) == 0 {
		risk++
	}
	if v.Get(ctg.DS) > 0 || v.Get(ctg.DP) > 0 {
		risk += 2
	}

	probs := softmax([3]float64{
		2 - risk,
		1 - math.Abs(risk-1.5),
		risk - 2.5,
	})

	best := 0
	for k := 1; k < len(probs); k++ {
		if probs[k] > probs[best] {
			best = k
		}
	}

	shap := make([]ctg.ShapValue, 0, len(learners)*len(probs))
	for _, l := range learners {
		for k, p := range probs {
			shap = append(shap, ctg.ShapValue{
				Feature: l.name + "_p" + string(rune('0'+k)),
				Value:   round4((p - 1.0/3) * l.weight),
			})
		}
	}

	return ctg.PredictResponse{
		ClassIndex:  ctg.Class(best + 1),
		Probability: round4(probs[best]),
		ShapValues:  shap,
	}
}

func softmax(logits [3]float64) [3]float64 {
	maxLogit := math.Max(logits[0], math.Max(logits[1], logits[2]))
	var sum float64
	var out [3]float64
	for i, l := range logits {
		out[i] = math.Exp(l - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
