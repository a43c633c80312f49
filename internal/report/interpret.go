// Package report interprets stored predictions for the results, details and
// report views.
package report

import (
	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

// Outcome is the results view for a classification index.
type Outcome struct {
	ClassIndex  int    `json:"class_index"`
	Title       string `json:"title"`
	ShowDetails bool   `json:"show_details"`
	Pending     bool   `json:"pending"`
}

// PendingTitle is shown when no valid classification is available.
const PendingTitle = "Awaiting Result..."

// Interpret maps a classification index to its results view.
// Details are offered for Suspect and Pathological outcomes only.
func Interpret(c ctg.Class) Outcome {
	if !c.Valid() {
		return Outcome{ClassIndex: int(c), Title: PendingTitle, Pending: true}
	}
	return Outcome{
		ClassIndex:  int(c),
		Title:       c.String(),
		ShowDetails: c != ctg.ClassNormal,
	}
}

// Guidance is a clinical hint shown on the details view.
type Guidance struct {
	Feature     string `json:"feature"`
	Condition   string `json:"condition"`
	Finding     string `json:"finding"`
	Explanation string `json:"explanation,omitempty"`

	test func(v float64) bool
}

var guidance = []Guidance{
	{
		Feature:   ctg.ASTV.ID(),
		Condition: "ASTV < 20",
		Finding:   "Hypoxia risk",
		test:      func(v float64) bool { return v < 20 },
	},
	{
		Feature:     ctg.DL.ID(),
		Condition:   "DL > 0",
		Finding:     "Late deceleration",
		Explanation: "Placenta not supplying oxygen properly",
		test:        func(v float64) bool { return v > 0 },
	},
	{
		Feature:     ctg.UC.ID(),
		Condition:   "UC > 2",
		Finding:     "Over-contractions",
		Explanation: "Fetal stress",
		test:        func(v float64) bool { return v > 2 },
	},
	{
		Feature:     ctg.AC.ID(),
		Condition:   "AC = 0",
		Finding:     "No heart rate increase",
		Explanation: "Poor fetal reactivity",
		test:        func(v float64) bool { return v == 0 },
	},
}

// AllGuidance returns the fixed hints in display order.
func AllGuidance() []Guidance {
	out := make([]Guidance, len(guidance))
	copy(out, guidance)
	return out
}

// Finding is a hint evaluated against submitted values.
type Finding struct {
	Guidance
	Value     float64 `json:"value"`
	Triggered bool    `json:"triggered"`
}

// Evaluate checks every hint against v.
func Evaluate(v ctg.Vector) []Finding {
	out := make([]Finding, 0, len(guidance))
	for _, g := range guidance {
		feat, _ := ctg.ParseFeature(g.Feature)
		val := v.Get(feat)
		out = append(out, Finding{
			Guidance:  g,
			Value:     val,
			Triggered: g.test(val),
		})
	}
	return out
}
