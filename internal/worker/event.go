package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
	"github.com/Annmariya27/ctg-pro/internal/db"
)

// AnalysisEvent is published to the analysis stream after a successful submission.
type AnalysisEvent struct {
	AnalysisID  string             `json:"analysis_id"`
	SessionKey  string             `json:"session_key"`
	PatientID   string             `json:"patient_id"`
	PatientName string             `json:"patient_name"`
	ClassIndex  int                `json:"class_index"`
	Probability float64            `json:"probability"`
	ShapValues  []ctg.ShapValue    `json:"shap_values,omitempty"`
	Features    map[string]float64 `json:"features"`
	Timestamp   int64              `json:"timestamp"`
}

// StreamValues encodes the event as stream fields.
func (e AnalysisEvent) StreamValues() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode analysis event: %w", err)
	}
	return map[string]interface{}{"data": string(data)}, nil
}

// ParseAnalysisEvent decodes one stream message.
func ParseAnalysisEvent(msg map[string]interface{}) (*AnalysisEvent, error) {
	data, ok := msg["data"].(string)
	if !ok {
		return nil, fmt.Errorf("event %v has no data field", msg["_id"])
	}

	var event AnalysisEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("parse event %v: %w", msg["_id"], err)
	}
	return &event, nil
}

// Analysis converts the event to a history row.
func (e *AnalysisEvent) Analysis() (db.Analysis, error) {
	id, err := uuid.Parse(e.AnalysisID)
	if err != nil {
		return db.Analysis{}, fmt.Errorf("invalid analysis id %q: %w", e.AnalysisID, err)
	}
	class := ctg.Class(e.ClassIndex)
	if !class.Valid() {
		return db.Analysis{}, fmt.Errorf("invalid class index %d", e.ClassIndex)
	}

	return db.Analysis{
		ID:          id,
		SessionKey:  e.SessionKey,
		PatientID:   e.PatientID,
		PatientName: e.PatientName,
		ClassIndex:  class,
		Probability: e.Probability,
		ShapValues:  e.ShapValues,
		Features:    e.Features,
		CreatedAt:   time.Unix(e.Timestamp, 0).UTC(),
	}, nil
}
