package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

// ErrNotFound is returned when no analysis matches.
var ErrNotFound = errors.New("analysis not found")

// Analysis is one completed screening.
type Analysis struct {
	ID          uuid.UUID          `json:"id"`
	SessionKey  string             `json:"session_key"`
	PatientID   string             `json:"patientId"`
	PatientName string             `json:"patientName"`
	ClassIndex  ctg.Class          `json:"class_index"`
	Probability float64            `json:"probability"`
	ShapValues  []ctg.ShapValue    `json:"shap_values"`
	Features    map[string]float64 `json:"features"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Vector returns the submitted features in feature order. Missing entries are zero.
func (a *Analysis) Vector() ctg.Vector {
	v, _, _ := ctg.VectorFromPayload(a.Features)
	return v
}

// InsertAnalysis stores an analysis. Re-inserting the same id is a no-op.
func (db *DB) InsertAnalysis(ctx context.Context, a Analysis) error {
	shap := a.ShapValues
	if shap == nil {
		shap = []ctg.ShapValue{}
	}
	shapJSON, err := json.Marshal(shap)
	if err != nil {
		return fmt.Errorf("failed to encode shap values: %w", err)
	}
	features := a.Features
	if features == nil {
		features = map[string]float64{}
	}
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO analyses (id, session_key, patient_id, patient_name, class_index, probability, shap_values, features, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.SessionKey, a.PatientID, a.PatientName, int16(a.ClassIndex), a.Probability,
		shapJSON, featuresJSON, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

const analysisColumns = `id, session_key, patient_id, patient_name, class_index, probability, shap_values, features, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var a Analysis
	var class int16
	var shapJSON, featuresJSON []byte
	if err := row.Scan(&a.ID, &a.SessionKey, &a.PatientID, &a.PatientName, &class,
		&a.Probability, &shapJSON, &featuresJSON, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ClassIndex = ctg.Class(class)
	if err := json.Unmarshal(shapJSON, &a.ShapValues); err != nil {
		return nil, fmt.Errorf("failed to decode shap values: %w", err)
	}
	if err := json.Unmarshal(featuresJSON, &a.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	return &a, nil
}

// GetAnalysis retrieves an analysis by id
func (db *DB) GetAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// ListPatientAnalyses returns a patient's analyses, newest first
func (db *DB) ListPatientAnalyses(ctx context.Context, patientID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	analyses := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return analyses, nil
}
