// Package session holds the per-session result slot read by the results and
// chart views.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

// ResultKey is the slot name the form writes its prediction under.
const ResultKey = "analysisResult"

// ErrNotFound is returned when a session slot holds no record.
var ErrNotFound = errors.New("session record not found")

// Record is a prediction merged with the patient identity it was made for.
type Record struct {
	ClassIndex  ctg.Class       `json:"class_index"`
	Probability float64         `json:"probability"`
	ShapValues  []ctg.ShapValue `json:"shap_values,omitempty"`
	PatientName string          `json:"patientName"`
	PatientID   string          `json:"patientId"`
}

// NewRecord merges a prediction with identity fields.
func NewRecord(resp *ctg.PredictResponse, patientName, patientID string) *Record {
	rec := &Record{
		PatientName: patientName,
		PatientID:   patientID,
	}
	if resp != nil {
		rec.ClassIndex = resp.ClassIndex
		rec.Probability = resp.Probability
		rec.ShapValues = append([]ctg.ShapValue(nil), resp.ShapValues...)
	}
	return rec
}

// Store is a keyed, last-writer-wins record store.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, rec *Record) error
	Clear(ctx context.Context, key string) error
}

type memoryRecord struct {
	rec     Record
	expires time.Time
}

func (m memoryRecord) expired(now time.Time) bool {
	return !m.expires.IsZero() && !now.Before(m.expires)
}

// MemoryStore is an in-process Store. Records written with a TTL expire like
// their Redis counterparts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store whose records never expire.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithTTL(0)
}

// NewMemoryStoreWithTTL creates an empty in-memory store whose records expire
// ttl after they were last written. A ttl <= 0 disables expiry.
func NewMemoryStoreWithTTL(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the record stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	m, ok := s.records[key]
	s.mu.RUnlock()
	if !ok || m.expired(s.now()) {
		return nil, ErrNotFound
	}
	rec := m.rec
	rec.ShapValues = append([]ctg.ShapValue(nil), rec.ShapValues...)
	return &rec, nil
}

// Set replaces the record stored under key.
func (s *MemoryStore) Set(_ context.Context, key string, rec *Record) error {
	if rec == nil {
		return errors.New("nil session record")
	}
	m := memoryRecord{rec: *rec}
	m.rec.ShapValues = append([]ctg.ShapValue(nil), rec.ShapValues...)
	if s.ttl > 0 {
		m.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.records[key] = m
	s.mu.Unlock()
	return nil
}

// Clear removes the record stored under key. Clearing an empty slot is not an error.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired records and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, m := range s.records {
		if m.expired(now) {
			delete(s.records, key)
			n++
		}
	}
	return n
}

// RunJanitor calls Sweep every interval until ctx is cancelled.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of stored records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
