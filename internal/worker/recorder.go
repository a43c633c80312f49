// Package worker persists analysis events from the Redis stream to PostgreSQL.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/Annmariya27/ctg-pro/internal/cache"
	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/db"
)

// StreamReader reads events from a stream and deletes them once handled.
type StreamReader interface {
	ReadStream(ctx context.Context, stream string, count int) ([]map[string]interface{}, error)
	AckStream(ctx context.Context, stream string, ids ...string) error
}

// AnalysisWriter stores history rows.
type AnalysisWriter interface {
	InsertAnalysis(ctx context.Context, a db.Analysis) error
}

// Recorder moves analysis events from the Redis Stream into the analyses table
type Recorder struct {
	stream        StreamReader
	store         AnalysisWriter
	batchSize     int
	flushInterval time.Duration
}

// NewRecorder creates a new analysis recorder
func NewRecorder(stream StreamReader, store AnalysisWriter, cfg *config.Config) *Recorder {
	r := &Recorder{
		stream:        stream,
		store:         store,
		batchSize:     cfg.WorkerBatchSize,
		flushInterval: cfg.WorkerFlushInterval,
	}
	if r.batchSize <= 0 {
		r.batchSize = 100
	}
	if r.flushInterval <= 0 {
		r.flushInterval = 5 * time.Second
	}
	return r
}

// Start runs the recorder until ctx is cancelled
func (r *Recorder) Start(ctx context.Context) {
	log.Printf("[ctg-worker] Recorder started - consuming from %s", cache.AnalysisStream)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ctg-worker] Recorder shutting down...")
			// Final flush before exit
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			r.Flush(shutdownCtx)
			cancel()
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush processes one batch and returns the number of rows written.
//
// Stored and unparseable events are removed from the stream. Events whose
// insert failed stay and are retried on the next flush.
func (r *Recorder) Flush(ctx context.Context) int {
	msgs, err := r.stream.ReadStream(ctx, cache.AnalysisStream, r.batchSize)
	if err != nil {
		log.Printf("[ctg-worker] Error reading events: %v", err)
		return 0
	}

	if len(msgs) == 0 {
		return 0
	}

	written := 0
	done := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		id, _ := msg["_id"].(string)
		event, err := ParseAnalysisEvent(msg)
		if err != nil {
			log.Printf("[ctg-worker] Skipping event %s: %v", id, err)
			done = append(done, id)
			continue
		}
		analysis, err := event.Analysis()
		if err != nil {
			log.Printf("[ctg-worker] Skipping event %s: %v", id, err)
			done = append(done, id)
			continue
		}
		if err := r.store.InsertAnalysis(ctx, analysis); err != nil {
			log.Printf("[ctg-worker] Error storing analysis %s, will retry: %v", analysis.ID, err)
			continue
		}
		written++
		done = append(done, id)
	}

	if err := r.stream.AckStream(ctx, cache.AnalysisStream, done...); err != nil {
		log.Printf("[ctg-worker] Error removing %d handled events: %v", len(done), err)
	}

	log.Printf("[ctg-worker] Recorded %d of %d analysis events", written, len(msgs))
	return written
}
