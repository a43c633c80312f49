package form

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Annmariya27/ctg-pro/internal/metrics"
)

type entry struct {
	form     *Form
	lastSeen atomic.Int64 // unix nanoseconds
}

func (e *entry) touch(now time.Time) {
	e.lastSeen.Store(now.UnixNano())
}

func (e *entry) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.lastSeen.Load()))
}

// Registry manages live form instances keyed by id.
type Registry struct {
	forms   map[string]*entry
	mu      sync.RWMutex
	newOpts func(id string) Options
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRegistry creates a registry. newOpts supplies the collaborators for each
// new form; the registry fills in the id.
func NewRegistry(newOpts func(id string) Options, m *metrics.Metrics) *Registry {
	return &Registry{
		forms:   make(map[string]*entry),
		newOpts: newOpts,
		metrics: m,
		now:     time.Now,
	}
}

// Create registers a new empty form under a fresh id.
func (r *Registry) Create() *Form {
	return r.GetOrCreate(uuid.New().String())
}

// GetOrCreate returns the form for id, creating it if needed.
func (r *Registry) GetOrCreate(id string) *Form {
	if f, ok := r.Get(id); ok {
		return f
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if e, exists := r.forms[id]; exists {
		e.touch(r.now())
		return e.form
	}

	opts := r.newOpts(id)
	opts.ID = id
	e := &entry{form: New(opts)}
	e.touch(r.now())
	r.forms[id] = e
	if r.metrics != nil {
		r.metrics.OpenForms.Inc()
	}
	return e.form
}

// Get returns the form for id and marks it as recently used.
func (r *Registry) Get(id string) (*Form, bool) {
	r.mu.RLock()
	e, ok := r.forms[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.touch(r.now())
	return e.form, true
}

// Remove closes and forgets the form for id. It reports whether one existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.forms[id]
	delete(r.forms, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.form.Close()
	if r.metrics != nil {
		r.metrics.OpenForms.Dec()
	}
	return true
}

// Sweep closes and forgets forms unused for longer than idle. Forms with a
// submission in flight are kept. It returns the number removed.
func (r *Registry) Sweep(idle time.Duration) int {
	now := r.now()

	r.mu.Lock()
	var stale []*Form
	for id, e := range r.forms {
		if e.idleSince(now) > idle && !e.form.Busy() {
			stale = append(stale, e.form)
			delete(r.forms, id)
		}
	}
	r.mu.Unlock()

	for _, f := range stale {
		f.Close()
	}
	if r.metrics != nil && len(stale) > 0 {
		r.metrics.OpenForms.Sub(float64(len(stale)))
	}
	return len(stale)
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, idle, interval time.Duration) {
	if idle <= 0 {
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
			if n := r.Sweep(idle); n > 0 {
				log.Printf("[form] Evicted %d idle forms", n)
			}
		}
	}
}

// CloseAll closes every form, cancelling in-flight submissions.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	forms := r.forms
	r.forms = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range forms {
		e.form.Close()
	}
	if r.metrics != nil {
		r.metrics.OpenForms.Set(0)
	}
}

// Len returns the number of live forms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.forms)
}
