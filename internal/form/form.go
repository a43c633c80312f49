// Package form implements the CTG feature entry form: required-field
// validation, numeric parsing, a single in-flight prediction call per form,
// and hand-off of the result to the session store.
package form

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
	"github.com/Annmariya27/ctg-pro/internal/metrics"
	"github.com/Annmariya27/ctg-pro/internal/session"
)

// Identity field keys.
const (
	KeyPatientName = "patientName"
	KeyPatientID   = "patientId"

	// KeyRequest holds errors that are not tied to a single field.
	KeyRequest = "request"
)

// ResultsPath is where a successful submission navigates to.
const ResultsPath = "/results"

// Predictor performs one prediction call.
type Predictor interface {
	Predict(ctx context.Context, v ctg.Vector) (*ctg.PredictResponse, error)
}

// Navigator moves the operator to another view.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Submission describes a stored result, passed to the result hook.
type Submission struct {
	FormID     string
	SessionKey string
	Vector     ctg.Vector
	Record     *session.Record
}

// Options configures a Form. Predictor and Store are required.
type Options struct {
	ID         string
	SessionKey string
	Predictor  Predictor
	Store      session.Store
	Navigator  Navigator
	Metrics    *metrics.Metrics
	// OnResult runs after the record is stored and before navigation.
	OnResult func(ctx context.Context, s Submission)
}

// Form holds the raw inputs of one operator's form.
type Form struct {
	id         string
	sessionKey string
	predictor  Predictor
	store      session.Store
	navigator  Navigator
	metrics    *metrics.Metrics
	onResult   func(ctx context.Context, s Submission)

	mu             sync.Mutex
	fields         [ctg.NumFeatures]string
	patientName    string
	patientID      string
	errors         map[string]string
	showValidation bool
	busy           bool
	closed         bool
	cancel         context.CancelFunc
}

// New creates an empty form.
func New(opts Options) *Form {
	key := opts.SessionKey
	if key == "" {
		key = session.ResultKey
	}
	return &Form{
		id:         opts.ID,
		sessionKey: key,
		predictor:  opts.Predictor,
		store:      opts.Store,
		navigator:  opts.Navigator,
		metrics:    opts.Metrics,
		onResult:   opts.OnResult,
		errors:     make(map[string]string),
	}
}

// ID returns the form id.
func (f *Form) ID() string { return f.id }

// SessionKey returns the session slot results are written to.
func (f *Form) SessionKey() string { return f.sessionKey }

// SetField stores raw text for a feature identifier or identity key and
// clears any error recorded for that key.
func (f *Form) SetField(key, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	switch key {
	case KeyPatientName:
		f.patientName = raw
	case KeyPatientID:
		f.patientID = raw
	default:
		feat, ok := ctg.ParseFeature(key)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		f.fields[feat] = raw
	}

	delete(f.errors, key)
	return nil
}

// ClearAll resets every field and error.
func (f *Form) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fields = [ctg.NumFeatures]string{}
	f.patientName = ""
	f.patientID = ""
	f.errors = make(map[string]string)
	f.showValidation = false
}

// Validate recomputes the required-field errors and reports whether there are none.
func (f *Form) Validate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *Form) validateLocked() bool {
	errs := make(map[string]string)

	if strings.TrimSpace(f.patientName) == "" {
		errs[KeyPatientName] = MsgRequired
	}
	if strings.TrimSpace(f.patientID) == "" {
		errs[KeyPatientID] = MsgRequired
	}
	for i, raw := range f.fields {
		if strings.TrimSpace(raw) == "" {
			errs[ctg.Feature(i).ID()] = MsgRequired
		}
	}

	f.errors = errs
	f.showValidation = true
	return len(errs) == 0
}

// decimalPattern matches plain decimal numbers with an optional exponent.
// Go-only literal forms such as hex floats and digit separators are excluded.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// parseNumber parses text as a finite decimal number.
func parseNumber(raw string) (float64, bool) {
	text := strings.TrimSpace(raw)
	if !decimalPattern.MatchString(text) {
		return 0, false
	}
	val, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, false
	}
	return val, true
}

// parseLocked converts every feature to a finite float in feature order.
func (f *Form) parseLocked() (ctg.Vector, []string) {
	var v ctg.Vector
	var bad []string
	for i, raw := range f.fields {
		val, ok := parseNumber(raw)
		if !ok {
			bad = append(bad, ctg.Feature(i).ID())
			continue
		}
		v[i] = val
	}
	return v, bad
}

// Submit validates, parses and sends the form, then stores the result and
// navigates to the results view.
//
// It returns ErrBusy while another submission is in flight, *ValidationError
// or *NumericError without calling the service, *ServiceError when the call
// fails, and ErrClosed when the form was closed before the result arrived.
func (f *Form) Submit(ctx context.Context) (*session.Record, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.busy {
		f.mu.Unlock()
		return nil, ErrBusy
	}

	if !f.validateLocked() {
		verr := &ValidationError{Fields: copyErrors(f.errors)}
		f.mu.Unlock()
		f.metrics.SubmissionRejected("invalid")
		return nil, verr
	}

	vector, bad := f.parseLocked()
	if len(bad) > 0 {
		f.errors[KeyRequest] = MsgInvalidNumbers
		f.mu.Unlock()
		f.metrics.SubmissionRejected("not_numeric")
		return nil, &NumericError{Fields: bad}
	}

	callCtx, cancel := context.WithCancel(ctx)
	f.busy = true
	f.cancel = cancel
	patientName, patientID := f.patientName, f.patientID
	f.mu.Unlock()

	f.metrics.SubmissionStarted()
	resp, err := f.predictor.Predict(callCtx, vector)

	f.mu.Lock()
	f.busy = false
	f.cancel = nil
	cancel()

	if f.closed {
		f.mu.Unlock()
		f.metrics.SubmissionFinished("dropped")
		log.Printf("[form] %s: dropped result after close", f.id)
		return nil, ErrClosed
	}

	if err != nil {
		msg := failureMessage(err)
		f.errors[KeyRequest] = msg
		f.mu.Unlock()
		f.metrics.SubmissionFinished("service_error")
		log.Printf("[form] %s: prediction failed: %v", f.id, err)
		return nil, &ServiceError{Message: msg, Err: err}
	}

	rec := session.NewRecord(resp, patientName, patientID)
	// Written under the lock so a concurrent Close cannot interleave.
	if err := f.store.Set(ctx, f.sessionKey, rec); err != nil {
		f.errors[KeyRequest] = MsgStoreFailed
		f.mu.Unlock()
		f.metrics.SubmissionFinished("store_error")
		log.Printf("[form] %s: storing result failed: %v", f.id, err)
		return nil, fmt.Errorf("store result: %w", err)
	}
	delete(f.errors, KeyRequest)
	f.mu.Unlock()

	f.metrics.SubmissionFinished("success")

	if f.onResult != nil {
		f.onResult(ctx, Submission{
			FormID:     f.id,
			SessionKey: f.sessionKey,
			Vector:     vector,
			Record:     rec,
		})
	}
	if f.navigator != nil {
		f.navigator.Navigate(ResultsPath)
	}

	return rec, nil
}

// Busy reports whether a submission is in flight.
func (f *Form) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Close cancels any in-flight submission. A result arriving afterwards is
// discarded. Close is idempotent.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Closed reports whether Close was called.
func (f *Form) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Field is one feature input as shown to the operator.
type Field struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
	Error string `json:"error,omitempty"`
}

// Snapshot is a read-only view of the form.
type Snapshot struct {
	ID             string            `json:"id"`
	SessionKey     string            `json:"session_key"`
	PatientName    string            `json:"patientName"`
	PatientID      string            `json:"patientId"`
	Fields         []Field           `json:"fields"`
	Errors         map[string]string `json:"errors"`
	RequestError   string            `json:"request_error,omitempty"`
	ShowValidation bool              `json:"show_validation"`
	Busy           bool              `json:"busy"`
}

// Snapshot returns the current state. Field errors are included only once
// validation has been shown.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Snapshot{
		ID:             f.id,
		SessionKey:     f.sessionKey,
		PatientName:    f.patientName,
		PatientID:      f.patientID,
		Fields:         make([]Field, ctg.NumFeatures),
		Errors:         copyErrors(f.errors),
		RequestError:   f.errors[KeyRequest],
		ShowValidation: f.showValidation,
		Busy:           f.busy,
	}
	for i, raw := range f.fields {
		feat := ctg.Feature(i)
		s.Fields[i] = Field{ID: feat.ID(), Label: feat.Label(), Value: raw}
		if f.showValidation {
			s.Fields[i].Error = f.errors[feat.ID()]
		}
	}
	return s
}

// Errors returns a copy of the recorded errors.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyErrors(f.errors)
}

func copyErrors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// IsInputError reports whether err was caused by the operator's input rather
// than the service.
func IsInputError(err error) bool {
	var verr *ValidationError
	var nerr *NumericError
	return errors.As(err, &verr) || errors.As(err, &nerr) || errors.Is(err, ErrUnknownField)
}
