package form

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Annmariya27/ctg-pro/internal/predict"
)

// Messages shown to the operator.
const (
	MsgRequired        = "Fill this box"
	MsgInvalidNumbers  = "All fields must be filled with valid numbers."
	MsgServiceFallback = "Unable to reach the prediction service. Please check your connection and try again."
	MsgBadResponse     = "The prediction service returned an unexpected response."
	MsgStoreFailed     = "Unable to save the analysis result. Please try again."
)

var (
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("submission already in progress")

	// ErrClosed is returned once the form has been closed.
	ErrClosed = errors.New("form closed")

	// ErrUnknownField is returned for keys that are neither a feature nor an identity field.
	ErrUnknownField = errors.New("unknown field")
)

// ValidationError reports required fields that were left empty.
type ValidationError struct {
	// Fields maps field key to message.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) need attention (%s)", len(e.Fields), strings.Join(e.Keys(), ", "))
}

// Keys returns the failing keys in sorted order.
func (e *ValidationError) Keys() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NumericError reports feature values that did not parse as finite numbers.
type NumericError struct {
	// Fields lists the offending feature identifiers in feature order.
	Fields []string
}

func (e *NumericError) Error() string {
	return MsgInvalidNumbers
}

// ServiceError reports a failed prediction call.
type ServiceError struct {
	// Message is what the operator sees.
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// failureMessage derives the operator-facing message for a failed prediction call.
// Transport detail is logged by the caller, never shown.
func failureMessage(err error) string {
	var statusErr *predict.StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Message != "" {
			return statusErr.Message
		}
		return statusErr.Error()
	case errors.Is(err, predict.ErrCircuitOpen):
		return "The prediction service is temporarily unavailable. Please try again shortly."
	case errors.Is(err, predict.ErrMalformedResponse):
		return MsgBadResponse
	case err == nil,
		errors.Is(err, predict.ErrUnreachable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return MsgServiceFallback
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return MsgServiceFallback
}
