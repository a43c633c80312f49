// Package ctg provides shared schemas for the CTG screening platform.
package ctg

// Class is the classification index returned by the prediction service.
type Class int

const (
	ClassNormal       Class = 1
	ClassSuspect      Class = 2
	ClassPathological Class = 3
)

// String returns the outcome category name.
func (c Class) String() string {
	switch c {
	case ClassNormal:
		return "Normal"
	case ClassSuspect:
		return "Suspect"
	case ClassPathological:
		return "Pathological"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is one of the three outcome categories.
func (c Class) Valid() bool {
	return c >= ClassNormal && c <= ClassPathological
}

// ShapValue is a single feature-impact contribution.
type ShapValue struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// PredictResponse is the response schema of POST /predict.
type PredictResponse struct {
	// Classification index (1=Normal, 2=Suspect, 3=Pathological)
	ClassIndex Class `json:"class_index"`
	// Probability of the predicted class, expected in [0,1]
	Probability float64 `json:"probability"`
	// Per-feature impact values
	ShapValues []ShapValue `json:"shap_values,omitempty"`
}

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}

// ReadyResponse is the response for readiness check endpoints.
type ReadyResponse struct {
	Status string                 `json:"status"`
	Model  string                 `json:"model,omitempty"`
	Checks map[string]interface{} `json:"checks,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CircuitBreakerStatus represents the status of a circuit breaker.
type CircuitBreakerStatus struct {
	Name              string  `json:"name"`
	State             string  `json:"state"`
	FailureCount      int     `json:"failure_count"`
	SuccessCount      int     `json:"success_count"`
	LastFailureTime   float64 `json:"last_failure_time"`
	RetryAfterSeconds float64 `json:"retry_after_seconds,omitempty"`
}
