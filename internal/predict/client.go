// Package predict provides the HTTP client for the remote prediction service.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Annmariya27/ctg-pro/internal/circuitbreaker"
	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/ctg"
	"github.com/Annmariya27/ctg-pro/internal/metrics"
)

// ServiceName labels the prediction service in breaker status and metrics.
const ServiceName = "predict"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

var (
	// ErrCircuitOpen is returned without a network call while the breaker is open.
	ErrCircuitOpen = errors.New("prediction service temporarily unavailable")

	// ErrMalformedResponse is returned when a 2xx body cannot be interpreted.
	ErrMalformedResponse = errors.New("malformed prediction response")

	// ErrUnreachable wraps transport failures: refused connections, timeouts, cancellation.
	ErrUnreachable = errors.New("prediction service unreachable")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
	// Message is the service's own error text, when the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error: %d %s", e.Code, e.Status)
}

// Client calls POST {base}/predict.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// NewClient creates a prediction client from configuration.
// breaker and m may be nil.
func NewClient(cfg *config.Config, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics) *Client {
	return &Client{
		baseURL: cfg.PredictionAPIURL,
		http:    newHTTPClient(cfg.PredictConnectTimeout, cfg.PredictTimeout),
		breaker: breaker,
		metrics: m,
	}
}

// newHTTPClient creates an HTTP client with configured timeouts.
func newHTTPClient(connectTimeout, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout + connectTimeout,
	}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Breaker returns the circuit breaker guarding the client, or nil.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Predict sends one feature vector and returns the parsed prediction.
func (c *Client) Predict(ctx context.Context, v ctg.Vector) (*ctg.PredictResponse, error) {
	var resp *ctg.PredictResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = c.doPredict(ctx, v)
		return err
	}

	start := time.Now()
	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		c.metrics.ObservePredict("rejected", 0)
		return nil, ErrCircuitOpen
	case err != nil:
		c.metrics.ObservePredict("error", elapsed)
		return nil, err
	}

	c.metrics.ObservePredict("success", elapsed)
	return resp, nil
}

// doPredict performs the actual HTTP call.
func (c *Client) doPredict(ctx context.Context, v ctg.Vector) (*ctg.PredictResponse, error) {
	body, err := json.Marshal(v.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request creation error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read error: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{
			Code:   resp.StatusCode,
			Status: http.StatusText(resp.StatusCode),
		}
		if gjson.ValidBytes(respBody) {
			statusErr.Message = gjson.GetBytes(respBody, "error").String()
		}
		log.Printf("[predict] %s (%s)", statusErr.Error(), statusErr.Message)
		return nil, statusErr
	}

	return ParseResponse(respBody)
}

// ParseResponse interprets a 2xx body from the prediction service.
//
// Accepted shapes:
//
//	{"class_index": 2, "probability": 0.81, "shap_values": [{"feature": "SVM_p1", "value": 0.4}]}
//	{"prediction": 1, "probability": 0.7}  legacy argmax, 0-based
//	{"error": "Missing features: [DL]"}
func ParseResponse(body []byte) (*ctg.PredictResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: expected object", ErrMalformedResponse)
	}

	if msg := doc.Get("error"); msg.Exists() && !doc.Get("class_index").Exists() {
		return nil, errors.New(msg.String())
	}

	var class ctg.Class
	switch idx := doc.Get("class_index"); {
	case idx.Exists():
		n, ok := integer(idx)
		if !ok {
			return nil, fmt.Errorf("%w: class_index %s is not an integer", ErrMalformedResponse, idx.Raw)
		}
		class = ctg.Class(n)
	case doc.Get("prediction").Exists():
		n, ok := integer(doc.Get("prediction"))
		if !ok {
			return nil, fmt.Errorf("%w: prediction %s is not an integer", ErrMalformedResponse, doc.Get("prediction").Raw)
		}
		class = ctg.Class(n + 1)
	default:
		return nil, fmt.Errorf("%w: missing class_index", ErrMalformedResponse)
	}
	if !class.Valid() {
		return nil, fmt.Errorf("%w: class_index %d out of range", ErrMalformedResponse, int(class))
	}

	prob := doc.Get("probability")
	if prob.Type != gjson.Number {
		return nil, fmt.Errorf("%w: missing probability", ErrMalformedResponse)
	}

	out := &ctg.PredictResponse{
		ClassIndex:  class,
		Probability: prob.Float(),
	}

	doc.Get("shap_values").ForEach(func(_, item gjson.Result) bool {
		out.ShapValues = append(out.ShapValues, ctg.ShapValue{
			Feature: item.Get("feature").String(),
			Value:   item.Get("value").Float(),
		})
		return true
	})

	return out, nil
}

// integer reports the value of a JSON number with no fractional part.
func integer(r gjson.Result) (int64, bool) {
	if r.Type != gjson.Number {
		return 0, false
	}
	f := r.Float()
	if f != math.Trunc(f) || math.Abs(f) > 1<<31 {
		return 0, false
	}
	return int64(f), true
}
