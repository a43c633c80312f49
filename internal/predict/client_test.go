package predict

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annmariya27/ctg-pro/internal/circuitbreaker"
	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/ctg"
	"github.com/Annmariya27/ctg-pro/internal/metrics"
)

func newTestClient(t *testing.T, url string, cb *circuitbreaker.CircuitBreaker) (*Client, *metrics.Metrics) {
	t.Helper()
	cfg := &config.Config{
		PredictionAPIURL:      url,
		PredictTimeout:        2 * time.Second,
		PredictConnectTimeout: time.Second,
	}
	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(cfg, cb, m)
	t.Cleanup(c.Close)
	return c, m
}

func TestPredict_SendsNamedPayload(t *testing.T) {
	var got map[string]float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"class_index":2,"probability":0.81,"shap_values":[{"feature":"SVM_p1","value":0.4}]}`))
	}))
	defer srv.Close()

	c, m := newTestClient(t, srv.URL, nil)

	var v ctg.Vector
	v[ctg.ASTV] = 43
	resp, err := c.Predict(context.Background(), v)
	require.NoError(t, err)

	assert.Len(t, got, ctg.NumFeatures)
	assert.Equal(t, 43.0, got["ASTV"])
	assert.Equal(t, 0.0, got["LB"])

	assert.Equal(t, ctg.ClassSuspect, resp.ClassIndex)
	assert.Equal(t, 0.81, resp.Probability)
	assert.Equal(t, []ctg.ShapValue{{Feature: "SVM_p1", Value: 0.4}}, resp.ShapValues)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictTotal.WithLabelValues("success")))
}

func TestPredict_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Missing features: ['DL']"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, nil)
	_, err := c.Predict(context.Background(), ctg.Vector{})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 400, statusErr.Code)
	assert.Equal(t, "API Error: 400 Bad Request", statusErr.Error())
	assert.Equal(t, "Missing features: ['DL']", statusErr.Message)
}

func TestPredict_BreakerFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := circuitbreaker.New(ServiceName, 2, 1, time.Hour, nil)
	c, _ := newTestClient(t, srv.URL, cb)

	for i := 0; i < 2; i++ {
		_, err := c.Predict(context.Background(), ctg.Vector{})
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	_, err := c.Predict(context.Background(), ctg.Vector{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPredict_CancelDoesNotTripBreaker(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cb := circuitbreaker.New(ServiceName, 1, 1, time.Hour, nil)
	c, _ := newTestClient(t, srv.URL, cb)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Predict(ctx, ctg.Vector{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		class   ctg.Class
		wantErr error
		errText string
	}{
		{name: "class index", body: `{"class_index":3,"probability":0.9}`, class: ctg.ClassPathological},
		{name: "legacy prediction", body: `{"prediction":0,"probability":0.7}`, class: ctg.ClassNormal},
		{name: "integral float index", body: `{"class_index":2.0,"probability":0.5}`, class: ctg.ClassSuspect},
		{name: "out of range", body: `{"class_index":4,"probability":0.5}`, wantErr: ErrMalformedResponse},
		{name: "fractional index", body: `{"class_index":2.7,"probability":0.5}`, wantErr: ErrMalformedResponse},
		{name: "fractional prediction", body: `{"prediction":0.5,"probability":0.5}`, wantErr: ErrMalformedResponse},
		{name: "missing probability", body: `{"class_index":1}`, wantErr: ErrMalformedResponse},
		{name: "string probability", body: `{"class_index":1,"probability":"0.9"}`, wantErr: ErrMalformedResponse},
		{name: "string index", body: `{"class_index":"2"}`, wantErr: ErrMalformedResponse},
		{name: "missing", body: `{"probability":0.5}`, wantErr: ErrMalformedResponse},
		{name: "not json", body: `<html>`, wantErr: ErrMalformedResponse},
		{name: "array", body: `[1,2]`, wantErr: ErrMalformedResponse},
		{name: "error body", body: `{"error":"model not loaded"}`, errText: "model not loaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse([]byte(tt.body))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				assert.EqualError(t, err, tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.class, resp.ClassIndex)
			}
		})
	}
}
