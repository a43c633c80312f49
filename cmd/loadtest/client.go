package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

var (
	errBusy     = errors.New("submission busy")
	errRejected = errors.New("submission rejected")
)

// Clinician represents a simulated operator entering screenings
type Clinician struct {
	ID            string
	PatientPrefix string
}

// Client drives the form flow against the screening API
type Client struct {
	httpClient     *http.Client
	baseURL        string
	clinicians     []Clinician
	clinicianIdx   atomic.Uint64
	patientCounter atomic.Uint64
	invalidRatio   float64
}

// NewClient creates a new screening API client
func NewClient(baseURL string, numClinicians int, invalidRatio float64) *Client {
	// Create HTTP client with connection pooling
	transport := &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}

	client := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   15 * time.Second,
		},
		baseURL:      baseURL,
		clinicians:   make([]Clinician, numClinicians),
		invalidRatio: invalidRatio,
	}

	for i := 0; i < numClinicians; i++ {
		client.clinicians[i] = Clinician{
			ID:            fmt.Sprintf("clinician-%d", i+1),
			PatientPrefix: fmt.Sprintf("LT%02d", i+1),
		}
	}

	return client
}

// RequestResult holds the result of one create, fill and submit flow
type RequestResult struct {
	ClinicianID string
	Latency     time.Duration
	Success     bool
	Timeout     bool
	Rejected    bool
	Busy        bool
	Error       error
	ClassIndex  int
	StatusCode  int
}

// RunFlow creates a form, fills every field, submits it and removes the form.
func (c *Client) RunFlow(ctx context.Context) RequestResult {
	// Round-robin clinician selection
	idx := c.clinicianIdx.Add(1) - 1
	clinician := c.clinicians[idx%uint64(len(c.clinicians))]

	result := RequestResult{ClinicianID: clinician.ID}
	start := time.Now()

	status, body, err := c.do(ctx, http.MethodPost, "/v1/forms", nil)
	if err != nil || status != http.StatusCreated {
		return c.failed(ctx, result, start, status, body, err)
	}
	formID := gjson.GetBytes(body, "id").String()
	defer c.deleteForm(formID)

	status, body, err = c.do(ctx, http.MethodPatch, "/v1/forms/"+formID, c.generateFields(clinician))
	if err != nil || status != http.StatusOK {
		return c.failed(ctx, result, start, status, body, err)
	}

	status, body, err = c.do(ctx, http.MethodPost, "/v1/forms/"+formID+"/submit", nil)
	if err != nil || status != http.StatusOK {
		return c.failed(ctx, result, start, status, body, err)
	}

	result.Latency = time.Since(start)
	result.StatusCode = status
	result.Success = true
	result.ClassIndex = int(gjson.GetBytes(body, "result.class_index").Int())
	return result
}

func (c *Client) failed(ctx context.Context, result RequestResult, start time.Time, status int, body []byte, err error) RequestResult {
	result.Latency = time.Since(start)
	result.StatusCode = status

	if err != nil {
		// Check if it's a timeout
		if ctx.Err() == context.DeadlineExceeded {
			result.Timeout = true
		}
		result.Error = err
		return result
	}

	code := gjson.GetBytes(body, "error.code").String()
	message := gjson.GetBytes(body, "error.message").String()
	switch {
	case status == http.StatusConflict:
		result.Busy = true
		result.Error = errBusy
	case status == http.StatusUnprocessableEntity:
		result.Rejected = true
		result.Error = fmt.Errorf("%w: %s", errRejected, code)
	case status >= 500:
		result.Error = fmt.Errorf("server error: %d %s - %s", status, code, message)
	default:
		result.Error = fmt.Errorf("client error: %d %s - %s", status, code, message)
	}
	return result
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// deleteForm releases the server-side form. Errors are ignored.
func (c *Client) deleteForm(formID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, _ = c.do(ctx, http.MethodDelete, "/v1/forms/"+formID, nil)
}

// featureRange bounds the random value generated for a feature.
type featureRange struct {
	min, max float64
	decimals int
}

// Ranges roughly follow the UCI cardiotocography dataset.
var featureRanges = map[string]featureRange{
	"LB":       {106, 160, 0},
	"AC":       {0, 0.019, 3},
	"FM":       {0, 0.481, 3},
	"UC":       {0, 0.015, 3},
	"ASTV":     {12, 87, 0},
	"MSTV":     {0.2, 7, 1},
	"ALTV":     {0, 91, 0},
	"MLTV":     {0, 50.7, 1},
	"DL":       {0, 0.015, 3},
	"DS":       {0, 0.001, 3},
	"DP":       {0, 0.005, 3},
	"DR":       {0, 0, 0},
	"Width":    {3, 180, 0},
	"Min":      {50, 159, 0},
	"Max":      {122, 238, 0},
	"Nmax":     {0, 18, 0},
	"Nzeros":   {0, 10, 0},
	"Mode":     {60, 187, 0},
	"Mean":     {73, 182, 0},
	"Median":   {77, 186, 0},
	"Variance": {0, 269, 0},
	"Tendency": {-1, 1, 0},
}

// generateFields returns a complete form body. A share of bodies, set by
// invalidRatio, carries one non-numeric value.
func (c *Client) generateFields(clinician Clinician) map[string]string {
	n := c.patientCounter.Add(1)
	fields := map[string]string{
		"patientName": fmt.Sprintf("Load Test Patient %d", n),
		"patientId":   fmt.Sprintf("%s-%06d", clinician.PatientPrefix, n),
	}

	for _, f := range ctg.Features() {
		r := featureRanges[f.ID()]
		v := r.min + rand.Float64()*(r.max-r.min)
		fields[f.ID()] = strconv.FormatFloat(v, 'f', r.decimals, 64)
	}

	if c.invalidRatio > 0 && rand.Float64() < c.invalidRatio {
		features := ctg.Features()
		fields[features[rand.Intn(len(features))].ID()] = "n/a"
	}
	return fields
}
