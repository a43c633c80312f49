package api

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Annmariya27/ctg-pro/internal/db"
	"github.com/Annmariya27/ctg-pro/internal/report"
)

// Pagination bounds for patient reports.
const (
	defaultReportLimit = 20
	maxReportLimit     = 100
)

// HistoryHandler serves persisted analyses and their report QR codes
type HistoryHandler struct {
	store     HistoryStore
	qrService *report.QRService
}

// NewHistoryHandler creates a new history handler. store may be nil, in which
// case every history route answers 503.
func NewHistoryHandler(store HistoryStore, qrService *report.QRService) *HistoryHandler {
	return &HistoryHandler{store: store, qrService: qrService}
}

// AnalysisResponse is a stored analysis with its interpretation.
type AnalysisResponse struct {
	Analysis  *db.Analysis     `json:"analysis"`
	Outcome   report.Outcome   `json:"outcome"`
	Findings  []report.Finding `json:"findings,omitempty"`
	ReportURL string           `json:"report_url"`
}

// GetResult handles GET /v1/analysis/results/:id
func (h *HistoryHandler) GetResult(c *fiber.Ctx) error {
	a, err := h.lookup(c)
	if err != nil || a == nil {
		return err
	}

	outcome := report.Interpret(a.ClassIndex)
	resp := AnalysisResponse{
		Analysis:  a,
		Outcome:   outcome,
		ReportURL: h.qrService.ReportURL(a.ID.String()),
	}
	if outcome.ShowDetails {
		resp.Findings = report.Evaluate(a.Vector())
	}
	return c.JSON(resp)
}

// GetQRPNG handles GET /v1/analysis/results/:id/qr - generates QR code as PNG
func (h *HistoryHandler) GetQRPNG(c *fiber.Ctx) error {
	// Get size from query param (default 256)
	size, _ := strconv.Atoi(c.Query("size", strconv.Itoa(report.DefaultQRSize)))

	a, err := h.lookup(c)
	if err != nil || a == nil {
		return err
	}

	qrData, err := h.qrService.ReportPNG(a.ID.String(), size)
	if err != nil {
		log.Printf("[api] qr for analysis %s: %v", a.ID, err)
		return writeError(c, fiber.StatusInternalServerError, CodeInternalError, "failed to generate QR code")
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(qrData)
}

// ListPatientReports handles GET /v1/patient/reports/:patientId
func (h *HistoryHandler) ListPatientReports(c *fiber.Ctx) error {
	if h.store == nil {
		return historyDisabled(c)
	}

	patientID := c.Params("patientId")
	limit := c.QueryInt("limit", defaultReportLimit)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > maxReportLimit {
		limit = defaultReportLimit
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	analyses, err := h.store.ListPatientAnalyses(ctx, patientID, limit, offset)
	if err != nil {
		log.Printf("[api] list reports for patient: %v", err)
		return writeError(c, fiber.StatusInternalServerError, CodeInternalError, "failed to list reports")
	}

	reports := make([]AnalysisResponse, len(analyses))
	for i := range analyses {
		a := &analyses[i]
		reports[i] = AnalysisResponse{
			Analysis:  a,
			Outcome:   report.Interpret(a.ClassIndex),
			ReportURL: h.qrService.ReportURL(a.ID.String()),
		}
	}

	return c.JSON(fiber.Map{
		"patientId": patientID,
		"reports":   reports,
		"limit":     limit,
		"offset":    offset,
	})
}

// lookup loads the analysis named by :id. When it returns a nil analysis the
// error response has already been written.
func (h *HistoryHandler) lookup(c *fiber.Ctx) (*db.Analysis, error) {
	if h.store == nil {
		return nil, historyDisabled(c)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, writeError(c, fiber.StatusBadRequest, CodeBadRequest, "invalid analysis ID")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := h.store.GetAnalysis(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, writeError(c, fiber.StatusNotFound, CodeNotFound, "analysis not found")
	}
	if err != nil {
		log.Printf("[api] get analysis %s: %v", id, err)
		return nil, writeError(c, fiber.StatusInternalServerError, CodeInternalError, "failed to load analysis")
	}
	return a, nil
}

func historyDisabled(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusServiceUnavailable, CodeHistoryDisabled, "analysis history is not enabled")
}
