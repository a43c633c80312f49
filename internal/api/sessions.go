package api

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Annmariya27/ctg-pro/internal/impact"
	"github.com/Annmariya27/ctg-pro/internal/report"
	"github.com/Annmariya27/ctg-pro/internal/session"
)

// SessionHandler serves the stored result for the results and chart views
type SessionHandler struct {
	store        session.Store
	defaultLimit int
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store session.Store, defaultLimit int) *SessionHandler {
	if defaultLimit <= 0 {
		defaultLimit = impact.DefaultLimit
	}
	return &SessionHandler{store: store, defaultLimit: defaultLimit}
}

// ImpactResponse is the chart data for a stored result.
type ImpactResponse struct {
	Title       string       `json:"title"`
	PatientName string       `json:"patientName"`
	PatientID   string       `json:"patientId"`
	Rows        []impact.Row `json:"rows"`
}

// Result handles GET /v1/sessions/:key/result
func (h *SessionHandler) Result(c *fiber.Ctx) error {
	rec, err := h.load(c)
	if err != nil {
		return h.loadError(c, err)
	}
	return c.JSON(fiber.Map{
		"result":  rec,
		"outcome": report.Interpret(rec.ClassIndex),
	})
}

// Impact handles GET /v1/sessions/:key/impact
func (h *SessionHandler) Impact(c *fiber.Ctx) error {
	limit, ok := h.limit(c)
	if !ok {
		return writeError(c, fiber.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
	}

	rec, err := h.load(c)
	if err != nil {
		return h.loadError(c, err)
	}

	rows := impact.ComputeDisplayRows(rec.ShapValues, limit)
	return c.JSON(ImpactResponse{
		Title:       impact.Title(len(rows)),
		PatientName: rec.PatientName,
		PatientID:   rec.PatientID,
		Rows:        rows,
	})
}

// ImpactChart handles GET /v1/sessions/:key/impact.html
func (h *SessionHandler) ImpactChart(c *fiber.Ctx) error {
	limit, ok := h.limit(c)
	if !ok {
		return writeError(c, fiber.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
	}

	rec, err := h.load(c)
	if err != nil {
		return h.loadError(c, err)
	}

	rows := impact.ComputeDisplayRows(rec.ShapValues, limit)
	var buf bytes.Buffer
	if err := impact.RenderChart(&buf, rows, impact.ChartOptions{
		Subtitle: rec.PatientName,
	}); err != nil {
		return writeError(c, fiber.StatusInternalServerError, CodeInternalError, "failed to render chart")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(buf.Bytes())
}

// Clear handles DELETE /v1/sessions/:key
func (h *SessionHandler) Clear(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.store.Clear(ctx, c.Params("key")); err != nil {
		return writeError(c, fiber.StatusInternalServerError, CodeInternalError, "failed to clear session")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SessionHandler) load(c *fiber.Ctx) (*session.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.store.Get(ctx, c.Params("key"))
}

func (h *SessionHandler) loadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return writeError(c, fiber.StatusNotFound, CodeNotFound, "no analysis result for this session")
	}
	return writeError(c, fiber.StatusInternalServerError, CodeInternalError, "failed to load session")
}

// limit reads ?limit=, falling back to the configured default.
func (h *SessionHandler) limit(c *fiber.Ctx) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return h.defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
