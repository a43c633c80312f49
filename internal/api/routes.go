// Package api exposes the screening form, results and history over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/Annmariya27/ctg-pro/internal/circuitbreaker"
	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/db"
	"github.com/Annmariya27/ctg-pro/internal/form"
	"github.com/Annmariya27/ctg-pro/internal/metrics"
	"github.com/Annmariya27/ctg-pro/internal/report"
	"github.com/Annmariya27/ctg-pro/internal/session"
)

// HistoryStore reads persisted analyses.
type HistoryStore interface {
	GetAnalysis(ctx context.Context, id uuid.UUID) (*db.Analysis, error)
	ListPatientAnalyses(ctx context.Context, patientID string, limit, offset int) ([]db.Analysis, error)
}

// EventPublisher appends completed analyses to the history stream.
type EventPublisher interface {
	RecordAnalysisEvent(ctx context.Context, event map[string]interface{}) error
}

// HealthChecker is a dependency checked by /ready.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds everything the handlers need. Config, Predictor and Sessions
// are required.
type Deps struct {
	Config    *config.Config
	Predictor form.Predictor
	Breaker   *circuitbreaker.CircuitBreaker
	Sessions  session.Store
	Metrics   *metrics.Metrics

	// History and Events are nil when analysis history is disabled.
	History HistoryStore
	Events  EventPublisher

	// Checks are run by /ready, keyed by name.
	Checks map[string]HealthChecker
}

// Handlers holds all API handlers
type Handlers struct {
	Forms    *FormHandler
	Sessions *SessionHandler
	History  *HistoryHandler

	forms   *form.Registry
	breaker *circuitbreaker.CircuitBreaker
	checks  map[string]HealthChecker
	metrics *metrics.Metrics
}

// NewHandlers creates all API handlers
func NewHandlers(deps Deps) *Handlers {
	cfg := deps.Config
	publisher := newEventPublisher(deps.Events)
	registry := form.NewRegistry(func(id string) form.Options {
		return form.Options{
			SessionKey: id,
			Predictor:  deps.Predictor,
			Store:      deps.Sessions,
			Metrics:    deps.Metrics,
			Navigator:  logNavigator(id),
			OnResult:   publisher.publish,
		}
	}, deps.Metrics)

	return &Handlers{
		Forms:    NewFormHandler(registry, deps.Breaker),
		Sessions: NewSessionHandler(deps.Sessions, cfg.ImpactLimit),
		History:  NewHistoryHandler(deps.History, report.NewQRService(cfg.BaseURL)),
		forms:    registry,
		breaker:  deps.Breaker,
		checks:   deps.Checks,
		metrics:  deps.Metrics,
	}
}

// Registry returns the live form registry.
func (h *Handlers) Registry() *form.Registry {
	return h.forms
}

// NewApp creates the Fiber app with the server's settings.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:        "CTG Screening API",
		ServerHeader:   "ctg-pro",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		ReadBufferSize: 16384,
		// Params and body values are kept by forms beyond the request.
		Immutable:    true,
		ErrorHandler: ErrorHandler,
	})
}

// RegisterRoutes registers all API routes
func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Use(recover.New())
	app.Use(h.timing)

	app.Get("/health", h.health)
	app.Get("/ready", h.ready)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1 := app.Group("/v1")

	v1.Get("/features", h.Forms.Features)

	// Form routes
	v1.Post("/forms", h.Forms.Create)
	v1.Get("/forms/:id", h.Forms.Get)
	v1.Put("/forms/:id/fields/:field", h.Forms.SetField)
	v1.Patch("/forms/:id", h.Forms.SetFields)
	v1.Post("/forms/:id/clear", h.Forms.Clear)
	v1.Post("/forms/:id/validate", h.Forms.Validate)
	v1.Post("/forms/:id/submit", h.Forms.Submit)
	v1.Delete("/forms/:id", h.Forms.Delete)

	// Session routes
	v1.Get("/sessions/:key/result", h.Sessions.Result)
	v1.Get("/sessions/:key/impact", h.Sessions.Impact)
	v1.Get("/sessions/:key/impact.html", h.Sessions.ImpactChart)
	v1.Delete("/sessions/:key", h.Sessions.Clear)

	// History routes
	v1.Get("/analysis/results/:id", h.History.GetResult)
	v1.Get("/analysis/results/:id/qr", h.History.GetQRPNG)
	v1.Get("/patient/reports/:patientId", h.History.ListPatientReports)
}

// timing records the duration of every request under its route pattern.
func (h *Handlers) timing(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	h.metrics.ObserveHTTP(c.Method(), c.Route().Path, status, time.Since(start))
	return err
}

func (h *Handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handlers) ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	ready := true

	for name, checker := range h.checks {
		if checker == nil {
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			checks[name] = fiber.Map{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			ready = false
		} else {
			checks[name] = fiber.Map{"status": "healthy"}
		}
	}

	// An open breaker degrades submissions but the server still serves results.
	if h.breaker != nil {
		checks["prediction_service"] = h.breaker.GetStatus()
	}
	checks["open_forms"] = h.forms.Len()

	status := "ready"
	code := fiber.StatusOK
	if !ready {
		status = "not_ready"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}
