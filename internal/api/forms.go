package api

import (
	"errors"
	"log"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"

	"github.com/Annmariya27/ctg-pro/internal/circuitbreaker"
	"github.com/Annmariya27/ctg-pro/internal/ctg"
	"github.com/Annmariya27/ctg-pro/internal/form"
	"github.com/Annmariya27/ctg-pro/internal/predict"
	"github.com/Annmariya27/ctg-pro/internal/report"
	"github.com/Annmariya27/ctg-pro/internal/session"
)

// MsgFillRequired is the summary message for a submission with empty fields.
const MsgFillRequired = "Please fill in all required fields."

// FormHandler handles the feature entry form
type FormHandler struct {
	registry *form.Registry
	breaker  *circuitbreaker.CircuitBreaker
}

// NewFormHandler creates a new form handler. breaker may be nil; it only
// supplies the Retry-After hint when submissions are rejected.
func NewFormHandler(registry *form.Registry, breaker *circuitbreaker.CircuitBreaker) *FormHandler {
	return &FormHandler{registry: registry, breaker: breaker}
}

// FeatureResponse describes one input of the form.
type FeatureResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SetFieldRequest is the body of PUT /v1/forms/:id/fields/:field
type SetFieldRequest struct {
	Value string `json:"value"`
}

// SubmitResponse is returned by a successful submission.
type SubmitResponse struct {
	Result    *session.Record `json:"result"`
	Outcome   report.Outcome  `json:"outcome"`
	Redirect  string          `json:"redirect"`
	ResultURL string          `json:"result_url"`
}

// Features handles GET /v1/features
func (h *FormHandler) Features(c *fiber.Ctx) error {
	features := ctg.Features()
	out := make([]FeatureResponse, len(features))
	for i, f := range features {
		out[i] = FeatureResponse{ID: f.ID(), Label: f.Label()}
	}
	return c.JSON(fiber.Map{"features": out})
}

// Create handles POST /v1/forms
func (h *FormHandler) Create(c *fiber.Ctx) error {
	f := h.registry.Create()
	return c.Status(fiber.StatusCreated).JSON(f.Snapshot())
}

// Get handles GET /v1/forms/:id
func (h *FormHandler) Get(c *fiber.Ctx) error {
	f, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return formNotFound(c)
	}
	return c.JSON(f.Snapshot())
}

// SetField handles PUT /v1/forms/:id/fields/:field
func (h *FormHandler) SetField(c *fiber.Ctx) error {
	f, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return formNotFound(c)
	}

	var req SetFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, CodeBadRequest, "invalid request body")
	}

	if err := f.SetField(c.Params("field"), req.Value); err != nil {
		return formError(c, err)
	}
	return c.JSON(f.Snapshot())
}

// SetFields handles PATCH /v1/forms/:id
//
// The body is a JSON object of field key to value. Values may be strings or
// numbers; null clears the field. Keys are applied identity first, then in
// feature order, and nothing is applied if any key is unknown.
func (h *FormHandler) SetFields(c *fiber.Ctx) error {
	f, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return formNotFound(c)
	}

	body := c.Body()
	if !gjson.ValidBytes(body) {
		return writeError(c, fiber.StatusBadRequest, CodeBadRequest, "invalid request body")
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return writeError(c, fiber.StatusBadRequest, CodeBadRequest, "request body must be a JSON object")
	}

	values := make(map[string]string)
	var unknown, invalid []string
	parsed.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if !isFormKey(k) {
			unknown = append(unknown, k)
			return true
		}
		raw, ok := rawValue(value)
		if !ok {
			invalid = append(invalid, k)
			return true
		}
		values[k] = raw
		return true
	})

	if len(unknown) > 0 {
		return writeErrorDetails(c, fiber.StatusBadRequest, CodeUnknownField, "unknown field", map[string]interface{}{
			"fields": unknown,
		})
	}
	if len(invalid) > 0 {
		return writeErrorDetails(c, fiber.StatusBadRequest, CodeBadRequest, "field values must be strings or numbers", map[string]interface{}{
			"fields": invalid,
		})
	}

	for _, key := range formKeys() {
		raw, ok := values[key]
		if !ok {
			continue
		}
		if err := f.SetField(key, raw); err != nil {
			return formError(c, err)
		}
	}
	return c.JSON(f.Snapshot())
}

// Clear handles POST /v1/forms/:id/clear
func (h *FormHandler) Clear(c *fiber.Ctx) error {
	f, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return formNotFound(c)
	}
	f.ClearAll()
	return c.JSON(f.Snapshot())
}

// Validate handles POST /v1/forms/:id/validate
func (h *FormHandler) Validate(c *fiber.Ctx) error {
	f, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return formNotFound(c)
	}
	valid := f.Validate()
	return c.JSON(fiber.Map{
		"valid": valid,
		"form":  f.Snapshot(),
	})
}

// Submit handles POST /v1/forms/:id/submit
func (h *FormHandler) Submit(c *fiber.Ctx) error {
	f, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return formNotFound(c)
	}

	rec, err := f.Submit(c.UserContext())
	if err == nil {
		return c.JSON(SubmitResponse{
			Result:    rec,
			Outcome:   report.Interpret(rec.ClassIndex),
			Redirect:  form.ResultsPath,
			ResultURL: "/v1/sessions/" + f.SessionKey() + "/result",
		})
	}

	var verr *form.ValidationError
	var nerr *form.NumericError
	var serr *form.ServiceError
	switch {
	case errors.Is(err, form.ErrBusy):
		return writeError(c, fiber.StatusConflict, CodeBusy, "A submission is already in progress")
	case errors.As(err, &verr):
		return writeErrorDetails(c, fiber.StatusUnprocessableEntity, CodeValidationFailed, MsgFillRequired, map[string]interface{}{
			"fields": verr.Fields,
		})
	case errors.As(err, &nerr):
		return writeErrorDetails(c, fiber.StatusUnprocessableEntity, CodeInvalidNumbers, nerr.Error(), map[string]interface{}{
			"invalid_fields": nerr.Fields,
		})
	case errors.As(err, &serr):
		status := fiber.StatusBadGateway
		if errors.Is(err, predict.ErrCircuitOpen) {
			status = fiber.StatusServiceUnavailable
			h.setRetryAfter(c)
		}
		return writeError(c, status, CodePredictionFailed, serr.Message)
	case errors.Is(err, form.ErrClosed):
		return formError(c, err)
	default:
		log.Printf("[api] form %s: submit failed: %v", f.ID(), err)
		return writeError(c, fiber.StatusInternalServerError, CodeInternalError, form.MsgStoreFailed)
	}
}

func (h *FormHandler) setRetryAfter(c *fiber.Ctx) {
	if h.breaker == nil {
		return
	}
	if wait := h.breaker.RetryAfter(); wait > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
}

// Delete handles DELETE /v1/forms/:id
func (h *FormHandler) Delete(c *fiber.Ctx) error {
	if !h.registry.Remove(c.Params("id")) {
		return formNotFound(c)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func formNotFound(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusNotFound, CodeNotFound, "form not found")
}

func formError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, form.ErrClosed):
		return writeError(c, fiber.StatusGone, CodeFormClosed, "form is closed")
	case errors.Is(err, form.ErrUnknownField):
		return writeError(c, fiber.StatusBadRequest, CodeUnknownField, err.Error())
	default:
		return writeError(c, fiber.StatusInternalServerError, CodeInternalError, err.Error())
	}
}

// formKeys lists every settable key: identity first, then features in order.
func formKeys() []string {
	keys := []string{form.KeyPatientName, form.KeyPatientID}
	for _, f := range ctg.Features() {
		keys = append(keys, f.ID())
	}
	return keys
}

func isFormKey(key string) bool {
	if key == form.KeyPatientName || key == form.KeyPatientID {
		return true
	}
	_, ok := ctg.ParseFeature(key)
	return ok
}

// rawValue returns the text a JSON value would have been typed as.
func rawValue(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return v.Str, true
	case gjson.Number:
		return v.Raw, true
	case gjson.Null:
		return "", true
	default:
		return "", false
	}
}
