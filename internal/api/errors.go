package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Annmariya27/ctg-pro/internal/ctg"
)

// Error codes returned in the error body.
const (
	CodeBadRequest        = "bad_request"
	CodeNotFound          = "not_found"
	CodeUnknownField      = "unknown_field"
	CodeValidationFailed  = "validation_failed"
	CodeInvalidNumbers    = "invalid_numbers"
	CodeBusy              = "busy"
	CodeFormClosed        = "form_closed"
	CodePredictionFailed  = "prediction_failed"
	CodeHistoryDisabled   = "history_disabled"
	CodeInternalError     = "internal_server_error"
	CodeRouteNotFound     = "route_not_found"
	CodeMethodNotAllowed  = "method_not_allowed"
	CodeRequestTooLarge   = "request_too_large"
	CodeUnprocessableBody = "unprocessable_body"
)

func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeErrorDetails(c, status, code, message, nil)
}

func writeErrorDetails(c *fiber.Ctx, status int, code, message string, details map[string]interface{}) error {
	return c.Status(status).JSON(ctg.ErrorResponse{
		Error: ctg.ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// ErrorHandler renders errors that escape a handler in the standard error body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := CodeInternalError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
		switch fe.Code {
		case fiber.StatusNotFound:
			code = CodeRouteNotFound
		case fiber.StatusMethodNotAllowed:
			code = CodeMethodNotAllowed
		case fiber.StatusRequestEntityTooLarge:
			code = CodeRequestTooLarge
		case fiber.StatusUnprocessableEntity:
			code = CodeUnprocessableBody
		default:
			code = CodeBadRequest
			if fe.Code >= fiber.StatusInternalServerError {
				code = CodeInternalError
			}
		}
	}

	return writeError(c, status, code, message)
}
