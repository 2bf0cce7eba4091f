package httpapi

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const codeNotFound = "NOT_FOUND"

// Envelope is the JSON body of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind accounts.ErrorKind) int {
	switch kind {
	case accounts.KindNone:
		return http.StatusOK
	case accounts.KindConflict:
		return http.StatusConflict
	case accounts.KindUnauthorized:
		return http.StatusUnauthorized
	case accounts.KindForbidden:
		return http.StatusForbidden
	case accounts.KindNotFound:
		return http.StatusNotFound
	case accounts.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respond(ctx router.Context, status int, message string, data any) error {
	return ctx.JSON(status, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(ctx router.Context, err error) error {
	return ctx.JSON(errorEnvelope(err))
}

// errorEnvelope exposes the message and code of rich errors only. Anything
// else renders as a generic internal error.
func errorEnvelope(err error) (int, Envelope) {
	body := Envelope{
		Message: accounts.ErrInternal.Message,
		Code:    accounts.TextCodeInternal,
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr != nil && richErr.TextCode != "" {
		body.Message = richErr.Message
		body.Code = richErr.TextCode
	}

	return StatusFor(accounts.KindOf(err)), body
}

// ErrorHandler renders errors escaping the route handlers, including fiber's
// own routing errors, with the response envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		body := Envelope{
			Message: fiberErr.Message,
			Code:    codeForStatus(fiberErr.Code),
		}
		if fiberErr.Code == fiber.StatusNotFound {
			body.Message = "Can't find " + c.OriginalURL() + " on this server"
		}
		return c.Status(fiberErr.Code).JSON(body)
	}

	status, body := errorEnvelope(err)
	return c.Status(status).JSON(body)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return codeNotFound
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusUnauthorized:
		return accounts.TextCodeInvalidToken
	case fiber.StatusForbidden:
		return accounts.TextCodeForbidden
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return accounts.TextCodeInvalidRequest
	default:
		return accounts.TextCodeInternal
	}
}
