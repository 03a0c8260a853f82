package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/safar/go-bookstore/internal/apperr"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
}

type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID(c),
	})
}

func ok(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, fiber.StatusOK, message, data)
}

func created(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, fiber.StatusCreated, message, data)
}

func fail(c *fiber.Ctx, status int, e APIError) error {
	return c.Status(status).JSON(APIResponse{
		Success:   false,
		Message:   e.Message,
		Error:     &e,
		Timestamp: time.Now(),
		RequestID: requestID(c),
	})
}

// classify maps an error to its HTTP status and envelope error. Errors
// outside the apperr taxonomy are reported without their text.
func classify(err error) (int, APIError) {
	var (
		validation *apperr.ValidationError
		stock      *apperr.InsufficientStockError
		notFound   *apperr.NotFoundError
		fiberErr   *fiber.Error
	)

	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest, APIError{
			Code:    "VALIDATION_FAILED",
			Message: validation.Error(),
			Details: map[string]interface{}{"field": validation.Field, "reason": validation.Reason},
		}
	case errors.As(err, &stock):
		return fiber.StatusConflict, APIError{
			Code:    "INSUFFICIENT_STOCK",
			Message: stock.Error(),
			Details: map[string]interface{}{
				"book_id":   stock.BookID,
				"requested": stock.Requested,
				"available": stock.Available,
			},
		}
	case errors.As(err, &notFound):
		return fiber.StatusNotFound, APIError{
			Code:    "NOT_FOUND",
			Message: notFound.Error(),
			Details: map[string]interface{}{"entity": notFound.Entity, "id": notFound.ID},
		}
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound, APIError{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, apperr.ErrUnauthenticated):
		return fiber.StatusUnauthorized, APIError{Code: "UNAUTHENTICATED", Message: err.Error()}
	case errors.Is(err, apperr.ErrForbidden):
		return fiber.StatusForbidden, APIError{Code: "FORBIDDEN", Message: err.Error()}
	case errors.Is(err, apperr.ErrConflict):
		return fiber.StatusConflict, APIError{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, apperr.ErrValidation):
		return fiber.StatusBadRequest, APIError{Code: "VALIDATION_FAILED", Message: err.Error()}
	case errors.Is(err, apperr.ErrPersistence):
		return fiber.StatusServiceUnavailable, APIError{
			Code:    "PERSISTENCE_FAILURE",
			Message: "the store is temporarily unavailable; retry the request",
		}
	case errors.As(err, &fiberErr):
		return fiberErr.Code, APIError{Code: "HTTP_ERROR", Message: fiberErr.Message}
	default:
		return fiber.StatusInternalServerError, APIError{Code: "INTERNAL_SERVER_ERROR", Message: "Internal Server Error"}
	}
}
