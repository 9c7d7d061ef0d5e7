package utils

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
)

// ValidationError indicates missing or invalid input.
type ValidationError struct {
	Message string
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates an absent plan, day, topic, course or record.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// AuthorizationError indicates the caller may not act on the resource.
// Missing/invalid tokens are a 401 handled by the auth middleware; this
// maps to 403.
type AuthorizationError struct {
	Message string
}

func NewAuthorizationError(message string) *AuthorizationError {
	return &AuthorizationError{Message: message}
}

func (e *AuthorizationError) Error() string { return e.Message }

// ConflictError indicates the request collides with existing state, e.g. an
// active study plan already exists for the course. Existing carries the
// conflicting record for the response payload.
type ConflictError struct {
	Message  string
	Existing interface{}
}

func NewConflictError(message string, existing interface{}) *ConflictError {
	return &ConflictError{Message: message, Existing: existing}
}

func (e *ConflictError) Error() string { return e.Message }

// UpstreamError indicates a collaborator service failed or returned
// unparseable output. Detail stays server-side; clients get a generic
// message.
type UpstreamError struct {
	Message string
	Err     error
}

func NewUpstreamError(message string, err error) *UpstreamError {
	return &UpstreamError{Message: message, Err: err}
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RespondError maps a service error onto the HTTP taxonomy:
// validation -> 400, not found -> 404, authorization -> 403,
// conflict -> 400 with the existing record attached, upstream -> 500.
func RespondError(c *fiber.Ctx, logger *log.Logger, err error) error {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		authErr       *AuthorizationError
		conflictErr   *ConflictError
		upstreamErr   *UpstreamError
	)

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validationErr.Message,
		})
	case errors.As(err, &notFoundErr):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": notFoundErr.Error(),
		})
	case errors.As(err, &authErr):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": authErr.Message,
		})
	case errors.As(err, &conflictErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    conflictErr.Message,
			"existing": conflictErr.Existing,
		})
	case errors.As(err, &upstreamErr):
		if logger != nil {
			logger.Printf("upstream error: %v", upstreamErr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": upstreamErr.Message,
		})
	default:
		if logger != nil {
			logger.Printf("internal error: %v", err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}
