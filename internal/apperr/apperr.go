// Package apperr holds the error kinds shared by the domain services.
// Services wrap one of the sentinels below; handlers translate the kind
// into a status code with Status or Fiber.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound: the user, post or media reference does not exist or is soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized: the actor may not perform an owner-restricted mutation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation: a malformed input such as an unparseable filter value.
	ErrValidation = errors.New("validation failed")
	// ErrStorage: the external object store rejected a put or delete.
	ErrStorage = errors.New("storage failure")
	// ErrStore: the database failed.
	ErrStore = errors.New("store failure")
)

// Validation returns an ErrValidation carrying a formatted reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// FromDB classifies an error returned by pgx. A missing row becomes
// ErrNotFound, everything else ErrStore.
func FromDB(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStore, err)
}

func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrStorage):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Fiber converts err into a *fiber.Error so the server error handler can
// render it.
func Fiber(err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	return fiber.NewError(Status(err), err.Error())
}
