package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

func TestFromDB(t *testing.T) {
	if FromDB("get user", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	if err := FromDB("get user", pgx.ErrNoRows); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	err := FromDB("get user", errors.New("connection reset"))
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected store failure, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("store failure must not be not found")
	}
}

func TestStatus(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", ErrNotFound):     fiber.StatusNotFound,
		fmt.Errorf("x: %w", ErrUnauthorized): fiber.StatusUnauthorized,
		Validation("per_page %q", "abc"):     fiber.StatusBadRequest,
		fmt.Errorf("x: %w", ErrStorage):      fiber.StatusBadGateway,
		fmt.Errorf("x: %w", ErrStore):        fiber.StatusInternalServerError,
		errors.New("other"):                  fiber.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := Status(err); got != want {
			t.Fatalf("status(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestFiberKeepsFiberErrors(t *testing.T) {
	in := fiber.NewError(fiber.StatusTeapot, "tea")
	var fe *fiber.Error
	if !errors.As(Fiber(in), &fe) || fe.Code != fiber.StatusTeapot {
		t.Fatalf("expected fiber error to pass through")
	}
	if !errors.As(Fiber(fmt.Errorf("post: %w", ErrNotFound)), &fe) || fe.Code != fiber.StatusNotFound {
		t.Fatalf("expected 404 fiber error")
	}
}
