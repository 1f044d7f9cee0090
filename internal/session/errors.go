package session

import (
	"errors"
	"fmt"

	"github.com/abhisek/adaptest/internal/store"
)

var (
	// ErrNotFound is returned when a session, item or pool does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation does not apply to the
	// session's current state, or lost a race with a concurrent mutation.
	// Callers may retry after reloading the session.
	ErrInvalidState = errors.New("invalid session state")

	// ErrInvalidConfig is returned for malformed or out-of-range settings.
	ErrInvalidConfig = errors.New("invalid session config")

	// ErrInvalidAnswer is returned when a submitted answer is not valid JSON.
	ErrInvalidAnswer = errors.New("invalid answer")
)

// translate maps store sentinels onto the engine's error taxonomy.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidState, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
