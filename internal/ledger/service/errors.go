package service

import (
	"errors"
	"fmt"
	"ms-headcount/internal/ledger"
	"strconv"
	"strings"
)

var (
	// ErrInvalidInput marks submissions rejected before touching the store.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEntryNotFound means a resolve targeted an entry that no longer exists.
	ErrEntryNotFound = ledger.ErrEntryNotFound
	// ErrNightBusy means another writer holds the night's lock; retry later.
	ErrNightBusy = errors.New("night is being updated by another submission")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// ParseCount parses a form value as a non-negative head count.
func ParseCount(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid(field + " is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(fmt.Sprintf("%s must be a whole number, got %q", field, raw))
	}
	if n < 0 {
		return 0, invalid(field + " must be non-negative")
	}
	return n, nil
}
