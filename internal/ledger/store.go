package ledger

import (
	"context"
	"errors"
	"ms-headcount/internal/models"
	"time"
)

var (
	// ErrSlotTaken is returned by Insert when (date, time_slot) already has an entry.
	ErrSlotTaken = errors.New("time slot already recorded for this night")
	// ErrEntryNotFound is returned by Update when the id matches no entry.
	ErrEntryNotFound = errors.New("entry not found")
)

// Store is the persistence capability the ledger needs. Implementations must
// enforce uniqueness of (date, time_slot).
type Store interface {
	Insert(ctx context.Context, entry *models.Entry) error
	// Update rewrites the counts of entry id. It returns ErrEntryNotFound when
	// the entry does not exist on the given night.
	Update(ctx context.Context, id int64, date string, admits, leftCount, holding int, timestamp time.Time) error
	FindByDateAndSlot(ctx context.Context, date, timeSlot string) (*models.Entry, error)
	SumAdmitsAndLeft(ctx context.Context, date string) (int, int, error)
	ListByDate(ctx context.Context, date string) ([]models.Entry, error)
}

// NightLock serializes read-then-write cycles on one night across processes.
type NightLock interface {
	Acquire(ctx context.Context, date, token string) (bool, error)
	Release(ctx context.Context, date, token string) error
}
