package service

import (
	"context"
	"errors"
	"fmt"
	"ms-headcount/internal/ledger"
	"ms-headcount/internal/logger"
	"ms-headcount/internal/models"
	"ms-headcount/internal/night"
	"time"

	"github.com/google/uuid"
)

type SubmitStatus string

const (
	StatusCreated  SubmitStatus = "created"
	StatusConflict SubmitStatus = "conflict"
)

// Counts is an (admits, left_count) pair.
type Counts struct {
	Admits    int `json:"admits"`
	LeftCount int `json:"left_count"`
}

// Conflict describes a submission that targeted an already recorded slot.
// The caller must pick a pair of counts and call ResolveConflict.
type Conflict struct {
	EntryID         int64  `json:"entry_id"`
	Date            string `json:"date"`
	TimeSlot        string `json:"time_slot"`
	Existing        Counts `json:"existing"`
	Proposed        Counts `json:"proposed"`
	ProposedHolding int    `json:"proposed_holding"`
}

type SubmitResult struct {
	Status   SubmitStatus  `json:"status"`
	Entry    *models.Entry `json:"entry,omitempty"`
	Conflict *Conflict     `json:"conflict,omitempty"`
}

// Resolved is the outcome of ResolveConflict: the overwritten values of the entry.
type Resolved struct {
	EntryID   int64     `json:"entry_id"`
	Date      string    `json:"date"`
	Admits    int       `json:"admits"`
	LeftCount int       `json:"left_count"`
	Holding   int       `json:"holding"`
	Timestamp time.Time `json:"timestamp"`
}

type LedgerService struct {
	Store    ledger.Store
	Lock     ledger.NightLock // optional
	Resolver *night.Resolver
	Logger   *logger.Logger
}

func NewLedgerService(store ledger.Store, lock ledger.NightLock, resolver *night.Resolver, log *logger.Logger) *LedgerService {
	if log == nil {
		log = logger.Discard()
	}
	if resolver == nil {
		resolver = &night.Resolver{Location: time.UTC}
	}
	return &LedgerService{Store: store, Lock: lock, Resolver: resolver, Logger: log}
}

// CurrentHolding returns sum(admits) - sum(left_count) over every entry of the night.
func (s *LedgerService) CurrentHolding(ctx context.Context, date string) (int, error) {
	admits, left, err := s.Store.SumAdmitsAndLeft(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("failed to sum night %s: %w", date, err)
	}
	return admits - left, nil
}

// Record resolves the operational night of at and submits the counts for it.
func (s *LedgerService) Record(ctx context.Context, at time.Time, timeSlot string, admits, leftCount int) (*SubmitResult, error) {
	return s.Submit(ctx, s.Resolver.Resolve(at), timeSlot, admits, leftCount, at)
}

// Submit records counts for a slot. An already recorded slot is never
// overwritten here; a Conflict is returned instead.
func (s *LedgerService) Submit(ctx context.Context, date, timeSlot string, admits, leftCount int, timestamp time.Time) (*SubmitResult, error) {
	if err := validateSubmission(date, timeSlot, admits, leftCount); err != nil {
		return nil, err
	}

	release, err := s.lockNight(ctx, date)
	if err != nil {
		return nil, err
	}
	defer release()

	baseline, err := s.CurrentHolding(ctx, date)
	if err != nil {
		return nil, err
	}
	proposed := baseline + admits - leftCount

	existing, err := s.Store.FindByDateAndSlot(ctx, date, timeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to look up slot %s on %s: %w", timeSlot, date, err)
	}
	if existing != nil {
		return s.conflict(existing, admits, leftCount, proposed), nil
	}

	entry := &models.Entry{
		Date:      date,
		TimeSlot:  timeSlot,
		Admits:    admits,
		LeftCount: leftCount,
		Holding:   proposed,
		Timestamp: timestamp,
	}
	if err := s.Store.Insert(ctx, entry); err != nil {
		if !errors.Is(err, ledger.ErrSlotTaken) {
			return nil, fmt.Errorf("failed to insert entry: %w", err)
		}
		// lost a creation race: someone recorded this slot after our lookup
		winner, findErr := s.Store.FindByDateAndSlot(ctx, date, timeSlot)
		if findErr != nil {
			return nil, fmt.Errorf("failed to load concurrent entry for %s on %s: %w", timeSlot, date, findErr)
		}
		if winner == nil {
			return nil, fmt.Errorf("failed to insert entry: %w", err)
		}
		s.Logger.Warn("LEDGER", fmt.Sprintf("Concurrent submission for %s %s detected at insert", date, timeSlot))
		return s.conflict(winner, admits, leftCount, proposed), nil
	}

	s.Logger.LogEntry("CREATED", date, timeSlot, fmt.Sprintf("id=%d admits=%d left=%d holding=%d", entry.ID, admits, leftCount, proposed))
	return &SubmitResult{Status: StatusCreated, Entry: entry}, nil
}

// ResolveConflict overwrites an existing entry with the chosen counts and a
// freshly computed holding. The entry keeps its id.
func (s *LedgerService) ResolveConflict(ctx context.Context, entryID int64, date string, admits, leftCount int, timestamp time.Time) (*Resolved, error) {
	if _, err := night.ParseDate(date); err != nil {
		return nil, invalid(err.Error())
	}
	if admits < 0 || leftCount < 0 {
		return nil, invalid("admits and left_count must be non-negative")
	}

	release, err := s.lockNight(ctx, date)
	if err != nil {
		return nil, err
	}
	defer release()

	baseline, err := s.CurrentHolding(ctx, date)
	if err != nil {
		return nil, err
	}
	holding := baseline + admits - leftCount

	if err := s.Store.Update(ctx, entryID, date, admits, leftCount, holding, timestamp); err != nil {
		if errors.Is(err, ledger.ErrEntryNotFound) {
			s.Logger.Warn("LEDGER", fmt.Sprintf("Resolve for entry %d not recorded on %s", entryID, date))
			return nil, fmt.Errorf("entry %d on night %s: %w", entryID, date, ErrEntryNotFound)
		}
		return nil, fmt.Errorf("failed to update entry %d: %w", entryID, err)
	}

	s.Logger.LogEntry("RESOLVED", date, fmt.Sprintf("#%d", entryID), fmt.Sprintf("admits=%d left=%d holding=%d", admits, leftCount, holding))

	return &Resolved{
		EntryID:   entryID,
		Date:      date,
		Admits:    admits,
		LeftCount: leftCount,
		Holding:   holding,
		Timestamp: timestamp,
	}, nil
}

// Night lists a night's entries with the current totals.
func (s *LedgerService) Night(ctx context.Context, date string) (*models.NightView, error) {
	if _, err := night.ParseDate(date); err != nil {
		return nil, invalid(err.Error())
	}

	entries, err := s.Store.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list night %s: %w", date, err)
	}
	admits, left, err := s.Store.SumAdmitsAndLeft(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to sum night %s: %w", date, err)
	}
	if entries == nil {
		entries = []models.Entry{}
	}

	return &models.NightView{
		Date:    date,
		Entries: entries,
		Holding: admits - left,
		Admits:  admits,
		Left:    left,
	}, nil
}

func (s *LedgerService) conflict(existing *models.Entry, admits, leftCount, proposed int) *SubmitResult {
	s.Logger.LogEntry("CONFLICT", existing.Date, existing.TimeSlot,
		fmt.Sprintf("existing id=%d (%d/%d), proposed (%d/%d)", existing.ID, existing.Admits, existing.LeftCount, admits, leftCount))

	return &SubmitResult{
		Status: StatusConflict,
		Conflict: &Conflict{
			EntryID:         existing.ID,
			Date:            existing.Date,
			TimeSlot:        existing.TimeSlot,
			Existing:        Counts{Admits: existing.Admits, LeftCount: existing.LeftCount},
			Proposed:        Counts{Admits: admits, LeftCount: leftCount},
			ProposedHolding: proposed,
		},
	}
}

func (s *LedgerService) lockNight(ctx context.Context, date string) (func(), error) {
	if s.Lock == nil {
		return func() {}, nil
	}

	token := uuid.NewString()
	ok, err := s.Lock.Acquire(ctx, date, token)
	if err != nil {
		return nil, fmt.Errorf("night lock error: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("night %s: %w", date, ErrNightBusy)
	}

	return func() {
		// release on a fresh context so a cancelled request still frees the lock
		if err := s.Lock.Release(context.Background(), date, token); err != nil {
			s.Logger.Error("REDIS", fmt.Sprintf("Failed to release lock for night %s: %v", date, err))
		}
	}, nil
}

func validateSubmission(date, timeSlot string, admits, leftCount int) error {
	if _, err := night.ParseDate(date); err != nil {
		return invalid(err.Error())
	}
	if !night.ValidSlot(timeSlot) {
		return invalid(fmt.Sprintf("time_slot %q is not a valid slot", timeSlot))
	}
	if admits < 0 || leftCount < 0 {
		return invalid("admits and left_count must be non-negative")
	}
	return nil
}
