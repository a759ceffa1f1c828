// Package memstore keeps ledger entries in process memory. It honours the
// same uniqueness and not-found rules as the SQL store.
package memstore

import (
	"context"
	"ms-headcount/internal/ledger"
	"ms-headcount/internal/models"
	"sort"
	"sync"
	"time"
)

type slotKey struct {
	date, slot string
}

type Store struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64]models.Entry
	bySlot  map[slotKey]int64
}

func New() *Store {
	return &Store{
		entries: make(map[int64]models.Entry),
		bySlot:  make(map[slotKey]int64),
	}
}

func (s *Store) Insert(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey{entry.Date, entry.TimeSlot}
	if _, taken := s.bySlot[key]; taken {
		return ledger.ErrSlotTaken
	}

	s.nextID++
	entry.ID = s.nextID
	s.entries[entry.ID] = *entry
	s.bySlot[key] = entry.ID
	return nil
}

func (s *Store) Update(_ context.Context, id int64, date string, admits, leftCount, holding int, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.Date != date {
		return ledger.ErrEntryNotFound
	}
	e.Admits = admits
	e.LeftCount = leftCount
	e.Holding = holding
	e.Timestamp = timestamp
	s.entries[id] = e
	return nil
}

func (s *Store) FindByDateAndSlot(_ context.Context, date, timeSlot string) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySlot[slotKey{date, timeSlot}]
	if !ok {
		return nil, nil
	}
	e := s.entries[id]
	return &e, nil
}

func (s *Store) SumAdmitsAndLeft(_ context.Context, date string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var admits, left int
	for _, e := range s.entries {
		if e.Date == date {
			admits += e.Admits
			left += e.LeftCount
		}
	}
	return admits, left, nil
}

func (s *Store) ListByDate(_ context.Context, date string) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Entry{}
	for _, e := range s.entries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeSlot != out[j].TimeSlot {
			return out[i].TimeSlot < out[j].TimeSlot
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes an entry. The ledger never deletes; this exists so tests
// can simulate an entry vanishing between conflict and resolve.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		delete(s.bySlot, slotKey{e.Date, e.TimeSlot})
		delete(s.entries, id)
	}
}

// Ping satisfies the health check.
func (s *Store) Ping(context.Context) error {
	return nil
}
