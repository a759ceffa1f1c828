package db_test

import (
	"context"
	"database/sql"
	"ms-headcount/internal/ledger"
	"ms-headcount/internal/ledger/db"
	"ms-headcount/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// each pooled connection would otherwise open its own empty database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	store := &db.DB{Bun: bunDB}

	if err := store.CreateSchema(context.Background()); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })

	return store, bunDB
}

func newEntry(date, slot string, admits, left, holding int) *models.Entry {
	return &models.Entry{
		Date:      date,
		TimeSlot:  slot,
		Admits:    admits,
		LeftCount: left,
		Holding:   holding,
		Timestamp: time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC),
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	store, _ := setupTestDB(t)
	assert.NoError(t, store.CreateSchema(context.Background()))
}

func TestInsert_AssignsID(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	first := newEntry("2025-03-14", "20:00", 5, 2, 3)
	second := newEntry("2025-03-14", "20:30", 4, 1, 6)
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	assert.NotZero(t, first.ID)
	assert.NotZero(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestInsert_DuplicateSlotIsSlotTaken(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newEntry("2025-03-14", "20:00", 5, 2, 3)))

	err := store.Insert(ctx, newEntry("2025-03-14", "20:00", 1, 0, 4))
	assert.ErrorIs(t, err, ledger.ErrSlotTaken)

	// the same slot on a different night is independent
	assert.NoError(t, store.Insert(ctx, newEntry("2025-03-15", "20:00", 1, 0, 1)))
}

func TestFindByDateAndSlot(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	missing, err := store.FindByDateAndSlot(ctx, "2025-03-14", "20:00")
	require.NoError(t, err)
	assert.Nil(t, missing)

	e := newEntry("2025-03-14", "20:00", 5, 2, 3)
	require.NoError(t, store.Insert(ctx, e))

	found, err := store.FindByDateAndSlot(ctx, "2025-03-14", "20:00")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, e.ID, found.ID)
	assert.Equal(t, 5, found.Admits)
	assert.Equal(t, 2, found.LeftCount)
	assert.Equal(t, 3, found.Holding)
}

func TestUpdate(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	e := newEntry("2025-03-14", "20:00", 5, 2, 3)
	require.NoError(t, store.Insert(ctx, e))

	ts := time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC)
	require.NoError(t, store.Update(ctx, e.ID, "2025-03-14", 6, 2, 10, ts))

	found, err := store.FindByDateAndSlot(ctx, "2025-03-14", "20:00")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, e.ID, found.ID)
	assert.Equal(t, "20:00", found.TimeSlot)
	assert.Equal(t, 6, found.Admits)
	assert.Equal(t, 2, found.LeftCount)
	assert.Equal(t, 10, found.Holding)
	assert.True(t, ts.Equal(found.Timestamp))
}

func TestUpdate_MissingEntry(t *testing.T) {
	store, _ := setupTestDB(t)

	err := store.Update(context.Background(), 4242, "2025-03-14", 1, 1, 0, time.Now())
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestUpdate_ScopedToNight(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	e := newEntry("2025-03-14", "20:00", 5, 2, 3)
	require.NoError(t, store.Insert(ctx, e))

	err := store.Update(ctx, e.ID, "2025-03-15", 100, 0, 104, time.Now())
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)

	found, err := store.FindByDateAndSlot(ctx, "2025-03-14", "20:00")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 5, found.Admits)
	assert.Equal(t, 3, found.Holding)
}

func TestSumAdmitsAndLeft(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	admits, left, err := store.SumAdmitsAndLeft(ctx, "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, 0, admits)
	assert.Equal(t, 0, left)

	require.NoError(t, store.Insert(ctx, newEntry("2025-03-14", "20:00", 5, 2, 3)))
	require.NoError(t, store.Insert(ctx, newEntry("2025-03-14", "20:30", 4, 1, 6)))
	require.NoError(t, store.Insert(ctx, newEntry("2025-03-14", "02:00", 0, 9, -3)))
	require.NoError(t, store.Insert(ctx, newEntry("2025-03-13", "20:00", 50, 0, 50)))

	admits, left, err = store.SumAdmitsAndLeft(ctx, "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, 9, admits)
	assert.Equal(t, 12, left)
}

func TestListByDate_OrderedBySlot(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	for _, slot := range []string{"22:00", "01:30", "15:00", "20:30"} {
		require.NoError(t, store.Insert(ctx, newEntry("2025-03-14", slot, 1, 0, 1)))
	}
	require.NoError(t, store.Insert(ctx, newEntry("2025-03-15", "18:00", 1, 0, 1)))

	entries, err := store.ListByDate(ctx, "2025-03-14")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var slots []string
	for _, e := range entries {
		assert.Equal(t, "2025-03-14", e.Date)
		slots = append(slots, e.TimeSlot)
	}
	assert.Equal(t, []string{"01:30", "15:00", "20:30", "22:00"}, slots)

	empty, err := store.ListByDate(ctx, "2025-01-01")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPing(t *testing.T) {
	store, _ := setupTestDB(t)
	assert.NoError(t, store.Ping(context.Background()))
}
