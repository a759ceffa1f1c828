package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ms-headcount/internal/ledger"
	"ms-headcount/internal/models"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

const (
	uniqueSlotIndex = "entries_date_slot_uniq"
	dateIndex       = "entries_date_idx"
)

type DB struct {
	Bun *bun.DB
}

// CreateSchema creates the entries table and its indexes. PostgreSQL
// deployments run the SQL migrations instead; this is for SQLite and tests.
func (d *DB) CreateSchema(ctx context.Context) error {
	if _, err := d.Bun.NewCreateTable().
		Model((*models.Entry)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create entries table: %w", err)
	}

	if _, err := d.Bun.NewCreateIndex().
		Model((*models.Entry)(nil)).
		Index(uniqueSlotIndex).
		Unique().
		IfNotExists().
		Column("date", "time_slot").
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create %s: %w", uniqueSlotIndex, err)
	}

	if _, err := d.Bun.NewCreateIndex().
		Model((*models.Entry)(nil)).
		Index(dateIndex).
		IfNotExists().
		Column("date").
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create %s: %w", dateIndex, err)
	}
	return nil
}

func (d *DB) Insert(ctx context.Context, entry *models.Entry) error {
	_, err := d.Bun.NewInsert().
		Model(entry).
		Returning("id").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrSlotTaken
		}
		return err
	}
	return nil
}

// Update is scoped to the night, so an id from another night matches no row.
func (d *DB) Update(ctx context.Context, id int64, date string, admits, leftCount, holding int, timestamp time.Time) error {
	entry := models.Entry{
		ID:        id,
		Admits:    admits,
		LeftCount: leftCount,
		Holding:   holding,
		Timestamp: timestamp,
	}
	res, err := d.Bun.NewUpdate().
		Model(&entry).
		Column("admits", "left_count", "holding", "timestamp").
		WherePK().
		Where("? = ?", bun.Ident("e.date"), date).
		Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

// FindByDateAndSlot returns nil, nil when the slot has not been recorded.
func (d *DB) FindByDateAndSlot(ctx context.Context, date, timeSlot string) (*models.Entry, error) {
	var entry models.Entry
	err := d.Bun.NewSelect().
		Model(&entry).
		Where("? = ?", bun.Ident("e.date"), date).
		Where("? = ?", bun.Ident("e.time_slot"), timeSlot).
		Order("id").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SumAdmitsAndLeft returns zeros for a night with no entries.
func (d *DB) SumAdmitsAndLeft(ctx context.Context, date string) (int, int, error) {
	var admits, left int
	err := d.Bun.NewSelect().
		Model((*models.Entry)(nil)).
		ColumnExpr("COALESCE(SUM(?), 0) AS total_admits", bun.Ident("e.admits")).
		ColumnExpr("COALESCE(SUM(?), 0) AS total_left", bun.Ident("e.left_count")).
		Where("? = ?", bun.Ident("e.date"), date).
		Scan(ctx, &admits, &left)
	if err != nil {
		return 0, 0, err
	}
	return admits, left, nil
}

func (d *DB) ListByDate(ctx context.Context, date string) ([]models.Entry, error) {
	entries := []models.Entry{}
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("? = ?", bun.Ident("e.date"), date).
		Order("time_slot", "id").
		Scan(ctx)
	return entries, err
}

func (d *DB) Ping(ctx context.Context) error {
	return d.Bun.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
