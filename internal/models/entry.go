package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Entry is one recorded headcount for a (night, time slot) pair.
type Entry struct {
	bun.BaseModel `bun:"table:entries,alias:e"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Date      string    `bun:"date,notnull" json:"date"`           // operational night, YYYY-MM-DD
	TimeSlot  string    `bun:"time_slot,notnull" json:"time_slot"` // e.g. "23:30"
	Admits    int       `bun:"admits,notnull" json:"admits"`
	LeftCount int       `bun:"left_count,notnull" json:"left_count"`
	Holding   int       `bun:"holding,notnull" json:"holding"` // night total when this row was written
	Timestamp time.Time `bun:"timestamp,notnull" json:"timestamp"`
}
