package night

import (
	"fmt"
	"time"
)

// DateLayout is the ISO-8601 date form used as the night key.
const DateLayout = "2006-01-02"

// CutoverHour is the hour at which a new operational night begins.
const CutoverHour = 6

// ResolveNightDate maps t to the calendar date of the operational night it
// belongs to. Anything before 06:00 counts towards the previous day's night.
// The result is midnight of that date in t's location.
func ResolveNightDate(t time.Time) time.Time {
	y, m, d := t.Date()
	if t.Hour() < CutoverHour {
		d--
	}
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NightKey returns the ISO date of the night t belongs to.
func NightKey(t time.Time) string {
	return ResolveNightDate(t).Format(DateLayout)
}

// Resolver resolves nights in the venue's time zone rather than whatever
// zone the timestamp happens to carry.
type Resolver struct {
	Location *time.Location
}

// NewResolver loads the named IANA zone. An empty name means UTC.
func NewResolver(zone string) (*Resolver, error) {
	if zone == "" {
		return &Resolver{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid venue timezone %q: %w", zone, err)
	}
	return &Resolver{Location: loc}, nil
}

// Resolve returns the night key for t as seen in the venue's zone.
func (r *Resolver) Resolve(t time.Time) string {
	if r == nil || r.Location == nil {
		return NightKey(t)
	}
	return NightKey(t.In(r.Location))
}

// ParseDate validates an ISO night key and returns it normalized.
func ParseDate(s string) (string, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("date %q is not an ISO date (YYYY-MM-DD)", s)
	}
	return d.Format(DateLayout), nil
}
