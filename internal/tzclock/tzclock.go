// Package tzclock provides DST-correct local-time conversions and window
// arithmetic. Every price-window filter, cron firing decision, and
// daily/weekly/monthly snapshot boundary in this repository goes through a
// Clock instead of doing raw millisecond arithmetic, so that a 23- or
// 25-hour DST day never duplicates or drops an hour index.
package tzclock

import (
	"fmt"
	"time"

	"github.com/mkallio/heatopt/internal/herrors"
)

// Clock binds an IANA timezone to the conversions that depend on it.
type Clock struct {
	loc  *time.Location
	name string
}

// NewClock loads the named IANA timezone. It returns herrors.ErrInvalidTimezone
// wrapped with the offending name if the zone database has no such entry.
func NewClock(tzName string) (*Clock, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", herrors.ErrInvalidTimezone, tzName, err)
	}
	return &Clock{loc: loc, name: tzName}, nil
}

// Name returns the IANA zone name this clock was built from.
func (c *Clock) Name() string { return c.name }

// Location exposes the underlying *time.Location for callers that need to
// construct times directly (e.g. time.Date with this clock's zone).
func (c *Clock) Location() *time.Location { return c.loc }

// NowLocal returns the current instant rendered in this clock's zone.
func (c *Clock) NowLocal() time.Time {
	return time.Now().In(c.loc)
}

// ParseToLocal renders an absolute instant in this clock's zone.
func (c *Clock) ParseToLocal(instant time.Time) time.Time {
	return instant.In(c.loc)
}

// WindowHoursAhead returns the half-open instant interval [now, now+n hours)
// in absolute time. The span is always n elapsed hours, on DST transition
// days too; the DST-awareness lives in DayBounds, which callers use when they
// want calendar "hours in this day" rather than elapsed time.
func (c *Clock) WindowHoursAhead(now time.Time, n int) (time.Time, time.Time) {
	local := now.In(c.loc)
	return local, local.Add(time.Duration(n) * time.Hour)
}

// DayBounds returns the local midnight at or before now, and the next local
// midnight, both expressed in this clock's zone. On a spring-forward day the
// returned span is 23 hours; on a fall-back day it is 25 hours — callers
// that need "the hours in today" should enumerate by adding local calendar
// hours (AddDate-style) rather than assuming a fixed 24h duration.
func (c *Clock) DayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(c.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	end := start.AddDate(0, 0, 1)
	return start, end
}

// WeekBounds returns the bounds of the ISO week (Monday 00:00 to the
// following Monday 00:00) containing now, in local time.
func (c *Clock) WeekBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(c.loc)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday = 7, ISO style
	}
	monday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc).AddDate(0, 0, -(weekday - 1))
	return monday, monday.AddDate(0, 0, 7)
}

// MonthBounds returns the first-of-month to first-of-next-month bounds
// containing now, in local time.
func (c *Clock) MonthBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(c.loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, c.loc)
	return start, start.AddDate(0, 1, 0)
}

// LocalHourKey is the idempotency marker key from the concurrency model:
// (year, month, day, hour) in local time, used to guard against more than
// one device write per zone within the same local hour.
type LocalHourKey [4]int

// HourKey computes the LocalHourKey for t in this clock's zone.
func (c *Clock) HourKey(t time.Time) LocalHourKey {
	local := t.In(c.loc)
	return LocalHourKey{local.Year(), int(local.Month()), local.Day(), local.Hour()}
}

// HoursInDay enumerates the local-calendar hour boundaries between start
// (inclusive) and end (exclusive), stepping by local wall-clock hour. This
// is DST-safe: on a spring-forward day the 02:00 hour is skipped by the
// zone itself (time.Date normalizes it forward), producing 23 entries; on a
// fall-back day the repeated hour appears once per offset, producing 25.
func (c *Clock) HoursInDay(day time.Time) []time.Time {
	start, end := c.DayBounds(day)
	var hours []time.Time
	cur := start
	for cur.Before(end) {
		hours = append(hours, cur)
		next := cur.Add(time.Hour)
		// Guard against a non-monotonic step across a fold; always move
		// forward by at least one minute to avoid an infinite loop.
		if !next.After(cur) {
			next = cur.Add(time.Minute)
		}
		cur = next
	}
	return hours
}
