package analytics

import (
	"slices"
	"time"

	"github.com/benvon/habit-tracker/internal/models"
)

// Clock supplies the current calendar day.
type Clock interface {
	Today() models.Date
}

// ZoneClock reports today's date as observed in a fixed location.
type ZoneClock struct {
	loc *time.Location
	now func() time.Time
}

// NewZoneClock returns a clock for loc. A nil loc means time.Local.
func NewZoneClock(loc *time.Location) *ZoneClock {
	if loc == nil {
		loc = time.Local
	}
	return &ZoneClock{loc: loc, now: time.Now}
}

// Today implements Clock
func (c *ZoneClock) Today() models.Date {
	return models.DateOf(c.now().In(c.loc))
}

// Location returns the clock's zone
func (c *ZoneClock) Location() *time.Location { return c.loc }

// NextMidnight returns the first instant of tomorrow in the clock's zone.
func (c *ZoneClock) NextMidnight() time.Time {
	tomorrow := c.Today().AddDays(1)
	return time.Date(tomorrow.Time().Year(), tomorrow.Time().Month(), tomorrow.Time().Day(), 0, 0, 0, 0, c.loc)
}

// FixedClock always reports the same day.
type FixedClock models.Date

// Today implements Clock
func (c FixedClock) Today() models.Date { return models.Date(c) }

func sortNewestFirst(logs []models.CompletionLog) {
	slices.SortStableFunc(logs, func(a, b models.CompletionLog) int {
		switch {
		case a.Date.After(b.Date):
			return -1
		case a.Date.Before(b.Date):
			return 1
		default:
			return 0
		}
	})
}
