package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is a lowercase day name, as stored and sent over the wire
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the days of a Monday-start week in order
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Index returns the Monday-start position of w (monday=0), or -1 if w is unknown.
func (w Weekday) Index() int {
	for i, d := range Weekdays {
		if d == w {
			return i
		}
	}
	return -1
}

// Valid reports whether w is a known weekday name
func (w Weekday) Valid() bool { return w.Index() >= 0 }

// Short returns the three-letter label, e.g. "Mon".
func (w Weekday) Short() string {
	if !w.Valid() {
		return string(w)
	}
	return strings.ToUpper(string(w[:1])) + string(w[1:3])
}

// WeekdayOf converts a time.Weekday (Sunday=0) to its Weekday name.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekdays[(int(d)+6)%7]
}

// ParseWeekday parses a weekday name case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !w.Valid() {
		return "", fmt.Errorf("invalid weekday: %q", s)
	}
	return w, nil
}

// Recurrence is a set of weekdays on which a habit is due.
// Bit i is set when Weekdays[i] is a member.
type Recurrence uint8

// EveryDay is the recurrence containing all seven weekdays
const EveryDay Recurrence = 1<<7 - 1

// NewRecurrence builds a set from weekday names. Unknown names are ignored.
func NewRecurrence(days ...Weekday) Recurrence {
	var r Recurrence
	for _, d := range days {
		if i := d.Index(); i >= 0 {
			r |= 1 << i
		}
	}
	return r
}

// ParseRecurrence builds a set from names, rejecting unknown ones. Duplicates collapse.
func ParseRecurrence(names []string) (Recurrence, error) {
	var r Recurrence
	for _, n := range names {
		w, err := ParseWeekday(n)
		if err != nil {
			return 0, err
		}
		r |= 1 << w.Index()
	}
	return r, nil
}

// Has reports whether w is in the set
func (r Recurrence) Has(w Weekday) bool {
	i := w.Index()
	return i >= 0 && r&(1<<i) != 0
}

// Contains reports whether the given time.Weekday is in the set
func (r Recurrence) Contains(d time.Weekday) bool {
	return r.Has(WeekdayOf(d))
}

// With returns the set with w added
func (r Recurrence) With(w Weekday) Recurrence {
	return r | NewRecurrence(w)
}

// IsEmpty reports whether no day is in the set
func (r Recurrence) IsEmpty() bool { return r&EveryDay == 0 }

// Len returns the number of days in the set
func (r Recurrence) Len() int {
	n := 0
	for i := range Weekdays {
		if r&(1<<i) != 0 {
			n++
		}
	}
	return n
}

// Days returns the members in Monday-first order
func (r Recurrence) Days() []Weekday {
	days := make([]Weekday, 0, 7)
	for i, d := range Weekdays {
		if r&(1<<i) != 0 {
			days = append(days, d)
		}
	}
	return days
}

// MarshalJSON encodes the set as an array of weekday names.
func (r Recurrence) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Days())
}

// UnmarshalJSON decodes an array of weekday names.
func (r *Recurrence) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("frequency must be an array of weekday names: %w", err)
	}
	parsed, err := ParseRecurrence(names)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
