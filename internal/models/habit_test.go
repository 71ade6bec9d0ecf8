package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCategory_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value Category
		valid bool
	}{
		{"health", CategoryHealth, true},
		{"financial", CategoryFinancial, true},
		{"other", CategoryOther, true},
		{"invalid", Category("chores"), false},
		{"empty", Category(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.value.Valid(); got != tt.valid {
				t.Errorf("Expected Valid()=%v for %q, got %v", tt.valid, tt.value, got)
			}
		})
	}
}

func TestColor_Valid(t *testing.T) {
	t.Parallel()

	if !ColorAccent.Valid() {
		t.Error("Expected accent to be valid")
	}
	if Color("purple").Valid() {
		t.Error("Expected purple to be invalid")
	}
}

func TestWeekdayOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Weekday
		want Weekday
	}{
		{time.Monday, Monday},
		{time.Tuesday, Tuesday},
		{time.Saturday, Saturday},
		{time.Sunday, Sunday},
	}

	for _, tt := range tests {
		if got := WeekdayOf(tt.in); got != tt.want {
			t.Errorf("WeekdayOf(%v): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestWeekday_Short(t *testing.T) {
	t.Parallel()

	if got := Wednesday.Short(); got != "Wed" {
		t.Errorf("Expected Wed, got %s", got)
	}
	if got := Sunday.Short(); got != "Sun" {
		t.Errorf("Expected Sun, got %s", got)
	}
}

func TestRecurrence_JSON(t *testing.T) {
	t.Parallel()

	var r Recurrence
	if err := json.Unmarshal([]byte(`["friday","Monday","friday"]`), &r); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Expected duplicates to collapse to 2 days, got %d", r.Len())
	}
	if !r.Has(Monday) || !r.Has(Friday) || r.Has(Tuesday) {
		t.Errorf("Unexpected membership for %v", r.Days())
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(out) != `["monday","friday"]` {
		t.Errorf("Expected Monday-first order, got %s", out)
	}

	if err := json.Unmarshal([]byte(`["funday"]`), &r); err == nil {
		t.Error("Expected error for unknown weekday")
	}
}

func TestRecurrence_Empty(t *testing.T) {
	t.Parallel()

	var r Recurrence
	if !r.IsEmpty() {
		t.Error("Expected zero recurrence to be empty")
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(out) != "[]" {
		t.Errorf("Expected [], got %s", out)
	}
	if EveryDay.Len() != 7 {
		t.Errorf("Expected EveryDay to have 7 days, got %d", EveryDay.Len())
	}
}

func TestDate_ParseAndFormat(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2024-02-28")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("Expected leap day, got %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("Expected 2024-03-01, got %s", got)
	}
	if d.Weekday() != time.Wednesday {
		t.Errorf("Expected Wednesday, got %v", d.Weekday())
	}
	if n := d.DaysUntil(MustParseDate("2024-03-07")); n != 8 {
		t.Errorf("Expected 8 days, got %d", n)
	}

	for _, bad := range []string{"", "2024-13-01", "28/02/2024", "2024-02-30"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestDate_Scan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  any
		want string
	}{
		{"time", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "2025-06-01"},
		{"string", "2025-06-02", "2025-06-02"},
		{"bytes", []byte("2025-06-03"), "2025-06-03"},
		{"timestamp text", "2025-06-04 00:00:00+00:00", "2025-06-04"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var d Date
			if err := d.Scan(tt.src); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if d.String() != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, d.String())
			}
		})
	}
}

func TestDateOf_UsesLocation(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)
	if got := DateOf(instant.In(tokyo)).String(); got != "2025-01-02" {
		t.Errorf("Expected 2025-01-02 in Tokyo, got %s", got)
	}
	if got := DateOf(instant).String(); got != "2025-01-01" {
		t.Errorf("Expected 2025-01-01 in UTC, got %s", got)
	}
}
