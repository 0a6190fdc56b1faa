package model

import "time"

// SymptomEvent records one free-text symptom submission. Read-only once written.
type SymptomEvent struct {
	UserID     string
	OccurredAt time.Time
	RawText    string
}

// Day is a UTC calendar date in YYYY-MM-DD form
type Day string

// DayOf returns the UTC calendar day of t
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format("2006-01-02"))
}

// DailyBucket holds the distinct symptom mentions for one calendar day.
// Symptoms are trimmed, lowercased, deduplicated and sorted; consumers must
// not re-deduplicate.
type DailyBucket struct {
	Day      Day      `json:"date"`
	Symptoms []string `json:"symptoms"`
}

// WindowKind selects one of the standard trend windows
type WindowKind string

const (
	WindowWeek  WindowKind = "7d"
	WindowMonth WindowKind = "30d"
)

// Days returns the window length in calendar days
func (k WindowKind) Days() int {
	if k == WindowMonth {
		return 30
	}
	return 7
}
