// Package models provides data model definitions for jour.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DateFormat is the canonical on-disk representation of a journal date.
const DateFormat = "2006-01-02"

// JournalEntry represents one journal record for a single calendar date.
//
// Data holds the full serialized iCalendar document exactly as the remote
// collection returned it, so a cached row can always be pushed back to the
// remote without loss. Text is the human-readable DESCRIPTION extracted from
// Data; it backs display and the full-text index.
type JournalEntry struct {
	ID   uuid.UUID `db:"journal_id" json:"journal_id"`
	Date time.Time `db:"journal_date" json:"journal_date"`
	Data string    `db:"journal_data" json:"journal_data"`
	Text string    `db:"journal_text" json:"journal_text"`
}

// TableName returns the table name for JournalEntry.
func (JournalEntry) TableName() string {
	return "journals"
}

// DateString returns the entry date in canonical YYYY-MM-DD form.
func (e *JournalEntry) DateString() string {
	return e.Date.Format(DateFormat)
}

// SearchHit is one full-text search result: the matching entry's date, a
// bounded excerpt around the first match, and a higher-is-better relevance
// score formatted for display.
type SearchHit struct {
	Date    time.Time `json:"journal_date"`
	Snippet string    `json:"snippet"`
	Score   string    `json:"score"`
}

// ParseDate parses a canonical YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}

// Midnight truncates t to its calendar date in UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
