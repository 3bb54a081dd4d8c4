// Package vjournal builds and reads the iCalendar journal documents the
// remote collection stores. Each document is a VCALENDAR wrapping a single
// VJOURNAL component; the VJOURNAL's DESCRIPTION carries the entry text and
// its DTSTART (a DATE value) carries the entry date.
package vjournal

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/kimhsiao/jour/internal/models"
)

const prodID = "-//jour//journal//EN"

// dateLayout is the iCalendar DATE value form.
const dateLayout = "20060102"

// New builds a journal calendar for one entry.
func New(uid string, date time.Time, summary, description string) *ical.Calendar {
	journal := ical.NewComponent(ical.CompJournal)
	journal.Props.SetText(ical.PropUID, uid)
	journal.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	journal.Props.SetText(ical.PropSummary, summary)
	journal.Props.SetText(ical.PropDescription, description)

	start := ical.NewProp(ical.PropDateTimeStart)
	start.SetValueType(ical.ValueDate)
	start.Value = models.Midnight(date).Format(dateLayout)
	journal.Props.Set(start)

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Children = append(cal.Children, journal)
	return cal
}

// NewDocument builds a serialized journal document for one entry.
func NewDocument(uid string, date time.Time, summary, description string) (string, error) {
	return EncodeCalendar(New(uid, date, summary, description))
}

// EncodeCalendar renders a calendar in its wire form.
func EncodeCalendar(cal *ical.Calendar) (string, error) {
	var buf strings.Builder
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("encode journal document: %w", err)
	}
	return buf.String(), nil
}

// DecodeCalendar parses a serialized document.
func DecodeCalendar(data string) (*ical.Calendar, error) {
	cal, err := ical.NewDecoder(strings.NewReader(data)).Decode()
	if err != nil {
		return nil, fmt.Errorf("parse journal document: %w", err)
	}
	return cal, nil
}

// ExtractCalendar pulls (uid, date, description) out of a journal calendar.
func ExtractCalendar(cal *ical.Calendar) (uid string, date time.Time, description string, err error) {
	journal, err := journalComponent(cal)
	if err != nil {
		return "", time.Time{}, "", err
	}

	uid, err = journal.Props.Text(ical.PropUID)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("journal uid: %w", err)
	}
	if uid == "" {
		return "", time.Time{}, "", fmt.Errorf("journal document has no UID")
	}

	startProp := journal.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return "", time.Time{}, "", fmt.Errorf("journal document has no DTSTART")
	}
	start, err := startProp.DateTime(time.UTC)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("journal dtstart: %w", err)
	}

	description, err = journal.Props.Text(ical.PropDescription)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("journal description: %w", err)
	}

	return uid, models.Midnight(start), description, nil
}

// Extract pulls (uid, date, description) out of a serialized journal
// document.
func Extract(data string) (uid string, date time.Time, description string, err error) {
	cal, err := DecodeCalendar(data)
	if err != nil {
		return "", time.Time{}, "", err
	}
	return ExtractCalendar(cal)
}

// SetDescription replaces the entry text of a journal calendar in place,
// leaving every other property untouched so the document stays
// round-trippable against the remote server.
func SetDescription(cal *ical.Calendar, description string) error {
	journal, err := journalComponent(cal)
	if err != nil {
		return err
	}
	journal.Props.SetText(ical.PropDescription, description)
	return nil
}

// RewriteDescription returns a copy of a serialized document with its
// DESCRIPTION replaced.
func RewriteDescription(data, description string) (string, error) {
	cal, err := DecodeCalendar(data)
	if err != nil {
		return "", err
	}
	if err := SetDescription(cal, description); err != nil {
		return "", err
	}
	return EncodeCalendar(cal)
}

// journalComponent locates the single VJOURNAL component of a calendar.
func journalComponent(cal *ical.Calendar) (*ical.Component, error) {
	for _, child := range cal.Children {
		if child.Name == ical.CompJournal {
			return child, nil
		}
	}
	return nil, fmt.Errorf("document contains no VJOURNAL component")
}
