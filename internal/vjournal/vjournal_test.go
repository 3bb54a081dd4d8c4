// Package vjournal tests for journal document handling.
package vjournal

import (
	"strings"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestNewDocumentRoundTrip verifies a built document extracts back to its
// inputs.
func TestNewDocumentRoundTrip(t *testing.T) {
	data, err := NewDocument("f47ac10b-58cc-4372-a567-0e02b2c3d479", day(2024, 3, 1),
		"Journal entry for 2024-03-01", "hello")
	if err != nil {
		t.Fatalf("NewDocument() failed: %v", err)
	}

	if !strings.Contains(data, "BEGIN:VJOURNAL") {
		t.Errorf("document missing VJOURNAL component:\n%s", data)
	}
	if !strings.Contains(data, "VERSION:2.0") {
		t.Errorf("document missing VERSION:\n%s", data)
	}

	uid, date, description, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if uid != "f47ac10b-58cc-4372-a567-0e02b2c3d479" {
		t.Errorf("uid = %q, want original", uid)
	}
	if !date.Equal(day(2024, 3, 1)) {
		t.Errorf("date = %v, want 2024-03-01", date)
	}
	if description != "hello" {
		t.Errorf("description = %q, want %q", description, "hello")
	}
}

// TestNewDocumentMultiline verifies entry text with newlines survives
// serialization.
func TestNewDocumentMultiline(t *testing.T) {
	text := "first line\nsecond line\n\nfourth line"
	data, err := NewDocument("f47ac10b-58cc-4372-a567-0e02b2c3d479", day(2024, 3, 1), "s", text)
	if err != nil {
		t.Fatalf("NewDocument() failed: %v", err)
	}

	_, _, description, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if description != text {
		t.Errorf("description = %q, want %q", description, text)
	}
}

// TestRewriteDescription verifies only the description changes.
func TestRewriteDescription(t *testing.T) {
	data, err := NewDocument("f47ac10b-58cc-4372-a567-0e02b2c3d479", day(2024, 3, 1),
		"Journal entry for 2024-03-01", "old text")
	if err != nil {
		t.Fatalf("NewDocument() failed: %v", err)
	}

	updated, err := RewriteDescription(data, "new text")
	if err != nil {
		t.Fatalf("RewriteDescription() failed: %v", err)
	}

	uid, date, description, err := Extract(updated)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if description != "new text" {
		t.Errorf("description = %q, want %q", description, "new text")
	}
	if uid != "f47ac10b-58cc-4372-a567-0e02b2c3d479" || !date.Equal(day(2024, 3, 1)) {
		t.Error("RewriteDescription() changed uid or date")
	}
}

// TestExtractForeignDocument verifies documents produced elsewhere parse.
func TestExtractForeignDocument(t *testing.T) {
	data := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Radicale//NONSGML Radicale Server//EN",
		"BEGIN:VJOURNAL",
		"UID:0e02b2c3-d479-4372-a567-f47ac10b58cc",
		"DTSTAMP:20240301T120000Z",
		"DTSTART;VALUE=DATE:20240301",
		"SUMMARY:Journal entry for 2024-03-01",
		"DESCRIPTION:written by another client",
		"END:VJOURNAL",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	uid, date, description, err := Extract(data)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if uid != "0e02b2c3-d479-4372-a567-f47ac10b58cc" {
		t.Errorf("uid = %q, want foreign uid", uid)
	}
	if !date.Equal(day(2024, 3, 1)) {
		t.Errorf("date = %v, want 2024-03-01", date)
	}
	if description != "written by another client" {
		t.Errorf("description = %q", description)
	}
}

// TestExtractInvalid verifies malformed and journal-less documents fail.
func TestExtractInvalid(t *testing.T) {
	if _, _, _, err := Extract("not an icalendar document"); err == nil {
		t.Error("Extract(garbage) should fail")
	}

	noJournal := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	if _, _, _, err := Extract(noJournal); err == nil {
		t.Error("Extract() without a VJOURNAL should fail")
	}
}
