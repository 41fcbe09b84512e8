// Package schedule holds the pure scheduling rules shared by the API and its
// clients: slot templates, timeslot generation, week grids, the appointment
// action matrix and the reschedule slot filter. Nothing here performs I/O.
package schedule

import (
	"fmt"
	"time"
)

// MinSlotIndex and MaxSlotIndex bound the fixed daily slot templates.
const (
	MinSlotIndex = 1
	MaxSlotIndex = 9
)

// Template is one of the fixed daily time windows a doctor can open.
type Template struct {
	Index int    `json:"slot_index"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

var templates = []Template{
	{1, "08:00", "09:00"},
	{2, "09:00", "10:00"},
	{3, "10:00", "11:00"},
	{4, "11:00", "12:00"},
	{5, "13:00", "14:00"},
	{6, "14:00", "15:00"},
	{7, "15:00", "16:00"},
	{8, "16:00", "17:00"},
	{9, "17:00", "18:00"},
}

// Templates returns a copy of the nine slot templates ordered by index.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// TemplateFor returns the template with the given index.
func TemplateFor(index int) (Template, error) {
	if index < MinSlotIndex || index > MaxSlotIndex {
		return Template{}, fmt.Errorf("%w: %d", ErrInvalidSlotIndex, index)
	}
	return templates[index-1], nil
}

// CivilDate truncates t to its calendar day, expressed as midnight UTC.
// Timeslot dates are stored this way so the day never shifts with the
// reader's timezone.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return t, nil
}

// DateLayout is the key format used for grouping and query parameters.
const DateLayout = "2006-01-02"
