package report

import (
	"fmt"
	"time"

	"github.com/possales/backend/internal/domain/shared"
)

// DateLayout is the wire and storage format of report dates
const DateLayout = "2006-01-02"

// Window is an inclusive range of calendar days.
// Start and End are dates normalized to midnight UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// DateOf returns the calendar date of t, in t's own location, as midnight UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, shared.NewDomainError("INVALID_DATE", fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD", s))
	}
	return t, nil
}

// ResolveWindow computes the window a report type covers for the given reference date.
//
//	daily:    the reference day
//	weekly:   Monday through Sunday of the reference week
//	monthly:  first through last day of the reference month
//	criteria: the reference day
func ResolveWindow(reportType ReportType, reference time.Time) (Window, error) {
	day := DateOf(reference)
	switch reportType {
	case ReportTypeDaily, ReportTypeCriteria:
		return Window{Start: day, End: day}, nil
	case ReportTypeWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return Window{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case ReportTypeMonthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Window{Start: start, End: start.AddDate(0, 1, -1)}, nil
	default:
		return Window{}, shared.NewDomainError("INVALID_REPORT_TYPE", fmt.Sprintf("Unknown report type: %s", reportType))
	}
}

// Days returns the number of calendar days in the window
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Contains reports whether the date of day falls inside the window
func (w Window) Contains(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Bounds returns the half-open instant range [from, to) covering the window in loc
func (w Window) Bounds(loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from = time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, loc)
	end := w.End.AddDate(0, 0, 1)
	to = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	return from, to
}

// String renders the window as start..end
func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}
