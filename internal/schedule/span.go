package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO layout used for plan dates on the wire.
const DateLayout = "2006-01-02"

// Date truncates t to a calendar date at UTC midnight.  All dates handled
// by the core are normalized this way so that equality and map keys work.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD.  time.Parse rejects impossible dates such
// as 2026-02-30.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return Date(t), nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// YearMonth identifies one calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// MonthOf returns the YearMonth containing t.
func MonthOf(t time.Time) YearMonth { return YearMonth{Year: t.Year(), Month: t.Month()} }

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, err
	}
	return MonthOf(t), nil
}

// String formats as YYYY-MM.
func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }

// Days returns the number of days in the month.
func (ym YearMonth) Days() int { return DaysIn(ym.Year, ym.Month) }

// First returns the first day of the month.
func (ym YearMonth) First() time.Time { return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC) }

// Last returns the last day of the month.
func (ym YearMonth) Last() time.Time { return time.Date(ym.Year, ym.Month, ym.Days(), 0, 0, 0, 0, time.UTC) }

// Span covers the whole month.
func (ym YearMonth) Span() DateSpan { return DateSpan{Start: ym.First(), End: ym.Last()} }

// Before orders months chronologically.
func (ym YearMonth) Before(o YearMonth) bool {
	if ym.Year != o.Year {
		return ym.Year < o.Year
	}
	return ym.Month < o.Month
}

// Next returns the following month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == time.December {
		return YearMonth{Year: ym.Year + 1, Month: time.January}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// DateSpan is an inclusive range of calendar dates with Start <= End.
type DateSpan struct {
	Start time.Time
	End   time.Time
}

// NewDateSpan normalizes both ends to dates and swaps them when end
// precedes start.  An inverted span is never an error.
func NewDateSpan(start, end time.Time) DateSpan {
	s, e := Date(start), Date(end)
	if e.Before(s) {
		s, e = e, s
	}
	return DateSpan{Start: s, End: e}
}

// SingleDay is the one-day span [d, d].
func SingleDay(d time.Time) DateSpan { return NewDateSpan(d, d) }

// Contains reports whether d falls inside the span.
func (s DateSpan) Contains(d time.Time) bool {
	d = Date(d)
	return !d.Before(s.Start) && !d.After(s.End)
}

// Overlaps reports whether the two spans share at least one date.
func (s DateSpan) Overlaps(o DateSpan) bool {
	return !s.End.Before(o.Start) && !o.End.Before(s.Start)
}

// Intersect returns the common part of both spans.  ok is false when the
// spans do not overlap.
func (s DateSpan) Intersect(o DateSpan) (DateSpan, bool) {
	if !s.Overlaps(o) {
		return DateSpan{}, false
	}
	start, end := s.Start, s.End
	if o.Start.After(start) {
		start = o.Start
	}
	if o.End.Before(end) {
		end = o.End
	}
	return DateSpan{Start: start, End: end}, true
}

// Days lists every date of the span in order.
func (s DateSpan) Days() []time.Time {
	var out []time.Time
	for d := s.Start; !d.After(s.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Months lists every calendar month the span touches, in order.
func (s DateSpan) Months() []YearMonth {
	var out []YearMonth
	last := MonthOf(s.End)
	for ym := MonthOf(s.Start); !last.Before(ym); ym = ym.Next() {
		out = append(out, ym)
	}
	return out
}

// String formats the span as "YYYY-MM-DD..YYYY-MM-DD".
func (s DateSpan) String() string {
	return s.Start.Format(DateLayout) + ".." + s.End.Format(DateLayout)
}
