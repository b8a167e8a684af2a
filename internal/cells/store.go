package cells

import (
	"errors"
	"iter"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

var (
	ErrInvalidSlot = errors.New("slot index out of range")
	ErrOutOfSpan   = errors.New("date outside of store bounds")
)

// Cell is one occupied slot on one date.
type Cell struct {
	Date time.Time
	Slot int
	Code string
}

// Store is the date-addressed view over one or more month matrices.  Cells
// are only visible inside bounds even when an underlying month matrix
// holds keys for days outside of it.
type Store struct {
	bounds schedule.DateSpan
	months map[schedule.YearMonth]Matrix
}

// NewStore returns an empty store limited to bounds.
func NewStore(bounds schedule.DateSpan) *Store {
	return &Store{bounds: bounds, months: map[schedule.YearMonth]Matrix{}}
}

// MergeSpan builds one logical store out of per-month matrices.  Months
// outside span are kept but never iterated.
func MergeSpan(perMonth map[schedule.YearMonth]Matrix, span schedule.DateSpan) *Store {
	s := NewStore(span)
	for ym, m := range perMonth {
		if len(m) == 0 {
			continue
		}
		s.months[ym] = m.Clone()
	}
	return s
}

// Bounds returns the visible date range.
func (s *Store) Bounds() schedule.DateSpan { return s.bounds }

// Set assigns code to the slot on date.  An empty code clears the cell.
func (s *Store) Set(slot int, date time.Time, code string) error {
	if !schedule.ValidSlot(slot) {
		return ErrInvalidSlot
	}
	date = schedule.Date(date)
	if !s.bounds.Contains(date) {
		return ErrOutOfSpan
	}
	ym := schedule.MonthOf(date)
	key := Key{Slot: slot, Day: date.Day()}
	code = strings.TrimSpace(code)
	m := s.months[ym]
	if code == "" {
		if m != nil {
			delete(m, key)
		}
		return nil
	}
	if m == nil {
		m = Matrix{}
		s.months[ym] = m
	}
	m[key] = code
	return nil
}

// Get returns the code at slot on date, or "" when the cell is empty or
// outside bounds.
func (s *Store) Get(slot int, date time.Time) string {
	date = schedule.Date(date)
	if !s.bounds.Contains(date) {
		return ""
	}
	return s.months[schedule.MonthOf(date)][Key{Slot: slot, Day: date.Day()}]
}

// Months lists the months that hold at least one visible cell, in order.
func (s *Store) Months() []schedule.YearMonth {
	out := make([]schedule.YearMonth, 0, len(s.months))
	for ym := range s.months {
		if len(s.MonthMatrix(ym)) > 0 {
			out = append(out, ym)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// MonthMatrix returns a copy of the visible cells of one month.
func (s *Store) MonthMatrix(ym schedule.YearMonth) Matrix {
	out := Matrix{}
	for k, v := range s.months[ym] {
		if !k.ValidIn(ym) {
			continue
		}
		if s.bounds.Contains(time.Date(ym.Year, ym.Month, k.Day, 0, 0, 0, 0, time.UTC)) {
			out[k] = v
		}
	}
	return out
}

// MonthMatrices returns every non-empty visible month grid.
func (s *Store) MonthMatrices() map[schedule.YearMonth]Matrix {
	out := make(map[schedule.YearMonth]Matrix, len(s.months))
	for _, ym := range s.Months() {
		out[ym] = s.MonthMatrix(ym)
	}
	return out
}

// Cells yields the occupied cells that fall inside both span and the
// store bounds, ordered by date then slot.  The sequence can be ranged
// over any number of times.  Keys that do not address a real cell of
// their month (slot outside the grid, day 0, Feb 30...) are skipped.
func (s *Store) Cells(span schedule.DateSpan) iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		window, ok := s.bounds.Intersect(span)
		if !ok {
			return
		}
		for _, ym := range window.Months() {
			m := s.months[ym]
			if len(m) == 0 {
				continue
			}
			for _, k := range m.SortedKeys() {
				if !k.ValidIn(ym) {
					continue
				}
				d := time.Date(ym.Year, ym.Month, k.Day, 0, 0, 0, 0, time.UTC)
				if !window.Contains(d) {
					continue
				}
				if !yield(Cell{Date: d, Slot: k.Slot, Code: m[k]}) {
					return
				}
			}
		}
	}
}

// Count returns the number of occupied cells inside span.
func (s *Store) Count(span schedule.DateSpan) int {
	n := 0
	for range s.Cells(span) {
		n++
	}
	return n
}

// Usage counts how often each code occurs inside span.  Codes are counted
// as stored; case folding is left to the caller.
func (s *Store) Usage(span schedule.DateSpan) map[string]int {
	out := map[string]int{}
	for c := range s.Cells(span) {
		out[c.Code]++
	}
	return out
}
