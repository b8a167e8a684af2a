// Package cells stores which advertising code occupies which slot on which
// day.  A Matrix is the sparse grid of one calendar month; a Store groups
// one or more month matrices behind a single date-addressed view so that
// single-day and multi-month reservations are iterated the same way.
package cells

import (
	"sort"
	"strconv"
	"strings"

	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// Key addresses one cell of a month grid: slot row 0..51 and day 1..31.
type Key struct {
	Slot int
	Day  int
}

// String renders the key in its stored "row,day" form.
func (k Key) String() string { return strconv.Itoa(k.Slot) + "," + strconv.Itoa(k.Day) }

// ValidIn reports whether the key addresses a real cell of the month.
func (k Key) ValidIn(ym schedule.YearMonth) bool {
	return schedule.ValidSlot(k.Slot) && k.Day >= 1 && k.Day <= ym.Days()
}

// ParseKey parses a stored key.  Older payloads wrote tuple keys, so
// "(3, 14)" and "[3,14]" are accepted alongside "3,14".
func ParseKey(raw string) (Key, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "("), "[")
	s = strings.TrimSuffix(strings.TrimSuffix(s, ")"), "]")
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return Key{}, false
	}
	slot, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return Key{}, false
	}
	day, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return Key{}, false
	}
	return Key{Slot: slot, Day: day}, true
}

// Matrix is the sparse code assignment of one month.  Absent keys are
// unallocated; a present key never maps to an empty code.
type Matrix map[Key]string

// FromRaw converts a stored "row,day" -> code map.  Values are trimmed and
// empty values dropped.  Keys that cannot be parsed are skipped and
// counted in skipped.
func FromRaw(raw map[string]string) (m Matrix, skipped int) {
	m = make(Matrix, len(raw))
	for k, v := range raw {
		key, ok := ParseKey(k)
		if !ok {
			skipped++
			continue
		}
		code := strings.TrimSpace(v)
		if code == "" {
			continue
		}
		m[key] = code
	}
	return m, skipped
}

// Raw converts the matrix back to its stored form.
func (m Matrix) Raw() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k.String()] = v
	}
	return out
}

// Clone returns an independent copy.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SortedKeys returns keys ordered by day, then slot.
func (m Matrix) SortedKeys() []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Day != keys[j].Day {
			return keys[i].Day < keys[j].Day
		}
		return keys[i].Slot < keys[j].Slot
	})
	return keys
}
