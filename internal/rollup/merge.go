package rollup

import (
	"sort"
	"strings"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
)

// MergeKind tags the outcome of merging one header field across the
// reservations of a report.
type MergeKind int

const (
	MergeEmpty MergeKind = iota
	MergeSingle
	MergeMultiple
)

// Merged is the merged value of one header field.
type Merged struct {
	Kind  MergeKind
	Value string // set for MergeSingle only
}

// String renders the merged value as shown on reports.
func (m Merged) String() string {
	switch m.Kind {
	case MergeSingle:
		return m.Value
	case MergeMultiple:
		return model.MultipleMarker
	}
	return ""
}

// Merge collapses candidate values: blanks and stored multiple-value
// placeholders are dropped, one distinct value is kept as is, more than
// one collapses to MergeMultiple.
func Merge(values ...string) Merged {
	var first string
	distinct := 0
	seen := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || model.IsPlaceholder(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		if distinct == 0 {
			first = v
		}
		distinct++
	}
	switch distinct {
	case 0:
		return Merged{Kind: MergeEmpty}
	case 1:
		return Merged{Kind: MergeSingle, Value: first}
	}
	return Merged{Kind: MergeMultiple}
}

// SortReservationNos de-duplicates numbers and orders them by ISO year,
// ISO week and sequence.  Numbers that do not parse sort after the ones
// that do, lexicographically.
func SortReservationNos(nos []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(nos))
	for _, n := range nos {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, oki := model.ParseReservationNo(out[i])
		kj, okj := model.ParseReservationNo(out[j])
		switch {
		case oki && okj:
			if ki == kj {
				return out[i] < out[j]
			}
			return ki.Less(kj)
		case oki != okj:
			return oki
		}
		return out[i] < out[j]
	})
	return out
}

// FormatReservationNos renders the header cell: the number itself when
// there is one, otherwise the multiple marker followed by one number
// per line.
func FormatReservationNos(sorted []string) string {
	switch len(sorted) {
	case 0:
		return ""
	case 1:
		return sorted[0]
	}
	return model.MultipleMarker + "\n" + strings.Join(sorted, "\n")
}
