// Package codes resolves the user-defined advertising codes of a
// reservation ("K", "A", ...) into broadcast durations.
package codes

import (
	"math"
	"strconv"
	"strings"

	"github.com/iliyamo/radio-slot-reservation/internal/normalize"
)

// Def is one code definition of a reservation.
type Def struct {
	Code        string `json:"code"`
	Description string `json:"desc"`
	DurationSec int    `json:"duration_sec"`
}

// Resolver maps codes to durations for one reservation.  Lookups are
// case-insensitive.  When a code is defined twice the first definition
// wins.
type Resolver struct {
	order []string
	defs  map[string]Def
}

// NewResolver builds a resolver from a reservation's definitions.  Blank
// codes are ignored and negative durations are clamped to zero.
func NewResolver(defs []Def) *Resolver {
	r := &Resolver{defs: make(map[string]Def, len(defs))}
	for _, d := range defs {
		key := normalize.Key(d.Code)
		if key == "" {
			continue
		}
		if _, dup := r.defs[key]; dup {
			continue
		}
		if d.DurationSec < 0 {
			d.DurationSec = 0
		}
		d.Code = key
		d.Description = strings.TrimSpace(d.Description)
		r.defs[key] = d
		r.order = append(r.order, key)
	}
	return r
}

// Resolve returns the duration in seconds of code, or 0 when the
// reservation does not define it.
func (r *Resolver) Resolve(code string) int {
	return r.defs[normalize.Key(code)].DurationSec
}

// Defined reports whether code has a definition.
func (r *Resolver) Defined(code string) bool {
	_, ok := r.defs[normalize.Key(code)]
	return ok
}

// Defs returns the de-duplicated definitions in declaration order.
func (r *Resolver) Defs() []Def {
	out := make([]Def, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.defs[k])
	}
	return out
}

// WeightedAverageDuration averages durations weighted by how many cells
// use each code.  Undefined codes weigh in with zero seconds.  Used for
// single-value display fields only; budgets always use the exact
// per-cell duration.
func (r *Resolver) WeightedAverageDuration(usage map[string]int) float64 {
	total, seconds := 0, 0
	for code, n := range usage {
		if n <= 0 {
			continue
		}
		total += n
		seconds += n * r.Resolve(code)
	}
	if total == 0 {
		return 0
	}
	return float64(seconds) / float64(total)
}

// SpotLength renders the display spot length for the given usage: the
// exact duration when one distinct code is used, the weighted average
// rounded to one decimal otherwise, "" when nothing resolves.
func (r *Resolver) SpotLength(usage map[string]int) string {
	distinct := map[string]struct{}{}
	for code, n := range usage {
		if n > 0 {
			distinct[normalize.Key(code)] = struct{}{}
		}
	}
	switch len(distinct) {
	case 0:
		return ""
	case 1:
		for code := range distinct {
			if d := r.Resolve(code); d > 0 {
				return strconv.Itoa(d)
			}
		}
		return ""
	}
	avg := math.Round(r.WeightedAverageDuration(usage)*10) / 10
	if avg == 0 {
		return ""
	}
	return strconv.FormatFloat(avg, 'f', -1, 64)
}

// MergeDefs concatenates definition lists of several reservations into one
// legend.  First occurrence of a code wins, matching NewResolver.
func MergeDefs(lists ...[]Def) []Def {
	var all []Def
	for _, l := range lists {
		all = append(all, l...)
	}
	return NewResolver(all).Defs()
}
