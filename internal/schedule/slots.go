// Package schedule holds the broadcast day grid and the calendar helpers
// every other package builds on.  The grid is fixed: 52 slots of 15
// minutes between 07:00 and 20:00.  Each slot is classified as DT (peak
// daypart) or ODT (off-peak).
package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Daypart is the advertising daypart of a slot.
type Daypart string

const (
	DT  Daypart = "DT"  // 07:00-10:00 and 17:00-20:00
	ODT Daypart = "ODT" // every other slot inside the operating window
)

// Dayparts lists dayparts in report order.
var Dayparts = []Daypart{DT, ODT}

const (
	SlotCount   = 52 // 07:00 -> 20:00 in 15 minute steps
	SlotMinutes = 15

	dayStart = 7 * 60
	dayEnd   = 20 * 60
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// Clock builds a TimeOfDay from an hour and a minute.
func Clock(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String formats the time as HH:MM.
func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(h, m), nil
}

// TimeSlot is one row of the broadcast grid.
type TimeSlot struct {
	Index   int       `json:"index"`
	Start   TimeOfDay `json:"-"`
	End     TimeOfDay `json:"-"`
	Label   string    `json:"label"` // "07:00-07:15"
	Daypart Daypart   `json:"daypart"`
}

var slots = generateSlots()

func generateSlots() []TimeSlot {
	out := make([]TimeSlot, 0, SlotCount)
	for cur := TimeOfDay(dayStart); cur < dayEnd; cur += SlotMinutes {
		next := cur + SlotMinutes
		out = append(out, TimeSlot{
			Index:   len(out),
			Start:   cur,
			End:     next,
			Label:   cur.String() + "-" + next.String(),
			Daypart: Classify(cur),
		})
	}
	return out
}

// Slots returns the 52 broadcast slots.  The returned slice is a copy.
func Slots() []TimeSlot {
	out := make([]TimeSlot, len(slots))
	copy(out, slots)
	return out
}

// Classify returns DT for 07:00 <= t < 10:00 or 17:00 <= t < 20:00,
// and ODT otherwise.  Both windows are half-open.
func Classify(t TimeOfDay) Daypart {
	morning := t >= Clock(7, 0) && t < Clock(10, 0)
	evening := t >= Clock(17, 0) && t < Clock(20, 0)
	if morning || evening {
		return DT
	}
	return ODT
}

// ValidSlot reports whether index addresses a grid row.
func ValidSlot(index int) bool { return index >= 0 && index < SlotCount }

// SlotTime returns the start time of the slot at index (07:00 + index*15m).
func SlotTime(index int) TimeOfDay { return TimeOfDay(dayStart + index*SlotMinutes) }

// SlotDaypart classifies the slot at index.  Out of range indexes panic.
func SlotDaypart(index int) Daypart { return slots[index].Daypart }
