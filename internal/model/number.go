package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/iliyamo/radio-slot-reservation/internal/normalize"
)

// FirstReservationSeq is the value of the global reservation counter
// before the first confirmation.
const FirstReservationSeq = 1000

// FormatReservationNo renders "{INITIAL}-{isoYear}W{isoWeek:02}-{seq}".
// The initial is the upper-cased first letter of the advertiser, X when
// the name is blank.
func FormatReservationNo(advertiser string, when time.Time, seq int64) string {
	year, week := when.ISOWeek()
	return fmt.Sprintf("%s-%dW%02d-%d", normalize.Initial(advertiser, "X"), year, week, seq)
}

// NumberKey is the sortable form of a reservation number.
type NumberKey struct {
	ISOYear int
	ISOWeek int
	Seq     int64
}

// Less orders by ISO year, ISO week, then sequence.
func (k NumberKey) Less(o NumberKey) bool {
	if k.ISOYear != o.ISOYear {
		return k.ISOYear < o.ISOYear
	}
	if k.ISOWeek != o.ISOWeek {
		return k.ISOWeek < o.ISOWeek
	}
	return k.Seq < o.Seq
}

var numberRe = regexp.MustCompile(`^\s*\S+-(\d{4})W(\d{1,2})-(\d+)\s*$`)

// ParseReservationNo extracts the sort key of a reservation number.
func ParseReservationNo(s string) (NumberKey, bool) {
	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return NumberKey{}, false
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	seq, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return NumberKey{}, false
	}
	return NumberKey{ISOYear: year, ISOWeek: week, Seq: seq}, true
}
