package rollup

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/radio-slot-reservation/internal/codes"
	"github.com/iliyamo/radio-slot-reservation/internal/model"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// Result is the rollup of one plan over a date range.  Rows and Totals
// share the same column structure: one entry per date in Dates and one
// entry per month in Months.
type Result struct {
	PlanTitle string        `json:"plan_title"`
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Header    Header        `json:"header"`
	Dates     []string      `json:"dates"`
	Months    []MonthColumn `json:"months"`
	Rows      []Row         `json:"rows"`
	Totals    Totals        `json:"totals"`

	Stats Stats `json:"-"`
}

// Header carries the merged descriptive fields of all contributing
// reservations.
type Header struct {
	Agency         string      `json:"agency"`
	Advertiser     string      `json:"advertiser"`
	Product        string      `json:"product"`
	PlanTitle      string      `json:"plan_title"`
	ReservationNo  string      `json:"reservation_no"`
	ReservationNos []string    `json:"reservation_nos"`
	SpotLength     string      `json:"spot_length"`
	Codes          []codes.Def `json:"codes"`
}

// MonthColumn is one calendar month touched by the report range.
type MonthColumn struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Label string `json:"label"` // MM/YYYY
	Days  int    `json:"days"`  // dates of this month inside the range
}

func monthColumn(ym schedule.YearMonth, rng schedule.DateSpan) MonthColumn {
	days := 0
	if in, ok := ym.Span().Intersect(rng); ok {
		days = len(in.Days())
	}
	return MonthColumn{
		Year:  ym.Year,
		Month: int(ym.Month),
		Label: ym.First().Format("01/2006"),
		Days:  days,
	}
}

// MonthCell is the per-month sub-column of a row: placements (adet),
// seconds (saniye) and budget.
type MonthCell struct {
	Count   int             `json:"count"`
	Seconds int             `json:"seconds"`
	Budget  decimal.Decimal `json:"budget"`
}

func (c *MonthCell) add(o MonthCell) {
	c.Count += o.Count
	c.Seconds += o.Seconds
	c.Budget = c.Budget.Add(o.Budget)
}

// PriceKind tags a row's unit price cell.
type PriceKind int

const (
	PriceBlank PriceKind = iota
	PriceSingle
	PriceMultiple
)

// UnitPrice is a row's displayed unit rate: a number when every
// contribution used the same rate, the multiple marker when rates
// varied, blank when no rate was ever resolved.
type UnitPrice struct {
	Kind  PriceKind
	Value decimal.Decimal
}

// MarshalJSON renders a number, "ÇOKLU" or "".
func (p UnitPrice) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PriceSingle:
		return []byte(p.Value.String()), nil
	case PriceMultiple:
		return json.Marshal(model.MultipleMarker)
	}
	return []byte(`""`), nil
}

// String renders the cell as text.
func (p UnitPrice) String() string {
	switch p.Kind {
	case PriceSingle:
		return p.Value.String()
	case PriceMultiple:
		return model.MultipleMarker
	}
	return ""
}

// Row is the rollup of one channel and daypart.  Days holds one entry per
// report date; nil marks a date without placements.
type Row struct {
	Channel   string           `json:"channel"`
	ChannelID int64            `json:"channel_id,omitempty"`
	Daypart   schedule.Daypart `json:"daypart"`
	Days      []*int           `json:"days"`
	Months    []MonthCell      `json:"months"`
	Count     int              `json:"count"`
	Seconds   int              `json:"seconds"`
	UnitPrice UnitPrice        `json:"unit_price"`
	Budget    decimal.Decimal  `json:"budget"`
}

// DayCount returns the placements on date index i, 0 when blank.
func (r Row) DayCount(i int) int {
	if r.Days[i] == nil {
		return 0
	}
	return *r.Days[i]
}

// Totals sums all rows column by column.
type Totals struct {
	Days    []int           `json:"days"`
	Months  []MonthCell     `json:"months"`
	Count   int             `json:"count"`
	Seconds int             `json:"seconds"`
	Budget  decimal.Decimal `json:"budget"`
}

// Stats describes the scan that produced a result.
type Stats struct {
	Candidates   int // reservations returned by the store
	Contributing int // reservations intersecting the range
	Cells        int // occupied cells inside the range
	SkippedKeys  int // malformed stored keys across contributing reservations
}

// unitPriceOf derives the unit price cell from the distinct rates used.
func unitPriceOf(rates map[string]decimal.Decimal) UnitPrice {
	switch len(rates) {
	case 0:
		return UnitPrice{Kind: PriceBlank}
	case 1:
		for _, v := range rates {
			return UnitPrice{Kind: PriceSingle, Value: v}
		}
	}
	return UnitPrice{Kind: PriceMultiple}
}
