package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/radio-slot-reservation/internal/cells"
	"github.com/iliyamo/radio-slot-reservation/internal/codes"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// Status is the lifecycle state of a reservation.  A reservation starts
// as a DRAFT in memory and becomes CONFIRMED exactly once, when it is
// numbered and persisted.  There is no way back to DRAFT.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
)

// Allocation is the cell grid of a reservation.  It is either a
// SingleDate or a Spanned value; callers use Span and Store and never
// branch on the concrete shape.
type Allocation interface {
	// Span is the logical date range used to decide whether the
	// reservation intersects a report range.
	Span() schedule.DateSpan
	// Store exposes the occupied cells.
	Store() *cells.Store
	isAllocation()
}

// SingleDate is a reservation planned on one date.  Cells holds the month
// grid of that date as submitted, but only the plan date is visible
// through Store, so a cell on another day never counts.
type SingleDate struct {
	Date  time.Time
	Cells cells.Matrix
}

func (a SingleDate) Span() schedule.DateSpan { return schedule.SingleDay(a.Date) }

func (a SingleDate) Store() *cells.Store {
	return cells.MergeSpan(map[schedule.YearMonth]cells.Matrix{schedule.MonthOf(a.Date): a.Cells}, a.Span())
}

func (SingleDate) isAllocation() {}

// Spanned is a reservation whose grid covers an inclusive date range that
// may cross month boundaries.  Months holds one grid per calendar month.
type Spanned struct {
	Range  schedule.DateSpan
	Months map[schedule.YearMonth]cells.Matrix
}

func (a Spanned) Span() schedule.DateSpan { return a.Range }

func (a Spanned) Store() *cells.Store { return cells.MergeSpan(a.Months, a.Range) }

func (Spanned) isAllocation() {}

// Reservation is a confirmed (or previewed) advertising reservation.
// Once confirmed it is owned by the repository; the core only reads it.
type Reservation struct {
	ID            int64
	ReservationNo string
	Status        Status
	CreatedAt     time.Time

	PlanTitle   string
	Advertiser  string
	Agency      string
	Product     string
	ChannelName string

	CodeDefs   []codes.Def
	Allocation Allocation

	// Display and pass-through fields carried on the stored payload.
	SpotCode            string
	SpotDurationSec     int
	CodeDefinition      string
	SpotTime            string
	Daypart             schedule.Daypart
	NoteText            string
	PreparedBy          string
	ChannelPriceDT      decimal.Decimal
	ChannelPriceODT     decimal.Decimal
	AgencyCommissionPct int

	// SkippedKeys counts stored cell keys that could not be parsed.
	SkippedKeys int
}

// Resolver returns the code resolver of this reservation.
func (r *Reservation) Resolver() *codes.Resolver { return codes.NewResolver(r.CodeDefs) }

// PlanDate is the primary date of the reservation: the plan date of a
// single-date reservation, the first day of a spanned one.
func (r *Reservation) PlanDate() time.Time {
	if r.Allocation == nil {
		return time.Time{}
	}
	return r.Allocation.Span().Start
}

// Occupied counts every occupied cell of the reservation.
func (r *Reservation) Occupied() int {
	if r.Allocation == nil {
		return 0
	}
	st := r.Allocation.Store()
	return st.Count(st.Bounds())
}

// Draft is the unpersisted, mutable form of a reservation as filled in by
// a planner.
type Draft struct {
	AdvertiserName string
	AgencyName     string
	ProductName    string
	PlanTitle      string
	ChannelName    string

	PlanDate time.Time
	// Span is set for reservations whose grid crosses a month boundary.
	Span *schedule.DateSpan

	SpotTime        schedule.TimeOfDay
	SpotCode        string
	SpotDurationSec int
	CodeDefinition  string
	CodeDefs        []codes.Def

	NoteText       string
	PreparedByName string

	ChannelPriceDT      decimal.Decimal
	ChannelPriceODT     decimal.Decimal
	AgencyCommissionPct int
}

// CellAssignments is the grid a planner submits together with a draft.
// PlanCells is the plan-date month grid of a single-date reservation;
// MonthCells holds one grid per "YYYY-MM" for spanned reservations.  Keys
// are in stored "row,day" form.
type CellAssignments struct {
	PlanCells  map[string]string
	MonthCells map[string]map[string]string
}
