package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/radio-slot-reservation/internal/cells"
	"github.com/iliyamo/radio-slot-reservation/internal/codes"
	"github.com/iliyamo/radio-slot-reservation/internal/normalize"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// Payload mirrors the JSON document stored in reservations.payload_json.
// The repository treats it as opaque; only this package interprets it.
type Payload struct {
	AgencyName          string                       `json:"agency_name"`
	AdvertiserName      string                       `json:"advertiser_name"`
	ProductName         string                       `json:"product_name"`
	PlanTitle           string                       `json:"plan_title"`
	SpotCode            string                       `json:"spot_code"`
	SpotDurationSec     int                          `json:"spot_duration_sec"`
	CodeDefinition      string                       `json:"code_definition"`
	CodeDefs            []codes.Def                  `json:"code_defs,omitempty"`
	NoteText            string                       `json:"note_text"`
	PreparedBy          string                       `json:"prepared_by"`
	PlanDate            string                       `json:"plan_date"`
	SpotTime            string                       `json:"spot_time,omitempty"`
	DtOdt               string                       `json:"dt_odt,omitempty"`
	ChannelName         string                       `json:"channel_name"`
	ChannelPriceDT      decimal.Decimal              `json:"channel_price_dt"`
	ChannelPriceODT     decimal.Decimal              `json:"channel_price_odt"`
	AgencyCommissionPct int                          `json:"agency_commission_pct"`
	PlanCells           map[string]string            `json:"plan_cells"`
	AdetTotal           int                          `json:"adet_total"`
	IsSpan              bool                         `json:"is_span,omitempty"`
	SpanStart           string                       `json:"span_start,omitempty"`
	SpanEnd             string                       `json:"span_end,omitempty"`
	SpanMonthMatrices   map[string]map[string]string `json:"span_month_matrices,omitempty"`
}

// MultipleMarker is written in single-value fields that stand for more
// than one distinct value.
const MultipleMarker = "ÇOKLU"

// IsPlaceholder reports whether v is a stored "multiple values" marker
// rather than a real value.
func IsPlaceholder(v string) bool {
	switch normalize.Key(v) {
	case MultipleMarker, "COKLU", "MULTIPLE":
		return true
	}
	return false
}

// DecodePayload parses a stored payload document.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// Encode serializes the payload for storage.
func (p Payload) Encode() ([]byte, error) { return json.Marshal(p) }

// codeDefs returns the definition list, falling back to the legacy
// single-code fields when no list was stored.
func (p Payload) codeDefs() []codes.Def {
	if len(p.CodeDefs) > 0 {
		return p.CodeDefs
	}
	code := strings.TrimSpace(p.SpotCode)
	if code == "" || IsPlaceholder(code) {
		return nil
	}
	return []codes.Def{{Code: code, Description: p.CodeDefinition, DurationSec: p.SpotDurationSec}}
}

// allocation normalizes the single-date and spanned payload shapes.
// A span with unparsable boundaries degrades to a single-date
// reservation on plan_date.
func (p Payload) allocation() (Allocation, int, error) {
	planDate, planErr := schedule.ParseDate(p.PlanDate)

	if p.IsSpan || (p.SpanStart != "" && p.SpanEnd != "") {
		start, err1 := schedule.ParseDate(p.SpanStart)
		end, err2 := schedule.ParseDate(p.SpanEnd)
		if err1 == nil && err2 == nil {
			months := map[schedule.YearMonth]cells.Matrix{}
			skipped := 0
			for k, raw := range p.SpanMonthMatrices {
				ym, err := schedule.ParseYearMonth(k)
				if err != nil {
					skipped += len(raw)
					continue
				}
				m, n := cells.FromRaw(raw)
				skipped += n
				months[ym] = m
			}
			return Spanned{Range: schedule.NewDateSpan(start, end), Months: months}, skipped, nil
		}
	}

	if planErr != nil {
		return nil, 0, fmt.Errorf("invalid plan_date %q: %w", p.PlanDate, planErr)
	}
	raw := p.PlanCells
	if len(raw) == 0 {
		raw = p.SpanMonthMatrices[schedule.MonthOf(planDate).String()]
	}
	m, skipped := cells.FromRaw(raw)
	return SingleDate{Date: planDate, Cells: m}, skipped, nil
}

// Reservation interprets the payload.  Row-level columns (id, number,
// created_at, status) are filled in by the repository.
func (p Payload) Reservation() (*Reservation, error) {
	alloc, skipped, err := p.allocation()
	if err != nil {
		return nil, err
	}
	return &Reservation{
		PlanTitle:           strings.TrimSpace(p.PlanTitle),
		Advertiser:          strings.TrimSpace(p.AdvertiserName),
		Agency:              strings.TrimSpace(p.AgencyName),
		Product:             strings.TrimSpace(p.ProductName),
		ChannelName:         strings.TrimSpace(p.ChannelName),
		CodeDefs:            p.codeDefs(),
		Allocation:          alloc,
		SpotCode:            p.SpotCode,
		SpotDurationSec:     p.SpotDurationSec,
		CodeDefinition:      p.CodeDefinition,
		SpotTime:            p.SpotTime,
		Daypart:             schedule.Daypart(p.DtOdt),
		NoteText:            p.NoteText,
		PreparedBy:          p.PreparedBy,
		ChannelPriceDT:      p.ChannelPriceDT,
		ChannelPriceODT:     p.ChannelPriceODT,
		AgencyCommissionPct: p.AgencyCommissionPct,
		SkippedKeys:         skipped,
	}, nil
}

// PayloadOf builds the stored document for a reservation.
func PayloadOf(r *Reservation) Payload {
	p := Payload{
		AgencyName:          r.Agency,
		AdvertiserName:      r.Advertiser,
		ProductName:         r.Product,
		PlanTitle:           r.PlanTitle,
		SpotCode:            r.SpotCode,
		SpotDurationSec:     r.SpotDurationSec,
		CodeDefinition:      r.CodeDefinition,
		CodeDefs:            r.CodeDefs,
		NoteText:            r.NoteText,
		PreparedBy:          r.PreparedBy,
		SpotTime:            r.SpotTime,
		DtOdt:               string(r.Daypart),
		ChannelName:         r.ChannelName,
		ChannelPriceDT:      r.ChannelPriceDT,
		ChannelPriceODT:     r.ChannelPriceODT,
		AgencyCommissionPct: r.AgencyCommissionPct,
		PlanCells:           map[string]string{},
		AdetTotal:           r.Occupied(),
	}
	switch a := r.Allocation.(type) {
	case SingleDate:
		p.PlanDate = a.Date.Format(schedule.DateLayout)
		p.PlanCells = a.Cells.Raw()
	case Spanned:
		p.PlanDate = a.Range.Start.Format(schedule.DateLayout)
		p.IsSpan = true
		p.SpanStart = a.Range.Start.Format(schedule.DateLayout)
		p.SpanEnd = a.Range.End.Format(schedule.DateLayout)
		p.SpanMonthMatrices = map[string]map[string]string{}
		for ym, m := range a.Store().MonthMatrices() {
			p.SpanMonthMatrices[ym.String()] = m.Raw()
		}
	}
	return p
}
