package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/radio-slot-reservation/internal/cells"
	"github.com/iliyamo/radio-slot-reservation/internal/codes"
	"github.com/iliyamo/radio-slot-reservation/internal/metrics"
	"github.com/iliyamo/radio-slot-reservation/internal/model"
	"github.com/iliyamo/radio-slot-reservation/internal/queue"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// ReservationStore is the persistence collaborator of the lifecycle.
// Create with confirmed=true must allocate the sequence number and insert
// the row atomically and stamp ReservationNo on the reservation.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation, confirmed bool) error
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	Delete(ctx context.Context, id int64) error
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	ListByAdvertiser(ctx context.Context, advertiser string, confirmedOnly bool, limit int) ([]*model.Reservation, error)
	DeleteByAdvertiserAndSpotCode(ctx context.Context, advertiser, spotCode string) (int64, error)
}

// AdvertiserSearcher backs advertiser autocomplete.
type AdvertiserSearcher interface {
	Search(ctx context.Context, q string, limit int) ([]string, error)
}

// ReservationService validates drafts, confirms them into numbered
// reservations and serves the stored grids back.
type ReservationService struct {
	store       ReservationStore
	advertisers AdvertiserSearcher
	events      EventPublisher
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewReservationService wires the service.  events and m may be nil.
func NewReservationService(store ReservationStore, advertisers AdvertiserSearcher, events EventPublisher, m *metrics.Metrics, log logrus.FieldLogger) *ReservationService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ReservationService{
		store:       store,
		advertisers: advertisers,
		events:      events,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

// Confirm validates the draft, persists it with a freshly allocated
// reservation number and publishes reservation.confirmed.  Validation
// failures return a *ValidationError before anything is written.  A
// failed publish is logged; the reservation stays confirmed.
func (s *ReservationService) Confirm(ctx context.Context, d model.Draft, assign model.CellAssignments) (*model.Reservation, error) {
	now := s.now()
	r, err := s.build(d, assign, now)
	if err != nil {
		s.metrics.Confirmed("invalid")
		return nil, err
	}
	r.CreatedAt = now.UTC()
	if err := s.store.Create(ctx, r, true); err != nil {
		s.metrics.Confirmed("error")
		return nil, fmt.Errorf("store reservation: %w", err)
	}
	s.metrics.Confirmed("ok")

	ev := confirmedEvent(r)
	perr := s.events.PublishReservationConfirmed(ctx, ev)
	s.metrics.Published(queue.ReservationConfirmedQueue, perr)
	fields := logrus.Fields{
		"reservation_id": r.ID,
		"reservation_no": r.ReservationNo,
		"advertiser":     r.Advertiser,
		"plan_title":     r.PlanTitle,
		"cells":          ev.Cells,
	}
	if perr != nil {
		s.log.WithFields(fields).WithError(perr).Warn("reservation confirmed but event publish failed")
	} else {
		s.log.WithFields(fields).Info("reservation confirmed")
	}
	return r, nil
}

// Preview builds the reservation exactly as Confirm would but neither
// allocates a number nor persists anything.  ReservationNo stays empty.
func (s *ReservationService) Preview(_ context.Context, d model.Draft, assign model.CellAssignments) (*model.Reservation, error) {
	now := s.now()
	r, err := s.build(d, assign, now)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = now.UTC()
	return r, nil
}

// MonthGrid is the stored grid of one calendar month.
type MonthGrid struct {
	Month string            `json:"month"` // YYYY-MM
	Cells map[string]string `json:"cells"` // "row,day" -> code
}

// CellMatrix is a reservation's grid split per calendar month.
type CellMatrix struct {
	ReservationID int64       `json:"reservation_id"`
	ReservationNo string      `json:"reservation_no"`
	SpanStart     string      `json:"span_start"`
	SpanEnd       string      `json:"span_end"`
	Spanned       bool        `json:"is_span"`
	Months        []MonthGrid `json:"months"`
	Codes         []codes.Def `json:"codes"`
}

// GetCellMatrix returns the per-month sparse grids of a reservation for
// re-rendering.
func (s *ReservationService) GetCellMatrix(ctx context.Context, id int64) (*CellMatrix, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &CellMatrix{
		ReservationID: r.ID,
		ReservationNo: r.ReservationNo,
		Months:        []MonthGrid{},
		Codes:         r.Resolver().Defs(),
	}
	if r.Allocation == nil {
		return out, nil
	}
	span := r.Allocation.Span()
	out.SpanStart = span.Start.Format(schedule.DateLayout)
	out.SpanEnd = span.End.Format(schedule.DateLayout)
	_, out.Spanned = r.Allocation.(model.Spanned)

	st := r.Allocation.Store()
	for _, ym := range st.Months() {
		out.Months = append(out.Months, MonthGrid{Month: ym.String(), Cells: st.MonthMatrix(ym).Raw()})
	}
	return out, nil
}

// Delete removes a reservation.
func (s *ReservationService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("reservation_id", id).Info("reservation deleted")
	return nil
}

// maxBulkDelete caps the ids accepted by DeleteMany in one call.
const maxBulkDelete = 10000

// DeleteMany removes the given reservations in one transaction and
// reports how many rows were removed.  Duplicate and non-positive ids are
// dropped.
func (s *ReservationService) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	seen := make(map[int64]bool, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return 0, invalid("ids", "at least one positive id required")
	}
	if len(uniq) > maxBulkDelete {
		return 0, invalid("ids", fmt.Sprintf("at most %d ids per call", maxBulkDelete))
	}
	n, err := s.store.DeleteByIDs(ctx, uniq)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"requested": len(uniq), "deleted": n}).Info("reservations deleted")
	return n, nil
}

// DeleteBySpotCode removes every confirmed reservation of the advertiser
// booked under spotCode and reports how many were removed.
func (s *ReservationService) DeleteBySpotCode(ctx context.Context, advertiser, spotCode string) (int64, error) {
	advertiser = strings.TrimSpace(advertiser)
	if advertiser == "" {
		return 0, invalid("advertiser_name", "required")
	}
	if strings.TrimSpace(spotCode) == "" {
		return 0, invalid("spot_code", "required")
	}
	n, err := s.store.DeleteByAdvertiserAndSpotCode(ctx, advertiser, spotCode)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"advertiser": advertiser, "spot_code": spotCode, "deleted": n}).Info("reservations deleted by spot code")
	return n, nil
}

// ListByAdvertiser returns the newest reservations of an advertiser.
func (s *ReservationService) ListByAdvertiser(ctx context.Context, advertiser string, confirmedOnly bool, limit int) ([]*model.Reservation, error) {
	advertiser = strings.TrimSpace(advertiser)
	if advertiser == "" {
		return nil, invalid("advertiser_name", "required")
	}
	return s.store.ListByAdvertiser(ctx, advertiser, confirmedOnly, limit)
}

// SearchAdvertisers returns advertiser names containing q.
func (s *ReservationService) SearchAdvertisers(ctx context.Context, q string, limit int) ([]string, error) {
	return s.advertisers.Search(ctx, q, limit)
}

// build validates d and turns it into a reservation.
func (s *ReservationService) build(d model.Draft, assign model.CellAssignments, now time.Time) (*model.Reservation, error) {
	advertiser := strings.TrimSpace(d.AdvertiserName)
	if advertiser == "" {
		return nil, invalid("advertiser_name", "required")
	}
	title := strings.TrimSpace(d.PlanTitle)
	if title == "" {
		return nil, invalid("plan_title", "required")
	}
	if d.PlanDate.IsZero() {
		return nil, invalid("plan_date", "must be a valid calendar date")
	}
	if d.AgencyCommissionPct < 0 || d.AgencyCommissionPct > 100 {
		return nil, invalid("agency_commission_pct", "must be between 0 and 100")
	}
	if d.ChannelPriceDT.IsNegative() || d.ChannelPriceODT.IsNegative() {
		return nil, invalid("channel_price", "must not be negative")
	}

	alloc, skipped, err := allocationOf(d, assign)
	if err != nil {
		return nil, err
	}

	defs := codeDefsOf(d)
	spotCode := strings.TrimSpace(d.SpotCode)
	spotDur := d.SpotDurationSec
	switch {
	case len(defs) > 1:
		spotCode = model.MultipleMarker
		spotDur = 0
	case len(defs) == 1 && spotCode == "":
		spotCode = defs[0].Code
		spotDur = defs[0].DurationSec
	}

	r := &model.Reservation{
		Status:              model.StatusDraft,
		PlanTitle:           title,
		Advertiser:          advertiser,
		Agency:              strings.TrimSpace(d.AgencyName),
		Product:             strings.TrimSpace(d.ProductName),
		ChannelName:         strings.TrimSpace(d.ChannelName),
		CodeDefs:            defs,
		Allocation:          alloc,
		SpotCode:            spotCode,
		SpotDurationSec:     spotDur,
		CodeDefinition:      strings.TrimSpace(d.CodeDefinition),
		NoteText:            strings.TrimSpace(d.NoteText),
		PreparedBy:          PreparedByStamp(d.PreparedByName, now),
		ChannelPriceDT:      d.ChannelPriceDT,
		ChannelPriceODT:     d.ChannelPriceODT,
		AgencyCommissionPct: d.AgencyCommissionPct,
		SkippedKeys:         skipped,
	}
	if d.SpotTime > 0 {
		r.SpotTime = d.SpotTime.String()
		r.Daypart = schedule.Classify(d.SpotTime)
	}
	return r, nil
}

// PreparedByStamp renders "Name - dd.mm.yyyy hh:mm", or only the
// timestamp when name is blank.
func PreparedByStamp(name string, now time.Time) string {
	stamp := now.Format("02.01.2006 15:04")
	if name = strings.TrimSpace(name); name != "" {
		return name + " - " + stamp
	}
	return stamp
}

// codeDefsOf returns the draft's definitions with the first occurrence of
// each code kept.  A draft without a list falls back to its single spot
// code.
func codeDefsOf(d model.Draft) []codes.Def {
	defs := d.CodeDefs
	if len(defs) == 0 {
		code := strings.TrimSpace(d.SpotCode)
		if code == "" || model.IsPlaceholder(code) {
			return nil
		}
		defs = []codes.Def{{Code: code, Description: strings.TrimSpace(d.CodeDefinition), DurationSec: d.SpotDurationSec}}
	}
	return codes.NewResolver(defs).Defs()
}

// allocationOf sanitizes the submitted grid.  A draft with a span becomes
// a Spanned allocation built from MonthCells (PlanCells stand in for the
// first month when no per-month grid was sent); otherwise PlanCells form
// the plan-date month grid.  Keys that cannot be parsed are dropped and
// counted.
func allocationOf(d model.Draft, assign model.CellAssignments) (model.Allocation, int, error) {
	planDate := schedule.Date(d.PlanDate)
	if d.Span == nil {
		m, skipped := cells.FromRaw(assign.PlanCells)
		return model.SingleDate{Date: planDate, Cells: m}, skipped, nil
	}

	span := schedule.NewDateSpan(d.Span.Start, d.Span.End)
	months := map[schedule.YearMonth]cells.Matrix{}
	skipped := 0
	keys := make([]string, 0, len(assign.MonthCells))
	for k := range assign.MonthCells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ym, err := schedule.ParseYearMonth(k)
		if err != nil {
			return nil, 0, invalid("month_cells", fmt.Sprintf("invalid month key %q", k))
		}
		m, n := cells.FromRaw(assign.MonthCells[k])
		skipped += n
		months[ym] = m
	}
	if len(months) == 0 && len(assign.PlanCells) > 0 {
		m, n := cells.FromRaw(assign.PlanCells)
		skipped += n
		months[schedule.MonthOf(span.Start)] = m
	}
	return model.Spanned{Range: span, Months: months}, skipped, nil
}

func confirmedEvent(r *model.Reservation) queue.ReservationConfirmedEvent {
	ev := queue.ReservationConfirmedEvent{
		EventID:       uuid.NewString(),
		ReservationID: r.ID,
		ReservationNo: r.ReservationNo,
		Advertiser:    r.Advertiser,
		Agency:        r.Agency,
		PlanTitle:     r.PlanTitle,
		Channel:       r.ChannelName,
		Cells:         r.Occupied(),
		PreparedBy:    r.PreparedBy,
		ConfirmedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.Allocation != nil {
		span := r.Allocation.Span()
		ev.SpanStart = span.Start.Format(schedule.DateLayout)
		ev.SpanEnd = span.End.Format(schedule.DateLayout)
	}
	for _, d := range r.CodeDefs {
		ev.Codes = append(ev.Codes, d.Code)
	}
	return ev
}
