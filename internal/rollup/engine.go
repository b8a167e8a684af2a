// Package rollup combines every confirmed reservation of a plan into one
// per-channel, per-daypart report over a date range.
//
// Every call rescans all reservations of the plan from scratch; nothing
// is cached between calls.  The cost grows with the number of stored
// reservations of a plan, which is the known scalability ceiling of
// this design.
package rollup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/radio-slot-reservation/internal/codes"
	"github.com/iliyamo/radio-slot-reservation/internal/model"
	"github.com/iliyamo/radio-slot-reservation/internal/pricing"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// ReservationFinder returns the stored reservations of a plan.
type ReservationFinder interface {
	FindReservations(ctx context.Context, planTitle string, confirmedOnly bool) ([]*model.Reservation, error)
}

// ChannelLister returns the channel table.
type ChannelLister interface {
	ListChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error)
}

// Engine builds rollups.  It holds no state between calls.
type Engine struct {
	reservations ReservationFinder
	channels     ChannelLister
	prices       pricing.Source
	log          logrus.FieldLogger
}

// NewEngine wires the engine to its collaborators.  A nil logger
// discards engine logs.
func NewEngine(reservations ReservationFinder, channels ChannelLister, prices pricing.Source, log logrus.FieldLogger) *Engine {
	if reservations == nil || channels == nil || prices == nil {
		panic("nil collaborator passed to rollup.NewEngine")
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Engine{reservations: reservations, channels: channels, prices: prices, log: log}
}

type rowKey struct {
	channel string
	daypart schedule.Daypart
}

type rowAcc struct {
	days    []int
	months  []MonthCell
	seconds int
	rates   map[string]decimal.Decimal
}

// channelRef is a channel as it appears in the report: a row of the
// channel table or a free-text name no table row matches.
type channelRef struct {
	key  string
	name string
	id   int64
}

// Rollup aggregates the confirmed reservations titled planTitle over the
// inclusive range [start, end].  Inverted ranges are swapped.
func (e *Engine) Rollup(ctx context.Context, planTitle string, start, end time.Time) (*Result, error) {
	rng := schedule.NewDateSpan(start, end)
	title := strings.TrimSpace(planTitle)

	recs, err := e.reservations.FindReservations(ctx, title, true)
	if err != nil {
		return nil, fmt.Errorf("find reservations: %w", err)
	}
	channels, err := e.channels.ListChannels(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	known := make(map[string]model.Channel, len(channels))
	for _, ch := range channels {
		if _, dup := known[ch.Key()]; !dup {
			known[ch.Key()] = ch
		}
	}

	dates := rng.Days()
	dateIdx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dateIdx[d] = i
	}
	months := rng.Months()
	monthIdx := make(map[schedule.YearMonth]int, len(months))
	for i, ym := range months {
		monthIdx[ym] = i
	}

	stats := Stats{Candidates: len(recs)}
	contributing := intersecting(recs, rng)
	stats.Contributing = len(contributing)

	prices := pricing.NewLookup(e.prices)
	acc := map[rowKey]*rowAcc{}
	unknown := map[string]string{} // key -> first seen display name
	used := map[string]bool{}
	spotLengths := make([]string, 0, len(contributing))

	for _, r := range contributing {
		resolver := r.Resolver()
		chKey := model.ChannelKey(r.ChannelName)
		ch, isKnown := known[chKey]
		if !isKnown {
			if _, ok := unknown[chKey]; !ok {
				unknown[chKey] = strings.TrimSpace(r.ChannelName)
			}
		}
		store := r.Allocation.Store()
		stats.SkippedKeys += r.SkippedKeys
		if r.SkippedKeys > 0 {
			e.log.WithFields(logrus.Fields{
				"reservation_id": r.ID,
				"reservation_no": r.ReservationNo,
				"skipped":        r.SkippedKeys,
			}).Debug("rollup: skipped malformed cell keys")
		}

		usage := map[string]int{}
		for c := range store.Cells(rng) {
			dp := schedule.SlotDaypart(c.Slot)
			dur := resolver.Resolve(c.Code)
			usage[c.Code]++

			k := rowKey{channel: chKey, daypart: dp}
			row := acc[k]
			if row == nil {
				row = &rowAcc{
					days:   make([]int, len(dates)),
					months: make([]MonthCell, len(months)),
					rates:  map[string]decimal.Decimal{},
				}
				acc[k] = row
			}
			mi := monthIdx[schedule.MonthOf(c.Date)]
			row.days[dateIdx[c.Date]]++
			row.months[mi].Count++
			row.months[mi].Seconds += dur
			row.seconds += dur

			rate, ok, err := prices.Get(ctx, r.Advertiser, ch.ID, c.Date.Year(), c.Date.Month(), dp)
			if err != nil {
				return nil, fmt.Errorf("channel prices: %w", err)
			}
			if ok {
				row.rates[rate.String()] = rate
				row.months[mi].Budget = row.months[mi].Budget.Add(rate.Mul(decimal.NewFromInt(int64(dur))))
			}
			used[chKey] = true
			stats.Cells++
		}
		if len(usage) == 0 {
			usage = store.Usage(store.Bounds())
		}
		spotLengths = append(spotLengths, resolver.SpotLength(usage))
	}

	res := &Result{
		PlanTitle: title,
		Start:     rng.Start.Format(schedule.DateLayout),
		End:       rng.End.Format(schedule.DateLayout),
		Header:    buildHeader(contributing, spotLengths),
		Dates:     make([]string, len(dates)),
		Months:    make([]MonthColumn, len(months)),
		Stats:     stats,
	}
	for i, d := range dates {
		res.Dates[i] = d.Format(schedule.DateLayout)
	}
	for i, ym := range months {
		res.Months[i] = monthColumn(ym, rng)
	}

	for _, ch := range reportChannels(channels, unknown, used) {
		for _, dp := range schedule.Dayparts {
			res.Rows = append(res.Rows, buildRow(ch, dp, acc[rowKey{channel: ch.key, daypart: dp}], len(dates), len(months)))
		}
	}
	res.Totals = sumRows(res.Rows, len(dates), len(months))

	e.log.WithFields(logrus.Fields{
		"plan_title":   title,
		"range":        rng.String(),
		"candidates":   stats.Candidates,
		"contributing": stats.Contributing,
		"cells":        stats.Cells,
	}).Debug("rollup: scan complete")
	return res, nil
}

// intersecting keeps the reservations whose span overlaps rng, ordered
// by primary date, number and id so repeated calls visit them in the
// same order.
func intersecting(recs []*model.Reservation, rng schedule.DateSpan) []*model.Reservation {
	out := make([]*model.Reservation, 0, len(recs))
	for _, r := range recs {
		if r == nil || r.Allocation == nil {
			continue
		}
		if r.Allocation.Span().Overlaps(rng) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.PlanDate().Equal(b.PlanDate()) {
			return a.PlanDate().Before(b.PlanDate())
		}
		if a.ReservationNo != b.ReservationNo {
			return a.ReservationNo < b.ReservationNo
		}
		return a.ID < b.ID
	})
	return out
}

// reportChannels lists the channels that get rows: every active channel,
// inactive channels used in range, then used names that match no
// channel at all, sorted by name.  Reservations without a channel name
// land on a row with an empty channel.
func reportChannels(channels []model.Channel, unknown map[string]string, used map[string]bool) []channelRef {
	var out []channelRef
	seen := map[string]bool{}
	for _, ch := range channels {
		k := ch.Key()
		if seen[k] || (!ch.IsActive && !used[k]) {
			continue
		}
		seen[k] = true
		out = append(out, channelRef{key: k, name: ch.Name, id: ch.ID})
	}
	var extra []channelRef
	for k, name := range unknown {
		if used[k] && !seen[k] {
			extra = append(extra, channelRef{key: k, name: name})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].key < extra[j].key })
	return append(out, extra...)
}

func buildRow(ch channelRef, dp schedule.Daypart, acc *rowAcc, nDates, nMonths int) Row {
	row := Row{
		Channel:   ch.name,
		ChannelID: ch.id,
		Daypart:   dp,
		Days:      make([]*int, nDates),
		Months:    make([]MonthCell, nMonths),
		Budget:    decimal.Zero,
	}
	for i := range row.Months {
		row.Months[i].Budget = decimal.Zero
	}
	if acc == nil {
		return row
	}
	for i, n := range acc.days {
		if n > 0 {
			v := n
			row.Days[i] = &v
			row.Count += n
		}
	}
	for i, m := range acc.months {
		row.Months[i] = MonthCell{Count: m.Count, Seconds: m.Seconds, Budget: decimal.Zero.Add(m.Budget)}
		row.Budget = row.Budget.Add(m.Budget)
	}
	row.Seconds = acc.seconds
	row.UnitPrice = unitPriceOf(acc.rates)
	return row
}

func sumRows(rows []Row, nDates, nMonths int) Totals {
	t := Totals{
		Days:   make([]int, nDates),
		Months: make([]MonthCell, nMonths),
		Budget: decimal.Zero,
	}
	for i := range t.Months {
		t.Months[i].Budget = decimal.Zero
	}
	for _, r := range rows {
		for i := range r.Days {
			t.Days[i] += r.DayCount(i)
		}
		for i, m := range r.Months {
			t.Months[i].add(m)
		}
		t.Count += r.Count
		t.Seconds += r.Seconds
		t.Budget = t.Budget.Add(r.Budget)
	}
	return t
}

func buildHeader(recs []*model.Reservation, spotLengths []string) Header {
	var agency, advertiser, product, title, nos []string
	defs := make([][]codes.Def, 0, len(recs))
	for _, r := range recs {
		agency = append(agency, r.Agency)
		advertiser = append(advertiser, r.Advertiser)
		product = append(product, r.Product)
		title = append(title, r.PlanTitle)
		nos = append(nos, r.ReservationNo)
		defs = append(defs, r.CodeDefs)
	}
	sorted := SortReservationNos(nos)
	return Header{
		Agency:         Merge(agency...).String(),
		Advertiser:     Merge(advertiser...).String(),
		Product:        Merge(product...).String(),
		PlanTitle:      Merge(title...).String(),
		ReservationNo:  FormatReservationNos(sorted),
		ReservationNos: sorted,
		SpotLength:     Merge(spotLengths...).String(),
		Codes:          codes.MergeDefs(defs...),
	}
}
