package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/radio-slot-reservation/internal/cells"
	"github.com/iliyamo/radio-slot-reservation/internal/codes"
	"github.com/iliyamo/radio-slot-reservation/internal/model"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// fakeStore satisfies ReservationFinder, ChannelLister and pricing.Source
// with function fields so each test sets only what it needs.
type fakeStore struct {
	FindFunc     func(ctx context.Context, planTitle string, confirmedOnly bool) ([]*model.Reservation, error)
	ChannelsFunc func(ctx context.Context, activeOnly bool) ([]model.Channel, error)
	PricesFunc   func(ctx context.Context, year int, advertiser string) (model.PriceTable, error)

	priceCalls int
}

func (f *fakeStore) FindReservations(ctx context.Context, planTitle string, confirmedOnly bool) ([]*model.Reservation, error) {
	if f.FindFunc != nil {
		return f.FindFunc(ctx, planTitle, confirmedOnly)
	}
	return nil, nil
}

func (f *fakeStore) ListChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error) {
	if f.ChannelsFunc != nil {
		return f.ChannelsFunc(ctx, activeOnly)
	}
	return nil, nil
}

func (f *fakeStore) ChannelPrices(ctx context.Context, year int, advertiser string) (model.PriceTable, error) {
	f.priceCalls++
	if f.PricesFunc != nil {
		return f.PricesFunc(ctx, year, advertiser)
	}
	return nil, nil
}

func day(s string) time.Time {
	d, err := schedule.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ym(y int, m time.Month) schedule.YearMonth { return schedule.YearMonth{Year: y, Month: m} }

var kDefs = []codes.Def{{Code: "K", Description: "main spot", DurationSec: 30}}

func defaultChannels() []model.Channel {
	return []model.Channel{
		{ID: 1, Name: "TRT FM", IsActive: true},
		{ID: 2, Name: "RADIOSCOPE", IsActive: true},
		{ID: 3, Name: "POWER FM", IsActive: false},
	}
}

// campaignA is reservation A on 2026-01-05 and reservation B spanning
// 2026-01-28..2026-02-03, both on TRT FM.
func campaignA() []*model.Reservation {
	a := &model.Reservation{
		ID: 1, ReservationNo: "M-2026W02-1000", Status: model.StatusConfirmed,
		PlanTitle: "CAMPAIGN A", Advertiser: "Muratbey", Agency: "Ajans", Product: "Peynir",
		ChannelName: "TRT FM", CodeDefs: kDefs,
		Allocation: model.SingleDate{
			Date:  day("2026-01-05"),
			Cells: cells.Matrix{{Slot: 0, Day: 5}: "K"},
		},
	}
	b := &model.Reservation{
		ID: 2, ReservationNo: "M-2026W05-1001", Status: model.StatusConfirmed,
		PlanTitle: "CAMPAIGN A", Advertiser: "Muratbey", Agency: "Ajans", Product: "Peynir",
		ChannelName: "trt  fm", CodeDefs: kDefs,
		Allocation: model.Spanned{
			Range: schedule.NewDateSpan(day("2026-01-28"), day("2026-02-03")),
			Months: map[schedule.YearMonth]cells.Matrix{
				ym(2026, time.February): {{Slot: 4, Day: 1}: "K"},
			},
		},
	}
	return []*model.Reservation{a, b}
}

func flatPrices(rate int64) func(context.Context, int, string) (model.PriceTable, error) {
	return func(_ context.Context, year int, _ string) (model.PriceTable, error) {
		t := model.PriceTable{}
		for m := time.January; m <= time.December; m++ {
			t[model.PriceKey{ChannelID: 1, Month: m}] = model.Rates{DT: decimal.NewFromInt(rate), ODT: decimal.NewFromInt(rate / 2)}
		}
		return t, nil
	}
}

func findRow(t *testing.T, res *Result, channel string, dp schedule.Daypart) Row {
	t.Helper()
	for _, r := range res.Rows {
		if r.Channel == channel && r.Daypart == dp {
			return r
		}
	}
	t.Fatalf("row %s/%s not found", channel, dp)
	return Row{}
}

func TestRollup_CrossMonthScenario(t *testing.T) {
	fs := &fakeStore{
		FindFunc: func(_ context.Context, planTitle string, confirmedOnly bool) ([]*model.Reservation, error) {
			assert.Equal(t, "CAMPAIGN A", planTitle)
			assert.True(t, confirmedOnly)
			return campaignA(), nil
		},
		ChannelsFunc: func(_ context.Context, activeOnly bool) ([]model.Channel, error) {
			assert.False(t, activeOnly)
			return defaultChannels(), nil
		},
		PricesFunc: flatPrices(10),
	}
	e := NewEngine(fs, fs, fs, nil)

	res, err := e.Rollup(context.Background(), "CAMPAIGN A", day("2026-01-01"), day("2026-02-28"))
	require.NoError(t, err)

	assert.Len(t, res.Dates, 59)
	require.Len(t, res.Months, 2)
	assert.Equal(t, "01/2026", res.Months[0].Label)
	assert.Equal(t, 31, res.Months[0].Days)
	assert.Equal(t, 28, res.Months[1].Days)

	// active channels only, inactive POWER FM unused
	assert.Len(t, res.Rows, 4)

	row := findRow(t, res, "TRT FM", schedule.DT)
	assert.Equal(t, 2, row.Count)
	assert.Equal(t, 60, row.Seconds)
	assert.Equal(t, 1, row.Months[0].Count)
	assert.Equal(t, 1, row.Months[1].Count)
	assert.Equal(t, 30, row.Months[1].Seconds)
	require.NotNil(t, row.Days[4]) // 2026-01-05
	assert.Equal(t, 1, *row.Days[4])
	require.NotNil(t, row.Days[31]) // 2026-02-01
	assert.Nil(t, row.Days[0])
	assert.Equal(t, PriceSingle, row.UnitPrice.Kind)
	assert.True(t, row.Budget.Equal(decimal.NewFromInt(600)))

	odt := findRow(t, res, "TRT FM", schedule.ODT)
	assert.Zero(t, odt.Count)
	assert.Equal(t, PriceBlank, odt.UnitPrice.Kind)

	assert.Equal(t, 2, res.Totals.Count)
	assert.Equal(t, 60, res.Totals.Seconds)
	assert.True(t, res.Totals.Budget.Equal(decimal.NewFromInt(600)))
	assert.Len(t, res.Totals.Days, len(res.Dates))
	assert.Len(t, res.Totals.Months, len(res.Months))

	assert.Equal(t, "Muratbey", res.Header.Advertiser)
	assert.Equal(t, "30", res.Header.SpotLength)
	assert.Equal(t, "ÇOKLU\nM-2026W02-1000\nM-2026W05-1001", res.Header.ReservationNo)
	assert.Equal(t, 2, res.Stats.Contributing)
	assert.Equal(t, 2, res.Stats.Cells)

	// one table per (advertiser, year)
	assert.Equal(t, 1, fs.priceCalls)
}

func TestRollup_SubRangeExcludesOutOfRangeMonths(t *testing.T) {
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return campaignA(), nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
		PricesFunc:   flatPrices(10),
	}
	res, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "CAMPAIGN A", day("2026-01-20"), day("2026-01-31"))
	require.NoError(t, err)

	// B intersects the range but its only cell is in February
	assert.Equal(t, 1, res.Stats.Contributing)
	assert.Equal(t, 0, res.Totals.Count)
	assert.Equal(t, "M-2026W05-1001", res.Header.ReservationNo)
	// header spot length falls back to the whole reservation
	assert.Equal(t, "30", res.Header.SpotLength)
}

func TestRollup_MissingMonthPriceLeavesBlank(t *testing.T) {
	r := &model.Reservation{
		ID: 7, ReservationNo: "M-2026W10-1002", PlanTitle: "SPRING", Advertiser: "Muratbey",
		ChannelName: "TRT FM", CodeDefs: kDefs,
		Allocation: model.SingleDate{
			Date: day("2026-03-02"),
			Cells: cells.Matrix{
				{Slot: 0, Day: 2}: "K",
				{Slot: 1, Day: 2}: "K",
			},
		},
	}
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return []*model.Reservation{r}, nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
		PricesFunc: func(context.Context, int, string) (model.PriceTable, error) {
			return model.PriceTable{
				{ChannelID: 1, Month: time.January}: {DT: decimal.NewFromInt(10)},
			}, nil
		},
	}
	res, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "SPRING", day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)

	row := findRow(t, res, "TRT FM", schedule.DT)
	assert.Equal(t, 2, row.Count)
	assert.Equal(t, 60, row.Seconds)
	assert.Equal(t, 2, row.Months[0].Count)
	assert.Equal(t, PriceBlank, row.UnitPrice.Kind)
	assert.True(t, row.Budget.IsZero())
	assert.True(t, row.Months[0].Budget.IsZero())

	raw, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"unit_price":""`)
}

func TestRollup_VaryingRatesCollapseToMultiple(t *testing.T) {
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return campaignA(), nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
		PricesFunc: func(context.Context, int, string) (model.PriceTable, error) {
			return model.PriceTable{
				{ChannelID: 1, Month: time.January}:  {DT: decimal.NewFromInt(10)},
				{ChannelID: 1, Month: time.February}: {DT: decimal.RequireFromString("12.5")},
			}, nil
		},
	}
	res, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "CAMPAIGN A", day("2026-01-01"), day("2026-02-28"))
	require.NoError(t, err)

	row := findRow(t, res, "TRT FM", schedule.DT)
	assert.Equal(t, PriceMultiple, row.UnitPrice.Kind)
	assert.True(t, row.Months[0].Budget.Equal(decimal.NewFromInt(300)))
	assert.True(t, row.Months[1].Budget.Equal(decimal.NewFromInt(375)))
	assert.True(t, row.Budget.Equal(decimal.NewFromInt(675)))

	raw, err := json.Marshal(row.UnitPrice)
	require.NoError(t, err)
	assert.Equal(t, `"ÇOKLU"`, string(raw))
}

func TestRollup_Idempotent(t *testing.T) {
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return campaignA(), nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
		PricesFunc:   flatPrices(10),
	}
	e := NewEngine(fs, fs, fs, nil)
	ctx := context.Background()

	first, err := e.Rollup(ctx, "CAMPAIGN A", day("2026-01-01"), day("2026-02-28"))
	require.NoError(t, err)
	a, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := e.Rollup(ctx, "CAMPAIGN A", day("2026-02-28"), day("2026-01-01"))
		require.NoError(t, err)
		b, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

func TestRollup_ConservesOccupiedCells(t *testing.T) {
	recs := campaignA()
	recs = append(recs, &model.Reservation{
		ID: 3, ReservationNo: "S-2026W05-1003", PlanTitle: "CAMPAIGN A", Advertiser: "Sütaş",
		ChannelName: "RADIOSCOPE",
		CodeDefs:    []codes.Def{{Code: "A", DurationSec: 20}, {Code: "B", DurationSec: 40}},
		Allocation: model.Spanned{
			Range: schedule.NewDateSpan(day("2026-01-30"), day("2026-02-02")),
			Months: map[schedule.YearMonth]cells.Matrix{
				ym(2026, time.January):  {{Slot: 0, Day: 30}: "A", {Slot: 20, Day: 31}: "B", {Slot: 3, Day: 29}: "A"},
				ym(2026, time.February): {{Slot: 51, Day: 1}: "B", {Slot: 12, Day: 2}: "B"},
			},
		},
	})
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return recs, nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
	}
	rng := schedule.NewDateSpan(day("2026-01-01"), day("2026-02-28"))
	res, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "CAMPAIGN A", rng.Start, rng.End)
	require.NoError(t, err)

	for i, d := range rng.Days() {
		want := 0
		for _, r := range recs {
			st := r.Allocation.Store()
			want += st.Count(schedule.SingleDay(d))
		}
		got := 0
		for _, row := range res.Rows {
			got += row.DayCount(i)
		}
		assert.Equal(t, want, got, d.Format(schedule.DateLayout))
		assert.Equal(t, want, res.Totals.Days[i])
	}
	// 2026-01-29 lies outside the span of reservation 3
	assert.Equal(t, 6, res.Totals.Count)
	assert.Equal(t, "ÇOKLU", res.Header.Advertiser)
	assert.Equal(t, "ÇOKLU", res.Header.SpotLength)
}

func TestRollup_UsedInactiveAndUnknownChannelsGetRows(t *testing.T) {
	recs := []*model.Reservation{
		{
			ID: 1, PlanTitle: "P", Advertiser: "X", ChannelName: "power fm", CodeDefs: kDefs,
			Allocation: model.SingleDate{Date: day("2026-01-05"), Cells: cells.Matrix{{Slot: 30, Day: 5}: "K"}},
		},
		{
			ID: 2, PlanTitle: "P", Advertiser: "X", ChannelName: "Kiss FM", CodeDefs: kDefs,
			Allocation: model.SingleDate{Date: day("2026-01-05"), Cells: cells.Matrix{{Slot: 0, Day: 5}: "K"}},
		},
	}
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return recs, nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
	}
	res, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "P", day("2026-01-01"), day("2026-01-31"))
	require.NoError(t, err)

	var names []string
	for _, r := range res.Rows {
		if r.Daypart == schedule.DT {
			names = append(names, r.Channel)
		}
	}
	assert.Equal(t, []string{"TRT FM", "RADIOSCOPE", "POWER FM", "Kiss FM"}, names)
	assert.Equal(t, 1, findRow(t, res, "POWER FM", schedule.ODT).Count)
	assert.Zero(t, findRow(t, res, "Kiss FM", schedule.DT).ChannelID)
	// only the channel with a table row reaches the price source
	assert.Equal(t, 1, fs.priceCalls)
}

func TestRollup_BlankChannelKeepsItsCells(t *testing.T) {
	recs := campaignA()
	recs = append(recs, &model.Reservation{
		ID: 9, PlanTitle: "CAMPAIGN A", Advertiser: "Muratbey", ChannelName: "  ", CodeDefs: kDefs,
		Allocation: model.SingleDate{Date: day("2026-01-06"), Cells: cells.Matrix{{Slot: 1, Day: 6}: "K"}},
	})
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return recs, nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
	}
	res, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "CAMPAIGN A", day("2026-01-01"), day("2026-02-28"))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Totals.Count)
	blank := findRow(t, res, "", schedule.DT)
	assert.Equal(t, 1, blank.Count)
	assert.Equal(t, PriceBlank, blank.UnitPrice.Kind)
}

func TestRollup_SingleDateCountsOnlyItsPlanDate(t *testing.T) {
	recs := []*model.Reservation{{
		ID: 4, ReservationNo: "M-2026W02-1004", PlanTitle: "P", Advertiser: "X", ChannelName: "TRT FM", CodeDefs: kDefs,
		Allocation: model.SingleDate{
			Date:  day("2026-01-05"),
			Cells: cells.Matrix{{Slot: 0, Day: 5}: "K", {Slot: 0, Day: 20}: "K"},
		},
	}}
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return recs, nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
	}
	e := NewEngine(fs, fs, fs, nil)

	cases := []struct {
		name       string
		start, end string
		count      int
	}{
		{"whole month", "2026-01-01", "2026-01-31", 1},
		{"plan date", "2026-01-05", "2026-01-05", 1},
		{"other day only", "2026-01-20", "2026-01-20", 0},
		{"after plan date", "2026-01-06", "2026-01-31", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.Rollup(context.Background(), "P", day(tc.start), day(tc.end))
			require.NoError(t, err)
			assert.Equal(t, tc.count, res.Totals.Count)
		})
	}

	res, err := e.Rollup(context.Background(), "P", day("2026-01-01"), day("2026-01-31"))
	require.NoError(t, err)
	row := findRow(t, res, "TRT FM", schedule.DT)
	require.NotNil(t, row.Days[4])
	assert.Equal(t, 1, *row.Days[4])
	assert.Nil(t, row.Days[19])
	assert.Equal(t, 1, recs[0].Occupied())
}

func TestRollup_HeaderIgnoresPlaceholders(t *testing.T) {
	recs := campaignA()
	recs[1].Agency = model.MultipleMarker
	recs[1].Product = ""
	fs := &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return recs, nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
	}
	res, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "CAMPAIGN A", day("2026-01-01"), day("2026-02-28"))
	require.NoError(t, err)
	assert.Equal(t, "Ajans", res.Header.Agency)
	assert.Equal(t, "Peynir", res.Header.Product)
	assert.Equal(t, []codes.Def{{Code: "K", Description: "main spot", DurationSec: 30}}, res.Header.Codes)
}

func TestRollup_EmptyPlan(t *testing.T) {
	fs := &fakeStore{
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
	}
	res, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "NOTHING", day("2026-01-01"), day("2026-01-07"))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 4)
	assert.Zero(t, res.Totals.Count)
	assert.True(t, res.Totals.Budget.IsZero())
	assert.Equal(t, "", res.Header.ReservationNo)
	assert.Empty(t, res.Header.ReservationNos)
}

func TestRollup_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	fs := &fakeStore{
		FindFunc: func(context.Context, string, bool) ([]*model.Reservation, error) { return nil, boom },
	}
	_, err := NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "X", day("2026-01-01"), day("2026-01-02"))
	assert.ErrorIs(t, err, boom)

	fs = &fakeStore{
		FindFunc:     func(context.Context, string, bool) ([]*model.Reservation, error) { return campaignA(), nil },
		ChannelsFunc: func(context.Context, bool) ([]model.Channel, error) { return defaultChannels(), nil },
		PricesFunc:   func(context.Context, int, string) (model.PriceTable, error) { return nil, boom },
	}
	_, err = NewEngine(fs, fs, fs, nil).Rollup(context.Background(), "X", day("2026-01-01"), day("2026-01-31"))
	assert.ErrorIs(t, err, boom)
}
