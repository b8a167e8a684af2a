// Package pricing resolves per-second unit rates for a channel, month and
// daypart.
package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// Source loads a full year of rates.  When advertiser is non-empty the
// advertiser's overrides are merged over the general rate card.
type Source interface {
	ChannelPrices(ctx context.Context, year int, advertiser string) (model.PriceTable, error)
}

type tableKey struct {
	advertiser string
	year       int
}

// Lookup caches one price table per (advertiser, year) so an aggregation
// pass queries the source at most once per pair.  A Lookup belongs to
// one pass; it is not safe for concurrent use and is never shared
// between passes, so a rate change is visible on the next rollup.
type Lookup struct {
	src    Source
	tables map[tableKey]model.PriceTable
}

// NewLookup returns an empty lookup over src.
func NewLookup(src Source) *Lookup {
	return &Lookup{src: src, tables: map[tableKey]model.PriceTable{}}
}

// Get returns the rate for the channel-month-daypart.  ok is false when
// no positive rate is defined; callers treat that as blank/zero.  An
// error is returned only when the source itself fails.
func (l *Lookup) Get(ctx context.Context, advertiser string, channelID int64, year int, month time.Month, dp schedule.Daypart) (rate decimal.Decimal, ok bool, err error) {
	if channelID <= 0 {
		return decimal.Zero, false, nil
	}
	table, err := l.table(ctx, advertiser, year)
	if err != nil {
		return decimal.Zero, false, err
	}
	rates, found := table[model.PriceKey{ChannelID: channelID, Month: month}]
	if !found {
		return decimal.Zero, false, nil
	}
	r := rates.For(dp)
	if !r.IsPositive() {
		return decimal.Zero, false, nil
	}
	return r, true, nil
}

// Tables reports how many (advertiser, year) tables are cached.
func (l *Lookup) Tables() int { return len(l.tables) }

func (l *Lookup) table(ctx context.Context, advertiser string, year int) (model.PriceTable, error) {
	key := tableKey{advertiser: strings.TrimSpace(advertiser), year: year}
	if t, ok := l.tables[key]; ok {
		return t, nil
	}
	t, err := l.src.ChannelPrices(ctx, year, key.advertiser)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = model.PriceTable{}
	}
	l.tables[key] = t
	return t, nil
}
