package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/radio-slot-reservation/internal/normalize"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// Channel mirrors the channels table.
type Channel struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Key is the normalized name used to match reservations to channels.
func (c Channel) Key() string { return ChannelKey(c.Name) }

// ChannelKey normalizes a free-text channel name.
func ChannelKey(name string) string { return normalize.Key(name) }

// ChannelPrice is the per-second rate card of a channel for one month.
// Advertiser is empty for the general rate card and set for an
// advertiser-specific override.
type ChannelPrice struct {
	ChannelID  int64           `json:"channel_id"`
	Advertiser string          `json:"advertiser,omitempty"`
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	DTRate     decimal.Decimal `json:"dt_rate"`
	ODTRate    decimal.Decimal `json:"odt_rate"`
}

// PriceKey addresses one row of a yearly price table.
type PriceKey struct {
	ChannelID int64
	Month     time.Month
}

// Rates holds the DT and ODT rate of one channel-month.
type Rates struct {
	DT  decimal.Decimal
	ODT decimal.Decimal
}

// For returns the rate of the given daypart.
func (r Rates) For(dp schedule.Daypart) decimal.Decimal {
	if dp == schedule.DT {
		return r.DT
	}
	return r.ODT
}

// PriceTable is a full year of rates, as returned by the repository.
type PriceTable map[PriceKey]Rates
