package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
)

// ChannelRepo provides read access to channels and read/write access to
// their monthly rate cards.  Rates are stored per (channel, year, month)
// for the general card (advertiser_name = '') and optionally per
// advertiser as an override.
type ChannelRepo struct {
	db *sql.DB
}

// NewChannelRepo returns a ChannelRepo bound to db.
func NewChannelRepo(db *sql.DB) *ChannelRepo { return &ChannelRepo{db: db} }

// ListChannels returns channels ordered by id.
func (r *ChannelRepo) ListChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error) {
	q := "SELECT id, name, is_active FROM channels"
	if activeOnly {
		q += " WHERE is_active = 1"
	}
	q += " ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Channel{}
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChannelPrices loads a full year of rates.  With a non-empty advertiser
// the advertiser's override rows replace the general rows of the same
// channel-month.
func (r *ChannelRepo) ChannelPrices(ctx context.Context, year int, advertiser string) (model.PriceTable, error) {
	rows, err := r.listPrices(ctx, year, advertiser)
	if err != nil {
		return nil, err
	}
	table := model.PriceTable{}
	for _, p := range rows {
		table[model.PriceKey{ChannelID: p.ChannelID, Month: p.Month}] = model.Rates{DT: p.DTRate, ODT: p.ODTRate}
	}
	return table, nil
}

// ListPrices returns the rate rows of a year as stored, general rows
// first, then the advertiser's overrides.
func (r *ChannelRepo) ListPrices(ctx context.Context, year int, advertiser string) ([]model.ChannelPrice, error) {
	return r.listPrices(ctx, year, advertiser)
}

func (r *ChannelRepo) listPrices(ctx context.Context, year int, advertiser string) ([]model.ChannelPrice, error) {
	advertiser = strings.TrimSpace(advertiser)
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel_id, advertiser_name, month, price_dt, price_odt
		 FROM channel_prices
		 WHERE year = ? AND (advertiser_name = '' OR advertiser_name = ?)
		 ORDER BY advertiser_name <> '', channel_id, month`,
		year, advertiser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ChannelPrice{}
	for rows.Next() {
		p := model.ChannelPrice{Year: year}
		var month int
		if err := rows.Scan(&p.ChannelID, &p.Advertiser, &month, &p.DTRate, &p.ODTRate); err != nil {
			return nil, err
		}
		p.Month = time.Month(month)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertChannelPrice inserts or replaces one rate row.  An unknown channel
// yields ErrNotFound.
func (r *ChannelRepo) UpsertChannelPrice(ctx context.Context, p model.ChannelPrice) error {
	dt := p.DTRate
	odt := p.ODTRate
	if dt.IsNegative() {
		dt = decimal.Zero
	}
	if odt.IsNegative() {
		odt = decimal.Zero
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO channel_prices (channel_id, advertiser_name, year, month, price_dt, price_odt)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE price_dt = VALUES(price_dt), price_odt = VALUES(price_odt)`,
		p.ChannelID, strings.TrimSpace(p.Advertiser), p.Year, int(p.Month), dt, odt)
	if mysqlCode(err) == errNoReferencedRow {
		return ErrNotFound
	}
	return err
}
