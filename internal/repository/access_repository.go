package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
)

// AccessRepo reads channel reach figures (erişim).  Each channel_access
// row holds the share of the audience a channel reaches during an hour
// window such as "07-10".  The value is displayed as is; nothing in the
// service computes with it.
type AccessRepo struct {
	db *sql.DB
}

func NewAccessRepo(db *sql.DB) *AccessRepo { return &AccessRepo{db: db} }

// AccessRatio returns the most recently recorded ratio for the channel and
// window, or nil when none was recorded.
func (r *AccessRepo) AccessRatio(ctx context.Context, channel, window string) (*float64, error) {
	var ratio sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT ratio FROM channel_access
		 WHERE channel_key = ? AND hour_window = ?
		 ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		model.ChannelKey(channel), strings.TrimSpace(window)).Scan(&ratio)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ratio.Valid {
		return nil, nil
	}
	v := ratio.Float64
	return &v, nil
}
