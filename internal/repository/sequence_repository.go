package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
)

// reservationSeqKey is the meta row holding the next reservation sequence.
const reservationSeqKey = "reservation_seq"

// SequenceRepo owns the global reservation counter stored in the meta
// table.  The row holds the value the next confirmation receives.
type SequenceRepo struct {
	db    *sql.DB
	start int64
}

// NewSequenceRepo returns a SequenceRepo.  start is the first value handed
// out when the meta row does not exist yet; values <= 0 fall back to
// model.FirstReservationSeq.
func NewSequenceRepo(db *sql.DB, start int64) *SequenceRepo {
	if start <= 0 {
		start = model.FirstReservationSeq
	}
	return &SequenceRepo{db: db, start: start}
}

// Allocate hands out one sequence value in its own transaction.
func (r *SequenceRepo) Allocate(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	seq, err := r.AllocateTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return seq, nil
}

// AllocateTx reads and increments the counter inside tx.  The meta row is
// locked with SELECT ... FOR UPDATE so concurrent confirmations serialize
// on it and never receive the same value.  The caller commits or rolls
// back; a rollback returns the value to the pool.
func (r *SequenceRepo) AllocateTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	var raw string
	err := tx.QueryRowContext(ctx,
		"SELECT v FROM meta WHERE k = ? FOR UPDATE", reservationSeqKey).Scan(&raw)
	var seq int64
	switch {
	case errors.Is(err, sql.ErrNoRows):
		seq = r.start
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO meta (k, v) VALUES (?, ?)", reservationSeqKey, strconv.FormatInt(seq+1, 10)); err != nil {
			return 0, err
		}
		return seq, nil
	case err != nil:
		return 0, err
	}
	seq, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("meta %s holds %q: %w", reservationSeqKey, raw, err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE meta SET v = ? WHERE k = ?", strconv.FormatInt(seq+1, 10), reservationSeqKey); err != nil {
		return 0, err
	}
	return seq, nil
}
