package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/radio-slot-reservation/internal/model"
)

// deleteChunk bounds the number of ids bound into one DELETE statement.
const deleteChunk = 900

// ReservationRepo stores reservations.  The grid, code definitions and
// descriptive fields live in payload_json; the columns next to it exist
// for lookups (number, advertiser, plan title) and lifecycle state.
// All timestamps are stored in UTC.
type ReservationRepo struct {
	db  *sql.DB
	seq *SequenceRepo
}

// NewReservationRepo returns a ReservationRepo.  seq allocates reservation
// numbers for confirmations.
func NewReservationRepo(db *sql.DB, seq *SequenceRepo) *ReservationRepo {
	return &ReservationRepo{db: db, seq: seq}
}

// ReservationRecord mirrors the reservations table.  Business logic uses
// model.Reservation, built by Decode.
type ReservationRecord struct {
	ID             int64
	ReservationNo  sql.NullString
	AdvertiserName string
	PlanTitle      string
	CreatedAt      time.Time
	IsConfirmed    bool
	PayloadJSON    []byte
}

// Decode interprets the stored payload and copies the row-level columns
// onto the result.
func (rec ReservationRecord) Decode() (*model.Reservation, error) {
	p, err := model.DecodePayload(rec.PayloadJSON)
	if err != nil {
		return nil, err
	}
	r, err := p.Reservation()
	if err != nil {
		return nil, err
	}
	r.ID = rec.ID
	r.ReservationNo = rec.ReservationNo.String
	r.CreatedAt = rec.CreatedAt
	r.Status = model.StatusDraft
	if rec.IsConfirmed {
		r.Status = model.StatusConfirmed
	}
	if r.Advertiser == "" {
		r.Advertiser = rec.AdvertiserName
	}
	return r, nil
}

const reservationCols = "id, reservation_no, advertiser_name, plan_title, created_at, is_confirmed, payload_json"

func scanReservation(sc interface{ Scan(...any) error }) (ReservationRecord, error) {
	var rec ReservationRecord
	err := sc.Scan(&rec.ID, &rec.ReservationNo, &rec.AdvertiserName, &rec.PlanTitle,
		&rec.CreatedAt, &rec.IsConfirmed, &rec.PayloadJSON)
	return rec, err
}

// Create persists r.  When confirmed is true a sequence value is
// allocated, the reservation number is stamped on r and the row is
// inserted in one transaction, so a failed insert never consumes a
// number.  The advertiser is upserted in the same transaction.  On
// success r.ID, r.CreatedAt and r.Status are set.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation, confirmed bool) error {
	now := res.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var number sql.NullString
	if confirmed {
		seq, err := r.seq.AllocateTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("allocate sequence: %w", err)
		}
		number = sql.NullString{String: model.FormatReservationNo(res.Advertiser, now, seq), Valid: true}
	}

	payload, err := model.PayloadOf(res).Encode()
	if err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (reservation_no, advertiser_name, plan_title, created_at, is_confirmed, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		number, res.Advertiser, res.PlanTitle, now, confirmed, payload)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	if err := upsertAdvertiserTx(ctx, tx, res.Advertiser); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	res.ID = id
	res.CreatedAt = now
	res.ReservationNo = number.String
	res.Status = model.StatusDraft
	if confirmed {
		res.Status = model.StatusConfirmed
	}
	return nil
}

// GetByID returns one reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+reservationCols+" FROM reservations WHERE id = ? LIMIT 1", id)
	rec, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Decode()
}

// FindReservations returns the reservations of a plan ordered by id.
// Rows whose payload cannot be interpreted are skipped.
func (r *ReservationRepo) FindReservations(ctx context.Context, planTitle string, confirmedOnly bool) ([]*model.Reservation, error) {
	q := "SELECT " + reservationCols + " FROM reservations WHERE plan_title = ?"
	if confirmedOnly {
		q += " AND is_confirmed = 1"
	}
	q += " ORDER BY id"
	return r.query(ctx, q, strings.TrimSpace(planTitle))
}

// ListByAdvertiser returns the newest reservations of an advertiser.
func (r *ReservationRepo) ListByAdvertiser(ctx context.Context, advertiser string, confirmedOnly bool, limit int) ([]*model.Reservation, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT " + reservationCols + " FROM reservations WHERE advertiser_name = ?"
	if confirmedOnly {
		q += " AND is_confirmed = 1"
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	return r.query(ctx, q, strings.TrimSpace(advertiser), limit)
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]*model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Reservation{}
	for rows.Next() {
		rec, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		res, err := rec.Decode()
		if err != nil {
			continue
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one reservation.  It returns ErrNotFound when no row
// matched.
func (r *ReservationRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByIDs removes the given reservations in one transaction, binding
// at most deleteChunk ids per statement.  It returns the number of rows
// removed.
func (r *ReservationRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
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
	var total int64
	for i := 0; i < len(ids); i += deleteChunk {
		end := min(i+deleteChunk, len(ids))
		chunk := ids[i:end]
		args := make([]any, len(chunk))
		for j, id := range chunk {
			args[j] = id
		}
		q := "DELETE FROM reservations WHERE id IN (?" + strings.Repeat(",?", len(chunk)-1) + ")"
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return total, nil
}

// DeleteByAdvertiserAndSpotCode removes every confirmed reservation of the
// advertiser whose stored spot code equals spotCode.  A blank code
// deletes nothing.
func (r *ReservationRepo) DeleteByAdvertiserAndSpotCode(ctx context.Context, advertiser, spotCode string) (int64, error) {
	spotCode = strings.TrimSpace(spotCode)
	if spotCode == "" {
		return 0, nil
	}
	recs, err := r.ListByAdvertiser(ctx, advertiser, true, 50000)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for _, rec := range recs {
		if strings.TrimSpace(rec.SpotCode) == spotCode {
			ids = append(ids, rec.ID)
		}
	}
	return r.DeleteByIDs(ctx, ids)
}
