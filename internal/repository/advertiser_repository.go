package repository

import (
	"context"
	"database/sql"
	"strings"
)

// AdvertiserRepo maintains the advertisers lookup table used for
// autocomplete.  Names are unique; confirming a reservation for a known
// name leaves the table unchanged.
type AdvertiserRepo struct{ DB *sql.DB }

func NewAdvertiserRepo(db *sql.DB) *AdvertiserRepo { return &AdvertiserRepo{DB: db} }

// Search returns up to limit names containing q, ordered by name.  A blank
// query returns an empty list without touching the database.
func (r *AdvertiserRepo) Search(ctx context.Context, q string, limit int) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT name FROM advertisers WHERE name LIKE ? ORDER BY name LIMIT ?",
		"%"+escapeLike(q)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func upsertAdvertiserTx(ctx context.Context, tx *sql.Tx, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, "INSERT IGNORE INTO advertisers (name) VALUES (?)", name)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
