package mysql

import (
	"context"
	"database/sql"
	"errors"

	"sheltersearch/internal/domain"
)

// Repo is the durable slug->place id store. cmd/resolver fills it; the API
// preloads the in-process identifier cache from it at boot.
type Repo struct{ db *sql.DB }

var _ domain.IdentifierStore = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Migrate creates the backing table when missing.
func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createTableSQL)
	return err
}

func (r *Repo) UpsertIdentifier(ctx context.Context, slug string, placeID int) error {
	if slug == "" || placeID <= 0 || domain.ExcludedTypeIDs[placeID] {
		return errors.New("mysql: refusing to store invalid identifier")
	}
	_, err := r.db.ExecContext(ctx, upsertIdentifierSQL, slug, placeID)
	return err
}

func (r *Repo) GetIdentifier(ctx context.Context, slug string) (int, bool, error) {
	var id int
	err := r.db.QueryRowContext(ctx, getIdentifierSQL, slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *Repo) AllIdentifiers(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, allIdentifiersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var slug string
		var id int
		if err := rows.Scan(&slug, &id); err != nil {
			return nil, err
		}
		out[slug] = id
	}
	return out, rows.Err()
}
