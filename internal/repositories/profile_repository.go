package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// ProfileRepository stores public user profiles.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, userID, nickname string) error
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// UpsertProfile writes the nickname, replacing an existing one.
func (r *ProfileRepo) UpsertProfile(ctx context.Context, userID, nickname string) error {
	query := r.db.Rebind(`INSERT INTO profiles (id, nickname, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET nickname = excluded.nickname, updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, query, userID, nickname, time.Now().UTC())
	return err
}
