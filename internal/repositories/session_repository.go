package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"timemate/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository abstracts session persistence.
type SessionRepository interface {
	ListOpenSessions(ctx context.Context, now time.Time, limit int) ([]models.Session, error)
	CreateSession(ctx context.Context, s models.NewSession) (models.Session, error)
	CloseSession(ctx context.Context, sessionID, hostID string) (int64, error)
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

const sessionColumns = `id, host_id, title, purpose, start_at, end_at, place_text, capacity, status, created_at`

// ListOpenSessions returns open sessions that have not ended, soonest first.
func (r *SessionRepo) ListOpenSessions(ctx context.Context, now time.Time, limit int) ([]models.Session, error) {
	sessions := []models.Session{}
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE status = ? AND end_at >= ? ORDER BY start_at ASC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &sessions, query, string(models.StatusOpen), now.UTC(), limit); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession inserts a session and returns the stored row.
func (r *SessionRepo) CreateSession(ctx context.Context, s models.NewSession) (models.Session, error) {
	status := s.Status
	if status == "" {
		status = models.StatusOpen
	}
	sess := models.Session{
		ID:        uuid.NewString(),
		HostID:    s.HostID,
		Title:     s.Title,
		Purpose:   s.Purpose,
		StartAt:   s.StartAt.UTC(),
		EndAt:     s.EndAt.UTC(),
		PlaceText: s.PlaceText,
		Capacity:  s.Capacity,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}

	query := r.db.Rebind(`INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		sess.ID, sess.HostID, sess.Title, sess.Purpose, sess.StartAt, sess.EndAt,
		sess.PlaceText, sess.Capacity, string(sess.Status), sess.CreatedAt)
	if err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// CloseSession marks the session closed when hostID matches its host.
// A mismatched host affects zero rows.
func (r *SessionRepo) CloseSession(ctx context.Context, sessionID, hostID string) (int64, error) {
	query := r.db.Rebind(`UPDATE sessions SET status = ? WHERE id = ? AND host_id = ?`)
	res, err := r.db.ExecContext(ctx, query, string(models.StatusClosed), sessionID, hostID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetSession fetches a single session regardless of status.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var sess models.Session
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`)
	err := r.db.GetContext(ctx, &sess, query, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	return sess, err
}
