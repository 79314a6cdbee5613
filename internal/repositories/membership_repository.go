package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"timemate/internal/models"
)

// MembershipRepository abstracts session membership persistence.
type MembershipRepository interface {
	ListMemberships(ctx context.Context) ([]models.Membership, error)
	AddMembership(ctx context.Context, sessionID, userID string, role models.Role) error
	RemoveMembership(ctx context.Context, sessionID, userID string) error
}

// MembershipRepo is a sqlx implementation of MembershipRepository.
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

type membershipRow struct {
	SessionID string         `db:"session_id"`
	UserID    string         `db:"user_id"`
	Role      string         `db:"role"`
	ProfileID sql.NullString `db:"profile_id"`
	Nickname  sql.NullString `db:"nickname"`
}

func (row membershipRow) toModel() models.Membership {
	m := models.Membership{
		SessionID: row.SessionID,
		UserID:    row.UserID,
		Role:      models.Role(row.Role),
	}
	if row.ProfileID.Valid {
		var p models.Profile
		if row.Nickname.Valid {
			nick := row.Nickname.String
			p.Nickname = &nick
		}
		m.Profiles = models.OneProfile(p)
	}
	return m
}

// ListMemberships returns every membership joined with the member's nickname,
// in join order.
func (r *MembershipRepo) ListMemberships(ctx context.Context) ([]models.Membership, error) {
	var rows []membershipRow
	err := r.db.SelectContext(ctx, &rows, `SELECT m.session_id, m.user_id, m.role, p.id AS profile_id, p.nickname
        FROM session_members m
        LEFT JOIN profiles p ON p.id = m.user_id
        ORDER BY m.created_at ASC, m.user_id ASC`)
	if err != nil {
		return nil, err
	}

	members := make([]models.Membership, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toModel())
	}
	return members, nil
}

// AddMembership inserts a membership row.
func (r *MembershipRepo) AddMembership(ctx context.Context, sessionID, userID string, role models.Role) error {
	query := r.db.Rebind(`INSERT INTO session_members (session_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, sessionID, userID, string(role), time.Now().UTC())
	return err
}

// RemoveMembership deletes the user's membership. Deleting a missing row is not an error.
func (r *MembershipRepo) RemoveMembership(ctx context.Context, sessionID, userID string) error {
	query := r.db.Rebind(`DELETE FROM session_members WHERE session_id = ? AND user_id = ?`)
	_, err := r.db.ExecContext(ctx, query, sessionID, userID)
	return err
}
