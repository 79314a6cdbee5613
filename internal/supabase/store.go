package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"timemate/internal/models"
	"timemate/internal/repositories"
)

// Store reads and writes the session tables through PostgREST. Requests carry
// the caller's access token from the context.
type Store struct {
	client *Client
}

// NewStore constructs a Store.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

var (
	_ repositories.SessionRepository    = (*Store)(nil)
	_ repositories.MembershipRepository = (*Store)(nil)
	_ repositories.ProfileRepository    = (*Store)(nil)
)

// ListOpenSessions returns open sessions that have not ended, soonest first.
func (s *Store) ListOpenSessions(ctx context.Context, now time.Time, limit int) ([]models.Session, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("status", "eq."+string(models.StatusOpen))
	params.Set("end_at", "gte."+now.UTC().Format(time.RFC3339Nano))
	params.Set("order", "start_at.asc")
	params.Set("limit", strconv.Itoa(limit))

	sessions := []models.Session{}
	req := request{method: http.MethodGet, path: "/rest/v1/sessions?" + params.Encode(), token: AccessTokenFromContext(ctx)}
	if err := s.client.do(ctx, req, &sessions); err != nil {
		return nil, fmt.Errorf("supabase.ListOpenSessions: %w", err)
	}
	return sessions, nil
}

// CreateSession inserts a session and returns the stored row.
func (s *Store) CreateSession(ctx context.Context, in models.NewSession) (models.Session, error) {
	if in.Status == "" {
		in.Status = models.StatusOpen
	}
	var rows []models.Session
	req := request{
		method:  http.MethodPost,
		path:    "/rest/v1/sessions",
		token:   AccessTokenFromContext(ctx),
		body:    in,
		headers: map[string]string{"Prefer": "return=representation"},
	}
	if err := s.client.do(ctx, req, &rows); err != nil {
		return models.Session{}, fmt.Errorf("supabase.CreateSession: %w", err)
	}
	if len(rows) == 0 {
		return models.Session{}, fmt.Errorf("supabase.CreateSession: no row returned")
	}
	return rows[0], nil
}

// CloseSession sets status=closed on the row matching both id and host.
func (s *Store) CloseSession(ctx context.Context, sessionID, hostID string) (int64, error) {
	params := url.Values{}
	params.Set("id", "eq."+sessionID)
	params.Set("host_id", "eq."+hostID)
	params.Set("select", "id")

	var rows []struct {
		ID string `json:"id"`
	}
	req := request{
		method:  http.MethodPatch,
		path:    "/rest/v1/sessions?" + params.Encode(),
		token:   AccessTokenFromContext(ctx),
		body:    map[string]string{"status": string(models.StatusClosed)},
		headers: map[string]string{"Prefer": "return=representation"},
	}
	if err := s.client.do(ctx, req, &rows); err != nil {
		return 0, fmt.Errorf("supabase.CloseSession: %w", err)
	}
	return int64(len(rows)), nil
}

// ListMemberships returns every membership with the member's nickname.
func (s *Store) ListMemberships(ctx context.Context) ([]models.Membership, error) {
	params := url.Values{}
	params.Set("select", "session_id,user_id,role,profiles(nickname)")

	members := []models.Membership{}
	req := request{method: http.MethodGet, path: "/rest/v1/session_members?" + params.Encode(), token: AccessTokenFromContext(ctx)}
	if err := s.client.do(ctx, req, &members); err != nil {
		return nil, fmt.Errorf("supabase.ListMemberships: %w", err)
	}
	return members, nil
}

type membershipInsert struct {
	SessionID string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role"`
}

// AddMembership inserts a membership row.
func (s *Store) AddMembership(ctx context.Context, sessionID, userID string, role models.Role) error {
	req := request{
		method: http.MethodPost,
		path:   "/rest/v1/session_members",
		token:  AccessTokenFromContext(ctx),
		body:   membershipInsert{SessionID: sessionID, UserID: userID, Role: role},
	}
	if err := s.client.do(ctx, req, nil); err != nil {
		return fmt.Errorf("supabase.AddMembership: %w", err)
	}
	return nil
}

// RemoveMembership deletes the (session, user) membership.
func (s *Store) RemoveMembership(ctx context.Context, sessionID, userID string) error {
	params := url.Values{}
	params.Set("session_id", "eq."+sessionID)
	params.Set("user_id", "eq."+userID)

	req := request{method: http.MethodDelete, path: "/rest/v1/session_members?" + params.Encode(), token: AccessTokenFromContext(ctx)}
	if err := s.client.do(ctx, req, nil); err != nil {
		return fmt.Errorf("supabase.RemoveMembership: %w", err)
	}
	return nil
}

// UpsertProfile writes the nickname for the user, merging on id.
func (s *Store) UpsertProfile(ctx context.Context, userID, nickname string) error {
	req := request{
		method:  http.MethodPost,
		path:    "/rest/v1/profiles?on_conflict=id",
		token:   AccessTokenFromContext(ctx),
		body:    map[string]string{"id": userID, "nickname": nickname},
		headers: map[string]string{"Prefer": "resolution=merge-duplicates"},
	}
	if err := s.client.do(ctx, req, nil); err != nil {
		return fmt.Errorf("supabase.UpsertProfile: %w", err)
	}
	return nil
}
