package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"timemate/internal/models"
	"timemate/internal/observability"
	"timemate/internal/repositories"
	"timemate/internal/roster"
)

// Page size bounds for the open session fetch.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

var tracer = otel.Tracer("timemate/internal/services")

// SessionConfig tunes the session workflow.
type SessionConfig struct {
	PageSize int
	Location *time.Location
}

// SessionService runs the session feed workflow against the record store.
// Checks are made against the caller's snapshot, not against the store, so two
// concurrent joins can both pass the capacity check.
type SessionService struct {
	sessions repositories.SessionRepository
	members  repositories.MembershipRepository
	pageSize int
	loc      *time.Location
	now      func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions repositories.SessionRepository, members repositories.MembershipRepository, cfg SessionConfig) *SessionService {
	pageSize := cfg.PageSize
	if pageSize < DefaultPageSize {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &SessionService{
		sessions: sessions,
		members:  members,
		pageSize: pageSize,
		loc:      loc,
		now:      time.Now,
	}
}

// CreateInput is the raw form input for a new session.
type CreateInput struct {
	Title     string `json:"title"`
	Purpose   string `json:"purpose"`
	PlaceText string `json:"place_text"`
	StartAt   string `json:"start_at"`
	EndAt     string `json:"end_at"`
	Capacity  int    `json:"capacity"`
}

// Load fetches open sessions and all memberships as seen by viewer.
func (s *SessionService) Load(ctx context.Context, viewer string) (roster.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "sessions.Load")
	defer span.End()

	now := s.now()
	sessions, err := s.sessions.ListOpenSessions(ctx, now, s.pageSize)
	if err != nil {
		return roster.Snapshot{}, fail(span, remote("list sessions", err))
	}
	members, err := s.members.ListMemberships(ctx)
	if err != nil {
		return roster.Snapshot{}, fail(span, remote("list memberships", err))
	}

	span.SetAttributes(attribute.Int("sessions.count", len(sessions)), attribute.Int("memberships.count", len(members)))
	return roster.Snapshot{
		Sessions:    sessions,
		Memberships: members,
		Viewer:      viewer,
		FetchedAt:   now,
	}, nil
}

// Create validates the input, writes the session and then the host membership.
// When only the first write succeeds the session stays in place and a
// *HostMembershipError is returned with the reloaded snapshot.
func (s *SessionService) Create(ctx context.Context, snap roster.Snapshot, in CreateInput) (models.Session, roster.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "sessions.Create")
	defer span.End()

	draft, err := s.validateCreate(snap.Viewer, in)
	if err != nil {
		observability.IncSessionOp("create", "rejected")
		return models.Session{}, snap, fail(span, err)
	}

	created, err := s.sessions.CreateSession(ctx, draft)
	if err != nil {
		observability.IncSessionOp("create", "error")
		return models.Session{}, snap, fail(span, remote("create session", err))
	}
	span.SetAttributes(attribute.String("session.id", created.ID))

	var warning error
	if err := s.members.AddMembership(ctx, created.ID, snap.Viewer, models.RoleHost); err != nil {
		logrus.WithError(err).WithField("session_id", created.ID).Warn("session created without host membership")
		observability.IncSessionOp("create", "partial")
		warning = &HostMembershipError{Session: created, Err: err}
	} else {
		observability.IncSessionOp("create", "ok")
	}
	s.publish(ctx, "created", created.ID, snap.Viewer)

	fresh, err := s.Load(ctx, snap.Viewer)
	if err != nil {
		if warning != nil {
			logrus.WithError(err).Warn("reload after partial create failed")
			return created, snap, fail(span, warning)
		}
		return created, snap, fail(span, err)
	}
	if warning != nil {
		return created, fresh, fail(span, warning)
	}
	return created, fresh, nil
}

func (s *SessionService) validateCreate(viewer string, in CreateInput) (models.NewSession, error) {
	if viewer == "" {
		return models.NewSession{}, ErrNotSignedIn
	}
	start, err := parseInstant(in.StartAt, s.loc)
	if err != nil {
		return models.NewSession{}, ErrInvalidStart
	}
	end, err := parseInstant(in.EndAt, s.loc)
	if err != nil {
		return models.NewSession{}, ErrInvalidEnd
	}
	if !end.After(start) {
		return models.NewSession{}, ErrEndBeforeStart
	}
	if in.Capacity < models.MinCapacity || in.Capacity > models.MaxCapacity {
		return models.NewSession{}, ErrCapacityRange
	}

	title := strings.TrimSpace(in.Title)
	purpose := strings.TrimSpace(in.Purpose)
	place := strings.TrimSpace(in.PlaceText)
	switch {
	case title == "":
		return models.NewSession{}, ErrTitleRequired
	case purpose == "":
		return models.NewSession{}, ErrPurposeRequired
	case place == "":
		return models.NewSession{}, ErrPlaceRequired
	}

	return models.NewSession{
		HostID:    viewer,
		Title:     title,
		Purpose:   purpose,
		StartAt:   start.UTC(),
		EndAt:     end.UTC(),
		PlaceText: place,
		Capacity:  in.Capacity,
		Status:    models.StatusOpen,
	}, nil
}

// Join adds the viewer as a member of the session.
func (s *SessionService) Join(ctx context.Context, snap roster.Snapshot, sessionID string) (roster.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "sessions.Join", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if snap.Viewer == "" {
		observability.IncSessionOp("join", "rejected")
		return snap, fail(span, ErrNotSignedIn)
	}
	sess, ok := snap.Session(sessionID)
	if !ok {
		observability.IncSessionOp("join", "rejected")
		return snap, fail(span, ErrSessionNotFound)
	}
	if snap.IsJoined(sessionID) {
		observability.IncSessionOp("join", "rejected")
		return snap, fail(span, ErrAlreadyJoined)
	}
	if snap.MemberCount(sessionID) >= sess.Capacity {
		observability.IncSessionOp("join", "rejected")
		return snap, fail(span, ErrSessionFull)
	}

	if err := s.members.AddMembership(ctx, sessionID, snap.Viewer, models.RoleMember); err != nil {
		observability.IncSessionOp("join", "error")
		return snap, fail(span, remote("join session", err))
	}
	observability.IncSessionOp("join", "ok")
	s.publish(ctx, "joined", sessionID, snap.Viewer)

	return s.reload(ctx, span, snap)
}

// Leave removes the viewer's membership from the session.
func (s *SessionService) Leave(ctx context.Context, snap roster.Snapshot, sessionID string) (roster.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "sessions.Leave", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if snap.Viewer == "" {
		observability.IncSessionOp("leave", "rejected")
		return snap, fail(span, ErrNotSignedIn)
	}
	if err := s.members.RemoveMembership(ctx, sessionID, snap.Viewer); err != nil {
		observability.IncSessionOp("leave", "error")
		return snap, fail(span, remote("leave session", err))
	}
	observability.IncSessionOp("leave", "ok")
	s.publish(ctx, "left", sessionID, snap.Viewer)

	return s.reload(ctx, span, snap)
}

// Close marks the session closed. The update is guarded by the viewer's id as
// host, so the store leaves the row untouched for anyone else.
func (s *SessionService) Close(ctx context.Context, snap roster.Snapshot, sessionID string) (roster.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "sessions.Close", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if snap.Viewer == "" {
		observability.IncSessionOp("close", "rejected")
		return snap, fail(span, ErrNotSignedIn)
	}
	if sess, ok := snap.Session(sessionID); ok && sess.HostID != snap.Viewer {
		observability.IncSessionOp("close", "rejected")
		return snap, fail(span, ErrNotHost)
	}

	affected, err := s.sessions.CloseSession(ctx, sessionID, snap.Viewer)
	if err != nil {
		observability.IncSessionOp("close", "error")
		return snap, fail(span, remote("close session", err))
	}
	if affected == 0 {
		logrus.WithFields(logrus.Fields{"session_id": sessionID, "user_id": snap.Viewer}).Warn("close matched no rows")
		observability.IncSessionOp("close", "noop")
	} else {
		observability.IncSessionOp("close", "ok")
		s.publish(ctx, "closed", sessionID, snap.Viewer)
	}

	return s.reload(ctx, span, snap)
}

// reload fetches fresh state after a write. On failure the caller keeps snap.
func (s *SessionService) reload(ctx context.Context, span trace.Span, snap roster.Snapshot) (roster.Snapshot, error) {
	fresh, err := s.Load(ctx, snap.Viewer)
	if err != nil {
		return snap, fail(span, err)
	}
	return fresh, nil
}

func (s *SessionService) publish(ctx context.Context, event, sessionID, userID string) {
	envelope := observability.EventEnvelope{
		EventType: "session_events",
		EventName: event,
		Payload: map[string]interface{}{
			"session_id": sessionID,
			"user_id":    userID,
		},
	}
	if err := observability.PublishEvent(ctx, "session_events."+event, envelope, observability.HeadersFromContext(ctx)); err != nil {
		logrus.WithError(err).WithField("event", event).Warn("session event publish failed")
	}
}

var instantLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// parseInstant accepts RFC3339 or a datetime-local value read in loc.
func parseInstant(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t, nil
	}
	for _, layout := range instantLayouts {
		if parsed, perr := time.ParseInLocation(layout, value, loc); perr == nil {
			return parsed, nil
		}
	}
	return time.Time{}, err
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
