// Package roster derives the session feed shown to a user from a snapshot of
// session and membership rows. Nothing here talks to the store; every value is
// recomputed from the snapshot it is given.
package roster

import (
	"errors"
	"sort"
	"time"

	"timemate/internal/models"
)

// SortMode orders the visible sessions.
type SortMode string

const (
	SortSoon   SortMode = "soon"
	SortLate   SortMode = "late"
	SortNewest SortMode = "newest"
)

// PurposeAll disables purpose filtering.
const PurposeAll = "all"

var ErrInvalidSortMode = errors.New("invalid sort mode")

// ParseSortMode maps a query value to a SortMode. Empty means SortSoon.
func ParseSortMode(value string) (SortMode, error) {
	switch SortMode(value) {
	case "", SortSoon:
		return SortSoon, nil
	case SortLate:
		return SortLate, nil
	case SortNewest:
		return SortNewest, nil
	}
	return "", ErrInvalidSortMode
}

// Filter holds the user-selected feed criteria.
type Filter struct {
	MineOnly bool
	Purpose  string
	Sort     SortMode
}

// Snapshot is the last fetch of sessions and memberships as seen by Viewer.
// An empty Viewer means nobody is signed in.
type Snapshot struct {
	Sessions    []models.Session
	Memberships []models.Membership
	Viewer      string
	FetchedAt   time.Time
}

// WithViewer returns a copy of the snapshot seen by another user.
func (s Snapshot) WithViewer(userID string) Snapshot {
	s.Viewer = userID
	return s
}

// Session looks up a fetched session by id.
func (s Snapshot) Session(sessionID string) (models.Session, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == sessionID {
			return sess, true
		}
	}
	return models.Session{}, false
}

// MemberCount counts membership rows for the session.
func (s Snapshot) MemberCount(sessionID string) int {
	count := 0
	for _, m := range s.Memberships {
		if m.SessionID == sessionID {
			count++
		}
	}
	return count
}

// IsJoined reports whether the viewer holds a membership in the session.
func (s Snapshot) IsJoined(sessionID string) bool {
	return s.hasMember(sessionID, s.Viewer)
}

func (s Snapshot) hasMember(sessionID, userID string) bool {
	if userID == "" {
		return false
	}
	for _, m := range s.Memberships {
		if m.SessionID == sessionID && m.UserID == userID {
			return true
		}
	}
	return false
}

// DisplayName resolves the nickname attached to a membership.
func DisplayName(m models.Membership) string {
	if nick, ok := m.Profiles.Nickname(); ok {
		return nick
	}
	return models.AnonymousName
}

// Roster lists the session's members with the host first. The sort is stable,
// so non-host members keep fetch order.
func (s Snapshot) Roster(sessionID string) []models.RosterEntry {
	entries := make([]models.RosterEntry, 0)
	for _, m := range s.Memberships {
		if m.SessionID != sessionID {
			continue
		}
		entries = append(entries, models.RosterEntry{
			SessionID:   m.SessionID,
			UserID:      m.UserID,
			Role:        m.Role,
			DisplayName: DisplayName(m),
			IsViewer:    s.Viewer != "" && m.UserID == s.Viewer,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Role == models.RoleHost && entries[j].Role != models.RoleHost
	})
	return entries
}

// Purposes returns the distinct purposes of the fetched sessions, sorted.
func (s Snapshot) Purposes() []string {
	seen := make(map[string]struct{}, len(s.Sessions))
	out := make([]string, 0, len(s.Sessions))
	for _, sess := range s.Sessions {
		if _, ok := seen[sess.Purpose]; ok {
			continue
		}
		seen[sess.Purpose] = struct{}{}
		out = append(out, sess.Purpose)
	}
	sort.Strings(out)
	return out
}

// Visible filters and orders the sessions for the viewer.
func (s Snapshot) Visible(f Filter) []models.VisibleSession {
	filtered := make([]models.Session, 0, len(s.Sessions))
	for _, sess := range s.Sessions {
		if sess.Status != models.StatusOpen {
			continue
		}
		if !s.FetchedAt.IsZero() && sess.EndAt.Before(s.FetchedAt) {
			continue
		}
		if f.MineOnly && !s.IsJoined(sess.ID) {
			continue
		}
		if f.Purpose != "" && f.Purpose != PurposeAll && sess.Purpose != f.Purpose {
			continue
		}
		filtered = append(filtered, sess)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		switch f.Sort {
		case SortNewest:
			return a.CreatedAt.After(b.CreatedAt)
		case SortLate:
			return a.StartAt.After(b.StartAt)
		default:
			return a.StartAt.Before(b.StartAt)
		}
	})

	out := make([]models.VisibleSession, 0, len(filtered))
	for _, sess := range filtered {
		out = append(out, models.VisibleSession{
			Session:     sess,
			MemberCount: s.MemberCount(sess.ID),
			Joined:      s.IsJoined(sess.ID),
			IsHost:      s.Viewer != "" && s.Viewer == sess.HostID,
			Members:     s.Roster(sess.ID),
		})
	}
	return out
}
