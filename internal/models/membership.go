package models

// Role is a member's role within a session.
type Role string

const (
	RoleHost   Role = "host"
	RoleMember Role = "member"
)

// Membership joins a user to a session.
type Membership struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Role      Role       `json:"role"`
	Profiles  ProfileRef `json:"profiles"`
}

// RosterEntry is a display-ready member of a session.
type RosterEntry struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	IsViewer    bool   `json:"is_viewer"`
}
