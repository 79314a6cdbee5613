package models

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusOpen   SessionStatus = "open"
	StatusClosed SessionStatus = "closed"
)

// Capacity bounds accepted when a session is created.
const (
	MinCapacity = 2
	MaxCapacity = 6
)

// Session represents a scheduled meetup with a time window and capacity.
type Session struct {
	ID        string        `db:"id" json:"id"`
	HostID    string        `db:"host_id" json:"host_id"`
	Title     string        `db:"title" json:"title"`
	Purpose   string        `db:"purpose" json:"purpose"`
	StartAt   time.Time     `db:"start_at" json:"start_at"`
	EndAt     time.Time     `db:"end_at" json:"end_at"`
	PlaceText string        `db:"place_text" json:"place_text"`
	Capacity  int           `db:"capacity" json:"capacity"`
	Status    SessionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// NewSession carries the fields written when a session is inserted.
type NewSession struct {
	HostID    string        `json:"host_id"`
	Title     string        `json:"title"`
	Purpose   string        `json:"purpose"`
	StartAt   time.Time     `json:"start_at"`
	EndAt     time.Time     `json:"end_at"`
	PlaceText string        `json:"place_text"`
	Capacity  int           `json:"capacity"`
	Status    SessionStatus `json:"status"`
}

// VisibleSession is a session augmented with the viewer's derived state.
type VisibleSession struct {
	Session
	MemberCount int           `json:"member_count"`
	Joined      bool          `json:"joined"`
	IsHost      bool          `json:"is_host"`
	Members     []RosterEntry `json:"members"`
}
