package model

import (
	"time"

	"github.com/google/uuid"
)

// HypeType is the flavour of anticipation a user registers for a listing.
type HypeType string

const (
	HypeGoing   HypeType = "GOING"
	HypeWaiting HypeType = "WAITING"
	HypeMaybe   HypeType = "MAYBE"
)

// Valid reports whether t is one of the known hype types.
func (t HypeType) Valid() bool {
	switch t {
	case HypeGoing, HypeWaiting, HypeMaybe:
		return true
	}
	return false
}

// UserHype is one user's vote on one server. A user has at most one vote per
// server; re-voting replaces the previous type.
type UserHype struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	UserID    uuid.UUID `json:"user_id"    db:"user_id"`
	ServerID  uuid.UUID `json:"server_id"  db:"server_id"`
	Type      HypeType  `json:"hype_type"  db:"hype_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HypeCounts aggregates votes per type for one server.
type HypeCounts struct {
	Going   int `json:"going"`
	Waiting int `json:"waiting"`
	Maybe   int `json:"maybe"`
	Total   int `json:"total"`
}
