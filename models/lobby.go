package models

import "time"

// LobbyStatus mirrors the lobbies.status column.
type LobbyStatus string

const (
	LobbyWaiting   LobbyStatus = "waiting"
	LobbyStarted   LobbyStatus = "started"
	LobbyCancelled LobbyStatus = "cancelled"
	LobbyFinished  LobbyStatus = "finished"
)

const (
	MinLobbySize = 3
	MaxLobbySize = 8
)

// Active reports whether the lobby can still change hands or be reaped.
func (s LobbyStatus) Active() bool {
	return s == LobbyWaiting || s == LobbyStarted
}

// Terminal reports whether no further transition is possible.
func (s LobbyStatus) Terminal() bool {
	return s == LobbyCancelled || s == LobbyFinished
}

// CanTransitionTo encodes the only legal moves:
// waiting -> started -> finished, and waiting|started -> cancelled.
func (s LobbyStatus) CanTransitionTo(next LobbyStatus) bool {
	switch next {
	case LobbyStarted:
		return s == LobbyWaiting
	case LobbyFinished:
		return s == LobbyStarted
	case LobbyCancelled:
		return s.Active()
	default:
		return false
	}
}

// Lobby is one tournament instance: waiting room plus bracket.
type Lobby struct {
	ID             string      `json:"id" db:"id"`
	HostID         int64       `json:"host_id" db:"host_id"`
	Size           int         `json:"size" db:"size"`
	SeatsTaken     int         `json:"seats_taken" db:"seats_taken"`
	Status         LobbyStatus `json:"status" db:"status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	StartedAt      *time.Time  `json:"started_at,omitempty" db:"started_at"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty" db:"finished_at"`
	LastActivityAt time.Time   `json:"last_activity_at" db:"last_activity_at"`
	HostChangedAt  *time.Time  `json:"host_changed_at,omitempty" db:"host_changed_at"`
}
