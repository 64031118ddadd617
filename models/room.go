package models

import "time"

// RoomStatus mirrors game_rooms.status.
type RoomStatus string

const (
	RoomPending  RoomStatus = "pending"
	RoomActive   RoomStatus = "active"
	RoomFinished RoomStatus = "finished"
)

// RoomSide is one side of a 1v1 game. The host runs the physics.
type RoomSide string

const (
	SideHost  RoomSide = "host"
	SideGuest RoomSide = "guest"
)

// Valid reports whether s is host or guest.
func (s RoomSide) Valid() bool {
	return s == SideHost || s == SideGuest
}

// Other returns the opposite side.
func (s RoomSide) Other() RoomSide {
	if s == SideHost {
		return SideGuest
	}
	return SideHost
}

// GameRoom pairs a host and a guest for a single game.
type GameRoom struct {
	ID         string     `json:"id" db:"id"`
	HostID     int64      `json:"host_id" db:"host_id"`
	GuestID    *int64     `json:"guest_id,omitempty" db:"guest_id"`
	Status     RoomStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// UserAt maps a side to a user id.
func (r *GameRoom) UserAt(side RoomSide) *int64 {
	if side == SideHost {
		id := r.HostID
		return &id
	}
	return r.GuestID
}

// GameScore is one reported final score for a room.
type GameScore struct {
	ID         string    `json:"id" db:"id"`
	RoomID     string    `json:"room_id" db:"room_id"`
	HostScore  int       `json:"host_score" db:"host_score"`
	GuestScore int       `json:"guest_score" db:"guest_score"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
