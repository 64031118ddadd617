package models

import "time"

// Participant is a (lobby, user) membership. Alias is fixed at join time.
type Participant struct {
	LobbyID  string    `json:"lobby_id" db:"lobby_id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	Alias    string    `json:"alias" db:"alias"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// AliasMode selects where a participant's alias comes from.
type AliasMode string

const (
	AliasDisplayName AliasMode = "display_name"
	AliasCustom      AliasMode = "custom"
)

const MaxAliasLength = 32
