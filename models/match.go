package models

import "time"

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchActive   MatchStatus = "active"
	MatchFinished MatchStatus = "finished"
)

// Slot names one side of a bracket cell.
type Slot string

const (
	SlotP1 Slot = "p1"
	SlotP2 Slot = "p2"
)

// Match is one bracket cell. A match with a single populated slot in round 0
// is a BYE and is stored already finished.
type Match struct {
	ID           string      `json:"id" db:"id"`
	LobbyID      string      `json:"lobby_id" db:"lobby_id"`
	Round        int         `json:"round" db:"round"`
	MatchIndex   int         `json:"match_index" db:"match_index"`
	P1UserID     *int64      `json:"p1_user_id" db:"p1_user_id"`
	P1Alias      *string     `json:"p1_alias" db:"p1_alias"`
	P2UserID     *int64      `json:"p2_user_id" db:"p2_user_id"`
	P2Alias      *string     `json:"p2_alias" db:"p2_alias"`
	RoomID       *string     `json:"room_id" db:"room_id"`
	Status       MatchStatus `json:"status" db:"status"`
	WinnerUserID *int64      `json:"winner_user_id" db:"winner_user_id"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// Resolved reports whether the match has a determined winner.
func (m *Match) Resolved() bool {
	return m.Status == MatchFinished && m.WinnerUserID != nil
}

// IsBye reports whether exactly one slot is populated.
func (m *Match) IsBye() bool {
	return (m.P1UserID == nil) != (m.P2UserID == nil)
}

// Ready reports whether both slots are populated.
func (m *Match) Ready() bool {
	return m.P1UserID != nil && m.P2UserID != nil
}

// SlotOf returns which slot userID occupies.
func (m *Match) SlotOf(userID int64) (Slot, bool) {
	switch {
	case m.P1UserID != nil && *m.P1UserID == userID:
		return SlotP1, true
	case m.P2UserID != nil && *m.P2UserID == userID:
		return SlotP2, true
	}
	return "", false
}

// Occupant returns the user and alias in slot.
func (m *Match) Occupant(slot Slot) (*int64, *string) {
	if slot == SlotP1 {
		return m.P1UserID, m.P1Alias
	}
	return m.P2UserID, m.P2Alias
}

// SetOccupant fills slot.
func (m *Match) SetOccupant(slot Slot, userID int64, alias string) {
	if slot == SlotP1 {
		m.P1UserID, m.P1Alias = &userID, &alias
		return
	}
	m.P2UserID, m.P2Alias = &userID, &alias
}

// AliasOf returns the alias stored next to userID in this match.
func (m *Match) AliasOf(userID int64) string {
	slot, ok := m.SlotOf(userID)
	if !ok {
		return ""
	}
	_, alias := m.Occupant(slot)
	if alias == nil {
		return ""
	}
	return *alias
}
