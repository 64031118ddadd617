package realtime

import (
	"encoding/json"

	"github.com/Dosada05/pong-tournaments/models"
)

const (
	TypeHello          = "hello"
	TypeInput          = "input"
	TypeState          = "state"
	TypeGameOver       = "gameover"
	TypeOpponentJoined = "opponent:joined"
	TypeOpponentLeft   = "opponent:left"
	TypeHostHandover   = "tournament:host_handover"
	TypeAborted        = "tournament:aborted"
	TypeUpdated        = "tournament:updated"
)

// Envelope is the part of every live message the server inspects.
type Envelope struct {
	Type string `json:"type"`
}

type HelloMessage struct {
	Type  string          `json:"type"`
	Alias string          `json:"alias"`
	Role  models.RoomSide `json:"role"`
}

// GameOverMessage carries the final score reported by the host.
type GameOverMessage struct {
	Type   string          `json:"type"`
	Detail *GameOverDetail `json:"detail,omitempty"`
}

type GameOverDetail struct {
	HostScore  *int `json:"host_score,omitempty"`
	GuestScore *int `json:"guest_score,omitempty"`
}

type OpponentJoinedMessage struct {
	Type  string          `json:"type"`
	Role  models.RoomSide `json:"role"`
	Alias string          `json:"alias"`
}

type OpponentLeftMessage struct {
	Type string          `json:"type"`
	Role models.RoomSide `json:"role"`
}

type HostHandoverMessage struct {
	Type           string `json:"type"`
	LobbyID        string `json:"lobbyId"`
	PreviousHostID int64  `json:"previousHostId"`
	NewHostID      int64  `json:"newHostId"`
	NewHostAlias   string `json:"newHostAlias"`
}

type AbortedMessage struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	LobbyID string `json:"lobbyId"`
	Message string `json:"message"`
}

type UpdatedMessage struct {
	Type    string             `json:"type"`
	LobbyID string             `json:"lobbyId"`
	Status  models.LobbyStatus `json:"status"`
}

func NewAborted(lobbyID, reason string) AbortedMessage {
	return AbortedMessage{
		Type:    TypeAborted,
		Reason:  reason,
		LobbyID: lobbyID,
		Message: "The tournament was aborted: " + reason + ".",
	}
}

func NewUpdated(lobbyID string, status models.LobbyStatus) UpdatedMessage {
	return UpdatedMessage{Type: TypeUpdated, LobbyID: lobbyID, Status: status}
}

func NewHostHandover(lobbyID string, previous, next int64, alias string) HostHandoverMessage {
	return HostHandoverMessage{
		Type:           TypeHostHandover,
		LobbyID:        lobbyID,
		PreviousHostID: previous,
		NewHostID:      next,
		NewHostAlias:   alias,
	}
}

func decodeType(raw []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}
