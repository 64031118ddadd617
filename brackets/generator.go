package brackets

import (
	"context"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
)

// Entrant is a seeded participant: the alias is copied into bracket slots.
type Entrant struct {
	UserID int64
	Alias  string
}

type GenerateBracketParams struct {
	LobbyID  string
	Entrants []Entrant
	Now      time.Time
}

type BracketGenerator interface {
	// GenerateBracket returns the opening round. Later rounds are created by
	// propagation as winners become known.
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.Match, error)

	GetName() string
}

// EntrantsFromParticipants keeps the given order.
func EntrantsFromParticipants(participants []*models.Participant) []Entrant {
	entrants := make([]Entrant, 0, len(participants))
	for _, p := range participants {
		entrants = append(entrants, Entrant{UserID: p.UserID, Alias: p.Alias})
	}
	return entrants
}
