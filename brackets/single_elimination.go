package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/Dosada05/pong-tournaments/models"
)

var ErrNotEnoughEntrants = errors.New("not enough entrants to generate a single elimination bracket (minimum 2)")

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// Rounds is ceil(log2 n): rounds are numbered 0..Rounds(n)-1.
func Rounds(n int) int {
	if n < 2 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n))))
}

// BracketSize is the next power of two holding n entrants.
func BracketSize(n int) int {
	return 1 << uint(Rounds(n))
}

// GenerateBracket pairs entrants in order into BracketSize/2 opening matches.
// Full pairs come first; every remaining match holds a single entrant and is
// created finished with that entrant as winner, so no opening match is empty.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*models.Match, error) {
	entrants := params.Entrants
	n := len(entrants)
	if n < 2 {
		return nil, ErrNotEnoughEntrants
	}

	size := BracketSize(n)
	byes := size - n
	fullPairs := size/2 - byes

	matches := make([]*models.Match, 0, size/2)
	next := 0
	for i := 0; i < size/2; i++ {
		m := &models.Match{
			ID:         uuid.NewString(),
			LobbyID:    params.LobbyID,
			Round:      0,
			MatchIndex: i,
			Status:     models.MatchPending,
			CreatedAt:  params.Now,
			UpdatedAt:  params.Now,
		}

		first := entrants[next]
		m.SetOccupant(models.SlotP1, first.UserID, first.Alias)
		next++

		if i < fullPairs {
			second := entrants[next]
			m.SetOccupant(models.SlotP2, second.UserID, second.Alias)
			next++
		} else {
			winner := first.UserID
			m.Status = models.MatchFinished
			m.WinnerUserID = &winner
		}
		matches = append(matches, m)
	}

	if next != n {
		return nil, fmt.Errorf("internal error: seeded %d of %d entrants", next, n)
	}
	return matches, nil
}
