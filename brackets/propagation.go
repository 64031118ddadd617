package brackets

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/pong-tournaments/models"
)

var ErrSlotConflict = errors.New("bracket slot already holds a different entrant")

type cell struct {
	round int
	index int
}

// Advancement is one write produced by Propagate: Slot of Match now holds
// UserID. Created is set when Match did not exist before.
type Advancement struct {
	Match   *models.Match
	Created bool
	Slot    models.Slot
	UserID  int64
	Alias   string
}

// Bracket is an in-memory view of one lobby's matches.
type Bracket struct {
	lobbyID string
	rounds  int
	cells   map[cell]*models.Match
}

func NewBracket(lobbyID string, entrants int, matches []*models.Match) *Bracket {
	b := &Bracket{
		lobbyID: lobbyID,
		rounds:  Rounds(entrants),
		cells:   make(map[cell]*models.Match, len(matches)),
	}
	for _, m := range matches {
		b.cells[cell{m.Round, m.MatchIndex}] = m
	}
	return b
}

func (b *Bracket) FinalRound() int {
	return b.rounds - 1
}

func (b *Bracket) Get(round, index int) *models.Match {
	return b.cells[cell{round, index}]
}

// Final returns the single match of the last round, or nil before it exists.
func (b *Bracket) Final() *models.Match {
	return b.Get(b.FinalRound(), 0)
}

// Champion reports the winner once the final is resolved.
func (b *Bracket) Champion() (int64, bool) {
	final := b.Final()
	if final == nil || !final.Resolved() {
		return 0, false
	}
	return *final.WinnerUserID, true
}

// Matches returns every known match ordered by round then index.
func (b *Bracket) Matches() []*models.Match {
	out := make([]*models.Match, 0, len(b.cells))
	for _, m := range b.cells {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].MatchIndex < out[j].MatchIndex
	})
	return out
}

// ByRound groups matches by round for snapshots.
func (b *Bracket) ByRound() [][]*models.Match {
	rounds := make([][]*models.Match, b.rounds)
	for i := range rounds {
		rounds[i] = make([]*models.Match, 0)
	}
	for _, m := range b.Matches() {
		if m.Round < len(rounds) {
			rounds[m.Round] = append(rounds[m.Round], m)
		}
	}
	return rounds
}

// Propagate advances winners into their next-round slots. The worklist starts
// from the given matches, or from every match when none are given. Each item
// advances one round up, so the loop ends after at most FinalRound steps per
// entrant. A bracket that is already propagated yields no writes.
func (b *Bracket) Propagate(at time.Time, from ...*models.Match) ([]Advancement, error) {
	worklist := from
	if len(worklist) == 0 {
		worklist = b.Matches()
	}

	var writes []Advancement
	for len(worklist) > 0 {
		m := worklist[0]
		worklist = worklist[1:]

		if !m.Resolved() || m.Round >= b.FinalRound() {
			continue
		}

		winner := *m.WinnerUserID
		alias := m.AliasOf(winner)
		slot := models.SlotP1
		if m.MatchIndex%2 == 1 {
			slot = models.SlotP2
		}

		key := cell{m.Round + 1, m.MatchIndex / 2}
		next, exists := b.cells[key]
		if !exists {
			next = &models.Match{
				ID:         uuid.NewString(),
				LobbyID:    b.lobbyID,
				Round:      key.round,
				MatchIndex: key.index,
				Status:     models.MatchPending,
				CreatedAt:  at,
				UpdatedAt:  at,
			}
			b.cells[key] = next
		}

		if occupant, _ := next.Occupant(slot); occupant != nil {
			if *occupant == winner {
				continue
			}
			return writes, fmt.Errorf("%w: round %d match %d slot %s", ErrSlotConflict, key.round, key.index, slot)
		}

		next.SetOccupant(slot, winner, alias)
		next.UpdatedAt = at
		writes = append(writes, Advancement{
			Match:   next,
			Created: !exists,
			Slot:    slot,
			UserID:  winner,
			Alias:   alias,
		})

		if next.Resolved() {
			worklist = append(worklist, next)
		}
	}
	return writes, nil
}
