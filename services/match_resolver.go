package services

import (
	"github.com/Dosada05/pong-tournaments/models"
)

// CompletionReport is what a client sends to finish a match. Any subset of the
// fields may be set; the resolver decides which one counts.
type CompletionReport struct {
	WinnerSlot *models.Slot     `json:"winner_slot,omitempty"`
	WinnerSide *models.RoomSide `json:"winner_side,omitempty"`
	P1Score    *int             `json:"p1_score,omitempty"`
	P2Score    *int             `json:"p2_score,omitempty"`
	HostScore  *int             `json:"host_score,omitempty"`
	GuestScore *int             `json:"guest_score,omitempty"`
}

// ResolutionEvidence is everything known about a match's outcome.
type ResolutionEvidence struct {
	Match  *models.Match
	Room   *models.GameRoom
	Report CompletionReport
	// StoredScore is the latest score recorded for the room, if any.
	StoredScore *models.GameScore
}

// ResolverStrategy derives a winner from one kind of evidence. ok is false
// when the evidence is missing, points outside the match, or is a tie.
type ResolverStrategy struct {
	Name    string
	Resolve func(ev ResolutionEvidence) (winner int64, ok bool)
}

// DefaultStrategies in priority order.
var DefaultStrategies = []ResolverStrategy{
	{Name: "winner_slot", Resolve: byWinnerSlot},
	{Name: "winner_side", Resolve: byWinnerSide},
	{Name: "slot_scores", Resolve: bySlotScores},
	{Name: "side_scores", Resolve: bySideScores},
	{Name: "stored_score", Resolve: byStoredScore},
}

type MatchResolver struct {
	strategies []ResolverStrategy
}

func NewMatchResolver(strategies ...ResolverStrategy) *MatchResolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &MatchResolver{strategies: strategies}
}

// Resolve returns the winner from the first strategy that yields one.
func (r *MatchResolver) Resolve(ev ResolutionEvidence) (int64, string, error) {
	for _, s := range r.strategies {
		if winner, ok := s.Resolve(ev); ok {
			return winner, s.Name, nil
		}
	}
	return 0, "", ErrWinnerUnresolved
}

func slotUser(m *models.Match, slot models.Slot) (int64, bool) {
	if slot != models.SlotP1 && slot != models.SlotP2 {
		return 0, false
	}
	uid, _ := m.Occupant(slot)
	if uid == nil {
		return 0, false
	}
	return *uid, true
}

// sideUser maps a room side to a user, provided that user plays this match.
func sideUser(ev ResolutionEvidence, side models.RoomSide) (int64, bool) {
	if ev.Room == nil || !side.Valid() {
		return 0, false
	}
	uid := ev.Room.UserAt(side)
	if uid == nil {
		return 0, false
	}
	if _, ok := ev.Match.SlotOf(*uid); !ok {
		return 0, false
	}
	return *uid, true
}

func byWinnerSlot(ev ResolutionEvidence) (int64, bool) {
	if ev.Report.WinnerSlot == nil {
		return 0, false
	}
	return slotUser(ev.Match, *ev.Report.WinnerSlot)
}

func byWinnerSide(ev ResolutionEvidence) (int64, bool) {
	if ev.Report.WinnerSide == nil {
		return 0, false
	}
	return sideUser(ev, *ev.Report.WinnerSide)
}

func bySlotScores(ev ResolutionEvidence) (int64, bool) {
	p1, p2 := ev.Report.P1Score, ev.Report.P2Score
	if p1 == nil || p2 == nil || *p1 == *p2 {
		return 0, false
	}
	if *p1 > *p2 {
		return slotUser(ev.Match, models.SlotP1)
	}
	return slotUser(ev.Match, models.SlotP2)
}

func bySideScores(ev ResolutionEvidence) (int64, bool) {
	host, guest := ev.Report.HostScore, ev.Report.GuestScore
	if host == nil || guest == nil {
		return 0, false
	}
	return higherSide(ev, *host, *guest)
}

func byStoredScore(ev ResolutionEvidence) (int64, bool) {
	if ev.StoredScore == nil {
		return 0, false
	}
	return higherSide(ev, ev.StoredScore.HostScore, ev.StoredScore.GuestScore)
}

func higherSide(ev ResolutionEvidence, host, guest int) (int64, bool) {
	switch {
	case host > guest:
		return sideUser(ev, models.SideHost)
	case guest > host:
		return sideUser(ev, models.SideGuest)
	default:
		return 0, false
	}
}
