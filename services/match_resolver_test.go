package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dosada05/pong-tournaments/models"
)

func TestMatchResolver_Resolve(t *testing.T) {
	p1, p2 := int64(10), int64(20)
	a, b := "ten", "twenty"
	match := &models.Match{P1UserID: &p1, P1Alias: &a, P2UserID: &p2, P2Alias: &b}
	// The room was acquired by the p2 player, who hosts here.
	room := &models.GameRoom{ID: "r", HostID: p2, GuestID: &p1}

	intp := func(v int) *int { return &v }
	slot := func(s models.Slot) *models.Slot { return &s }
	side := func(s models.RoomSide) *models.RoomSide { return &s }

	tests := []struct {
		name     string
		ev       ResolutionEvidence
		winner   int64
		strategy string
		wantErr  bool
	}{
		{
			name:     "winner slot",
			ev:       ResolutionEvidence{Report: CompletionReport{WinnerSlot: slot(models.SlotP2)}},
			winner:   p2,
			strategy: "winner_slot",
		},
		{
			name:     "winner slot beats scores",
			ev:       ResolutionEvidence{Report: CompletionReport{WinnerSlot: slot(models.SlotP1), P1Score: intp(1), P2Score: intp(9)}},
			winner:   p1,
			strategy: "winner_slot",
		},
		{
			name:     "unknown slot falls through",
			ev:       ResolutionEvidence{Report: CompletionReport{WinnerSlot: slot("p3"), P1Score: intp(2), P2Score: intp(1)}},
			winner:   p1,
			strategy: "slot_scores",
		},
		{
			name:     "winner side maps through room",
			ev:       ResolutionEvidence{Room: room, Report: CompletionReport{WinnerSide: side(models.SideHost)}},
			winner:   p2,
			strategy: "winner_side",
		},
		{
			name:    "winner side without room",
			ev:      ResolutionEvidence{Report: CompletionReport{WinnerSide: side(models.SideGuest)}},
			wantErr: true,
		},
		{
			name:     "slot scores",
			ev:       ResolutionEvidence{Report: CompletionReport{P1Score: intp(4), P2Score: intp(11)}},
			winner:   p2,
			strategy: "slot_scores",
		},
		{
			name:     "side scores",
			ev:       ResolutionEvidence{Room: room, Report: CompletionReport{HostScore: intp(2), GuestScore: intp(11)}},
			winner:   p1,
			strategy: "side_scores",
		},
		{
			name:     "tied report falls back to stored score",
			ev:       ResolutionEvidence{Room: room, Report: CompletionReport{HostScore: intp(3), GuestScore: intp(3)}, StoredScore: &models.GameScore{HostScore: 11, GuestScore: 7}},
			winner:   p2,
			strategy: "stored_score",
		},
		{
			name:    "stranger in room",
			ev:      ResolutionEvidence{Room: &models.GameRoom{HostID: 99}, Report: CompletionReport{WinnerSide: side(models.SideHost)}},
			wantErr: true,
		},
		{
			name:    "nothing to go on",
			ev:      ResolutionEvidence{},
			wantErr: true,
		},
	}

	resolver := NewMatchResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ev.Match = match
			winner, strategy, err := resolver.Resolve(tt.ev)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrWinnerUnresolved)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.winner, winner)
			assert.Equal(t, tt.strategy, strategy)
		})
	}
}

func TestMatchResolver_CustomStrategies(t *testing.T) {
	p1, p2 := int64(1), int64(2)
	match := &models.Match{P1UserID: &p1, P2UserID: &p2}
	tie := 0

	resolver := NewMatchResolver(ResolverStrategy{Name: "stored_score", Resolve: byStoredScore})
	_, _, err := resolver.Resolve(ResolutionEvidence{Match: match, Report: CompletionReport{P1Score: &tie}})
	assert.ErrorIs(t, err, ErrWinnerUnresolved)
}
