package brackets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func entrants(n int) []Entrant {
	out := make([]Entrant, n)
	for i := range out {
		out[i] = Entrant{UserID: int64(i + 1), Alias: fmt.Sprintf("p%d", i+1)}
	}
	return out
}

func seed(t *testing.T, n int) []*models.Match {
	t.Helper()
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		LobbyID:  "lobby",
		Entrants: entrants(n),
		Now:      now,
	})
	require.NoError(t, err)
	return matches
}

func TestBracketSize(t *testing.T) {
	tests := []struct {
		n      int
		rounds int
		size   int
	}{
		{n: 2, rounds: 1, size: 2},
		{n: 3, rounds: 2, size: 4},
		{n: 4, rounds: 2, size: 4},
		{n: 5, rounds: 3, size: 8},
		{n: 8, rounds: 3, size: 8},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d entrants", tt.n), func(t *testing.T) {
			assert.Equal(t, tt.rounds, Rounds(tt.n))
			assert.Equal(t, tt.size, BracketSize(tt.n))
		})
	}
}

func TestGenerateBracket_ByeCounts(t *testing.T) {
	for n := models.MinLobbySize; n <= models.MaxLobbySize; n++ {
		t.Run(fmt.Sprintf("%d entrants", n), func(t *testing.T) {
			matches := seed(t, n)
			size := BracketSize(n)
			require.Len(t, matches, size/2)

			byes := 0
			seen := map[int64]bool{}
			for i, m := range matches {
				assert.Equal(t, 0, m.Round)
				assert.Equal(t, i, m.MatchIndex)
				require.NotNil(t, m.P1UserID, "opening match %d is empty", i)
				seen[*m.P1UserID] = true
				if m.P2UserID != nil {
					seen[*m.P2UserID] = true
				}
				if m.IsBye() {
					byes++
					assert.Equal(t, models.MatchFinished, m.Status)
					require.NotNil(t, m.WinnerUserID)
					assert.Equal(t, *m.P1UserID, *m.WinnerUserID)
				} else {
					assert.Equal(t, models.MatchPending, m.Status)
					assert.Nil(t, m.WinnerUserID)
				}
			}
			assert.Equal(t, size-n, byes)
			assert.Len(t, seen, n)
		})
	}
}

func TestGenerateBracket_RejectsSingleEntrant(t *testing.T) {
	_, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{
		Entrants: entrants(1),
	})
	assert.ErrorIs(t, err, ErrNotEnoughEntrants)
}

func TestPropagate_ThreeEntrantsPrefillsFinal(t *testing.T) {
	matches := seed(t, 3)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), *matches[0].P1UserID)
	assert.Equal(t, int64(2), *matches[0].P2UserID)
	assert.True(t, matches[1].IsBye())
	assert.Equal(t, int64(3), *matches[1].P1UserID)

	b := NewBracket("lobby", 3, matches)
	writes, err := b.Propagate(now)
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.True(t, writes[0].Created)
	assert.Equal(t, models.SlotP2, writes[0].Slot)
	assert.Equal(t, "p3", writes[0].Alias)

	final := b.Final()
	require.NotNil(t, final)
	assert.Nil(t, final.P1UserID)
	require.NotNil(t, final.P2UserID)
	assert.Equal(t, int64(3), *final.P2UserID)

	again, err := b.Propagate(now)
	require.NoError(t, err)
	assert.Empty(t, again, "propagation must be idempotent")
}

func finish(m *models.Match, winner int64) {
	m.Status = models.MatchFinished
	m.WinnerUserID = &winner
}

func TestPropagate_FourEntrantsReachChampion(t *testing.T) {
	matches := seed(t, 4)
	b := NewBracket("lobby", 4, matches)

	writes, err := b.Propagate(now)
	require.NoError(t, err)
	assert.Empty(t, writes)

	finish(matches[0], 1)
	writes, err = b.Propagate(now, matches[0])
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.True(t, writes[0].Created)

	finish(matches[1], 3)
	writes, err = b.Propagate(now, matches[1])
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.False(t, writes[0].Created)

	final := b.Final()
	require.True(t, final.Ready())
	assert.Equal(t, int64(1), *final.P1UserID)
	assert.Equal(t, int64(3), *final.P2UserID)

	_, ok := b.Champion()
	assert.False(t, ok)

	finish(final, 1)
	writes, err = b.Propagate(now, final)
	require.NoError(t, err)
	assert.Empty(t, writes, "the final advances nowhere")

	champion, ok := b.Champion()
	require.True(t, ok)
	assert.Equal(t, int64(1), champion)
}

func TestPropagate_FiveEntrantsChainsByes(t *testing.T) {
	matches := seed(t, 5)
	b := NewBracket("lobby", 5, matches)

	writes, err := b.Propagate(now)
	require.NoError(t, err)
	require.Len(t, writes, 3)

	semi := b.Get(1, 1)
	require.NotNil(t, semi)
	assert.True(t, semi.Ready(), "two byes meet in round 1")
	assert.Nil(t, b.Get(2, 0), "nothing resolved reaches the final yet")

	again, err := b.Propagate(now)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPropagate_DetectsConflict(t *testing.T) {
	matches := seed(t, 4)
	b := NewBracket("lobby", 4, matches)

	finish(matches[0], 1)
	_, err := b.Propagate(now, matches[0])
	require.NoError(t, err)

	matches[0].WinnerUserID = ptr(int64(2))
	_, err = b.Propagate(now, matches[0])
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestByRound(t *testing.T) {
	matches := seed(t, 3)
	b := NewBracket("lobby", 3, matches)
	_, err := b.Propagate(now)
	require.NoError(t, err)

	rounds := b.ByRound()
	require.Len(t, rounds, 2)
	assert.Len(t, rounds[0], 2)
	assert.Len(t, rounds[1], 1)
}

func ptr[T any](v T) *T { return &v }
