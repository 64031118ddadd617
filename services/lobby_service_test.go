package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
)

func TestLobbyService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		who   Player
		input CreateLobbyInput
		err   error
	}{
		{name: "too small", who: player(1, "A"), input: CreateLobbyInput{Size: 2}, err: ErrInvalidLobbySize},
		{name: "too big", who: player(1, "A"), input: CreateLobbyInput{Size: 9}, err: ErrInvalidLobbySize},
		{name: "bad mode", who: player(1, "A"), input: CreateLobbyInput{Size: 4, AliasMode: "nickname"}, err: ErrInvalidAliasMode},
		{name: "blank custom alias", who: player(1, "A"), input: CreateLobbyInput{Size: 4, AliasMode: models.AliasCustom, Alias: "   "}, err: ErrAliasRequired},
		{name: "no display name", who: player(1, ""), input: CreateLobbyInput{Size: 4, AliasMode: models.AliasDisplayName}, err: ErrAliasRequired},
		{name: "long alias", who: player(1, "A"), input: CreateLobbyInput{Size: 4, AliasMode: models.AliasCustom, Alias: strings.Repeat("x", 33)}, err: ErrAliasTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.lobbies.Create(ctx, tt.who, tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLobbyService_CreateSeatsHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lobby, err := f.lobbies.Create(ctx, player(1, "Alice"), CreateLobbyInput{Size: 3, AliasMode: models.AliasCustom, Alias: "  ace  "})
	require.NoError(t, err)
	assert.Equal(t, models.LobbyWaiting, lobby.Status)

	snap, err := f.lobbies.Snapshot(ctx, lobby.ID)
	require.NoError(t, err)
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, "ace", snap.Participants[0].Alias)
	assert.Empty(t, snap.Rounds)
}

func TestLobbyService_Join(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLobby(t, 3, 2)

	watcher := &fakeSocket{id: "watcher"}
	f.registry.AddLobby(id, watcher)

	// Rejoining keeps the original alias.
	require.NoError(t, f.lobbies.Join(ctx, id, player(2, "Renamed"), JoinLobbyInput{AliasMode: models.AliasDisplayName}))
	require.NoError(t, f.lobbies.Join(ctx, id, player(3, "C"), JoinLobbyInput{AliasMode: models.AliasDisplayName}))

	err := f.lobbies.Join(ctx, id, player(4, "D"), JoinLobbyInput{AliasMode: models.AliasDisplayName})
	assert.ErrorIs(t, err, ErrLobbyFull)

	snap, err := f.lobbies.Snapshot(ctx, id)
	require.NoError(t, err)
	require.Len(t, snap.Participants, 3)
	assert.Equal(t, "B", snap.Participants[1].Alias)

	assert.Len(t, watcher.received(), 1, "only the real join is announced")
	assert.Contains(t, watcher.received()[0], realtime.TypeUpdated)

	_, err = f.lobbies.Start(ctx, id, 1)
	require.NoError(t, err)
	err = f.lobbies.Join(ctx, id, player(5, "E"), JoinLobbyInput{AliasMode: models.AliasDisplayName})
	assert.ErrorIs(t, err, ErrLobbyNotWaiting)

	err = f.lobbies.Join(ctx, "missing", player(5, "E"), JoinLobbyInput{AliasMode: models.AliasDisplayName})
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestLobbyService_StartGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLobby(t, 4, 3)

	_, err := f.lobbies.Start(ctx, id, 2)
	assert.ErrorIs(t, err, ErrNotLobbyHost)

	_, err = f.lobbies.Start(ctx, id, 1)
	assert.ErrorIs(t, err, ErrLobbyNotReady)
	assert.Equal(t, models.LobbyWaiting, f.lobbyStatus(t, id))

	matches, err := f.matchRepo.ListByLobby(ctx, f.db, id)
	require.NoError(t, err)
	assert.Empty(t, matches, "a rejected start leaves no bracket behind")

	require.NoError(t, f.lobbies.Join(ctx, id, player(4, "D"), JoinLobbyInput{AliasMode: models.AliasDisplayName}))
	_, err = f.lobbies.Start(ctx, id, 1)
	require.NoError(t, err)

	_, err = f.lobbies.Start(ctx, id, 1)
	assert.ErrorIs(t, err, ErrLobbyNotWaiting)
}

func TestLobbyService_StartThreePlayersPrefillsFinal(t *testing.T) {
	f := newFixture(t)
	_, snap := f.startedLobby(t, 3)

	assert.Equal(t, models.LobbyStarted, snap.Lobby.Status)
	require.Len(t, snap.Rounds, 2)
	require.Len(t, snap.Rounds[0], 2)

	real, bye := snap.Rounds[0][0], snap.Rounds[0][1]
	assert.Equal(t, "A", *real.P1Alias)
	assert.Equal(t, "B", *real.P2Alias)
	assert.Equal(t, models.MatchPending, real.Status)

	assert.True(t, bye.IsBye())
	assert.Equal(t, models.MatchFinished, bye.Status)
	assert.Equal(t, int64(3), *bye.WinnerUserID)

	require.Len(t, snap.Rounds[1], 1)
	final := snap.Rounds[1][0]
	assert.Nil(t, final.P1UserID)
	require.NotNil(t, final.P2UserID)
	assert.Equal(t, int64(3), *final.P2UserID)
	assert.Equal(t, "C", *final.P2Alias)
}

func TestLobbyService_AcquireMatchRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, snap := f.startedLobby(t, 3)
	opening := snap.Rounds[0][0]
	final := snap.Rounds[1][0]

	_, err := f.lobbies.AcquireMatchRoom(ctx, id, opening.ID, 3)
	assert.ErrorIs(t, err, ErrNotMatchPlayer)

	_, err = f.lobbies.AcquireMatchRoom(ctx, id, final.ID, 3)
	assert.ErrorIs(t, err, ErrMatchNotReady)

	_, err = f.lobbies.AcquireMatchRoom(ctx, id, snap.Rounds[0][1].ID, 3)
	assert.ErrorIs(t, err, ErrMatchFinished)

	_, err = f.lobbies.AcquireMatchRoom(ctx, id, "missing", 1)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	roomID, err := f.lobbies.AcquireMatchRoom(ctx, id, opening.ID, 2)
	require.NoError(t, err)
	again, err := f.lobbies.AcquireMatchRoom(ctx, id, opening.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, roomID, again, "a match gets one room")

	room, err := f.roomRepo.GetByID(ctx, f.db, roomID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), room.HostID)
	require.NotNil(t, room.GuestID)
	assert.Equal(t, int64(2), *room.GuestID)

	match, err := f.matchRepo.GetByID(ctx, f.db, opening.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchActive, match.Status)
}

func TestLobbyService_AcquireRequiresStartedLobby(t *testing.T) {
	f := newFixture(t)
	id := f.openLobby(t, 3, 3)

	_, err := f.lobbies.AcquireMatchRoom(context.Background(), id, "any", 1)
	assert.ErrorIs(t, err, ErrLobbyNotStarted)
}

func TestLobbyService_ConcurrentJoinsForLastSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLobby(t, 4, 3)

	const contenders = 6
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.lobbies.Join(ctx, id, player(int64(10+i), "late"), JoinLobbyInput{AliasMode: models.AliasDisplayName})
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, ErrLobbyFull)
	}
	assert.Equal(t, 1, won)

	count, err := f.partRepo.Count(ctx, f.db, id)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	lobby, err := f.lobbyRepo.GetByID(ctx, f.db, id)
	require.NoError(t, err)
	assert.Equal(t, 4, lobby.SeatsTaken)

	_, err = f.lobbies.Start(ctx, id, 1)
	assert.NoError(t, err)
}

// staleParticipants misses rows committed after the caller looked, like a
// concurrent join by the same user.
type staleParticipants struct {
	repositories.ParticipantRepository
}

func (staleParticipants) Get(context.Context, repositories.SQLExecutor, string, int64) (*models.Participant, error) {
	return nil, repositories.ErrParticipantNotFound
}

func TestLobbyService_JoinReturnsSeatWhenAlreadySeated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.openLobby(t, 4, 2)
	f.lobbies.participants = staleParticipants{f.partRepo}

	require.NoError(t, f.lobbies.Join(ctx, id, player(2, "B"), JoinLobbyInput{AliasMode: models.AliasDisplayName}))

	lobby, err := f.lobbyRepo.GetByID(ctx, f.db, id)
	require.NoError(t, err)
	assert.Equal(t, 2, lobby.SeatsTaken)
	count, err := f.partRepo.Count(ctx, f.db, id)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
