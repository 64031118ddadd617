package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/models"
)

func TestRegistry_BindRoomReplacesStaleSocket(t *testing.T) {
	r := NewRegistry()
	first := newFakeSocket("first")
	second := newFakeSocket("second")

	assert.Nil(t, r.BindRoom("room", models.SideHost, first, "a"))
	stale := r.BindRoom("room", models.SideHost, second, "a")
	require.NotNil(t, stale)
	assert.Equal(t, "first", stale.ID())

	assert.True(t, r.IsBound("room", models.SideHost, second))
	assert.False(t, r.IsBound("room", models.SideHost, first))

	dep := r.Remove(first)
	assert.Empty(t, dep.RoomID, "a replaced socket no longer holds the room")
	assert.True(t, r.IsBound("room", models.SideHost, second))

	view, ok := r.Room("room")
	require.True(t, ok)
	assert.True(t, view.HostPresent)
	assert.False(t, view.GuestPresent)
}

func TestRegistry_RebindSameSocketIsNotStale(t *testing.T) {
	r := NewRegistry()
	s := newFakeSocket("s")
	r.BindRoom("room", models.SideGuest, s, "")
	assert.Nil(t, r.BindRoom("room", models.SideGuest, s, "g"))
}

func TestRegistry_RemoveClearsEveryIndex(t *testing.T) {
	r := NewRegistry()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	s := newFakeSocket("s")
	other := newFakeSocket("other")
	r.AddUser(7, s)
	r.AddLobby("lobby", s)
	r.AddLobby("lobby", other)
	r.BindRoom("room", models.SideGuest, s, "g")
	r.LatchGameOver("room")

	assert.True(t, r.UserOnline(7))
	assert.Len(t, r.LobbySockets("lobby"), 2)
	assert.Len(t, r.All(), 2)

	clock = clock.Add(time.Minute)
	dep := r.Remove(s)
	assert.Equal(t, "room", dep.RoomID)
	assert.Equal(t, models.SideGuest, dep.Side)
	assert.True(t, dep.Bound)
	assert.True(t, dep.GameOver)
	assert.Equal(t, []int64{7}, dep.Users)

	assert.False(t, r.UserOnline(7))
	assert.Empty(t, r.UserSockets(7))
	assert.Len(t, r.LobbySockets("lobby"), 1)
	_, ok := r.Room("room")
	assert.False(t, ok, "empty room entry is dropped")

	seen, ok := r.LastSeen(7)
	require.True(t, ok)
	assert.Equal(t, clock, seen)

	assert.Equal(t, Departure{}, r.Remove(s), "second remove is a no-op")
}

func TestRegistry_BroadcastSwallowsClosedSockets(t *testing.T) {
	r := NewRegistry()
	open := newFakeSocket("open")
	closed := newFakeSocket("closed")
	_ = closed.Close()
	r.AddLobby("lobby", open)
	r.AddLobby("lobby", closed)

	sockets := r.BroadcastLobby("lobby", NewUpdated("lobby", models.LobbyStarted))
	assert.Len(t, sockets, 2)
	assert.Equal(t, []string{TypeUpdated}, open.types())
	assert.Empty(t, closed.types())

	r.AddUser(1, newFakeSocket("user-only"))
	r.Broadcast(NewHostHandover("lobby", 1, 2, "b"))
	assert.Equal(t, []string{TypeUpdated, TypeHostHandover}, open.types())
}
