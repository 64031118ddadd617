// Package realtime holds the live connection indices and the per-room relay.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
)

// Socket is one live connection. Send must not block; errors are swallowed by
// the registry.
type Socket interface {
	ID() string
	Send(data []byte) error
	Close() error
}

type roomEntry struct {
	host       Socket
	guest      Socket
	hostAlias  string
	guestAlias string
	gameOver   bool
}

func (e *roomEntry) socket(side models.RoomSide) Socket {
	if side == models.SideHost {
		return e.host
	}
	return e.guest
}

func (e *roomEntry) bind(side models.RoomSide, s Socket, alias string) {
	if side == models.SideHost {
		e.host, e.hostAlias = s, alias
		return
	}
	e.guest, e.guestAlias = s, alias
}

func (e *roomEntry) alias(side models.RoomSide) string {
	if side == models.SideHost {
		return e.hostAlias
	}
	return e.guestAlias
}

// membership is the reverse index for one socket.
type membership struct {
	roomID  string
	side    models.RoomSide
	lobbies map[string]struct{}
	users   map[int64]struct{}
}

// Departure describes what a removed socket held. Bound is false when the
// socket had already been replaced in its room.
type Departure struct {
	RoomID   string
	Side     models.RoomSide
	Bound    bool
	GameOver bool
	Users    []int64
}

// RoomView is a copy of a room's live state.
type RoomView struct {
	HostPresent  bool
	GuestPresent bool
	HostAlias    string
	GuestAlias   string
	GameOver     bool
}

// Registry indexes live sockets by room side, lobby and user. All mutation
// goes through its methods; a single lock guards every index.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*roomEntry
	lobbies     map[string]map[Socket]struct{}
	users       map[int64]map[Socket]struct{}
	memberships map[Socket]*membership
	lastSeen    map[int64]time.Time
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]*roomEntry),
		lobbies:     make(map[string]map[Socket]struct{}),
		users:       make(map[int64]map[Socket]struct{}),
		memberships: make(map[Socket]*membership),
		lastSeen:    make(map[int64]time.Time),
		now:         time.Now,
	}
}

func (r *Registry) member(s Socket) *membership {
	m, ok := r.memberships[s]
	if !ok {
		m = &membership{lobbies: make(map[string]struct{}), users: make(map[int64]struct{})}
		r.memberships[s] = m
	}
	return m
}

// BindRoom puts s on side of roomID and returns the socket it displaced, if
// any. The caller closes the stale socket outside the lock.
func (r *Registry) BindRoom(roomID string, side models.RoomSide, s Socket, alias string) Socket {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[roomID]
	if !ok {
		entry = &roomEntry{}
		r.rooms[roomID] = entry
	}

	stale := entry.socket(side)
	if stale == s {
		stale = nil
	}
	if stale != nil {
		if m, ok := r.memberships[stale]; ok {
			m.roomID, m.side = "", ""
		}
	}
	entry.bind(side, s, alias)

	m := r.member(s)
	m.roomID, m.side = roomID, side
	return stale
}

// IsBound reports whether s is the current socket for (roomID, side).
func (r *Registry) IsBound(roomID string, side models.RoomSide, s Socket) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rooms[roomID]
	return ok && entry.socket(side) == s
}

// Peer returns the socket on the other side of roomID.
func (r *Registry) Peer(roomID string, side models.RoomSide) Socket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return entry.socket(side.Other())
}

// Room returns a copy of the room's state.
func (r *Registry) Room(roomID string) (RoomView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rooms[roomID]
	if !ok {
		return RoomView{}, false
	}
	return RoomView{
		HostPresent:  entry.host != nil,
		GuestPresent: entry.guest != nil,
		HostAlias:    entry.hostAlias,
		GuestAlias:   entry.guestAlias,
		GameOver:     entry.gameOver,
	}, true
}

func (r *Registry) SetAlias(roomID string, side models.RoomSide, alias string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.rooms[roomID]; ok {
		if side == models.SideHost {
			entry.hostAlias = alias
		} else {
			entry.guestAlias = alias
		}
	}
}

// LatchGameOver marks the room's game as ended. It never resets.
func (r *Registry) LatchGameOver(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.rooms[roomID]; ok {
		entry.gameOver = true
	}
}

func (r *Registry) AddLobby(lobbyID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.lobbies[lobbyID]
	if !ok {
		set = make(map[Socket]struct{})
		r.lobbies[lobbyID] = set
	}
	set[s] = struct{}{}
	r.member(s).lobbies[lobbyID] = struct{}{}
}

func (r *Registry) AddUser(userID int64, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.users[userID]
	if !ok {
		set = make(map[Socket]struct{})
		r.users[userID] = set
	}
	set[s] = struct{}{}
	r.member(s).users[userID] = struct{}{}
	r.lastSeen[userID] = r.now()
}

// Remove drops s from every index it was added to.
func (r *Registry) Remove(s Socket) Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.memberships[s]
	if !ok {
		return Departure{}
	}
	delete(r.memberships, s)

	var dep Departure
	if m.roomID != "" {
		dep.RoomID, dep.Side = m.roomID, m.side
		if entry, ok := r.rooms[m.roomID]; ok && entry.socket(m.side) == s {
			dep.Bound = true
			dep.GameOver = entry.gameOver
			entry.bind(m.side, nil, entry.alias(m.side))
			if entry.host == nil && entry.guest == nil {
				delete(r.rooms, m.roomID)
			}
		}
	}

	for lobbyID := range m.lobbies {
		if set, ok := r.lobbies[lobbyID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(r.lobbies, lobbyID)
			}
		}
	}

	now := r.now()
	for userID := range m.users {
		dep.Users = append(dep.Users, userID)
		r.lastSeen[userID] = now
		if set, ok := r.users[userID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(r.users, userID)
			}
		}
	}
	return dep
}

func (r *Registry) LobbySockets(lobbyID string) []Socket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return setToSlice(r.lobbies[lobbyID])
}

func (r *Registry) UserSockets(userID int64) []Socket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return setToSlice(r.users[userID])
}

// All returns every indexed socket once.
func (r *Registry) All() []Socket {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Socket, 0, len(r.memberships))
	for s := range r.memberships {
		out = append(out, s)
	}
	return out
}

// UserOnline reports whether userID holds at least one indexed socket.
func (r *Registry) UserOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// LastSeen is the last time userID connected or disconnected.
func (r *Registry) LastSeen(userID int64) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lastSeen[userID]
	return t, ok
}

// BroadcastLobby sends msg to every socket of the lobby and returns them.
func (r *Registry) BroadcastLobby(lobbyID string, msg interface{}) []Socket {
	sockets := r.LobbySockets(lobbyID)
	SendAll(sockets, msg)
	return sockets
}

// Broadcast sends msg to every connected socket.
func (r *Registry) Broadcast(msg interface{}) {
	SendAll(r.All(), msg)
}

func setToSlice(set map[Socket]struct{}) []Socket {
	out := make([]Socket, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Send marshals msg once and writes it to s. Failures are ignored: a dead
// socket is cleaned up by its own close event.
func Send(s Socket, msg interface{}) {
	if s == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = s.Send(data)
}

func SendAll(sockets []Socket, msg interface{}) {
	if len(sockets) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, s := range sockets {
		_ = s.Send(data)
	}
}
