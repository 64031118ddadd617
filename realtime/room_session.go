package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
)

// ErrRoomUnlinked is returned by RoomStore.MatchForRoom for private 1v1 rooms.
var ErrRoomUnlinked = errors.New("room is not linked to a tournament match")

const DefaultHostDisconnectGrace = 300 * time.Millisecond

const AbortReasonHostDisconnected = "host disconnected"

// RoomStore is the persistence the relay needs.
type RoomStore interface {
	MatchForRoom(ctx context.Context, roomID string) (*models.Match, error)
	MarkRoomActive(ctx context.Context, roomID string) error
	MarkRoomFinished(ctx context.Context, roomID string) error
	RecordScore(ctx context.Context, roomID string, hostScore, guestScore int) error
	// LobbyEnded reports whether the lobby is already cancelled or finished.
	LobbyEnded(ctx context.Context, lobbyID string) (bool, error)
}

type Aborter interface {
	Abort(ctx context.Context, lobbyID, reason string) (bool, error)
}

// Connection is what a socket declared when it was classified.
type Connection struct {
	RoomID  string
	Side    models.RoomSide
	LobbyID string
	UserID  int64
	Alias   string
}

func (c Connection) InRoom() bool {
	return c.RoomID != "" && c.Side.Valid()
}

// RoomSessions relays gameplay between the two sides of a room and decides
// what a host disconnect means.
type RoomSessions struct {
	registry *Registry
	store    RoomStore
	aborter  Aborter
	grace    time.Duration
	logger   *slog.Logger
}

func NewRoomSessions(registry *Registry, store RoomStore, aborter Aborter, grace time.Duration, logger *slog.Logger) *RoomSessions {
	if grace <= 0 {
		grace = DefaultHostDisconnectGrace
	}
	return &RoomSessions{
		registry: registry,
		store:    store,
		aborter:  aborter,
		grace:    grace,
		logger:   logger,
	}
}

// Connect indexes s under everything it declared. A socket taking an occupied
// room side closes the previous one.
func (rs *RoomSessions) Connect(ctx context.Context, s Socket, c Connection) {
	if c.UserID != 0 {
		rs.registry.AddUser(c.UserID, s)
	}
	if c.LobbyID != "" {
		rs.registry.AddLobby(c.LobbyID, s)
	}
	if !c.InRoom() {
		return
	}

	if stale := rs.registry.BindRoom(c.RoomID, c.Side, s, c.Alias); stale != nil {
		rs.logger.InfoContext(ctx, "Replacing stale room socket",
			slog.String("room_id", c.RoomID), slog.String("side", string(c.Side)), slog.String("stale_socket", stale.ID()))
		_ = stale.Close()
	}

	view, _ := rs.registry.Room(c.RoomID)
	if !view.HostPresent || !view.GuestPresent {
		return
	}

	host := rs.registry.Peer(c.RoomID, models.SideGuest)
	guest := rs.registry.Peer(c.RoomID, models.SideHost)
	Send(host, OpponentJoinedMessage{Type: TypeOpponentJoined, Role: models.SideGuest, Alias: view.GuestAlias})
	Send(guest, OpponentJoinedMessage{Type: TypeOpponentJoined, Role: models.SideHost, Alias: view.HostAlias})

	if err := rs.store.MarkRoomActive(ctx, c.RoomID); err != nil {
		rs.logger.WarnContext(ctx, "Failed to mark room active", slog.String("room_id", c.RoomID), slog.Any("error", err))
	}
}

// HandleMessage relays one inbound frame. Lobby and user sockets are
// listen-only, and frames from a replaced socket are dropped.
func (rs *RoomSessions) HandleMessage(ctx context.Context, s Socket, c Connection, raw []byte) {
	if !c.InRoom() || !rs.registry.IsBound(c.RoomID, c.Side, s) {
		return
	}

	msgType, err := decodeType(raw)
	if err != nil {
		rs.logger.DebugContext(ctx, "Dropping malformed frame", slog.String("room_id", c.RoomID), slog.Any("error", err))
		return
	}

	peer := rs.registry.Peer(c.RoomID, c.Side)

	switch msgType {
	case TypeHello:
		var hello HelloMessage
		if err := json.Unmarshal(raw, &hello); err != nil || hello.Alias == "" {
			return
		}
		rs.registry.SetAlias(c.RoomID, c.Side, hello.Alias)
		Send(peer, OpponentJoinedMessage{Type: TypeOpponentJoined, Role: c.Side, Alias: hello.Alias})
	case TypeState:
		if c.Side == models.SideHost {
			relay(peer, raw)
		}
	case TypeInput:
		if c.Side == models.SideGuest {
			relay(peer, raw)
		}
	case TypeGameOver:
		if c.Side == models.SideHost {
			rs.registry.LatchGameOver(c.RoomID)
			rs.recordGameOver(ctx, c.RoomID, raw)
		}
		relay(peer, raw)
	default:
		relay(peer, raw)
	}
}

func relay(peer Socket, raw []byte) {
	if peer != nil {
		_ = peer.Send(raw)
	}
}

func (rs *RoomSessions) recordGameOver(ctx context.Context, roomID string, raw []byte) {
	var msg GameOverMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Detail == nil {
		return
	}
	if msg.Detail.HostScore == nil || msg.Detail.GuestScore == nil {
		return
	}
	if err := rs.store.RecordScore(ctx, roomID, *msg.Detail.HostScore, *msg.Detail.GuestScore); err != nil {
		rs.logger.WarnContext(ctx, "Failed to record reported score", slog.String("room_id", roomID), slog.Any("error", err))
	}
}

// Disconnect removes s from the registry. Only the closing of the bound host
// socket has consequences: a private room is finished and the guest told, a
// live tournament match is aborted once the grace window passes without a
// result. It blocks for the grace window in that last case.
func (rs *RoomSessions) Disconnect(ctx context.Context, s Socket, c Connection) {
	dep := rs.registry.Remove(s)
	if dep.RoomID == "" || !dep.Bound || dep.Side != models.SideHost {
		return
	}

	logger := rs.logger.With(slog.String("room_id", dep.RoomID))

	match, err := rs.store.MatchForRoom(ctx, dep.RoomID)
	if errors.Is(err, ErrRoomUnlinked) {
		Send(rs.registry.Peer(dep.RoomID, models.SideHost), OpponentLeftMessage{Type: TypeOpponentLeft, Role: models.SideHost})
		if err := rs.store.MarkRoomFinished(ctx, dep.RoomID); err != nil {
			logger.WarnContext(ctx, "Failed to finish abandoned room", slog.Any("error", err))
		}
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load match for closed room", slog.Any("error", err))
		return
	}

	if dep.GameOver || !matchLive(match) {
		return
	}

	timer := time.NewTimer(rs.grace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	match, err = rs.store.MatchForRoom(ctx, dep.RoomID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to re-read match after grace window", slog.Any("error", err))
		return
	}
	if !matchLive(match) {
		return
	}
	if view, ok := rs.registry.Room(dep.RoomID); ok && (view.HostPresent || view.GameOver) {
		logger.InfoContext(ctx, "Host came back during grace window")
		return
	}
	ended, err := rs.store.LobbyEnded(ctx, match.LobbyID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read lobby after grace window", slog.String("lobby_id", match.LobbyID), slog.Any("error", err))
		return
	}
	if ended {
		return
	}

	logger.WarnContext(ctx, "Host left a live match, aborting tournament", slog.String("lobby_id", match.LobbyID))
	if _, err := rs.aborter.Abort(ctx, match.LobbyID, AbortReasonHostDisconnected); err != nil {
		logger.ErrorContext(ctx, "Failed to abort tournament", slog.String("lobby_id", match.LobbyID), slog.Any("error", err))
	}
}

func matchLive(m *models.Match) bool {
	return m.Status == models.MatchActive && m.WinnerUserID == nil
}
