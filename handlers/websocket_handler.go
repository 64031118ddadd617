package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/realtime"
)

var (
	errInvalidRole    = errors.New("role must be host or guest")
	errNothingToWatch = errors.New("connection declares no room, lobby or user")
)

const (
	protoRolePrefix  = "role."
	protoRoomPrefix  = "room."
	protoLobbyPrefix = "lobby."
)

type WebSocketHandler struct {
	sessions *realtime.RoomSessions
	upgrader websocket.Upgrader
	// baseCtx outlives the upgrade request and ends on server shutdown.
	baseCtx context.Context
	logger  *slog.Logger
}

func NewWebSocketHandler(baseCtx context.Context, sessions *realtime.RoomSessions, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		baseCtx: baseCtx,
		logger:  logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// classify works out what a connecting socket wants from, in order of
// precedence, the route, the query string and the offered subprotocols.
// It also returns the subprotocol to echo back, if any was offered.
func classify(r *http.Request) (realtime.Connection, string, error) {
	var c realtime.Connection
	q := r.URL.Query()

	offered := websocket.Subprotocols(r)
	var protoRoom, protoRole, protoLobby string
	for _, p := range offered {
		switch {
		case strings.HasPrefix(p, protoRoomPrefix):
			protoRoom = strings.TrimPrefix(p, protoRoomPrefix)
		case strings.HasPrefix(p, protoRolePrefix):
			protoRole = strings.TrimPrefix(p, protoRolePrefix)
		case strings.HasPrefix(p, protoLobbyPrefix):
			protoLobby = strings.TrimPrefix(p, protoLobbyPrefix)
		}
	}
	echo := ""
	if len(offered) > 0 {
		echo = offered[0]
	}

	c.RoomID = firstNonEmpty(chi.URLParam(r, "roomID"), q.Get("room_id"), protoRoom)
	role := firstNonEmpty(chi.URLParam(r, "role"), q.Get("role"), protoRole)
	c.LobbyID = firstNonEmpty(chi.URLParam(r, "lobbyID"), q.Get("lobby_id"), protoLobby)
	c.Alias = strings.TrimSpace(q.Get("alias"))

	if c.RoomID != "" {
		c.Side = models.RoomSide(strings.ToLower(role))
		if !c.Side.Valid() {
			return realtime.Connection{}, "", errInvalidRole
		}
	}

	if id, err := middleware.IdentityFromContext(r.Context()); err == nil {
		c.UserID = id.UserID
		if c.Alias == "" {
			c.Alias = id.DisplayName
		}
	}

	if c.RoomID == "" && c.LobbyID == "" && c.UserID == 0 {
		return realtime.Connection{}, "", errNothingToWatch
	}
	return c, echo, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ServeWs upgrades the request and hands the socket to the room relay.
// Routes: /ws, /ws/rooms/{roomID}/{role}, /ws/lobbies/{lobbyID}.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	info, proto, err := classify(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var header http.Header
	if proto != "" {
		header = http.Header{"Sec-Websocket-Protocol": {proto}}
	}
	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	logger := h.logger.With(
		slog.String("room_id", info.RoomID),
		slog.String("side", string(info.Side)),
		slog.String("lobby_id", info.LobbyID),
		slog.Int64("user_id", info.UserID),
	)
	logger.DebugContext(r.Context(), "WebSocket connected", slog.String("subprotocol", proto))

	client := realtime.NewClient(conn, h.sessions, info, logger)
	go client.Run(h.baseCtx)
}

