package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/db/dbtest"
	"github.com/Dosada05/pong-tournaments/handlers"
	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
	"github.com/Dosada05/pong-tournaments/services"
)

type server struct {
	*httptest.Server
	db       *sqlx.DB
	auth     *middleware.JWTAuth
	rooms    repositories.RoomRepository
	registry *realtime.Registry
}

func newServer(t *testing.T) *server {
	t.Helper()
	database := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	lobbyRepo := repositories.NewLobbyRepository(database)
	partRepo := repositories.NewParticipantRepository(database)
	matchRepo := repositories.NewMatchRepository(database)
	roomRepo := repositories.NewRoomRepository(database)
	registry := realtime.NewRegistry()

	lobbies := services.NewLobbyService(database, lobbyRepo, partRepo, matchRepo, roomRepo, registry, logger)
	matches := services.NewMatchService(database, lobbyRepo, partRepo, matchRepo, roomRepo, services.NewMatchResolver(), registry, nil, logger)
	aborts := services.NewAbortService(database, lobbyRepo, partRepo, registry, nil, logger)
	sessions := realtime.NewRoomSessions(registry, services.NewRoomStore(database, lobbyRepo, matchRepo, roomRepo), aborts, 50*time.Millisecond, logger)

	auth := middleware.NewJWTAuth("e2e-secret")
	router := chi.NewRouter()
	SetupRoutes(router, auth, []string{"*"},
		handlers.NewTournamentHandler(lobbies, matches, aborts),
		handlers.NewWebSocketHandler(ctx, sessions, []string{"*"}, logger),
		handlers.NewHealthHandler(database),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{Server: srv, db: database, auth: auth, rooms: roomRepo, registry: registry}
}

func (s *server) token(t *testing.T, userID int64, name string) string {
	t.Helper()
	token, err := s.auth.Sign(userID, name, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *server) call(t *testing.T, method, path string, userID int64, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID, fmt.Sprintf("P%d", userID)))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (s *server) dial(t *testing.T, path string, userID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + path
	if userID != 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		url += sep + "token=" + s.token(t, userID, fmt.Sprintf("P%d", userID))
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == want {
			return msg
		}
	}
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	status, body := s.call(t, http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestTournamentFlow(t *testing.T) {
	s := newServer(t)

	status, body := s.call(t, http.MethodPost, "/api/tournaments", 0, map[string]interface{}{"size": 3})
	require.Equal(t, http.StatusUnauthorized, status)

	status, body = s.call(t, http.MethodPost, "/api/tournaments", 1, map[string]interface{}{"size": 3, "alias_mode": "display_name"})
	require.Equal(t, http.StatusCreated, status, body)
	lobbyID := body["lobby_id"].(string)

	watcher := s.dial(t, "/ws/lobbies/"+lobbyID, 0)

	for _, id := range []int64{2, 3} {
		status, body = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/join", id, map[string]interface{}{"alias_mode": "display_name"})
		require.Equal(t, http.StatusOK, status, body)
	}
	readType(t, watcher, realtime.TypeUpdated)

	status, _ = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/join", 4, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/start", 2, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/start", 1, nil)
	require.Equal(t, http.StatusOK, status, body)
	rounds := body["rounds"].([]interface{})
	require.Len(t, rounds, 2)

	// Find the real opening match and its two players.
	var matchID string
	var p1, p2 int64
	for _, raw := range rounds[0].([]interface{}) {
		m := raw.(map[string]interface{})
		if m["p2_user_id"] != nil && m["status"] == "pending" {
			matchID = m["id"].(string)
			p1 = int64(m["p1_user_id"].(float64))
			p2 = int64(m["p2_user_id"].(float64))
		}
	}
	require.NotEmpty(t, matchID)

	status, body = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/matches/"+matchID+"/room", p2, nil)
	require.Equal(t, http.StatusOK, status, body)
	roomID := body["room_id"].(string)

	host := s.dial(t, "/ws/rooms/"+roomID+"/host", p1)
	guest := s.dial(t, "/ws?room_id="+roomID+"&role=guest&alias=second", p2)

	joined := readType(t, host, realtime.TypeOpponentJoined)
	assert.Equal(t, "second", joined["alias"])
	readType(t, guest, realtime.TypeOpponentJoined)

	require.NoError(t, host.WriteMessage(websocket.TextMessage, []byte(`{"type":"state","ball":[1,2]}`)))
	state := readType(t, guest, "state")
	assert.Equal(t, []interface{}{float64(1), float64(2)}, state["ball"])

	require.NoError(t, host.WriteMessage(websocket.TextMessage, []byte(`{"type":"gameover","detail":{"host_score":2,"guest_score":11}}`)))
	readType(t, guest, realtime.TypeGameOver)

	require.Eventually(t, func() bool {
		_, err := s.rooms.LatestScore(context.Background(), s.db, roomID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	status, body = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/matches/"+matchID+"/complete", 0, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["updated"])
	assert.Equal(t, float64(p2), body["winner_user_id"])

	status, body = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/matches/"+matchID+"/complete", 0, map[string]string{"winner_slot": "p1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["updated"])
	assert.Equal(t, float64(p2), body["winner_user_id"])
}

func TestHostAbandonAbortsTournament(t *testing.T) {
	s := newServer(t)

	status, body := s.call(t, http.MethodPost, "/api/tournaments", 1, map[string]interface{}{"size": 4, "alias_mode": "display_name"})
	require.Equal(t, http.StatusCreated, status, body)
	lobbyID := body["lobby_id"].(string)
	for _, id := range []int64{2, 3, 4} {
		status, body = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/join", id, map[string]interface{}{"alias_mode": "display_name"})
		require.Equal(t, http.StatusOK, status, body)
	}

	status, body = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/start", 1, nil)
	require.Equal(t, http.StatusOK, status, body)
	opening := body["rounds"].([]interface{})[0].([]interface{})
	m := opening[0].(map[string]interface{})
	matchID := m["id"].(string)
	p1 := int64(m["p1_user_id"].(float64))
	p2 := int64(m["p2_user_id"].(float64))

	var bystanderID int64
	for id := int64(1); id <= 4; id++ {
		if id != p1 && id != p2 {
			bystanderID = id
			break
		}
	}

	watcher := s.dial(t, "/ws/lobbies/"+lobbyID, 0)
	bystander := s.dial(t, "/ws", bystanderID)
	require.Eventually(t, func() bool {
		return s.registry.UserOnline(bystanderID) && len(s.registry.LobbySockets(lobbyID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	status, body = s.call(t, http.MethodPost, "/api/tournaments/"+lobbyID+"/matches/"+matchID+"/room", p1, nil)
	require.Equal(t, http.StatusOK, status, body)
	roomID := body["room_id"].(string)

	host := s.dial(t, "/ws/rooms/"+roomID+"/host", p1)
	guest := s.dial(t, "/ws/rooms/"+roomID+"/guest", p2)
	readType(t, host, realtime.TypeOpponentJoined)
	readType(t, guest, realtime.TypeOpponentJoined)

	// Drop the host without a close handshake.
	require.NoError(t, host.UnderlyingConn().Close())

	for name, conn := range map[string]*websocket.Conn{"watcher": watcher, "bystander": bystander, "guest": guest} {
		msg := readType(t, conn, realtime.TypeAborted)
		assert.Equal(t, realtime.AbortReasonHostDisconnected, msg["reason"], name)
		assert.Equal(t, lobbyID, msg["lobbyId"], name)
	}

	status, body = s.call(t, http.MethodGet, "/api/tournaments/"+lobbyID, 0, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "cancelled", body["lobby"].(map[string]interface{})["status"])
}

func TestWebSocketRejectsBadRole(t *testing.T) {
	s := newServer(t)
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/rooms/r1/referee"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
