package handlers

import (
	"net/http"

	"github.com/Dosada05/pong-tournaments/services"
)

type TournamentHandler struct {
	lobbyService services.LobbyService
	matchService services.MatchService
	abortService services.AbortService
}

func NewTournamentHandler(ls services.LobbyService, ms services.MatchService, as services.AbortService) *TournamentHandler {
	return &TournamentHandler{
		lobbyService: ls,
		matchService: ms,
		abortService: as,
	}
}

// CreateHandler opens a lobby hosted by the caller.
// @Summary Create a tournament lobby
// @Tags tournaments
// @Accept json
// @Produce json
// @Param body body services.CreateLobbyInput true "Lobby size and alias choice"
// @Success 201 {object} map[string]string "lobby_id"
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	player, ok := currentPlayer(r)
	if !ok {
		unauthorizedResponse(w, r, "authentication required to create a tournament")
		return
	}

	var input services.CreateLobbyInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	lobby, err := h.lobbyService.Create(r.Context(), player, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"lobby_id": lobby.ID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// JoinHandler
// @Summary Join a waiting lobby
// @Description Joining twice is a no-op and keeps the first alias.
// @Tags tournaments
// @Accept json
// @Produce json
// @Param lobbyID path string true "Lobby ID"
// @Param body body services.JoinLobbyInput false "Alias choice"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "Lobby full or already started"
// @Security BearerAuth
// @Router /tournaments/{lobbyID}/join [post]
func (h *TournamentHandler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	player, ok := currentPlayer(r)
	if !ok {
		unauthorizedResponse(w, r, "authentication required to join a tournament")
		return
	}
	lobbyID, err := urlParam(r, "lobbyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.JoinLobbyInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.lobbyService.Join(r.Context(), lobbyID, player, input); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ok": true}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartHandler
// @Summary Start a full lobby
// @Description Seeds the bracket and returns the resulting snapshot. Host only.
// @Tags tournaments
// @Produce json
// @Param lobbyID path string true "Lobby ID"
// @Success 200 {object} services.Snapshot
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{lobbyID}/start [post]
func (h *TournamentHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	player, ok := currentPlayer(r)
	if !ok {
		unauthorizedResponse(w, r, "authentication required to start a tournament")
		return
	}
	lobbyID, err := urlParam(r, "lobbyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snapshot, err := h.lobbyService.Start(r.Context(), lobbyID, player.UserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, snapshot, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SnapshotHandler
// @Summary Get lobby, participants and bracket rounds
// @Tags tournaments
// @Produce json
// @Param lobbyID path string true "Lobby ID"
// @Success 200 {object} services.Snapshot
// @Failure 404 {object} map[string]string
// @Router /tournaments/{lobbyID} [get]
func (h *TournamentHandler) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := urlParam(r, "lobbyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snapshot, err := h.lobbyService.Snapshot(r.Context(), lobbyID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, snapshot, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AcquireRoomHandler
// @Summary Get or create the game room of a match
// @Description The caller must play in the match. The first slot hosts the room.
// @Tags matches
// @Produce json
// @Param lobbyID path string true "Lobby ID"
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]string "room_id"
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{lobbyID}/matches/{matchID}/room [post]
func (h *TournamentHandler) AcquireRoomHandler(w http.ResponseWriter, r *http.Request) {
	player, ok := currentPlayer(r)
	if !ok {
		unauthorizedResponse(w, r, "authentication required to play a match")
		return
	}
	lobbyID, err := urlParam(r, "lobbyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := urlParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	roomID, err := h.lobbyService.AcquireMatchRoom(r.Context(), lobbyID, matchID, player.UserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"room_id": roomID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CompleteHandler
// @Summary Report a match result
// @Description Any of winner_slot, winner_side, p1/p2 scores or host/guest scores may be sent; the stored room score is the fallback. Reporting a decided match returns updated=false.
// @Tags matches
// @Accept json
// @Produce json
// @Param lobbyID path string true "Lobby ID"
// @Param matchID path string true "Match ID"
// @Param body body services.CompletionReport false "Result evidence"
// @Success 200 {object} services.CompletionResult
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string "Winner could not be determined"
// @Router /tournaments/{lobbyID}/matches/{matchID}/complete [post]
func (h *TournamentHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := urlParam(r, "lobbyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := urlParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var report services.CompletionReport
	if err := readOptionalJSON(w, r, &report); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.matchService.Complete(r.Context(), lobbyID, matchID, report)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler
// @Summary Delete a lobby
// @Description Removes the lobby with its participants and matches. Live sockets of an unfinished lobby receive tournament:aborted.
// @Tags tournaments
// @Param lobbyID path string true "Lobby ID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /tournaments/{lobbyID} [delete]
func (h *TournamentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	player, ok := currentPlayer(r)
	if !ok {
		unauthorizedResponse(w, r, "authentication required to delete a tournament")
		return
	}
	lobbyID, err := urlParam(r, "lobbyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.abortService.HardDelete(r.Context(), lobbyID, player.UserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
