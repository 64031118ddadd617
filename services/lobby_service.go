package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
)

// Player is the caller identity supplied by the auth layer.
type Player struct {
	UserID      int64
	DisplayName string
}

type CreateLobbyInput struct {
	Size      int              `json:"size"`
	AliasMode models.AliasMode `json:"alias_mode"`
	Alias     string           `json:"alias,omitempty"`
}

type JoinLobbyInput struct {
	AliasMode models.AliasMode `json:"alias_mode"`
	Alias     string           `json:"alias,omitempty"`
}

// Snapshot is the full read model of a lobby.
type Snapshot struct {
	Lobby        *models.Lobby         `json:"lobby"`
	Participants []*models.Participant `json:"participants"`
	Rounds       [][]*models.Match     `json:"rounds"`
}

type LobbyService interface {
	Create(ctx context.Context, player Player, input CreateLobbyInput) (*models.Lobby, error)
	Join(ctx context.Context, lobbyID string, player Player, input JoinLobbyInput) error
	Start(ctx context.Context, lobbyID string, userID int64) (*Snapshot, error)
	Snapshot(ctx context.Context, lobbyID string) (*Snapshot, error)
	AcquireMatchRoom(ctx context.Context, lobbyID, matchID string, userID int64) (string, error)
}

type lobbyService struct {
	db           *sqlx.DB
	lobbies      repositories.LobbyRepository
	participants repositories.ParticipantRepository
	matches      repositories.MatchRepository
	rooms        repositories.RoomRepository
	generator    brackets.BracketGenerator
	registry     *realtime.Registry
	logger       *slog.Logger
	now          func() time.Time
	shuffle      func([]*models.Participant)
}

func NewLobbyService(
	db *sqlx.DB,
	lobbyRepo repositories.LobbyRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	roomRepo repositories.RoomRepository,
	registry *realtime.Registry,
	logger *slog.Logger,
) LobbyService {
	return &lobbyService{
		db:           db,
		lobbies:      lobbyRepo,
		participants: participantRepo,
		matches:      matchRepo,
		rooms:        roomRepo,
		generator:    brackets.NewSingleEliminationGenerator(),
		registry:     registry,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		shuffle: func(ps []*models.Participant) {
			rand.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })
		},
	}
}

// Create opens a lobby and seats its creator as host and first participant.
func (s *lobbyService) Create(ctx context.Context, player Player, input CreateLobbyInput) (*models.Lobby, error) {
	if input.Size < models.MinLobbySize || input.Size > models.MaxLobbySize {
		return nil, ErrInvalidLobbySize
	}
	alias, err := resolveAlias(input.AliasMode, input.Alias, player.DisplayName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	lobby := &models.Lobby{
		ID:             uuid.NewString(),
		HostID:         player.UserID,
		Size:           input.Size,
		SeatsTaken:     1,
		Status:         models.LobbyWaiting,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	err = withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		if err := s.lobbies.Create(ctx, tx, lobby); err != nil {
			return err
		}
		added, err := s.participants.Add(ctx, tx, &models.Participant{
			LobbyID:  lobby.ID,
			UserID:   player.UserID,
			Alias:    alias,
			JoinedAt: now,
		})
		if err != nil {
			return err
		}
		if !added {
			return fmt.Errorf("creator %d could not join new lobby %s", player.UserID, lobby.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Lobby created", slog.String("lobby_id", lobby.ID), slog.Int64("host_id", lobby.HostID), slog.Int("size", lobby.Size))
	return lobby, nil
}

// Join is idempotent for an existing participant; the stored alias is kept.
func (s *lobbyService) Join(ctx context.Context, lobbyID string, player Player, input JoinLobbyInput) error {
	alias, err := resolveAlias(input.AliasMode, input.Alias, player.DisplayName)
	if err != nil {
		return err
	}

	joined := false
	err = withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		lobby, err := s.lobbies.GetByID(ctx, tx, lobbyID)
		if err != nil {
			return mapLobbyErr(err)
		}

		if _, err := s.participants.Get(ctx, tx, lobbyID, player.UserID); err == nil {
			return nil
		} else if !errors.Is(err, repositories.ErrParticipantNotFound) {
			return err
		}

		if lobby.Status != models.LobbyWaiting {
			return ErrLobbyNotWaiting
		}

		claimed, err := s.lobbies.ClaimSeat(ctx, tx, lobbyID)
		if err != nil {
			return err
		}
		if !claimed {
			return s.explainRejectedJoin(ctx, tx, lobbyID, player.UserID)
		}

		now := s.now()
		added, err := s.participants.Add(ctx, tx, &models.Participant{
			LobbyID:  lobbyID,
			UserID:   player.UserID,
			Alias:    alias,
			JoinedAt: now,
		})
		if err != nil {
			return err
		}
		if !added {
			// A concurrent join by the same user won; give the seat back.
			return errAlreadySeated
		}
		joined = true
		return s.lobbies.Touch(ctx, tx, lobbyID, now)
	})
	if errors.Is(err, errAlreadySeated) {
		return nil
	}
	if err != nil {
		return err
	}

	if joined {
		s.logger.InfoContext(ctx, "Player joined lobby", slog.String("lobby_id", lobbyID), slog.Int64("user_id", player.UserID))
		s.registry.BroadcastLobby(lobbyID, realtime.NewUpdated(lobbyID, models.LobbyWaiting))
	}
	return nil
}

// errAlreadySeated rolls back a seat claim whose participant row already exists.
var errAlreadySeated = errors.New("participant already seated")

// explainRejectedJoin turns a seat claim that touched nothing into the reason
// the caller can act on.
func (s *lobbyService) explainRejectedJoin(ctx context.Context, exec repositories.SQLExecutor, lobbyID string, userID int64) error {
	if _, err := s.participants.Get(ctx, exec, lobbyID, userID); err == nil {
		return nil
	}
	lobby, err := s.lobbies.GetByID(ctx, exec, lobbyID)
	if err != nil {
		return mapLobbyErr(err)
	}
	if lobby.Status != models.LobbyWaiting {
		return ErrLobbyNotWaiting
	}
	return ErrLobbyFull
}

// Start seeds the bracket in the same transaction as the status change, so a
// started lobby always has its opening round.
func (s *lobbyService) Start(ctx context.Context, lobbyID string, userID int64) (*Snapshot, error) {
	err := withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		lobby, err := s.lobbies.GetByID(ctx, tx, lobbyID)
		if err != nil {
			return mapLobbyErr(err)
		}
		if lobby.HostID != userID {
			return ErrNotLobbyHost
		}
		if lobby.Status != models.LobbyWaiting {
			return ErrLobbyNotWaiting
		}

		participants, err := s.participants.ListByLobby(ctx, tx, lobbyID)
		if err != nil {
			return err
		}
		if len(participants) != lobby.Size {
			return fmt.Errorf("%w: %d of %d seats taken", ErrLobbyNotReady, len(participants), lobby.Size)
		}

		now := s.now()
		ok, err := s.lobbies.UpdateStatus(ctx, tx, lobbyID, models.LobbyStarted, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLobbyNotWaiting
		}

		seeded := make([]*models.Participant, len(participants))
		copy(seeded, participants)
		s.shuffle(seeded)

		opening, err := s.generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
			LobbyID:  lobbyID,
			Entrants: brackets.EntrantsFromParticipants(seeded),
			Now:      now,
		})
		if err != nil {
			return fmt.Errorf("failed to generate bracket for lobby %s: %w", lobbyID, err)
		}
		for _, m := range opening {
			if err := s.matches.Create(ctx, tx, m); err != nil {
				return err
			}
		}

		writes, err := brackets.NewBracket(lobbyID, lobby.Size, opening).Propagate(now)
		if err != nil {
			return err
		}
		return applyAdvancements(ctx, tx, s.matches, writes, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Lobby started", slog.String("lobby_id", lobbyID))
	s.registry.BroadcastLobby(lobbyID, realtime.NewUpdated(lobbyID, models.LobbyStarted))
	return s.Snapshot(ctx, lobbyID)
}

func (s *lobbyService) Snapshot(ctx context.Context, lobbyID string) (*Snapshot, error) {
	return loadSnapshot(ctx, s.db, s.lobbies, s.participants, s.matches, lobbyID)
}

func loadSnapshot(
	ctx context.Context,
	exec repositories.SQLExecutor,
	lobbies repositories.LobbyRepository,
	participants repositories.ParticipantRepository,
	matches repositories.MatchRepository,
	lobbyID string,
) (*Snapshot, error) {
	lobby, err := lobbies.GetByID(ctx, exec, lobbyID)
	if err != nil {
		return nil, mapLobbyErr(err)
	}
	people, err := participants.ListByLobby(ctx, exec, lobbyID)
	if err != nil {
		return nil, err
	}
	cells, err := matches.ListByLobby(ctx, exec, lobbyID)
	if err != nil {
		return nil, err
	}

	rounds := make([][]*models.Match, 0)
	if len(cells) > 0 {
		rounds = brackets.NewBracket(lobbyID, lobby.Size, cells).ByRound()
	}
	return &Snapshot{Lobby: lobby, Participants: people, Rounds: rounds}, nil
}

var errRoomAssignRaced = errors.New("room assigned concurrently")

// AcquireMatchRoom returns the match's game room, creating it on first use.
// The first slot hosts.
func (s *lobbyService) AcquireMatchRoom(ctx context.Context, lobbyID, matchID string, userID int64) (string, error) {
	var roomID string
	err := withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		lobby, err := s.lobbies.GetByID(ctx, tx, lobbyID)
		if err != nil {
			return mapLobbyErr(err)
		}
		if lobby.Status != models.LobbyStarted {
			return ErrLobbyNotStarted
		}

		match, err := s.matches.GetInLobby(ctx, tx, lobbyID, matchID)
		if err != nil {
			return mapMatchErr(err)
		}
		if _, ok := match.SlotOf(userID); !ok {
			return ErrNotMatchPlayer
		}
		if match.Status == models.MatchFinished {
			return ErrMatchFinished
		}
		if match.RoomID != nil {
			roomID = *match.RoomID
			return nil
		}
		if !match.Ready() {
			return ErrMatchNotReady
		}

		now := s.now()
		room := &models.GameRoom{
			ID:        uuid.NewString(),
			HostID:    *match.P1UserID,
			GuestID:   match.P2UserID,
			Status:    models.RoomPending,
			CreatedAt: now,
		}
		if err := s.rooms.Create(ctx, tx, room); err != nil {
			return err
		}
		ok, err := s.matches.AssignRoom(ctx, tx, matchID, room.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errRoomAssignRaced
		}
		roomID = room.ID
		return s.lobbies.Touch(ctx, tx, lobbyID, now)
	})

	if errors.Is(err, errRoomAssignRaced) {
		match, err := s.matches.GetInLobby(ctx, s.db, lobbyID, matchID)
		if err != nil {
			return "", mapMatchErr(err)
		}
		if match.RoomID == nil {
			return "", ErrMatchFinished
		}
		return *match.RoomID, nil
	}
	if err != nil {
		return "", err
	}

	s.registry.BroadcastLobby(lobbyID, realtime.NewUpdated(lobbyID, models.LobbyStarted))
	return roomID, nil
}
