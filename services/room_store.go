package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
)

// roomStore backs the live relay with the room and match tables.
type roomStore struct {
	db      *sqlx.DB
	lobbies repositories.LobbyRepository
	matches repositories.MatchRepository
	rooms   repositories.RoomRepository
	now     func() time.Time
}

func NewRoomStore(db *sqlx.DB, lobbyRepo repositories.LobbyRepository, matchRepo repositories.MatchRepository, roomRepo repositories.RoomRepository) realtime.RoomStore {
	return &roomStore{
		db:      db,
		lobbies: lobbyRepo,
		matches: matchRepo,
		rooms:   roomRepo,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *roomStore) MatchForRoom(ctx context.Context, roomID string) (*models.Match, error) {
	match, err := s.matches.FindByRoomID(ctx, s.db, roomID)
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return nil, realtime.ErrRoomUnlinked
	}
	return match, err
}

// LobbyEnded treats a deleted lobby as ended.
func (s *roomStore) LobbyEnded(ctx context.Context, lobbyID string) (bool, error) {
	lobby, err := s.lobbies.GetByID(ctx, s.db, lobbyID)
	if errors.Is(err, repositories.ErrLobbyNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return lobby.Status.Terminal(), nil
}

func (s *roomStore) MarkRoomActive(ctx context.Context, roomID string) error {
	_, err := s.rooms.MarkActive(ctx, s.db, roomID)
	return err
}

func (s *roomStore) MarkRoomFinished(ctx context.Context, roomID string) error {
	_, err := s.rooms.MarkFinished(ctx, s.db, roomID, s.now())
	return err
}

func (s *roomStore) RecordScore(ctx context.Context, roomID string, hostScore, guestScore int) error {
	return s.rooms.AddScore(ctx, s.db, &models.GameScore{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		HostScore:  hostScore,
		GuestScore: guestScore,
		CreatedAt:  s.now(),
	})
}
