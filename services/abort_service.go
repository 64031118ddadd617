package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
)

const (
	AbortReasonInactive = "inactive timeout"
	AbortReasonDeleted  = "deleted by host"
)

type AbortService interface {
	// Abort cancels a waiting or started lobby and tells everyone involved.
	// It reports whether this call performed the cancellation. Finished
	// lobbies are left alone and nobody is notified.
	Abort(ctx context.Context, lobbyID, reason string) (bool, error)
	// HardDelete removes the lobby with its participants and matches.
	HardDelete(ctx context.Context, lobbyID string, userID int64) error
}

type abortService struct {
	db           *sqlx.DB
	lobbies      repositories.LobbyRepository
	participants repositories.ParticipantRepository
	registry     *realtime.Registry
	archiver     BracketArchiver
	logger       *slog.Logger
	now          func() time.Time
}

func NewAbortService(
	db *sqlx.DB,
	lobbyRepo repositories.LobbyRepository,
	participantRepo repositories.ParticipantRepository,
	registry *realtime.Registry,
	archiver BracketArchiver,
	logger *slog.Logger,
) AbortService {
	return &abortService{
		db:           db,
		lobbies:      lobbyRepo,
		participants: participantRepo,
		registry:     registry,
		archiver:     archiver,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *abortService) Abort(ctx context.Context, lobbyID, reason string) (bool, error) {
	lobby, err := s.lobbies.GetByID(ctx, s.db, lobbyID)
	if err != nil {
		return false, mapLobbyErr(err)
	}
	if lobby.Status == models.LobbyFinished {
		return false, nil
	}

	var (
		cancelled    bool
		participants []*models.Participant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cancelled, err = s.lobbies.UpdateStatus(gctx, s.db, lobbyID, models.LobbyCancelled, s.now())
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.participants.ListByLobby(gctx, s.db, lobbyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	if !cancelled {
		// Lost a race: either another abort got there first or the final
		// match completed in between.
		current, err := s.lobbies.GetByID(ctx, s.db, lobbyID)
		if err != nil {
			return false, mapLobbyErr(err)
		}
		if current.Status != models.LobbyCancelled {
			return false, nil
		}
	}

	s.logger.WarnContext(ctx, "Tournament aborted",
		slog.String("lobby_id", lobbyID), slog.String("reason", reason), slog.Bool("cancelled_now", cancelled))
	s.notify(lobbyID, reason, participants)
	return cancelled, nil
}

// notify delivers tournament:aborted to lobby sockets, closing them, and
// then to participants' other sockets, which stay open.
func (s *abortService) notify(lobbyID, reason string, participants []*models.Participant) {
	msg := realtime.NewAborted(lobbyID, reason)

	reached := make(map[realtime.Socket]struct{})
	for _, sock := range s.registry.BroadcastLobby(lobbyID, msg) {
		reached[sock] = struct{}{}
		_ = sock.Close()
	}

	for _, p := range participants {
		var pending []realtime.Socket
		for _, sock := range s.registry.UserSockets(p.UserID) {
			if _, ok := reached[sock]; ok {
				continue
			}
			reached[sock] = struct{}{}
			pending = append(pending, sock)
		}
		realtime.SendAll(pending, msg)
	}
}

func (s *abortService) HardDelete(ctx context.Context, lobbyID string, userID int64) error {
	lobby, err := s.lobbies.GetByID(ctx, s.db, lobbyID)
	if err != nil {
		return mapLobbyErr(err)
	}
	if lobby.HostID != userID {
		return ErrNotLobbyHost
	}

	participants, err := s.participants.ListByLobby(ctx, s.db, lobbyID)
	if err != nil {
		return err
	}
	if err := s.lobbies.Delete(ctx, s.db, lobbyID); err != nil {
		if errors.Is(err, repositories.ErrLobbyNotFound) {
			return ErrLobbyNotFound
		}
		return err
	}

	s.logger.InfoContext(ctx, "Lobby deleted", slog.String("lobby_id", lobbyID), slog.Int64("user_id", userID))
	if lobby.Status.Active() {
		s.notify(lobbyID, AbortReasonDeleted, participants)
	}
	if s.archiver != nil {
		if err := s.archiver.Remove(ctx, lobbyID); err != nil {
			s.logger.WarnContext(ctx, "Failed to remove archived bracket", slog.String("lobby_id", lobbyID), slog.Any("error", err))
		}
	}
	return nil
}
