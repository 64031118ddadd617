package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
)

// BracketArchiver stores the final snapshot of finished lobbies.
type BracketArchiver interface {
	Archive(ctx context.Context, lobbyID string, snapshot interface{}) (string, error)
	Remove(ctx context.Context, lobbyID string) error
}

type CompletionResult struct {
	OK            bool   `json:"ok"`
	Updated       bool   `json:"updated"`
	WinnerUserID  *int64 `json:"winner_user_id,omitempty"`
	LobbyFinished bool   `json:"lobby_finished"`
}

type MatchService interface {
	// Complete records a match result. Reporting an already decided match is
	// a successful no-op with Updated false.
	Complete(ctx context.Context, lobbyID, matchID string, report CompletionReport) (*CompletionResult, error)
}

type matchService struct {
	db           *sqlx.DB
	lobbies      repositories.LobbyRepository
	participants repositories.ParticipantRepository
	matches      repositories.MatchRepository
	rooms        repositories.RoomRepository
	resolver     *MatchResolver
	registry     *realtime.Registry
	archiver     BracketArchiver
	logger       *slog.Logger
	now          func() time.Time
}

// NewMatchService accepts a nil archiver when object storage is not configured.
func NewMatchService(
	db *sqlx.DB,
	lobbyRepo repositories.LobbyRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	roomRepo repositories.RoomRepository,
	resolver *MatchResolver,
	registry *realtime.Registry,
	archiver BracketArchiver,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:           db,
		lobbies:      lobbyRepo,
		participants: participantRepo,
		matches:      matchRepo,
		rooms:        roomRepo,
		resolver:     resolver,
		registry:     registry,
		archiver:     archiver,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *matchService) Complete(ctx context.Context, lobbyID, matchID string, report CompletionReport) (*CompletionResult, error) {
	result := &CompletionResult{OK: true}
	logger := s.logger.With(slog.String("lobby_id", lobbyID), slog.String("match_id", matchID))

	err := withTx(ctx, s.db, s.logger, func(tx *sqlx.Tx) error {
		lobby, err := s.lobbies.GetByID(ctx, tx, lobbyID)
		if err != nil {
			return mapLobbyErr(err)
		}
		match, err := s.matches.GetInLobby(ctx, tx, lobbyID, matchID)
		if err != nil {
			return mapMatchErr(err)
		}

		if match.Resolved() {
			result.WinnerUserID = match.WinnerUserID
			return nil
		}
		if lobby.Status != models.LobbyStarted {
			return ErrLobbyNotStarted
		}
		if !match.Ready() {
			return ErrMatchNotReady
		}

		ev := ResolutionEvidence{Match: match, Report: report}
		if match.RoomID != nil {
			if ev.Room, err = s.rooms.GetByID(ctx, tx, *match.RoomID); err != nil && !errors.Is(err, repositories.ErrRoomNotFound) {
				return err
			}
			score, err := s.rooms.LatestScore(ctx, tx, *match.RoomID)
			if err != nil && !errors.Is(err, repositories.ErrScoreNotFound) {
				return err
			}
			ev.StoredScore = score
		}

		winner, strategy, err := s.resolver.Resolve(ev)
		if err != nil {
			return err
		}

		now := s.now()
		updated, err := s.matches.Finish(ctx, tx, matchID, winner, now)
		if err != nil {
			return err
		}
		if !updated {
			current, err := s.matches.GetByID(ctx, tx, matchID)
			if err != nil {
				return mapMatchErr(err)
			}
			result.WinnerUserID = current.WinnerUserID
			return nil
		}
		result.Updated = true
		result.WinnerUserID = &winner
		logger.InfoContext(ctx, "Match completed", slog.Int64("winner_user_id", winner), slog.String("resolved_by", strategy))

		cells, err := s.matches.ListByLobby(ctx, tx, lobbyID)
		if err != nil {
			return err
		}
		bracket := brackets.NewBracket(lobbyID, lobby.Size, cells)
		finished := bracket.Get(match.Round, match.MatchIndex)
		if finished == nil || !finished.Resolved() {
			return ErrMatchNotFound
		}

		writes, err := bracket.Propagate(now, finished)
		if err != nil {
			return err
		}
		if err := applyAdvancements(ctx, tx, s.matches, writes, now); err != nil {
			return err
		}

		if match.RoomID != nil {
			if _, err := s.rooms.MarkFinished(ctx, tx, *match.RoomID, now); err != nil {
				return err
			}
		}

		if _, ok := bracket.Champion(); ok {
			if result.LobbyFinished, err = s.lobbies.UpdateStatus(ctx, tx, lobbyID, models.LobbyFinished, now); err != nil {
				return err
			}
			return nil
		}
		return s.lobbies.Touch(ctx, tx, lobbyID, now)
	})
	if err != nil {
		return nil, err
	}

	if result.Updated {
		status := models.LobbyStarted
		if result.LobbyFinished {
			status = models.LobbyFinished
			logger.InfoContext(ctx, "Tournament finished", slog.Int64("champion_user_id", *result.WinnerUserID))
			s.archive(ctx, lobbyID)
		}
		s.registry.BroadcastLobby(lobbyID, realtime.NewUpdated(lobbyID, status))
	}
	return result, nil
}

// archive uploads the final bracket. Failures are only logged.
func (s *matchService) archive(ctx context.Context, lobbyID string) {
	if s.archiver == nil {
		return
	}
	snapshot, err := loadSnapshot(ctx, s.db, s.lobbies, s.participants, s.matches, lobbyID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load snapshot for archive", slog.String("lobby_id", lobbyID), slog.Any("error", err))
		return
	}
	location, err := s.archiver.Archive(ctx, lobbyID, snapshot)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to archive bracket", slog.String("lobby_id", lobbyID), slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "Bracket archived", slog.String("lobby_id", lobbyID), slog.String("location", location))
}
