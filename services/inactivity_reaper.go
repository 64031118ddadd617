package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dosada05/pong-tournaments/repositories"
	"github.com/Dosada05/pong-tournaments/scheduler"
)

const (
	DefaultReaperInterval      = 30 * time.Second
	DefaultInactivityThreshold = 5 * time.Minute
)

// InactivityReaper aborts lobbies that have been idle past the threshold and
// are not in the middle of a game.
type InactivityReaper struct {
	db        *sqlx.DB
	lobbies   repositories.LobbyRepository
	matches   repositories.MatchRepository
	aborter   AbortService
	interval  time.Duration
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewInactivityReaper(
	db *sqlx.DB,
	lobbyRepo repositories.LobbyRepository,
	matchRepo repositories.MatchRepository,
	aborter AbortService,
	interval, threshold time.Duration,
	logger *slog.Logger,
) *InactivityReaper {
	if interval <= 0 {
		interval = DefaultReaperInterval
	}
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}
	return &InactivityReaper{
		db:        db,
		lobbies:   lobbyRepo,
		matches:   matchRepo,
		aborter:   aborter,
		interval:  interval,
		threshold: threshold,
		logger:    logger.With(slog.String("sweeper", "inactivity_reaper")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *InactivityReaper) Run(ctx context.Context) error {
	return scheduler.Every(ctx, r.interval, "inactivity_reaper", r.logger, func(ctx context.Context) error {
		_, err := r.Sweep(ctx)
		return err
	})
}

// Sweep runs one pass and returns how many lobbies were aborted.
func (r *InactivityReaper) Sweep(ctx context.Context) (int, error) {
	lobbies, err := r.lobbies.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-r.threshold)
	reaped := 0
	for _, lobby := range lobbies {
		if !lobby.LastActivityAt.Before(cutoff) {
			continue
		}
		busy, err := r.matches.HasActive(ctx, r.db, lobby.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to check active matches", slog.String("lobby_id", lobby.ID), slog.Any("error", err))
			continue
		}
		if busy {
			continue
		}

		cancelled, err := r.aborter.Abort(ctx, lobby.ID, AbortReasonInactive)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to reap idle lobby", slog.String("lobby_id", lobby.ID), slog.Any("error", err))
			continue
		}
		if cancelled {
			reaped++
			r.logger.InfoContext(ctx, "Idle lobby reaped",
				slog.String("lobby_id", lobby.ID), slog.Time("last_activity_at", lobby.LastActivityAt))
		}
	}
	return reaped, nil
}
