package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/presence"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
	"github.com/Dosada05/pong-tournaments/scheduler"
)

const (
	DefaultHostMigrationInterval = 5 * time.Second
	DefaultHostOfflineGrace      = 90 * time.Second
	DefaultHostHandoverDebounce  = 30 * time.Second
)

type HostMigrationConfig struct {
	Interval     time.Duration
	OfflineGrace time.Duration
	Debounce     time.Duration
}

func (c HostMigrationConfig) withDefaults() HostMigrationConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultHostMigrationInterval
	}
	if c.OfflineGrace <= 0 {
		c.OfflineGrace = DefaultHostOfflineGrace
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultHostHandoverDebounce
	}
	return c
}

type hostState int

const (
	hostAlive hostState = iota
	hostSuspected
	hostReplaced
)

func (s hostState) String() string {
	switch s {
	case hostAlive:
		return "alive"
	case hostSuspected:
		return "suspected"
	case hostReplaced:
		return "replaced"
	}
	return "unknown"
}

// hostWatch is the per-lobby leader liveness state machine.
type hostWatch struct {
	state       hostState
	hostID      int64
	since       time.Time
	lastAttempt time.Time
}

// observe feeds one presence reading and reports whether a handover should
// be attempted now.
func (w *hostWatch) observe(hostID int64, st presence.Status, now time.Time, cfg HostMigrationConfig) bool {
	if w.hostID != hostID {
		w.hostID = hostID
		w.state = hostAlive
		w.since = time.Time{}
	}

	if st.Online {
		w.state = hostAlive
		w.since = time.Time{}
		return false
	}

	if w.state != hostSuspected {
		w.state = hostSuspected
		w.since = now
		if !st.LastSeen.IsZero() && st.LastSeen.Before(now) {
			w.since = st.LastSeen
		}
	}

	if now.Sub(w.since) < cfg.OfflineGrace {
		return false
	}
	if !w.lastAttempt.IsZero() && now.Sub(w.lastAttempt) < cfg.Debounce {
		return false
	}
	w.lastAttempt = now
	return true
}

func (w *hostWatch) replaced(newHostID int64) {
	w.state = hostReplaced
	w.hostID = newHostID
	w.since = time.Time{}
}

// HostMigrationSweeper hands lobby leadership to an online participant when
// the host has been offline for longer than the grace period.
type HostMigrationSweeper struct {
	db           *sqlx.DB
	lobbies      repositories.LobbyRepository
	participants repositories.ParticipantRepository
	presence     presence.Source
	registry     *realtime.Registry
	cfg          HostMigrationConfig
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	watches map[string]*hostWatch
}

func NewHostMigrationSweeper(
	db *sqlx.DB,
	lobbyRepo repositories.LobbyRepository,
	participantRepo repositories.ParticipantRepository,
	source presence.Source,
	registry *realtime.Registry,
	cfg HostMigrationConfig,
	logger *slog.Logger,
) *HostMigrationSweeper {
	return &HostMigrationSweeper{
		db:           db,
		lobbies:      lobbyRepo,
		participants: participantRepo,
		presence:     source,
		registry:     registry,
		cfg:          cfg.withDefaults(),
		logger:       logger.With(slog.String("sweeper", "host_migration")),
		now:          func() time.Time { return time.Now().UTC() },
		watches:      make(map[string]*hostWatch),
	}
}

func (s *HostMigrationSweeper) Run(ctx context.Context) error {
	return scheduler.Every(ctx, s.cfg.Interval, "host_migration", s.logger, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	})
}

// Sweep runs one pass and returns how many lobbies changed host. A failing
// lobby is logged and skipped.
func (s *HostMigrationSweeper) Sweep(ctx context.Context) (int, error) {
	lobbies, err := s.lobbies.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[string]struct{}, len(lobbies))
	handovers := 0
	for _, lobby := range lobbies {
		active[lobby.ID] = struct{}{}
		moved, err := s.sweepLobby(ctx, lobby)
		if err != nil {
			s.logger.ErrorContext(ctx, "Host migration failed for lobby", slog.String("lobby_id", lobby.ID), slog.Any("error", err))
			continue
		}
		if moved {
			handovers++
		}
	}

	for id := range s.watches {
		if _, ok := active[id]; !ok {
			delete(s.watches, id)
		}
	}
	return handovers, nil
}

func (s *HostMigrationSweeper) sweepLobby(ctx context.Context, lobby *models.Lobby) (bool, error) {
	st, err := s.presence.Status(ctx, lobby.HostID)
	if err != nil {
		return false, fmt.Errorf("presence of host %d: %w", lobby.HostID, err)
	}

	w, ok := s.watches[lobby.ID]
	if !ok {
		w = &hostWatch{hostID: lobby.HostID}
		s.watches[lobby.ID] = w
	}

	now := s.now()
	if !w.observe(lobby.HostID, st, now, s.cfg) {
		return false, nil
	}

	successor, err := s.pickSuccessor(ctx, lobby)
	if err != nil {
		return false, err
	}
	if successor == nil {
		s.logger.InfoContext(ctx, "Host offline but no online participant to take over", slog.String("lobby_id", lobby.ID))
		return false, nil
	}

	ok, err = s.lobbies.ReassignHost(ctx, s.db, lobby.ID, lobby.HostID, successor.UserID, now)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	w.replaced(successor.UserID)

	s.logger.InfoContext(ctx, "Lobby host handed over",
		slog.String("lobby_id", lobby.ID),
		slog.Int64("previous_host_id", lobby.HostID),
		slog.Int64("new_host_id", successor.UserID))
	s.registry.Broadcast(realtime.NewHostHandover(lobby.ID, lobby.HostID, successor.UserID, successor.Alias))
	return true, nil
}

// pickSuccessor returns the earliest-joined online participant other than
// the host. Participants arrive ordered by join time then user id.
func (s *HostMigrationSweeper) pickSuccessor(ctx context.Context, lobby *models.Lobby) (*models.Participant, error) {
	participants, err := s.participants.ListByLobby(ctx, s.db, lobby.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		if p.UserID == lobby.HostID {
			continue
		}
		st, err := s.presence.Status(ctx, p.UserID)
		if err != nil {
			s.logger.WarnContext(ctx, "Presence lookup failed", slog.Int64("user_id", p.UserID), slog.Any("error", err))
			continue
		}
		if st.Online {
			return p, nil
		}
	}
	return nil, nil
}
