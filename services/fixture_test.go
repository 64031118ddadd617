package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/db/dbtest"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
)

var base = time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	db        *sqlx.DB
	lobbyRepo repositories.LobbyRepository
	partRepo  repositories.ParticipantRepository
	matchRepo repositories.MatchRepository
	roomRepo  repositories.RoomRepository
	registry  *realtime.Registry
	archiver  *mockArchiver
	lobbies   *lobbyService
	matches   *matchService
	aborts    *abortService
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		db:        database,
		lobbyRepo: repositories.NewLobbyRepository(database),
		partRepo:  repositories.NewParticipantRepository(database),
		matchRepo: repositories.NewMatchRepository(database),
		roomRepo:  repositories.NewRoomRepository(database),
		registry:  realtime.NewRegistry(),
		archiver:  &mockArchiver{},
		clock:     base,
	}
	now := func() time.Time { return f.clock }

	f.lobbies = NewLobbyService(database, f.lobbyRepo, f.partRepo, f.matchRepo, f.roomRepo, f.registry, logger).(*lobbyService)
	f.lobbies.now = now
	f.lobbies.shuffle = func([]*models.Participant) {}

	f.matches = NewMatchService(database, f.lobbyRepo, f.partRepo, f.matchRepo, f.roomRepo,
		NewMatchResolver(), f.registry, f.archiver, logger).(*matchService)
	f.matches.now = now

	f.aborts = NewAbortService(database, f.lobbyRepo, f.partRepo, f.registry, f.archiver, logger).(*abortService)
	f.aborts.now = now
	return f
}

func player(id int64, name string) Player {
	return Player{UserID: id, DisplayName: name}
}

// openLobby creates a lobby hosted by user 1 and seats users 2..n in order.
func (f *fixture) openLobby(t *testing.T, size, n int) string {
	t.Helper()
	ctx := context.Background()
	names := []string{"", "A", "B", "C", "D", "E", "F", "G", "H"}

	lobby, err := f.lobbies.Create(ctx, player(1, names[1]), CreateLobbyInput{Size: size, AliasMode: models.AliasDisplayName})
	require.NoError(t, err)
	for id := 2; id <= n; id++ {
		f.clock = f.clock.Add(time.Second)
		require.NoError(t, f.lobbies.Join(ctx, lobby.ID, player(int64(id), names[id]), JoinLobbyInput{AliasMode: models.AliasDisplayName}))
	}
	return lobby.ID
}

func (f *fixture) startedLobby(t *testing.T, n int) (string, *Snapshot) {
	t.Helper()
	id := f.openLobby(t, n, n)
	snap, err := f.lobbies.Start(context.Background(), id, 1)
	require.NoError(t, err)
	return id, snap
}

func (f *fixture) lobbyStatus(t *testing.T, id string) models.LobbyStatus {
	t.Helper()
	lobby, err := f.lobbyRepo.GetByID(context.Background(), f.db, id)
	require.NoError(t, err)
	return lobby.Status
}

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) Archive(ctx context.Context, lobbyID string, snapshot interface{}) (string, error) {
	args := m.Called(ctx, lobbyID, snapshot)
	return args.String(0), args.Error(1)
}

func (m *mockArchiver) Remove(ctx context.Context, lobbyID string) error {
	return m.Called(ctx, lobbyID).Error(0)
}

type fakeSocket struct {
	id     string
	mu     sync.Mutex
	frames []string
	closed bool
}

func (s *fakeSocket) ID() string { return s.id }

func (s *fakeSocket) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return realtime.ErrSocketClosed
	}
	s.frames = append(s.frames, string(data))
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
