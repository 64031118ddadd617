package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournaments/models"
)

type fakeSocket struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeSocket(id string) *fakeSocket {
	return &fakeSocket{id: id}
}

func (f *fakeSocket) ID() string { return f.id }

func (f *fakeSocket) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrSocketClosed
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSocket) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, frame := range f.frames {
		t, _ := decodeType(frame)
		out = append(out, t)
	}
	return out
}

func (f *fakeSocket) last(t *testing.T, v interface{}) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.frames, "socket %s received nothing", f.id)
	require.NoError(t, json.Unmarshal(f.frames[len(f.frames)-1], v))
}

type mockRoomStore struct {
	mock.Mock
}

func (m *mockRoomStore) MatchForRoom(ctx context.Context, roomID string) (*models.Match, error) {
	args := m.Called(ctx, roomID)
	match, _ := args.Get(0).(*models.Match)
	return match, args.Error(1)
}

func (m *mockRoomStore) MarkRoomActive(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *mockRoomStore) MarkRoomFinished(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

func (m *mockRoomStore) RecordScore(ctx context.Context, roomID string, hostScore, guestScore int) error {
	return m.Called(ctx, roomID, hostScore, guestScore).Error(0)
}

func (m *mockRoomStore) LobbyEnded(ctx context.Context, lobbyID string) (bool, error) {
	args := m.Called(ctx, lobbyID)
	return args.Bool(0), args.Error(1)
}

type mockAborter struct {
	mock.Mock
}

func (m *mockAborter) Abort(ctx context.Context, lobbyID, reason string) (bool, error) {
	args := m.Called(ctx, lobbyID, reason)
	return args.Bool(0), args.Error(1)
}
