package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/jmoiron/sqlx"
)

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchCellTaken = errors.New("bracket cell already exists")
)

const matchColumns = `id, lobby_id, round, match_index, p1_user_id, p1_alias, p2_user_id, p2_alias,
	room_id, status, winner_user_id, created_at, updated_at`

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	CreateIfAbsent(ctx context.Context, exec SQLExecutor, match *models.Match) (bool, error)
	GetCell(ctx context.Context, exec SQLExecutor, lobbyID string, round, index int) (*models.Match, error)
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Match, error)
	GetInLobby(ctx context.Context, exec SQLExecutor, lobbyID, id string) (*models.Match, error)
	ListByLobby(ctx context.Context, exec SQLExecutor, lobbyID string) ([]*models.Match, error)
	FindByRoomID(ctx context.Context, exec SQLExecutor, roomID string) (*models.Match, error)
	FillSlot(ctx context.Context, exec SQLExecutor, id string, slot models.Slot, userID int64, alias string, at time.Time) (bool, error)
	AssignRoom(ctx context.Context, exec SQLExecutor, id, roomID string, at time.Time) (bool, error)
	Finish(ctx context.Context, exec SQLExecutor, id string, winnerUserID int64, at time.Time) (bool, error)
	HasActive(ctx context.Context, exec SQLExecutor, lobbyID string) (bool, error)
}

type sqlMatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) MatchRepository {
	return &sqlMatchRepository{db: db}
}

func (r *sqlMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO lobby_matches (` + matchColumns + `)
		VALUES (:id, :lobby_id, :round, :match_index, :p1_user_id, :p1_alias, :p2_user_id, :p2_alias,
			:room_id, :status, :winner_user_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, exec, query, match); err != nil {
		if isUniqueViolation(err, "lobby_matches_cell_key") {
			return ErrMatchCellTaken
		}
		return fmt.Errorf("failed to insert match r%d/%d of lobby %s: %w", match.Round, match.MatchIndex, match.LobbyID, err)
	}
	return nil
}

// CreateIfAbsent inserts the match unless its (round, index) cell already
// exists in the lobby. It reports whether a row was inserted.
func (r *sqlMatchRepository) CreateIfAbsent(ctx context.Context, exec SQLExecutor, match *models.Match) (bool, error) {
	query := `
		INSERT INTO lobby_matches (` + matchColumns + `)
		VALUES (:id, :lobby_id, :round, :match_index, :p1_user_id, :p1_alias, :p2_user_id, :p2_alias,
			:room_id, :status, :winner_user_id, :created_at, :updated_at)
		ON CONFLICT (lobby_id, round, match_index) DO NOTHING`

	result, err := sqlx.NamedExecContext(ctx, exec, query, match)
	if err != nil {
		return false, fmt.Errorf("failed to insert match r%d/%d of lobby %s: %w", match.Round, match.MatchIndex, match.LobbyID, err)
	}
	return affected(result)
}

func (r *sqlMatchRepository) GetCell(ctx context.Context, exec SQLExecutor, lobbyID string, round, index int) (*models.Match, error) {
	return r.getOne(ctx, exec,
		`SELECT `+matchColumns+` FROM lobby_matches WHERE lobby_id = $1 AND round = $2 AND match_index = $3`,
		lobbyID, round, index)
}

func (r *sqlMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Match, error) {
	return r.getOne(ctx, exec, `SELECT `+matchColumns+` FROM lobby_matches WHERE id = $1`, id)
}

// GetInLobby fails with ErrMatchNotFound when the match belongs to another lobby.
func (r *sqlMatchRepository) GetInLobby(ctx context.Context, exec SQLExecutor, lobbyID, id string) (*models.Match, error) {
	return r.getOne(ctx, exec, `SELECT `+matchColumns+` FROM lobby_matches WHERE id = $1 AND lobby_id = $2`, id, lobbyID)
}

func (r *sqlMatchRepository) FindByRoomID(ctx context.Context, exec SQLExecutor, roomID string) (*models.Match, error) {
	return r.getOne(ctx, exec, `SELECT `+matchColumns+` FROM lobby_matches WHERE room_id = $1`, roomID)
}

func (r *sqlMatchRepository) getOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Match, error) {
	var match models.Match
	if err := sqlx.GetContext(ctx, exec, &match, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &match, nil
}

func (r *sqlMatchRepository) ListByLobby(ctx context.Context, exec SQLExecutor, lobbyID string) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	err := sqlx.SelectContext(ctx, exec, &matches,
		`SELECT `+matchColumns+` FROM lobby_matches WHERE lobby_id = $1 ORDER BY round, match_index`,
		lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of lobby %s: %w", lobbyID, err)
	}
	return matches, nil
}

// FillSlot writes a participant into an empty slot. It reports false when the
// slot was already taken.
func (r *sqlMatchRepository) FillSlot(ctx context.Context, exec SQLExecutor, id string, slot models.Slot, userID int64, alias string, at time.Time) (bool, error) {
	var query string
	switch slot {
	case models.SlotP1:
		query = `UPDATE lobby_matches SET p1_user_id = $1, p1_alias = $2, updated_at = $3 WHERE id = $4 AND p1_user_id IS NULL`
	case models.SlotP2:
		query = `UPDATE lobby_matches SET p2_user_id = $1, p2_alias = $2, updated_at = $3 WHERE id = $4 AND p2_user_id IS NULL`
	default:
		return false, fmt.Errorf("unknown slot %q", slot)
	}

	result, err := exec.ExecContext(ctx, query, userID, alias, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to fill slot %s of match %s: %w", slot, id, err)
	}
	return affected(result)
}

// AssignRoom links a room once. The match becomes active at the same time.
func (r *sqlMatchRepository) AssignRoom(ctx context.Context, exec SQLExecutor, id, roomID string, at time.Time) (bool, error) {
	query := `
		UPDATE lobby_matches SET room_id = $1, status = 'active', updated_at = $2
		WHERE id = $3 AND room_id IS NULL AND status <> 'finished'`

	result, err := exec.ExecContext(ctx, query, roomID, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to assign room %s to match %s: %w", roomID, id, err)
	}
	return affected(result)
}

// Finish is the completion guard: a match that is already finished with a
// winner is left untouched and false is returned.
func (r *sqlMatchRepository) Finish(ctx context.Context, exec SQLExecutor, id string, winnerUserID int64, at time.Time) (bool, error) {
	query := `
		UPDATE lobby_matches SET status = 'finished', winner_user_id = $1, updated_at = $2
		WHERE id = $3 AND NOT (status = 'finished' AND winner_user_id IS NOT NULL)`

	result, err := exec.ExecContext(ctx, query, winnerUserID, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to finish match %s: %w", id, err)
	}
	return affected(result)
}

func (r *sqlMatchRepository) HasActive(ctx context.Context, exec SQLExecutor, lobbyID string) (bool, error) {
	var count int
	err := sqlx.GetContext(ctx, exec, &count,
		`SELECT COUNT(*) FROM lobby_matches WHERE lobby_id = $1 AND status = 'active'`, lobbyID)
	if err != nil {
		return false, fmt.Errorf("failed to check active matches of lobby %s: %w", lobbyID, err)
	}
	return count > 0, nil
}
