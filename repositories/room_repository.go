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
	ErrRoomNotFound  = errors.New("game room not found")
	ErrScoreNotFound = errors.New("no score reported for room")
)

type RoomRepository interface {
	Create(ctx context.Context, exec SQLExecutor, room *models.GameRoom) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.GameRoom, error)
	MarkActive(ctx context.Context, exec SQLExecutor, id string) (bool, error)
	MarkFinished(ctx context.Context, exec SQLExecutor, id string, at time.Time) (bool, error)
	AddScore(ctx context.Context, exec SQLExecutor, score *models.GameScore) error
	LatestScore(ctx context.Context, exec SQLExecutor, roomID string) (*models.GameScore, error)
}

type sqlRoomRepository struct {
	db *sqlx.DB
}

func NewRoomRepository(db *sqlx.DB) RoomRepository {
	return &sqlRoomRepository{db: db}
}

func (r *sqlRoomRepository) Create(ctx context.Context, exec SQLExecutor, room *models.GameRoom) error {
	query := `
		INSERT INTO game_rooms (id, host_id, guest_id, status, created_at, finished_at)
		VALUES (:id, :host_id, :guest_id, :status, :created_at, :finished_at)`

	if _, err := sqlx.NamedExecContext(ctx, exec, query, room); err != nil {
		return fmt.Errorf("failed to insert game room %s: %w", room.ID, err)
	}
	return nil
}

func (r *sqlRoomRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.GameRoom, error) {
	var room models.GameRoom
	err := sqlx.GetContext(ctx, exec, &room,
		`SELECT id, host_id, guest_id, status, created_at, finished_at FROM game_rooms WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get game room %s: %w", id, err)
	}
	return &room, nil
}

func (r *sqlRoomRepository) MarkActive(ctx context.Context, exec SQLExecutor, id string) (bool, error) {
	result, err := exec.ExecContext(ctx, `UPDATE game_rooms SET status = 'active' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to activate game room %s: %w", id, err)
	}
	return affected(result)
}

func (r *sqlRoomRepository) MarkFinished(ctx context.Context, exec SQLExecutor, id string, at time.Time) (bool, error) {
	result, err := exec.ExecContext(ctx,
		`UPDATE game_rooms SET status = 'finished', finished_at = $1 WHERE id = $2 AND status <> 'finished'`, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to finish game room %s: %w", id, err)
	}
	return affected(result)
}

func (r *sqlRoomRepository) AddScore(ctx context.Context, exec SQLExecutor, score *models.GameScore) error {
	query := `
		INSERT INTO game_scores (id, room_id, host_score, guest_score, created_at)
		VALUES (:id, :room_id, :host_score, :guest_score, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, exec, query, score); err != nil {
		return fmt.Errorf("failed to insert score for room %s: %w", score.RoomID, err)
	}
	return nil
}

// LatestScore returns the most recently reported score. Rows are compared in
// Go because SQLite stores timestamps as text.
func (r *sqlRoomRepository) LatestScore(ctx context.Context, exec SQLExecutor, roomID string) (*models.GameScore, error) {
	scores := make([]*models.GameScore, 0)
	err := sqlx.SelectContext(ctx, exec, &scores,
		`SELECT id, room_id, host_score, guest_score, created_at FROM game_scores WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores of room %s: %w", roomID, err)
	}
	if len(scores) == 0 {
		return nil, ErrScoreNotFound
	}

	latest := scores[0]
	for _, s := range scores[1:] {
		if s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return latest, nil
}
