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
	ErrLobbyNotFound          = errors.New("lobby not found")
	ErrLobbyStatusUnsupported = errors.New("unsupported lobby status transition")
)

const lobbyColumns = `id, host_id, size, seats_taken, status, created_at, started_at, finished_at, last_activity_at, host_changed_at`

type LobbyRepository interface {
	Create(ctx context.Context, exec SQLExecutor, lobby *models.Lobby) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Lobby, error)
	ListActive(ctx context.Context) ([]*models.Lobby, error)
	ClaimSeat(ctx context.Context, exec SQLExecutor, id string) (bool, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id string, to models.LobbyStatus, at time.Time) (bool, error)
	ReassignHost(ctx context.Context, exec SQLExecutor, id string, fromHostID, toHostID int64, at time.Time) (bool, error)
	Touch(ctx context.Context, exec SQLExecutor, id string, at time.Time) error
	Delete(ctx context.Context, exec SQLExecutor, id string) error
}

type sqlLobbyRepository struct {
	db *sqlx.DB
}

func NewLobbyRepository(db *sqlx.DB) LobbyRepository {
	return &sqlLobbyRepository{db: db}
}

func (r *sqlLobbyRepository) Create(ctx context.Context, exec SQLExecutor, lobby *models.Lobby) error {
	query := `
		INSERT INTO lobbies (` + lobbyColumns + `)
		VALUES (:id, :host_id, :size, :seats_taken, :status, :created_at, :started_at, :finished_at, :last_activity_at, :host_changed_at)`

	if _, err := sqlx.NamedExecContext(ctx, exec, query, lobby); err != nil {
		return fmt.Errorf("failed to insert lobby %s: %w", lobby.ID, err)
	}
	return nil
}

func (r *sqlLobbyRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Lobby, error) {
	var lobby models.Lobby
	err := sqlx.GetContext(ctx, exec, &lobby, `SELECT `+lobbyColumns+` FROM lobbies WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLobbyNotFound
		}
		return nil, fmt.Errorf("failed to get lobby %s: %w", id, err)
	}
	return &lobby, nil
}

// ListActive returns every lobby the sweepers may act on.
func (r *sqlLobbyRepository) ListActive(ctx context.Context) ([]*models.Lobby, error) {
	lobbies := make([]*models.Lobby, 0)
	err := r.db.SelectContext(ctx, &lobbies,
		`SELECT `+lobbyColumns+` FROM lobbies WHERE status IN ($1, $2) ORDER BY id`,
		models.LobbyWaiting, models.LobbyStarted)
	if err != nil {
		return nil, fmt.Errorf("failed to list active lobbies: %w", err)
	}
	return lobbies, nil
}

// ClaimSeat takes one seat of a waiting lobby that still has room. The UPDATE
// locks the lobby row, so concurrent joiners for the last seat are ordered
// and only one of them sees a row affected. Callers insert the participant in
// the same transaction.
func (r *sqlLobbyRepository) ClaimSeat(ctx context.Context, exec SQLExecutor, id string) (bool, error) {
	query := `
		UPDATE lobbies SET seats_taken = seats_taken + 1
		WHERE id = $1 AND status = 'waiting' AND seats_taken < size`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim a seat in lobby %s: %w", id, err)
	}
	return affected(result)
}

// UpdateStatus is a conditional update: the WHERE clause admits only the legal
// predecessors of the target status, so a lobby can never regress. It reports
// whether a row actually changed.
func (r *sqlLobbyRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id string, to models.LobbyStatus, at time.Time) (bool, error) {
	var query string
	switch to {
	case models.LobbyStarted:
		query = `UPDATE lobbies SET status = $1, started_at = $2, last_activity_at = $2
			WHERE id = $3 AND status = 'waiting'`
	case models.LobbyFinished:
		query = `UPDATE lobbies SET status = $1, finished_at = $2, last_activity_at = $2
			WHERE id = $3 AND status = 'started'`
	case models.LobbyCancelled:
		query = `UPDATE lobbies SET status = $1, last_activity_at = $2
			WHERE id = $3 AND status IN ('waiting', 'started')`
	default:
		return false, fmt.Errorf("%w: -> %s", ErrLobbyStatusUnsupported, to)
	}

	result, err := exec.ExecContext(ctx, query, to, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to move lobby %s to %s: %w", id, to, err)
	}
	return affected(result)
}

func (r *sqlLobbyRepository) ReassignHost(ctx context.Context, exec SQLExecutor, id string, fromHostID, toHostID int64, at time.Time) (bool, error) {
	query := `
		UPDATE lobbies SET host_id = $1, host_changed_at = $2
		WHERE id = $3 AND host_id = $4 AND status IN ('waiting', 'started')`

	result, err := exec.ExecContext(ctx, query, toHostID, at, id, fromHostID)
	if err != nil {
		return false, fmt.Errorf("failed to reassign host of lobby %s: %w", id, err)
	}
	return affected(result)
}

func (r *sqlLobbyRepository) Touch(ctx context.Context, exec SQLExecutor, id string, at time.Time) error {
	result, err := exec.ExecContext(ctx, `UPDATE lobbies SET last_activity_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to touch lobby %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrLobbyNotFound)
}

// Delete removes the lobby; participants and matches cascade.
func (r *sqlLobbyRepository) Delete(ctx context.Context, exec SQLExecutor, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM lobbies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lobby %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrLobbyNotFound)
}
