package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/jmoiron/sqlx"
)

var ErrParticipantNotFound = errors.New("participant not found")

type ParticipantRepository interface {
	// Add inserts the participant and reports false when the user is already
	// seated. Capacity is enforced by LobbyRepository.ClaimSeat.
	Add(ctx context.Context, exec SQLExecutor, participant *models.Participant) (bool, error)
	Get(ctx context.Context, exec SQLExecutor, lobbyID string, userID int64) (*models.Participant, error)
	ListByLobby(ctx context.Context, exec SQLExecutor, lobbyID string) ([]*models.Participant, error)
	Count(ctx context.Context, exec SQLExecutor, lobbyID string) (int, error)
}

type sqlParticipantRepository struct {
	db *sqlx.DB
}

func NewParticipantRepository(db *sqlx.DB) ParticipantRepository {
	return &sqlParticipantRepository{db: db}
}

func (r *sqlParticipantRepository) Add(ctx context.Context, exec SQLExecutor, participant *models.Participant) (bool, error) {
	query := `
		INSERT INTO lobby_participants (lobby_id, user_id, alias, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lobby_id, user_id) DO NOTHING`

	result, err := exec.ExecContext(ctx, query,
		participant.LobbyID,
		participant.UserID,
		participant.Alias,
		participant.JoinedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add participant %d to lobby %s: %w", participant.UserID, participant.LobbyID, err)
	}
	return affected(result)
}

func (r *sqlParticipantRepository) Get(ctx context.Context, exec SQLExecutor, lobbyID string, userID int64) (*models.Participant, error) {
	var p models.Participant
	err := sqlx.GetContext(ctx, exec, &p,
		`SELECT lobby_id, user_id, alias, joined_at FROM lobby_participants WHERE lobby_id = $1 AND user_id = $2`,
		lobbyID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get participant %d of lobby %s: %w", userID, lobbyID, err)
	}
	return &p, nil
}

// ListByLobby returns participants in join order, ties broken by user id.
func (r *sqlParticipantRepository) ListByLobby(ctx context.Context, exec SQLExecutor, lobbyID string) ([]*models.Participant, error) {
	participants := make([]*models.Participant, 0)
	err := sqlx.SelectContext(ctx, exec, &participants,
		`SELECT lobby_id, user_id, alias, joined_at FROM lobby_participants WHERE lobby_id = $1`,
		lobbyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants of lobby %s: %w", lobbyID, err)
	}

	// Sorted here rather than in SQL: SQLite compares timestamps as text.
	sort.SliceStable(participants, func(i, j int) bool {
		if !participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].JoinedAt.Before(participants[j].JoinedAt)
		}
		return participants[i].UserID < participants[j].UserID
	})
	return participants, nil
}

func (r *sqlParticipantRepository) Count(ctx context.Context, exec SQLExecutor, lobbyID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, `SELECT COUNT(*) FROM lobby_participants WHERE lobby_id = $1`, lobbyID); err != nil {
		return 0, fmt.Errorf("failed to count participants of lobby %s: %w", lobbyID, err)
	}
	return count, nil
}
