package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
)

// withTx runs fn in a transaction that is committed when fn returns nil and
// rolled back otherwise, including on panic.
func withTx(ctx context.Context, db *sqlx.DB, logger *slog.Logger, fn func(tx *sqlx.Tx) error) (txErr error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.ErrorContext(ctx, "Error during rollback", slog.Any("rollback_error", rbErr), slog.Any("error", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(tx)
	return txErr
}

// resolveAlias picks the label a participant carries into bracket slots.
func resolveAlias(mode models.AliasMode, custom, displayName string) (string, error) {
	var alias string
	switch mode {
	case models.AliasDisplayName, "":
		alias = strings.TrimSpace(displayName)
	case models.AliasCustom:
		alias = strings.TrimSpace(custom)
	default:
		return "", ErrInvalidAliasMode
	}
	if alias == "" {
		return "", ErrAliasRequired
	}
	if utf8.RuneCountInString(alias) > models.MaxAliasLength {
		return "", fmt.Errorf("%w: at most %d characters", ErrAliasTooLong, models.MaxAliasLength)
	}
	return alias, nil
}

// applyAdvancements persists the writes of one Propagate call. A match created
// by the call is inserted once with its final slots. When a sibling completion
// created that cell first, the slots are filled on the stored row instead.
func applyAdvancements(ctx context.Context, exec repositories.SQLExecutor, matches repositories.MatchRepository, writes []brackets.Advancement, at time.Time) error {
	inserted := make(map[string]bool)
	storedAs := make(map[string]string)
	for _, w := range writes {
		if inserted[w.Match.ID] {
			continue
		}

		id, ok := storedAs[w.Match.ID]
		if !ok {
			id = w.Match.ID
			if w.Created {
				created, err := matches.CreateIfAbsent(ctx, exec, w.Match)
				if err != nil {
					return err
				}
				if created {
					inserted[w.Match.ID] = true
					continue
				}
				existing, err := matches.GetCell(ctx, exec, w.Match.LobbyID, w.Match.Round, w.Match.MatchIndex)
				if err != nil {
					return err
				}
				storedAs[w.Match.ID] = existing.ID
				id = existing.ID
			}
		}

		if _, err := matches.FillSlot(ctx, exec, id, w.Slot, w.UserID, w.Alias, at); err != nil {
			return err
		}
	}
	return nil
}

func mapLobbyErr(err error) error {
	if errors.Is(err, repositories.ErrLobbyNotFound) {
		return ErrLobbyNotFound
	}
	return err
}

func mapMatchErr(err error) error {
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return ErrMatchNotFound
	}
	return err
}
