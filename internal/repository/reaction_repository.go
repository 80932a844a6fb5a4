package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/workhub-api/internal/models"
)

// DefaultReactionEmoji is stored when the caller does not pick one.
const DefaultReactionEmoji = "👍"

// ReactionRepository persists announcement reactions.
type ReactionRepository struct {
	db *sqlx.DB
}

// NewReactionRepository creates the repository.
func NewReactionRepository(db *sqlx.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Toggle removes the user's reaction when present, otherwise inserts one.
// It reports whether the user has reacted afterwards.
func (r *ReactionRepository) Toggle(ctx context.Context, announcementID, userID, emoji string) (bool, error) {
	if emoji == "" {
		emoji = DefaultReactionEmoji
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin toggle reaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existing string
	err = tx.GetContext(ctx, &existing, `SELECT id FROM announcement_reactions WHERE announcement_id = $1 AND user_id = $2 LIMIT 1`, announcementID, userID)
	switch {
	case err == nil:
		if _, err = tx.ExecContext(ctx, `DELETE FROM announcement_reactions WHERE announcement_id = $1 AND user_id = $2`, announcementID, userID); err != nil {
			return false, fmt.Errorf("delete reaction: %w", err)
		}
		if err = tx.Commit(); err != nil {
			return false, fmt.Errorf("commit toggle reaction: %w", err)
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("find reaction: %w", err)
	}

	reaction := models.Reaction{
		ID:             uuid.NewString(),
		AnnouncementID: announcementID,
		UserID:         userID,
		Emoji:          emoji,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err = tx.NamedExecContext(ctx, `INSERT INTO announcement_reactions (id, announcement_id, user_id, emoji, created_at)
VALUES (:id, :announcement_id, :user_id, :emoji, :created_at)`, &reaction); err != nil {
		return false, fmt.Errorf("insert reaction: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit toggle reaction: %w", err)
	}
	return true, nil
}
