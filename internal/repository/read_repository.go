package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/workhub-api/internal/models"
)

// ReadRepository persists read receipts.
type ReadRepository struct {
	db *sqlx.DB
}

// NewReadRepository creates the repository.
func NewReadRepository(db *sqlx.DB) *ReadRepository {
	return &ReadRepository{db: db}
}

// MarkRead records that the user viewed the announcement. Repeated calls are no-ops.
func (r *ReadRepository) MarkRead(ctx context.Context, announcementID, userID string) error {
	receipt := models.ReadReceipt{
		ID:             uuid.NewString(),
		AnnouncementID: announcementID,
		UserID:         userID,
		ReadAt:         time.Now().UTC(),
	}
	const query = `INSERT INTO announcement_reads (id, announcement_id, user_id, read_at)
VALUES (:id, :announcement_id, :user_id, :read_at)
ON CONFLICT (announcement_id, user_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, &receipt); err != nil {
		return fmt.Errorf("mark announcement read: %w", err)
	}
	return nil
}
