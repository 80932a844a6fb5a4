package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/workhub-api/internal/models"
)

const selectAnnouncementRows = `SELECT a.id, a.title, a.content, a.author_id, a.category_id, a.is_important, a.is_pinned, a.status,
(a.expires_at IS NOT NULL AND a.expires_at <= NOW()) AS is_expired,
(SELECT COUNT(*) FROM announcement_comments c WHERE c.announcement_id = a.id) AS comment_count,
a.created_at
FROM announcements a`

// AnnouncementRepository assembles announcement records from their tables.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// ListRecords performs the full fetch: the base rows followed by author,
// category, attachments, reactions and read receipts for each item.
func (r *AnnouncementRepository) ListRecords(ctx context.Context) ([]models.AnnouncementRecord, error) {
	var rows []models.AnnouncementRow
	if err := r.db.SelectContext(ctx, &rows, selectAnnouncementRows+" ORDER BY a.created_at DESC"); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	records := make([]models.AnnouncementRecord, 0, len(rows))
	for _, row := range rows {
		record, err := r.assemble(ctx, row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// GetRecord loads a single record. It returns sql.ErrNoRows when absent.
func (r *AnnouncementRepository) GetRecord(ctx context.Context, id string) (*models.AnnouncementRecord, error) {
	var row models.AnnouncementRow
	if err := r.db.GetContext(ctx, &row, selectAnnouncementRows+" WHERE a.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get announcement: %w", err)
	}
	record, err := r.assemble(ctx, row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SetPinned flips the pinned flag.
func (r *AnnouncementRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE announcements SET is_pinned = $2, updated_at = NOW() WHERE id = $1`, id, pinned)
	if err != nil {
		return fmt.Errorf("pin announcement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check pin rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *AnnouncementRepository) assemble(ctx context.Context, row models.AnnouncementRow) (models.AnnouncementRecord, error) {
	record := models.AnnouncementRecord{
		ID:           row.ID,
		Title:        row.Title,
		Content:      row.Content,
		AuthorID:     row.AuthorID,
		CreatedAt:    row.CreatedAt,
		IsImportant:  row.IsImportant,
		IsPinned:     row.IsPinned,
		Status:       row.Status,
		IsExpired:    row.IsExpired,
		CommentCount: row.CommentCount,
	}

	var author models.Profile
	err := r.db.GetContext(ctx, &author, `SELECT id, full_name, avatar_url FROM profiles WHERE id = $1`, row.AuthorID)
	switch {
	case err == nil:
		record.AuthorName = author.FullName
	case !errors.Is(err, sql.ErrNoRows):
		return record, fmt.Errorf("get author %s: %w", row.AuthorID, err)
	}

	if row.CategoryID != nil && *row.CategoryID != "" {
		record.CategoryID = *row.CategoryID
		var category models.Category
		err := r.db.GetContext(ctx, &category, `SELECT id, name, color FROM announcement_categories WHERE id = $1`, *row.CategoryID)
		switch {
		case err == nil:
			record.Category = &category
		case !errors.Is(err, sql.ErrNoRows):
			return record, fmt.Errorf("get category %s: %w", *row.CategoryID, err)
		}
	}

	const attachmentsQuery = `SELECT id, announcement_id, file_name, file_path, mime_type, size_bytes, created_at
FROM announcement_attachments WHERE announcement_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &record.Attachments, attachmentsQuery, row.ID); err != nil {
		return record, fmt.Errorf("list attachments: %w", err)
	}
	if err := r.db.SelectContext(ctx, &record.ReactionUserIDs, `SELECT DISTINCT user_id FROM announcement_reactions WHERE announcement_id = $1`, row.ID); err != nil {
		return record, fmt.Errorf("list reactions: %w", err)
	}
	if err := r.db.SelectContext(ctx, &record.ReaderIDs, `SELECT DISTINCT user_id FROM announcement_reads WHERE announcement_id = $1`, row.ID); err != nil {
		return record, fmt.Errorf("list reads: %w", err)
	}
	return record, nil
}
