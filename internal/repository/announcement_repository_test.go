package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workhub-api/internal/models"
)

func newAnnouncementRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var announcementColumns = []string{"id", "title", "content", "author_id", "category_id", "is_important", "is_pinned", "status", "is_expired", "comment_count", "created_at"}

func TestAnnouncementRepositoryListRecords(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM announcements a ORDER BY a.created_at DESC")).
		WillReturnRows(sqlmock.NewRows(announcementColumns).
			AddRow("a1", "Office move", "Friday", "u1", "ops", true, false, "published", false, 2, created))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, avatar_url FROM profiles WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "avatar_url"}).AddRow("u1", "Dana", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, color FROM announcement_categories WHERE id = $1")).
		WithArgs("ops").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color"}).AddRow("ops", "Operations", "#ff0000"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM announcement_attachments WHERE announcement_id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "announcement_id", "file_name", "file_path", "mime_type", "size_bytes", "created_at"}).
			AddRow("f1", "a1", "map.pdf", "a1/map.pdf", "application/pdf", 1024, created))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT user_id FROM announcement_reactions WHERE announcement_id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u2").AddRow("u3"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT user_id FROM announcement_reads WHERE announcement_id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u2"))

	records, err := repo.ListRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "Dana", record.AuthorName)
	assert.Equal(t, "ops", record.CategoryID)
	require.NotNil(t, record.Category)
	assert.Equal(t, "Operations", record.Category.Name)
	assert.Equal(t, models.AnnouncementStatusPublished, record.Status)
	assert.Equal(t, 2, record.CommentCount)
	require.Len(t, record.Attachments, 1)
	assert.Equal(t, "a1/map.pdf", record.Attachments[0].FilePath)
	assert.Equal(t, []string{"u2", "u3"}, record.ReactionUserIDs)
	assert.Equal(t, []string{"u2"}, record.ReaderIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryListRecordsWithoutCategory(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery("FROM announcements a").
		WillReturnRows(sqlmock.NewRows(announcementColumns).
			AddRow("a1", "Hi", "", "ghost", nil, false, false, "draft", false, 0, time.Now()))
	mock.ExpectQuery("FROM profiles").WithArgs("ghost").WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "avatar_url"}))
	mock.ExpectQuery("FROM announcement_attachments").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("FROM announcement_reactions").WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectQuery("FROM announcement_reads").WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	records, err := repo.ListRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].AuthorName)
	assert.Empty(t, records[0].CategoryID)
	assert.Nil(t, records[0].Category)
	assert.Empty(t, records[0].Attachments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryListRecordsPropagatesErrors(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery("FROM announcements a").WillReturnError(errors.New("connection reset"))

	_, err := repo.ListRecords(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list announcements")
}

func TestAnnouncementRepositoryGetRecordNotFound(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(announcementColumns))

	_, err := repo.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAnnouncementRepositorySetPinned(t *testing.T) {
	db, mock, cleanup := newAnnouncementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE announcements SET is_pinned = $2")).
		WithArgs("a1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetPinned(context.Background(), "a1", true))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE announcements SET is_pinned = $2")).
		WithArgs("gone", false).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetPinned(context.Background(), "gone", false), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
