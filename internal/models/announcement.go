package models

import (
	"slices"
	"time"
)

// AnnouncementStatus is the publication state stored on the announcement row.
type AnnouncementStatus string

const (
	AnnouncementStatusDraft     AnnouncementStatus = "draft"
	AnnouncementStatusPublished AnnouncementStatus = "published"
	AnnouncementStatusScheduled AnnouncementStatus = "scheduled"
)

// AnnouncementRow mirrors the columns selected from the announcements table.
type AnnouncementRow struct {
	ID           string             `db:"id"`
	Title        string             `db:"title"`
	Content      string             `db:"content"`
	AuthorID     string             `db:"author_id"`
	CategoryID   *string            `db:"category_id"`
	IsImportant  bool               `db:"is_important"`
	IsPinned     bool               `db:"is_pinned"`
	Status       AnnouncementStatus `db:"status"`
	IsExpired    bool               `db:"is_expired"`
	CommentCount int                `db:"comment_count"`
	CreatedAt    time.Time          `db:"created_at"`
}

// Profile is the public part of a user profile.
type Profile struct {
	ID        string  `db:"id" json:"id"`
	FullName  string  `db:"full_name" json:"full_name"`
	AvatarURL *string `db:"avatar_url" json:"avatar_url,omitempty"`
}

// Category groups announcements.
type Category struct {
	ID    string  `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Color *string `db:"color" json:"color,omitempty"`
}

// Attachment references an object in the attachments bucket.
type Attachment struct {
	ID             string     `db:"id" json:"id"`
	AnnouncementID string     `db:"announcement_id" json:"announcement_id"`
	FileName       string     `db:"file_name" json:"file_name"`
	FilePath       string     `db:"file_path" json:"-"`
	MimeType       string     `db:"mime_type" json:"mime_type"`
	SizeBytes      int64      `db:"size_bytes" json:"size_bytes"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	URL            string     `db:"-" json:"url,omitempty"`
	URLExpiresAt   *time.Time `db:"-" json:"url_expires_at,omitempty"`
}

// Reaction is one user's reaction on an announcement.
type Reaction struct {
	ID             string    `db:"id" json:"id"`
	AnnouncementID string    `db:"announcement_id" json:"announcement_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Emoji          string    `db:"emoji" json:"emoji"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ReadReceipt marks an announcement as viewed by a user.
type ReadReceipt struct {
	ID             string    `db:"id" json:"id"`
	AnnouncementID string    `db:"announcement_id" json:"announcement_id"`
	UserID         string    `db:"user_id" json:"user_id"`
	ReadAt         time.Time `db:"read_at" json:"read_at"`
}

// AnnouncementRecord is the aggregate assembled on every fetch cycle. It is
// shared by all callers and never modified after construction.
type AnnouncementRecord struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Content         string             `json:"content"`
	AuthorID        string             `json:"author_id"`
	AuthorName      string             `json:"author_name"`
	CategoryID      string             `json:"category_id"`
	Category        *Category          `json:"category,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	IsImportant     bool               `json:"is_important"`
	IsPinned        bool               `json:"is_pinned"`
	Status          AnnouncementStatus `json:"status"`
	IsExpired       bool               `json:"is_expired"`
	CommentCount    int                `json:"comment_count"`
	Attachments     []Attachment       `json:"attachments"`
	ReactionUserIDs []string           `json:"reaction_user_ids"`
	ReaderIDs       []string           `json:"reader_ids"`
}

// Announcement is the per-user view of a record.
type Announcement struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	Content        string             `json:"content"`
	AuthorID       string             `json:"author_id"`
	AuthorName     string             `json:"author_name"`
	CategoryID     string             `json:"category_id"`
	Category       *Category          `json:"category,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	IsImportant    bool               `json:"is_important"`
	IsPinned       bool               `json:"is_pinned"`
	Status         AnnouncementStatus `json:"status"`
	IsExpired      bool               `json:"is_expired"`
	HasAttachments bool               `json:"has_attachments"`
	Attachments    []Attachment       `json:"attachments,omitempty"`
	ReactionCount  int                `json:"reaction_count"`
	UserHasReacted bool               `json:"user_has_reacted"`
	CommentCount   int                `json:"comment_count"`
	ReadCount      int                `json:"read_count"`
	IsRead         bool               `json:"is_read"`
}

// ViewFor derives the caller-specific fields from the shared record.
func (r AnnouncementRecord) ViewFor(userID string) Announcement {
	return Announcement{
		ID:             r.ID,
		Title:          r.Title,
		Content:        r.Content,
		AuthorID:       r.AuthorID,
		AuthorName:     r.AuthorName,
		CategoryID:     r.CategoryID,
		Category:       r.Category,
		CreatedAt:      r.CreatedAt,
		IsImportant:    r.IsImportant,
		IsPinned:       r.IsPinned,
		Status:         r.Status,
		IsExpired:      r.IsExpired,
		HasAttachments: len(r.Attachments) > 0,
		Attachments:    slices.Clone(r.Attachments),
		ReactionCount:  len(r.ReactionUserIDs),
		UserHasReacted: userID != "" && slices.Contains(r.ReactionUserIDs, userID),
		CommentCount:   r.CommentCount,
		ReadCount:      len(r.ReaderIDs),
		IsRead:         userID != "" && slices.Contains(r.ReaderIDs, userID),
	}
}
