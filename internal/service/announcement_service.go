package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/workhub-api/internal/dto"
	"github.com/noah-isme/workhub-api/internal/models"
	"github.com/noah-isme/workhub-api/internal/search"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
)

const searchCachePrefix = "announcements:search:"

type announcementFeed interface {
	Snapshot() FeedSnapshot
	Record(id string) (models.AnnouncementRecord, bool)
	Refresh(ctx context.Context) (RefreshResult, error)
	RequestRefresh() (bool, error)
	Subscribe(fn func(FeedSnapshot)) func()
}

type announcementRecordRepository interface {
	GetRecord(ctx context.Context, id string) (*models.AnnouncementRecord, error)
	SetPinned(ctx context.Context, id string, pinned bool) error
}

type reactionRepository interface {
	Toggle(ctx context.Context, announcementID, userID, emoji string) (bool, error)
}

type readRepository interface {
	MarkRead(ctx context.Context, announcementID, userID string) error
}

type attachmentPresigner interface {
	PresignGet(ctx context.Context, key string) (string, time.Time, error)
}

// SearchPage is one filtered view of the feed for a user.
type SearchPage struct {
	Results          []models.SearchResult `json:"results"`
	Filters          models.SearchFilters  `json:"filters"`
	HasActiveFilters bool                  `json:"has_active_filters"`
	Generation       uint64                `json:"generation"`
	RefreshedAt      time.Time             `json:"refreshed_at"`
	CacheHit         bool                  `json:"-"`
}

// AnnouncementService serves reads from the feed snapshot and forwards user
// actions to the backend, each followed by a full refetch.
type AnnouncementService struct {
	feed      announcementFeed
	records   announcementRecordRepository
	reactions reactionRepository
	reads     readRepository
	presigner attachmentPresigner
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// AnnouncementServiceDeps groups the collaborators of AnnouncementService.
type AnnouncementServiceDeps struct {
	Feed      announcementFeed
	Records   announcementRecordRepository
	Reactions reactionRepository
	Reads     readRepository
	Presigner attachmentPresigner
	Cache     *CacheService
	CacheTTL  time.Duration
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewAnnouncementService builds the service. Presigner and Cache are optional.
func NewAnnouncementService(deps AnnouncementServiceDeps) *AnnouncementService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &AnnouncementService{
		feed:      deps.Feed,
		records:   deps.Records,
		reactions: deps.Reactions,
		reads:     deps.Reads,
		presigner: deps.Presigner,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		validator: deps.Validator,
		logger:    deps.Logger,
	}
}

// InvalidateOnRefresh drops cached search views whenever a refresh is applied.
func (s *AnnouncementService) InvalidateOnRefresh() func() {
	return s.feed.Subscribe(func(snap FeedSnapshot) {
		if !s.cache.Enabled() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.cache.Invalidate(ctx, searchCachePrefix+"*"); err != nil {
			s.logger.Warn("search cache invalidation failed", zap.Uint64("generation", snap.Generation), zap.Error(err))
		}
	})
}

// Search applies the given filter values, in FilterKeys order, to the user's
// view of the feed. Keys absent from params keep their defaults.
func (s *AnnouncementService) Search(ctx context.Context, userID string, params map[search.FilterKey]string) (*SearchPage, error) {
	engine := search.NewEngine(nil)
	for _, key := range search.FilterKeys() {
		value, ok := params[key]
		if !ok {
			continue
		}
		if err := engine.UpdateFilter(key, value); err != nil {
			return nil, err
		}
	}
	filters := engine.Filters()

	snap := s.feed.Snapshot()
	cacheKey := searchCacheKey(userID, filters)
	var cached SearchPage
	if s.cache.Get(ctx, cacheKey, snap.Generation, &cached) {
		cached.CacheHit = true
		return &cached, nil
	}

	engine.SetSource(ViewOf(snap, userID))
	page := &SearchPage{
		Results:          engine.FilteredAnnouncements(),
		Filters:          filters,
		HasActiveFilters: engine.HasActiveFilters(),
		Generation:       snap.Generation,
		RefreshedAt:      snap.RefreshedAt,
	}
	s.cache.Set(ctx, cacheKey, snap.Generation, page, s.cacheTTL)
	return page, nil
}

// Get returns the user's view of one announcement with signed attachment links.
func (s *AnnouncementService) Get(ctx context.Context, userID, id string) (*models.Announcement, error) {
	record, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	view := record.ViewFor(userID)
	if s.presigner != nil {
		for i := range view.Attachments {
			url, expiresAt, err := s.presigner.PresignGet(ctx, view.Attachments[i].FilePath)
			if err != nil {
				s.logger.Warn("presign attachment failed", zap.String("attachment_id", view.Attachments[i].ID), zap.Error(err))
				continue
			}
			view.Attachments[i].URL = url
			view.Attachments[i].URLExpiresAt = &expiresAt
		}
	}
	return &view, nil
}

// React toggles the user's reaction on an announcement.
func (s *AnnouncementService) React(ctx context.Context, userID, id string, req dto.ReactionRequest) (*dto.ReactionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reaction payload")
	}
	if _, err := s.lookup(ctx, id); err != nil {
		return nil, err
	}
	reacted, err := s.reactions.Toggle(ctx, id, userID, req.Emoji)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle reaction")
	}
	s.refreshAfter("react", id)
	return &dto.ReactionResponse{AnnouncementID: id, Reacted: reacted}, nil
}

// MarkRead records a read receipt for the user.
func (s *AnnouncementService) MarkRead(ctx context.Context, userID, id string) error {
	if _, err := s.lookup(ctx, id); err != nil {
		return err
	}
	if err := s.reads.MarkRead(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark announcement read")
	}
	s.refreshAfter("read", id)
	return nil
}

// Pin sets or clears the pinned flag.
func (s *AnnouncementService) Pin(ctx context.Context, id string, req dto.PinRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pin payload")
	}
	if err := s.records.SetPinned(ctx, id, *req.Pinned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pin announcement")
	}
	s.refreshAfter("pin", id)
	return nil
}

// Refresh runs a refetch in the caller's goroutine.
func (s *AnnouncementService) Refresh(ctx context.Context) (RefreshResult, error) {
	return s.feed.Refresh(ctx)
}

func (s *AnnouncementService) lookup(ctx context.Context, id string) (*models.AnnouncementRecord, error) {
	if record, ok := s.feed.Record(id); ok {
		return &record, nil
	}
	record, err := s.records.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return record, nil
}

func (s *AnnouncementService) refreshAfter(action, id string) {
	if _, err := s.feed.RequestRefresh(); err != nil {
		s.logger.Warn("refresh after action not scheduled", zap.String("action", action), zap.String("announcement_id", id), zap.Error(err))
	}
}

func searchCacheKey(userID string, f models.SearchFilters) string {
	raw, err := json.Marshal(f)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", f))
	}
	sum := sha256.Sum256(raw)
	return searchCachePrefix + userID + ":" + hex.EncodeToString(sum[:8])
}
