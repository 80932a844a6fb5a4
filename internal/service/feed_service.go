package service

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/workhub-api/internal/models"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
	"github.com/noah-isme/workhub-api/pkg/jobs"
)

const (
	refreshJobType = "announcements.refresh"
	refreshJobKey  = "announcements.refresh"
)

type announcementLister interface {
	ListRecords(ctx context.Context) ([]models.AnnouncementRecord, error)
}

// FeedConfig tunes the refresh worker.
type FeedConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// RefreshResult describes one refetch.
type RefreshResult struct {
	Generation  uint64    `json:"generation"`
	Applied     bool      `json:"applied"`
	Count       int       `json:"count"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// FeedSnapshot is the announcement list as of one applied refresh. Records
// are shared and must not be modified.
type FeedSnapshot struct {
	Records     []models.AnnouncementRecord
	Generation  uint64
	RefreshedAt time.Time
	LastError   error
}

// AnnouncementFeedService owns the in-memory announcement list and replaces it
// wholesale on every refetch.
type AnnouncementFeedService struct {
	repo    announcementLister
	metrics *MetricsService
	logger  *zap.Logger
	timeout time.Duration
	queue   *jobs.Queue

	issued atomic.Uint64

	mu       sync.RWMutex
	snapshot FeedSnapshot

	obsMu     sync.Mutex
	observers map[int]func(FeedSnapshot)
	nextObs   int
}

// NewAnnouncementFeedService constructs the feed. Start must be called before
// RequestRefresh can schedule work.
func NewAnnouncementFeedService(repo announcementLister, metrics *MetricsService, logger *zap.Logger, cfg FeedConfig) *AnnouncementFeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	s := &AnnouncementFeedService{
		repo:      repo,
		metrics:   metrics,
		logger:    logger,
		timeout:   cfg.Timeout,
		observers: make(map[int]func(FeedSnapshot)),
	}
	s.queue = jobs.NewQueue("announcement-feed", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the refresh workers.
func (s *AnnouncementFeedService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight refreshes to finish.
func (s *AnnouncementFeedService) Stop() {
	s.queue.Stop()
}

// Refresh refetches the whole list. A response that arrives after a newer
// one was applied is dropped. On failure the previous list stays in place.
func (s *AnnouncementFeedService) Refresh(ctx context.Context) (RefreshResult, error) {
	gen := s.issued.Add(1)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	records, err := s.repo.ListRecords(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDBQuery("announcements.list_records", duration)

	if err != nil {
		s.mu.Lock()
		if gen > s.snapshot.Generation {
			s.snapshot.LastError = err
		}
		s.mu.Unlock()
		s.metrics.RecordFeedRefresh(RefreshOutcomeFailed, duration, 0)
		s.logger.Warn("announcement refresh failed", zap.Uint64("generation", gen), zap.Error(err))
		return RefreshResult{Generation: gen}, appErrors.Wrap(err, appErrors.ErrFeedRefresh.Code, appErrors.ErrFeedRefresh.Status, appErrors.ErrFeedRefresh.Message)
	}

	s.mu.Lock()
	if gen < s.snapshot.Generation {
		current := s.snapshot.Generation
		s.mu.Unlock()
		s.metrics.RecordFeedRefresh(RefreshOutcomeStale, duration, len(records))
		s.logger.Debug("stale announcement refresh dropped", zap.Uint64("generation", gen), zap.Uint64("applied", current))
		return RefreshResult{Generation: gen, Count: len(records)}, nil
	}
	s.snapshot = FeedSnapshot{
		Records:     records,
		Generation:  gen,
		RefreshedAt: time.Now().UTC(),
	}
	snap := s.snapshot
	s.mu.Unlock()

	s.metrics.RecordFeedRefresh(RefreshOutcomeApplied, duration, len(records))
	s.logger.Debug("announcements refreshed", zap.Uint64("generation", gen), zap.Int("count", len(records)), zap.Duration("took", duration))
	s.notify(snap)
	return RefreshResult{Generation: gen, Applied: true, Count: len(records), RefreshedAt: snap.RefreshedAt}, nil
}

// RequestRefresh schedules a refetch. While one is already waiting the call
// is absorbed by it.
func (s *AnnouncementFeedService) RequestRefresh() (bool, error) {
	return s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: refreshJobType, Key: refreshJobKey})
}

// OnChange adapts RequestRefresh to the change listener callback.
func (s *AnnouncementFeedService) OnChange(evt models.ChangeEvent) {
	if _, err := s.RequestRefresh(); err != nil {
		s.logger.Warn("schedule announcement refresh", zap.String("table", evt.Table), zap.Error(err))
	}
}

func (s *AnnouncementFeedService) handleJob(ctx context.Context, _ jobs.Job) error {
	_, err := s.Refresh(ctx)
	return err
}

// Snapshot returns the current list and its metadata.
func (s *AnnouncementFeedService) Snapshot() FeedSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshot
	snap.Records = slices.Clone(snap.Records)
	return snap
}

// Record looks up one announcement in the current list.
func (s *AnnouncementFeedService) Record(id string) (models.AnnouncementRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.snapshot.Records {
		if r.ID == id {
			return r, true
		}
	}
	return models.AnnouncementRecord{}, false
}

// View projects the current list for one user.
func (s *AnnouncementFeedService) View(userID string) []models.Announcement {
	return ViewOf(s.Snapshot(), userID)
}

// ViewOf projects a snapshot for one user.
func ViewOf(snap FeedSnapshot, userID string) []models.Announcement {
	out := make([]models.Announcement, 0, len(snap.Records))
	for _, r := range snap.Records {
		out = append(out, r.ViewFor(userID))
	}
	return out
}

// Ready fails only when nothing was ever loaded and the last attempt errored.
func (s *AnnouncementFeedService) Ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot.Generation == 0 && s.snapshot.LastError != nil {
		return appErrors.Wrap(s.snapshot.LastError, appErrors.ErrFeedUnavailable.Code, appErrors.ErrFeedUnavailable.Status, appErrors.ErrFeedUnavailable.Message)
	}
	return nil
}

// Subscribe registers fn to run after each applied refresh.
func (s *AnnouncementFeedService) Subscribe(fn func(FeedSnapshot)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *AnnouncementFeedService) notify(snap FeedSnapshot) {
	s.obsMu.Lock()
	fns := make([]func(FeedSnapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
