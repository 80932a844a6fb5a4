package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workhub-api/internal/models"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
)

type listerStub struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int) ([]models.AnnouncementRecord, error)
}

func (s *listerStub) ListRecords(ctx context.Context) ([]models.AnnouncementRecord, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.fn(ctx, call)
}

func (s *listerStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func records(ids ...string) []models.AnnouncementRecord {
	out := make([]models.AnnouncementRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.AnnouncementRecord{ID: id, Title: "t-" + id, ReactionUserIDs: []string{"u1"}})
	}
	return out
}

func staticLister(recs []models.AnnouncementRecord, err error) *listerStub {
	return &listerStub{fn: func(context.Context, int) ([]models.AnnouncementRecord, error) { return recs, err }}
}

func TestFeedRefreshAppliesSnapshot(t *testing.T) {
	feed := NewAnnouncementFeedService(staticLister(records("a", "b"), nil), NewMetricsService(), nil, FeedConfig{})

	var notified []uint64
	unsubscribe := feed.Subscribe(func(s FeedSnapshot) { notified = append(notified, s.Generation) })
	defer unsubscribe()

	result, err := feed.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, uint64(1), result.Generation)

	snap := feed.Snapshot()
	assert.Len(t, snap.Records, 2)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.False(t, snap.RefreshedAt.IsZero())
	assert.Equal(t, []uint64{1}, notified)

	view := feed.View("u1")
	require.Len(t, view, 2)
	assert.True(t, view[0].UserHasReacted)
	assert.False(t, feed.View("u2")[0].UserHasReacted)
}

func TestFeedDropsStaleResponse(t *testing.T) {
	releaseFirst := make(chan struct{})
	firstStarted := make(chan struct{})
	lister := &listerStub{fn: func(ctx context.Context, call int) ([]models.AnnouncementRecord, error) {
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
			return records("old"), nil
		}
		return records("new"), nil
	}}
	feed := NewAnnouncementFeedService(lister, nil, nil, FeedConfig{})

	var slow RefreshResult
	done := make(chan struct{})
	go func() {
		defer close(done)
		slow, _ = feed.Refresh(context.Background())
	}()
	<-firstStarted

	fast, err := feed.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, fast.Applied)

	close(releaseFirst)
	<-done
	assert.False(t, slow.Applied)
	assert.Less(t, slow.Generation, fast.Generation)

	snap := feed.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "new", snap.Records[0].ID)
	assert.Equal(t, fast.Generation, snap.Generation)
}

func TestFeedFailureKeepsPreviousData(t *testing.T) {
	fail := atomic.Bool{}
	lister := &listerStub{fn: func(context.Context, int) ([]models.AnnouncementRecord, error) {
		if fail.Load() {
			return nil, errors.New("backend down")
		}
		return records("a"), nil
	}}
	feed := NewAnnouncementFeedService(lister, nil, nil, FeedConfig{})

	_, err := feed.Refresh(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	result, err := feed.Refresh(context.Background())
	require.Error(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, appErrors.ErrFeedRefresh.Code, appErrors.FromError(err).Code)

	snap := feed.Snapshot()
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Error(t, snap.LastError)
	assert.NoError(t, feed.Ready())
}

func TestFeedReadyBeforeFirstLoad(t *testing.T) {
	feed := NewAnnouncementFeedService(staticLister(nil, errors.New("boom")), nil, nil, FeedConfig{})
	assert.NoError(t, feed.Ready())

	_, err := feed.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFeedUnavailable.Code, appErrors.FromError(feed.Ready()).Code)
}

func TestFeedRequestRefreshRunsThroughQueue(t *testing.T) {
	lister := staticLister(records("a"), nil)
	feed := NewAnnouncementFeedService(lister, nil, nil, FeedConfig{Workers: 1})

	_, err := feed.RequestRefresh()
	require.Error(t, err, "queue not started yet")

	feed.Start(context.Background())
	defer feed.Stop()

	applied := make(chan uint64, 4)
	defer feed.Subscribe(func(s FeedSnapshot) { applied <- s.Generation })()

	feed.OnChange(models.ChangeEvent{Table: models.TableAnnouncements, Type: models.ChangeInsert})
	select {
	case gen := <-applied:
		assert.Equal(t, uint64(1), gen)
	case <-time.After(time.Second):
		t.Fatal("refresh not applied")
	}
	assert.Equal(t, 1, lister.Calls())
}

func TestFeedUnsubscribe(t *testing.T) {
	feed := NewAnnouncementFeedService(staticLister(records("a"), nil), nil, nil, FeedConfig{})
	calls := 0
	unsubscribe := feed.Subscribe(func(FeedSnapshot) { calls++ })

	_, _ = feed.Refresh(context.Background())
	unsubscribe()
	unsubscribe()
	_, _ = feed.Refresh(context.Background())
	assert.Equal(t, 1, calls)
}
