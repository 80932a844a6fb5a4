package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workhub-api/internal/models"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
)

type fakeSubscription struct {
	feed  *fakeFeed
	table string
}

func (s *fakeSubscription) Close() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.closed = append(s.feed.closed, s.table)
	delete(s.feed.handlers, s.table)
	return nil
}

type fakeFeed struct {
	mu       sync.Mutex
	handlers map[string]func(models.ChangeEvent)
	opened   []string
	closed   []string
	failOn   string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: map[string]func(models.ChangeEvent){}}
}

func (f *fakeFeed) Subscribe(ctx context.Context, table string, handler func(models.ChangeEvent)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if table == f.failOn {
		return nil, errors.New("channel unavailable")
	}
	f.opened = append(f.opened, table)
	f.handlers[table] = handler
	return &fakeSubscription{feed: f, table: table}, nil
}

func (f *fakeFeed) emit(evt models.ChangeEvent) {
	f.mu.Lock()
	handler := f.handlers[evt.Table]
	f.mu.Unlock()
	if handler != nil {
		handler(evt)
	}
}

type recorderStub struct {
	mu     sync.Mutex
	events []string
}

func (r *recorderStub) RecordRealtimeEvent(table, changeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, table+":"+changeType)
}

func TestChangeListenerSubscribesOncePerTable(t *testing.T) {
	feed := newFakeFeed()
	listener := NewChangeListener(feed, nil, nil)

	require.NoError(t, listener.Start(context.Background(), func(models.ChangeEvent) {}))
	assert.Equal(t, models.WatchedTables(), feed.opened)
	assert.Equal(t, models.WatchedTables(), listener.Tables())

	require.Error(t, listener.Start(context.Background(), func(models.ChangeEvent) {}))
	assert.Len(t, feed.opened, 3)
}

func TestChangeListenerEveryEventRefreshes(t *testing.T) {
	feed := newFakeFeed()
	recorder := &recorderStub{}
	listener := NewChangeListener(feed, nil, recorder)

	var got []models.ChangeEvent
	require.NoError(t, listener.Start(context.Background(), func(evt models.ChangeEvent) { got = append(got, evt) }))

	feed.emit(models.ChangeEvent{Table: models.TableAnnouncements, Type: models.ChangeInsert, RecordID: "a1"})
	feed.emit(models.ChangeEvent{Table: models.TableAnnouncementReactions, Type: models.ChangeDelete})
	feed.emit(models.ChangeEvent{Table: models.TableAnnouncementReads, Type: models.ChangeResync})

	require.Len(t, got, 3)
	assert.Equal(t, "a1", got[0].RecordID)
	assert.Equal(t, []string{"announcements:INSERT", "announcement_reactions:DELETE", "announcement_reads:RESYNC"}, recorder.events)
}

func TestChangeListenerCloseReleasesAll(t *testing.T) {
	feed := newFakeFeed()
	listener := NewChangeListener(feed, nil, nil)
	calls := 0
	require.NoError(t, listener.Start(context.Background(), func(models.ChangeEvent) { calls++ }))

	require.NoError(t, listener.Close())
	require.NoError(t, listener.Close())
	assert.ElementsMatch(t, models.WatchedTables(), feed.closed)

	feed.emit(models.ChangeEvent{Table: models.TableAnnouncements})
	assert.Zero(t, calls)
}

func TestChangeListenerReleasesOnPartialFailure(t *testing.T) {
	feed := newFakeFeed()
	feed.failOn = models.TableAnnouncementReads
	listener := NewChangeListener(feed, nil, nil)

	err := listener.Start(context.Background(), func(models.ChangeEvent) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.TableAnnouncementReads)
	assert.Equal(t, appErrors.ErrRealtime.Code, appErrors.FromError(err).Code)
	assert.ElementsMatch(t, []string{models.TableAnnouncements, models.TableAnnouncementReactions}, feed.closed)
}

func TestChangeListenerCustomTables(t *testing.T) {
	feed := newFakeFeed()
	listener := NewChangeListener(feed, nil, nil, "announcements")
	require.NoError(t, listener.Start(context.Background(), func(models.ChangeEvent) {}))
	assert.Equal(t, []string{"announcements"}, feed.opened)
}

func TestChangeListenerRequiresCallback(t *testing.T) {
	listener := NewChangeListener(newFakeFeed(), nil, nil)
	assert.Error(t, listener.Start(context.Background(), nil))
}

func TestDecodeEvent(t *testing.T) {
	evt := DecodeEvent("announcements", `{"table":"announcements","type":"update","id":"a1"}`)
	assert.Equal(t, models.ChangeUpdate, evt.Type)
	assert.Equal(t, "a1", evt.RecordID)
	assert.False(t, evt.ReceivedAt.IsZero())

	evt = DecodeEvent("announcement_reads", `{"type":"INSERT","record":{"id":"r1"}}`)
	assert.Equal(t, models.ChangeInsert, evt.Type)
	assert.Equal(t, "r1", evt.RecordID)
	assert.Equal(t, "announcement_reads", evt.Table)

	assert.Equal(t, models.ChangeUnknown, DecodeEvent("announcements", "not json").Type)
	assert.Equal(t, models.ChangeUnknown, DecodeEvent("announcements", `{"type":"TRUNCATE"}`).Type)
	assert.Equal(t, "realtime_announcements", ChannelName("realtime_", "announcements"))
}
