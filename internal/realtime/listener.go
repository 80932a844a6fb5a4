// Package realtime turns the backend change feed into refresh signals.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workhub-api/internal/models"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
)

// Subscription is one open change feed subscription.
type Subscription interface {
	Close() error
}

// Feed is a change feed transport. Handlers may be invoked from the
// transport's own goroutine.
type Feed interface {
	Subscribe(ctx context.Context, table string, handler func(models.ChangeEvent)) (Subscription, error)
}

// EventRecorder receives per-event telemetry.
type EventRecorder interface {
	RecordRealtimeEvent(table string, changeType string)
}

// ChangeListener keeps one subscription per watched table and forwards every
// event to a refresh callback. It never inspects payloads beyond logging.
type ChangeListener struct {
	feed     Feed
	tables   []string
	logger   *zap.Logger
	recorder EventRecorder

	mu     sync.Mutex
	subs   []Subscription
	closed bool
}

// NewChangeListener builds a listener; without tables it watches the default set.
func NewChangeListener(feed Feed, logger *zap.Logger, recorder EventRecorder, tables ...string) *ChangeListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(tables) == 0 {
		tables = models.WatchedTables()
	}
	return &ChangeListener{feed: feed, tables: tables, logger: logger, recorder: recorder}
}

// Tables returns the watched table names.
func (l *ChangeListener) Tables() []string {
	return append([]string(nil), l.tables...)
}

// Start opens the subscriptions. On failure the ones already opened are released.
func (l *ChangeListener) Start(ctx context.Context, refresh func(models.ChangeEvent)) error {
	if refresh == nil {
		return errors.New("refresh callback required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.subs) > 0 {
		return errors.New("change listener already started")
	}
	l.closed = false

	handler := func(evt models.ChangeEvent) {
		if l.recorder != nil {
			l.recorder.RecordRealtimeEvent(evt.Table, string(evt.Type))
		}
		l.logger.Debug("change event", zap.String("table", evt.Table), zap.String("type", string(evt.Type)), zap.String("id", evt.RecordID))
		refresh(evt)
	}

	subs := make([]Subscription, 0, len(l.tables))
	for _, table := range l.tables {
		sub, err := l.feed.Subscribe(ctx, table, handler)
		if err != nil {
			for _, opened := range subs {
				_ = opened.Close()
			}
			return appErrors.Wrap(fmt.Errorf("subscribe %s: %w", table, err), appErrors.ErrRealtime.Code, appErrors.ErrRealtime.Status, appErrors.ErrRealtime.Message)
		}
		subs = append(subs, sub)
	}
	l.subs = subs
	l.logger.Info("change listener started", zap.Strings("tables", l.tables))
	return nil
}

// Close releases every subscription. Calling it more than once is harmless.
func (l *ChangeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	var errs []error
	for _, sub := range l.subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.subs = nil
	l.logger.Info("change listener stopped")
	return errors.Join(errs...)
}

type notifyPayload struct {
	Table  string `json:"table"`
	Type   string `json:"type"`
	ID     string `json:"id"`
	Record *struct {
		ID string `json:"id"`
	} `json:"record"`
}

// DecodeEvent parses a notify payload. Any payload yields an event for the
// subscribed table; undecodable ones carry ChangeUnknown.
func DecodeEvent(table, payload string) models.ChangeEvent {
	evt := models.ChangeEvent{Table: table, Type: models.ChangeUnknown, ReceivedAt: time.Now().UTC()}
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return evt
	}
	switch t := models.ChangeType(strings.ToUpper(p.Type)); t {
	case models.ChangeInsert, models.ChangeUpdate, models.ChangeDelete:
		evt.Type = t
	}
	evt.RecordID = p.ID
	if evt.RecordID == "" && p.Record != nil {
		evt.RecordID = p.Record.ID
	}
	return evt
}

// ChannelName maps a table to its notification channel.
func ChannelName(prefix, table string) string {
	return prefix + table
}
