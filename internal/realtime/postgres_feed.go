package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/workhub-api/internal/models"
)

const pingInterval = 90 * time.Second

// PostgresFeed subscribes to LISTEN/NOTIFY channels filled by row triggers.
type PostgresFeed struct {
	dsn          string
	prefix       string
	minReconnect time.Duration
	maxReconnect time.Duration
	logger       *zap.Logger
}

// NewPostgresFeed builds a feed for dsn. Channels are named prefix+table.
func NewPostgresFeed(dsn, prefix string, minReconnect, maxReconnect time.Duration, logger *zap.Logger) *PostgresFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minReconnect <= 0 {
		minReconnect = time.Second
	}
	if maxReconnect < minReconnect {
		maxReconnect = minReconnect
	}
	return &PostgresFeed{dsn: dsn, prefix: prefix, minReconnect: minReconnect, maxReconnect: maxReconnect, logger: logger}
}

// Subscribe opens a dedicated listener connection for one table.
func (f *PostgresFeed) Subscribe(ctx context.Context, table string, handler func(models.ChangeEvent)) (Subscription, error) {
	channel := ChannelName(f.prefix, table)
	log := f.logger.With(zap.String("channel", channel))

	listener := pq.NewListener(f.dsn, f.minReconnect, f.maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Debug("listener connected")
		case pq.ListenerEventDisconnected:
			log.Warn("listener disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			log.Info("listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Warn("listener connection attempt failed", zap.Error(err))
		}
	})
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := &pqSubscription{listener: listener, cancel: cancel}
	sub.wg.Add(1)
	go sub.run(runCtx, table, handler, log)
	return sub, nil
}

type pqSubscription struct {
	listener *pq.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
	err      error
}

func (s *pqSubscription) run(ctx context.Context, table string, handler func(models.ChangeEvent), log *zap.Logger) {
	defer s.wg.Done()
	consume(ctx, s.listener.Notify, s.listener.Ping, pingInterval, table, handler, log)
}

// consume delivers notifications until ctx ends or notify closes, pinging
// the connection every interval while idle.
func consume(ctx context.Context, notify <-chan *pq.Notification, ping func() error, interval time.Duration, table string, handler func(models.ChangeEvent), log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notify:
			if !ok {
				return
			}
			// nil follows a reconnect; anything may have been missed.
			if n == nil {
				handler(models.ChangeEvent{Table: table, Type: models.ChangeResync, ReceivedAt: time.Now().UTC()})
				continue
			}
			handler(DecodeEvent(table, n.Extra))
		case <-ticker.C:
			if err := ping(); err != nil {
				log.Warn("listener ping failed", zap.Error(err))
			}
		}
	}
}

func (s *pqSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.listener.Close()
		s.wg.Wait()
	})
	return s.err
}
