package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/workhub-api/internal/models"
)

// RedisFeed consumes change events republished on Redis pub/sub channels.
type RedisFeed struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisFeed builds a feed over an existing client.
func NewRedisFeed(client *redis.Client, prefix string, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, prefix: prefix, logger: logger}
}

// Subscribe waits for the subscription confirmation before returning.
func (f *RedisFeed) Subscribe(ctx context.Context, table string, handler func(models.ChangeEvent)) (Subscription, error) {
	channel := ChannelName(f.prefix, table)
	pubsub := f.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	return startRedisSubscription(pubsub, table, handler, f.logger.With(zap.String("channel", channel))), nil
}

// messageSource is the part of *redis.PubSub a subscription reads from.
type messageSource interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

func startRedisSubscription(src messageSource, table string, handler func(models.ChangeEvent), log *zap.Logger) *redisSubscription {
	sub := &redisSubscription{src: src}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		for msg := range src.Channel() {
			handler(DecodeEvent(table, msg.Payload))
		}
		log.Debug("redis subscription closed")
	}()
	return sub
}

type redisSubscription struct {
	src  messageSource
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.src.Close()
		s.wg.Wait()
	})
	return s.err
}
