package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/workhub-api/internal/service"
)

// SessionRecorder tracks open sessions.
type SessionRecorder interface {
	StreamOpened()
	StreamClosed()
}

// Hub owns the announcement stream sessions and re-pushes each one's
// filtered view whenever the feed applies a refresh.
type Hub struct {
	source   func() service.FeedSnapshot
	recorder SessionRecorder
	logger   *zap.Logger

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	snapshots  chan service.FeedSnapshot
	done       chan struct{}
}

// NewHub creates a hub. source supplies the snapshot for newly registered sessions.
func NewHub(source func() service.FeedSnapshot, recorder SessionRecorder, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		source:     source,
		recorder:   recorder,
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		snapshots:  make(chan service.FeedSnapshot, 1),
		done:       make(chan struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish hands a freshly applied snapshot to the hub. Only the latest
// pending snapshot is kept.
func (h *Hub) Publish(snap service.FeedSnapshot) {
	for {
		select {
		case h.snapshots <- snap:
			return
		default:
		}
		select {
		case <-h.snapshots:
		default:
		}
	}
}

// Run is the hub's main loop. It returns when ctx is cancelled, closing every session.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.drop(client)
		}
	}()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			if h.recorder != nil {
				h.recorder.StreamOpened()
			}
			h.logger.Debug("stream session opened", zap.String("user_id", client.userID), zap.Int("sessions", len(h.clients)))
			if h.source != nil {
				h.deliver(client, h.source())
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case snap := <-h.snapshots:
			for client := range h.clients {
				h.deliver(client, snap)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) deliver(client *Client, snap service.FeedSnapshot) {
	if !client.applySnapshot(snap) {
		h.logger.Warn("stream session too slow, dropping", zap.String("user_id", client.userID))
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.close()
	if h.recorder != nil {
		h.recorder.StreamClosed()
	}
	h.logger.Debug("stream session closed", zap.String("user_id", client.userID), zap.Int("sessions", len(h.clients)))
}
