package ws

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/noah-isme/workhub-api/internal/dto"
	"github.com/noah-isme/workhub-api/internal/search"
	"github.com/noah-isme/workhub-api/internal/service"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Client is one announcement stream session. It owns the filter state for
// the connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	engine *search.Engine

	// build serializes engine changes with the frame they produce, so frames
	// leave in the same order the state changed.
	build sync.Mutex

	mu         sync.Mutex
	send       chan []byte
	closed     bool
	generation uint64
}

// NewClient creates a session for userID with default filters.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		engine: search.NewEngine(nil),
		send:   make(chan []byte, sendBuffer),
	}
}

// ReadPump handles filter frames until the connection fails.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.handle(message)
	}
}

// WritePump sends queued frames and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(message []byte) {
	c.build.Lock()
	defer c.build.Unlock()

	var req dto.StreamRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.pushError(appErrors.Clone(appErrors.ErrValidation, "malformed frame"))
		return
	}

	switch req.Action {
	case dto.StreamActionUpdateFilter:
		value, err := decodeValue(req.Value)
		if err != nil {
			c.pushError(appErrors.Clone(appErrors.ErrValidation, "malformed filter value"))
			return
		}
		if err := c.engine.UpdateFilter(search.FilterKey(req.Key), value); err != nil {
			c.pushError(appErrors.FromError(err))
			return
		}
	case dto.StreamActionClearFilters:
		c.engine.ClearFilters()
	default:
		c.pushError(appErrors.Clone(appErrors.ErrValidation, "unknown action "+req.Action))
		return
	}
	c.pushView()
}

func decodeValue(raw json.RawMessage) (interface{}, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// applySnapshot swaps in the user's view of snap and queues a push. It
// returns false when the session cannot keep up.
func (c *Client) applySnapshot(snap service.FeedSnapshot) bool {
	c.build.Lock()
	defer c.build.Unlock()

	c.engine.SetSource(service.ViewOf(snap, c.userID))
	c.mu.Lock()
	c.generation = snap.Generation
	c.mu.Unlock()
	return c.pushView()
}

// pushView queues the current view. Callers hold build.
func (c *Client) pushView() bool {
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()
	state := c.engine.State()
	return c.push(dto.StreamMessage{
		Type: dto.StreamTypeAnnouncements,
		Payload: dto.AnnouncementsPayload{
			Results:          state.Results,
			HasActiveFilters: state.HasActiveFilters,
			Filters:          state.Filters,
			Generation:       generation,
		},
	})
}

func (c *Client) pushError(err *appErrors.Error) {
	c.push(dto.StreamMessage{
		Type:    dto.StreamTypeError,
		Payload: dto.StreamError{Code: err.Code, Message: err.Message},
	})
}

func (c *Client) push(msg dto.StreamMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
