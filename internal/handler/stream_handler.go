package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/workhub-api/internal/ws"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
	"github.com/noah-isme/workhub-api/pkg/response"
)

// StreamHandler upgrades announcement stream connections.
type StreamHandler struct {
	hub            *ws.Hub
	allowedOrigins map[string]struct{}
	upgrader       websocket.Upgrader
	logger         *zap.Logger
}

// NewStreamHandler creates the handler. An empty or "*" origin list accepts any origin.
func NewStreamHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &StreamHandler{hub: hub, allowedOrigins: make(map[string]struct{}), logger: logger}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			h.allowedOrigins = nil
			break
		}
		h.allowedOrigins[origin] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	_, ok := h.allowedOrigins[origin]
	return ok
}

// Connect godoc
// @Summary Announcement stream
// @Description Websocket. Send {"action":"update_filter","key":"category","value":"ops"} or {"action":"clear_filters"}; receive {"type":"announcements","payload":{...}} on connect, after each filter change and after every refresh.
// @Tags Announcements
// @Security BearerAuth
// @Param access_token query string false "Access token when headers cannot be set"
// @Success 101 "Switching Protocols"
// @Router /announcements/stream [get]
func (h *StreamHandler) Connect(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("stream upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	go client.WritePump()
	h.hub.Register(client)
	go client.ReadPump()
}
