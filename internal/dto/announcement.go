package dto

import (
	"encoding/json"

	"github.com/noah-isme/workhub-api/internal/models"
)

// ReactionRequest toggles the caller's reaction.
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"omitempty,max=16"`
}

// ReactionResponse reports the state after a toggle.
type ReactionResponse struct {
	AnnouncementID string `json:"announcement_id"`
	Reacted        bool   `json:"reacted"`
}

// PinRequest sets the pinned flag.
type PinRequest struct {
	Pinned *bool `json:"pinned" validate:"required"`
}

// Stream actions sent by clients.
const (
	StreamActionUpdateFilter = "update_filter"
	StreamActionClearFilters = "clear_filters"
)

// Stream message types sent by the server.
const (
	StreamTypeAnnouncements = "announcements"
	StreamTypeError         = "error"
)

// StreamRequest is a client frame on the announcement stream.
type StreamRequest struct {
	Action string          `json:"action"`
	Key    string          `json:"key,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// StreamMessage is a server frame on the announcement stream.
type StreamMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// AnnouncementsPayload is the filtered view pushed to a stream session.
type AnnouncementsPayload struct {
	Results          []models.SearchResult `json:"results"`
	HasActiveFilters bool                  `json:"has_active_filters"`
	Filters          models.SearchFilters  `json:"filters"`
	Generation       uint64                `json:"generation"`
}

// StreamError reports a rejected client frame.
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
