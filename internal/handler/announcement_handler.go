package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workhub-api/internal/dto"
	"github.com/noah-isme/workhub-api/internal/middleware"
	"github.com/noah-isme/workhub-api/internal/models"
	"github.com/noah-isme/workhub-api/internal/search"
	"github.com/noah-isme/workhub-api/internal/service"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
	"github.com/noah-isme/workhub-api/pkg/response"
)

type announcementService interface {
	Search(ctx context.Context, userID string, params map[search.FilterKey]string) (*service.SearchPage, error)
	Get(ctx context.Context, userID, id string) (*models.Announcement, error)
	React(ctx context.Context, userID, id string, req dto.ReactionRequest) (*dto.ReactionResponse, error)
	MarkRead(ctx context.Context, userID, id string) error
	Pin(ctx context.Context, id string, req dto.PinRequest) error
	Refresh(ctx context.Context) (service.RefreshResult, error)
}

// AnnouncementHandler exposes the announcement feed.
type AnnouncementHandler struct {
	service announcementService
}

// NewAnnouncementHandler builds a new handler.
func NewAnnouncementHandler(service announcementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

// List godoc
// @Summary Search announcements
// @Description Pinned items always come first. A date-only dateTo covers the whole day.
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param query query string false "Free-text query over title, content and author"
// @Param category query string false "Category ID"
// @Param dateFrom query string false "RFC3339 or YYYY-MM-DD"
// @Param dateTo query string false "RFC3339 or YYYY-MM-DD"
// @Param author query string false "Author ID"
// @Param hasAttachments query bool false "Attachment constraint"
// @Param isImportant query bool false "Importance constraint"
// @Param status query string false "all, active, scheduled or expired"
// @Param sortBy query string false "date, relevance, reactions or comments"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	params := make(map[search.FilterKey]string)
	for _, key := range search.FilterKeys() {
		if value, ok := c.GetQuery(string(key)); ok {
			params[key] = value
		}
	}

	page, err := h.service.Search(c.Request.Context(), userIDFromContext(c), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, page.CacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{"cache_hit": page.CacheHit}
	}
	meta["has_active_filters"] = page.HasActiveFilters
	meta["filters"] = page.Filters
	meta["generation"] = page.Generation
	meta["refreshed_at"] = page.RefreshedAt
	meta["total"] = len(page.Results)
	response.JSON(c, http.StatusOK, page.Results, meta)
}

// Get godoc
// @Summary Get an announcement
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item)
}

// React godoc
// @Summary Toggle a reaction
// @Tags Announcements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Param payload body dto.ReactionRequest false "Reaction payload"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id}/reactions [post]
func (h *AnnouncementHandler) React(c *gin.Context) {
	var req dto.ReactionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reaction payload"))
			return
		}
	}
	result, err := h.service.React(c.Request.Context(), userIDFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// MarkRead godoc
// @Summary Mark an announcement as read
// @Tags Announcements
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 204
// @Router /announcements/{id}/read [post]
func (h *AnnouncementHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), userIDFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Pin godoc
// @Summary Pin or unpin an announcement
// @Tags Announcements
// @Accept json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Param payload body dto.PinRequest true "Pin payload"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /announcements/{id}/pin [put]
func (h *AnnouncementHandler) Pin(c *gin.Context) {
	var req dto.PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pin payload"))
		return
	}
	if err := h.service.Pin(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Refresh godoc
// @Summary Refetch the announcement list now
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /announcements/refresh [post]
func (h *AnnouncementHandler) Refresh(c *gin.Context) {
	result, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
