// internal/handler/share.go - share link preview and creation
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"telemetry-dashboard/internal/share"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/response"
)

// LinkCreator posts a validated share intent to the activity source.
type LinkCreator interface {
	Create(ctx context.Context, in share.Intent) (*share.Link, error)
}

type ShareHandler struct {
	views   ViewProvider
	creator LinkCreator
	logger  logger.Logger
}

func NewShareHandler(views ViewProvider, creator LinkCreator, logger logger.Logger) *ShareHandler {
	return &ShareHandler{views: views, creator: creator, logger: logger}
}

// Preview renders what a link with this intent would expose.
// @Router /api/v1/share/preview [post]
func (h *ShareHandler) Preview(c *gin.Context) {
	var in share.Intent
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "share.preview", err)
		return
	}
	p, err := share.BuildPreview(in, h.views.View().Snapshot())
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, p)
}

// Create asks the activity source for a new share link.
// @Router /api/v1/share [post]
func (h *ShareHandler) Create(c *gin.Context) {
	var in share.Intent
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "share.create", err)
		return
	}
	link, err := h.creator.Create(c.Request.Context(), in)
	if err != nil {
		h.logger.Warn("share link creation failed: %v", err)
		fail(c, err)
		return
	}
	h.logger.Info("share link %s created, level=%s", link.ShareID, in.AbstractionLevel)
	response.OkJson(c, link)
}
