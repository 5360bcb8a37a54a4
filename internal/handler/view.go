// internal/handler/view.go - read-only analytics projections
package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"telemetry-dashboard/internal/dto"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/view"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/response"
)

const (
	defaultTimelineLimit = 200
	defaultUsageHours    = 24
)

// ViewProvider hands out projections over the current snapshot.
type ViewProvider interface {
	View() *view.View
}

type ViewHandler struct {
	views  ViewProvider
	logger logger.Logger
}

func NewViewHandler(views ViewProvider, logger logger.Logger) *ViewHandler {
	return &ViewHandler{views: views, logger: logger}
}

// Summary returns activity totals.
// @Router /api/v1/summary [get]
func (h *ViewHandler) Summary(c *gin.Context) {
	response.OkJson(c, h.views.View().Summary())
}

// Workspaces returns workspaces by most recent activity.
// @Router /api/v1/workspaces [get]
func (h *ViewHandler) Workspaces(c *gin.Context) {
	response.OkJson(c, h.views.View().Workspaces())
}

// Timeline returns the merged activity timeline, newest first, optionally
// grouped.
// @Param kind query []string false "event or prompt"
// @Param workspace query string false "workspace path"
// @Param type query []string false "event types"
// @Param from query int false "inclusive lower bound, unix ms"
// @Param to query int false "exclusive upper bound, unix ms"
// @Param q query string false "text filter"
// @Param limit query int false "maximum items, default 200"
// @Param group query string false "file|session|workflow|error|model|workspace|conversation|none"
// @Router /api/v1/timeline [get]
func (h *ViewHandler) Timeline(c *gin.Context) {
	var req dto.TimelineRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Debug("invalid timeline request: %v", err)
		badRequest(c, "timeline", err)
		return
	}
	by, err := view.ParseGroupBy(req.Group)
	if err != nil {
		fail(c, err)
		return
	}
	filter := view.TimelineFilter{
		Workspace:  req.Workspace,
		EventTypes: req.Type,
		From:       req.From,
		To:         req.To,
		Text:       req.Query,
	}
	for _, k := range req.Kind {
		kind := view.ItemKind(k)
		if kind != view.ItemEvent && kind != view.ItemPrompt {
			fail(c, errs.UserInput("timeline", "unknown item kind %q", k))
			return
		}
		filter.Kinds = append(filter.Kinds, kind)
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultTimelineLimit
	}

	items := view.Take(h.views.View().Timeline(filter), limit)
	resp := dto.TimelineResponse{Total: len(items)}
	if by == view.GroupByNone {
		resp.Items = items
	} else {
		resp.Groups = view.GroupTimeline(items, by)
	}
	response.OkJson(c, resp)
}

// Hotspots returns the most edited files by hotspot score.
// @Param limit query int false "default 20"
// @Router /api/v1/hotspots [get]
func (h *ViewHandler) Hotspots(c *gin.Context) {
	var req dto.HotspotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "hotspots", err)
		return
	}
	response.OkJson(c, h.views.View().FileHotspots(req.Limit))
}

// Correlation pairs prompts with the code changes that followed them.
// @Param windowMinutes query int false "default 30"
// @Router /api/v1/correlation [get]
func (h *ViewHandler) Correlation(c *gin.Context) {
	var req dto.CorrelationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "correlation", err)
		return
	}
	window := view.DefaultCorrelationWindow
	if req.WindowMinutes > 0 {
		window = time.Duration(req.WindowMinutes) * time.Minute
	}
	response.OkJson(c, h.views.View().PromptToCodeCorrelation(window))
}

// ContextUsage returns hourly context window usage.
// @Param hours query int false "default 24"
// @Router /api/v1/context-usage [get]
func (h *ViewHandler) ContextUsage(c *gin.Context) {
	var req dto.ContextUsageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "contextUsage", err)
		return
	}
	hours := req.Hours
	if hours == 0 {
		hours = defaultUsageHours
	}
	response.OkJson(c, h.views.View().ContextUsagePerHour(hours))
}

// Models returns model and mode usage counts.
// @Router /api/v1/models [get]
func (h *ViewHandler) Models(c *gin.Context) {
	response.OkJson(c, h.views.View().ModelUsage())
}

// ContextTrend returns the context file count series.
// @Router /api/v1/context-trend [get]
func (h *ViewHandler) ContextTrend(c *gin.Context) {
	response.OkJson(c, h.views.View().ContextFileTrend())
}

// Branches returns git branch activity.
// @Router /api/v1/branches [get]
func (h *ViewHandler) Branches(c *gin.Context) {
	response.OkJson(c, h.views.View().BranchActivity())
}
