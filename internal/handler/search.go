// internal/handler/search.go - hybrid search endpoints
package handler

import (
	"github.com/gin-gonic/gin"

	"telemetry-dashboard/internal/dto"
	"telemetry-dashboard/internal/search"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/response"
)

type SearchHandler struct {
	engine *search.Engine
	logger logger.Logger
}

func NewSearchHandler(engine *search.Engine, logger logger.Logger) *SearchHandler {
	return &SearchHandler{engine: engine, logger: logger}
}

// Search runs a query against the current index. Filter problems do not fail
// the request; they come back as a warning next to the results.
// @Param q query string false "query with optional key:value filters"
// @Router /api/v1/search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "search", err)
		return
	}
	resp := h.engine.Search(c.Request.Context(), req.Query)
	out := dto.SearchResponse{
		Query:       search.Render(resp.Query),
		Results:     resp.Results,
		Total:       resp.Total,
		Clusters:    resp.Clusters,
		Suggestions: resp.Suggestions,
		Generation:  resp.Generation,
		Cached:      resp.Cached,
	}
	if resp.Error != nil {
		out.Warning = resp.Error.Error()
	}
	if out.Results == nil {
		out.Results = []search.Result{}
	}
	response.OkJson(c, out)
}

// Suggest completes a partial query.
// @Param q query string false "partial query"
// @Router /api/v1/search/suggest [get]
func (h *SearchHandler) Suggest(c *gin.Context) {
	var req dto.SuggestRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "suggest", err)
		return
	}
	response.OkJson(c, h.engine.Suggest(req.Prefix))
}

// Click records that a result was opened; it feeds the kind preference.
// @Router /api/v1/search/click [post]
func (h *SearchHandler) Click(c *gin.Context) {
	var req dto.ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "click", err)
		return
	}
	h.engine.RecordClick(c.Request.Context(), req.DocID)
	response.Ok(c)
}

// History returns recent searches, newest first.
// @Router /api/v1/search/history [get]
func (h *SearchHandler) History(c *gin.Context) {
	response.OkJson(c, h.engine.Feedback().History())
}
