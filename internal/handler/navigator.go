// internal/handler/navigator.go - file-affinity navigator state
package handler

import (
	"github.com/gin-gonic/gin"

	"telemetry-dashboard/internal/dto"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/navigator"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/response"
)

// StateProvider exposes the last committed navigator state.
type StateProvider interface {
	State() *navigator.State
}

type NavigatorHandler struct {
	states StateProvider
	logger logger.Logger
}

func NewNavigatorHandler(states StateProvider, logger logger.Logger) *NavigatorHandler {
	return &NavigatorHandler{states: states, logger: logger}
}

// State returns the navigator graph with the positions of one mode, or a
// blend of both when t is given.
// @Param mode query string false "physical (default) or latent"
// @Param t query number false "0..1 blend from physical to latent"
// @Router /api/v1/navigator [get]
func (h *NavigatorHandler) State(c *gin.Context) {
	var req dto.NavigatorRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "navigator", err)
		return
	}
	mode := navigator.Mode(req.Mode)
	switch mode {
	case "":
		mode = navigator.ModePhysical
	case navigator.ModePhysical, navigator.ModeLatent:
	default:
		fail(c, errs.UserInput("navigator", "unknown mode %q", req.Mode))
		return
	}

	st := h.states.State()
	out := dto.NavigatorResponse{Mode: string(mode)}
	if st.Empty() {
		out.Nodes = []navigator.FileNode{}
		out.Edges = []navigator.Edge{}
		out.Positions = map[string]navigator.Point{}
		if st != nil && st.Error != nil {
			out.Warning = st.Error.Error()
		}
		response.OkJson(c, out)
		return
	}

	out.Generation = st.Generation
	out.Nodes = st.Nodes
	out.Edges = st.Edges
	out.Clusters = st.Clusters
	out.Hierarchy = st.Hierarchy
	out.LatentCached = st.LatentCached
	out.LatentFallback = st.LatentFallback
	if req.T != nil {
		out.Mode = "blend"
		out.Positions = st.Interpolate(*req.T)
	} else {
		out.Positions = st.Positions(mode)
	}
	if st.Error != nil {
		out.Warning = st.Error.Error()
	}
	response.OkJson(c, out)
}
