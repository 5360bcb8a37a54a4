// internal/dto/view.go - view bridge request and response shapes
package dto

import (
	"telemetry-dashboard/internal/navigator"
	"telemetry-dashboard/internal/search"
	"telemetry-dashboard/internal/view"
)

// TimelineRequest filters the merged activity timeline.
type TimelineRequest struct {
	Kind      []string `form:"kind"`
	Workspace string   `form:"workspace"`
	Type      []string `form:"type"`
	From      int64    `form:"from" binding:"omitempty,min=0"`
	To        int64    `form:"to" binding:"omitempty,min=0"`
	Query     string   `form:"q"`
	Limit     int      `form:"limit" binding:"omitempty,min=1,max=5000"`
	Group     string   `form:"group"`
}

// TimelineResponse holds either flat items or groups, depending on Group.
type TimelineResponse struct {
	Items  []view.Item          `json:"items,omitempty"`
	Groups []view.TimelineGroup `json:"groups,omitempty"`
	Total  int                  `json:"total"`
}

type HotspotsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

type CorrelationRequest struct {
	WindowMinutes int `form:"windowMinutes" binding:"omitempty,min=1,max=1440"`
}

type ContextUsageRequest struct {
	Hours int `form:"hours" binding:"omitempty,min=1,max=720"`
}

type SearchRequest struct {
	Query string `form:"q"`
}

// SearchResponse flattens search.Response; its Error becomes a message.
type SearchResponse struct {
	Query       string              `json:"query"`
	Results     []search.Result     `json:"results"`
	Total       int                 `json:"total"`
	Clusters    []search.Cluster    `json:"clusters,omitempty"`
	Suggestions []search.Suggestion `json:"suggestions,omitempty"`
	Generation  uint64              `json:"generation"`
	Cached      bool                `json:"cached"`
	Warning     string              `json:"warning,omitempty"`
}

type SuggestRequest struct {
	Prefix string `form:"q"`
}

type ClickRequest struct {
	DocID string `json:"docId" binding:"required"`
}

type NavigatorRequest struct {
	Mode string `form:"mode"`
	// T blends physical (0) into latent (1) positions; unset returns the
	// committed map of Mode.
	T *float64 `form:"t" binding:"omitempty,min=0,max=1"`
}

// NavigatorResponse is the committed navigator state with one position map.
type NavigatorResponse struct {
	Generation     uint64                     `json:"generation"`
	Mode           string                     `json:"mode"`
	Nodes          []navigator.FileNode       `json:"nodes"`
	Edges          []navigator.Edge           `json:"edges"`
	Positions      map[string]navigator.Point `json:"positions"`
	Clusters       []navigator.Cluster        `json:"clusters"`
	Hierarchy      []navigator.Group          `json:"hierarchy"`
	LatentCached   bool                       `json:"latentCached"`
	LatentFallback bool                       `json:"latentFallback"`
	Warning        string                     `json:"warning,omitempty"`
}
