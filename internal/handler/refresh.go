package handler

import (
	"github.com/gin-gonic/gin"

	"telemetry-dashboard/pkg/response"
)

// Trigger requests an out-of-band refresh.
type Trigger interface {
	Trigger()
}

// Refresh queues a poll of the activity source and returns immediately.
// @Router /api/v1/refresh [post]
func Refresh(t Trigger) gin.HandlerFunc {
	return func(c *gin.Context) {
		t.Trigger()
		response.Accepted(c, "refresh queued")
	}
}
