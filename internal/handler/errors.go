package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/pkg/response"
)

// StatusOf maps an error kind to the HTTP status the bridge answers with.
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindUserInput:
		return http.StatusBadRequest
	case errs.KindStale:
		return http.StatusConflict
	case errs.KindOffline:
		return http.StatusServiceUnavailable
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	case errs.KindHTTP, errs.KindParse, errs.KindMalformedRecord:
		return http.StatusBadGateway
	case errs.KindUnsupportedEnvironment:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err in the response envelope with the error kind as code.
func fail(c *gin.Context, err error) {
	response.Error(c, StatusOf(err), response.NewError(string(errs.KindOf(err)), err.Error()))
}

// badRequest reports a binding failure as user input.
func badRequest(c *gin.Context, op string, err error) {
	fail(c, errs.New(errs.KindUserInput, op, err))
}
