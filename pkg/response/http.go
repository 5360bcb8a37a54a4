// Package response writes the JSON envelope every bridge endpoint answers
// with: {code, message, success, data}.
package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeOK    = "0"
	CodeError = "-1"

	MessageOk = "ok"
)

// Response is the envelope. Data is omitted on failures.
type Response[T any] struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
}

// codedError carries a machine-readable code into the envelope in place of
// CodeError.
type codedError struct {
	code    string
	message string
}

func (e *codedError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func NewError(code string, msg string) error {
	return &codedError{code: code, message: msg}
}

func Ok(c *gin.Context) {
	c.JSON(http.StatusOK, success[any](MessageOk, nil))
}

func OkJson(c *gin.Context, v any) {
	c.JSON(http.StatusOK, success(MessageOk, v))
}

// Accepted acknowledges work that continues after the response.
func Accepted(c *gin.Context, msg string) {
	c.JSON(http.StatusAccepted, success[any](msg, nil))
}

func Error(c *gin.Context, httpStatusCode int, e error) {
	c.JSON(httpStatusCode, failure(e))
}

// Fail is Error with an explicit code, for failures that have no error value.
func Fail(c *gin.Context, httpStatusCode int, code, msg string) {
	Error(c, httpStatusCode, NewError(code, msg))
}

func success[T any](msg string, v T) Response[T] {
	return Response[T]{Code: CodeOK, Message: msg, Success: true, Data: v}
}

func failure(e error) Response[any] {
	if ce, ok := e.(*codedError); ok {
		return Response[any]{Code: ce.code, Message: ce.message}
	}
	msg := "unknown error"
	if e != nil {
		msg = e.Error()
	}
	return Response[any]{Code: CodeError, Message: msg}
}
