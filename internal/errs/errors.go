package errs

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the engine can surface.
type Kind string

const (
	KindOffline                Kind = "offline"
	KindHTTP                   Kind = "http"
	KindTimeout                Kind = "timeout"
	KindParse                  Kind = "parse"
	KindStale                  Kind = "stale"
	KindMalformedRecord        Kind = "malformed_record"
	KindIndexBuild             Kind = "index_build"
	KindLayout                 Kind = "layout"
	KindUserInput              Kind = "user_input"
	KindUnsupportedEnvironment Kind = "unsupported_environment"
	KindInternal               Kind = "internal"
)

// Error is the structured error carried across component boundaries.
type Error struct {
	Kind   Kind
	Op     string
	Status int // HTTP status for KindHTTP
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, &Error{Kind: KindOffline}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Op == "" && t.Kind == e.Kind
	}
	return false
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Offline(op string, err error) *Error { return New(KindOffline, op, err) }

func Timeout(op string, err error) *Error { return New(KindTimeout, op, err) }

func Parse(op string, err error) *Error { return New(KindParse, op, err) }

func HTTP(op string, status int, body string) *Error {
	var err error
	if body != "" {
		err = errors.New(truncate(body, 256))
	}
	return &Error{Kind: KindHTTP, Op: op, Status: status, Err: err}
}

func Malformed(op string, format string, args ...any) *Error {
	return New(KindMalformedRecord, op, fmt.Errorf(format, args...))
}

func UserInput(op string, format string, args ...any) *Error {
	return New(KindUserInput, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of err, KindInternal for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether a transport failure may be retried once.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindOffline || k == KindTimeout
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
