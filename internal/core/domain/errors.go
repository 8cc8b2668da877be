package domain

import (
	"context"
	"errors"
)

// ErrorKind classifies pipeline failures so callers can choose per-kind messaging.
type ErrorKind string

const (
	KindNoMatchFound        ErrorKind = "no_match_found"
	KindNoRouteFound        ErrorKind = "no_route_found"
	KindUnresolvedRegion    ErrorKind = "unresolved_region"
	KindUnknownRegion       ErrorKind = "unknown_region"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindCanceled            ErrorKind = "canceled"
	KindInternal            ErrorKind = "internal"
)

// Error is a tagged pipeline error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNoMatchFound        = &Error{Kind: KindNoMatchFound}
	ErrNoRouteFound        = &Error{Kind: KindNoRouteFound}
	ErrUnresolvedRegion    = &Error{Kind: KindUnresolvedRegion}
	ErrUnknownRegion       = &Error{Kind: KindUnknownRegion}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
)

// NewError builds a tagged error. cause may be nil.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// KindOf extracts the kind of err. Context cancellation is reported as
// KindCanceled and deadline expiry as KindUpstreamUnavailable.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindUpstreamUnavailable
	}
	return KindInternal
}

// StageError records the pipeline stage a plan failed in.
type StageError struct {
	Stage PlanStage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
