// Package svcerr defines the typed error taxonomy the bridge uses to
// classify failures and decide recovery action, independent of where in
// the pipeline they originate.
package svcerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers. Wrap always tags the resulting error with one of these
// so callers can classify with errors.Is regardless of the wrapped detail.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrProviderFailure     = errors.New("provider failure")
	ErrRenderFailure       = errors.New("render failure")
	ErrDispatchTransient   = errors.New("dispatch transient failure")
	ErrDispatchRateLimited = errors.New("dispatch rate limited")
	ErrDispatchTerminal    = errors.New("dispatch terminal failure")
	ErrStoreFailure        = errors.New("store failure")
	ErrQueueSaturated      = errors.New("queue saturated")
)

// Kind names the taxonomy so structured logs can carry a stable field.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindProviderFailure     Kind = "provider_failure"
	KindRenderFailure       Kind = "render_failure"
	KindDispatchTransient   Kind = "dispatch_transient"
	KindDispatchRateLimited Kind = "dispatch_rate_limited"
	KindDispatchTerminal    Kind = "dispatch_terminal"
	KindStoreFailure        Kind = "store_failure"
	KindQueueSaturated      Kind = "queue_saturated"
	KindUnknown             Kind = "unknown"
)

// ServiceError carries structured context for a bridge failure: which
// component raised it, what operation was in flight, and an optional hint
// for operators. It is never constructed with secrets in Message or Hint.
type ServiceError struct {
	Marker    error
	Kind      Kind
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	detail := strings.TrimSpace(e.Component + " " + e.Operation)
	if detail == "" {
		detail = "service failure"
	}
	if e.Message != "" {
		detail = detail + ": " + e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", detail, e.Cause)
	}
	return detail
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *ServiceError) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	if e.Marker != nil && errors.Is(e.Marker, target) {
		return true
	}
	return errors.Is(e.Cause, target)
}

type wrapOption func(*ServiceError)

// WithHint attaches an operator-facing hint to the resulting error.
func WithHint(hint string) wrapOption {
	return func(e *ServiceError) {
		if e != nil {
			e.Hint = strings.TrimSpace(hint)
		}
	}
}

// Wrap builds a ServiceError tagged with marker, recording which component
// and operation failed. marker should be one of the Err* sentinels above.
func Wrap(marker error, component, operation, message string, cause error, opts ...wrapOption) error {
	if marker == nil {
		marker = ErrDispatchTransient
	}
	e := &ServiceError{
		Marker:    marker,
		Kind:      kindOf(marker),
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     cause,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func kindOf(marker error) Kind {
	switch {
	case errors.Is(marker, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(marker, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(marker, ErrProviderFailure):
		return KindProviderFailure
	case errors.Is(marker, ErrRenderFailure):
		return KindRenderFailure
	case errors.Is(marker, ErrDispatchTransient):
		return KindDispatchTransient
	case errors.Is(marker, ErrDispatchRateLimited):
		return KindDispatchRateLimited
	case errors.Is(marker, ErrDispatchTerminal):
		return KindDispatchTerminal
	case errors.Is(marker, ErrStoreFailure):
		return KindStoreFailure
	case errors.Is(marker, ErrQueueSaturated):
		return KindQueueSaturated
	default:
		return KindUnknown
	}
}

// Details extracts structured error information for logging, falling back
// to a generic snapshot when err is not a *ServiceError.
type Details struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

func ExtractDetails(err error) Details {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr != nil {
		return Details{
			Kind:      svcErr.Kind,
			Component: svcErr.Component,
			Operation: svcErr.Operation,
			Message:   svcErr.Message,
			Hint:      svcErr.Hint,
			Cause:     svcErr.Cause,
		}
	}
	return Details{Kind: KindUnknown, Message: errMessage(err), Cause: err}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
