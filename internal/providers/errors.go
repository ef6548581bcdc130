package providers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelUnavailable means the backend cannot be used at all: missing
	// credentials, unknown backend, unreachable endpoint.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelCallFailed means the backend was reached but the call did not
	// produce usable text.
	ErrModelCallFailed = errors.New("model call failed")
)

// ModelError wraps a provider failure with its kind. errors.Is matches it
// against ErrModelUnavailable or ErrModelCallFailed.
type ModelError struct {
	Kind     error
	Provider string
	Err      error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unavailable(provider string, format string, args ...any) error {
	return &ModelError{Kind: ErrModelUnavailable, Provider: provider, Err: fmt.Errorf(format, args...)}
}

func callFailed(provider string, err error) error {
	return &ModelError{Kind: ErrModelCallFailed, Provider: provider, Err: err}
}

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
	ErrorAuth      ErrorType = "auth"
	ErrorNotReady  ErrorType = "unavailable"
)

// ClassifyError buckets a provider error for the call audit.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrModelUnavailable) {
		return ErrorNotReady
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context length"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "401"), strings.Contains(e, "403"), strings.Contains(e, "api key"):
		return ErrorAuth
	case strings.Contains(e, "timeout"), strings.Contains(e, "deadline"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}
