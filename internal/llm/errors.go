package llm

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured       = errors.New("nlp service not configured")
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrInvalidInput        = errors.New("invalid input")
)

// ConfigError reports a provider whose credential could not be resolved.
type ConfigError struct {
	Provider      ProviderID
	CredentialKey string
	Reason        string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Provider, e.CredentialKey, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrNotConfigured }

// TransportError wraps a failed round trip to the provider.
type TransportError struct {
	Provider   ProviderID
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrProviderUnavailable }

// ExtractionError is returned once every attempt produced output that did
// not satisfy the target schema. Err is the last validation failure.
type ExtractionError struct {
	Schema   string
	Attempts int
	Errors   []string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: no valid result after %d attempt(s): %v", e.Schema, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtractionFailed }

// InputError rejects caller-supplied objects before any provider call.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string { return fmt.Sprintf("invalid %s: %v", e.Field, e.Err) }

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

// ErrorKind buckets errors for callers and metrics.
type ErrorKind string

const (
	KindNone       ErrorKind = "ok"
	KindConfig     ErrorKind = "config"
	KindTransport  ErrorKind = "transport"
	KindValidation ErrorKind = "validation"
	KindInput      ErrorKind = "input"
	KindUnknown    ErrorKind = "unknown"
)

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotConfigured):
		return KindConfig
	case errors.Is(err, ErrInvalidInput):
		return KindInput
	case errors.Is(err, ErrExtractionFailed):
		return KindValidation
	case errors.Is(err, ErrProviderUnavailable):
		return KindTransport
	default:
		return KindUnknown
	}
}

// ErrorBody is the wire form of an error handed to remote callers.
type ErrorBody struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewErrorBody describes err, or returns nil when err is nil.
func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	return &ErrorBody{Kind: KindOf(err), Message: err.Error()}
}
