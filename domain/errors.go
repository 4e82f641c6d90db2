package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the session state machine and switch engine.
// They are returned synchronously and never accompany a state mutation.
var (
	ErrInvalidPathway       = errors.New("invalid pathway")
	ErrSessionNotActive     = errors.New("session is not active")
	ErrSessionTerminal      = errors.New("session is terminal")
	ErrConfirmationRequired = errors.New("switch requires user confirmation")
	ErrSwitchBlocked        = errors.New("switch blocked by policy")
	ErrNotFound             = errors.New("not found")
)

// StreamError wraps an error event payload or a transport failure from the
// facilitator stream. Stream errors abort the in-flight message; they leave
// the session state machine untouched and are retryable by the user.
type StreamError struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("stream error [%s]: %s", e.Code, e.Message)
}

func (e *StreamError) Unwrap() error { return e.Err }
