package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks missing or malformed account settings.
	ErrConfig = errors.New("ai: invalid backend config")
	// ErrUnavailable means the account is disabled or has no credential.
	ErrUnavailable = errors.New("ai: backend unavailable for account")
	// ErrBackend is matched by every *BackendError.
	ErrBackend = errors.New("ai: backend error")
	// ErrEmptyReply means the model answered without usable text.
	ErrEmptyReply = errors.New("ai: empty reply")
)

// BackendError describes a transport or protocol failure of a model backend.
type BackendError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *BackendError) Error() string {
	msg := e.Provider + " api error"
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Body != "" {
		msg += " body=" + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
