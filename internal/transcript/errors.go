package transcript

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_recipe/internal/engine"
)

// Error categories. Typed errors below match them with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid transcript request")
	ErrNotFound         = errors.New("no transcript found")
	ErrVideoUnavailable = errors.New("video unavailable")
	ErrTransient        = errors.New("transcript service failure")
)

// NotFoundError means the video resolves but has no transcript in any
// requested language.
type NotFoundError struct {
	VideoID   string
	Requested []string
	Available []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("no transcript for video %q in languages [%s]", e.VideoID, strings.Join(e.Requested, ", "))
	if len(e.Available) > 0 {
		msg += "; available: [" + strings.Join(e.Available, ", ") + "]"
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// VideoUnavailableError means the video id does not resolve
// (deleted, private, region-blocked, age-gated).
type VideoUnavailableError struct {
	VideoID string
	Reason  string
}

func (e *VideoUnavailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("video %q is unavailable", e.VideoID)
	}
	return fmt.Sprintf("video %q is unavailable: %s", e.VideoID, e.Reason)
}

func (e *VideoUnavailableError) Is(target error) bool { return target == ErrVideoUnavailable }

// TransientError is an infrastructure failure unrelated to content
// availability: network errors, timeouts, 429 and 5xx responses.
type TransientError struct {
	VideoID    string
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransientError) Error() string {
	var sb strings.Builder
	sb.WriteString("transcript service")
	if e.Op != "" {
		sb.WriteString(" " + e.Op)
	}
	if e.VideoID != "" {
		fmt.Fprintf(&sb, " [%s]", e.VideoID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *TransientError) Is(target error) bool { return target == ErrTransient }
func (e *TransientError) Unwrap() error        { return e.Err }

// InvalidInputError describes which request field was rejected.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid transcript request: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// Retryable reports whether a caller may retry the same request: a
// TransientError, or a bare network failure that escaped classification.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || engine.IsTransientErr(err)
}
