package session

import (
	"context"
	"errors"

	"github.com/example/tutorbot/internal/correction"
	"github.com/example/tutorbot/internal/lessons"
)

var (
	// ErrStorageUnavailable means the profile backend could not be reached.
	// The exchange is aborted; the learner retries with their next message.
	ErrStorageUnavailable = errors.New("profile storage unavailable")

	// ErrConflict means the stored profile changed since it was loaded
	ErrConflict = errors.New("profile version conflict")

	// ErrNoContentAvailable means no lesson exists for the learner's level and weakest category
	ErrNoContentAvailable = lessons.ErrNoContentAvailable

	// ErrLockTimeout means the per-user lock could not be taken in time
	ErrLockTimeout = errors.New("user session busy")
)

// Error codes written to logs in place of learner content
const (
	CodeStorageUnavailable = "storage_unavailable"
	CodeConflict           = "conflict"
	CodeNoContent          = "no_content"
	CodeCorrectionFailed   = "correction_failed"
	CodeLockTimeout        = "lock_timeout"
	CodeCanceled           = "canceled"
	CodeInternal           = "internal"
)

// ErrorCode maps an error to a stable code for logs
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorageUnavailable):
		return CodeStorageUnavailable
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrNoContentAvailable):
		return CodeNoContent
	case errors.Is(err, correction.ErrCorrectionFailed):
		return CodeCorrectionFailed
	case errors.Is(err, ErrLockTimeout):
		return CodeLockTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
