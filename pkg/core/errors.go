package core

import (
	"errors"
	"fmt"
)

// Status codes used by transports and spaces.
const (
	StatusBadRequest  = 400
	StatusForbidden   = 403
	StatusConflict    = 409
	StatusInternal    = 500
	StatusUnavailable = 502
)

// Common errors.
var (
	// ErrMissingETag marks a successful transport response that carried no
	// version token. It is the cause of the escalated RemoteToolError.
	ErrMissingETag = errors.New("transport response missing etag")

	// ErrTooManyConflicts is returned by Store.Update when every attempt lost
	// the race.
	ErrTooManyConflicts = errors.New("too many conflicting writes")

	ErrReadOnly = errors.New("space is in read-only mode")
)

// RemoteToolError is the single failure type of the transport boundary.
//
// Status 409 is reserved for version mismatches on write. The underlying
// cause, if any, is reachable through errors.Unwrap.
type RemoteToolError struct {
	Status  int
	Message string
	cause   error
}

// NewRemoteToolError creates a RemoteToolError.
func NewRemoteToolError(status int, format string, args ...any) *RemoteToolError {
	return &RemoteToolError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// WrapRemoteToolError creates a RemoteToolError carrying cause.
func WrapRemoteToolError(status int, cause error, message string) *RemoteToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &RemoteToolError{Status: status, Message: message, cause: cause}
}

func (e *RemoteToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote tool error %d", e.Status)
	}
	return fmt.Sprintf("remote tool error %d: %s", e.Status, e.Message)
}

func (e *RemoteToolError) Unwrap() error { return e.cause }

// IsConflict reports whether err is a version conflict (status 409).
func IsConflict(err error) bool {
	status, ok := StatusOf(err)
	return ok && status == StatusConflict
}

// StatusOf extracts the status code of a RemoteToolError in err's chain.
func StatusOf(err error) (int, bool) {
	var rte *RemoteToolError
	if errors.As(err, &rte) {
		return rte.Status, true
	}
	return 0, false
}

func missingETag(op string) error {
	return &RemoteToolError{
		Status:  StatusInternal,
		Message: "missing etag from " + op,
		cause:   ErrMissingETag,
	}
}
