package contentflow

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrContentNotFound indicates a content was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrAccountNotFound indicates an account was not found
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists indicates the username is already taken
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidStatus indicates an unknown content status value
	ErrInvalidStatus = errors.New("invalid content status")

	// ErrInvalidTransition indicates a status transition the state machine forbids
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidResult indicates a processing result that violates the count invariant
	ErrInvalidResult = errors.New("invalid processing result")

	// ErrFileNotReady indicates the stored file is not available in the current status
	ErrFileNotReady = errors.New("file not ready for download")

	// ErrValidation indicates malformed or incomplete input
	ErrValidation = errors.New("malformed request")

	// ErrInvalidCredentials indicates a failed username/password check
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrPasswordNotChanged indicates the account still carries its default password
	ErrPasswordNotChanged = errors.New("default password has not been changed")
)

// ContentError records a failed content operation together with the
// correlation uid it was addressed to.
type ContentError struct {
	UID string
	Op  string
	Err error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.UID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}
