// File: internal/browser/errors.go
package browser

import (
	"errors"
	"fmt"
)

// Per-account failure modes. All of these are contained at the worker
// boundary; none of them aborts the run for other accounts.
var (
	// ErrNavigationTimeout means the login page did not reach a ready state
	// within the bounded wait.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrElementNotFound means a locator did not resolve within the wait
	// window. This is the dominant real-world failure: it depends on the
	// external site's markup staying put.
	ErrElementNotFound = errors.New("element not found")
	// ErrVerificationFailed means no post-login indicator appeared.
	ErrVerificationFailed = errors.New("post-login indicator not found")
	// ErrBrowserUnavailable means Chrome could not be launched at all. Unlike
	// the others this is fatal to the whole run when the startup probe hits it.
	ErrBrowserUnavailable = errors.New("browser unavailable")
)

// Stage names as recorded on failed attempts.
const (
	StageLaunch       = "launch"
	StageNavigate     = "navigate"
	StageCredentials  = "credentials"
	StageSecondFactor = "second_factor"
	StageVerify       = "verify"
	StagePartner      = "partner"
	StageUnexpected   = "unexpected"
)

// StageError ties a failure to the login stage it occurred in. The wrapped
// error stays reachable through errors.Is/As.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailStage wraps err with the stage it occurred in.
func FailStage(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// StageOf extracts the stage from an error chain, defaulting to "unexpected".
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageUnexpected
}
