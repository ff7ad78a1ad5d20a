package session

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad means the path does not resolve to a loadable plugin module.
	ErrLoad = errors.New("plugin load failed")
	// ErrConfigRejected means the plugin refused the sample rate or block size.
	ErrConfigRejected = errors.New("plugin rejected configuration")
	// ErrNoEditor means the plugin reported no editor rectangle.
	ErrNoEditor = errors.New("plugin has no editor")
	// ErrLifecycle marks a call made in a state that does not allow it. It is a
	// host defect, not a runtime condition.
	ErrLifecycle = errors.New("plugin lifecycle violation")
	// ErrUnloaded marks use of a session whose module has been released.
	ErrUnloaded = errors.New("plugin module unloaded")
	// ErrFrameCount means process was called with a frame count other than the block size.
	ErrFrameCount = errors.New("frame count does not match block size")
)

// StartupError wraps a failure that prevents the host from reaching a running state.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// Startup wraps err as a StartupError for stage. A nil err yields nil.
func Startup(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StartupError{Stage: stage, Err: err}
}
