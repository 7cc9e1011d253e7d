package script

import (
	"fmt"
	"time"
)

// CompileError means the caller-supplied snippet failed to parse. It is
// raised before any host function is ever invoked.
type CompileError struct {
	AppID string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("app %q: script failed to compile: %v", e.AppID, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// RuntimeError means the snippet raised an uncaught exception or misbehaved
// at execution time.
type RuntimeError struct {
	AppID   string
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("app %q: script failed: %s", e.AppID, e.Message)
}

// TimeoutError means the snippet exceeded the wall-clock execution bound and
// its interpreter was torn down.
type TimeoutError struct {
	AppID string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("app %q: script exceeded the %s execution limit", e.AppID, e.Limit)
}
