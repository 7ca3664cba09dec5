package calls

import (
	"fmt"
)

// ConfigurationError reports a required setting that could not be resolved
// from options or the environment. Construction fails; no remote call is made.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calls: configuration %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("calls: %s is required (option or env var)", e.Key)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports malformed input. It is raised before any remote call.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be E.164 (start with '+' followed by 7-15 digits), got %q", e.Field, e.Value)
}

// DispatchError wraps a failed agent dispatch. Dispatch is never retried.
type DispatchError struct {
	RoomName  string
	AgentName string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("calls: dispatch agent %q to room %s: %v", e.AgentName, e.RoomName, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// DialError wraps the last SIP dial failure once retries are exhausted or the
// context ends during back-off, in which case the context error is joined in.
// The room and the dispatched agent are left in place.
type DialError struct {
	RoomName string
	Attempts int
	Err      error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("calls: dial into room %s failed after %d attempt(s): %v", e.RoomName, e.Attempts, e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }
