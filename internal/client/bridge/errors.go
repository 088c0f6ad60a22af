package bridge

import "errors"

var (
	// ErrNotReady is returned by capability calls before configuration has
	// succeeded. Fail-fast programmer error, never queued.
	ErrNotReady = errors.New("bridge: not ready")

	// ErrShareCancelled is returned when the user dismisses the share
	// dialog. A normal outcome, not a fault.
	ErrShareCancelled = errors.New("bridge: share cancelled by user")

	// ErrBridgeUnavailable is returned when the vendor script object is
	// absent after the load attempt.
	ErrBridgeUnavailable = errors.New("bridge: vendor script unavailable")

	// ErrConfigureInFlight is returned to a second concurrent Configure
	// call. The in-flight attempt is left undisturbed.
	ErrConfigureInFlight = errors.New("bridge: configuration already in flight")
)

// ConfigError reports a configuration rejected by the vendor, carrying the
// vendor's message code.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "bridge: configuration rejected: " + e.Message
}
