package capture

import "errors"

var (
	// ErrTargetLost means the captured window or display no longer exists.
	// It is terminal for the backend that returned it.
	ErrTargetLost = errors.New("capture target lost")

	// ErrAborted is returned by PullFrame after a target loss until a new
	// target is set
	ErrAborted = errors.New("capture aborted")

	// ErrFixedMethod is returned when changing the method of a target kind
	// that only has one
	ErrFixedMethod = errors.New("capture method is fixed for this target kind")

	// ErrNoBackend is returned when no backend is registered for a kind and method
	ErrNoBackend = errors.New("no capture backend registered")

	// ErrNoDisplays is returned when no active display is connected
	ErrNoDisplays = errors.New("no active displays")
)
