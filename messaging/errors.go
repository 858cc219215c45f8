package messaging

import "errors"

var (
	// ErrDuplicateMessageType is returned by strict registration of a type
	// name that is already in the registry.
	ErrDuplicateMessageType = errors.New("message type already registered")

	// ErrUnknownMessageType is returned when sending a message whose type
	// was never registered.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrDispatcherNotRunning is returned when sending to a dispatcher that
	// has not been started or has been stopped.
	ErrDispatcherNotRunning = errors.New("dispatcher is not running")
)
