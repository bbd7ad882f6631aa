package zwave

import "errors"

// Domain errors for the zwave package.
var (
	// ErrNodeNotFound is returned when a command names a node that is not in
	// the cache. The driver was not called.
	ErrNodeNotFound = errors.New("zwave: node not found")

	// ErrValueNotFound is returned when the node exists but carries no value
	// matching the command. The driver was not called.
	ErrValueNotFound = errors.New("zwave: value not found")

	// ErrInvalidLevel is returned by SetLevel for levels outside 0-99 and 255.
	ErrInvalidLevel = errors.New("zwave: level must be 0-99 or 255")

	// ErrUnsupportedKind is returned when a value's kind cannot be read or
	// written through the typed accessors.
	ErrUnsupportedKind = errors.New("zwave: unsupported value kind")

	// ErrInvalidValue is returned when a new value cannot be converted to the
	// target value's kind.
	ErrInvalidValue = errors.New("zwave: value does not match kind")

	// ErrSessionActive is returned by Connect when another session in this
	// process already holds the driver.
	ErrSessionActive = errors.New("zwave: another session is connected")

	// ErrSessionClosed is returned when a disconnected session is reused.
	ErrSessionClosed = errors.New("zwave: session closed")

	// ErrNotConnected is returned when an operation needs a connected session.
	ErrNotConnected = errors.New("zwave: session not connected")

	// ErrNotRunning is returned by Do when the consumer loop has stopped.
	ErrNotRunning = errors.New("zwave: consumer loop not running")

	// ErrLoopFinished is returned by Run when the consumer loop has already
	// run to completion. A session's loop runs once.
	ErrLoopFinished = errors.New("zwave: consumer loop already finished")
)
