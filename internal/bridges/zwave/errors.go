package zwave

import "errors"

// Domain errors for the Z-Wave MQTT bridge.
var (
	// ErrInvalidNodeAddress is returned when a topic address is not a node id.
	ErrInvalidNodeAddress = errors.New("zwave bridge: invalid node address")
)
