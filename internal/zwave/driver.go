package zwave

// DriverNotification is the transient object the driver hands to a watcher.
// It is only valid for the duration of the callback. GroupIdx, Event,
// ButtonID, SceneID and NotificationCode are only defined for the
// notification types that carry them, and a driver may panic if they are
// read for any other type.
type DriverNotification interface {
	Type() NotificationType
	HomeID() uint32
	NodeID() uint8
	ValueID() ValueID
	GroupIdx() uint8
	Event() uint8
	ButtonID() uint8
	SceneID() uint8
	NotificationCode() NotificationCode
}

// Watcher receives driver notifications on the driver's goroutine.
type Watcher func(DriverNotification)

// WatcherID identifies a registered watcher so it can be removed again.
type WatcherID uint64

// ValueReader reads a value's metadata and current scalar.
type ValueReader interface {
	ValueLabel(v ValueID) string
	ValueUnits(v ValueID) string
	IsValueReadOnly(v ValueID) bool
	IsValueWriteOnly(v ValueID) bool
	ValueMin(v ValueID) int32
	ValueMax(v ValueID) int32

	ValueAsBool(v ValueID) (bool, error)
	ValueAsByte(v ValueID) (uint8, error)
	ValueAsShort(v ValueID) (int16, error)
	ValueAsInt(v ValueID) (int32, error)
	ValueAsFloat(v ValueID) (float64, error)
	ValueAsString(v ValueID) (string, error)
	ValueListSelection(v ValueID) (string, error)
	ValueListItems(v ValueID) ([]string, error)
}

// ValueWriter changes values and their polling state.
type ValueWriter interface {
	SetValueBool(v ValueID, value bool) error
	SetValueByte(v ValueID, value uint8) error
	SetValueShort(v ValueID, value int16) error
	SetValueInt(v ValueID, value int32) error
	SetValueFloat(v ValueID, value float64) error
	SetValueString(v ValueID, value string) error
	SetValueListSelection(v ValueID, item string) error
	PressButton(v ValueID) error
	ReleaseButton(v ValueID) error

	// SetChangeVerified asks the driver to confirm each reported change
	// with a second read before notifying.
	SetChangeVerified(v ValueID, verify bool)

	EnablePoll(v ValueID) error
	DisablePoll(v ValueID) error
}

// NodeInfoReader reads node metadata keyed by network and node id.
type NodeInfoReader interface {
	NodeManufacturerName(homeID uint32, nodeID uint8) string
	NodeManufacturerID(homeID uint32, nodeID uint8) string
	NodeProductName(homeID uint32, nodeID uint8) string
	NodeProductType(homeID uint32, nodeID uint8) string
	NodeProductID(homeID uint32, nodeID uint8) string
	NodeType(homeID uint32, nodeID uint8) string
	NodeName(homeID uint32, nodeID uint8) string
	NodeLocation(homeID uint32, nodeID uint8) string
}

// Controller covers node naming and controller resets.
type Controller interface {
	SetNodeName(homeID uint32, nodeID uint8, name string) error
	SetNodeLocation(homeID uint32, nodeID uint8, location string) error
	ResetController(homeID uint32) error
	SoftReset(homeID uint32) error
}

// Driver is the network driver the session controls. Implementations fire
// watcher callbacks from their own goroutine, in the order events happen on
// the network.
type Driver interface {
	ValueReader
	ValueWriter
	NodeInfoReader
	Controller

	// Configure applies options. It is called at most once, before the
	// first AddDriver.
	Configure(opts Options) error

	AddWatcher(w Watcher) (WatcherID, error)
	RemoveWatcher(id WatcherID) error

	// AddDriver opens the controller at path (usually a serial device).
	AddDriver(path string) error
	RemoveDriver(path string) error

	// Close releases the driver and its options.
	Close() error
}
