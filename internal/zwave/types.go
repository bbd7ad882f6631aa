package zwave

import (
	"fmt"
	"time"
)

// ValueID identifies one value on one node. It is a plain comparable struct:
// two ValueIDs refer to the same value exactly when they are ==.
type ValueID struct {
	HomeID       uint32       `json:"home_id"`
	NodeID       uint8        `json:"node_id"`
	Genre        ValueGenre   `json:"genre"`
	CommandClass CommandClass `json:"command_class"`
	Instance     uint8        `json:"instance"`
	Index        uint8        `json:"index"`
	Kind         ValueKind    `json:"type"`
}

// ValueKey is the identity of a value within its node.
type ValueKey struct {
	CommandClass CommandClass
	Index        uint8
	Instance     uint8
}

// Key returns the (class, index, instance) triple that is unique per node.
func (v ValueID) Key() ValueKey {
	return ValueKey{CommandClass: v.CommandClass, Index: v.Index, Instance: v.Instance}
}

// Equal reports whether two references name the same value.
func (v ValueID) Equal(other ValueID) bool {
	return v == other
}

// String renders the reference as node/class/instance/index.
func (v ValueID) String() string {
	return fmt.Sprintf("%d/%s/%d/%d", v.NodeID, v.CommandClass, v.Instance, v.Index)
}

// Notification is an immutable copy of a driver callback. Only the
// discriminant that belongs to Type is meaningful; the others are zero.
type Notification struct {
	Type     NotificationType
	HomeID   uint32
	NodeID   uint8
	ValueID  ValueID
	GroupIdx uint8
	Event    uint8
	ButtonID uint8
	SceneID  uint8
	Code     NotificationCode

	// Received is when ingestion copied the notification.
	Received time.Time
}

// NodeRecord is the cache entry for a node. Values keeps insertion order.
type NodeRecord struct {
	HomeID uint32
	NodeID uint8
	Polled bool
	Values []ValueID
}

// NodeSnapshot is a detached copy of a NodeRecord returned by Cache lookups.
type NodeSnapshot struct {
	HomeID uint32    `json:"home_id"`
	NodeID uint8     `json:"node_id"`
	Polled bool      `json:"polled"`
	Values []ValueID `json:"values"`
}

// ValueSnapshot is the event payload describing one value at emission time.
// Value is nil when the kind has no scalar or could not be read.
type ValueSnapshot struct {
	Kind      ValueKind  `json:"type"`
	Genre     ValueGenre `json:"genre"`
	Instance  uint8      `json:"instance"`
	Index     uint8      `json:"index"`
	Label     string     `json:"label"`
	Units     string     `json:"units"`
	ReadOnly  bool       `json:"read_only"`
	WriteOnly bool       `json:"write_only"`
	Min       int32      `json:"min"`
	Max       int32      `json:"max"`
	Value     any        `json:"value,omitempty"`
	Items     []string   `json:"values,omitempty"`
}

// NodeInfo is the descriptive metadata emitted once a node's queries finish.
type NodeInfo struct {
	Manufacturer   string `json:"manufacturer"`
	ManufacturerID string `json:"manufacturer_id"`
	Product        string `json:"product"`
	ProductType    string `json:"product_type"`
	ProductID      string `json:"product_id"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Location       string `json:"location"`
}

// Options are handed to the driver once, before the first connection.
// They are not validated here.
type Options struct {
	ConfigPath           string
	UserPath             string
	ConsoleOutput        bool
	Logging              bool
	SaveConfiguration    bool
	DriverMaxAttempts    int
	PollInterval         time.Duration
	SuppressValueRefresh bool
	NetworkKey           string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		ConsoleOutput:     false,
		Logging:           false,
		SaveConfiguration: false,
		DriverMaxAttempts: 3,
	}
}
