package zwave

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// Protocol is the protocol identifier carried in every message.
const Protocol = "zwave"

// CommandMessage is sent from Core to the bridge to run a command on a node.
// Topic: graylogic/command/zwave/{node_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// NodeID is the target node. When zero the node id is taken from the
	// topic. Controller commands ignore it.
	NodeID uint8 `json:"node_id"`

	// Command is the command name (e.g., "on", "off", "set_level").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 50} for set_level
	//   {"command_class": 112, "index": 3, "value": 1} for set_value
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// ToCommand converts the message to the core command type.
func (m CommandMessage) ToCommand() zw.Command {
	return zw.Command{ID: m.ID, Name: m.Command, NodeID: m.NodeID, Parameters: m.Parameters}
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was applied by the driver.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the command did not complete in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/zwave/{node_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    uint8     `json:"node_id"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "NOT_CONFIGURED", "INVALID_PARAMETERS").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
	ErrCodeBusy              = "BUSY"
)

// StateMessage carries the last known values of one node.
// Topic: graylogic/state/zwave/{node_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	NodeID    uint8     `json:"node_id"`
	Timestamp time.Time `json:"timestamp"`

	// State maps value keys ("switch_binary/1/0") to current values.
	State map[string]any `json:"state"`

	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthOffline   HealthStatus = "offline"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/zwave
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string            `json:"bridge"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Network       *NetworkStatus    `json:"network,omitempty"`
	Statistics    *BridgeStatistics `json:"statistics,omitempty"`
	NodesManaged  int               `json:"nodes_managed"`
	Reason        string            `json:"reason,omitempty"`
}

// NetworkStatus describes the controller connection.
type NetworkStatus struct {
	// Status is "connected" or "disconnected".
	Status string `json:"status"`

	// HomeID is the network's home id in hex, once the driver is ready.
	HomeID string `json:"home_id,omitempty"`

	// Device is the controller device path.
	Device string `json:"device,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	NotificationsReceived uint64 `json:"notifications_received"`
	NotificationsDropped  uint64 `json:"notifications_dropped"`
	EventsEmitted         uint64 `json:"events_emitted"`
	CommandsExecuted      uint64 `json:"commands_executed"`
	QueueDepth            int    `json:"queue_depth"`
	PublishDropped        uint64 `json:"publish_dropped"`
}

// RequestMessage is sent from Core for request/response operations.
// Topic: graylogic/request/zwave/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation: "list_nodes", "get_node" or "stats".
	Action string `json:"action"`

	// NodeID is the target node for get_node.
	NodeID uint8 `json:"node_id,omitempty"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/zwave/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *AckError      `json:"error,omitempty"`
}

// DiscoveryMessage announces a node once its interview completes.
// Topic: graylogic/discovery/zwave
type DiscoveryMessage struct {
	Timestamp time.Time          `json:"timestamp"`
	Bridge    string             `json:"bridge"`
	Devices   []DiscoveredDevice `json:"devices"`
}

// DiscoveredDevice describes one node for Core's device registry.
type DiscoveredDevice struct {
	Protocol      string   `json:"protocol"`
	Address       string   `json:"address"`
	Type          string   `json:"type"`
	Capabilities  []string `json:"capabilities"`
	Manufacturer  string   `json:"manufacturer,omitempty"`
	Product       string   `json:"product,omitempty"`
	SuggestedName string   `json:"suggested_name,omitempty"`
	Location      string   `json:"location,omitempty"`
}

// MarshalJSON writes the timestamp as RFC3339.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON accepts an RFC3339 or missing timestamp.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		NodeID:    cmd.NodeID,
		Command:   cmd.Command,
		Status:    status,
		Protocol:  Protocol,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage creates a state message for a node.
func NewStateMessage(nodeID uint8, state map[string]any) StateMessage {
	return StateMessage{
		NodeID:    nodeID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  Protocol,
		Address:   NodeAddress(nodeID),
	}
}

// NewLWTMessage creates the Last Will and Testament health message.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

// TopicPrefix is the base topic for all Gray Logic messages.
const TopicPrefix = "graylogic"

// NodeAddress is the topic address of a node: its decimal id.
func NodeAddress(nodeID uint8) string {
	return strconv.Itoa(int(nodeID))
}

// ParseNodeAddress parses a topic address back to a node id.
func ParseNodeAddress(address string) (uint8, error) {
	n, err := strconv.ParseUint(address, 10, 8)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNodeAddress, address)
	}
	return uint8(n), nil
}

// EventTopic returns the topic an event type is published on.
// Example: graylogic/event/zwave/value_changed
func EventTopic(t zw.EventType) string {
	return fmt.Sprintf("%s/event/zwave/%s", TopicPrefix, t)
}

// CommandTopic returns the command topic for a node.
// Example: graylogic/command/zwave/5
func CommandTopic(nodeID uint8) string {
	return fmt.Sprintf("%s/command/zwave/%s", TopicPrefix, NodeAddress(nodeID))
}

// AckTopic returns the acknowledgment topic for a node.
// Example: graylogic/ack/zwave/5
func AckTopic(nodeID uint8) string {
	return fmt.Sprintf("%s/ack/zwave/%s", TopicPrefix, NodeAddress(nodeID))
}

// StateTopic returns the retained state topic for a node.
// Example: graylogic/state/zwave/5
func StateTopic(nodeID uint8) string {
	return fmt.Sprintf("%s/state/zwave/%s", TopicPrefix, NodeAddress(nodeID))
}

// HealthTopic returns the bridge health topic.
func HealthTopic() string {
	return TopicPrefix + "/health/zwave"
}

// DiscoveryTopic returns the node discovery topic.
func DiscoveryTopic() string {
	return TopicPrefix + "/discovery/zwave"
}

// RequestTopic returns the topic for a request.
// Example: graylogic/request/zwave/req-123
func RequestTopic(requestID string) string {
	return fmt.Sprintf("%s/request/zwave/%s", TopicPrefix, requestID)
}

// ResponseTopic returns the topic for a response.
// Example: graylogic/response/zwave/req-123
func ResponseTopic(requestID string) string {
	return fmt.Sprintf("%s/response/zwave/%s", TopicPrefix, requestID)
}

// CommandSubscribeTopic matches all command topics.
func CommandSubscribeTopic() string {
	return TopicPrefix + "/command/zwave/#"
}

// RequestSubscribeTopic matches all request topics.
func RequestSubscribeTopic() string {
	return TopicPrefix + "/request/zwave/#"
}
