package zwave

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names an emitted event.
type EventType string

// Events emitted by the dispatcher.
const (
	EventDriverReady  EventType = "driver_ready"
	EventDriverFailed EventType = "driver_failed"
	EventNodeAdded    EventType = "node_added"
	EventNodeRemoved  EventType = "node_removed"
	EventNodeReady    EventType = "node_ready"
	EventNodeEvent    EventType = "node_event"
	EventValueAdded   EventType = "value_added"
	EventValueChanged EventType = "value_changed"
	EventValueRemoved EventType = "value_removed"
	EventSceneEvent   EventType = "scene_event"
	EventScanComplete EventType = "scan_complete"
	EventNotification EventType = "notification"
)

// Event is one entry of the ordered event stream. Which fields are set
// depends on Type; Payload returns exactly the arguments of that type.
type Event struct {
	Type         EventType
	Timestamp    time.Time
	HomeID       uint32
	NodeID       uint8
	CommandClass CommandClass
	Index        uint8
	Value        *ValueSnapshot
	Info         *NodeInfo
	NodeEvent    uint8
	SceneID      uint8
	Code         NotificationCode
}

// Payload returns the event's arguments keyed by name.
func (e Event) Payload() map[string]any {
	switch e.Type {
	case EventDriverReady:
		return map[string]any{"home_id": e.HomeID}
	case EventNodeAdded, EventNodeRemoved:
		return map[string]any{"node_id": e.NodeID}
	case EventNodeReady:
		return map[string]any{"node_id": e.NodeID, "info": e.Info}
	case EventValueAdded, EventValueChanged:
		return map[string]any{"node_id": e.NodeID, "command_class": e.CommandClass, "value": e.Value}
	case EventValueRemoved:
		return map[string]any{"node_id": e.NodeID, "command_class": e.CommandClass, "index": e.Index}
	case EventNodeEvent:
		return map[string]any{"node_id": e.NodeID, "event": e.NodeEvent}
	case EventSceneEvent:
		return map[string]any{"node_id": e.NodeID, "scene_id": e.SceneID}
	case EventNotification:
		return map[string]any{"node_id": e.NodeID, "code": e.Code.String()}
	default:
		return map[string]any{}
	}
}

// MarshalJSON encodes the event as {"type", "timestamp", ...payload}.
func (e Event) MarshalJSON() ([]byte, error) {
	out := e.Payload()
	out["type"] = e.Type
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// EventSink consumes events. HandleEvent runs on the consumer goroutine, so
// implementations that do I/O should hand off to their own worker.
type EventSink interface {
	HandleEvent(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// HandleEvent calls f(e).
func (f EventSinkFunc) HandleEvent(e Event) { f(e) }

// MultiSink delivers every event to each sink in order. A panicking sink is
// logged and does not stop delivery to the others.
type MultiSink struct {
	sinks  []EventSink
	logger Logger
}

// NewMultiSink fans events out to sinks. Nil sinks are skipped.
func NewMultiSink(logger Logger, sinks ...EventSink) *MultiSink {
	m := &MultiSink{logger: logger}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Add appends a sink. It must not be called once the session is running.
func (m *MultiSink) Add(s EventSink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// HandleEvent implements EventSink.
func (m *MultiSink) HandleEvent(e Event) {
	for _, s := range m.sinks {
		m.deliver(s, e)
	}
}

func (m *MultiSink) deliver(s EventSink, e Event) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("event sink panicked",
				"event", e.Type,
				"error", fmt.Sprintf("%v", r))
		}
	}()
	s.HandleEvent(e)
}
