package zwave

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// capabilityByClass maps command classes to the capabilities Core
// understands. Classes not listed here are not announced.
var capabilityByClass = map[zw.CommandClass]string{
	zw.ClassSwitchBinary:       "on_off",
	zw.ClassSwitchMultilevel:   "dim",
	zw.ClassSensorBinary:       "binary_sensor",
	zw.ClassSensorMultilevel:   "sensor",
	zw.ClassMeter:              "energy_meter",
	zw.ClassBattery:            "battery",
	zw.ClassThermostatSetpoint: "setpoint",
	zw.ClassConfiguration:      "configuration",
}

// HandleEvent implements zwave.EventSink. It runs on the session's consumer
// goroutine and only queues messages; publishLoop sends them.
func (b *Bridge) HandleEvent(e zw.Event) {
	select {
	case <-b.done:
		return
	default:
	}

	payload, err := json.Marshal(e)
	if err != nil {
		b.logError("failed to marshal event", err)
		return
	}
	b.enqueue(outbound{topic: EventTopic(e.Type), payload: payload})

	switch e.Type {
	case zw.EventValueAdded, zw.EventValueChanged:
		b.handleValue(e)
	case zw.EventValueRemoved:
		b.handleValueRemoved(e)
	case zw.EventNodeRemoved:
		b.handleNodeRemoved(e.NodeID)
	case zw.EventNodeReady:
		b.handleNodeReady(e)
	case zw.EventDriverReady:
		b.health.SetDriverFailed(false)
		b.enqueue(outbound{health: true})
	case zw.EventDriverFailed:
		b.health.SetDriverFailed(true)
		b.enqueue(outbound{health: true})
	}
}

func (b *Bridge) enqueue(m outbound) {
	select {
	case b.outbox <- m:
	default:
		if b.publishDropped.Add(1) == 1 {
			b.logError("publish buffer full, dropping messages",
				fmt.Errorf("buffer=%d", cap(b.outbox)))
		}
	}
}

// publishLoop sends queued messages in order until Stop, then drains what
// is left.
func (b *Bridge) publishLoop() {
	defer b.wg.Done()

	for {
		select {
		case m := <-b.outbox:
			b.send(m)
		case <-b.done:
			for {
				select {
				case m := <-b.outbox:
					b.send(m)
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) send(m outbound) {
	if m.health {
		if err := b.health.PublishNow(); err != nil {
			b.logError("failed to publish health status", err)
		}
		return
	}

	if err := b.mqtt.Publish(m.topic, m.payload, b.cfg.QoS, m.retained); err != nil {
		b.logError("failed to publish", fmt.Errorf("topic=%s: %w", m.topic, err))
		return
	}
	b.published.Add(1)
}

// handleValue records a value and republishes the node's state when it
// changed. Values that could not be read are left out of the state.
func (b *Bridge) handleValue(e zw.Event) {
	if e.Value == nil || e.Value.Value == nil {
		return
	}
	key := zw.ValueKey{CommandClass: e.CommandClass, Index: e.Value.Index, Instance: e.Value.Instance}

	b.stateCacheMu.Lock()
	values, ok := b.stateCache[e.NodeID]
	if !ok {
		values = make(map[zw.ValueKey]any)
		b.stateCache[e.NodeID] = values
	}
	if cached, exists := values[key]; exists && valuesEqual(cached, e.Value.Value) {
		b.stateCacheMu.Unlock()
		b.logDebug("state unchanged, skipping publish", "node_id", e.NodeID, "value", stateKey(key))
		return
	}
	values[key] = e.Value.Value
	state := renderState(values)
	b.stateCacheMu.Unlock()

	b.queueState(e.NodeID, state)
}

func (b *Bridge) handleValueRemoved(e zw.Event) {
	b.stateCacheMu.Lock()
	values := b.stateCache[e.NodeID]
	removed := false
	for key := range values {
		if key.CommandClass == e.CommandClass && key.Index == e.Index {
			delete(values, key)
			removed = true
		}
	}
	state := renderState(values)
	b.stateCacheMu.Unlock()

	if removed {
		b.queueState(e.NodeID, state)
	}
}

// handleNodeRemoved forgets the node and clears its retained state.
func (b *Bridge) handleNodeRemoved(nodeID uint8) {
	b.stateCacheMu.Lock()
	delete(b.stateCache, nodeID)
	b.stateCacheMu.Unlock()

	b.enqueue(outbound{topic: StateTopic(nodeID), payload: []byte{}, retained: true})
}

func (b *Bridge) queueState(nodeID uint8, state map[string]any) {
	payload, err := json.Marshal(NewStateMessage(nodeID, state))
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	b.enqueue(outbound{topic: StateTopic(nodeID), payload: payload, retained: true})
}

// handleNodeReady announces a node whose interview finished.
func (b *Bridge) handleNodeReady(e zw.Event) {
	device := DiscoveredDevice{
		Protocol:     Protocol,
		Address:      NodeAddress(e.NodeID),
		Capabilities: []string{},
	}
	if e.Info != nil {
		device.Type = e.Info.Type
		device.Manufacturer = e.Info.Manufacturer
		device.Product = e.Info.Product
		device.Location = e.Info.Location
		device.SuggestedName = e.Info.Name
		if device.SuggestedName == "" {
			device.SuggestedName = e.Info.Product
		}
	}
	if node, ok := b.session.Cache().FindNode(e.NodeID); ok {
		device.Capabilities = capabilities(node.Values)
	}

	payload, err := json.Marshal(DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    b.cfg.ID,
		Devices:   []DiscoveredDevice{device},
	})
	if err != nil {
		b.logError("failed to marshal discovery", err)
		return
	}
	b.enqueue(outbound{topic: DiscoveryTopic(), payload: payload})
}

// capabilities lists the distinct capabilities of a node's values, sorted.
func capabilities(values []zw.ValueID) []string {
	caps := []string{}
	for _, v := range values {
		c, ok := capabilityByClass[v.CommandClass]
		if ok && !slices.Contains(caps, c) {
			caps = append(caps, c)
		}
	}
	slices.Sort(caps)
	return caps
}

// stateKey renders a value key as class/instance/index.
func stateKey(k zw.ValueKey) string {
	return fmt.Sprintf("%s/%d/%d", k.CommandClass, k.Instance, k.Index)
}

func renderState(values map[zw.ValueKey]any) map[string]any {
	state := make(map[string]any, len(values))
	for k, v := range values {
		state[stateKey(k)] = v
	}
	return state
}

// valuesEqual compares two values for equality, handling []byte specially
// since Go's == operator cannot compare slices directly.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	aBytes, aIsBytes := a.([]byte)
	bBytes, bIsBytes := b.([]byte)
	if aIsBytes || bIsBytes {
		return aIsBytes && bIsBytes && bytes.Equal(aBytes, bBytes)
	}

	// Driver values are bool, numbers and strings.
	return a == b
}
