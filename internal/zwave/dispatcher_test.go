package zwave

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestDispatcher() (*Dispatcher, *fakeDriver, *Cache, *recordingSink, *recordingLogger) {
	d := newFakeDriver()
	c := NewCache()
	sink := newRecordingSink(64)
	logger := &recordingLogger{}
	disp := NewDispatcher(d, c, sink, logger)
	disp.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return disp, d, c, sink, logger
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDispatchDiscoveryScenario(t *testing.T) {
	disp, d, c, sink, _ := newTestDispatcher()

	sw := testValue(3, ClassSwitchBinary, 1, 0, KindBool)
	d.labels[sw] = "Switch"
	d.values[sw] = false

	disp.Dispatch(Notification{Type: NotificationDriverReady, HomeID: 0x1234})
	disp.Dispatch(Notification{Type: NotificationNodeAdded, HomeID: 0x1234, NodeID: 3})
	disp.Dispatch(Notification{Type: NotificationValueAdded, HomeID: 0x1234, NodeID: 3, ValueID: sw})

	d.values[sw] = true
	disp.Dispatch(Notification{Type: NotificationValueChanged, HomeID: 0x1234, NodeID: 3, ValueID: sw})

	events := sink.getEvents()
	want := []EventType{EventDriverReady, EventNodeAdded, EventValueAdded, EventValueChanged}
	if !equalTypes(eventTypes(events), want) {
		t.Fatalf("events = %v, want %v", eventTypes(events), want)
	}

	if events[0].HomeID != 0x1234 {
		t.Errorf("driver_ready home = %x, want 1234", events[0].HomeID)
	}
	if events[1].NodeID != 3 {
		t.Errorf("node_added node = %d, want 3", events[1].NodeID)
	}

	added := events[2]
	if added.NodeID != 3 || added.CommandClass != ClassSwitchBinary {
		t.Errorf("value_added = node %d class %s", added.NodeID, added.CommandClass)
	}
	if added.Value == nil || added.Value.Label != "Switch" || added.Value.Value != false {
		t.Errorf("value_added snapshot = %+v", added.Value)
	}
	if changed := events[3].Value; changed == nil || changed.Value != true {
		t.Errorf("value_changed snapshot = %+v, want value true", changed)
	}

	node, ok := c.FindNode(3)
	if !ok {
		t.Fatal("node 3 not cached")
	}
	if len(node.Values) != 1 || node.Values[0] != sw {
		t.Errorf("node 3 values = %+v, want exactly the switch", node.Values)
	}

	if len(d.verified) != 1 || d.verified[0] != sw {
		t.Errorf("change-verified = %+v, want the added value", d.verified)
	}
}

func TestDispatchHomeIDCapturedOnce(t *testing.T) {
	disp, _, _, sink, _ := newTestDispatcher()

	if _, ok := disp.HomeID(); ok {
		t.Fatal("HomeID reported ready before driver_ready")
	}

	disp.Dispatch(Notification{Type: NotificationDriverReady, HomeID: 0xABCD})
	disp.Dispatch(Notification{Type: NotificationDriverReady, HomeID: 0x9999})

	home, ok := disp.HomeID()
	if !ok || home != 0xABCD {
		t.Errorf("HomeID() = %x, %v; want abcd, true", home, ok)
	}
	if got := len(sink.getEvents()); got != 2 {
		t.Errorf("events = %d, want 2 driver_ready events", got)
	}
}

func TestDispatchHomeIDReadConcurrently(t *testing.T) {
	disp, _, _, _, _ := newTestDispatcher()

	done := make(chan struct{})
	bad := make(chan uint32, 1)
	go func() {
		defer close(done)
		for {
			home, ok := disp.HomeID()
			if ok {
				if home != 0xABCD {
					bad <- home
				}
				return
			}
		}
	}()

	disp.Dispatch(Notification{Type: NotificationDriverReady, HomeID: 0xABCD})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader never saw the home id")
	}
	select {
	case home := <-bad:
		t.Errorf("HomeID() = %x, true while capturing abcd", home)
	default:
	}
}

func TestDispatchNodeReadyUsesCapturedHome(t *testing.T) {
	disp, d, _, sink, _ := newTestDispatcher()
	d.setInfo(0xABCD, 7, NodeInfo{Manufacturer: "Aeon Labs", Product: "Smart Switch", Type: "Binary Power Switch"})
	d.setInfo(0x0000, 7, NodeInfo{Manufacturer: "wrong"})

	disp.Dispatch(Notification{Type: NotificationDriverReady, HomeID: 0xABCD})
	disp.Dispatch(Notification{Type: NotificationNodeQueriesComplete, HomeID: 0, NodeID: 7})

	events := sink.getEvents()
	ready := events[len(events)-1]
	if ready.Type != EventNodeReady || ready.NodeID != 7 {
		t.Fatalf("last event = %s node %d", ready.Type, ready.NodeID)
	}
	if ready.Info == nil || ready.Info.Manufacturer != "Aeon Labs" || ready.Info.Product != "Smart Switch" {
		t.Errorf("node_ready info = %+v", ready.Info)
	}
}

func TestDispatchValueRemoved(t *testing.T) {
	disp, _, c, sink, _ := newTestDispatcher()
	sw := testValue(5, ClassSwitchBinary, 1, 0, KindBool)
	bat := testValue(5, ClassBattery, 1, 0, KindByte)

	disp.Dispatch(Notification{Type: NotificationNodeAdded, NodeID: 5})
	disp.Dispatch(Notification{Type: NotificationValueAdded, NodeID: 5, ValueID: sw})
	disp.Dispatch(Notification{Type: NotificationValueAdded, NodeID: 5, ValueID: bat})
	disp.Dispatch(Notification{Type: NotificationValueRemoved, NodeID: 5, ValueID: sw})
	// Removing an absent value is not an error.
	disp.Dispatch(Notification{Type: NotificationValueRemoved, NodeID: 5, ValueID: sw})

	node, _ := c.FindNode(5)
	if len(node.Values) != 1 || node.Values[0] != bat {
		t.Errorf("values = %+v, want only battery", node.Values)
	}

	events := sink.getEvents()
	removed := events[3]
	if removed.Type != EventValueRemoved || removed.CommandClass != ClassSwitchBinary || removed.Index != 0 {
		t.Errorf("value_removed = %+v", removed)
	}
}

func TestDispatchValueAddedForUnknownNode(t *testing.T) {
	disp, _, c, sink, _ := newTestDispatcher()
	v := testValue(4, ClassSensorMultilevel, 1, 1, KindDecimal)

	disp.Dispatch(Notification{Type: NotificationValueAdded, NodeID: 4, ValueID: v})

	if _, ok := c.FindNode(4); ok {
		t.Error("value_added created a node record")
	}
	if events := sink.getEvents(); len(events) != 1 || events[0].Type != EventValueAdded {
		t.Errorf("events = %v, want one value_added", eventTypes(events))
	}
}

func TestDispatchNodeRemoved(t *testing.T) {
	disp, _, c, sink, _ := newTestDispatcher()

	disp.Dispatch(Notification{Type: NotificationNodeAdded, NodeID: 6})
	disp.Dispatch(Notification{Type: NotificationNodeRemoved, NodeID: 6})
	disp.Dispatch(Notification{Type: NotificationNodeRemoved, NodeID: 6})

	if _, ok := c.FindNode(6); ok {
		t.Error("node 6 still cached")
	}
	want := []EventType{EventNodeAdded, EventNodeRemoved}
	if got := eventTypes(sink.getEvents()); !equalTypes(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestDispatchTable(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want []EventType
	}{
		{"driver failed", Notification{Type: NotificationDriverFailed}, []EventType{EventDriverFailed}},
		{"node new", Notification{Type: NotificationNodeNew, NodeID: 2}, nil},
		{"protocol info", Notification{Type: NotificationNodeProtocolInfo, NodeID: 2}, nil},
		{"naming", Notification{Type: NotificationNodeNaming, NodeID: 2}, nil},
		{"polling enabled", Notification{Type: NotificationPollingEnabled}, nil},
		{"polling disabled", Notification{Type: NotificationPollingDisabled}, nil},
		{"value refreshed", Notification{Type: NotificationValueRefreshed}, nil},
		{"essential queries", Notification{Type: NotificationEssentialNodeQueriesComplete}, nil},
		{"awake nodes queried", Notification{Type: NotificationAwakeNodesQueried}, []EventType{EventScanComplete}},
		{"all nodes queried", Notification{Type: NotificationAllNodesQueried}, []EventType{EventScanComplete}},
		{"some dead", Notification{Type: NotificationAllNodesQueriedSomeDead}, []EventType{EventScanComplete}},
		{"generic", Notification{Type: NotificationGeneric, NodeID: 9, Code: CodeDead}, []EventType{EventNotification}},
		{"node event", Notification{Type: NotificationNodeEvent, NodeID: 9, Event: 255}, []EventType{EventNodeEvent}},
		{"scene event", Notification{Type: NotificationSceneEvent, NodeID: 9, SceneID: 3}, []EventType{EventSceneEvent}},
		{"group", Notification{Type: NotificationGroup, GroupIdx: 1}, nil},
		{"button on", Notification{Type: NotificationButtonOn, ButtonID: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disp, _, _, sink, _ := newTestDispatcher()
			disp.Dispatch(tt.n)
			if got := eventTypes(sink.getEvents()); !equalTypes(got, tt.want) {
				t.Errorf("events = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatchUnhandledIsLogged(t *testing.T) {
	disp, _, _, sink, logger := newTestDispatcher()

	disp.Dispatch(Notification{Type: NotificationType(200)})
	disp.Dispatch(Notification{Type: NotificationDriverReset})

	if !logger.has("warn: unhandled notification") {
		t.Error("unhandled notification not logged")
	}
	if got := disp.unhandled.Load(); got != 2 {
		t.Errorf("unhandled = %d, want 2", got)
	}
	if len(sink.getEvents()) != 0 {
		t.Error("unhandled notification produced an event")
	}
}

func TestSnapshotKinds(t *testing.T) {
	disp, d, _, _, logger := newTestDispatcher()

	list := testValue(8, ClassThermostatMode, 1, 0, KindList)
	d.values[list] = "Heat"
	d.items[list] = []string{"Off", "Heat", "Cool"}

	button := testValue(8, ClassBasic, 1, 5, KindButton)
	sched := testValue(8, ClassClimateControlSchedule, 1, 1, KindSchedule)
	broken := testValue(8, ClassSensorMultilevel, 1, 1, KindDecimal)
	d.failRead[broken] = true

	s := disp.snapshot(list)
	if s.Value != "Heat" || len(s.Items) != 3 || s.Items[2] != "Cool" {
		t.Errorf("list snapshot = %+v", s)
	}

	if s := disp.snapshot(button); s.Value != nil || s.Items != nil {
		t.Errorf("button snapshot = %+v, want no value", s)
	}

	if s := disp.snapshot(sched); s.Value != nil {
		t.Errorf("schedule snapshot value = %v, want omitted", s.Value)
	}
	if !logger.has("warn: unsupported value kind") {
		t.Error("unsupported kind not logged")
	}

	if s := disp.snapshot(broken); s.Value != nil {
		t.Errorf("unreadable snapshot value = %v, want omitted", s.Value)
	}
}

func TestEventJSONOmitsMissingValue(t *testing.T) {
	e := Event{
		Type:         EventValueChanged,
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		NodeID:       8,
		CommandClass: ClassClimateControlSchedule,
		Value:        &ValueSnapshot{Kind: KindSchedule, Label: "Schedule"},
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["type"] != "value_changed" {
		t.Errorf("type = %v", decoded["type"])
	}
	value, ok := decoded["value"].(map[string]any)
	if !ok {
		t.Fatalf("value = %T, want object", decoded["value"])
	}
	if _, present := value["value"]; present {
		t.Error("snapshot without a scalar still carries a value field")
	}
	if value["type"] != "schedule" {
		t.Errorf("value.type = %v, want schedule", value["type"])
	}
}
