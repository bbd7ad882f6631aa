package telemetry

import (
	"sync"
	"testing"
	"time"

	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type mockWriter struct {
	mu     sync.Mutex
	points []point
}

func (m *mockWriter) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, point{measurement, tags, fields, ts})
}

func valueEvent(typ zw.EventType, node uint8, cc zw.CommandClass, v *zw.ValueSnapshot) zw.Event {
	return zw.Event{
		Type:         typ,
		Timestamp:    time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
		NodeID:       node,
		CommandClass: cc,
		Value:        v,
	}
}

func TestSinkWritesNumericValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"bool true", true, 1},
		{"bool false", false, 0},
		{"byte", uint8(60), 60},
		{"short", int16(-40), -40},
		{"int", int32(1234), 1234},
		{"decimal", float32(20.5), 20.5},
		{"float64", 45.0, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &mockWriter{}
			s := NewSink(w)

			s.HandleEvent(valueEvent(zw.EventValueChanged, 4, zw.ClassSensorMultilevel,
				&zw.ValueSnapshot{Instance: 1, Index: 1, Label: "Temperature", Units: "C", Value: tt.value}))

			if len(w.points) != 1 {
				t.Fatalf("points = %d, want 1", len(w.points))
			}
			p := w.points[0]
			if p.measurement != Measurement || p.fields["value"] != tt.want {
				t.Errorf("point = %+v, want value %v", p, tt.want)
			}
		})
	}
}

func TestSinkTags(t *testing.T) {
	w := &mockWriter{}
	s := NewSink(w)

	e := valueEvent(zw.EventValueAdded, 3, zw.ClassSwitchMultilevel,
		&zw.ValueSnapshot{Instance: 1, Index: 0, Label: "Level", Value: uint8(99)})
	s.HandleEvent(e)

	p := w.points[0]
	want := map[string]string{
		"node_id":       "3",
		"command_class": "switch_multilevel",
		"instance":      "1",
		"index":         "0",
		"label":         "Level",
	}
	for k, v := range want {
		if p.tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, p.tags[k], v)
		}
	}
	if _, ok := p.tags["units"]; ok {
		t.Error("empty units should not be tagged")
	}
	if !p.ts.Equal(e.Timestamp) {
		t.Errorf("timestamp = %v, want event time", p.ts)
	}
}

func TestSinkSkips(t *testing.T) {
	w := &mockWriter{}
	s := NewSink(w)

	s.HandleEvent(zw.Event{Type: zw.EventNodeAdded, NodeID: 2})
	s.HandleEvent(valueEvent(zw.EventValueRemoved, 2, zw.ClassSwitchBinary, nil))
	s.HandleEvent(valueEvent(zw.EventValueChanged, 2, zw.ClassSwitchBinary, nil))
	s.HandleEvent(valueEvent(zw.EventValueChanged, 3, zw.ClassConfiguration,
		&zw.ValueSnapshot{Kind: zw.KindList, Value: "Normal", Items: []string{"Normal", "Eco"}}))
	s.HandleEvent(valueEvent(zw.EventValueAdded, 3, zw.ClassSwitchMultilevel,
		&zw.ValueSnapshot{Kind: zw.KindButton}))

	if len(w.points) != 0 {
		t.Errorf("points = %+v, want none", w.points)
	}
	if s.Written() != 0 || s.Skipped() != 2 {
		t.Errorf("Written/Skipped = %d/%d, want 0/2", s.Written(), s.Skipped())
	}
}
