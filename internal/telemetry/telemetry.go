// Package telemetry records numeric Z-Wave values as time series.
//
// A Sink turns value-added and value-changed events into points of the
// zwave_value measurement, tagged with node, command class, instance, index
// and label. Booleans are written as 0/1; strings, lists and buttons are
// skipped. Writes are handed to a non-blocking PointWriter
// (*influxdb.Client), so the sink is safe on the consumer goroutine.
package telemetry

import (
	"strconv"
	"sync/atomic"
	"time"

	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// Measurement is the name of the points written by the sink.
const Measurement = "zwave_value"

// PointWriter queues points. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// Sink is a zwave.EventSink writing value samples.
type Sink struct {
	writer  PointWriter
	written atomic.Uint64
	skipped atomic.Uint64
}

// NewSink creates a Sink writing to w.
func NewSink(w PointWriter) *Sink {
	return &Sink{writer: w}
}

// HandleEvent implements zwave.EventSink.
func (s *Sink) HandleEvent(e zw.Event) {
	if e.Type != zw.EventValueAdded && e.Type != zw.EventValueChanged {
		return
	}
	if e.Value == nil {
		return
	}

	value, ok := numeric(e.Value.Value)
	if !ok {
		s.skipped.Add(1)
		return
	}

	tags := map[string]string{
		"node_id":       strconv.Itoa(int(e.NodeID)),
		"command_class": e.CommandClass.String(),
		"instance":      strconv.Itoa(int(e.Value.Instance)),
		"index":         strconv.Itoa(int(e.Value.Index)),
	}
	if e.Value.Label != "" {
		tags["label"] = e.Value.Label
	}
	if e.Value.Units != "" {
		tags["units"] = e.Value.Units
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	s.writer.WritePointWithTime(Measurement, tags, map[string]any{"value": value}, ts)
	s.written.Add(1)
}

// Written returns the number of points handed to the writer.
func (s *Sink) Written() uint64 { return s.written.Load() }

// Skipped returns the number of value events with a non-numeric value.
func (s *Sink) Skipped() uint64 { return s.skipped.Load() }

// numeric converts the value types produced by the value readers to float64.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case uint8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
