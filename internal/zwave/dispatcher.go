package zwave

import (
	"errors"
	"sync/atomic"
	"time"
)

// DispatchDriver is the part of the driver the dispatcher reads from.
type DispatchDriver interface {
	ValueReader
	NodeInfoReader
	SetChangeVerified(v ValueID, verify bool)
}

// Dispatcher applies notifications to the cache and turns them into events.
// It must only be used from the consumer goroutine; HomeID and the counters
// may be read from anywhere.
type Dispatcher struct {
	driver DispatchDriver
	cache  *Cache
	sink   EventSink
	logger Logger
	now    func() time.Time

	// home is nil until the first driver-ready; id and presence are
	// published together.
	home atomic.Pointer[uint32]

	dispatched atomic.Uint64
	emitted    atomic.Uint64
	unhandled  atomic.Uint64
}

// NewDispatcher creates a dispatcher writing to cache and emitting to sink.
func NewDispatcher(driver DispatchDriver, cache *Cache, sink EventSink, logger Logger) *Dispatcher {
	if logger == nil {
		logger = nopLogger{}
	}
	if sink == nil {
		sink = EventSinkFunc(func(Event) {})
	}
	return &Dispatcher{
		driver: driver,
		cache:  cache,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// HomeID returns the network id captured from the first driver-ready, and
// whether one has been captured.
func (d *Dispatcher) HomeID() (uint32, bool) {
	if p := d.home.Load(); p != nil {
		return *p, true
	}
	return 0, false
}

// Dispatch handles one notification.
func (d *Dispatcher) Dispatch(n Notification) {
	d.dispatched.Add(1)

	switch n.Type {
	case NotificationDriverReady:
		home := n.HomeID
		d.home.CompareAndSwap(nil, &home)
		d.emit(Event{Type: EventDriverReady, HomeID: n.HomeID})

	case NotificationDriverFailed:
		d.emit(Event{Type: EventDriverFailed})

	case NotificationNodeAdded:
		d.cache.InsertNode(NodeRecord{HomeID: n.HomeID, NodeID: n.NodeID})
		d.emit(Event{Type: EventNodeAdded, NodeID: n.NodeID})

	case NotificationNodeRemoved:
		if d.cache.RemoveNode(n.NodeID) {
			d.emit(Event{Type: EventNodeRemoved, NodeID: n.NodeID})
		}

	case NotificationValueAdded:
		v := n.ValueID
		if !d.cache.AppendValue(n.NodeID, v) {
			d.logger.Debug("value added for unknown node", "node_id", n.NodeID, "value", v.String())
		}
		d.driver.SetChangeVerified(v, true)
		d.emit(Event{
			Type:         EventValueAdded,
			NodeID:       n.NodeID,
			CommandClass: v.CommandClass,
			Value:        d.snapshot(v),
		})

	case NotificationValueChanged:
		v := n.ValueID
		d.emit(Event{
			Type:         EventValueChanged,
			NodeID:       n.NodeID,
			CommandClass: v.CommandClass,
			Value:        d.snapshot(v),
		})

	case NotificationValueRemoved:
		v := n.ValueID
		d.cache.RemoveValue(n.NodeID, v)
		d.emit(Event{
			Type:         EventValueRemoved,
			NodeID:       n.NodeID,
			CommandClass: v.CommandClass,
			Index:        v.Index,
		})

	case NotificationNodeEvent:
		d.emit(Event{Type: EventNodeEvent, NodeID: n.NodeID, NodeEvent: n.Event})

	case NotificationSceneEvent:
		d.emit(Event{Type: EventSceneEvent, NodeID: n.NodeID, SceneID: n.SceneID})

	case NotificationNodeQueriesComplete:
		info := d.nodeInfo(n.NodeID)
		d.emit(Event{Type: EventNodeReady, NodeID: n.NodeID, Info: &info})

	case NotificationAwakeNodesQueried, NotificationAllNodesQueried,
		NotificationAllNodesQueriedSomeDead:
		d.emit(Event{Type: EventScanComplete})

	case NotificationGeneric:
		d.emit(Event{Type: EventNotification, NodeID: n.NodeID, Code: n.Code})

	case NotificationNodeNew, NotificationNodeProtocolInfo, NotificationNodeNaming,
		NotificationPollingEnabled, NotificationPollingDisabled,
		NotificationValueRefreshed, NotificationEssentialNodeQueriesComplete:
		// Nothing to report.

	default:
		d.unhandled.Add(1)
		d.logger.Warn("unhandled notification", "type", uint8(n.Type), "name", n.Type.String())
	}
}

func (d *Dispatcher) emit(e Event) {
	e.Timestamp = d.now()
	d.emitted.Add(1)
	d.sink.HandleEvent(e)
}

// nodeInfo reads metadata for nodeID using the captured home id, not the
// notification's.
func (d *Dispatcher) nodeInfo(nodeID uint8) NodeInfo {
	home, _ := d.HomeID()
	return NodeInfo{
		Manufacturer:   d.driver.NodeManufacturerName(home, nodeID),
		ManufacturerID: d.driver.NodeManufacturerID(home, nodeID),
		Product:        d.driver.NodeProductName(home, nodeID),
		ProductType:    d.driver.NodeProductType(home, nodeID),
		ProductID:      d.driver.NodeProductID(home, nodeID),
		Type:           d.driver.NodeType(home, nodeID),
		Name:           d.driver.NodeName(home, nodeID),
		Location:       d.driver.NodeLocation(home, nodeID),
	}
}

// snapshot builds the payload for v. Value stays nil for kinds without a
// scalar and for reads the driver rejects.
func (d *Dispatcher) snapshot(v ValueID) *ValueSnapshot {
	s := &ValueSnapshot{
		Kind:      v.Kind,
		Genre:     v.Genre,
		Instance:  v.Instance,
		Index:     v.Index,
		Label:     d.driver.ValueLabel(v),
		Units:     d.driver.ValueUnits(v),
		ReadOnly:  d.driver.IsValueReadOnly(v),
		WriteOnly: d.driver.IsValueWriteOnly(v),
		Min:       d.driver.ValueMin(v),
		Max:       d.driver.ValueMax(v),
	}

	value, err := ReadValue(d.driver, v)
	switch {
	case err == nil:
		s.Value = value
	case errors.Is(err, ErrUnsupportedKind):
		d.logger.Warn("unsupported value kind", "value", v.String(), "type", string(v.Kind))
	default:
		d.logger.Warn("value not readable", "value", v.String(), "error", err)
	}

	if v.Kind == KindList {
		items, err := d.driver.ValueListItems(v)
		if err != nil {
			d.logger.Warn("list items not readable", "value", v.String(), "error", err)
		} else {
			s.Items = items
		}
	}

	return s
}
