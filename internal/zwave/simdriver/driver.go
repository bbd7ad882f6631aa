// Package simdriver provides an in-process Z-Wave network driver that plays
// back a described mesh. It fires notifications from its own goroutine in
// the same order a controller would during start-up, echoes writes back as
// value changes, and re-reads polled values on the poll interval.
//
// It is used for development without a controller attached and by tests.
package simdriver

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// Errors returned by the simulated driver.
var (
	ErrNotStarted   = errors.New("simdriver: driver not started")
	ErrUnknownValue = errors.New("simdriver: unknown value")
	ErrReadOnly     = errors.New("simdriver: value is read-only")
	ErrWrongKind    = errors.New("simdriver: accessor does not match value type")
)

const notifyBuffer = 256

type value struct {
	id        zwave.ValueID
	label     string
	units     string
	readOnly  bool
	writeOnly bool
	min       int32
	max       int32
	current   any
	items     []string
	polled    bool
}

type node struct {
	info   zwave.NodeInfo
	values []*value
}

// Driver implements zwave.Driver against a simulated network.
//
// Thread Safety: All methods are safe for concurrent use. Watchers are
// invoked from a single delivery goroutine.
type Driver struct {
	network *Network

	mu         sync.Mutex
	opts       *zwave.Options
	nodes      map[uint8]*node
	watchers   map[zwave.WatcherID]zwave.Watcher
	nextID     zwave.WatcherID
	path       string
	softResets int

	notify chan notification
	stop   chan struct{}
	wg     sync.WaitGroup
}

// New creates a driver for network. A nil network uses DefaultNetwork.
func New(network *Network) *Driver {
	if network == nil {
		network = DefaultNetwork()
	}
	return &Driver{
		network:  network,
		nodes:    make(map[uint8]*node),
		watchers: make(map[zwave.WatcherID]zwave.Watcher),
	}
}

// Configure stores the options. Only the poll interval changes behaviour.
func (d *Driver) Configure(opts zwave.Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opts != nil {
		return fmt.Errorf("simdriver: options already applied")
	}
	d.opts = &opts
	return nil
}

// AddWatcher registers w for notifications.
func (d *Driver) AddWatcher(w zwave.Watcher) (zwave.WatcherID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.watchers[d.nextID] = w
	return d.nextID, nil
}

// RemoveWatcher unregisters a watcher.
func (d *Driver) RemoveWatcher(id zwave.WatcherID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.watchers, id)
	return nil
}

// AddDriver loads the network and starts replaying it.
func (d *Driver) AddDriver(path string) error {
	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return fmt.Errorf("simdriver: already started on %s", d.path)
	}
	if err := d.network.Validate(); err != nil {
		d.mu.Unlock()
		return err
	}

	d.path = path
	d.loadLocked()
	d.notify = make(chan notification, notifyBuffer)
	d.stop = make(chan struct{})

	var pollInterval time.Duration
	if d.opts != nil {
		pollInterval = d.opts.PollInterval
	}
	d.mu.Unlock()

	d.wg.Add(1)
	go d.deliverLoop()

	if pollInterval > 0 {
		d.wg.Add(1)
		go d.pollLoop(pollInterval)
	}

	d.startup()
	return nil
}

// RemoveDriver stops delivery. Notifications not yet delivered are dropped.
func (d *Driver) RemoveDriver(path string) error {
	d.mu.Lock()
	if d.stop == nil {
		d.mu.Unlock()
		return ErrNotStarted
	}
	if path != d.path {
		d.mu.Unlock()
		return fmt.Errorf("simdriver: not started on %s", path)
	}
	close(d.stop)
	d.mu.Unlock()

	d.wg.Wait()

	d.mu.Lock()
	d.stop = nil
	d.path = ""
	d.mu.Unlock()
	return nil
}

// Close releases the options.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts = nil
	return nil
}

func (d *Driver) loadLocked() {
	d.nodes = make(map[uint8]*node, len(d.network.Nodes))
	for _, spec := range d.network.Nodes {
		n := &node{info: zwave.NodeInfo{
			Manufacturer:   spec.Manufacturer,
			ManufacturerID: spec.ManufacturerID,
			Product:        spec.Product,
			ProductType:    spec.ProductType,
			ProductID:      spec.ProductID,
			Type:           spec.Type,
			Name:           spec.Name,
			Location:       spec.Location,
		}}
		for _, vs := range spec.Values {
			// Validate has already checked the value converts.
			current, _ := normalize(zwave.ValueKind(vs.Kind), vs.Value)
			n.values = append(n.values, &value{
				id: zwave.ValueID{
					HomeID:       d.network.HomeID,
					NodeID:       spec.ID,
					Genre:        genreOf(vs),
					CommandClass: zwave.CommandClass(vs.CommandClass),
					Instance:     instanceOf(vs),
					Index:        vs.Index,
					Kind:         zwave.ValueKind(vs.Kind),
				},
				label:     vs.Label,
				units:     vs.Units,
				readOnly:  vs.ReadOnly,
				writeOnly: vs.WriteOnly,
				min:       vs.Min,
				max:       vs.Max,
				current:   current,
				items:     slices.Clone(vs.Items),
			})
		}
		d.nodes[spec.ID] = n
	}
}

// startup queues the notifications a controller produces while it
// initialises: ready, then each node with its values, then scan complete.
func (d *Driver) startup() {
	home := d.network.HomeID
	d.enqueue(notification{typ: zwave.NotificationDriverReady, homeID: home})

	for _, id := range d.nodeIDs() {
		d.enqueue(notification{typ: zwave.NotificationNodeNew, homeID: home, nodeID: id})
		d.enqueue(notification{typ: zwave.NotificationNodeAdded, homeID: home, nodeID: id})
		d.enqueue(notification{typ: zwave.NotificationNodeProtocolInfo, homeID: home, nodeID: id})
		for _, v := range d.valueIDs(id) {
			d.enqueue(notification{typ: zwave.NotificationValueAdded, homeID: home, nodeID: id, valueID: v})
		}
		d.enqueue(notification{typ: zwave.NotificationEssentialNodeQueriesComplete, homeID: home, nodeID: id})
		d.enqueue(notification{typ: zwave.NotificationNodeQueriesComplete, homeID: home, nodeID: id})
	}

	d.enqueue(notification{typ: zwave.NotificationAllNodesQueried, homeID: home})
}

func (d *Driver) nodeIDs() []uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uint8, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (d *Driver) valueIDs(nodeID uint8) []zwave.ValueID {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[nodeID]
	if !ok {
		return nil
	}
	ids := make([]zwave.ValueID, len(n.values))
	for i, v := range n.values {
		ids[i] = v.id
	}
	return ids
}

// enqueue hands n to the delivery goroutine. It returns false once the
// driver has been stopped.
func (d *Driver) enqueue(n notification) bool {
	d.mu.Lock()
	notify, stop := d.notify, d.stop
	d.mu.Unlock()

	if stop == nil {
		return false
	}
	select {
	case notify <- n:
		return true
	case <-stop:
		return false
	}
}

func (d *Driver) deliverLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case n := <-d.notify:
			d.deliver(n)
		}
	}
}

func (d *Driver) deliver(n notification) {
	d.mu.Lock()
	ids := make([]zwave.WatcherID, 0, len(d.watchers))
	for id := range d.watchers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ws := make([]zwave.Watcher, len(ids))
	for i, id := range ids {
		ws[i] = d.watchers[id]
	}
	d.mu.Unlock()

	for _, w := range ws {
		w(n)
	}
}

func (d *Driver) pollLoop(interval time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			for _, v := range d.polledValues() {
				d.enqueue(notification{
					typ:     zwave.NotificationValueRefreshed,
					homeID:  v.HomeID,
					nodeID:  v.NodeID,
					valueID: v,
				})
			}
		}
	}
}

func (d *Driver) polledValues() []zwave.ValueID {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []zwave.ValueID
	for _, n := range d.nodes {
		for _, v := range n.values {
			if v.polled {
				out = append(out, v.id)
			}
		}
	}
	return out
}

func (d *Driver) lookup(id zwave.ValueID) (*value, error) {
	n, ok := d.nodes[id.NodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownValue, id)
	}
	for _, v := range n.values {
		if v.id == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownValue, id)
}

// RemoveNode drops a node from the mesh, as an exclusion would.
func (d *Driver) RemoveNode(nodeID uint8) bool {
	d.mu.Lock()
	_, ok := d.nodes[nodeID]
	delete(d.nodes, nodeID)
	d.mu.Unlock()

	if ok {
		d.enqueue(notification{typ: zwave.NotificationNodeRemoved, homeID: d.network.HomeID, nodeID: nodeID})
	}
	return ok
}

// Fail reports a driver failure, as when the serial device disappears.
func (d *Driver) Fail() {
	d.enqueue(notification{typ: zwave.NotificationDriverFailed, homeID: d.network.HomeID})
}

// Notify raises a generic notification for nodeID.
func (d *Driver) Notify(nodeID uint8, code zwave.NotificationCode) {
	d.enqueue(notification{typ: zwave.NotificationGeneric, homeID: d.network.HomeID, nodeID: nodeID, code: code})
}

// SetSensor changes a value as if the device had reported it, and fires a
// value-changed notification.
func (d *Driver) SetSensor(id zwave.ValueID, reading any) error {
	d.mu.Lock()
	v, err := d.lookup(id)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	current, err := normalize(id.Kind, reading)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	v.current = current
	d.mu.Unlock()

	d.changed(id)
	return nil
}

// SoftResets reports how many soft resets were requested.
func (d *Driver) SoftResets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.softResets
}

func (d *Driver) changed(id zwave.ValueID) {
	d.enqueue(notification{typ: zwave.NotificationValueChanged, homeID: id.HomeID, nodeID: id.NodeID, valueID: id})
}
