package zwave

import (
	"errors"
	"fmt"
	"sync"
)

var errFakeRead = errors.New("fake: read failed")

// fakeNotification implements DriverNotification. Reading a discriminant
// that does not belong to the type panics, as a real driver may.
type fakeNotification struct {
	typ      NotificationType
	homeID   uint32
	nodeID   uint8
	valueID  ValueID
	groupIdx uint8
	event    uint8
	buttonID uint8
	sceneID  uint8
	code     NotificationCode
}

func (f fakeNotification) Type() NotificationType { return f.typ }
func (f fakeNotification) HomeID() uint32         { return f.homeID }
func (f fakeNotification) NodeID() uint8          { return f.nodeID }
func (f fakeNotification) ValueID() ValueID       { return f.valueID }

func (f fakeNotification) GroupIdx() uint8 {
	f.require(NotificationGroup)
	return f.groupIdx
}

func (f fakeNotification) Event() uint8 {
	f.require(NotificationNodeEvent)
	return f.event
}

func (f fakeNotification) ButtonID() uint8 {
	switch f.typ {
	case NotificationCreateButton, NotificationDeleteButton, NotificationButtonOn, NotificationButtonOff:
		return f.buttonID
	}
	panic("button id read on " + f.typ.String())
}

func (f fakeNotification) SceneID() uint8 {
	f.require(NotificationSceneEvent)
	return f.sceneID
}

func (f fakeNotification) NotificationCode() NotificationCode {
	f.require(NotificationGeneric)
	return f.code
}

func (f fakeNotification) require(t NotificationType) {
	if f.typ != t {
		panic(fmt.Sprintf("discriminant of %s read on %s", t, f.typ))
	}
}

// panickingNotification blows up on every accessor.
type panickingNotification struct{ fakeNotification }

func (panickingNotification) Type() NotificationType { panic("driver object already freed") }

// fakeDriver records every call and serves values from a map.
type fakeDriver struct {
	mu sync.Mutex

	values   map[ValueID]any
	items    map[ValueID][]string
	labels   map[ValueID]string
	nodeInfo map[[2]uint64]NodeInfo
	failRead map[ValueID]bool

	watchers  map[WatcherID]Watcher
	nextID    WatcherID
	calls     []string
	verified  []ValueID
	options   *Options
	addErr    error
	configErr error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		values:   make(map[ValueID]any),
		items:    make(map[ValueID][]string),
		labels:   make(map[ValueID]string),
		nodeInfo: make(map[[2]uint64]NodeInfo),
		failRead: make(map[ValueID]bool),
		watchers: make(map[WatcherID]Watcher),
	}
}

func (d *fakeDriver) record(format string, args ...any) {
	d.mu.Lock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
	d.mu.Unlock()
}

func (d *fakeDriver) getCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *fakeDriver) setInfo(home uint32, node uint8, info NodeInfo) {
	d.nodeInfo[[2]uint64{uint64(home), uint64(node)}] = info
}

func (d *fakeDriver) info(home uint32, node uint8) NodeInfo {
	return d.nodeInfo[[2]uint64{uint64(home), uint64(node)}]
}

// fire delivers n to every watcher on the calling goroutine.
func (d *fakeDriver) fire(n DriverNotification) {
	d.mu.Lock()
	ws := make([]Watcher, 0, len(d.watchers))
	for _, w := range d.watchers {
		ws = append(ws, w)
	}
	d.mu.Unlock()

	for _, w := range ws {
		w(n)
	}
}

func (d *fakeDriver) Configure(opts Options) error {
	d.record("Configure")
	if d.configErr != nil {
		return d.configErr
	}
	d.options = &opts
	return nil
}

func (d *fakeDriver) AddWatcher(w Watcher) (WatcherID, error) {
	d.record("AddWatcher")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.watchers[d.nextID] = w
	return d.nextID, nil
}

func (d *fakeDriver) RemoveWatcher(id WatcherID) error {
	d.record("RemoveWatcher")
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.watchers, id)
	return nil
}

func (d *fakeDriver) AddDriver(path string) error {
	d.record("AddDriver %s", path)
	return d.addErr
}

func (d *fakeDriver) RemoveDriver(path string) error {
	d.record("RemoveDriver %s", path)
	return nil
}

func (d *fakeDriver) Close() error {
	d.record("Close")
	return nil
}

func (d *fakeDriver) ValueLabel(v ValueID) string   { return d.labels[v] }
func (d *fakeDriver) ValueUnits(ValueID) string     { return "" }
func (d *fakeDriver) IsValueReadOnly(ValueID) bool  { return false }
func (d *fakeDriver) IsValueWriteOnly(ValueID) bool { return false }
func (d *fakeDriver) ValueMin(ValueID) int32        { return 0 }
func (d *fakeDriver) ValueMax(ValueID) int32        { return 255 }

func (d *fakeDriver) SetChangeVerified(v ValueID, _ bool) {
	d.mu.Lock()
	d.verified = append(d.verified, v)
	d.mu.Unlock()
}

func (d *fakeDriver) read(v ValueID) (any, error) {
	if d.failRead[v] {
		return nil, errFakeRead
	}
	return d.values[v], nil
}

func (d *fakeDriver) ValueAsBool(v ValueID) (bool, error) {
	x, err := d.read(v)
	b, _ := x.(bool)
	return b, err
}

func (d *fakeDriver) ValueAsByte(v ValueID) (uint8, error) {
	x, err := d.read(v)
	b, _ := x.(uint8)
	return b, err
}

func (d *fakeDriver) ValueAsShort(v ValueID) (int16, error) {
	x, err := d.read(v)
	n, _ := x.(int16)
	return n, err
}

func (d *fakeDriver) ValueAsInt(v ValueID) (int32, error) {
	x, err := d.read(v)
	n, _ := x.(int32)
	return n, err
}

func (d *fakeDriver) ValueAsFloat(v ValueID) (float64, error) {
	x, err := d.read(v)
	f, _ := x.(float64)
	return f, err
}

func (d *fakeDriver) ValueAsString(v ValueID) (string, error) {
	x, err := d.read(v)
	s, _ := x.(string)
	return s, err
}

func (d *fakeDriver) ValueListSelection(v ValueID) (string, error) {
	return d.ValueAsString(v)
}

func (d *fakeDriver) ValueListItems(v ValueID) ([]string, error) {
	return d.items[v], nil
}

func (d *fakeDriver) SetValueBool(v ValueID, x bool) error {
	d.record("SetValueBool %s %t", v, x)
	return nil
}

func (d *fakeDriver) SetValueByte(v ValueID, x uint8) error {
	d.record("SetValueByte %s %d", v, x)
	return nil
}

func (d *fakeDriver) SetValueShort(v ValueID, x int16) error {
	d.record("SetValueShort %s %d", v, x)
	return nil
}

func (d *fakeDriver) SetValueInt(v ValueID, x int32) error {
	d.record("SetValueInt %s %d", v, x)
	return nil
}

func (d *fakeDriver) SetValueFloat(v ValueID, x float64) error {
	d.record("SetValueFloat %s %g", v, x)
	return nil
}

func (d *fakeDriver) SetValueString(v ValueID, x string) error {
	d.record("SetValueString %s %s", v, x)
	return nil
}

func (d *fakeDriver) SetValueListSelection(v ValueID, x string) error {
	d.record("SetValueListSelection %s %s", v, x)
	return nil
}

func (d *fakeDriver) PressButton(v ValueID) error {
	d.record("PressButton %s", v)
	return nil
}

func (d *fakeDriver) ReleaseButton(v ValueID) error {
	d.record("ReleaseButton %s", v)
	return nil
}

func (d *fakeDriver) EnablePoll(v ValueID) error {
	d.record("EnablePoll %s", v)
	return nil
}

func (d *fakeDriver) DisablePoll(v ValueID) error {
	d.record("DisablePoll %s", v)
	return nil
}

func (d *fakeDriver) NodeManufacturerName(h uint32, n uint8) string { return d.info(h, n).Manufacturer }
func (d *fakeDriver) NodeManufacturerID(h uint32, n uint8) string   { return d.info(h, n).ManufacturerID }
func (d *fakeDriver) NodeProductName(h uint32, n uint8) string      { return d.info(h, n).Product }
func (d *fakeDriver) NodeProductType(h uint32, n uint8) string      { return d.info(h, n).ProductType }
func (d *fakeDriver) NodeProductID(h uint32, n uint8) string        { return d.info(h, n).ProductID }
func (d *fakeDriver) NodeType(h uint32, n uint8) string             { return d.info(h, n).Type }
func (d *fakeDriver) NodeName(h uint32, n uint8) string             { return d.info(h, n).Name }
func (d *fakeDriver) NodeLocation(h uint32, n uint8) string         { return d.info(h, n).Location }

func (d *fakeDriver) SetNodeName(h uint32, n uint8, name string) error {
	d.record("SetNodeName %08x %d %s", h, n, name)
	return nil
}

func (d *fakeDriver) SetNodeLocation(h uint32, n uint8, loc string) error {
	d.record("SetNodeLocation %08x %d %s", h, n, loc)
	return nil
}

func (d *fakeDriver) ResetController(h uint32) error {
	d.record("ResetController %08x", h)
	return nil
}

func (d *fakeDriver) SoftReset(h uint32) error {
	d.record("SoftReset %08x", h)
	return nil
}

// recordingSink collects events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	notify chan Event
}

func newRecordingSink(buffer int) *recordingSink {
	return &recordingSink{notify: make(chan Event, buffer)}
}

func (r *recordingSink) HandleEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	select {
	case r.notify <- e:
	default:
	}
}

func (r *recordingSink) getEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// recordingLogger keeps messages for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, level+": "+msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == entry {
			return true
		}
	}
	return false
}
