package simdriver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// collector records notifications delivered to a watcher.
type collector struct {
	mu    sync.Mutex
	items []zwave.Notification
}

func (c *collector) watch(dn zwave.DriverNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, zwave.CopyNotification(dn))
}

func (c *collector) wait(t *testing.T, n int) []zwave.Notification {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		c.mu.Lock()
		items := append([]zwave.Notification(nil), c.items...)
		c.mu.Unlock()
		if len(items) >= n {
			return items
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d notifications, want %d", len(items), n)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func startDriver(t *testing.T, network *Network, opts zwave.Options) (*Driver, *collector) {
	t.Helper()
	d := New(network)
	c := &collector{}
	if err := d.Configure(opts); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if _, err := d.AddWatcher(c.watch); err != nil {
		t.Fatalf("AddWatcher() error = %v", err)
	}
	if err := d.AddDriver("/dev/sim"); err != nil {
		t.Fatalf("AddDriver() error = %v", err)
	}
	t.Cleanup(func() {
		_ = d.RemoveDriver("/dev/sim")
		_ = d.Close()
	})
	return d, c
}

func smallNetwork() *Network {
	return &Network{
		HomeID: 0x00C0FFEE,
		Nodes: []NodeSpec{
			{ID: 1, Product: "Controller"},
			{
				ID: 7, Manufacturer: "Acme", Product: "Plug", Name: "Lamp",
				Values: []ValueSpec{
					{CommandClass: 0x25, Kind: "bool", Label: "Switch", Value: true},
					{CommandClass: 0x32, Kind: "decimal", Label: "Power", Units: "W", ReadOnly: true, Value: 3},
				},
			},
		},
	}
}

func switchID(home uint32, node uint8) zwave.ValueID {
	return zwave.ValueID{
		HomeID: home, NodeID: node, Genre: zwave.GenreUser,
		CommandClass: zwave.ClassSwitchBinary, Instance: 1, Kind: zwave.KindBool,
	}
}

func TestDriverStartupSequence(t *testing.T) {
	_, c := startDriver(t, smallNetwork(), zwave.DefaultOptions())

	want := []struct {
		typ  zwave.NotificationType
		node uint8
	}{
		{zwave.NotificationDriverReady, 0},
		{zwave.NotificationNodeNew, 1},
		{zwave.NotificationNodeAdded, 1},
		{zwave.NotificationNodeProtocolInfo, 1},
		{zwave.NotificationEssentialNodeQueriesComplete, 1},
		{zwave.NotificationNodeQueriesComplete, 1},
		{zwave.NotificationNodeNew, 7},
		{zwave.NotificationNodeAdded, 7},
		{zwave.NotificationNodeProtocolInfo, 7},
		{zwave.NotificationValueAdded, 7},
		{zwave.NotificationValueAdded, 7},
		{zwave.NotificationEssentialNodeQueriesComplete, 7},
		{zwave.NotificationNodeQueriesComplete, 7},
		{zwave.NotificationAllNodesQueried, 0},
	}

	got := c.wait(t, len(want))
	for i, w := range want {
		if got[i].Type != w.typ || got[i].NodeID != w.node {
			t.Errorf("notification %d = %s node %d, want %s node %d", i, got[i].Type, got[i].NodeID, w.typ, w.node)
		}
		if got[i].HomeID != 0x00C0FFEE {
			t.Errorf("notification %d home = %08x", i, got[i].HomeID)
		}
	}
	if got[9].ValueID != switchID(0x00C0FFEE, 7) {
		t.Errorf("first value = %+v", got[9].ValueID)
	}
}

func TestDriverReadsAndWrites(t *testing.T) {
	d, c := startDriver(t, smallNetwork(), zwave.DefaultOptions())
	c.wait(t, 14)

	sw := switchID(0x00C0FFEE, 7)
	on, err := d.ValueAsBool(sw)
	if err != nil || !on {
		t.Fatalf("ValueAsBool() = %v, %v", on, err)
	}
	if d.ValueLabel(sw) != "Switch" {
		t.Errorf("ValueLabel() = %q", d.ValueLabel(sw))
	}
	if _, err := d.ValueAsByte(sw); !errors.Is(err, ErrWrongKind) {
		t.Errorf("ValueAsByte(bool) error = %v, want ErrWrongKind", err)
	}

	if err := d.SetValueBool(sw, false); err != nil {
		t.Fatalf("SetValueBool() error = %v", err)
	}
	got := c.wait(t, 15)
	if got[14].Type != zwave.NotificationValueChanged || got[14].ValueID != sw {
		t.Errorf("after write got %s %+v", got[14].Type, got[14].ValueID)
	}
	if on, _ := d.ValueAsBool(sw); on {
		t.Error("write not stored")
	}

	power := zwave.ValueID{
		HomeID: 0x00C0FFEE, NodeID: 7, Genre: zwave.GenreUser,
		CommandClass: zwave.ClassMeter, Instance: 1, Kind: zwave.KindDecimal,
	}
	if err := d.SetValueFloat(power, 10); !errors.Is(err, ErrReadOnly) {
		t.Errorf("SetValueFloat(read-only) error = %v, want ErrReadOnly", err)
	}
	if w, _ := d.ValueAsFloat(power); w != 3 {
		t.Errorf("power = %v, want 3", w)
	}

	if err := d.SetSensor(power, 42.5); err != nil {
		t.Fatalf("SetSensor() error = %v", err)
	}
	c.wait(t, 16)
	if w, _ := d.ValueAsFloat(power); w != 42.5 {
		t.Errorf("power = %v, want 42.5", w)
	}

	missing := switchID(0x00C0FFEE, 99)
	if err := d.SetValueBool(missing, true); !errors.Is(err, ErrUnknownValue) {
		t.Errorf("SetValueBool(missing) error = %v, want ErrUnknownValue", err)
	}
}

func TestDriverNodeInfoAndNaming(t *testing.T) {
	d, c := startDriver(t, smallNetwork(), zwave.DefaultOptions())
	c.wait(t, 14)

	if got := d.NodeProductName(0x00C0FFEE, 7); got != "Plug" {
		t.Errorf("NodeProductName() = %q", got)
	}
	if got := d.NodeProductName(0x1234, 7); got != "" {
		t.Errorf("NodeProductName(other network) = %q", got)
	}

	if err := d.SetNodeName(0x00C0FFEE, 7, "Desk Lamp"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetNodeLocation(0x00C0FFEE, 7, "Study"); err != nil {
		t.Fatal(err)
	}
	if got := d.NodeName(0x00C0FFEE, 7); got != "Desk Lamp" {
		t.Errorf("NodeName() = %q", got)
	}
	if got := d.NodeLocation(0x00C0FFEE, 7); got != "Study" {
		t.Errorf("NodeLocation() = %q", got)
	}
	if got := c.wait(t, 16); got[15].Type != zwave.NotificationNodeNaming {
		t.Errorf("naming notification = %s", got[15].Type)
	}

	if err := d.SetNodeName(0x00C0FFEE, 50, "x"); err == nil {
		t.Error("SetNodeName(unknown node) succeeded")
	}
}

func TestDriverResetController(t *testing.T) {
	d, c := startDriver(t, smallNetwork(), zwave.DefaultOptions())
	c.wait(t, 14)

	if err := d.ResetController(0x00C0FFEE); err != nil {
		t.Fatal(err)
	}
	got := c.wait(t, 15)
	if got[14].Type != zwave.NotificationNodeRemoved || got[14].NodeID != 7 {
		t.Errorf("reset notification = %s node %d", got[14].Type, got[14].NodeID)
	}
	if d.NodeProductName(0x00C0FFEE, 1) != "Controller" {
		t.Error("controller removed by reset")
	}

	if err := d.SoftReset(0x00C0FFEE); err != nil {
		t.Fatal(err)
	}
	if d.SoftResets() != 1 {
		t.Errorf("SoftResets() = %d", d.SoftResets())
	}
}

func TestDriverPolling(t *testing.T) {
	opts := zwave.DefaultOptions()
	opts.PollInterval = 5 * time.Millisecond
	d, c := startDriver(t, smallNetwork(), opts)
	c.wait(t, 14)

	sw := switchID(0x00C0FFEE, 7)
	if err := d.EnablePoll(sw); err != nil {
		t.Fatal(err)
	}
	if !d.Polled(sw) {
		t.Fatal("Polled() = false")
	}

	got := c.wait(t, 15)
	if got[14].Type != zwave.NotificationValueRefreshed || got[14].ValueID != sw {
		t.Errorf("poll notification = %s %+v", got[14].Type, got[14].ValueID)
	}
}

func TestDriverLifecycleErrors(t *testing.T) {
	d := New(smallNetwork())
	if err := d.RemoveDriver("/dev/sim"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("RemoveDriver() before start error = %v", err)
	}
	if err := d.Configure(zwave.DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	if err := d.Configure(zwave.DefaultOptions()); err == nil {
		t.Error("second Configure() succeeded")
	}
	if err := d.AddDriver("/dev/sim"); err != nil {
		t.Fatal(err)
	}
	if err := d.AddDriver("/dev/sim"); err == nil {
		t.Error("second AddDriver() succeeded")
	}
	if err := d.RemoveDriver("/dev/other"); err == nil {
		t.Error("RemoveDriver(wrong path) succeeded")
	}
	if err := d.RemoveDriver("/dev/sim"); err != nil {
		t.Errorf("RemoveDriver() error = %v", err)
	}
}

func TestDriverWithSession(t *testing.T) {
	var mu sync.Mutex
	var events []zwave.Event
	sink := zwave.EventSinkFunc(func(e zwave.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	d := New(nil)
	s, err := zwave.NewSession(zwave.SessionConfig{Driver: d, Options: zwave.DefaultOptions(), Sink: sink})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Connect("/dev/sim"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	defer func() {
		_ = s.Disconnect()
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(events)
		last := zwave.EventType("")
		if n > 0 {
			last = events[n-1].Type
		}
		mu.Unlock()
		if last == zwave.EventScanComplete {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no scan_complete after %d events", n)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if s.Cache().Len() != 4 {
		t.Errorf("cache nodes = %d, want 4", s.Cache().Len())
	}

	if err := s.Do(ctx, func(ex *zwave.Executor) error { return ex.SetLevel(3, 60) }); err != nil {
		t.Fatalf("SetLevel error = %v", err)
	}
	level := zwave.ValueID{
		HomeID: 0xE5A1C0DE, NodeID: 3, Genre: zwave.GenreUser,
		CommandClass: zwave.ClassSwitchMultilevel, Instance: 1, Kind: zwave.KindByte,
	}
	if got := d.Value(level); got != uint8(60) {
		t.Errorf("level = %v, want 60", got)
	}
}

func TestLoadNetwork(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "network.yaml")
	content := `
home_id: 3735928559
nodes:
  - id: 1
    product: Stick
  - id: 9
    name: Landing
    values:
      - command_class: 38
        type: byte
        value: 20
      - command_class: 112
        index: 3
        genre: config
        type: list
        items: [Off, On]
        value: On
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	n, err := LoadNetwork(path)
	if err != nil {
		t.Fatalf("LoadNetwork() error = %v", err)
	}
	if n.HomeID != 0xDEADBEEF {
		t.Errorf("HomeID = %08x", n.HomeID)
	}
	if len(n.Nodes) != 2 || len(n.Nodes[1].Values) != 2 {
		t.Fatalf("nodes = %+v", n.Nodes)
	}
	if n.Nodes[1].Values[1].Items[1] != "On" {
		t.Errorf("items = %v", n.Nodes[1].Values[1].Items)
	}
}

func TestNetworkValidate(t *testing.T) {
	tests := []struct {
		name    string
		network Network
		wantErr bool
	}{
		{"default", *DefaultNetwork(), false},
		{"node zero", Network{Nodes: []NodeSpec{{ID: 0}}}, true},
		{"node too high", Network{Nodes: []NodeSpec{{ID: 233}}}, true},
		{"duplicate node", Network{Nodes: []NodeSpec{{ID: 2}, {ID: 2}}}, true},
		{"duplicate value", Network{Nodes: []NodeSpec{{ID: 2, Values: []ValueSpec{
			{CommandClass: 0x25, Kind: "bool"},
			{CommandClass: 0x25, Instance: 1, Kind: "bool"},
		}}}}, true},
		{"byte out of range", Network{Nodes: []NodeSpec{{ID: 2, Values: []ValueSpec{
			{CommandClass: 0x26, Kind: "byte", Value: 300},
		}}}}, true},
		{"unknown kind", Network{Nodes: []NodeSpec{{ID: 2, Values: []ValueSpec{
			{CommandClass: 0x26, Kind: "colour"},
		}}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.network.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
