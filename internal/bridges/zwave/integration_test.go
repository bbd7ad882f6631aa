package zwave

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/commands"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
	"github.com/nerrad567/gray-logic-zwave/internal/zwave/simdriver"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestBridgeWithSimulatedNetwork runs the bridge against a real session
// backed by the simulated driver.
func TestBridgeWithSimulatedNetwork(t *testing.T) {
	driver := simdriver.New(nil)
	sinks := zw.NewMultiSink(nil)

	session, err := zw.NewSession(zw.SessionConfig{
		Driver:  driver,
		Options: zw.DefaultOptions(),
		Sink:    sinks,
	})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}

	runner, err := commands.NewRunner(session, commands.Config{Timeout: 2 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}

	mqtt := NewMockMQTTClient()
	bridge, err := NewBridge(BridgeOptions{
		Config:     &Config{ID: "zwave-sim", Device: "/dev/sim", HealthInterval: time.Hour},
		MQTTClient: mqtt,
		Session:    session,
		Runner:     runner,
	})
	if err != nil {
		t.Fatalf("NewBridge() error: %v", err)
	}
	sinks.Add(bridge)

	ctx, cancel := context.WithCancel(context.Background())
	if err := bridge.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := session.Connect("/dev/sim"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Run(ctx)
	}()
	defer func() {
		_ = session.Disconnect()
		cancel()
		<-done
		bridge.Stop()
	}()

	waitFor(t, "scan_complete", func() bool {
		return len(mqtt.onTopic(EventTopic(zw.EventScanComplete))) == 1
	})

	if got := len(mqtt.onTopic(DiscoveryTopic())); got != 4 {
		t.Errorf("discovery messages = %d, want 4", got)
	}
	if status, reason := bridge.Health(); status != HealthHealthy {
		t.Errorf("Health() = %s %q, want healthy", status, reason)
	}

	// Node 4's temperature was announced with its initial reading.
	if state := bridge.NodeState(4); state["sensor_multilevel/1/1"] != 20.5 {
		t.Errorf("node 4 state = %v", state)
	}

	mqtt.ClearPublished()
	ack := sendCommand(t, testBridge{Bridge: bridge, mqtt: mqtt}, "3", CommandMessage{
		ID:         "dim-ceiling",
		Command:    zw.CommandSetLevel,
		Parameters: map[string]any{"level": 60},
	})
	if ack.Status != AckAccepted {
		t.Fatalf("ack = %+v, want accepted", ack)
	}

	waitFor(t, "node 3 state update", func() bool {
		for _, p := range mqtt.onTopic(StateTopic(3)) {
			var msg StateMessage
			if json.Unmarshal(p.Payload, &msg) == nil && msg.State["switch_multilevel/1/0"] == float64(60) {
				return true
			}
		}
		return false
	})

	ack = sendCommand(t, testBridge{Bridge: bridge, mqtt: mqtt}, "40", CommandMessage{ID: "ghost", Command: zw.CommandOn})
	if ack.Error == nil || ack.Error.Code != ErrCodeNotConfigured {
		t.Errorf("ack for unknown node = %+v, want NOT_CONFIGURED", ack)
	}

	// Removing a node clears its retained state.
	if !driver.RemoveNode(2) {
		t.Fatal("RemoveNode(2) = false")
	}
	waitFor(t, "node 2 state cleared", func() bool {
		for _, p := range mqtt.onTopic(StateTopic(2)) {
			if len(p.Payload) == 0 && p.Retained {
				return true
			}
		}
		return false
	})
}
