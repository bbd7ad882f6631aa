package mqtt

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/config"
)

const testBrokerAddr = "127.0.0.1:1883"

func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test when no broker is listening locally.
func requireBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testBrokerAddr, 200*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at %s: %v", testBrokerAddr, err)
	}
	conn.Close()
}

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	requireBroker(t)

	client, err := Connect(testConfig(clientID), nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig("graylogic-zwave-opts")
	cfg.Broker.Host = "broker.local"
	cfg.Broker.Port = 8883
	cfg.Broker.TLS = true
	cfg.Auth.Username = "zwave"
	cfg.Auth.Password = "secret"
	cfg.Reconnect.MaxDelay = 60

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.local:8883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "graylogic-zwave-opts" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "zwave" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Errorf("TLSConfig = %+v", opts.TLSConfig)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if opts.MaxReconnectInterval != time.Minute {
		t.Errorf("MaxReconnectInterval = %v, want 1m", opts.MaxReconnectInterval)
	}
}

func TestBuildClientOptionsPlain(t *testing.T) {
	opts := buildClientOptions(testConfig("plain"))

	if opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty for anonymous", opts.Username)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS should not be configured")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig("lwt"))
	configureLWT(opts, nil)
	if opts.WillEnabled {
		t.Error("nil will should not enable LWT")
	}

	configureLWT(opts, &Will{
		Topic:    "graylogic/health/zwave",
		Payload:  []byte(`{"status":"offline"}`),
		QoS:      1,
		Retained: true,
	})
	if !opts.WillEnabled || opts.WillTopic != "graylogic/health/zwave" {
		t.Errorf("will = %v %q", opts.WillEnabled, opts.WillTopic)
	}
	if string(opts.WillPayload) != `{"status":"offline"}` || opts.WillQos != 1 || !opts.WillRetained {
		t.Errorf("will payload/qos/retained = %s/%d/%v", opts.WillPayload, opts.WillQos, opts.WillRetained)
	}
}

func TestConnectInvalidWill(t *testing.T) {
	if _, err := Connect(testConfig("bad-will"), &Will{}); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Connect() empty will topic error = %v, want ErrInvalidTopic", err)
	}
	if _, err := Connect(testConfig("bad-will"), &Will{Topic: "t", QoS: 3}); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Connect() will QoS 3 error = %v, want ErrInvalidQoS", err)
	}
}

func TestZeroClient(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() = true for unconnected client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestConnectRefused(t *testing.T) {
	cfg := testConfig("graylogic-zwave-refused")
	cfg.Broker.Port = 19998

	if _, err := Connect(cfg, nil); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnectAndClose(t *testing.T) {
	requireBroker(t)

	client, err := Connect(testConfig("graylogic-zwave-close"), &Will{
		Topic:    "graylogic/test/zwave/will",
		Payload:  []byte("offline"),
		QoS:      1,
		Retained: false,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
	if err := client.Publish("graylogic/test", nil, 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := connectTest(t, "graylogic-zwave-hc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := connectTest(t, "graylogic-zwave-pubval")

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"qos 3", "graylogic/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "graylogic/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"nil payload", "graylogic/test", nil, 1, nil},
		{"64KB payload", "graylogic/test", make([]byte, 64*1024), 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Publish() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := connectTest(t, "graylogic-zwave-subval")
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := client.Subscribe("graylogic/test", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v", err)
	}
	if err := client.Subscribe("graylogic/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after rejected subscriptions", client.SubscriptionCount())
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := connectTest(t, "graylogic-zwave-track")
	handler := func(string, []byte) error { return nil }

	topics := []string{
		"graylogic/test/zwave/command/#",
		"graylogic/test/zwave/request/#",
	}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != 2 || !client.HasSubscription(topics[0]) {
		t.Errorf("SubscriptionCount() = %d", client.SubscriptionCount())
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) || client.SubscriptionCount() != 1 {
		t.Error("subscription still tracked after Unsubscribe")
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v", err)
	}
}

func TestPublishSubscribeWildcard(t *testing.T) {
	client := connectTest(t, "graylogic-zwave-roundtrip")

	type message struct {
		topic   string
		payload string
	}
	received := make(chan message, 4)

	err := client.Subscribe("graylogic/test/zwave/state/+", 1, func(topic string, payload []byte) error {
		received <- message{topic, string(payload)}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.PublishString("graylogic/test/zwave/state/4", `{"node_id":4}`, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg.topic != "graylogic/test/zwave/state/4" || msg.payload != `{"node_id":4}` {
			t.Errorf("received %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	client := connectTest(t, "graylogic-zwave-panic")

	calls := make(chan struct{}, 2)
	err := client.Subscribe("graylogic/test/zwave/panic", 1, func(string, []byte) error {
		calls <- struct{}{}
		panic("handler exploded")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for range 2 {
		if err := client.PublishString("graylogic/test/zwave/panic", "x", 1, false); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("handler not called; panic may have killed the router")
		}
	}
}
