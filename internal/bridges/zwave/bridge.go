package zwave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-zwave/internal/commands"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// commandSource is recorded for commands that arrive over MQTT.
const commandSource = "mqtt"

// Bridge connects a Z-Wave session to Gray Logic Core over MQTT.
// It handles:
//   - Publishing the session's event stream, per-node state and discovery
//   - Receiving commands and requests from Core and running them on the session
//   - Health reporting and graceful shutdown
//
// Bridge is a zwave.EventSink. HandleEvent never blocks: messages are queued
// and published from the bridge's own goroutine, in event order.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     Config
	mqtt    MQTTClient
	session Session
	runner  Runner
	health  *HealthReporter

	// Last published value per node and value, for change detection.
	// Only HandleEvent writes it.
	stateCache   map[uint8]map[zw.ValueKey]any
	stateCacheMu sync.Mutex

	outbox         chan outbound
	publishDropped atomic.Uint64
	published      atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// Session is the part of *zwave.Session the bridge reads.
type Session interface {
	NetworkSource
	Cache() *zw.Cache
}

// Runner executes commands. *commands.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, source string, cmd zw.Command) error
}

// Logger is the structured logger used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config holds operational settings. Zero fields take defaults.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Session is the Z-Wave session whose state is reported.
	Session Session

	// Runner executes commands received from Core.
	Runner Runner

	// Logger is optional structured logger.
	Logger Logger
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool

	// health asks the publisher to refresh the health message instead.
	health bool
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("command runner is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bridge config: %w", err)
	}
	cfg := opts.Config.withDefaults()

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:        cfg,
		mqtt:       opts.MQTTClient,
		session:    opts.Session,
		runner:     opts.Runner,
		stateCache: make(map[uint8]map[zw.ValueKey]any),
		outbox:     make(chan outbound, cfg.PublishBuffer),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:       cfg.ID,
		Version:        cfg.Version,
		Device:         cfg.Device,
		Interval:       cfg.HealthInterval,
		Publisher:      opts.MQTTClient,
		Network:        opts.Session,
		PublishDropped: b.publishDropped.Load,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to command and request topics, starts the publisher and
// health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.publishLoop()
	})

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health status", err)
	}

	b.logInfo("bridge started", "bridge_id", b.cfg.ID)
	return nil
}

// Stop gracefully shuts down the bridge. Queued messages are published
// before it returns.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Abort in-flight commands
		b.ctxCancel()

		b.wg.Wait()
		b.health.Stop()

		b.logInfo("bridge stopped",
			"published", b.published.Load(),
			"dropped", b.publishDropped.Load())
	})
}

// Health returns the bridge's current health status.
func (b *Bridge) Health() (HealthStatus, string) {
	return b.health.Status()
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	// graylogic/{command|request}/zwave/{address}
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[3], payload)
	case "request":
		b.handleRequest(payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

// handleCommand runs a command message from Core and acknowledges it.
func (b *Bridge) handleCommand(address string, payload []byte) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logError("failed to parse command", err)
		return
	}

	if msg.NodeID == 0 && !zw.IsControllerCommand(msg.Command) {
		nodeID, err := ParseNodeAddress(address)
		if err != nil {
			b.publishAckError(msg, ErrCodeInvalidParameters, err.Error())
			return
		}
		msg.NodeID = nodeID
	}

	b.logInfo("received command",
		"command_id", msg.ID,
		"node_id", msg.NodeID,
		"command", msg.Command)

	err := b.runner.Run(b.ctx, commandSource, msg.ToCommand())
	if err != nil {
		b.publishAckError(msg, ErrorCode(err), err.Error())
		return
	}
	b.publishAck(msg, AckAccepted)
}

// ErrorCode maps a command error to the code reported in acks.
func ErrorCode(err error) string {
	if errors.Is(err, ErrInvalidNodeAddress) {
		return ErrCodeInvalidParameters
	}

	switch commands.Classify(err) {
	case commands.OutcomeOK:
		return ""
	case commands.OutcomeBusy:
		return ErrCodeBusy
	case commands.OutcomeTimeout:
		return ErrCodeTimeout
	case commands.OutcomeNotFound:
		return ErrCodeNotConfigured
	case commands.OutcomeUnknownCommand:
		return ErrCodeInvalidCommand
	case commands.OutcomeInvalid:
		return ErrCodeInvalidParameters
	case commands.OutcomeUnavailable:
		return ErrCodeBridgeError
	default:
		return ErrCodeDeviceUnreachable
	}
}

func (b *Bridge) publishAck(msg CommandMessage, status AckStatus) {
	b.sendAck(NewAckMessage(msg, status))
}

func (b *Bridge) publishAckError(msg CommandMessage, code, message string) {
	b.sendAck(NewAckError(msg, code, message))
	b.logError("command failed",
		fmt.Errorf("command_id=%s code=%s message=%s", msg.ID, code, message))
}

func (b *Bridge) sendAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(ack.NodeID), payload, b.cfg.QoS, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// BridgeMetrics contains counters for the API status endpoint.
type BridgeMetrics struct {
	Status         HealthStatus `json:"status"`
	Reason         string       `json:"reason,omitempty"`
	Published      uint64       `json:"published"`
	PublishDropped uint64       `json:"publish_dropped"`
	NodesTracked   int          `json:"nodes_tracked"`
}

// GetMetrics returns the bridge's counters.
func (b *Bridge) GetMetrics() BridgeMetrics {
	status, reason := b.health.Status()

	b.stateCacheMu.Lock()
	tracked := len(b.stateCache)
	b.stateCacheMu.Unlock()

	return BridgeMetrics{
		Status:         status,
		Reason:         reason,
		Published:      b.published.Load(),
		PublishDropped: b.publishDropped.Load(),
		NodesTracked:   tracked,
	}
}
