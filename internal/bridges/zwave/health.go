package zwave

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type HealthReporter struct {
	bridgeID       string
	version        string
	device         string
	startTime      time.Time
	interval       time.Duration
	publisher      HealthPublisher
	network        NetworkSource
	publishDropped func() uint64

	driverFailed atomic.Bool

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// NetworkSource reports the state of the Z-Wave session.
// *zwave.Session satisfies it.
type NetworkSource interface {
	Connected() bool
	HomeID() (uint32, bool)
	Stats() zw.Stats
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Device is the controller device path, reported as-is.
	Device string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Network provides connection state and counters.
	Network NetworkSource

	// PublishDropped optionally reports outbound messages dropped by the
	// bridge because its publish buffer was full.
	PublishDropped func() uint64
}

// NewHealthReporter creates a new health reporter.
//
// Parameters:
//   - cfg: Configuration for the health reporter
//
// Returns:
//   - *HealthReporter: Ready to start (call Start to begin reporting)
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &HealthReporter{
		bridgeID:       cfg.BridgeID,
		version:        cfg.Version,
		device:         cfg.Device,
		startTime:      time.Now(),
		interval:       interval,
		publisher:      cfg.Publisher,
		network:        cfg.Network,
		publishDropped: cfg.PublishDropped,
		done:           make(chan struct{}),
	}
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetDriverFailed records whether the driver has reported a failure.
func (h *HealthReporter) SetDriverFailed(failed bool) {
	h.driverFailed.Store(failed)
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// Status returns the current status without publishing it.
func (h *HealthReporter) Status() (HealthStatus, string) {
	return h.determineStatus()
}

// GetLWTPayload returns the Last Will and Testament message payload.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.bridgeID))
}

// GetLWTTopic returns the topic for the Last Will and Testament.
func (h *HealthReporter) GetLWTTopic() string {
	return HealthTopic()
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.driverFailed.Load() {
		return HealthUnhealthy, "driver failed"
	}
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.network == nil || !h.network.Connected() {
		return HealthDegraded, "controller disconnected"
	}
	if _, ok := h.network.HomeID(); !ok {
		return HealthStarting, "waiting for driver"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
		Network:       &NetworkStatus{Status: "disconnected", Device: h.device},
	}

	if h.network == nil {
		return msg
	}

	if h.network.Connected() {
		msg.Network.Status = "connected"
	}
	if home, ok := h.network.HomeID(); ok {
		msg.Network.HomeID = fmt.Sprintf("%08x", home)
	}

	stats := h.network.Stats()
	msg.NodesManaged = stats.Nodes
	msg.Statistics = &BridgeStatistics{
		NotificationsReceived: stats.Received,
		NotificationsDropped:  stats.Dropped,
		EventsEmitted:         stats.Emitted,
		CommandsExecuted:      stats.Commands,
		QueueDepth:            stats.QueueDepth,
	}
	if h.publishDropped != nil {
		msg.Statistics.PublishDropped = h.publishDropped()
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.buildMessage(status, reason))
	if err != nil {
		return err
	}

	// QoS 1, retained
	return h.publisher.Publish(HealthTopic(), payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
