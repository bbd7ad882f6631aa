package zwave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// activeSession enforces one connected session per process. The driver
// keeps process-wide state of its own, so two sessions would share it.
var activeSession atomic.Pointer[Session]

type sessionState int

const (
	stateIdle sessionState = iota
	stateConnected
	stateClosed
)

// SessionConfig holds what a session needs.
type SessionConfig struct {
	// Driver is the network driver. Required.
	Driver Driver

	// Options are applied once, before the first connection.
	Options Options

	// Sink receives every emitted event on the consumer goroutine.
	Sink EventSink

	// Logger is optional.
	Logger Logger
}

// Stats is a point-in-time view of a session.
type Stats struct {
	Connected  bool   `json:"connected"`
	Path       string `json:"path,omitempty"`
	HomeID     uint32 `json:"home_id"`
	Ready      bool   `json:"ready"`
	Nodes      int    `json:"nodes"`
	QueueDepth int    `json:"queue_depth"`
	Received   uint64 `json:"notifications_received"`
	Dropped    uint64 `json:"notifications_dropped"`
	Dispatched uint64 `json:"notifications_dispatched"`
	Unhandled  uint64 `json:"notifications_unhandled"`
	Emitted    uint64 `json:"events_emitted"`
	Commands   uint64 `json:"commands_executed"`
}

type command struct {
	fn     func(*Executor) error
	result chan error
}

// Session owns one driver connection: its queue, cache, dispatcher and
// executor, and the network id captured when the driver becomes ready.
//
// Thread Safety: Connect, Disconnect, Do, Stats and the accessors may be
// called from any goroutine. Run runs once; later calls return ErrLoopFinished.
type Session struct {
	driver     Driver
	opts       Options
	queue      *Queue
	cache      *Cache
	dispatcher *Dispatcher
	executor   *Executor
	logger     Logger

	commands chan command
	running  atomic.Bool
	loopDone chan struct{}

	mu         sync.Mutex
	state      sessionState
	path       string
	watcher    WatcherID
	configured bool

	stats struct {
		received atomic.Uint64
		dropped  atomic.Uint64
		commands atomic.Uint64
	}
}

// NewSession creates a session. Call Connect to open the controller and Run
// to start consuming notifications.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Driver == nil {
		return nil, fmt.Errorf("driver is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	s := &Session{
		driver:   cfg.Driver,
		opts:     cfg.Options,
		queue:    NewQueue(),
		cache:    NewCache(),
		logger:   logger,
		commands: make(chan command),
		loopDone: make(chan struct{}),
	}
	s.dispatcher = NewDispatcher(cfg.Driver, s.cache, cfg.Sink, logger)
	s.executor = NewExecutor(cfg.Driver, s.cache, func() uint32 {
		home, _ := s.dispatcher.HomeID()
		return home
	}, logger)

	return s, nil
}

// Connect applies the options (first time only), registers the watcher and
// opens the controller at path.
func (s *Session) Connect(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrSessionClosed
	case stateConnected:
		return fmt.Errorf("%w: already connected to %s", ErrSessionActive, s.path)
	}

	if !activeSession.CompareAndSwap(nil, s) {
		return ErrSessionActive
	}

	if err := s.connectLocked(path); err != nil {
		activeSession.CompareAndSwap(s, nil)
		return err
	}

	s.state = stateConnected
	s.path = path
	s.logger.Info("z-wave driver connected", "path", path)
	return nil
}

func (s *Session) connectLocked(path string) error {
	if !s.configured {
		if err := s.driver.Configure(s.opts); err != nil {
			return fmt.Errorf("configure driver: %w", err)
		}
		s.configured = true
	}

	id, err := s.driver.AddWatcher(s.ingest)
	if err != nil {
		return fmt.Errorf("add watcher: %w", err)
	}

	if err := s.driver.AddDriver(path); err != nil {
		if rmErr := s.driver.RemoveWatcher(id); rmErr != nil {
			s.logError("failed to remove watcher", rmErr)
		}
		return fmt.Errorf("add driver %s: %w", path, err)
	}

	s.watcher = id
	return nil
}

// Disconnect stops the driver, unregisters the watcher, releases the driver
// and discards anything still queued. If Run is active the teardown happens
// on the consumer goroutine so it cannot overlap a dispatch.
func (s *Session) Disconnect() error {
	if s.running.Load() {
		err := s.submit(context.Background(), func(*Executor) error {
			return s.disconnect()
		})
		if !errors.Is(err, ErrNotRunning) {
			return err
		}
	}
	return s.disconnect()
}

func (s *Session) disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return nil
	case stateIdle:
		s.state = stateClosed
		return nil
	}

	var errs []error
	if err := s.driver.RemoveDriver(s.path); err != nil {
		errs = append(errs, fmt.Errorf("remove driver: %w", err))
	}
	if err := s.driver.RemoveWatcher(s.watcher); err != nil {
		errs = append(errs, fmt.Errorf("remove watcher: %w", err))
	}
	if err := s.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close driver: %w", err))
	}

	discarded := s.queue.Drain()
	s.state = stateClosed
	activeSession.CompareAndSwap(s, nil)

	s.logger.Info("z-wave driver disconnected", "path", s.path, "discarded", discarded)
	return errors.Join(errs...)
}

// Run is the consumer loop. It drains the queue on every wake and executes
// submitted commands between drains, until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("session already running")
	}
	select {
	case <-s.loopDone:
		s.running.Store(false)
		return ErrLoopFinished
	default:
	}
	defer func() {
		s.running.Store(false)
		close(s.loopDone)
	}()

	// Notifications may have been queued before the loop started.
	s.drain()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.queue.Wake():
			s.drain()
		case cmd := <-s.commands:
			cmd.result <- s.execute(cmd.fn)
		}
	}
}

// Do runs fn on the consumer goroutine with the session's executor and
// returns its error. If ctx ends first Do returns ctx.Err(); a command that
// was already picked up still runs to completion.
func (s *Session) Do(ctx context.Context, fn func(*Executor) error) error {
	return s.submit(ctx, func(ex *Executor) error {
		if !s.Connected() {
			return ErrNotConnected
		}
		s.stats.commands.Add(1)
		return fn(ex)
	})
}

func (s *Session) submit(ctx context.Context, fn func(*Executor) error) error {
	if !s.running.Load() {
		return ErrNotRunning
	}

	cmd := command{fn: fn, result: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.loopDone:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) execute(fn func(*Executor) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command panicked: %v", r)
			s.logError("command panicked", err)
		}
	}()
	return fn(s.executor)
}

// drain dispatches until the queue is empty.
func (s *Session) drain() {
	for {
		n, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.dispatch(n)
	}
}

func (s *Session) dispatch(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logError("dispatch panicked",
				fmt.Errorf("type=%s node=%d: %v", n.Type, n.NodeID, r))
		}
	}()
	s.dispatcher.Dispatch(n)
}

// Connected reports whether the controller is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateConnected
}

// HomeID returns the network id and whether the driver has reported ready.
func (s *Session) HomeID() (uint32, bool) {
	return s.dispatcher.HomeID()
}

// Cache returns the session's node directory for read access.
func (s *Session) Cache() *Cache {
	return s.cache
}

// Stats returns current counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	connected := s.state == stateConnected
	path := s.path
	s.mu.Unlock()

	home, ready := s.dispatcher.HomeID()
	return Stats{
		Connected:  connected,
		Path:       path,
		HomeID:     home,
		Ready:      ready,
		Nodes:      s.cache.Len(),
		QueueDepth: s.queue.Len(),
		Received:   s.stats.received.Load(),
		Dropped:    s.stats.dropped.Load(),
		Dispatched: s.dispatcher.dispatched.Load(),
		Unhandled:  s.dispatcher.unhandled.Load(),
		Emitted:    s.dispatcher.emitted.Load(),
		Commands:   s.stats.commands.Load(),
	}
}

func (s *Session) logError(msg string, err error) {
	s.logger.Error(msg, "error", err)
}
