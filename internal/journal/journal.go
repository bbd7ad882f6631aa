package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-zwave/internal/commands"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

const (
	defaultBuffer        = 1024
	defaultPruneInterval = time.Hour
	maxBatch             = 128

	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Logger is the structured logger used by the journal.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config holds journal settings.
type Config struct {
	// Buffer is the number of entries queued for the writer. Entries
	// arriving while it is full are dropped and counted.
	Buffer int

	// Retention deletes entries older than this. Zero keeps everything.
	Retention time.Duration

	// PruneInterval is how often retention is applied. Default 1h.
	PruneInterval time.Duration
}

// Stats reports journal counters.
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
	Pruned  uint64 `json:"pruned"`
}

// entry is either an event or a command row.
type entry struct {
	event   *EventEntry
	command *CommandEntry
}

// Journal writes events and commands to SQLite. It implements
// zwave.EventSink and zwave.CommandRecorder.
type Journal struct {
	db     *sql.DB
	cfg    Config
	logger Logger

	entries  chan entry
	sequence uint64

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
	pruned  atomic.Uint64

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	started atomic.Bool
	cancel  context.CancelFunc
}

// New creates a Journal on a migrated database. logger may be nil.
func New(db *sql.DB, cfg Config, logger Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.Retention < 0 {
		return nil, fmt.Errorf("retention must not be negative")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = defaultPruneInterval
	}
	if logger == nil {
		logger = nopLogger{}
	}

	return &Journal{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		entries: make(chan entry, cfg.Buffer),
	}, nil
}

// Start launches the writer and, with a retention set, the pruner.
func (j *Journal) Start(ctx context.Context) {
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.writeLoop()

	if j.cfg.Retention > 0 {
		j.wg.Add(1)
		go j.pruneLoop(ctx)
	}
}

// Stop stops accepting entries, commits everything queued and waits for
// the background goroutines. It is safe to call more than once.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.entries)
	j.mu.Unlock()

	if j.cancel != nil {
		j.cancel()
	}
	if !j.started.Load() {
		// Never started: commit the queue inline.
		j.writeLoop()
		return
	}
	j.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (j *Journal) Stats() Stats {
	return Stats{
		Written: j.written.Load(),
		Dropped: j.dropped.Load(),
		Failed:  j.failed.Load(),
		Pruned:  j.pruned.Load(),
	}
}

// HandleEvent implements zwave.EventSink. It never blocks.
func (j *Journal) HandleEvent(e zw.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		j.logger.Error("failed to encode event for journal", "event", e.Type, "error", err)
		return
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	// Sequence is only touched on the consumer goroutine.
	j.sequence++
	ev := &EventEntry{
		ID:         uuid.NewString(),
		Sequence:   j.sequence,
		Type:       e.Type,
		Payload:    payload,
		OccurredAt: ts.UTC(),
	}

	args := e.Payload()
	if _, ok := args["home_id"]; ok {
		homeID := e.HomeID
		ev.HomeID = &homeID
	}
	if _, ok := args["node_id"]; ok {
		nodeID := e.NodeID
		ev.NodeID = &nodeID
	}
	if _, ok := args["command_class"]; ok {
		cc := e.CommandClass
		ev.CommandClass = &cc
	}

	j.enqueue(entry{event: ev})
}

// RecordCommand implements zwave.CommandRecorder.
func (j *Journal) RecordCommand(_ context.Context, source string, cmd zw.Command, err error) {
	c := &CommandEntry{
		ID:         uuid.NewString(),
		CommandID:  cmd.ID,
		Source:     source,
		Name:       cmd.Name,
		Parameters: cmd.Parameters,
		Outcome:    commands.Classify(err),
		ExecutedAt: time.Now().UTC(),
	}
	if !zw.IsControllerCommand(cmd.Name) {
		nodeID := cmd.NodeID
		c.NodeID = &nodeID
	}
	if err != nil {
		c.Error = err.Error()
	}

	j.enqueue(entry{command: c})
}

func (j *Journal) enqueue(e entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}

	select {
	case j.entries <- e:
	default:
		if j.dropped.Add(1) == 1 {
			j.logger.Warn("journal buffer full, dropping entries", "buffer", j.cfg.Buffer)
		}
	}
}

// writeLoop commits entries in batches until the channel is closed.
func (j *Journal) writeLoop() {
	if j.started.Load() {
		defer j.wg.Done()
	}

	batch := make([]entry, 0, maxBatch)
	for e := range j.entries {
		batch = append(batch[:0], e)
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-j.entries:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}

		if err := j.writeBatch(batch); err != nil {
			j.failed.Add(uint64(len(batch)))
			j.logger.Error("failed to write journal batch", "entries", len(batch), "error", err)
			continue
		}
		j.written.Add(uint64(len(batch)))
	}
}

func (j *Journal) writeBatch(batch []entry) error {
	ctx := context.Background()
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for _, e := range batch {
		switch {
		case e.event != nil:
			err = insertEvent(ctx, tx, e.event)
		case e.command != nil:
			err = insertCommand(ctx, tx, e.command)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing journal batch: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, e *EventEntry) error {
	var homeID, nodeID, cc sql.NullInt64
	if e.HomeID != nil {
		homeID = sql.NullInt64{Int64: int64(*e.HomeID), Valid: true}
	}
	if e.NodeID != nil {
		nodeID = sql.NullInt64{Int64: int64(*e.NodeID), Valid: true}
	}
	if e.CommandClass != nil {
		cc = sql.NullInt64{Int64: int64(*e.CommandClass), Valid: true}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, sequence, type, home_id, node_id, command_class, payload, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, int64(e.Sequence), string(e.Type), homeID, nodeID, cc,
		string(e.Payload), e.OccurredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func insertCommand(ctx context.Context, tx *sql.Tx, c *CommandEntry) error {
	params := c.Parameters
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshalling command parameters: %w", err)
	}

	var nodeID sql.NullInt64
	if c.NodeID != nil {
		nodeID = sql.NullInt64{Int64: int64(*c.NodeID), Valid: true}
	}
	var commandID sql.NullString
	if c.CommandID != "" {
		commandID = sql.NullString{String: c.CommandID, Valid: true}
	}
	var errText sql.NullString
	if c.Error != "" {
		errText = sql.NullString{String: c.Error, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO commands (id, command_id, source, name, node_id, parameters, outcome, error, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, commandID, c.Source, c.Name, nodeID, string(paramsJSON), string(c.Outcome), errText,
		c.ExecutedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command: %w", err)
	}
	return nil
}

func (j *Journal) pruneLoop(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.Prune(ctx, j.cfg.Retention)
			if err != nil {
				j.logger.Error("journal prune failed", "error", err)
				continue
			}
			if n > 0 {
				j.logger.Info("journal pruned", "rows", n, "retention", j.cfg.Retention.String())
			}
		}
	}
}
