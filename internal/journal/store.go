package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/commands"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// where accumulates SQL conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

func (w *where) timeRange(column string, since, until time.Time) {
	if !since.IsZero() {
		w.add(column+" >= ?", since.UTC().Format(timeLayout))
	}
	if !until.IsZero() {
		w.add(column+" < ?", until.UTC().Format(timeLayout))
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// Events returns matching events, newest first.
func (j *Journal) Events(ctx context.Context, f EventFilter) ([]EventEntry, error) {
	var w where
	if f.Type != "" {
		w.add("type = ?", string(f.Type))
	}
	if f.NodeID != 0 {
		w.add("node_id = ?", int64(f.NodeID))
	}
	w.timeRange("occurred_at", f.Since, f.Until)

	limit := clampLimit(f.Limit)
	query := `SELECT id, sequence, type, home_id, node_id, command_class, payload, occurred_at
		FROM events` + w.String() + ` ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?`

	rows, err := j.db.QueryContext(ctx, query, append(w.args, limit, max(f.Offset, 0))...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	entries := make([]EventEntry, 0, limit)
	for rows.Next() {
		var (
			e                  EventEntry
			sequence           int64
			eventType, payload string
			occurredAt         string
			homeID, nodeID, cc sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &sequence, &eventType, &homeID, &nodeID, &cc, &payload, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		e.Sequence = uint64(sequence)
		e.Type = zw.EventType(eventType)
		e.Payload = json.RawMessage(payload)
		if homeID.Valid {
			v := uint32(homeID.Int64)
			e.HomeID = &v
		}
		if nodeID.Valid {
			v := uint8(nodeID.Int64)
			e.NodeID = &v
		}
		if cc.Valid {
			v := zw.CommandClass(cc.Int64)
			e.CommandClass = &v
		}
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return entries, nil
}

// Commands returns matching commands, newest first.
func (j *Journal) Commands(ctx context.Context, f CommandFilter) ([]CommandEntry, error) {
	var w where
	if f.Source != "" {
		w.add("source = ?", f.Source)
	}
	if f.NodeID != 0 {
		w.add("node_id = ?", int64(f.NodeID))
	}
	if f.Outcome != "" {
		w.add("outcome = ?", string(f.Outcome))
	}
	w.timeRange("executed_at", f.Since, f.Until)

	limit := clampLimit(f.Limit)
	query := `SELECT id, command_id, source, name, node_id, parameters, outcome, error, executed_at
		FROM commands` + w.String() + ` ORDER BY executed_at DESC, rowid DESC LIMIT ? OFFSET ?`

	rows, err := j.db.QueryContext(ctx, query, append(w.args, limit, max(f.Offset, 0))...)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	entries := make([]CommandEntry, 0, limit)
	for rows.Next() {
		var (
			c                   CommandEntry
			nodeID              sql.NullInt64
			params, outcome, at string
			commandID, errText  sql.NullString
		)
		if err := rows.Scan(&c.ID, &commandID, &c.Source, &c.Name, &nodeID, &params, &outcome, &errText, &at); err != nil {
			return nil, fmt.Errorf("scanning command: %w", err)
		}

		if nodeID.Valid {
			v := uint8(nodeID.Int64)
			c.NodeID = &v
		}
		if err := json.Unmarshal([]byte(params), &c.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshalling command parameters: %w", err)
		}
		if len(c.Parameters) == 0 {
			c.Parameters = nil
		}
		c.Outcome = commands.Outcome(outcome)
		c.CommandID = commandID.String
		c.Error = errText.String
		if c.ExecutedAt, err = parseTime(at); err != nil {
			return nil, err
		}

		entries = append(entries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	return entries, nil
}

// Prune deletes events and commands older than olderThan and returns the
// number of rows removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)

	var total int64
	for _, stmt := range []string{
		"DELETE FROM events WHERE occurred_at < ?",
		"DELETE FROM commands WHERE executed_at < ?",
	} {
		result, err := j.db.ExecContext(ctx, stmt, cutoff)
		if err != nil {
			return total, fmt.Errorf("pruning journal: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}

	j.pruned.Add(uint64(total))
	return total, nil
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing journal timestamp %q: %w", value, err)
	}
	return t, nil
}
