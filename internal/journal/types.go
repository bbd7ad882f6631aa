package journal

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/commands"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// EventEntry is one journaled event. NodeID and CommandClass are nil for
// events that carry none.
type EventEntry struct {
	ID           string           `json:"id"`
	Sequence     uint64           `json:"sequence"`
	Type         zw.EventType     `json:"type"`
	HomeID       *uint32          `json:"home_id,omitempty"`
	NodeID       *uint8           `json:"node_id,omitempty"`
	CommandClass *zw.CommandClass `json:"command_class,omitempty"`
	Payload      json.RawMessage  `json:"payload"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// CommandEntry is one journaled command with its outcome.
type CommandEntry struct {
	ID         string           `json:"id"`
	CommandID  string           `json:"command_id,omitempty"`
	Source     string           `json:"source"`
	Name       string           `json:"name"`
	NodeID     *uint8           `json:"node_id,omitempty"`
	Parameters map[string]any   `json:"parameters,omitempty"`
	Outcome    commands.Outcome `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	ExecutedAt time.Time        `json:"executed_at"`
}

// EventFilter selects events. Zero fields match everything.
type EventFilter struct {
	Type   zw.EventType
	NodeID uint8
	Since  time.Time
	Until  time.Time

	// Limit defaults to 50 and is capped at 500.
	Limit  int
	Offset int
}

// CommandFilter selects commands. Zero fields match everything.
type CommandFilter struct {
	Source  string
	NodeID  uint8
	Outcome commands.Outcome
	Since   time.Time
	Until   time.Time
	Limit   int
	Offset  int
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
