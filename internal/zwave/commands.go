package zwave

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Command names accepted by Command.Apply.
const (
	CommandOn          = "on"
	CommandOff         = "off"
	CommandSetLevel    = "set_level"
	CommandSetValue    = "set_value"
	CommandEnablePoll  = "enable_poll"
	CommandDisablePoll = "disable_poll"
	CommandSetName     = "set_name"
	CommandSetLocation = "set_location"
	CommandHardReset   = "hard_reset"
	CommandSoftReset   = "soft_reset"
)

var (
	// ErrUnknownCommand is returned by Apply for a command name it does not know.
	ErrUnknownCommand = errors.New("zwave: unknown command")

	// ErrInvalidParameters is returned by Apply when a parameter is missing
	// or has the wrong type.
	ErrInvalidParameters = errors.New("zwave: invalid command parameters")
)

// Command is a named operation on a node, as submitted over MQTT or HTTP.
// Parameters follow JSON decoding: numbers arrive as float64.
type Command struct {
	// ID correlates the command across acks, logs and the journal.
	// Optional.
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"command"`
	NodeID     uint8          `json:"node_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// CommandRecorder observes executed commands. err is the result of Apply.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, source string, cmd Command, err error)
}

// CommandRecorders fans a command out to several recorders.
type CommandRecorders []CommandRecorder

// RecordCommand calls every recorder in order.
func (rs CommandRecorders) RecordCommand(ctx context.Context, source string, cmd Command, err error) {
	for _, r := range rs {
		if r != nil {
			r.RecordCommand(ctx, source, cmd, err)
		}
	}
}

// IsControllerCommand reports whether name targets the controller rather
// than a node.
func IsControllerCommand(name string) bool {
	return name == CommandHardReset || name == CommandSoftReset
}

// Apply runs the command against ex. It is meant to be passed to
// Session.Do so it executes on the consumer goroutine.
func (c Command) Apply(ex *Executor) error {
	switch c.Name {
	case CommandOn:
		return ex.SwitchOn(c.NodeID)

	case CommandOff:
		return ex.SwitchOff(c.NodeID)

	case CommandSetLevel:
		level, err := c.intParam("level", 0, LevelLastKnown)
		if err != nil {
			return err
		}
		return ex.SetLevel(c.NodeID, int(level))

	case CommandSetValue:
		class, err := c.intParam("command_class", 0, math.MaxUint8)
		if err != nil {
			return err
		}
		index, err := c.intParam("index", 0, math.MaxUint8)
		if err != nil {
			return err
		}
		value, ok := c.Parameters["value"]
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidParameters, "value")
		}
		return ex.SetValue(c.NodeID, CommandClass(class), uint8(index), value)

	case CommandEnablePoll, CommandDisablePoll:
		class, err := c.intParam("command_class", 0, math.MaxUint8)
		if err != nil {
			return err
		}
		if c.Name == CommandEnablePoll {
			return ex.EnablePoll(c.NodeID, CommandClass(class))
		}
		return ex.DisablePoll(c.NodeID, CommandClass(class))

	case CommandSetName:
		name, err := c.stringParam("name")
		if err != nil {
			return err
		}
		return ex.SetName(c.NodeID, name)

	case CommandSetLocation:
		location, err := c.stringParam("location")
		if err != nil {
			return err
		}
		return ex.SetLocation(c.NodeID, location)

	case CommandHardReset:
		return ex.HardReset()

	case CommandSoftReset:
		return ex.SoftReset()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
}

func (c Command) intParam(key string, lo, hi int64) (int64, error) {
	raw, ok := c.Parameters[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidParameters, key)
	}
	var n int64
	switch x := raw.(type) {
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%w: %q must be a whole number", ErrInvalidParameters, key)
		}
		n = int64(x)
	case int:
		n = int64(x)
	default:
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidParameters, key)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %q must be %d-%d", ErrInvalidParameters, key, lo, hi)
	}
	return n, nil
}

func (c Command) stringParam(key string) (string, error) {
	s, ok := c.Parameters[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrInvalidParameters, key)
	}
	return s, nil
}
