package zwave

import "fmt"

// CommandDriver is the part of the driver the executor writes to.
type CommandDriver interface {
	ValueWriter
	Controller
}

// Executor resolves host commands through the cache and calls the driver.
// It is only handed out on the consumer goroutine (see Session.Do).
//
// When a node or value cannot be resolved nothing is sent and nothing in the
// cache changes; the returned error wraps ErrNodeNotFound or ErrValueNotFound
// so callers can decide whether to report it.
type Executor struct {
	driver CommandDriver
	cache  *Cache
	home   func() uint32
	logger Logger
}

// NewExecutor creates an executor. home returns the current network id.
func NewExecutor(driver CommandDriver, cache *Cache, home func() uint32, logger Logger) *Executor {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Executor{
		driver: driver,
		cache:  cache,
		home:   home,
		logger: logger,
	}
}

// SetValue writes value to the node's value with the given class and index,
// converting it to that value's kind.
func (e *Executor) SetValue(nodeID uint8, class CommandClass, index uint8, value any) error {
	v, err := e.cache.FindValue(nodeID, class, index)
	if err != nil {
		return e.unresolved("set_value", nodeID, class, err)
	}
	if err := WriteValue(e.driver, v, value); err != nil {
		return fmt.Errorf("set %s: %w", v, err)
	}
	return nil
}

// SetLevel sets a multilevel switch. level is 0-99, or 255 to restore the
// last non-zero level.
func (e *Executor) SetLevel(nodeID uint8, level int) error {
	if (level < 0 || level > MaxLevel) && level != LevelLastKnown {
		return fmt.Errorf("%w: got %d", ErrInvalidLevel, level)
	}

	v, err := e.cache.FindValue(nodeID, ClassSwitchMultilevel, 0)
	if err != nil {
		return e.unresolved("set_level", nodeID, ClassSwitchMultilevel, err)
	}
	if err := e.driver.SetValueByte(v, uint8(level)); err != nil {
		return fmt.Errorf("set level on node %d: %w", nodeID, err)
	}
	return nil
}

// SwitchOn turns a binary switch on.
func (e *Executor) SwitchOn(nodeID uint8) error {
	return e.setSwitch(nodeID, true)
}

// SwitchOff turns a binary switch off.
func (e *Executor) SwitchOff(nodeID uint8) error {
	return e.setSwitch(nodeID, false)
}

func (e *Executor) setSwitch(nodeID uint8, on bool) error {
	v, err := e.cache.FirstValue(nodeID, ClassSwitchBinary)
	if err != nil {
		return e.unresolved("switch", nodeID, ClassSwitchBinary, err)
	}
	if err := e.driver.SetValueBool(v, on); err != nil {
		return fmt.Errorf("switch node %d: %w", nodeID, err)
	}
	return nil
}

// EnablePoll turns on periodic re-reads of the node's first value of class.
func (e *Executor) EnablePoll(nodeID uint8, class CommandClass) error {
	v, err := e.cache.FirstValue(nodeID, class)
	if err != nil {
		return e.unresolved("enable_poll", nodeID, class, err)
	}
	if err := e.driver.EnablePoll(v); err != nil {
		return fmt.Errorf("enable poll on %s: %w", v, err)
	}
	e.cache.SetPolled(nodeID, true)
	return nil
}

// DisablePoll turns polling off for the node's first value of class.
func (e *Executor) DisablePoll(nodeID uint8, class CommandClass) error {
	v, err := e.cache.FirstValue(nodeID, class)
	if err != nil {
		return e.unresolved("disable_poll", nodeID, class, err)
	}
	if err := e.driver.DisablePoll(v); err != nil {
		return fmt.Errorf("disable poll on %s: %w", v, err)
	}
	e.cache.SetPolled(nodeID, false)
	return nil
}

// SetLocation stores a location string on the node.
func (e *Executor) SetLocation(nodeID uint8, location string) error {
	if err := e.driver.SetNodeLocation(e.home(), nodeID, location); err != nil {
		return fmt.Errorf("set location on node %d: %w", nodeID, err)
	}
	return nil
}

// SetName stores a name on the node.
func (e *Executor) SetName(nodeID uint8, name string) error {
	if err := e.driver.SetNodeName(e.home(), nodeID, name); err != nil {
		return fmt.Errorf("set name on node %d: %w", nodeID, err)
	}
	return nil
}

// HardReset erases the controller's network. Every node must be included
// again afterwards.
func (e *Executor) HardReset() error {
	home := e.home()
	e.logger.Warn("hard resetting controller", "home_id", fmt.Sprintf("0x%08x", home))
	if err := e.driver.ResetController(home); err != nil {
		return fmt.Errorf("hard reset: %w", err)
	}
	return nil
}

// SoftReset restarts the controller radio without losing the network.
func (e *Executor) SoftReset() error {
	home := e.home()
	e.logger.Info("soft resetting controller", "home_id", fmt.Sprintf("0x%08x", home))
	if err := e.driver.SoftReset(home); err != nil {
		return fmt.Errorf("soft reset: %w", err)
	}
	return nil
}

func (e *Executor) unresolved(op string, nodeID uint8, class CommandClass, err error) error {
	e.logger.Debug("command target not found",
		"command", op,
		"node_id", nodeID,
		"command_class", class.String(),
		"error", err)
	return fmt.Errorf("%s node %d class %s: %w", op, nodeID, class, err)
}
