package simdriver

import (
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// meta returns a copy of the stored value, or the zero value if id is
// unknown.
func (d *Driver) meta(id zwave.ValueID) value {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.lookup(id)
	if err != nil {
		return value{}
	}
	return *v
}

func (d *Driver) ValueLabel(id zwave.ValueID) string     { return d.meta(id).label }
func (d *Driver) ValueUnits(id zwave.ValueID) string     { return d.meta(id).units }
func (d *Driver) IsValueReadOnly(id zwave.ValueID) bool  { return d.meta(id).readOnly }
func (d *Driver) IsValueWriteOnly(id zwave.ValueID) bool { return d.meta(id).writeOnly }
func (d *Driver) ValueMin(id zwave.ValueID) int32        { return d.meta(id).min }
func (d *Driver) ValueMax(id zwave.ValueID) int32        { return d.meta(id).max }

// read returns the current value of id when its declared type is kind.
func read[T any](d *Driver, id zwave.ValueID, kind zwave.ValueKind) (T, error) {
	var zero T
	if id.Kind != kind {
		return zero, fmt.Errorf("%w: %s is %s", ErrWrongKind, id, id.Kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.lookup(id)
	if err != nil {
		return zero, err
	}
	out, ok := v.current.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrWrongKind, id, v.current)
	}
	return out, nil
}

func (d *Driver) ValueAsBool(id zwave.ValueID) (bool, error) {
	return read[bool](d, id, zwave.KindBool)
}

func (d *Driver) ValueAsByte(id zwave.ValueID) (uint8, error) {
	return read[uint8](d, id, zwave.KindByte)
}

func (d *Driver) ValueAsShort(id zwave.ValueID) (int16, error) {
	return read[int16](d, id, zwave.KindShort)
}

func (d *Driver) ValueAsInt(id zwave.ValueID) (int32, error) {
	return read[int32](d, id, zwave.KindInt)
}

func (d *Driver) ValueAsFloat(id zwave.ValueID) (float64, error) {
	return read[float64](d, id, zwave.KindDecimal)
}

func (d *Driver) ValueAsString(id zwave.ValueID) (string, error) {
	return read[string](d, id, zwave.KindString)
}

func (d *Driver) ValueListSelection(id zwave.ValueID) (string, error) {
	return read[string](d, id, zwave.KindList)
}

func (d *Driver) ValueListItems(id zwave.ValueID) ([]string, error) {
	if id.Kind != zwave.KindList {
		return nil, fmt.Errorf("%w: %s is %s", ErrWrongKind, id, id.Kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.lookup(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.items), nil
}

// write stores x as the current value of id and reports the change.
func write[T any](d *Driver, id zwave.ValueID, kind zwave.ValueKind, x T) error {
	if id.Kind != kind {
		return fmt.Errorf("%w: %s is %s", ErrWrongKind, id, id.Kind)
	}

	d.mu.Lock()
	v, err := d.lookup(id)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if v.readOnly {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrReadOnly, id)
	}
	v.current = x
	d.mu.Unlock()

	d.changed(id)
	return nil
}

func (d *Driver) SetValueBool(id zwave.ValueID, x bool) error {
	return write(d, id, zwave.KindBool, x)
}

func (d *Driver) SetValueByte(id zwave.ValueID, x uint8) error {
	// 255 restores the last non-zero level on a multilevel switch.
	if x == zwave.LevelLastKnown && id.CommandClass == zwave.ClassSwitchMultilevel {
		x = zwave.MaxLevel
	}
	return write(d, id, zwave.KindByte, x)
}

func (d *Driver) SetValueShort(id zwave.ValueID, x int16) error {
	return write(d, id, zwave.KindShort, x)
}

func (d *Driver) SetValueInt(id zwave.ValueID, x int32) error {
	return write(d, id, zwave.KindInt, x)
}

func (d *Driver) SetValueFloat(id zwave.ValueID, x float64) error {
	return write(d, id, zwave.KindDecimal, x)
}

func (d *Driver) SetValueString(id zwave.ValueID, x string) error {
	return write(d, id, zwave.KindString, x)
}

func (d *Driver) SetValueListSelection(id zwave.ValueID, item string) error {
	d.mu.Lock()
	v, err := d.lookup(id)
	if err == nil && !slices.Contains(v.items, item) {
		err = fmt.Errorf("simdriver: %q is not an item of %s", item, id)
	}
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return write(d, id, zwave.KindList, item)
}

// PressButton and ReleaseButton only check the value exists. Buttons carry
// no state, so no change is reported.
func (d *Driver) PressButton(id zwave.ValueID) error   { return d.button(id) }
func (d *Driver) ReleaseButton(id zwave.ValueID) error { return d.button(id) }

func (d *Driver) button(id zwave.ValueID) error {
	if id.Kind != zwave.KindButton {
		return fmt.Errorf("%w: %s is %s", ErrWrongKind, id, id.Kind)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.lookup(id)
	return err
}

// SetChangeVerified is accepted and ignored: simulated reports never bounce.
func (d *Driver) SetChangeVerified(zwave.ValueID, bool) {}

func (d *Driver) EnablePoll(id zwave.ValueID) error  { return d.setPolled(id, true) }
func (d *Driver) DisablePoll(id zwave.ValueID) error { return d.setPolled(id, false) }

func (d *Driver) setPolled(id zwave.ValueID, polled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.lookup(id)
	if err != nil {
		return err
	}
	v.polled = polled
	return nil
}

// Polled reports whether id is currently polled.
func (d *Driver) Polled(id zwave.ValueID) bool {
	return d.meta(id).polled
}

// Value returns the stored value of id, or nil if it does not exist.
func (d *Driver) Value(id zwave.ValueID) any {
	return d.meta(id).current
}

func (d *Driver) info(homeID uint32, nodeID uint8) zwave.NodeInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	if homeID != d.network.HomeID {
		return zwave.NodeInfo{}
	}
	n, ok := d.nodes[nodeID]
	if !ok {
		return zwave.NodeInfo{}
	}
	return n.info
}

func (d *Driver) NodeManufacturerName(h uint32, n uint8) string { return d.info(h, n).Manufacturer }
func (d *Driver) NodeManufacturerID(h uint32, n uint8) string   { return d.info(h, n).ManufacturerID }
func (d *Driver) NodeProductName(h uint32, n uint8) string      { return d.info(h, n).Product }
func (d *Driver) NodeProductType(h uint32, n uint8) string      { return d.info(h, n).ProductType }
func (d *Driver) NodeProductID(h uint32, n uint8) string        { return d.info(h, n).ProductID }
func (d *Driver) NodeType(h uint32, n uint8) string             { return d.info(h, n).Type }
func (d *Driver) NodeName(h uint32, n uint8) string             { return d.info(h, n).Name }
func (d *Driver) NodeLocation(h uint32, n uint8) string         { return d.info(h, n).Location }

// SetNodeName stores the name and reports it as a naming notification.
func (d *Driver) SetNodeName(homeID uint32, nodeID uint8, name string) error {
	return d.rename(homeID, nodeID, func(info *zwave.NodeInfo) { info.Name = name })
}

// SetNodeLocation stores the location and reports it as a naming notification.
func (d *Driver) SetNodeLocation(homeID uint32, nodeID uint8, location string) error {
	return d.rename(homeID, nodeID, func(info *zwave.NodeInfo) { info.Location = location })
}

func (d *Driver) rename(homeID uint32, nodeID uint8, apply func(*zwave.NodeInfo)) error {
	d.mu.Lock()
	n, ok := d.nodes[nodeID]
	if homeID != d.network.HomeID || !ok {
		d.mu.Unlock()
		return fmt.Errorf("simdriver: no node %d on network %08x", nodeID, homeID)
	}
	apply(&n.info)
	d.mu.Unlock()

	d.enqueue(notification{typ: zwave.NotificationNodeNaming, homeID: homeID, nodeID: nodeID})
	return nil
}

// ResetController excludes every node except the controller itself.
func (d *Driver) ResetController(homeID uint32) error {
	if homeID != d.network.HomeID {
		return fmt.Errorf("simdriver: unknown network %08x", homeID)
	}
	for _, id := range d.nodeIDs() {
		if id == controllerNode {
			continue
		}
		d.RemoveNode(id)
	}
	return nil
}

// SoftReset counts the request. The simulated stick has nothing to restart.
func (d *Driver) SoftReset(homeID uint32) error {
	if homeID != d.network.HomeID {
		return fmt.Errorf("simdriver: unknown network %08x", homeID)
	}
	d.mu.Lock()
	d.softResets++
	d.mu.Unlock()
	return nil
}

const controllerNode = 1

var _ zwave.Driver = (*Driver)(nil)
