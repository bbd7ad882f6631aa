package zwave

import (
	"slices"
	"sync"
)

// Cache is the session's directory of nodes and their values.
//
// Mutations only happen on the consumer goroutine. Lookups may come from any
// goroutine; every method holds the lock for its own duration only and
// returns copies, never references into the directory.
type Cache struct {
	mu    sync.RWMutex
	nodes map[uint8]*NodeRecord
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		nodes: make(map[uint8]*NodeRecord),
	}
}

// InsertNode stores rec. A record already present for the same node id is
// replaced.
func (c *Cache) InsertNode(rec NodeRecord) {
	stored := rec
	stored.Values = slices.Clone(rec.Values)

	c.mu.Lock()
	c.nodes[rec.NodeID] = &stored
	c.mu.Unlock()
}

// RemoveNode deletes the node and its values. It reports whether the node
// existed.
func (c *Cache) RemoveNode(nodeID uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.nodes[nodeID]; !ok {
		return false
	}
	delete(c.nodes, nodeID)
	return true
}

// FindNode returns a copy of the node's record.
func (c *Cache) FindNode(nodeID uint8) (NodeSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.nodes[nodeID]
	if !ok {
		return NodeSnapshot{}, false
	}
	return snapshotOf(rec), true
}

// AppendValue adds v to the node's values. A value with the same
// (class, index, instance) is replaced in place. It returns false when the
// node is unknown.
func (c *Cache) AppendValue(nodeID uint8, v ValueID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.nodes[nodeID]
	if !ok {
		return false
	}

	key := v.Key()
	for i, existing := range rec.Values {
		if existing.Key() == key {
			rec.Values[i] = v
			return true
		}
	}
	rec.Values = append(rec.Values, v)
	return true
}

// RemoveValue erases the value identical to v. It reports whether anything
// was removed.
func (c *Cache) RemoveValue(nodeID uint8, v ValueID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.nodes[nodeID]
	if !ok {
		return false
	}

	for i, existing := range rec.Values {
		if existing.Equal(v) {
			rec.Values = slices.Delete(rec.Values, i, i+1)
			return true
		}
	}
	return false
}

// FindValue returns the node's value with the given class and index. When
// several instances match, the first in insertion order wins.
func (c *Cache) FindValue(nodeID uint8, class CommandClass, index uint8) (ValueID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.nodes[nodeID]
	if !ok {
		return ValueID{}, ErrNodeNotFound
	}
	for _, v := range rec.Values {
		if v.CommandClass == class && v.Index == index {
			return v, nil
		}
	}
	return ValueID{}, ErrValueNotFound
}

// FirstValue returns the node's first value of the given class.
func (c *Cache) FirstValue(nodeID uint8, class CommandClass) (ValueID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.nodes[nodeID]
	if !ok {
		return ValueID{}, ErrNodeNotFound
	}
	for _, v := range rec.Values {
		if v.CommandClass == class {
			return v, nil
		}
	}
	return ValueID{}, ErrValueNotFound
}

// SetPolled records whether polling is enabled for the node.
func (c *Cache) SetPolled(nodeID uint8, polled bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.nodes[nodeID]
	if !ok {
		return false
	}
	rec.Polled = polled
	return true
}

// Nodes returns copies of all records ordered by node id.
func (c *Cache) Nodes() []NodeSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]NodeSnapshot, 0, len(c.nodes))
	for _, rec := range c.nodes {
		out = append(out, snapshotOf(rec))
	}
	slices.SortFunc(out, func(a, b NodeSnapshot) int {
		return int(a.NodeID) - int(b.NodeID)
	})
	return out
}

// Len returns the number of known nodes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

func snapshotOf(rec *NodeRecord) NodeSnapshot {
	return NodeSnapshot{
		HomeID: rec.HomeID,
		NodeID: rec.NodeID,
		Polled: rec.Polled,
		Values: slices.Clone(rec.Values),
	}
}
