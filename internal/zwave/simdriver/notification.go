package simdriver

import "github.com/nerrad567/gray-logic-zwave/internal/zwave"

// notification is the simulated driver's DriverNotification. Unlike a real
// driver it never panics on a discriminant read for the wrong type; the
// field is simply zero.
type notification struct {
	typ      zwave.NotificationType
	homeID   uint32
	nodeID   uint8
	valueID  zwave.ValueID
	groupIdx uint8
	event    uint8
	buttonID uint8
	sceneID  uint8
	code     zwave.NotificationCode
}

func (n notification) Type() zwave.NotificationType             { return n.typ }
func (n notification) HomeID() uint32                           { return n.homeID }
func (n notification) NodeID() uint8                            { return n.nodeID }
func (n notification) ValueID() zwave.ValueID                   { return n.valueID }
func (n notification) GroupIdx() uint8                          { return n.groupIdx }
func (n notification) Event() uint8                             { return n.event }
func (n notification) ButtonID() uint8                          { return n.buttonID }
func (n notification) SceneID() uint8                           { return n.sceneID }
func (n notification) NotificationCode() zwave.NotificationCode { return n.code }

// NodeEvent raises a basic-set style event from nodeID, as a battery sensor
// without a mapped value would.
func (d *Driver) NodeEvent(nodeID uint8, event uint8) {
	d.enqueue(notification{typ: zwave.NotificationNodeEvent, homeID: d.network.HomeID, nodeID: nodeID, event: event})
}

// Scene raises a scene activation from nodeID.
func (d *Driver) Scene(nodeID uint8, sceneID uint8) {
	d.enqueue(notification{typ: zwave.NotificationSceneEvent, homeID: d.network.HomeID, nodeID: nodeID, sceneID: sceneID})
}
