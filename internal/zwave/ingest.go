package zwave

import (
	"fmt"
	"time"
)

// CopyNotification copies the fields of a transient driver notification into
// an immutable Notification. Discriminants are read only for the types that
// define them.
func CopyNotification(dn DriverNotification) Notification {
	n := Notification{
		Type:     dn.Type(),
		HomeID:   dn.HomeID(),
		NodeID:   dn.NodeID(),
		ValueID:  dn.ValueID(),
		Received: time.Now(),
	}

	switch n.Type {
	case NotificationGroup:
		n.GroupIdx = dn.GroupIdx()
	case NotificationNodeEvent:
		n.Event = dn.Event()
	case NotificationCreateButton, NotificationDeleteButton,
		NotificationButtonOn, NotificationButtonOff:
		n.ButtonID = dn.ButtonID()
	case NotificationSceneEvent:
		n.SceneID = dn.SceneID()
	case NotificationGeneric:
		n.Code = dn.NotificationCode()
	}

	return n
}

// ingest is the watcher registered with the driver. It runs on the driver's
// goroutine and must return quickly: it copies, enqueues and nothing else.
func (s *Session) ingest(dn DriverNotification) {
	defer func() {
		if r := recover(); r != nil {
			s.stats.dropped.Add(1)
			s.logError("dropped notification", fmt.Errorf("panic reading driver notification: %v", r))
		}
	}()

	n := CopyNotification(dn)
	s.queue.Push(n)
	s.stats.received.Add(1)
}
