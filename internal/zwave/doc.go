// Package zwave turns the callbacks of a Z-Wave network driver into an ordered
// stream of structured events, and keeps a directory of the nodes and values
// the driver has reported during the current session.
//
// # Threads
//
// The driver fires notifications on its own goroutine. That goroutine only
// copies the notification and appends it to the Queue; it never touches the
// Cache and never performs I/O.
//
// A single consumer goroutine (Session.Run) drains the queue. It runs the
// Dispatcher, which mutates the Cache and emits Events, and it runs every
// host command through the Executor. Dispatch and command execution are
// therefore never concurrent with each other.
//
//	driver goroutine                consumer goroutine
//	────────────────                ──────────────────
//	DriverNotification              Queue.Pop
//	    │ CopyNotification              │
//	    ▼                               ▼
//	Queue.Push ──── wake ────────▶  Dispatcher.Dispatch ──▶ Cache
//	                                    │
//	                                    ▼
//	                                EventSink.HandleEvent
//	                                    ▲
//	host goroutines ── Session.Do ──▶ Executor ──▶ Driver
//
// # Usage
//
//	session, err := zwave.NewSession(zwave.SessionConfig{
//	    Driver:  drv,
//	    Options: zwave.DefaultOptions(),
//	    Sink:    sinks,
//	    Logger:  logger,
//	})
//	if err := session.Connect("/dev/ttyACM0"); err != nil { ... }
//	go session.Run(ctx)
//
//	err = session.Do(ctx, func(ex *zwave.Executor) error {
//	    return ex.SetLevel(5, 40)
//	})
//
// Only one Session may be connected per process. A session that has been
// disconnected cannot be reconnected; build a new one.
package zwave
