// Package api implements the HTTP REST API and WebSocket event stream for the
// Z-Wave bridge.
//
// This package provides:
//   - Read endpoints for session status, the node cache and the event journal
//   - Command endpoints for nodes and the controller (JWT protected)
//   - WebSocket hub streaming every emitted event to subscribed clients
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The hub is a zwave.EventSink registered with the session's fan-out, so it
// sees events in emission order on the consumer goroutine. Broadcasting never
// blocks: a client whose buffer is full misses the event.
//
// Commands submitted over HTTP run through the same commands.Runner as MQTT
// commands, recorded with source "api".
//
// # Security
//
// Bearer tokens are issued by Gray Logic Core and only verified here (HS256,
// shared secret, optional issuer). WebSocket connections use single-use
// tickets obtained from POST /api/v1/ws/ticket so the token never appears in
// a URL.
//
// # Graceful Degradation
//
// The journal and metrics are optional. Without them the corresponding
// endpoints answer 503 and everything else keeps working.
package api
