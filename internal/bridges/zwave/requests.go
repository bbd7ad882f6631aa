package zwave

import (
	"encoding/json"
	"fmt"
	"time"
)

// Request actions.
const (
	ActionListNodes = "list_nodes"
	ActionGetNode   = "get_node"
	ActionStats     = "stats"
)

// handleRequest answers a request from Core on its response topic.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage

	switch req.Action {
	case ActionListNodes:
		resp = b.handleListNodes(req)
	case ActionGetNode:
		resp = b.handleGetNode(req)
	case ActionStats:
		resp = b.handleStats(req)
	default:
		resp = errorResponse(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}

	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

func (b *Bridge) handleListNodes(req RequestMessage) ResponseMessage {
	nodes := b.session.Cache().Nodes()
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"nodes": nodes,
			"count": len(nodes),
		},
	}
}

func (b *Bridge) handleGetNode(req RequestMessage) ResponseMessage {
	if req.NodeID == 0 {
		return errorResponse(req, ErrCodeInvalidParameters, "node_id is required")
	}

	node, ok := b.session.Cache().FindNode(req.NodeID)
	if !ok {
		return errorResponse(req, ErrCodeNotConfigured, fmt.Sprintf("node %d not found", req.NodeID))
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"node":  node,
			"state": b.NodeState(req.NodeID),
		},
	}
}

func (b *Bridge) handleStats(req RequestMessage) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"session": b.session.Stats(),
			"bridge":  b.GetMetrics(),
		},
	}
}

// NodeState returns the last published state of a node. It is empty for
// unknown nodes.
func (b *Bridge) NodeState(nodeID uint8) map[string]any {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	return renderState(b.stateCache[nodeID])
}

func errorResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     &AckError{Code: code, Message: message},
	}
}
