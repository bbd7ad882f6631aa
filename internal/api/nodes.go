package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	zwbridge "github.com/nerrad567/gray-logic-zwave/internal/bridges/zwave"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// commandRequest is the body of POST /nodes/{id}/commands and
// POST /controller/{action}.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// commandResponse confirms an executed command.
type commandResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Command string `json:"command"`
	NodeID  uint8  `json:"node_id,omitempty"`
}

// handleListNodes returns every cached node with its values.
func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := s.session.Cache().Nodes()
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// handleGetNode returns one cached node.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := nodeParam(w, r)
	if !ok {
		return
	}
	node, found := s.session.Cache().FindNode(nodeID)
	if !found {
		writeNotFound(w, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// handleNodeCommand runs a node command. Controller commands are rejected
// here; they have their own route.
func (s *Server) handleNodeCommand(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := nodeParam(w, r)
	if !ok {
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}
	if zw.IsControllerCommand(req.Command) {
		writeBadRequest(w, "controller commands use /controller/{action}")
		return
	}

	s.runCommand(w, r, zw.Command{Name: req.Command, NodeID: nodeID, Parameters: req.Parameters})
}

// handleControllerCommand runs hard_reset or soft_reset.
func (s *Server) handleControllerCommand(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if !zw.IsControllerCommand(action) {
		writeError(w, http.StatusBadRequest, ErrCodeUnknownCommand, "unknown controller action: "+action)
		return
	}
	s.runCommand(w, r, zw.Command{Name: action})
}

func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, cmd zw.Command) {
	cmd.ID = uuid.NewString()
	id := cmd.ID
	subject, _ := r.Context().Value(ctxKeySubject).(string) //nolint:errcheck // set by authMiddleware

	if err := s.runner.Run(r.Context(), commandSource, cmd); err != nil {
		s.logger.Warn("api command failed",
			"id", id,
			"command", cmd.Name,
			"node_id", cmd.NodeID,
			"subject", subject,
			"error", err,
		)
		writeCommandError(w, err)
		return
	}

	s.logger.Info("api command executed",
		"id", id,
		"command", cmd.Name,
		"node_id", cmd.NodeID,
		"subject", subject,
	)
	writeJSON(w, http.StatusOK, commandResponse{
		ID:      id,
		Status:  "ok",
		Command: cmd.Name,
		NodeID:  cmd.NodeID,
	})
}

// nodeParam parses {id}, writing a 400 when it is not a node address.
func nodeParam(w http.ResponseWriter, r *http.Request) (uint8, bool) {
	nodeID, err := zwbridge.ParseNodeAddress(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid node id")
		return 0, false
	}
	return nodeID, true
}
