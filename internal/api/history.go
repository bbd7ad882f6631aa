package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	zwbridge "github.com/nerrad567/gray-logic-zwave/internal/bridges/zwave"
	"github.com/nerrad567/gray-logic-zwave/internal/commands"
	"github.com/nerrad567/gray-logic-zwave/internal/journal"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
)

// pageQuery holds the filters shared by the journal endpoints.
type pageQuery struct {
	nodeID uint8
	since  time.Time
	until  time.Time
	limit  int
	offset int
}

func parsePageQuery(q url.Values) (pageQuery, error) {
	var p pageQuery
	var err error

	if v := q.Get("node_id"); v != "" {
		if p.nodeID, err = zwbridge.ParseNodeAddress(v); err != nil {
			return p, errors.New("invalid node_id")
		}
	}
	if p.since, err = parseTimeParam(q, "since"); err != nil {
		return p, err
	}
	if p.until, err = parseTimeParam(q, "until"); err != nil {
		return p, err
	}
	if p.limit, err = parseIntParam(q, "limit"); err != nil {
		return p, err
	}
	if p.offset, err = parseIntParam(q, "offset"); err != nil {
		return p, err
	}
	return p, nil
}

func parseTimeParam(q url.Values, key string) (time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: want RFC 3339", key)
	}
	return t, nil
}

func parseIntParam(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// handleListEvents returns journaled events, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal not enabled")
		return
	}
	q := r.URL.Query()
	page, err := parsePageQuery(q)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	events, err := s.journal.Events(r.Context(), journal.EventFilter{
		Type:   zw.EventType(q.Get("type")),
		NodeID: page.nodeID,
		Since:  page.since,
		Until:  page.until,
		Limit:  page.limit,
		Offset: page.offset,
	})
	if err != nil {
		s.logger.Error("listing events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleListCommands returns journaled commands, newest first.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal not enabled")
		return
	}
	q := r.URL.Query()
	page, err := parsePageQuery(q)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.journal.Commands(r.Context(), journal.CommandFilter{
		Source:  q.Get("source"),
		NodeID:  page.nodeID,
		Outcome: commands.Outcome(q.Get("outcome")),
		Since:   page.since,
		Until:   page.until,
		Limit:   page.limit,
		Offset:  page.offset,
	})
	if err != nil {
		s.logger.Error("listing commands failed", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": entries,
		"count":    len(entries),
	})
}
