package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jpalmerr/rankboard/internal/feed"
	"github.com/jpalmerr/rankboard/internal/rank"
	"github.com/jpalmerr/rankboard/internal/reconcile"
)

// Entry is one row of a [Leaderboard].
type Entry struct {
	Rank    int     `json:"rank"`
	Badge   string  `json:"badge,omitempty"`
	Name    string  `json:"name"`
	Logo    string  `json:"logo"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// Leaderboard is the ranking of one series as served to clients.
//
// History is only populated on the WebSocket stream, where it carries the
// ranked series of every listed entity for charting.
type Leaderboard struct {
	Seq     uint64               `json:"seq"`
	Series  string               `json:"series"`
	Keys    []string             `json:"keys"`
	Top     *Entry               `json:"top"`
	Entries []Entry              `json:"entries"`
	History map[string][]float64 `json:"history,omitempty"`
}

// errorResponse is the body of every non-2xx JSON answer.
type errorResponse struct {
	Error string `json:"error"`
}

// setRequest is the body of PUT /api/entities/{name}.
type setRequest struct {
	Value *float64 `json:"value"`
}

// badge returns the medal for the first three ranks.
func badge(rank int) string {
	switch rank {
	case 1:
		return "gold"
	case 2:
		return "silver"
	case 3:
		return "bronze"
	default:
		return ""
	}
}

// leaderboard ranks series key on demand and builds its view.
func (s *Server) leaderboard(key string, limit int, withHistory bool) (Leaderboard, error) {
	res, err := s.board.Current(key)
	if err != nil {
		return Leaderboard{}, err
	}
	if key == "" {
		key = s.board.RankingKey()
	}
	return s.buildLeaderboard(s.board.Latest().Seq, key, res, limit, withHistory), nil
}

// buildLeaderboard converts a ranking into the client view, limited to
// limit entries.
func (s *Server) buildLeaderboard(seq uint64, key string, res rank.Result, limit int, withHistory bool) Leaderboard {
	nodes := rank.TopK(res, limit)
	lb := Leaderboard{
		Seq:     seq,
		Series:  key,
		Keys:    s.board.Keys(),
		Entries: make([]Entry, 0, len(nodes)),
	}
	for i, n := range nodes {
		lb.Entries = append(lb.Entries, Entry{
			Rank:    i + 1,
			Badge:   badge(i + 1),
			Name:    n.Name,
			Logo:    n.Logo,
			Value:   n.Value,
			Display: s.cfg.Format(n.Value),
		})
	}
	if len(lb.Entries) > 0 {
		top := lb.Entries[0]
		lb.Top = &top
	}

	if withHistory {
		lb.History = make(map[string][]float64, len(lb.Entries))
		listed := make(map[string]struct{}, len(lb.Entries))
		for _, e := range lb.Entries {
			listed[e.Name] = struct{}{}
		}
		for _, e := range s.board.Entities() {
			if _, ok := listed[e.Name]; ok {
				lb.History[e.Name] = e.Series[key]
			}
		}
	}

	return lb
}

// handleLeaderboard serves GET /api/leaderboard?series=&limit=.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.TopN
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	lb, err := s.leaderboard(r.URL.Query().Get("series"), limit, false)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, lb)
}

// handleEntities serves every entity in insertion order, in record form.
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities := s.board.Entities()
	records := make([]reconcile.Record, 0, len(entities))
	for _, e := range entities {
		records = append(records, reconcile.Record{Name: e.Name, Logo: e.Logo, Series: e.Series, Labels: e.Labels})
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handleEntity serves a single entity.
func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	e, ok := s.board.Entity(r.PathValue("name"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	s.writeJSON(w, http.StatusOK, reconcile.Record{Name: e.Name, Logo: e.Logo, Series: e.Series, Labels: e.Labels})
}

// handleSnapshot applies a complete batch posted by a producer.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var batch []reconcile.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&batch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid snapshot: "+err.Error())
		return
	}
	if batch == nil {
		s.writeError(w, http.StatusBadRequest, "invalid snapshot: expected a JSON array")
		return
	}

	frame, err := s.board.Apply(r.Context(), batch)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, frame)
}

// handleAddEntity forwards an add command to the producer.
func (s *Server) handleAddEntity(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Commander == nil {
		s.writeError(w, http.StatusNotImplemented, "producer does not accept commands")
		return
	}

	var rec reconcile.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid entity: "+err.Error())
		return
	}

	if err := s.cfg.Commander.Add(r.Context(), rec); err != nil {
		s.writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleSetEntity forwards a manual value to the producer.
func (s *Server) handleSetEntity(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Commander == nil {
		s.writeError(w, http.StatusNotImplemented, "producer does not accept commands")
		return
	}

	var req setRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil || req.Value == nil {
		s.writeError(w, http.StatusBadRequest, `body must be {"value": <number>}`)
		return
	}

	if err := s.cfg.Commander.Set(r.Context(), r.PathValue("name"), *req.Value); err != nil {
		s.writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveEntity forwards a remove command to the producer.
func (s *Server) handleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Commander == nil {
		s.writeError(w, http.StatusNotImplemented, "producer does not accept commands")
		return
	}

	if err := s.cfg.Commander.Remove(r.Context(), r.PathValue("name")); err != nil {
		s.writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeCommandError maps producer errors to status codes.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feed.ErrDuplicate):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, feed.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, feed.ErrInvalidValue), errors.Is(err, reconcile.ErrMissingName):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("command failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "command failed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
