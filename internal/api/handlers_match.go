package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MJE43/killteam-scorer/internal/match"
	"github.com/MJE43/killteam-scorer/internal/store"
)

const idempotencyHeader = "Idempotency-Key"

// lookupSession resolves {matchID}. On failure the response is written.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "matchID", "match id must be a UUID")
		return nil, false
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) parseSide(w http.ResponseWriter, r *http.Request) (match.Side, bool) {
	side, err := match.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return "", false
	}
	return side, true
}

// record writes the audit line and appends to the match journal. Journal
// failures are logged and never undo the engine operation.
func (s *Server) record(r *http.Request, sess *Session, action string, side match.Side, details map[string]interface{}) {
	sess.touch()
	requestID := middleware.GetReqID(r.Context())
	s.audit.LogMatchAction(requestID, sess.ID, action, string(side), "ok", details)

	if s.db == nil {
		return
	}
	ev := &store.MatchEvent{
		MatchID: sess.journalID,
		Action:  action,
		Side:    string(side),
		Detail:  formatDetails(details),
	}
	if err := s.db.AppendEvent(r.Context(), ev); err != nil {
		s.logger.Printf("journal_append_failed request_id=%s match_id=%s action=%s err=%v", requestID, sess.ID, action, err)
	}
}

// replay answers a repeated idempotency key from the session cache. The
// session lock must be held.
func (s *Server) replay(w http.ResponseWriter, r *http.Request, sess *Session, scope string) bool {
	key := r.Header.Get(idempotencyHeader)
	if key == "" {
		return false
	}
	cached, ok := sess.replays.get(scope + ":" + key)
	if !ok {
		return false
	}
	s.logger.Printf("idempotent_replay request_id=%s match_id=%s scope=%s", middleware.GetReqID(r.Context()), sess.ID, scope)
	w.Header().Set("Idempotent-Replay", "true")
	s.writeBody(w, cached.status, cached.body)
	return true
}

// respondIdempotent writes data and remembers it under the request's
// idempotency key, if any. The session lock must be held.
func (s *Server) respondIdempotent(w http.ResponseWriter, r *http.Request, sess *Session, scope string, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if key := r.Header.Get(idempotencyHeader); key != "" {
		sess.replays.put(scope+":"+key, cachedResponse{status: status, body: body})
	}
	s.writeBody(w, status, body)
}

// POST /api/v1/matches
func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
	}

	opts := s.opts.MatchOptions
	if req.StartingCP != nil {
		if *req.StartingCP < 0 {
			s.errorHandler.HandleValidationError(w, r, "starting_cp", "starting_cp must be >= 0")
			return
		}
		opts.StartingCP = *req.StartingCP
	}
	if req.FirstTurn != nil {
		if *req.FirstTurn != 0 && *req.FirstTurn != 1 {
			s.errorHandler.HandleValidationError(w, r, "first_turn", "first_turn must be 0 or 1")
			return
		}
		opts.FirstTurn = *req.FirstTurn
	}

	m := match.NewMatch(opts)
	if req.NameA != "" {
		m.SetName(match.SideA, req.NameA)
	}
	if req.NameB != "" {
		m.SetName(match.SideB, req.NameB)
	}

	sess, err := s.sessions.Create(m)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.record(r, sess, "create", "", map[string]interface{}{
		"starting_cp": opts.StartingCP,
		"first_turn":  opts.FirstTurn,
	})
	s.writeJSON(w, http.StatusCreated, SessionResponse{ID: sess.ID, Options: m.Options(), View: m.View()})
}

// GET /api/v1/matches
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, SessionsResponse{
		Matches: s.sessions.List(),
		Limit:   s.sessions.Limit(),
	})
}

// GET /api/v1/matches/{matchID}
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.writeJSON(w, http.StatusOK, SessionResponse{ID: sess.ID, Options: sess.match.Options(), View: sess.match.View()})
}

// DELETE /api/v1/matches/{matchID}
//
// A match that was never saved takes its journal with it. A saved match's
// journal stays with the saved record and goes when that record is deleted.
func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	s.sessions.Delete(sess.ID)

	sess.mu.Lock()
	saved := sess.savedID != uuid.Nil
	sess.mu.Unlock()

	requestID := middleware.GetReqID(r.Context())
	details := map[string]interface{}{"journal_kept": saved}
	if !saved && s.db != nil {
		n, err := s.db.DeleteEvents(r.Context(), sess.journalID)
		if err != nil {
			s.logger.Printf("journal_delete_failed request_id=%s match_id=%s err=%v", requestID, sess.ID, err)
		}
		details["events_deleted"] = n
	}
	s.audit.LogMatchAction(requestID, sess.ID, "delete", "", "ok", details)
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/matches/{matchID}/players/{side}
func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	side, ok := s.parseSide(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	view, _ := sess.match.Snapshot(side)
	s.writeJSON(w, http.StatusOK, view)
}

// PUT /api/v1/matches/{matchID}/players/{side}/name
func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	side, ok := s.parseSide(w, r)
	if !ok {
		return
	}
	var req NameRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.match.SetName(side, req.Name); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.record(r, sess, "set_name", side, map[string]interface{}{"name": req.Name})
	view, _ := sess.match.Snapshot(side)
	s.writeJSON(w, http.StatusOK, view)
}

// POST /api/v1/matches/{matchID}/players/{side}/fields
func (s *Server) handleAdjustField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	side, ok := s.parseSide(w, r)
	if !ok {
		return
	}
	var req FieldRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	field, err := match.ParseField(req.Field)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	res, err := sess.match.AdjustField(side, field, req.Value)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	details := map[string]interface{}{"field": field, "requested": req.Value, "stored": res.Value}
	if res.Warning != nil {
		details["clamped"] = res.Warning.String()
	}
	s.record(r, sess, "adjust_field", side, details)

	player, _ := sess.match.Snapshot(side)
	s.writeJSON(w, http.StatusOK, AdjustResponse{Result: res, Player: player})
}

// POST /api/v1/matches/{matchID}/players/{side}/cp
func (s *Server) handleAdjustCP(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	side, ok := s.parseSide(w, r)
	if !ok {
		return
	}
	var req CPRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	res, err := sess.match.AdjustCP(side, req.Delta)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.record(r, sess, "adjust_cp", side, map[string]interface{}{"delta": req.Delta, "cp": res.Value})

	player, _ := sess.match.Snapshot(side)
	s.writeJSON(w, http.StatusOK, AdjustResponse{Result: res, Player: player})
}

// PUT /api/v1/matches/{matchID}/players/{side}/cards/{index}
func (s *Server) handleSetCardUsed(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	side, ok := s.parseSide(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "index", "card index must be an integer")
		return
	}
	var req CardRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.match.SetCardUsed(side, index, req.Used); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.record(r, sess, "set_card_used", side, map[string]interface{}{"index": index, "used": req.Used})

	player, _ := sess.match.Snapshot(side)
	s.writeJSON(w, http.StatusOK, player)
}

// POST /api/v1/matches/{matchID}/initiative
func (s *Server) handleInitiative(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req InitiativeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if s.replay(w, r, sess, "initiative") {
		return
	}

	winner, err := match.ParseSide(req.Winner)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	card, err := sess.match.ApplyInitiative(winner)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.record(r, sess, "initiative", winner, map[string]interface{}{
		"turn": sess.match.Turn(),
		"card": card.Kind,
	})
	s.respondIdempotent(w, r, sess, "initiative", http.StatusOK, InitiativeResponse{Card: card, View: sess.match.View()})
}

// POST /api/v1/matches/{matchID}/turn/advance
func (s *Server) handleAdvanceTurn(w http.ResponseWriter, r *http.Request) {
	s.handleTurn(w, r, "advance_turn", (*match.Match).AdvanceTurn)
}

// POST /api/v1/matches/{matchID}/turn/retreat
func (s *Server) handleRetreatTurn(w http.ResponseWriter, r *http.Request) {
	s.handleTurn(w, r, "retreat_turn", (*match.Match).RetreatTurn)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request, action string, step func(*match.Match) int) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	turn := step(sess.match)
	s.record(r, sess, action, "", map[string]interface{}{"turn": turn})
	s.writeJSON(w, http.StatusOK, TurnResponse{
		Turn:      turn,
		Cap:       sess.match.Cap(),
		Concluded: sess.match.Concluded(),
	})
}

// PUT /api/v1/matches/{matchID}/secrets/{commitment}
func (s *Server) handleSetSecret(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	commitment, err := match.ParseCommitment(chi.URLParam(r, "commitment"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	var req SecretRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.match.SetSecret(commitment, req.Value); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	view, _ := sess.match.Secret(commitment)
	s.record(r, sess, "set_secret", "", map[string]interface{}{
		"commitment": commitment,
		"state":      view.State,
	})
	s.writeJSON(w, http.StatusOK, view)
}

// GET /api/v1/matches/{matchID}/secrets/{commitment}
func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	commitment, err := match.ParseCommitment(chi.URLParam(r, "commitment"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	view, _ := sess.match.Secret(commitment)
	s.writeJSON(w, http.StatusOK, view)
}

// POST /api/v1/matches/{matchID}/finalize
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if s.replay(w, r, sess, "finalize") {
		return
	}

	res := sess.match.Finalize()
	leader := string(res.Leader)
	if leader == "" {
		leader = "tie"
	}
	s.record(r, sess, "finalize", res.Leader, map[string]interface{}{
		"kill_ops_a": res.KillOps[match.SideA],
		"kill_ops_b": res.KillOps[match.SideB],
		"leader":     leader,
	})
	s.respondIdempotent(w, r, sess, "finalize", http.StatusOK, FinalizeResponse{Result: res, View: sess.match.View()})
}

// POST /api/v1/matches/{matchID}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.match.Reset()
	sess.replays = newReplayCache(idempotencyKeep)
	s.record(r, sess, "reset", "", nil)
	s.writeJSON(w, http.StatusOK, sess.match.View())
}

// GET /api/v1/catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, CatalogResponse{
		Missions:          match.MissionCatalog(),
		PrimaryCategories: match.PrimaryCategories(),
		CardKinds:         match.CardKinds(),
		Fields:            match.EditableFields(),
		Commitments:       match.Commitments(),
		MaxObjective:      match.MaxObjectivePoints,
		FinalTurn:         match.FinalTurn,
	})
}

func sessionLabel(m *match.Match) string {
	a, _ := m.Snapshot(match.SideA)
	b, _ := m.Snapshot(match.SideB)
	return fmt.Sprintf("%s vs %s", a.Name, b.Name)
}
