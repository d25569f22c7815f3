package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MJE43/killteam-scorer/internal/match"
	"github.com/MJE43/killteam-scorer/internal/store"
)

const csvChunk = 500

// secretDocumentKeys are withheld from unrevealed documents unless the
// caller asks for them with include_secrets=true.
var secretDocumentKeys = []string{"tac_op_choice", "primary_choice"}

// withholdSecrets drops the committed choices from doc until the match has
// been revealed. Importing the result keeps the destination's own choices.
func withholdSecrets(r *http.Request, doc []byte) ([]byte, error) {
	if r.URL.Query().Get("include_secrets") == "true" {
		return doc, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	var revealed bool
	if raw, ok := fields["revealed"]; ok {
		if err := json.Unmarshal(raw, &revealed); err != nil {
			return nil, fmt.Errorf("failed to read revealed flag: %w", err)
		}
	}
	if revealed {
		return doc, nil
	}
	for _, k := range secretDocumentKeys {
		delete(fields, k)
	}
	return json.MarshalIndent(fields, "", "  ")
}

// GET /api/v1/matches/{matchID}/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	body, err := sess.match.ExportJSON()
	if err == nil {
		body, err = withholdSecrets(r, body)
	}
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="match-%s.json"`, sess.ID))
	s.writeBody(w, http.StatusOK, body)
}

// POST /api/v1/matches/{matchID}/import
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "could not read document: "+err.Error())
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.match.ImportJSON(body); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.record(r, sess, "import", "", map[string]interface{}{
		"bytes": len(body),
		"turn":  sess.match.Turn(),
	})
	s.writeJSON(w, http.StatusOK, sess.match.View())
}

// requireDB writes a 503 when the server runs without a store.
func (s *Server) requireDB(w http.ResponseWriter, r *http.Request) bool {
	if s.db == nil {
		s.errorHandler.HandleError(w, r, errNoStorage)
		return false
	}
	return true
}

// GET /api/v1/matches/{matchID}/events
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok || !s.requireDB(w, r) {
		return
	}
	limit := qInt(r, "limit", 100)
	offset := qInt(r, "offset", 0)

	events, err := s.db.ListEvents(r.Context(), sess.journalID, limit, offset)
	if err != nil {
		s.errorHandler.HandleError(w, r, storageErr(err))
		return
	}
	s.writeJSON(w, http.StatusOK, EventsResponse{Events: events, Limit: limit, Offset: offset})
}

// GET /api/v1/matches/{matchID}/events/tail?since_id=
func (s *Server) handleTailEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok || !s.requireDB(w, r) {
		return
	}
	sinceID := qInt64(r, "since_id", 0)
	limit := qInt(r, "limit", 100)

	events, err := s.db.TailEvents(r.Context(), sess.journalID, sinceID, limit)
	if err != nil {
		s.errorHandler.HandleError(w, r, storageErr(err))
		return
	}
	lastID := sinceID
	if len(events) > 0 {
		lastID = events[len(events)-1].ID
	}
	s.writeJSON(w, http.StatusOK, TailResponse{Events: events, LastID: lastID})
}

// GET /api/v1/matches/{matchID}/events.csv
func (s *Server) handleExportEventsCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok || !s.requireDB(w, r) {
		return
	}

	// Collect first so a storage error can still be reported as JSON.
	var events []store.MatchEvent
	var lastID int64
	for {
		chunk, err := s.db.TailEvents(r.Context(), sess.journalID, lastID, csvChunk)
		if err != nil {
			s.errorHandler.HandleError(w, r, storageErr(err))
			return
		}
		if len(chunk) == 0 {
			break
		}
		events = append(events, chunk...)
		lastID = chunk[len(chunk)-1].ID
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="match-%s-events.csv"`, sess.ID))
	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "created_at", "action", "side", "detail"})
	for _, ev := range events {
		cw.Write([]string{
			strconv.FormatInt(ev.ID, 10),
			ev.CreatedAt.UTC().Format(time.RFC3339Nano),
			ev.Action,
			ev.Side,
			ev.Detail,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Printf("csv_write_failed request_id=%s match_id=%s err=%v", middleware.GetReqID(r.Context()), sess.ID, err)
	}
}

// POST /api/v1/matches/{matchID}/save
//
// The first save inserts a record; later saves of the same live match
// overwrite it.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok || !s.requireDB(w, r) {
		return
	}
	var req SaveRequest
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	doc, err := sess.match.ExportJSON()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	label := req.Label
	if label == "" {
		label = sessionLabel(sess.match)
	}
	saved := &store.SavedMatch{
		ID:       sess.savedID,
		Label:    label,
		Turn:     sess.match.Turn(),
		Revealed:  sess.match.Concluded(),
		Document:  doc,
		JournalID: sess.journalID,
	}

	status := http.StatusOK
	if saved.ID == uuid.Nil {
		err = s.db.SaveMatch(r.Context(), saved)
		status = http.StatusCreated
	} else {
		err = s.db.UpdateMatch(r.Context(), saved)
		if errors.Is(err, store.ErrNotFound) {
			saved.ID = uuid.Nil
			err = s.db.SaveMatch(r.Context(), saved)
			status = http.StatusCreated
		}
	}
	if err != nil {
		s.errorHandler.HandleError(w, r, storageErr(err))
		return
	}
	sess.savedID = saved.ID

	s.record(r, sess, "save", "", map[string]interface{}{"saved_id": saved.ID})
	saved.Document = nil
	s.writeJSON(w, status, saved)
}

// GET /api/v1/saved
func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	list, err := s.db.ListMatches(r.Context(), store.MatchesQuery{
		Page:    qInt(r, "page", 1),
		PerPage: qInt(r, "perPage", 50),
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, storageErr(err))
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) lookupSaved(w http.ResponseWriter, r *http.Request) (*store.SavedMatch, bool) {
	if !s.requireDB(w, r) {
		return nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "savedID"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "savedID", "saved match id must be a UUID")
		return nil, false
	}
	saved, err := s.db.GetMatch(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, storageErr(err))
		return nil, false
	}
	return saved, true
}

// GET /api/v1/saved/{savedID}
func (s *Server) handleGetSaved(w http.ResponseWriter, r *http.Request) {
	saved, ok := s.lookupSaved(w, r)
	if !ok {
		return
	}
	doc, err := withholdSecrets(r, saved.Document)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	saved.Document = doc
	s.writeJSON(w, http.StatusOK, saved)
}

// POST /api/v1/saved/{savedID}/load
//
// The new live match continues the saved match's journal.
func (s *Server) handleLoadSaved(w http.ResponseWriter, r *http.Request) {
	saved, ok := s.lookupSaved(w, r)
	if !ok {
		return
	}

	m := match.NewMatch(s.opts.MatchOptions)
	if err := m.ImportJSON(saved.Document); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	sess, err := s.sessions.CreateWithJournal(m, saved.JournalID)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.savedID = saved.ID
	s.record(r, sess, "load", "", map[string]interface{}{"saved_id": saved.ID})
	s.writeJSON(w, http.StatusCreated, SessionResponse{ID: sess.ID, Options: m.Options(), View: m.View()})
}

// DELETE /api/v1/saved/{savedID}
func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "savedID"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "savedID", "saved match id must be a UUID")
		return
	}
	if err := s.db.DeleteMatch(r.Context(), id); err != nil {
		s.errorHandler.HandleError(w, r, storageErr(err))
		return
	}
	s.audit.LogMatchAction(middleware.GetReqID(r.Context()), id, "delete_saved", "", "ok", nil)
	w.WriteHeader(http.StatusNoContent)
}

func qInt64(r *http.Request, key string, def int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func qInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
