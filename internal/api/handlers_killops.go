package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/killteam-scorer/internal/match"
	"github.com/MJE43/killteam-scorer/internal/scripting"
)

func killOpsResponse(t *match.KillOpsTable) KillOpsResponse {
	sizes := t.Sizes()
	rows := make(map[int]map[int]int, len(sizes))
	for _, size := range sizes {
		rows[size], _ = t.Row(size)
	}
	return KillOpsResponse{Sizes: sizes, Rows: rows}
}

func (s *Server) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, name, name+" must be an integer")
		return 0, false
	}
	return v, true
}

// GET /api/v1/matches/{matchID}/killops
func (s *Server) handleGetKillOps(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.writeJSON(w, http.StatusOK, killOpsResponse(sess.match.KillOpsTable()))
}

// PUT /api/v1/matches/{matchID}/killops/{size}
func (s *Server) handleSetKillOpsRow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	size, ok := s.intParam(w, r, "size")
	if !ok {
		return
	}
	var req KillOpsRowRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.match.SetKillOpsRow(size, req.Row); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.record(r, sess, "set_killops_row", "", map[string]interface{}{"size": size, "cells": len(req.Row)})
	s.writeJSON(w, http.StatusOK, killOpsResponse(sess.match.KillOpsTable()))
}

// PUT /api/v1/matches/{matchID}/killops/{size}/{kills}
func (s *Server) handleSetKillOpsCell(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	size, ok := s.intParam(w, r, "size")
	if !ok {
		return
	}
	kills, ok := s.intParam(w, r, "kills")
	if !ok {
		return
	}
	var req KillOpsCellRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.match.SetKillOpsCell(size, kills, req.Points); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.record(r, sess, "set_killops_cell", "", map[string]interface{}{"size": size, "kills": kills, "points": req.Points})
	s.writeJSON(w, http.StatusOK, killOpsResponse(sess.match.KillOpsTable()))
}

// DELETE /api/v1/matches/{matchID}/killops/{size}
func (s *Server) handleDeleteKillOpsRow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	size, ok := s.intParam(w, r, "size")
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.match.DeleteKillOpsRow(size) {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeValidation, "no kill ops row for that size").
			WithContext("size", size).
			Build())
		return
	}
	s.record(r, sess, "delete_killops_row", "", map[string]interface{}{"size": size})
	s.writeJSON(w, http.StatusOK, killOpsResponse(sess.match.KillOpsTable()))
}

// POST /api/v1/matches/{matchID}/killops/{size}/formula
//
// The formula is evaluated outside the session lock; only the resulting row
// is applied under it.
func (s *Server) handleKillOpsFormula(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	size, ok := s.intParam(w, r, "size")
	if !ok {
		return
	}
	var req FormulaRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Expr == "" {
		s.errorHandler.HandleValidationError(w, r, "expr", "expr is required")
		return
	}
	if err := scripting.Validate(req.Expr); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	row, err := s.formulas.Row(req.Expr, size)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.match.SetKillOpsRow(size, row); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.record(r, sess, "killops_formula", "", map[string]interface{}{"size": size, "expr": req.Expr})
	s.writeJSON(w, http.StatusOK, killOpsResponse(sess.match.KillOpsTable()))
}
