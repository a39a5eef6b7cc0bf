// HTTP surface
//
// Copyright (c) 2021, 2022  Philip Kaludercic
//
// This file is part of go-kgp.
//
// go-kgp is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-kgp is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-kgp. If not, see
// <http://www.gnu.org/licenses/>

// Package httpapi exposes both the live-state HTTP surface (login,
// session, game lookup) and the external collaborators' conventional
// CRUD surface (players, matches, summary), plus the admin token
// endpoint, behind one chi router.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/chillymango/elo-calculator"
	"github.com/chillymango/elo-calculator/elo"
	"github.com/chillymango/elo-calculator/gateway"
	"github.com/chillymango/elo-calculator/registry"
	"github.com/chillymango/elo-calculator/session"
	"github.com/chillymango/elo-calculator/store"
)

type ctxKey int

const userIDKey ctxKey = iota

// Server bundles every collaborator the HTTP surface needs.
type Server struct {
	Sessions      *session.Manager
	Registry      *registry.Registry
	Gateway       *gateway.Gateway
	Store         *store.Store
	Tabulator     *elo.Tabulator
	AdminUser     string
	AdminPassword string
	StartingElo   int
}

// Router builds the complete chi.Router for the process.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/login", s.login)
	r.Post("/token", s.adminToken)

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/api/session", s.checkSession)
		r.Get("/api/game", s.listGames)
		r.Post("/api/game", s.createGame)
		r.Get("/api/game/code", s.gameByCode)
		r.Get("/api/game/{id}", s.gameByID)
	})

	r.Get("/api/game/{id}/ws", s.serveWS)

	r.Post("/api/add_player", s.addPlayer)
	r.Get("/api/players", s.listPlayers)
	r.Post("/api/match", s.recordMatch)
	r.Post("/api/undo", s.undoMatch)
	r.Get("/api/summary", s.summary)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// statusFor maps a domain error kind to an HTTP status per §7.
func statusFor(err error) int {
	switch {
	case cube.As(err, cube.KindUnauthorized):
		return http.StatusUnauthorized
	case cube.As(err, cube.KindForbidden):
		return http.StatusForbidden
	case cube.As(err, cube.KindNotAPlayer):
		return http.StatusForbidden
	case cube.As(err, cube.KindUnknownGame):
		return http.StatusNotFound
	case cube.As(err, cube.KindNameConflict):
		return http.StatusInternalServerError // kept for compatibility, see §7
	case cube.As(err, cube.KindInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

// requireBearer extracts and validates the Authorization header,
// stashing the resolved user id on the request context.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, err := s.Sessions.Validate(token)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		r = r.WithContext(contextWithUser(r.Context(), userID))
		next.ServeHTTP(w, r)
	})
}

// --- live-state handlers ---

type loginRequest struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Name   string      `json:"name"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed body")
		return
	}
	sess, token, err := s.Sessions.Login(req.UserID, req.Name)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "could not mint session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":    http.StatusOK,
		"message": "ok",
		"session": sess.ID,
		"token":   token,
	})
}

func (s *Server) checkSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"game_ids": s.Registry.AllIDs()})
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	hostID := userFrom(r.Context())
	g, err := s.Registry.Create(hostID)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"code": g.JoinCode, "game_id": g.ID})
}

func (s *Server) gameByCode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	id, ok := s.Registry.ByCode(code)
	if !ok {
		writeErr(w, http.StatusNotFound, "no such code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"game_id": id})
}

func (s *Server) gameByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusNotFound, "malformed id")
		return
	}
	snap, ok := s.Registry.Snapshot(id)
	if !ok {
		writeErr(w, http.StatusNotFound, "no such game")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusNotFound, "malformed id")
		return
	}
	s.Gateway.ServeGame(w, r, id, r.URL.Query().Get("token"))
}

// --- admin ---

func (s *Server) adminToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed form")
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")
	if username != s.AdminUser || password != s.AdminPassword {
		writeErr(w, http.StatusUnauthorized, "bad credentials")
		return
	}
	adminID := uuid.Nil
	_, token, err := s.Sessions.Login(&adminID, s.AdminUser)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "could not mint token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

// --- external collaborators (record store) ---

type addPlayerRequest struct {
	Name string `json:"name"`
}

func (s *Server) addPlayer(w http.ResponseWriter, r *http.Request) {
	var req addPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed body")
		return
	}
	p, err := s.Store.AddPlayer(r.Context(), req.Name, s.StartingElo)
	if err != nil {
		if cube.As(err, cube.KindNameConflict) {
			writeErr(w, http.StatusInternalServerError, "Player already exists")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.Store.Players(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, players)
}

type matchRequest struct {
	Winner string `json:"winner"`
	Loser  string `json:"loser"`
}

func (s *Server) recordMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed body")
		return
	}
	winner, err := s.Store.PlayerByName(r.Context(), req.Winner)
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown winner")
		return
	}
	loser, err := s.Store.PlayerByName(r.Context(), req.Loser)
	if err != nil {
		writeErr(w, http.StatusNotFound, "unknown loser")
		return
	}

	newWinner, newLoser := s.Tabulator.Update(winner.Elo, loser.Elo)
	if err := s.Store.SetElo(r.Context(), winner.ID, newWinner); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.Store.SetElo(r.Context(), loser.ID, newLoser); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	m, err := s.Store.RecordMatch(r.Context(), winner.ID, loser.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) undoMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.Store.LastMatch(r.Context())
	if err != nil {
		writeErr(w, http.StatusNotFound, "no match to undo")
		return
	}
	if err := s.Store.UndoMatch(r.Context(), m.ID); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	players, err := s.Store.Summary(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, players)
}
