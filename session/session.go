// Session Manager
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

// Package session mints and validates session tokens and tracks one
// active session per user.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/chillymango/elo-calculator"
)

// Session is the server-side record backing a minted token. It
// exists for operational introspection; validity of a token itself
// never requires looking a Session up.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	ExpiresAt time.Time
}

// Manager issues and validates tokens, and keeps exactly one Session
// per user id: a later login displaces an earlier one.
type Manager struct {
	mu     sync.Mutex
	secret []byte
	ttl    time.Duration
	byID   map[uuid.UUID]*Session
	byUser map[uuid.UUID]*Session
}

// New builds a Manager. secret signs and verifies every token; ttl is
// the session lifetime (cmd/server passes ELO_CALCULATOR_EXPIRY_MINUTES,
// 1440 minutes = 24h by default).
func New(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		byID:   make(map[uuid.UUID]*Session),
		byUser: make(map[uuid.UUID]*Session),
	}
}

// Login creates a session for userID (a fresh id is minted if nil)
// and returns it along with a signed token carrying that id and its
// expiry. Any earlier session for the same user is replaced.
func (m *Manager) Login(userID *uuid.UUID, name string) (*Session, string, error) {
	uid := uuid.New()
	if userID != nil {
		uid = *userID
	}
	sess := &Session{
		ID:        cube.NewID(),
		UserID:    uid,
		Name:      name,
		ExpiresAt: time.Now().Add(m.ttl),
	}

	claims := jwt.MapClaims{
		"user_id": uid.String(),
		"exp":     sess.ExpiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	m.mu.Lock()
	if old, ok := m.byUser[uid]; ok {
		delete(m.byID, old.ID)
	}
	m.byID[sess.ID] = sess
	m.byUser[uid] = sess
	m.mu.Unlock()

	return sess, signed, nil
}

// Validate verifies a token's signature and expiry and returns the
// user id it carries.
func (m *Manager) Validate(raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, cube.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, cube.ErrUnauthorized
	}
	sub, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, cube.ErrUnauthorized
	}
	return uid, nil
}

// ByUser returns the current session for a user, if any.
func (m *Manager) ByUser(userID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[userID]
	return s, ok
}

// ByID returns a session by its own id, if any.
func (m *Manager) ByID(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	return s, ok
}
