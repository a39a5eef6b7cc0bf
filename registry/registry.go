// Game Registry
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

// Package registry owns every live Game: its identity indexes, its
// join-code pool, the transactional scope that is the sole path for
// mutating a game, and the host-connect sentinel that reclaims an
// abandoned lobby.
package registry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chillymango/elo-calculator"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 4
	poolSize     = 10000
)

// Observer is notified, synchronously and from inside WithScope, of
// every game that completed a mutation. Implementations must not
// block: the subscription fabric's observer only flips stale flags.
type Observer func(g *cube.Game)

// Registry is safe for concurrent use. Unlike the single-event-loop
// model this design is translated from, Go handlers run on their own
// goroutines, so a mutex stands in for the "non-suspending critical
// section": it is held only across in-memory map and struct
// mutation, never across a channel send, a timer wait, or network
// I/O.
type Registry struct {
	mu        sync.Mutex
	games     map[uuid.UUID]*cube.Game
	byCode    map[string]uuid.UUID
	cache     map[uuid.UUID]*cube.Snapshot
	available []string
	observers []Observer
	sentinels map[uuid.UUID]chan struct{}
	timeout   time.Duration
	rng       *rand.Rand
}

// New constructs a Registry with its join-code pool pre-generated.
// timeout is the host-connect sentinel window (60s in production).
func New(timeout time.Duration) *Registry {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	r := &Registry{
		games:     make(map[uuid.UUID]*cube.Game),
		byCode:    make(map[string]uuid.UUID),
		cache:     make(map[uuid.UUID]*cube.Snapshot),
		sentinels: make(map[uuid.UUID]chan struct{}),
		timeout:   timeout,
		rng:       rng,
	}
	r.available = genCodes(rng, poolSize)
	return r
}

func genCodes(rng *rand.Rand, n int) []string {
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	buf := make([]byte, codeLength)
	for len(codes) < n {
		for i := range buf {
			buf[i] = codeAlphabet[rng.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// popCode draws one code without replacement, per I7.
func (r *Registry) popCode() (string, bool) {
	if len(r.available) == 0 {
		return "", false
	}
	i := r.rng.Intn(len(r.available))
	code := r.available[i]
	last := len(r.available) - 1
	r.available[i] = r.available[last]
	r.available = r.available[:last]
	return code, true
}

func (r *Registry) reclaimCode(code string) {
	if code == "" {
		return
	}
	r.available = append(r.available, code)
}

// Subscribe registers an observer invoked after every clean WithScope
// exit. Observers are never invoked after a rollback.
func (r *Registry) Subscribe(obs Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, obs)
	r.mu.Unlock()
}

// Create allocates a fresh game hosted by hostID, arms its sentinel,
// and returns it.
func (r *Registry) Create(hostID uuid.UUID) (*cube.Game, error) {
	r.mu.Lock()
	code, ok := r.popCode()
	if !ok {
		r.mu.Unlock()
		return nil, cube.ErrNoSlot
	}
	g := cube.NewGame(hostID, code)
	r.games[g.ID] = g
	r.byCode[code] = g.ID
	r.cache[g.ID] = g.ToSnapshot()
	fire := make(chan struct{}, 1)
	r.sentinels[g.ID] = fire
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	for _, obs := range observers {
		obs(g)
	}
	go r.runSentinel(g.ID, fire)
	return g, nil
}

func (r *Registry) runSentinel(id uuid.UUID, fire chan struct{}) {
	t := time.NewTimer(r.timeout)
	defer t.Stop()
	select {
	case <-fire:
		return
	case <-t.C:
		cube.Debug.Printf("sentinel firing for game %s", id)
		_ = r.WithScope(id, func(g *cube.Game) error { return g.Close() })
	}
}

// ArmHostConnect disarms the sentinel for id, as if the host had
// connected within the window. It is a no-op for an unknown or
// already-fired sentinel.
func (r *Registry) ArmHostConnect(id uuid.UUID) {
	r.mu.Lock()
	fire, ok := r.sentinels[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case fire <- struct{}{}:
	default:
	}
}

// ByID returns the live game, if any.
func (r *Registry) ByID(id uuid.UUID) (*cube.Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.games[id]
	return g, ok
}

// ByCode resolves a join-code to a game id.
func (r *Registry) ByCode(code string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCode[code]
	return id, ok
}

// AllIDs lists every live game id.
func (r *Registry) AllIDs() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns the cached, network-serializable view of a game.
// Readers (the Subscription Fabric, the HTTP surface) always go
// through this cache rather than reading the live Game directly, so
// a snapshot is only ever observed at a WithScope commit boundary.
func (r *Registry) Snapshot(id uuid.UUID) (*cube.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.cache[id]
	return s, ok
}

// WithScope is the sole path for mutating a game. f runs against the
// live *cube.Game; on a nil return the mutation commits (modified_at
// bumps, the snapshot cache refreshes, observers fire); on a non-nil
// return every field is rolled back to its pre-call value and no
// observer runs. A panic inside f is treated as an Internal error: it
// rolls back like any other failure, but additionally promotes the
// game to the ERROR phase, since a panic signals a programming fault
// rather than an expected domain rejection.
func (r *Registry) WithScope(id uuid.UUID, f func(g *cube.Game) error) (err error) {
	r.mu.Lock()
	g, ok := r.games[id]
	if !ok {
		r.mu.Unlock()
		return cube.ErrUnknownGame
	}
	snapshot := g.Copy()

	internal := false
	func() {
		defer func() {
			if p := recover(); p != nil {
				cube.Debug.Printf("recovered panic in scope for game %s: %v", id, p)
				internal = true
			}
		}()
		err = f(g)
	}()

	if internal {
		*g = *snapshot
		g.Fail()
		r.refreshLocked(g)
		r.mu.Unlock()
		return cube.ErrInternal
	}
	if err != nil {
		*g = *snapshot
		r.mu.Unlock()
		return err
	}

	g.ModifiedAt = time.Now()
	r.refreshLocked(g)
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	for _, obs := range observers {
		obs(g)
	}
	return nil
}

// refreshLocked updates the snapshot cache and, if the game just
// became terminal, reclaims its join code back into the pool. Caller
// must hold r.mu.
func (r *Registry) refreshLocked(g *cube.Game) {
	r.cache[g.ID] = g.ToSnapshot()
	if g.Phase != cube.Finished && g.Phase != cube.Error {
		return
	}
	if id, live := r.byCode[g.JoinCode]; live && id == g.ID {
		delete(r.byCode, g.JoinCode)
		r.reclaimCode(g.JoinCode)
	}
}
