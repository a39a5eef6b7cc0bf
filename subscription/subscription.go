// Subscription Fabric
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

// Package subscription implements the stale-coalescing, latest-wins
// delivery fabric: one Subscription per streaming connection, each
// running its own delivery goroutine that skips intermediate states
// rather than queuing them.
package subscription

import (
	"sync"

	"github.com/google/uuid"

	"github.com/chillymango/elo-calculator"
	"github.com/chillymango/elo-calculator/registry"
)

// deadAfter is the number of consecutive send failures after which a
// subscription is considered dead and unsubscribed.
const deadAfter = 3

// Sender delivers one outbound snapshot. Implementations (the
// gateway's websocket wrapper, or a test double) return an error on
// any failure to write.
type Sender interface {
	Send(snap *cube.Snapshot) error
}

// Subscription binds one Sender to one game id.
type Subscription struct {
	ID     uuid.UUID
	GameID uuid.UUID

	conn  Sender
	reg   *registry.Registry
	stale chan struct{}
	done  chan struct{}
	once  sync.Once

	failures int
}

func newSubscription(gameID uuid.UUID, conn Sender, reg *registry.Registry) *Subscription {
	s := &Subscription{
		ID:     cube.NewID(),
		GameID: gameID,
		conn:   conn,
		reg:    reg,
		stale:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	// The flag starts set so the delivery loop's first pass always
	// sends the current snapshot (P9), even before any game change.
	s.stale <- struct{}{}
	return s
}

// markStale flips the edge-triggered flag. A send already in flight,
// or a flag already set by an earlier unconsumed change, coalesces
// with this one: the channel buffer holds exactly one pending wakeup.
func (s *Subscription) markStale() {
	select {
	case s.stale <- struct{}{}:
	default:
	}
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// run is the dedicated delivery loop. It is the only place that reads
// s.stale and the only place that calls conn.Send, so deliveries for
// this subscription are strictly ordered.
func (s *Subscription) run(f *Fabric) {
	for {
		select {
		case <-s.done:
			return
		case <-s.stale:
			snap, ok := s.reg.Snapshot(s.GameID)
			if !ok {
				continue
			}
			if err := s.conn.Send(snap); err != nil {
				s.failures++
				cube.Debug.Printf("subscription %s send failed (%d/%d): %v", s.ID, s.failures, deadAfter, err)
				if s.failures >= deadAfter {
					f.Unsubscribe(s)
					return
				}
				continue
			}
			s.failures = 0
		}
	}
}

// Fabric indexes every live Subscription by game id and registers
// itself as a registry.Observer, so every committed mutation marks
// the right subscriptions stale.
type Fabric struct {
	mu     sync.Mutex
	byGame map[uuid.UUID]map[uuid.UUID]*Subscription
	reg    *registry.Registry
}

// New builds a Fabric wired to reg's change notifications.
func New(reg *registry.Registry) *Fabric {
	f := &Fabric{
		byGame: make(map[uuid.UUID]map[uuid.UUID]*Subscription),
		reg:    reg,
	}
	reg.Subscribe(f.onGameChange)
	return f
}

func (f *Fabric) onGameChange(g *cube.Game) {
	f.mu.Lock()
	subs := f.byGame[g.ID]
	list := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		list = append(list, s)
	}
	f.mu.Unlock()

	for _, s := range list {
		s.markStale()
	}
}

// Subscribe creates and starts a subscription for gameID, delivering
// to conn. The caller owns calling Unsubscribe on disconnect.
func (f *Fabric) Subscribe(gameID uuid.UUID, conn Sender) *Subscription {
	s := newSubscription(gameID, conn, f.reg)
	f.mu.Lock()
	if f.byGame[gameID] == nil {
		f.byGame[gameID] = make(map[uuid.UUID]*Subscription)
	}
	f.byGame[gameID][s.ID] = s
	f.mu.Unlock()

	go s.run(f)
	return s
}

// Unsubscribe removes s from the index and cancels its delivery
// loop. It is safe to call more than once and safe to call from
// within the delivery loop itself (the dead-subscription path).
func (f *Fabric) Unsubscribe(s *Subscription) {
	f.mu.Lock()
	if m, ok := f.byGame[s.GameID]; ok {
		delete(m, s.ID)
		if len(m) == 0 {
			delete(f.byGame, s.GameID)
		}
	}
	f.mu.Unlock()
	s.stop()
}

// Count reports how many subscriptions currently observe gameID,
// mainly useful for tests and operational introspection.
func (f *Fabric) Count(gameID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byGame[gameID])
}
