// Connection Gateway
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

// Package gateway accepts streaming connections, authenticates and
// authorizes them against a game, registers a subscription, and
// forwards inbound frames to the command dispatcher.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chillymango/elo-calculator"
	"github.com/chillymango/elo-calculator/dispatch"
	"github.com/chillymango/elo-calculator/registry"
	"github.com/chillymango/elo-calculator/session"
	"github.com/chillymango/elo-calculator/subscription"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// conn wraps a *websocket.Conn as a subscription.Sender. Writes are
// guarded by a mutex since the delivery goroutine and the connection
// handler both use the same underlying socket.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) Send(snap *cube.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(snap)
}

// Gateway wires the Session Manager, Game Registry, Subscription
// Fabric and Command Dispatcher together behind one HTTP handler.
type Gateway struct {
	Sessions *session.Manager
	Registry *registry.Registry
	Fabric   *subscription.Fabric
	Dispatch *dispatch.Dispatcher
}

// New builds a Gateway from its collaborators.
func New(sessions *session.Manager, reg *registry.Registry, fabric *subscription.Fabric, disp *dispatch.Dispatcher) *Gateway {
	return &Gateway{Sessions: sessions, Registry: reg, Fabric: fabric, Dispatch: disp}
}

// ServeGame is the streaming handler for
// /api/game/{id}/ws?token={jwt}. Callers wire it to their router with
// the path parameter already extracted into gameID.
func (gw *Gateway) ServeGame(w http.ResponseWriter, r *http.Request, gameID uuid.UUID, token string) {
	userID, err := gw.Sessions.Validate(token)
	if err != nil {
		closeBeforeUpgrade(w, r, "Invalid token")
		return
	}

	game, ok := gw.Registry.ByID(gameID)
	if !ok {
		closeBeforeUpgrade(w, r, "No game found with that uuid")
		return
	}

	role := resolveRole(game, userID)
	if role == cube.Forbidden {
		closeBeforeUpgrade(w, r, "No game found with that uuid")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cube.Debug.Printf("upgrade failed: %v", err)
		return
	}

	if role == cube.Host {
		gw.Registry.ArmHostConnect(gameID)
	}

	c := &conn{ws: ws}
	sub := gw.Fabric.Subscribe(gameID, c)
	defer gw.Fabric.Unsubscribe(sub)
	defer ws.Close()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var env dispatch.Envelope
		var body dispatch.Body
		if json.Unmarshal(raw, &env) == nil && json.Unmarshal(env.Body, &body) == nil && body.GameID != gameID {
			cube.Debug.Printf("dropping command for game %s on connection to game %s", body.GameID, gameID)
			continue
		}
		if snap := gw.Dispatch.Dispatch(raw, role, userID); snap != nil {
			_ = c.Send(snap)
		}
	}
}

// resolveRole assigns a Role per §4.5: host first, then either seat,
// else SPECTATOR.
func resolveRole(g *cube.Game, userID uuid.UUID) cube.Role {
	switch {
	case userID == g.HostID:
		return cube.Host
	case g.WhiteID != nil && *g.WhiteID == userID:
		return cube.Player
	case g.BlackID != nil && *g.BlackID == userID:
		return cube.Player
	default:
		return cube.Spectator
	}
}

// closeBeforeUpgrade completes the websocket handshake only far
// enough to send a close frame with code 1008 and a reason, matching
// the behavior of rejecting before any subscription is registered.
func closeBeforeUpgrade(w http.ResponseWriter, r *http.Request, reason string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, reason, http.StatusBadRequest)
		return
	}
	defer ws.Close()
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
