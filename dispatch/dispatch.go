// Command Dispatcher
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

// Package dispatch routes an inbound command envelope to the
// operation it names, enforcing the per-type role allow-list before
// ever touching a game.
package dispatch

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/chillymango/elo-calculator"
	"github.com/chillymango/elo-calculator/registry"
)

// Type is the discriminant of a command envelope.
type Type string

const (
	GetGameState   Type = "get_game_state"
	BecomePlayer   Type = "become_player"
	PlayWhitePiece Type = "play_white_piece"
	PlayBlackPiece Type = "play_black_piece"
	Leave          Type = "leave"
	Forfeit        Type = "forfeit"
	StartGame      Type = "start_game"
	KickPlayer     Type = "kick_player"
	CloseGame      Type = "close_game"
	SwitchPlaces   Type = "switch_places"
)

// Envelope is the tagged-sum wire shape: a type discriminant plus a
// body whose fields vary by type. Body is decoded a second time into
// the concrete struct once Type is known, rather than modeled as a
// Go union.
type Envelope struct {
	Type Type            `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Body holds the fields every command carries.
type Body struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	EventID   uuid.UUID `json:"event_id"`
	GameID    uuid.UUID `json:"game_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// PlayBody is the body of play_white_piece / play_black_piece.
type PlayBody struct {
	Body
	CurrentTurn int `json:"current_turn"`
	PosX        int `json:"pos_x"`
	PosY        int `json:"pos_y"`
	PosZ        int `json:"pos_z"`
}

// KickBody is the body of kick_player.
type KickBody struct {
	Body
	KickedPlayerID uuid.UUID `json:"kicked_player_id"`
}

// allowList maps each command type to the roles permitted to send it.
// A type absent from this map is unknown and always dropped.
var allowList = map[Type]map[cube.Role]bool{
	GetGameState:   {cube.Spectator: true, cube.Player: true, cube.Host: true, cube.Admin: true},
	BecomePlayer:   {cube.Spectator: true},
	PlayWhitePiece: {cube.Player: true},
	PlayBlackPiece: {cube.Player: true},
	Leave:          {cube.Player: true},
	Forfeit:        {cube.Player: true},
	StartGame:      {cube.Host: true},
	KickPlayer:     {cube.Host: true},
	CloseGame:      {cube.Host: true},
	SwitchPlaces:   {cube.Host: true},
}

// hostOnly is consulted to decide whether the user_id-match check
// applies: host-only commands are authorized purely by connection
// role, not by a body.user_id match (the spec carves this out
// explicitly in §4.7).
var hostOnly = map[Type]bool{
	StartGame:    true,
	KickPlayer:   true,
	CloseGame:    true,
	SwitchPlaces: true,
}

// Dispatcher routes commands into registry.WithScope-guarded mutations.
type Dispatcher struct {
	reg *registry.Registry
}

// New builds a Dispatcher over reg.
func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Dispatch handles one inbound frame from a connection already
// authenticated to connUserID and authorized to role against the
// game the frame targets. Unknown types, role violations, and
// malformed bodies are all dropped silently (logged), per §4.7 and
// §7: a misbehaving client must never be disconnected by dispatch.
// GetGameState is the only type that produces a direct response.
func (d *Dispatcher) Dispatch(raw []byte, role cube.Role, connUserID uuid.UUID) *cube.Snapshot {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		cube.Debug.Printf("dropping unparseable command: %v", err)
		return nil
	}

	roles, known := allowList[env.Type]
	if !known || !roles[role] {
		cube.Debug.Printf("dropping command %q for role %s", env.Type, role)
		return nil
	}

	var body Body
	if err := json.Unmarshal(env.Body, &body); err != nil {
		cube.Debug.Printf("dropping command %q: bad body: %v", env.Type, err)
		return nil
	}
	if !hostOnly[env.Type] && body.UserID != connUserID {
		cube.Debug.Printf("dropping command %q: user_id does not match authenticated connection", env.Type)
		return nil
	}

	switch env.Type {
	case GetGameState:
		snap, ok := d.reg.Snapshot(body.GameID)
		if !ok {
			return nil
		}
		return snap
	case BecomePlayer:
		d.run(body.GameID, env.Type, func(g *cube.Game) error { return g.Promote(connUserID) })
	case PlayWhitePiece, PlayBlackPiece:
		var pb PlayBody
		if err := json.Unmarshal(env.Body, &pb); err != nil {
			cube.Debug.Printf("dropping command %q: bad body: %v", env.Type, err)
			return nil
		}
		color := cube.White
		if env.Type == PlayBlackPiece {
			color = cube.Black
		}
		d.run(body.GameID, env.Type, func(g *cube.Game) error {
			if !seatMatches(g, color, connUserID) {
				return cube.ErrForbidden
			}
			return g.Play(color, pb.PosX, pb.PosY, pb.PosZ, pb.CurrentTurn)
		})
	case Leave:
		d.run(body.GameID, env.Type, func(g *cube.Game) error { return g.Leave(connUserID) })
	case Forfeit:
		d.run(body.GameID, env.Type, func(g *cube.Game) error { return g.Forfeit(connUserID) })
	case StartGame:
		d.run(body.GameID, env.Type, func(g *cube.Game) error { return g.Start() })
	case CloseGame:
		d.run(body.GameID, env.Type, func(g *cube.Game) error { return g.Close() })
	case SwitchPlaces:
		d.run(body.GameID, env.Type, func(g *cube.Game) error { return g.SwitchColors() })
	case KickPlayer:
		var kb KickBody
		if err := json.Unmarshal(env.Body, &kb); err != nil {
			cube.Debug.Printf("dropping command %q: bad body: %v", env.Type, err)
			return nil
		}
		d.run(body.GameID, env.Type, func(g *cube.Game) error { return g.RemovePlayer(kb.KickedPlayerID) })
	}
	return nil
}

func seatMatches(g *cube.Game, color cube.Mark, userID uuid.UUID) bool {
	switch color {
	case cube.White:
		return g.WhiteID != nil && *g.WhiteID == userID
	case cube.Black:
		return g.BlackID != nil && *g.BlackID == userID
	default:
		return false
	}
}

// run applies f inside the registry's transactional scope and logs,
// rather than surfaces, any resulting error: a rejected command is
// dropped, never reported back over the connection (§7).
func (d *Dispatcher) run(gameID uuid.UUID, t Type, f func(g *cube.Game) error) {
	if err := d.reg.WithScope(gameID, f); err != nil {
		cube.Debug.Printf("command %q rejected: %v", t, err)
	}
}
