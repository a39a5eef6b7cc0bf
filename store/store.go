// Record store
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

// Package store is the external collaborator holding players and
// matches: conventional CRUD plus the one aggregate query (summary)
// that the rest of the system treats as a read-only cache.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/chillymango/elo-calculator"
)

//go:embed schema.sql
var schema string

// Player is one row of the players table.
type Player struct {
	ID   uuid.UUID
	Name string
	Elo  int
}

// Match is one row of the matches table.
type Match struct {
	ID        uuid.UUID
	CreatedAt time.Time
	WinnerID  uuid.UUID
	LoserID   uuid.UUID
}

// Store wraps a single *sql.DB; it is the only component that talks
// to the persistent players/matches tables.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to the sqlite file at path (":memory:" for
// the TESTING mode the spec calls out) and ensures the schema exists.
func Open(path string, startingElo int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// AddPlayer inserts a new player at the starting Elo, rejecting a
// duplicate name per I7's record-store analogue (NameConflict).
func (s *Store) AddPlayer(ctx context.Context, name string, startingElo int) (*Player, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, cube.ErrNameConflict
	}

	p := &Player{ID: cube.NewID(), Name: name, Elo: startingElo}
	_, err = s.db.ExecContext(ctx, `INSERT INTO players (uuid, name, elo) VALUES (?, ?, ?)`,
		p.ID.String(), p.Name, p.Elo)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Players lists every player, for GET /api/players.
func (s *Store) Players(ctx context.Context) ([]*Player, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uuid, name, elo FROM players ORDER BY elo DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Player
	for rows.Next() {
		var p Player
		var id string
		if err := rows.Scan(&id, &p.Name, &p.Elo); err != nil {
			return nil, err
		}
		p.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// PlayerByName looks a player up for Elo recalculation.
func (s *Store) PlayerByName(ctx context.Context, name string) (*Player, error) {
	var p Player
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT uuid, name, elo FROM players WHERE name = ?`, name).
		Scan(&id, &p.Name, &p.Elo)
	if err != nil {
		return nil, err
	}
	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetElo updates a player's rating.
func (s *Store) SetElo(ctx context.Context, id uuid.UUID, elo int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE players SET elo = ? WHERE uuid = ?`, elo, id.String())
	return err
}

// RecordMatch inserts a match row.
func (s *Store) RecordMatch(ctx context.Context, winner, loser uuid.UUID) (*Match, error) {
	m := &Match{ID: cube.NewID(), CreatedAt: time.Now(), WinnerID: winner, LoserID: loser}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (uuid, created_at, winner_id, loser_id) VALUES (?, ?, ?, ?)`,
		m.ID.String(), m.CreatedAt, m.WinnerID.String(), m.LoserID.String())
	if err != nil {
		return nil, err
	}
	return m, nil
}

// LastMatch returns the most recently recorded match, for undo.
func (s *Store) LastMatch(ctx context.Context) (*Match, error) {
	var m Match
	var id, winner, loser string
	err := s.db.QueryRowContext(ctx,
		`SELECT uuid, created_at, winner_id, loser_id FROM matches ORDER BY created_at DESC LIMIT 1`).
		Scan(&id, &m.CreatedAt, &winner, &loser)
	if err != nil {
		return nil, err
	}
	if m.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if m.WinnerID, err = uuid.Parse(winner); err != nil {
		return nil, err
	}
	if m.LoserID, err = uuid.Parse(loser); err != nil {
		return nil, err
	}
	return &m, nil
}

// UndoMatch deletes the match with the given id (the /api/undo handler
// passes the one LastMatch returns); it does not revert Elo, since that
// adjustment depends on the tabulator's chosen K at record time.
func (s *Store) UndoMatch(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM matches WHERE uuid = ?`, id.String())
	return err
}

// Summary is the read-only aggregate the live-state service's cache
// hydrator pulls from: every player with their current rating.
func (s *Store) Summary(ctx context.Context) ([]*Player, error) {
	return s.Players(ctx)
}
