// Elo tabulation
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

// Package elo tabulates rating changes for recorded matches. It is an
// external collaborator: the live-state service never calls it
// directly, the record_match CLI does via the HTTP API.
package elo

import "math"

// spread is the rating gap between the two players, in points, over
// which the K-factor is interpolated between Ceiling and Floor; it is
// also the scale of the logistic expected-score curve.
const spread = 400.0

// Tabulator computes post-match ratings with a dynamic K-factor: a
// closely matched pairing's result is highly informative (either side
// could plausibly have won), so it moves ratings near Ceiling, while
// a lopsided pairing's expected result confirms what the ratings
// already said, so it moves ratings little, near Floor.
type Tabulator struct {
	StartingElo int
	Floor       int
	Ceiling     int
}

// New builds a Tabulator.
func New(startingElo, floor, ceiling int) *Tabulator {
	return &Tabulator{StartingElo: startingElo, Floor: floor, Ceiling: ceiling}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// kFactor interpolates between Ceiling and Floor based on gap, the
// absolute rating distance between the two competing players: a gap
// of zero maps to Ceiling, a gap of spread or more maps to Floor.
// Both players in a match share the same K, derived from this one
// pairing-level gap rather than either player's individual distance
// from some fixed constant.
func (t *Tabulator) kFactor(gap float64) float64 {
	frac := clamp(gap/spread, 0, 1)
	return float64(t.Ceiling) - frac*float64(t.Ceiling-t.Floor)
}

// expected returns the probability that a player rated a beats a
// player rated b, per the standard logistic Elo model.
func expected(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/spread))
}

// Update returns the new ratings for a winner and loser given their
// current ratings. Both deltas are computed with the same K, set by
// the gap between the two ratings at the time of the match.
func (t *Tabulator) Update(winnerElo, loserElo int) (newWinner, newLoser int) {
	ew := expected(winnerElo, loserElo)
	el := expected(loserElo, winnerElo)

	k := t.kFactor(math.Abs(float64(winnerElo - loserElo)))

	newWinner = winnerElo + int(math.Round(k*(1-ew)))
	newLoser = loserElo + int(math.Round(k*(0-el)))
	return newWinner, newLoser
}
