package cube

import (
	"time"

	"github.com/google/uuid"
)

// Game is the in-memory entity for a single live match: board, phase,
// player slots, turn counter, move history and winner.
//
// Game is never safe for concurrent mutation from multiple goroutines;
// every writer must go through registry.WithScope (see the registry
// package), which is the sole component allowed to call these
// methods outside of construction.
type Game struct {
	ID         uuid.UUID
	JoinCode   string
	CreatedAt  time.Time
	ModifiedAt time.Time
	FinishedAt *time.Time

	Board Board

	HostID  uuid.UUID
	WhiteID *uuid.UUID
	BlackID *uuid.UUID

	Phase     Phase
	EndReason EndReason
	Winner    Mark

	TurnNumber int
	History    []Move
}

// NewGame constructs a game with host seated as white, per invariant
// I1 (host_id ∈ {white_id, black_id} at creation; host defaults to
// white).
func NewGame(hostID uuid.UUID, joinCode string) *Game {
	now := time.Now()
	host := hostID
	return &Game{
		ID:         NewID(),
		JoinCode:   joinCode,
		CreatedAt:  now,
		ModifiedAt: now,
		HostID:     hostID,
		WhiteID:    &host,
		Phase:      Initialized,
	}
}

// WhoseTurn derives the active color from phase and turn parity. It
// returns Empty when the game isn't RUNNING.
func (g *Game) WhoseTurn() Mark {
	if g.Phase != Running {
		return Empty
	}
	if g.TurnNumber%2 == 0 {
		return White
	}
	return Black
}

// slotOf returns the seat pointer uid currently occupies, or nil if
// uid holds no player slot.
func (g *Game) slotOf(uid uuid.UUID) *uuid.UUID {
	switch {
	case g.WhiteID != nil && *g.WhiteID == uid:
		return g.WhiteID
	case g.BlackID != nil && *g.BlackID == uid:
		return g.BlackID
	default:
		return nil
	}
}

// Start transitions an INITIALIZED lobby with both seats filled into
// RUNNING.
func (g *Game) Start() error {
	if g.Phase != Initialized {
		return ErrWrongPhase
	}
	if g.WhiteID == nil || g.BlackID == nil {
		return ErrNotReady
	}
	g.Phase = Running
	return nil
}

// SwitchColors swaps the white and black seats while still in the
// lobby.
func (g *Game) SwitchColors() error {
	if g.Phase != Initialized {
		return ErrWrongPhase
	}
	g.WhiteID, g.BlackID = g.BlackID, g.WhiteID
	return nil
}

// RemovePlayer clears whichever seat uid occupies, if any.
func (g *Game) RemovePlayer(uid uuid.UUID) error {
	if g.Phase != Initialized {
		return ErrWrongPhase
	}
	if g.WhiteID != nil && *g.WhiteID == uid {
		g.WhiteID = nil
	} else if g.BlackID != nil && *g.BlackID == uid {
		g.BlackID = nil
	}
	return nil
}

// Promote seats uid into the single free slot. It fails if both
// slots are filled (Full) or both are empty (NoSlot): a lobby with
// two empty slots should never exist (invariant I6), so this is an
// internal consistency check more than a client-facing path.
func (g *Game) Promote(uid uuid.UUID) error {
	if g.Phase != Initialized {
		return ErrWrongPhase
	}
	free := 0
	if g.WhiteID == nil {
		free++
	}
	if g.BlackID == nil {
		free++
	}
	switch free {
	case 0:
		return ErrFull
	case 2:
		return ErrNoSlot
	}
	if g.WhiteID == nil {
		g.WhiteID = &uid
	} else {
		g.BlackID = &uid
	}
	return nil
}

// Leave clears uid's seat if it occupies one; otherwise it is a
// no-op, never an error.
func (g *Game) Leave(uid uuid.UUID) error {
	if g.Phase != Initialized {
		return ErrWrongPhase
	}
	switch g.slotOf(uid) {
	case nil:
	case g.WhiteID:
		g.WhiteID = nil
	default:
		g.BlackID = nil
	}
	return nil
}

// Play applies a single ply for color at (x, y, z), fenced by
// expectedTurn so that a retried command can never be double-applied
// (round-trip property R2).
func (g *Game) Play(color Mark, x, y, z, expectedTurn int) error {
	if g.Phase != Running {
		return ErrWrongPhase
	}
	if expectedTurn != g.TurnNumber {
		return ErrOutOfTurn
	}
	if g.WhoseTurn() != color {
		return ErrNotYourTurn
	}
	if x < 0 || x >= Size || y < 0 || y >= Size || z < 0 || z >= Size {
		return ErrOutOfBounds
	}
	if g.Board[x][y][z] != Empty {
		return ErrCellOccupied
	}

	g.Board[x][y][z] = color
	g.History = append(g.History, Move{Player: color, X: x, Y: y, Z: z, Stamp: time.Now()})
	g.TurnNumber++

	if HasLine(&g.Board, color) {
		g.endOfGame(color, BoardPosition)
	}
	return nil
}

// Forfeit ends the game in favor of uid's opponent.
func (g *Game) Forfeit(uid uuid.UUID) error {
	if g.Phase != Running {
		return ErrWrongPhase
	}
	switch {
	case g.WhiteID != nil && *g.WhiteID == uid:
		g.endOfGame(Black, Forfeit)
	case g.BlackID != nil && *g.BlackID == uid:
		g.endOfGame(White, Forfeit)
	default:
		return ErrNotAPlayer
	}
	return nil
}

// Close ends a non-terminal game with no winner. It is a no-op on an
// already-terminal game, so the host-connect sentinel and repeated
// lobby teardown requests can call it freely.
func (g *Game) Close() error {
	if g.Phase == Finished || g.Phase == Error {
		return nil
	}
	g.endOfGame(Empty, LobbyClose)
	return nil
}

// endOfGame is the single path into a terminal phase. It never
// returns an error: sentinel firing and redundant close calls must
// never raise (§7).
func (g *Game) endOfGame(winner Mark, reason EndReason) {
	now := time.Now()
	if reason == ErrorReason {
		g.Phase = Error
	} else {
		g.Phase = Finished
	}
	g.Winner = winner
	g.EndReason = reason
	g.FinishedAt = &now
}

// Fail promotes the game to ERROR phase, used by the registry scope
// when a handler panics.
func (g *Game) Fail() {
	g.endOfGame(Empty, ErrorReason)
}

// Copy produces a deep, value-semantics copy of the game for
// snapshot/rollback. Board is a plain array (copied by value) and
// History is reallocated, so no pointer graph or cycle handling is
// required.
func (g *Game) Copy() *Game {
	cp := *g
	if g.FinishedAt != nil {
		t := *g.FinishedAt
		cp.FinishedAt = &t
	}
	if g.WhiteID != nil {
		id := *g.WhiteID
		cp.WhiteID = &id
	}
	if g.BlackID != nil {
		id := *g.BlackID
		cp.BlackID = &id
	}
	cp.History = append([]Move(nil), g.History...)
	return &cp
}

// Snapshot is the network-serializable view of a game, excluding move
// history per §6.
type Snapshot struct {
	ID         uuid.UUID  `json:"id"`
	JoinCode   string     `json:"join_code"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt time.Time  `json:"modified_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Board [Size][Size][Size]Mark `json:"board"`

	HostID  uuid.UUID  `json:"host_id"`
	WhiteID *uuid.UUID `json:"white_id,omitempty"`
	BlackID *uuid.UUID `json:"black_id,omitempty"`

	Phase     string `json:"phase"`
	EndReason string `json:"end_reason,omitempty"`
	Winner    Mark   `json:"winner"`

	TurnNumber int  `json:"turn_number"`
	WhoseTurn  Mark `json:"whose_turn"`
}

// ToSnapshot freezes the current, mutable game into its wire
// representation. ModifiedAt is copied verbatim so that repeated
// serialization of the same frozen snapshot is byte-identical (R1).
func (g *Game) ToSnapshot() *Snapshot {
	return &Snapshot{
		ID:         g.ID,
		JoinCode:   g.JoinCode,
		CreatedAt:  g.CreatedAt,
		ModifiedAt: g.ModifiedAt,
		FinishedAt: g.FinishedAt,
		Board:      g.Board,
		HostID:     g.HostID,
		WhiteID:    g.WhiteID,
		BlackID:    g.BlackID,
		Phase:      g.Phase.String(),
		EndReason:  g.EndReason.String(),
		Winner:     g.Winner,
		TurnNumber: g.TurnNumber,
		WhoseTurn:  g.WhoseTurn(),
	}
}
