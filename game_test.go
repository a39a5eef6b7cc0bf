package cube

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReadyGame(t *testing.T) (*Game, uuid.UUID, uuid.UUID) {
	t.Helper()
	host := uuid.New()
	g := NewGame(host, "ABCD")
	require.Equal(t, host, *g.WhiteID)
	opponent := uuid.New()
	require.NoError(t, g.Promote(opponent))
	require.NoError(t, g.Start())
	return g, host, opponent
}

func TestNewGameHostDefaultsToWhite(t *testing.T) {
	host := uuid.New()
	g := NewGame(host, "WXYZ")
	require.NotNil(t, g.WhiteID)
	assert.Equal(t, host, *g.WhiteID)
	assert.Nil(t, g.BlackID)
	assert.Equal(t, Initialized, g.Phase)
}

func TestPromoteFullAndNoSlot(t *testing.T) {
	host := uuid.New()
	g := NewGame(host, "CODE")

	// both slots free except white: promoting fills black
	other := uuid.New()
	require.NoError(t, g.Promote(other))
	assert.Equal(t, other, *g.BlackID)

	// now full: a third promotion must fail
	third := uuid.New()
	err := g.Promote(third)
	assert.ErrorIs(t, err, ErrFull)

	// artificially clear both slots to exercise the NoSlot branch
	g.WhiteID = nil
	g.BlackID = nil
	err = g.Promote(third)
	assert.ErrorIs(t, err, ErrNoSlot)
}

func TestStartRequiresBothSlotsAndInitializedPhase(t *testing.T) {
	host := uuid.New()
	g := NewGame(host, "CODE")
	assert.ErrorIs(t, g.Start(), ErrNotReady)

	other := uuid.New()
	require.NoError(t, g.Promote(other))
	require.NoError(t, g.Start())
	assert.Equal(t, Running, g.Phase)

	assert.ErrorIs(t, g.Start(), ErrWrongPhase)
}

func TestWhoseTurnAlternatesByParity(t *testing.T) {
	g, _, _ := newReadyGame(t)
	assert.Equal(t, White, g.WhoseTurn())
	require.NoError(t, g.Play(White, 0, 0, 0, 0))
	assert.Equal(t, Black, g.WhoseTurn())
	require.NoError(t, g.Play(Black, 1, 0, 0, 1))
	assert.Equal(t, White, g.WhoseTurn())
}

func TestPlayRejectsOutOfTurnToken(t *testing.T) {
	g, _, _ := newReadyGame(t)
	err := g.Play(White, 0, 0, 0, 7)
	assert.ErrorIs(t, err, ErrOutOfTurn)
}

func TestPlayRejectsWrongColor(t *testing.T) {
	g, _, _ := newReadyGame(t)
	err := g.Play(Black, 0, 0, 0, 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestPlayRejectsOutOfBounds(t *testing.T) {
	g, _, _ := newReadyGame(t)
	err := g.Play(White, Size, 0, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestPlayRejectsOccupiedCell(t *testing.T) {
	g, _, _ := newReadyGame(t)
	require.NoError(t, g.Play(White, 0, 0, 0, 0))
	require.NoError(t, g.Play(Black, 1, 1, 1, 1))
	err := g.Play(White, 0, 0, 0, 2)
	assert.ErrorIs(t, err, ErrCellOccupied)
}

// TestPlayWritesActualPlayerMark guards against writing a hardcoded mark to
// the board regardless of which color actually moved.
func TestPlayWritesActualPlayerMark(t *testing.T) {
	g, _, _ := newReadyGame(t)
	require.NoError(t, g.Play(White, 0, 0, 0, 0))
	assert.Equal(t, White, g.Board[0][0][0])
	require.NoError(t, g.Play(Black, 1, 1, 1, 1))
	assert.Equal(t, Black, g.Board[1][1][1])
}

func TestPlayDetectsWinAndFreezesPhase(t *testing.T) {
	g, _, black := newReadyGame(t)
	// White plays a winning line, interleaved with harmless Black moves.
	require.NoError(t, g.Play(White, 0, 0, 0, 0))
	require.NoError(t, g.Play(Black, 0, 0, 4, 1))
	require.NoError(t, g.Play(White, 1, 0, 0, 2))
	require.NoError(t, g.Play(Black, 1, 0, 4, 3))
	require.NoError(t, g.Play(White, 2, 0, 0, 4))
	require.NoError(t, g.Play(Black, 2, 0, 4, 5))
	require.NoError(t, g.Play(White, 3, 0, 0, 6))

	assert.Equal(t, Finished, g.Phase)
	assert.Equal(t, White, g.Winner)
	assert.Equal(t, BoardPosition, g.EndReason)
	require.NotNil(t, g.FinishedAt)

	// the game is terminal now: further plays must be rejected.
	err := g.Play(Black, 3, 0, 4, 7)
	assert.ErrorIs(t, err, ErrWrongPhase)
	_ = black
}

func TestForfeitEndsGameForOpponent(t *testing.T) {
	g, host, opponent := newReadyGame(t)
	require.NoError(t, g.Forfeit(host))
	assert.Equal(t, Finished, g.Phase)
	assert.Equal(t, Black, g.Winner)
	assert.Equal(t, Forfeit, g.EndReason)

	g2, _, _ := newReadyGame(t)
	require.NoError(t, g2.Forfeit(opponent))
	assert.Equal(t, White, g2.Winner)
}

func TestForfeitRejectsNonPlayer(t *testing.T) {
	g, _, _ := newReadyGame(t)
	err := g.Forfeit(uuid.New())
	assert.ErrorIs(t, err, ErrNotAPlayer)
}

func TestCloseIsIdempotentOnTerminalGame(t *testing.T) {
	g, host, _ := newReadyGame(t)
	require.NoError(t, g.Forfeit(host))
	require.NoError(t, g.Close())
	assert.Equal(t, Forfeit, g.EndReason, "closing an already-finished game must not overwrite its end reason")
}

func TestCloseEndsALiveLobby(t *testing.T) {
	host := uuid.New()
	g := NewGame(host, "CODE")
	require.NoError(t, g.Close())
	assert.Equal(t, Finished, g.Phase)
	assert.Equal(t, LobbyClose, g.EndReason)
	assert.Equal(t, Empty, g.Winner)
}

func TestFailSetsErrorPhase(t *testing.T) {
	g, _, _ := newReadyGame(t)
	g.Fail()
	assert.Equal(t, Error, g.Phase)
	assert.Equal(t, ErrorReason, g.EndReason)
}

func TestCopyIsIndependentOfOriginal(t *testing.T) {
	g, _, _ := newReadyGame(t)
	require.NoError(t, g.Play(White, 0, 0, 0, 0))

	cp := g.Copy()
	require.NoError(t, g.Play(Black, 1, 1, 1, 1))

	assert.Equal(t, 1, cp.TurnNumber, "copy must not observe mutations made after it was taken")
	assert.Equal(t, Empty, cp.Board[1][1][1])
	assert.Equal(t, Black, g.Board[1][1][1])

	cp.WhiteID = nil
	assert.NotNil(t, g.WhiteID, "mutating the copy's pointer fields must not alias the original")
}

func TestLeaveClearsOccupiedSeatOnly(t *testing.T) {
	host := uuid.New()
	g := NewGame(host, "CODE")
	require.NoError(t, g.Leave(uuid.New())) // no-op, unseated user
	assert.NotNil(t, g.WhiteID)

	require.NoError(t, g.Leave(host))
	assert.Nil(t, g.WhiteID)
}

func TestToSnapshotExcludesHistoryAndIsStable(t *testing.T) {
	g, _, _ := newReadyGame(t)
	require.NoError(t, g.Play(White, 0, 0, 0, 0))

	snap1 := g.ToSnapshot()
	snap2 := g.ToSnapshot()
	assert.Equal(t, snap1, snap2, "serializing the same frozen state twice must be identical")
	assert.Equal(t, Black, snap1.WhoseTurn)
	assert.Equal(t, White, snap1.Board[0][0][0])
}
