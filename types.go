package cube

import (
	"time"

	"github.com/google/uuid"
)

// Mark is the contents of a single board cell.
type Mark uint8

const (
	Empty Mark = iota
	White
	Black
)

func (m Mark) String() string {
	switch m {
	case Empty:
		return "empty"
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "unknown"
	}
}

// Opponent returns the other player's mark. Only meaningful for White/Black.
func (m Mark) Opponent() Mark {
	switch m {
	case White:
		return Black
	case Black:
		return White
	default:
		return Empty
	}
}

// Phase is the lifecycle state of a Game.
type Phase uint8

const (
	Initialized Phase = iota
	Running
	Paused
	Finished
	Error
)

func (p Phase) String() string {
	switch p {
	case Initialized:
		return "INITIALIZED"
	case Running:
		return "RUNNING"
	case Paused:
		return "PAUSED"
	case Finished:
		return "FINISHED"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// EndReason records why a game left the Running phase.
type EndReason uint8

const (
	NoReason EndReason = iota
	BoardPosition
	Forfeit
	LobbyClose
	ErrorReason
)

func (r EndReason) String() string {
	switch r {
	case NoReason:
		return ""
	case BoardPosition:
		return "BOARD_POSITION"
	case Forfeit:
		return "FORFEIT"
	case LobbyClose:
		return "LOBBY_CLOSE"
	case ErrorReason:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role is the per-connection authorization tier resolved against a Game.
type Role uint8

const (
	Forbidden Role = iota
	Spectator
	Player
	Host
	Admin
)

func (r Role) String() string {
	switch r {
	case Forbidden:
		return "FORBIDDEN"
	case Spectator:
		return "SPECTATOR"
	case Player:
		return "PLAYER"
	case Host:
		return "HOST"
	case Admin:
		return "ADMIN"
	default:
		return "UNKNOWN"
	}
}

// Move is one ply of move history: who played where, and when.
type Move struct {
	Player Mark
	X, Y, Z int
	Stamp  time.Time
}

// NewID mints a fresh 128-bit identifier, used for games, users,
// sessions, subscriptions, matches and players alike.
func NewID() uuid.UUID {
	return uuid.New()
}
