// Package board rebuilds authoritative positions from feed payloads and
// decides whether an update represents a genuinely new state.
package board

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/lichess-live-watch/internal/domain"
)

// ChangeKey is the dedup fingerprint of a position: (ply count, side to
// move). The key never regresses for the lifetime of a session.
type ChangeKey struct {
	Ply  int
	Turn domain.Color
}

// Position is the reconstructed state owned by one session worker.
type Position struct {
	game     *nchess.Game
	startFEN string   // "" for the standard initial position
	moves    []string // UCI, as successfully replayed
	Key      ChangeKey
	Terminal bool
}

// StartFEN returns the position the game began from, or "" for the
// standard initial position.
func (p *Position) StartFEN() string { return p.startFEN }

// SideToMove returns whose turn it is.
func (p *Position) SideToMove() domain.Color { return p.Key.Turn }

// Ply returns the number of half-moves played.
func (p *Position) Ply() int { return p.Key.Ply }

// MoveNumber returns the full-move number of the side to move.
func (p *Position) MoveNumber() int { return p.Key.Ply/2 + 1 }

// UCIMoves returns the replayed move list in UCI notation.
func (p *Position) UCIMoves() []string {
	return append([]string(nil), p.moves...)
}

// FEN returns the current position for the engine.
func (p *Position) FEN() string {
	if p.game == nil {
		return ""
	}
	return p.game.FEN()
}

// EncodeSAN renders a UCI move as SAN in the current position, falling
// back to the raw token when it does not decode.
func (p *Position) EncodeSAN(uci string) string {
	uci = strings.TrimSpace(uci)
	if p.game == nil || uci == "" {
		return uci
	}
	pos := p.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return uci
	}
	return nchess.AlgebraicNotation{}.Encode(pos, mv)
}
