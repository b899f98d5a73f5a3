package board

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/lichess-live-watch/internal/domain"
	"github.com/park285/lichess-live-watch/internal/feed"
	"github.com/park285/lichess-live-watch/internal/lichess"
)

// Verdict classifies what an update did to the session state.
type Verdict int

const (
	// Applied: the update advanced the change key (or flipped terminal).
	Applied Verdict = iota
	// Unchanged: same change key as before; downstream work suppressed.
	Unchanged
	// Rejected: the update regressed the change key and was discarded.
	Rejected
)

// Reconstruct replays an update's move list into a fresh position and
// compares its change key against prev. A move the rules engine rejects
// truncates the replay at that point; duplicated states dedup to
// Unchanged; a payload reporting fewer plies than already observed is
// Rejected and prev is retained. The export snapshot transiently
// reporting zero moves right after a refresh is the known case the
// regression guard absorbs.
func Reconstruct(ev feed.Event, prev *Position) (*Position, Verdict) {
	next := replay(ev)

	if prev != nil {
		if next.Key.Ply < prev.Key.Ply {
			return prev, Rejected
		}
		if next.Key == prev.Key && next.Terminal == prev.Terminal {
			return prev, Unchanged
		}
	}
	return next, Applied
}

func replay(ev feed.Event) *Position {
	game, startFEN := newGame(ev.InitialFen)

	applied := make([]string, 0, len(ev.Moves))
	for _, mv := range ev.Moves {
		mv = strings.TrimSpace(mv)
		if mv == "" {
			continue
		}
		// Streams send UCI, the export sends SAN; accept either.
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			if err := game.PushNotationMove(mv, nchess.AlgebraicNotation{}, nil); err != nil {
				break
			}
		}
		applied = append(applied, encodeLastUCI(game))
	}

	pos := &Position{
		game:     game,
		startFEN: startFEN,
		moves:    applied,
		Key: ChangeKey{
			Ply:  len(applied),
			Turn: colorFrom(game.Position().Turn()),
		},
	}
	pos.Terminal = game.Outcome() != nchess.NoOutcome ||
		(strings.TrimSpace(ev.Status) != "" && !lichess.StatusInProgress(ev.Status))
	return pos
}

// newGame starts a replay from the reported initial position, falling
// back to the standard start when the FEN does not parse.
func newGame(initialFen string) (*nchess.Game, string) {
	fen := strings.TrimSpace(initialFen)
	if fen == "" || fen == "startpos" {
		return nchess.NewGame(), ""
	}
	option, err := nchess.FEN(fen)
	if err != nil {
		return nchess.NewGame(), ""
	}
	return nchess.NewGame(option), fen
}

// encodeLastUCI normalizes the move just pushed back to UCI so the
// engine always receives one notation regardless of the feed's.
func encodeLastUCI(game *nchess.Game) string {
	moves := game.Moves()
	if len(moves) == 0 {
		return ""
	}
	return nchess.UCINotation{}.Encode(nil, moves[len(moves)-1])
}

func colorFrom(c nchess.Color) domain.Color {
	if c == nchess.Black {
		return domain.Black
	}
	return domain.White
}
