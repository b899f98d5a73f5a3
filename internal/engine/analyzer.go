// Package engine exposes the Stockfish collaborator: given a position
// and a wall-clock budget, return the top ranked continuations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/park285/lichess-live-watch/internal/engine/uci"
)

// ErrUnavailable wraps failures of the shared engine dependency; the
// process cannot continue without it.
var ErrUnavailable = errors.New("analysis engine unavailable")

const defaultMultiPV = 2

// Line is one ranked continuation. EvalCP is centipawns from the side
// to move; mates collapse to +-30000.
type Line struct {
	Move      string
	EvalCP    int
	Principal []string
}

type Config struct {
	BinaryPath string
	Threads    int
	HashMB     int
	MultiPV    int
	Capacity   int
}

type Analyzer struct {
	pool    *uci.Pool
	multiPV int
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	multiPV := cfg.MultiPV
	if multiPV <= 0 {
		multiPV = defaultMultiPV
	}
	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: cfg.BinaryPath,
		Options: uci.Options{
			Threads: cfg.Threads,
			HashMB:  cfg.HashMB,
			MultiPV: multiPV,
		},
		Capacity: cfg.Capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Analyzer{pool: pool, multiPV: multiPV}, nil
}

// Analyze evaluates the position reached by moves (UCI, from initialFEN
// or startpos) within budget and returns up to lines continuations. An
// empty result is valid for terminal-adjacent positions.
func (a *Analyzer) Analyze(ctx context.Context, initialFEN string, moves []string, budget time.Duration, lines int) ([]Line, error) {
	if lines <= 0 || lines > a.multiPV {
		lines = a.multiPV
	}

	session, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire: %v", ErrUnavailable, err)
	}
	var releaseErr error
	defer func() {
		a.pool.Release(session, releaseErr)
	}()

	if err := session.NewGame(ctx); err != nil {
		releaseErr = err
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := session.Search(ctx, uci.SearchRequest{
		FEN:    initialFEN,
		Moves:  moves,
		Limits: uci.Limits{MoveTimeMillis: int(budget.Milliseconds())},
	})
	if err != nil {
		releaseErr = err
		return nil, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}

	out := make([]Line, 0, lines)
	for _, c := range resp.Candidates {
		if len(out) == lines {
			break
		}
		out = append(out, Line{
			Move:      c.Move,
			EvalCP:    c.EvalCP,
			Principal: append([]string(nil), c.Principal...),
		})
	}
	return out, nil
}

func (a *Analyzer) Close() error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Close()
}
