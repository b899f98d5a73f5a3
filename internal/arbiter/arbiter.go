// Package arbiter decides, per accepted state change, whether the
// monitored side must act, and schedules the engine evaluation when it
// does.
package arbiter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/lichess-live-watch/internal/board"
	"github.com/park285/lichess-live-watch/internal/domain"
	"github.com/park285/lichess-live-watch/internal/engine"
)

const rankCount = 2

type ReportKind int

const (
	// ReportYourTurn carries engine recommendations for the user's move.
	ReportYourTurn ReportKind = iota
	// ReportWaiting: the opponent is to move.
	ReportWaiting
	// ReportGameOver: the position is terminal.
	ReportGameOver
	// ReportNoCandidate: it is the user's turn but the engine returned
	// no ranked continuation.
	ReportNoCandidate
)

// Report is the plain record handed to the presentation sink. SAN
// rendering of the recommended moves happens here; all human-readable
// formatting stays in the sink.
type Report struct {
	Kind        ReportKind
	GameID      string
	Opponent    string
	Ply         int
	MoveNumber  int
	WhiteToMove bool

	Primary         string
	PrimaryScore    int
	HasPrimaryScore bool
	Alternative     string
	AltScore        int
	HasAltScore     bool
}

// Budgets maps time-control classes to engine wall-clock budgets.
type Budgets struct {
	Fast     time.Duration
	Standard time.Duration
}

func DefaultBudgets() Budgets {
	return Budgets{Fast: 300 * time.Millisecond, Standard: 800 * time.Millisecond}
}

func (b Budgets) For(class domain.TimeClass) time.Duration {
	if class == domain.TimeClassFast && b.Fast > 0 {
		return b.Fast
	}
	if b.Standard > 0 {
		return b.Standard
	}
	return 800 * time.Millisecond
}

// Analyzer is the analysis-engine collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, initialFEN string, moves []string, budget time.Duration, lines int) ([]engine.Line, error)
}

type Scheduler struct {
	analyzer Analyzer
	budgets  Budgets
	logger   *zap.Logger
}

func NewScheduler(analyzer Analyzer, budgets Budgets, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{analyzer: analyzer, budgets: budgets, logger: logger}
}

// Evaluate maps an accepted position to its report. Engine errors are
// returned to the caller; they are fatal for the process, not the
// session, since the engine is a shared dependency.
func (s *Scheduler) Evaluate(ctx context.Context, pos *board.Position, sctx domain.SessionContext) (Report, error) {
	report := Report{
		GameID:      sctx.GameID,
		Opponent:    sctx.Opponent(),
		Ply:         pos.Ply(),
		MoveNumber:  pos.MoveNumber(),
		WhiteToMove: pos.SideToMove() == domain.White,
	}

	if pos.Terminal {
		report.Kind = ReportGameOver
		return report, nil
	}
	if pos.SideToMove() != sctx.UserColor {
		report.Kind = ReportWaiting
		return report, nil
	}

	budget := s.budgets.For(sctx.TimeClass)
	start := time.Now()
	lines, err := s.analyzer.Analyze(ctx, pos.StartFEN(), pos.UCIMoves(), budget, rankCount)
	if err != nil {
		return report, err
	}
	s.logger.Debug("analysis complete",
		zap.String("game", sctx.GameID),
		zap.Int("ply", pos.Ply()),
		zap.Duration("budget", budget),
		zap.Duration("took", time.Since(start)),
		zap.Int("lines", len(lines)))

	if len(lines) == 0 {
		report.Kind = ReportNoCandidate
		return report, nil
	}

	report.Kind = ReportYourTurn
	report.Primary = pos.EncodeSAN(lines[0].Move)
	report.PrimaryScore = lines[0].EvalCP
	report.HasPrimaryScore = true
	if len(lines) > 1 {
		report.Alternative = pos.EncodeSAN(lines[1].Move)
		report.AltScore = lines[1].EvalCP
		report.HasAltScore = true
	}
	return report, nil
}
