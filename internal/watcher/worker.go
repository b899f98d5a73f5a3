package watcher

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/park285/lichess-live-watch/internal/arbiter"
	"github.com/park285/lichess-live-watch/internal/board"
	"github.com/park285/lichess-live-watch/internal/domain"
	"github.com/park285/lichess-live-watch/internal/feed"
	"github.com/park285/lichess-live-watch/internal/lichess"
)

// State is the session worker lifecycle.
type State int

const (
	StateOpening State = iota
	StateStreaming
	StatePolling
	StateDraining
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StatePolling:
		return "polling"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Sink consumes arbiter reports and worker state transitions. It never
// feeds back into the core.
type Sink interface {
	Report(r arbiter.Report)
	Transition(gameID string, from, to State)
}

// Worker owns one session end to end: transport selection with
// failover, state reconstruction, and analysis scheduling. PositionState
// and SessionContext are exclusively owned here and never shared.
type Worker struct {
	gameID     string
	runID      string
	openStream func(ctx context.Context) (feed.Handle, error)
	openPoll   func() feed.Handle
	scheduler  *arbiter.Scheduler
	sink       Sink
	fatal      func(error)
	logger     *zap.Logger

	state State
	sctx  domain.SessionContext
	pos   *board.Position
}

type WorkerConfig struct {
	GameID    string
	RunID     string
	Username  string
	Mode      domain.AccountMode
	SpeedHint string

	OpenStream func(ctx context.Context) (feed.Handle, error)
	// OpenPoll is nil when export polling is unavailable for the account.
	OpenPoll  func() feed.Handle
	Scheduler *arbiter.Scheduler
	Sink      Sink
	// Fatal escalates process-fatal errors (engine loss) to the dispatcher.
	Fatal  func(error)
	Logger *zap.Logger
}

func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		gameID:     cfg.GameID,
		runID:      cfg.RunID,
		openStream: cfg.OpenStream,
		openPoll:   cfg.OpenPoll,
		scheduler:  cfg.Scheduler,
		sink:       cfg.Sink,
		fatal:      cfg.Fatal,
		logger:     logger.With(zap.String("game", cfg.GameID), zap.String("run", cfg.RunID)),
		state:      StateOpening,
		sctx: domain.SessionContext{
			GameID:    cfg.GameID,
			Username:  cfg.Username,
			Mode:      cfg.Mode,
			TimeClass: timeClass(cfg.SpeedHint),
		},
	}
}

func (w *Worker) Run(ctx context.Context) {
	handle, ok := w.open(ctx)
	if !ok {
		return
	}
	defer func() { handle.Close() }()

	for {
		ev, err := handle.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if next, ok := w.recover(err, handle); ok {
				handle.Close()
				handle = next
				continue
			}
			return
		}
		if ev.Kind == feed.KindEnded {
			next, ok := w.recover(io.EOF, handle)
			if !ok {
				return
			}
			handle.Close()
			handle = next
			continue
		}
		if !w.apply(ctx, ev) {
			return
		}
	}
}

// open runs the streaming failover and falls back to export polling
// when every candidate is exhausted.
func (w *Worker) open(ctx context.Context) (feed.Handle, bool) {
	handle, err := w.openStream(ctx)
	if err == nil {
		w.setState(StateStreaming)
		return handle, true
	}
	if ctx.Err() != nil {
		return nil, false
	}

	var failure *feed.OpenFailure
	if errors.As(err, &failure) && failure.AuthRejected() {
		w.logger.Warn("all stream candidates rejected; token may need board:play or bot:play scope")
	}
	w.logger.Info("stream open failed", zap.Error(err))

	if w.openPoll == nil {
		w.logger.Error("no viable transport for session")
		w.setState(StateError)
		return nil, false
	}
	w.setState(StatePolling)
	return w.openPoll(), true
}

// recover handles a dead feed: a closed stream mid-game falls back to
// export polling rather than terminating, since the upstream stream can
// close spuriously.
func (w *Worker) recover(err error, _ feed.Handle) (feed.Handle, bool) {
	if w.state == StateStreaming && w.openPoll != nil {
		w.logger.Info("stream ended, falling back to export polling", zap.Error(err))
		w.setState(StatePolling)
		return w.openPoll(), true
	}
	if errors.Is(err, io.EOF) {
		// The export no longer lists the game: nothing left to watch.
		w.logger.Info("feed ended")
		w.setState(StateDone)
		return nil, false
	}
	w.logger.Error("feed failed", zap.Error(err))
	w.setState(StateError)
	return nil, false
}

// apply runs one update through the reconstructor and the arbiter.
// Returns false when the worker is finished.
func (w *Worker) apply(ctx context.Context, ev feed.Event) bool {
	if !w.sctx.Complete() && ev.Kind == feed.KindFull {
		if ev.Speed != "" {
			w.sctx.TimeClass = timeClass(ev.Speed)
		}
		if ev.White != "" || ev.Black != "" {
			w.sctx = w.sctx.WithParticipants(ev.White, ev.Black)
			w.logger.Info("session participants resolved",
				zap.String("white", w.sctx.White),
				zap.String("black", w.sctx.Black),
				zap.String("color", w.sctx.UserColor.String()),
				zap.String("class", string(w.sctx.TimeClass)))
		}
	}

	next, verdict := board.Reconstruct(ev, w.pos)
	w.pos = next
	if verdict != board.Applied {
		return true
	}
	// Cannot arbitrate sides until the participants are known.
	if !w.sctx.Complete() {
		return true
	}

	report, err := w.scheduler.Evaluate(ctx, w.pos, w.sctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Error("analysis failed", zap.Error(err))
		if w.fatal != nil {
			w.fatal(err)
		}
		w.setState(StateError)
		return false
	}

	if report.Kind == arbiter.ReportGameOver {
		w.setState(StateDraining)
		w.sink.Report(report)
		w.setState(StateDone)
		return false
	}
	w.sink.Report(report)
	return true
}

func (w *Worker) setState(next State) {
	prev := w.state
	w.state = next
	w.logger.Debug("worker state", zap.String("from", prev.String()), zap.String("to", next.String()))
	if w.sink != nil {
		w.sink.Transition(w.gameID, prev, next)
	}
}

func timeClass(speed string) domain.TimeClass {
	if lichess.FastSpeed(speed) {
		return domain.TimeClassFast
	}
	return domain.TimeClassStandard
}
