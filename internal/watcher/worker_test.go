package watcher

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/park285/lichess-live-watch/internal/arbiter"
	"github.com/park285/lichess-live-watch/internal/domain"
	"github.com/park285/lichess-live-watch/internal/engine"
	"github.com/park285/lichess-live-watch/internal/feed"
)

type scriptedHandle struct {
	name   string
	events []feed.Event
	err    error
	pos    int
	closed bool
}

func (h *scriptedHandle) Next(context.Context) (feed.Event, error) {
	if h.pos >= len(h.events) {
		if h.err != nil {
			return feed.Event{}, h.err
		}
		return feed.Event{}, io.EOF
	}
	ev := h.events[h.pos]
	h.pos++
	return ev, nil
}

func (h *scriptedHandle) Name() string { return h.name }
func (h *scriptedHandle) Close()       { h.closed = true }

type captureSink struct {
	reports     []arbiter.Report
	transitions []State
}

func (s *captureSink) Report(r arbiter.Report) { s.reports = append(s.reports, r) }
func (s *captureSink) Transition(_ string, _, to State) {
	s.transitions = append(s.transitions, to)
}

func (s *captureSink) reached(want State) bool {
	for _, st := range s.transitions {
		if st == want {
			return true
		}
	}
	return false
}

type stubAnalyzer struct {
	lines []engine.Line
	err   error
	calls int
}

func (a *stubAnalyzer) Analyze(context.Context, string, []string, time.Duration, int) ([]engine.Line, error) {
	a.calls++
	return a.lines, a.err
}

func fullEvent(moves []string, status string) feed.Event {
	return feed.Event{
		Kind:   feed.KindFull,
		Moves:  moves,
		White:  "alice",
		Black:  "bob",
		Speed:  "blitz",
		Status: status,
	}
}

func newTestWorker(t *testing.T, analyzer arbiter.Analyzer, sink Sink, stream feed.Handle, streamErr error, poll feed.Handle, fatal func(error)) *Worker {
	t.Helper()
	cfg := WorkerConfig{
		GameID:   "abcd1234",
		RunID:    "run-1",
		Username: "alice",
		Mode:     domain.ModeBoard,
		OpenStream: func(context.Context) (feed.Handle, error) {
			if streamErr != nil {
				return nil, streamErr
			}
			return stream, nil
		},
		Scheduler: arbiter.NewScheduler(analyzer, arbiter.DefaultBudgets(), nil),
		Sink:      sink,
		Fatal:     fatal,
	}
	if poll != nil {
		cfg.OpenPoll = func() feed.Handle { return poll }
	}
	return NewWorker(cfg)
}

func TestWorkerLifecycleToGameOver(t *testing.T) {
	stream := &scriptedHandle{name: "board", events: []feed.Event{
		fullEvent([]string{"e2e4"}, "started"),
		{Kind: feed.KindIncremental, Moves: []string{"e2e4", "e7e5"}, Status: "started"},
		{Kind: feed.KindIncremental, Moves: []string{"e2e4", "e7e5"}, Status: "resign"},
	}}
	sink := &captureSink{}
	analyzer := &stubAnalyzer{lines: []engine.Line{{Move: "g1f3", EvalCP: 30}}}

	w := newTestWorker(t, analyzer, sink, stream, nil, nil, nil)
	w.Run(context.Background())

	if len(sink.reports) != 3 {
		t.Fatalf("expected 3 reports, got %d: %+v", len(sink.reports), sink.reports)
	}
	if sink.reports[0].Kind != arbiter.ReportWaiting {
		t.Fatalf("after 1.e4 the user (white) waits, got %v", sink.reports[0].Kind)
	}
	if sink.reports[1].Kind != arbiter.ReportYourTurn || sink.reports[1].Primary != "Nf3" {
		t.Fatalf("expected the recommendation on the user's turn, got %+v", sink.reports[1])
	}
	if sink.reports[2].Kind != arbiter.ReportGameOver {
		t.Fatalf("expected the terminal report, got %v", sink.reports[2].Kind)
	}
	if !sink.reached(StateStreaming) || !sink.reached(StateDraining) || !sink.reached(StateDone) {
		t.Fatalf("lifecycle incomplete: %v", sink.transitions)
	}
	if analyzer.calls != 1 {
		t.Fatalf("engine must run exactly once, ran %d times", analyzer.calls)
	}
}

func TestWorkerDedupsRepeatedSnapshots(t *testing.T) {
	stream := &scriptedHandle{name: "board", events: []feed.Event{
		fullEvent([]string{"e2e4", "e7e5"}, "started"),
		fullEvent([]string{"e2e4", "e7e5"}, "started"),
		fullEvent([]string{"e2e4", "e7e5"}, "started"),
	}}
	sink := &captureSink{}
	analyzer := &stubAnalyzer{lines: []engine.Line{{Move: "g1f3", EvalCP: 30}}}

	w := newTestWorker(t, analyzer, sink, stream, nil, nil, nil)
	w.Run(context.Background())

	if analyzer.calls != 1 {
		t.Fatalf("duplicates must not retrigger analysis, ran %d times", analyzer.calls)
	}
	if len(sink.reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(sink.reports))
	}
}

func TestWorkerFallsBackToPollingOnStreamEOF(t *testing.T) {
	stream := &scriptedHandle{name: "board", events: []feed.Event{
		fullEvent([]string{"e2e4"}, "started"),
	}}
	poll := &scriptedHandle{name: "export-poll", events: []feed.Event{
		fullEvent([]string{"e2e4", "e7e5"}, "started"),
	}}
	sink := &captureSink{}
	analyzer := &stubAnalyzer{lines: []engine.Line{{Move: "g1f3", EvalCP: 30}}}

	w := newTestWorker(t, analyzer, sink, stream, nil, poll, nil)
	w.Run(context.Background())

	if !sink.reached(StatePolling) {
		t.Fatalf("expected fallback to polling, transitions: %v", sink.transitions)
	}
	if sink.reached(StateError) {
		t.Fatalf("a recoverable stream EOF must not become an error state")
	}
	if !stream.closed {
		t.Fatalf("the dead stream handle must be closed")
	}
	if sink.reports[len(sink.reports)-1].Kind != arbiter.ReportYourTurn {
		t.Fatalf("polling must continue the session: %+v", sink.reports)
	}
	if !sink.reached(StateDone) {
		t.Fatalf("poll EOF ends the session cleanly: %v", sink.transitions)
	}
}

func TestWorkerOpensPollWhenStreamingUnavailable(t *testing.T) {
	poll := &scriptedHandle{name: "export-poll", events: []feed.Event{
		fullEvent([]string{"e2e4", "e7e5"}, "started"),
	}}
	sink := &captureSink{}
	analyzer := &stubAnalyzer{lines: []engine.Line{{Move: "g1f3", EvalCP: 30}}}

	w := newTestWorker(t, analyzer, sink, nil, errors.New("all candidates failed"), poll, nil)
	w.Run(context.Background())

	if sink.reached(StateStreaming) {
		t.Fatalf("streaming must not be reported when open failed")
	}
	if !sink.reached(StatePolling) || !sink.reached(StateDone) {
		t.Fatalf("transitions: %v", sink.transitions)
	}
	if len(sink.reports) != 1 || sink.reports[0].Kind != arbiter.ReportYourTurn {
		t.Fatalf("reports: %+v", sink.reports)
	}
}

func TestWorkerErrorsWithoutAnyTransport(t *testing.T) {
	sink := &captureSink{}
	analyzer := &stubAnalyzer{}

	w := newTestWorker(t, analyzer, sink, nil, errors.New("all candidates failed"), nil, nil)
	w.Run(context.Background())

	if !sink.reached(StateError) {
		t.Fatalf("expected the error state, transitions: %v", sink.transitions)
	}
	if len(sink.reports) != 0 {
		t.Fatalf("no reports expected, got %+v", sink.reports)
	}
}

func TestWorkerEscalatesEngineFailure(t *testing.T) {
	stream := &scriptedHandle{name: "board", events: []feed.Event{
		fullEvent([]string{"e2e4", "e7e5"}, "started"),
	}}
	sink := &captureSink{}
	analyzer := &stubAnalyzer{err: engine.ErrUnavailable}

	var fatal error
	w := newTestWorker(t, analyzer, sink, stream, nil, nil, func(err error) { fatal = err })
	w.Run(context.Background())

	if !errors.Is(fatal, engine.ErrUnavailable) {
		t.Fatalf("expected the engine failure to escalate, got %v", fatal)
	}
	if !sink.reached(StateError) {
		t.Fatalf("transitions: %v", sink.transitions)
	}
}

func TestWorkerStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := &scriptedHandle{name: "board", err: ctx.Err()}
	sink := &captureSink{}
	w := newTestWorker(t, &stubAnalyzer{}, sink, stream, nil, nil, nil)
	w.Run(ctx)

	if sink.reached(StateError) || sink.reached(StateDone) {
		t.Fatalf("cancellation is neither an error nor completion: %v", sink.transitions)
	}
}
