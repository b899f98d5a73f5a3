package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/lichess-live-watch/internal/lichess"
	"github.com/park285/lichess-live-watch/internal/retry"
)

// EventSource is the global session-start feed; satisfied by
// *lichess.Stream.
type EventSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close()
}

// Discovery finds sessions to monitor: a point-in-time snapshot plus a
// long-lived event subscription.
type Discovery interface {
	ActiveGameIDs(ctx context.Context) ([]string, error)
	StreamEvents(ctx context.Context) (EventSource, error)
}

// WorkerFactory builds the worker for a newly discovered session.
type WorkerFactory func(gameID, speedHint string) *Worker

// Dispatcher unions the already-active snapshot with the live
// subscription and spawns exactly one tracked worker per session id.
type Dispatcher struct {
	discovery Discovery
	registry  *Registry
	newWorker WorkerFactory
	reconnect retry.Policy
	logger    *zap.Logger

	fatalCh chan error
	wg      sync.WaitGroup
}

func NewDispatcher(discovery Discovery, registry *Registry, newWorker WorkerFactory, reconnect retry.Policy, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		discovery: discovery,
		registry:  registry,
		newWorker: newWorker,
		reconnect: reconnect,
		logger:    logger,
		fatalCh:   make(chan error, 1),
	}
}

// Fatal escalates a process-fatal error from a worker; Run returns it.
func (d *Dispatcher) Fatal(err error) {
	select {
	case d.fatalCh <- err:
	default:
	}
}

// Run blocks until the context is canceled or a process-fatal error
// occurs; all spawned workers are joined before it returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ids, err := d.discovery.ActiveGameIDs(runCtx)
	if err != nil {
		if errors.Is(err, lichess.ErrUnauthorized) {
			return fmt.Errorf("list active games: %w", err)
		}
		d.logger.Warn("could not list active games", zap.Error(err))
	}
	for _, id := range ids {
		d.logger.Info("live game detected", zap.String("game", id))
		d.spawn(runCtx, id, "")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.watchEvents(runCtx) }()

	var runErr error
	select {
	case runErr = <-d.fatalCh:
		cancel()
		<-errCh
	case runErr = <-errCh:
		cancel()
	}
	d.wg.Wait()
	return runErr
}

func (d *Dispatcher) watchEvents(ctx context.Context) error {
	for {
		var src EventSource
		err := d.reconnect.Do(ctx, func(ctx context.Context) error {
			s, err := d.discovery.StreamEvents(ctx)
			if err != nil {
				if errors.Is(err, lichess.ErrUnauthorized) {
					// Invalid credential: no amount of retrying helps.
					return retry.Permanent(err)
				}
				d.logger.Warn("event stream connect failed", zap.Error(err))
				return err
			}
			src = s
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event stream: %w", err)
		}

		if err := d.readEvents(ctx, src); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		d.logger.Info("event stream closed, reconnecting")
	}
}

func (d *Dispatcher) readEvents(ctx context.Context, src EventSource) error {
	defer src.Close()
	for {
		line, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return nil // reconnect
			}
			d.logger.Warn("event stream read failed", zap.Error(err))
			return nil
		}

		var ev lichess.EventEnvelope
		if err := json.Unmarshal(line, &ev); err != nil {
			d.logger.Debug("skip malformed event", zap.Error(err))
			continue
		}
		if ev.Type != "gameStart" {
			continue
		}
		id := ev.GameID()
		if id == "" {
			continue
		}
		d.logger.Info("game started", zap.String("game", id), zap.String("speed", ev.Game.Speed))
		d.spawn(ctx, id, strings.TrimSpace(ev.Game.Speed))
	}
}

func (d *Dispatcher) spawn(ctx context.Context, gameID, speedHint string) {
	if !d.registry.Claim(gameID) {
		d.logger.Debug("session already monitored", zap.String("game", gameID))
		return
	}
	w := d.newWorker(gameID, speedHint)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.registry.Release(gameID)
		w.Run(ctx)
	}()
}
