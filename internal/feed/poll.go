package feed

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/park285/lichess-live-watch/internal/lichess"
	"github.com/park285/lichess-live-watch/internal/retry"
)

const (
	defaultPollInterval = time.Second
	rateLimitPause      = 15 * time.Second
	pollFailureLimit    = 5
)

// ExportFetcher is the snapshot query the poller runs; satisfied by
// *lichess.Client.
type ExportFetcher interface {
	ExportOngoing(ctx context.Context, username string) ([]lichess.ExportGame, error)
}

// ExportPoller is the slowest, most compatible transport: it re-fetches
// the user's ongoing-games export on a fixed interval and emits one full
// snapshot per tick. It stops once the game leaves the export or its
// status is no longer in progress.
type ExportPoller struct {
	fetch    ExportFetcher
	username string
	gameID   string
	interval time.Duration
	logger   *zap.Logger

	started bool
	ended   bool
}

func NewExportPoller(fetch ExportFetcher, username, gameID string, interval time.Duration, logger *zap.Logger) *ExportPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportPoller{
		fetch:    fetch,
		username: username,
		gameID:   gameID,
		interval: interval,
		logger:   logger,
	}
}

func (p *ExportPoller) Name() string { return "export-poll" }
func (p *ExportPoller) Close()       { p.ended = true }

func (p *ExportPoller) Next(ctx context.Context) (Event, error) {
	if p.ended {
		return Event{}, io.EOF
	}

	failures := 0
	for {
		if p.started {
			if err := retry.Sleep(ctx, p.interval); err != nil {
				return Event{}, err
			}
		}
		p.started = true

		games, err := p.fetch.ExportOngoing(ctx, p.username)
		if err != nil {
			if errors.Is(err, lichess.ErrRateLimited) {
				p.logger.Warn("export poll rate limited", zap.String("game", p.gameID), zap.Duration("pause", rateLimitPause))
				if err := retry.Sleep(ctx, rateLimitPause); err != nil {
					return Event{}, err
				}
				continue
			}
			failures++
			if failures >= pollFailureLimit {
				return Event{}, err
			}
			p.logger.Debug("export poll failed", zap.String("game", p.gameID), zap.Int("failures", failures), zap.Error(err))
			continue
		}
		failures = 0

		g, ok := findGame(games, p.gameID)
		if !ok {
			// The game left the ongoing export: it is over.
			p.ended = true
			return Event{}, io.EOF
		}

		if !lichess.StatusInProgress(g.Status) {
			p.ended = true
		}
		return Event{
			Kind:       KindFull,
			Moves:      splitMoves(g.Moves),
			White:      g.Players.White.DisplayName(),
			Black:      g.Players.Black.DisplayName(),
			Speed:      g.Speed,
			Status:     g.Status,
			InitialFen: g.InitialFen,
		}, nil
	}
}

func findGame(games []lichess.ExportGame, id string) (lichess.ExportGame, bool) {
	for _, g := range games {
		if g.ID == id {
			return g, true
		}
	}
	return lichess.ExportGame{}, false
}
