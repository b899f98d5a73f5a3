package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/lichess-live-watch/internal/domain"
	"github.com/park285/lichess-live-watch/internal/lichess"
	"github.com/park285/lichess-live-watch/internal/retry"
)

const (
	defaultOpenAttempts = 12
	defaultOpenDelay    = time.Second
)

// Candidates returns the streaming transport kinds to try for the given
// account mode, in preference order.
func Candidates(mode domain.AccountMode) []string {
	if mode == domain.ModeBot {
		return []string{"bot", "board"}
	}
	return []string{"board", "bot"}
}

// OpenFunc opens one streaming transport attempt for a game.
type OpenFunc func(ctx context.Context, kind, gameID string) (LineSource, error)

// ClientOpenFunc adapts the lichess client to OpenFunc.
func ClientOpenFunc(c *lichess.Client) OpenFunc {
	return func(ctx context.Context, kind, gameID string) (LineSource, error) {
		s, err := c.StreamGame(ctx, kind, gameID)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// OpenFailure carries the per-candidate causes accumulated across all
// failover passes.
type OpenFailure struct {
	GameID string
	Causes []string
	auth   bool
}

func (e *OpenFailure) Error() string {
	return fmt.Sprintf("open feed for %s: all candidates failed: %s", e.GameID, strings.Join(e.Causes, "; "))
}

// AuthRejected reports whether every candidate was rejected for missing
// token scope rather than transiently.
func (e *OpenFailure) AuthRejected() bool { return e.auth }

// Opener runs the streaming failover: each pass cycles through all
// candidates before sleeping, up to the attempt budget.
type Opener struct {
	open     OpenFunc
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

func NewOpener(open OpenFunc, attempts int, delay time.Duration, logger *zap.Logger) *Opener {
	if attempts <= 0 {
		attempts = defaultOpenAttempts
	}
	if delay <= 0 {
		delay = defaultOpenDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{open: open, attempts: attempts, delay: delay, logger: logger}
}

// Open tries every candidate per pass and returns the first stream that
// answers 2xx. On exhaustion it returns an *OpenFailure listing every
// cause; the caller decides whether export polling can take over.
func (o *Opener) Open(ctx context.Context, gameID string, mode domain.AccountMode) (Handle, error) {
	candidates := Candidates(mode)
	failure := &OpenFailure{GameID: gameID, auth: true}

	for pass := 1; pass <= o.attempts; pass++ {
		for _, kind := range candidates {
			src, err := o.open(ctx, kind, gameID)
			if err == nil {
				return NewStreamHandle(src, o.logger), nil
			}
			if !errors.Is(err, lichess.ErrUnauthorized) {
				failure.auth = false
			}
			failure.Causes = append(failure.Causes, fmt.Sprintf("pass %d %s: %v", pass, kind, err))
			o.logger.Debug("stream candidate failed",
				zap.String("game", gameID),
				zap.String("kind", kind),
				zap.Int("pass", pass),
				zap.Error(err))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		if pass == o.attempts {
			break
		}
		if err := retry.Sleep(ctx, o.delay); err != nil {
			return nil, err
		}
	}
	return nil, failure
}
