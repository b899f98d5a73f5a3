// Package presenter is the terminal sink for arbiter reports and worker
// state transitions.
package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/lichess-live-watch/internal/arbiter"
	"github.com/park285/lichess-live-watch/internal/msgcat"
	"github.com/park285/lichess-live-watch/internal/watcher"
)

type Console struct {
	cat     *msgcat.Catalog
	baseURL string
	logger  *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

func NewConsole(cat *msgcat.Catalog, baseURL string, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		cat:     cat,
		baseURL: strings.TrimRight(baseURL, "/"),
		out:     out,
		logger:  logger,
	}
}

func (c *Console) Report(r arbiter.Report) {
	data := map[string]any{
		"GameID":      r.GameID,
		"Opponent":    r.Opponent,
		"MoveNumber":  r.MoveNumber,
		"Primary":     movePrefix(r) + orNA(r.Primary),
		"Alternative": altText(r),
		"Link":        fmt.Sprintf("%s/%s", c.baseURL, r.GameID),
	}

	var key string
	switch r.Kind {
	case arbiter.ReportYourTurn:
		key = "watch.your_turn"
	case arbiter.ReportNoCandidate:
		key = "watch.no_candidate"
	case arbiter.ReportWaiting:
		key = "watch.waiting"
	case arbiter.ReportGameOver:
		key = "watch.game_over"
	default:
		return
	}

	text, err := c.cat.Render(key, data)
	if err != nil {
		c.logger.Error("render report", zap.String("key", key), zap.Error(err))
		return
	}
	c.mu.Lock()
	fmt.Fprintf(c.out, "\n%s\n", text)
	c.mu.Unlock()
}

func (c *Console) Transition(gameID string, from, to watcher.State) {
	c.logger.Debug("session transition",
		zap.String("game", gameID),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

// movePrefix renders the full-move prefix the way game notation does:
// "12. " for white, "12... " for black.
func movePrefix(r arbiter.Report) string {
	if r.Kind != arbiter.ReportYourTurn {
		return ""
	}
	if r.WhiteToMove {
		return fmt.Sprintf("%d. ", r.MoveNumber)
	}
	return fmt.Sprintf("%d... ", r.MoveNumber)
}

func altText(r arbiter.Report) string {
	if strings.TrimSpace(r.Alternative) == "" {
		return "N/A"
	}
	return movePrefix(r) + r.Alternative
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
