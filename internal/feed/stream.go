package feed

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/lichess-live-watch/internal/lichess"
)

// streamHandle decodes per-game NDJSON stream lines into Events.
// Unknown line types and malformed payloads are skipped, never fatal.
type streamHandle struct {
	src    LineSource
	logger *zap.Logger
}

// NewStreamHandle wraps an open game stream.
func NewStreamHandle(src LineSource, logger *zap.Logger) Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &streamHandle{src: src, logger: logger}
}

func (h *streamHandle) Name() string { return h.src.Name() }
func (h *streamHandle) Close()       { h.src.Close() }

func (h *streamHandle) Next(ctx context.Context) (Event, error) {
	for {
		line, err := h.src.Next(ctx)
		if err != nil {
			return Event{}, err
		}

		var payload lichess.GameStreamLine
		if err := json.Unmarshal(line, &payload); err != nil {
			h.logger.Debug("skip malformed stream line", zap.String("feed", h.src.Name()), zap.Error(err))
			continue
		}

		switch payload.Type {
		case "gameFull":
			return Event{
				Kind:   KindFull,
				Moves:  splitMoves(payload.State.Moves),
				White:  payload.White.DisplayName(),
				Black:  payload.Black.DisplayName(),
				Speed:  payload.Speed,
				Status: payload.State.Status,
			}, nil
		case "gameState":
			return Event{
				Kind:   KindIncremental,
				Moves:  splitMoves(payload.Moves),
				Status: payload.Status,
			}, nil
		default:
			// chatLine, opponentGone and friends carry no position.
			continue
		}
	}
}

func splitMoves(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
