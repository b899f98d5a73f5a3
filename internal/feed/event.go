// Package feed abstracts "get the next state update for a game" over
// the competing lichess transports: per-game NDJSON streams with
// endpoint failover, and the slower ongoing-games export poll.
package feed

import "context"

type Kind int

const (
	// KindFull carries the complete move list plus participants.
	KindFull Kind = iota
	// KindIncremental carries the move list only.
	KindIncremental
	// KindEnded signals a cleanly closed feed.
	KindEnded
)

// Event is one state update. Moves are notation tokens in arrival order;
// stream feeds emit UCI, the export emits SAN.
type Event struct {
	Kind       Kind
	Moves      []string
	White      string
	Black      string
	Speed      string
	Status     string
	InitialFen string
}

// Handle yields events for one game until the feed ends. Next returns
// io.EOF after the underlying source closes.
type Handle interface {
	Next(ctx context.Context) (Event, error)
	Name() string
	Close()
}

// LineSource is a raw NDJSON line feed; satisfied by *lichess.Stream.
type LineSource interface {
	Next(ctx context.Context) ([]byte, error)
	Name() string
	Close()
}
