package domain

import "strings"

// Color is the side to move or the monitored side's color.
type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// AccountMode classifies the monitored account and decides which
// streaming transports are preferred for its games.
type AccountMode string

const (
	ModeBoard AccountMode = "board"
	ModeBot   AccountMode = "bot"
)

// TimeClass selects the analysis budget for a game.
type TimeClass string

const (
	TimeClassFast     TimeClass = "fast"
	TimeClassStandard TimeClass = "standard"
)

// SessionContext is per-game metadata, immutable once the participants
// are known.
type SessionContext struct {
	GameID    string
	White     string
	Black     string
	Username  string
	UserColor Color
	TimeClass TimeClass
	Mode      AccountMode
}

// Complete reports whether both participants are known. Stream feeds
// only reveal them on the first full-state line.
func (c SessionContext) Complete() bool {
	return strings.TrimSpace(c.White) != "" && strings.TrimSpace(c.Black) != ""
}

// Opponent returns the participant the monitored user is playing.
func (c SessionContext) Opponent() string {
	if c.UserColor == White {
		return c.Black
	}
	return c.White
}

// WithParticipants resolves the monitored color from the participant
// names. A user appearing as neither is assumed to be black, matching
// the name-or-fallback behavior of the upstream feeds.
func (c SessionContext) WithParticipants(white, black string) SessionContext {
	c.White = strings.TrimSpace(white)
	c.Black = strings.TrimSpace(black)
	if strings.EqualFold(c.White, strings.TrimSpace(c.Username)) {
		c.UserColor = White
	} else {
		c.UserColor = Black
	}
	return c
}
