package lichess

import "strings"

// Wire DTOs for the lichess API. All schemas belong to the external
// service and are parsed defensively: missing fields degrade to zero
// values, unknown fields are ignored.

type AccountInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Title    string `json:"title"`
}

type NowPlayingGame struct {
	GameID   string `json:"gameId"`
	FullID   string `json:"fullId"`
	Speed    string `json:"speed"`
	IsMyTurn bool   `json:"isMyTurn"`
}

type NowPlayingResponse struct {
	NowPlaying []NowPlayingGame `json:"nowPlaying"`
}

// EventEnvelope is one line of the global event stream.
type EventEnvelope struct {
	Type string `json:"type"`
	Game struct {
		GameID string `json:"gameId"`
		ID     string `json:"id"`
		Speed  string `json:"speed"`
	} `json:"game"`
}

// GameID tolerates the two id spellings the event feed uses.
func (e EventEnvelope) GameID() string {
	if id := strings.TrimSpace(e.Game.GameID); id != "" {
		return id
	}
	return strings.TrimSpace(e.Game.ID)
}

// Player is a participant as reported by the game stream.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	AILevel int    `json:"aiLevel"`
	User    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

// DisplayName prefers name over id; AI opponents have neither.
func (p Player) DisplayName() string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(p.User.Name); n != "" {
		return n
	}
	if id := strings.TrimSpace(p.ID); id != "" {
		return id
	}
	if id := strings.TrimSpace(p.User.ID); id != "" {
		return id
	}
	if p.AILevel > 0 {
		return "Stockfish AI"
	}
	return "Unknown"
}

// GameStreamLine is one line of a per-game stream. gameFull lines carry
// participants plus an embedded state; gameState lines carry moves only.
type GameStreamLine struct {
	Type  string `json:"type"`
	White Player `json:"white"`
	Black Player `json:"black"`
	Speed string `json:"speed"`
	State struct {
		Moves  string `json:"moves"`
		Status string `json:"status"`
	} `json:"state"`
	Moves  string `json:"moves"`
	Status string `json:"status"`
}

// ExportGame is one line of the ongoing-games export.
type ExportGame struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Speed      string `json:"speed"`
	Moves      string `json:"moves"`
	InitialFen string `json:"initialFen"`
	Players    struct {
		White Player `json:"white"`
		Black Player `json:"black"`
	} `json:"players"`
}

// StatusInProgress reports whether a lichess status string still denotes
// a running game.
func StatusInProgress(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "created", "started":
		return true
	default:
		return false
	}
}

// FastSpeed reports whether a lichess speed classification maps to the
// short analysis budget.
func FastSpeed(speed string) bool {
	switch strings.ToLower(strings.TrimSpace(speed)) {
	case "ultrabullet", "bullet", "blitz":
		return true
	default:
		return false
	}
}
