package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	LichessBaseURL string
	LichessToken   string

	Username    string
	AccountMode string // "board" or "bot"

	StockfishPath  string
	EngineThreads  int
	EngineHashMB   int
	EngineCapacity int

	BudgetFastMillis     int
	BudgetStandardMillis int

	FeedOpenAttempts    int
	FeedOpenDelayMillis int
	ExportPollMillis    int

	EventReconnectAttempts int

	MessageTemplateDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		LichessBaseURL:         "https://lichess.org",
		AccountMode:            "board",
		EngineThreads:          2,
		EngineHashMB:           128,
		BudgetFastMillis:       300,
		BudgetStandardMillis:   800,
		FeedOpenAttempts:       12,
		FeedOpenDelayMillis:    1000,
		ExportPollMillis:       1000,
		EventReconnectAttempts: 5,
	}

	if v := strings.TrimSpace(os.Getenv("LICHESS_BASE_URL")); v != "" {
		cfg.LichessBaseURL = v
	}
	cfg.LichessToken = strings.TrimSpace(os.Getenv("LICHESS_TOKEN"))
	cfg.Username = strings.TrimSpace(os.Getenv("LICHESS_USERNAME"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("ACCOUNT_MODE"))); v != "" {
		if v != "board" && v != "bot" {
			return nil, errors.New("ACCOUNT_MODE must be 'board' or 'bot'")
		}
		cfg.AccountMode = v
	}

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_CAPACITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineCapacity = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("BUDGET_FAST_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BudgetFastMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BUDGET_STANDARD_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BudgetStandardMillis = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("FEED_OPEN_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FeedOpenAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("FEED_OPEN_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FeedOpenDelayMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EXPORT_POLL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExportPollMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EVENT_RECONNECT_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EventReconnectAttempts = n
		}
	}

	cfg.MessageTemplateDir = strings.TrimSpace(os.Getenv("MSG_TEMPLATE_DIR"))

	if cfg.LichessToken == "" {
		return nil, errors.New("LICHESS_TOKEN is required")
	}
	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}

	return cfg, nil
}
