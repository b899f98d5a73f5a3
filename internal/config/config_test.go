package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LICHESS_TOKEN", "tok")
	t.Setenv("STOCKFISH_PATH", "/usr/bin/stockfish")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LichessBaseURL != "https://lichess.org" {
		t.Fatalf("base url: %q", cfg.LichessBaseURL)
	}
	if cfg.AccountMode != "board" {
		t.Fatalf("account mode: %q", cfg.AccountMode)
	}
	if cfg.BudgetFastMillis != 300 || cfg.BudgetStandardMillis != 800 {
		t.Fatalf("budgets: %d %d", cfg.BudgetFastMillis, cfg.BudgetStandardMillis)
	}
	if cfg.FeedOpenAttempts != 12 || cfg.ExportPollMillis != 1000 {
		t.Fatalf("feed defaults: %d %d", cfg.FeedOpenAttempts, cfg.ExportPollMillis)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCOUNT_MODE", "BOT")
	t.Setenv("ENGINE_THREADS", "8")
	t.Setenv("BUDGET_FAST_MS", "200")
	t.Setenv("LICHESS_USERNAME", "alice")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccountMode != "bot" {
		t.Fatalf("account mode: %q", cfg.AccountMode)
	}
	if cfg.EngineThreads != 8 || cfg.BudgetFastMillis != 200 {
		t.Fatalf("overrides: %d %d", cfg.EngineThreads, cfg.BudgetFastMillis)
	}
	if cfg.Username != "alice" {
		t.Fatalf("username: %q", cfg.Username)
	}
}

func TestLoadRejectsMissingToken(t *testing.T) {
	t.Setenv("LICHESS_TOKEN", "")
	t.Setenv("STOCKFISH_PATH", "/usr/bin/stockfish")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error without a token")
	}
}

func TestLoadRejectsMissingEnginePath(t *testing.T) {
	t.Setenv("LICHESS_TOKEN", "tok")
	t.Setenv("STOCKFISH_PATH", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error without an engine path")
	}
}

func TestLoadRejectsBadAccountMode(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCOUNT_MODE", "spectator")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for an unknown account mode")
	}
}

func TestLoadIgnoresUnparsableNumbers(t *testing.T) {
	setRequired(t)
	t.Setenv("ENGINE_THREADS", "lots")
	t.Setenv("BUDGET_STANDARD_MS", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EngineThreads != 2 || cfg.BudgetStandardMillis != 800 {
		t.Fatalf("defaults not preserved: %d %d", cfg.EngineThreads, cfg.BudgetStandardMillis)
	}
}
