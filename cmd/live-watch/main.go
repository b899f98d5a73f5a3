package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/lichess-live-watch/internal/arbiter"
	appcfg "github.com/park285/lichess-live-watch/internal/config"
	"github.com/park285/lichess-live-watch/internal/domain"
	"github.com/park285/lichess-live-watch/internal/engine"
	"github.com/park285/lichess-live-watch/internal/feed"
	"github.com/park285/lichess-live-watch/internal/lichess"
	"github.com/park285/lichess-live-watch/internal/msgcat"
	"github.com/park285/lichess-live-watch/internal/obslog"
	"github.com/park285/lichess-live-watch/internal/presenter"
	"github.com/park285/lichess-live-watch/internal/retry"
	"github.com/park285/lichess-live-watch/internal/watcher"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	logger := obslog.L()
	defer logger.Sync() //nolint:errcheck

	client := lichess.NewClient(cfg.LichessBaseURL,
		lichess.WithHeaderProvider(lichess.BearerHeaders(cfg.LichessToken)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	username := cfg.Username
	if username == "" {
		acctCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		info, err := client.Account(acctCtx)
		cancel()
		if err != nil {
			log.Fatalf("username not configured and account lookup failed: %v", err)
		}
		username = info.Username
		logger.Info("username resolved from token", zap.String("username", username))
	}

	analyzer, err := engine.NewAnalyzer(engine.Config{
		BinaryPath: cfg.StockfishPath,
		Threads:    cfg.EngineThreads,
		HashMB:     cfg.EngineHashMB,
		Capacity:   cfg.EngineCapacity,
	})
	if err != nil {
		log.Fatalf("engine init error: %v", err)
	}
	defer analyzer.Close() //nolint:errcheck

	budgets := arbiter.Budgets{
		Fast:     time.Duration(cfg.BudgetFastMillis) * time.Millisecond,
		Standard: time.Duration(cfg.BudgetStandardMillis) * time.Millisecond,
	}
	scheduler := arbiter.NewScheduler(analyzer, budgets, logger)

	cat, err := msgcat.New(cfg.MessageTemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}
	sink := presenter.NewConsole(cat, cfg.LichessBaseURL, os.Stdout, logger)

	mode := domain.AccountMode(cfg.AccountMode)
	opener := feed.NewOpener(
		feed.ClientOpenFunc(client),
		cfg.FeedOpenAttempts,
		time.Duration(cfg.FeedOpenDelayMillis)*time.Millisecond,
		logger,
	)
	pollInterval := time.Duration(cfg.ExportPollMillis) * time.Millisecond

	registry := watcher.NewRegistry()
	var dispatcher *watcher.Dispatcher
	newWorker := func(gameID, speedHint string) *watcher.Worker {
		return watcher.NewWorker(watcher.WorkerConfig{
			GameID:    gameID,
			RunID:     uuid.NewString(),
			Username:  username,
			Mode:      mode,
			SpeedHint: speedHint,
			OpenStream: func(ctx context.Context) (feed.Handle, error) {
				return opener.Open(ctx, gameID, mode)
			},
			OpenPoll: func() feed.Handle {
				return feed.NewExportPoller(client, username, gameID, pollInterval, logger)
			},
			Scheduler: scheduler,
			Sink:      sink,
			Fatal:     func(err error) { dispatcher.Fatal(err) },
			Logger:    logger,
		})
	}
	dispatcher = watcher.NewDispatcher(
		lichessDiscovery{client},
		registry,
		newWorker,
		retry.Policy{Attempts: cfg.EventReconnectAttempts},
		logger,
	)

	logger.Info("live monitoring started",
		zap.String("username", username),
		zap.String("mode", string(mode)))

	if err := dispatcher.Run(ctx); err != nil {
		logger.Error("watcher stopped", zap.Error(err))
		stop()
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}
}

// lichessDiscovery adapts the concrete client to the dispatcher's
// discovery contract.
type lichessDiscovery struct {
	c *lichess.Client
}

func (d lichessDiscovery) ActiveGameIDs(ctx context.Context) ([]string, error) {
	ids, err := d.c.ActiveGameIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := ids[:0]
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func (d lichessDiscovery) StreamEvents(ctx context.Context) (watcher.EventSource, error) {
	s, err := d.c.StreamEvents(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}
