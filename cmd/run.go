package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/relayd/internal/channels/telegram"
	"github.com/nextlevelbuilder/relayd/internal/config"
	"github.com/nextlevelbuilder/relayd/internal/httpapi"
	"github.com/nextlevelbuilder/relayd/internal/relay"
	"github.com/nextlevelbuilder/relayd/internal/store"
	filestore "github.com/nextlevelbuilder/relayd/internal/store/file"
	redisstore "github.com/nextlevelbuilder/relayd/internal/store/redis"
)

func runRelay() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Local development: load .env before config reads the environment.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env")
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Telegram.Token == "" {
		slog.Error("TELEGRAM_TOKEN is not set")
		os.Exit(1)
	}
	if cfg.Keys.MasterSecret == "" {
		slog.Warn("MASTER_API_SECRET is not set; key admin endpoints are disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, fileBackend := buildKeyBackend(ctx, cfg.Keys)
	if err := fileBackend.Watch(ctx); err != nil {
		slog.Warn("fallback file watcher unavailable", "error", err)
	}
	keySvc := store.NewService(backend)

	tg, err := telegram.New(cfg.Telegram, cfg.Groups)
	if err != nil {
		slog.Error("failed to initialize telegram channel", "error", err)
		os.Exit(1)
	}

	engine := relay.NewEngine(tg, relay.Options{
		OriginGroup:    cfg.Groups.First,
		SecondGroup:    cfg.Groups.Second,
		ThirdGroup:     cfg.Groups.Third,
		ReplyWindow:    cfg.Relay.ReplyWindow(),
		StabilizeDelay: cfg.Relay.StabilizeDelay(),
		DebounceDelay:  cfg.Relay.DebounceDelay(),
		WatchDuration:  cfg.Relay.WatchDuration(),
		APITimeout:     cfg.Relay.APITimeout(),
	})
	tg.SetEngine(engine)
	engine.StartJanitor(ctx, 30*time.Second)

	server := httpapi.NewServer(cfg.Server, engine, keySvc, cfg.Keys.MasterSecret)

	slog.Info("relayd starting",
		"version", Version,
		"origin_group", cfg.Groups.First,
		"second_group", cfg.Groups.Second,
		"third_group", cfg.Groups.Third,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		if err := tg.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return tg.Stop(context.Background())
	})
	if janitor, ok := store.NewJanitor(keySvc, cfg.Keys.SweepSchedule); ok {
		g.Go(func() error {
			janitor.Run(gctx)
			return nil
		})
	} else {
		slog.Warn("invalid key sweep schedule, sweep disabled", "schedule", cfg.Keys.SweepSchedule)
	}

	if err := g.Wait(); err != nil {
		slog.Error("relayd exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("relayd stopped")
}

// buildKeyBackend wires the API-key persistence chain: Redis fronted by the
// local JSON fallback file when REDIS_URL is set, the file alone otherwise.
// The file backend is also returned directly so the caller can start its
// change watcher.
func buildKeyBackend(ctx context.Context, cfg config.KeysConfig) (store.KeyStore, *filestore.KeyStore) {
	fileBackend, err := filestore.New(cfg.FallbackFile)
	if err != nil {
		slog.Error("failed to open fallback key file", "path", cfg.FallbackFile, "error", err)
		os.Exit(1)
	}

	if cfg.RedisURL == "" {
		slog.Info("api keys backed by local file", "path", cfg.FallbackFile)
		return fileBackend, fileBackend
	}

	redisBackend, err := redisstore.New(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unreachable, api keys fall back to local file", "error", err)
		return fileBackend, fileBackend
	}

	slog.Info("api keys backed by redis with file failover", "fallback", cfg.FallbackFile)
	return store.NewFailoverStore(redisBackend, fileBackend), fileBackend
}
