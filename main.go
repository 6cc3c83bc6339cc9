// Command backend is the main entrypoint for the DachiStream service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the dachistream engine, the Twitch chat ingest, and the
//     stored-token refresher.
//   - Exposes an HTTP server with /healthz, /status, /metrics, and the
//     dachistream log/state/control endpoints.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/dachi-stream/backend/ai"
	"github.com/onnwee/dachi-stream/backend/chat"
	"github.com/onnwee/dachi-stream/backend/config"
	"github.com/onnwee/dachi-stream/backend/dachistream"
	"github.com/onnwee/dachi-stream/backend/db"
	"github.com/onnwee/dachi-stream/backend/oauth"
	"github.com/onnwee/dachi-stream/backend/server"
	"github.com/onnwee/dachi-stream/backend/telemetry"
	"github.com/onnwee/dachi-stream/backend/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("dachi-stream", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	store := db.NewStore(database)
	if err := store.SeedDefaultSettings(context.Background(), cfg.DefaultCycleIntervalSeconds, cfg.DefaultSelectionStrategy); err != nil {
		slog.Warn("failed to seed default settings", slog.Any("err", err))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := dachistream.New(store)
	bcast := server.NewBroadcaster()

	// Chat transport (optional: the engine still cycles without it, fed by
	// whatever pushes messages in).
	var speaker ai.Speaker
	ingest, err := chat.NewIngest(ctx, database, store, engine)
	if err != nil {
		slog.Info("chat ingest disabled", slog.Any("err", err))
	} else {
		speaker = ingest
		go ingest.Run(ctx)
	}

	// Reply generation callback. Without an API key selections are logged but
	// no reply is produced.
	var onSelected dachistream.SelectedFunc
	if cfg.OpenAIAPIKey != "" {
		responder := ai.NewResponder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, speaker, engine)
		onSelected = responder.Respond
	} else {
		slog.Info("OPENAI_API_KEY not set; replies disabled")
	}

	if err := engine.Start(ctx, onSelected, bcast.Publish); err != nil {
		slog.Error("failed to start dachistream", slog.Any("err", err))
		os.Exit(1)
	}
	defer engine.Stop()

	// Keep the stored bot chat token fresh.
	oauth.StartRefresher(ctx, database, "twitch", 5*time.Minute, 15*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		tok, err := twitchapi.RefreshToken(rctx, cfg.TwitchClientID, cfg.TwitchClientSecret, refreshToken)
		if err != nil {
			return "", "", time.Time{}, "", err
		}
		return tok.AccessToken, tok.RefreshToken, tok.Expiry, "", nil
	})

	// HTTP server (health/status/metrics/controls)
	go func() {
		if err := server.Start(ctx, database, engine, bcast, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
