// streamwatch connects to the event stream and logs every inbound
// event to the console.
// Usage: go run ./cmd/streamwatch --config configs/streamwatch.example.yaml
//
// Required environment variables (a .env file is honored):
//
//	EVENTSTREAM_SECRET - Shared secret for URL signing
//	EVENTSTREAM_TOKEN  - Bearer token for the stream session
//	EVENTSTREAM_KEY    - AES key for frame encryption (16/24/32 bytes)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/detectforge/eventstream/internal/auth"
	"github.com/detectforge/eventstream/internal/codec"
	"github.com/detectforge/eventstream/internal/config"
	"github.com/detectforge/eventstream/internal/connection"
	"github.com/detectforge/eventstream/internal/dispatch"
	"github.com/detectforge/eventstream/internal/event"
	"github.com/detectforge/eventstream/internal/metrics"
	"github.com/detectforge/eventstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamwatch.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("streamwatch", version.String())
		return
	}

	// Setup logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// A .env file is optional; real environments set variables directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", "error", err)
	}

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	secret := os.Getenv("EVENTSTREAM_SECRET")
	token := os.Getenv("EVENTSTREAM_TOKEN")
	key := os.Getenv("EVENTSTREAM_KEY")
	if secret == "" || token == "" || key == "" {
		logger.Error("missing credentials",
			"secret_set", secret != "",
			"token_set", token != "",
			"key_set", key != "",
		)
		logger.Info("Set environment variables: EVENTSTREAM_SECRET, EVENTSTREAM_TOKEN and EVENTSTREAM_KEY")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Create URL signer
	signer, err := auth.NewSigner([]byte(secret))
	if err != nil {
		logger.Error("failed to create signer", "error", err)
		os.Exit(1)
	}

	// Create message codec
	cdc, err := codec.New([]byte(key), codec.WithCompressionThreshold(cfg.Codec.CompressionThreshold))
	if err != nil {
		logger.Error("failed to create codec", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector(metrics.WithMaxPending(cfg.Connection.MaxPendingMessages))

	// Create Event Dispatcher with logging handlers for every event type
	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		HandlerRetries: cfg.Dispatch.HandlerRetries,
		RetryDelay:     cfg.Dispatch.RetryDelay,
	}, cdc, collector, logger)

	dispatcher.Register(event.TypeDetectionCreated, func(ctx context.Context, ev event.Event) error {
		p := ev.Payload.(event.DetectionCreated)
		logger.Info("detection created",
			"rule_id", p.RuleID,
			"name", p.Name,
			"severity", p.Severity,
			"platform", p.Platform,
			"priority", ev.Priority,
		)
		return nil
	})
	dispatcher.Register(event.TypeIntelligenceProcessed, func(ctx context.Context, ev event.Event) error {
		p := ev.Payload.(event.IntelligenceProcessed)
		logger.Info("intelligence processed",
			"report_id", p.ReportID,
			"status", p.Status,
			"indicators", p.IndicatorCount,
			"rules_generated", p.RulesGenerated,
		)
		return nil
	})
	dispatcher.Register(event.TypeCoverageUpdated, func(ctx context.Context, ev event.Event) error {
		p := ev.Payload.(event.CoverageUpdated)
		logger.Info("coverage updated",
			"technique_id", p.TechniqueID,
			"tactic", p.Tactic,
			"covered", p.Covered,
			"rule_count", p.RuleCount,
		)
		return nil
	})
	dispatcher.Register(event.TypeTranslationComplete, func(ctx context.Context, ev event.Event) error {
		p := ev.Payload.(event.TranslationComplete)
		logger.Info("translation complete",
			"translation_id", p.TranslationID,
			"rule_id", p.RuleID,
			"source", p.SourcePlatform,
			"target", p.TargetPlatform,
			"status", p.Status,
		)
		return nil
	})
	dispatcher.Register(event.TypeError, func(ctx context.Context, ev event.Event) error {
		p := ev.Payload.(event.ErrorInfo)
		logger.Error("server error event",
			"code", p.Code,
			"message", p.Message,
			"context", p.Context,
		)
		return nil
	})

	// Create Connection Manager
	connCfg := connection.DefaultManagerConfig()
	connCfg.BaseURL = cfg.Endpoint.BaseURL
	connCfg.ClientID = uuid.NewString()
	connCfg.ConnectTimeout = cfg.Connection.ConnectTimeout
	connCfg.HeartbeatInterval = cfg.Connection.HeartbeatInterval
	connCfg.WriteTimeout = cfg.Connection.WriteTimeout
	connCfg.MaxReconnectAttempts = cfg.Connection.MaxReconnectAttempts
	connCfg.ReconnectBaseDelay = cfg.Connection.ReconnectBaseDelay
	connCfg.ReconnectMaxDelay = cfg.Connection.ReconnectMaxDelay

	mgr := connection.NewManager(connCfg, connection.Deps{
		Signer:  signer,
		Codec:   cdc,
		Tokens:  func() (string, error) { return token, nil },
		Metrics: collector,
		Frames:  dispatcher,
	}, logger)

	mgr.OnConnect(func() {
		logger.Info("stream connected", "client_id", connCfg.ClientID)
	})
	mgr.OnDisconnect(func(err error) {
		if err != nil {
			logger.Warn("stream disconnected", "error", err)
		}
	})
	mgr.OnError(func(err error) {
		logger.Error("stream failed", "error", err)
		cancel()
	})

	logger.Info("connecting", "endpoint", cfg.Endpoint.BaseURL, "client_id", connCfg.ClientID)
	if err := mgr.Connect(ctx, token); err != nil {
		// The manager keeps retrying with backoff; a hard config error
		// surfaces through OnError and cancels the context.
		logger.Warn("initial connect failed, retrying in background", "error", err)
	}

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	mgr.Disconnect()

	snap := mgr.Metrics()
	stats := dispatcher.Stats()
	logger.Info("session summary",
		"messages", snap.MessageCount,
		"errors", snap.ErrorCount,
		"reconnects", snap.ReconnectCount,
		"avg_latency", snap.AvgLatency,
		"success_rate", snap.SuccessRate,
		"frames_received", stats.FramesReceived,
		"events_dispatched", stats.EventsDispatched,
		"decode_errors", stats.DecodeErrors,
	)

	logger.Info("shutdown complete")
}
