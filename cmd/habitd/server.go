package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/habitd/internal/api"
	"github.com/kalambet/habitd/internal/config"
	"github.com/kalambet/habitd/internal/engine"
	"github.com/kalambet/habitd/internal/extract"
	"github.com/kalambet/habitd/internal/fault"
	"github.com/kalambet/habitd/internal/llm"
	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/reminder"
	"github.com/kalambet/habitd/internal/session"
	"github.com/kalambet/habitd/internal/storage"
	"github.com/kalambet/habitd/internal/tabular"
	"github.com/kalambet/habitd/internal/transcribe"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the habitd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show habitd server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "habitd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	sessions := session.NewFallbackStore(store.Sessions())
	profiles := profile.NewFallbackStore(store.Profiles())
	writer := tabular.NewWriter(store.Tables())

	// LLM extraction and voice transcription are both optional: a missing
	// key degrades the matching feature instead of failing startup.
	var chatter llm.Chatter
	client, err := llm.New(cfg.LLM.OpenRouterAPIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Timeout)
	switch {
	case err == nil:
		chatter = client
		slog.Info("LLM extraction enabled", "model", cfg.LLM.Model)
	case errors.Is(err, fault.ErrNotConfigured):
		// logged below once the extractor reports itself unconfigured
	default:
		return fmt.Errorf("initializing LLM client: %w", err)
	}

	ex := extract.New(chatter)
	if !ex.Configured() {
		slog.Warn("LLM extraction disabled: no API key; entries will be saved as raw text")
	}

	var transcriber transcribe.Transcriber
	whisper, err := transcribe.NewWhisper(cfg.Transcribe.OpenAIAPIKey, cfg.Transcribe.Model, cfg.Transcribe.Timeout)
	switch {
	case err == nil:
		transcriber = whisper
		slog.Info("voice transcription enabled", "model", cfg.Transcribe.Model)
	case errors.Is(err, fault.ErrNotConfigured):
		slog.Warn("voice transcription disabled: no API key")
	default:
		return fmt.Errorf("initializing transcriber: %w", err)
	}

	eng := engine.New(sessions, profiles, ex, transcriber, writer, engine.Config{
		SessionTTL:       cfg.Session.TTL,
		OperationTimeout: cfg.Session.OperationTimeout,
	})
	eng.SetScheduler(reminder.NewScheduler(store))

	handler := api.NewAppHandler(api.AppDeps{
		Engine: eng,
		Token:  cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("habitd listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Reminder.NotifyURL != "" {
		notifier := reminder.NewWebhookNotifier(cfg.Reminder.NotifyURL, cfg.Reminder.NotifyToken, nil)
		worker := reminder.NewWorker(store, profiles, notifier, cfg.Reminder.PollInterval)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
		slog.Info("reminder worker started", "poll", cfg.Reminder.PollInterval)
	} else {
		slog.Warn("reminder delivery disabled: no notify URL")
	}

	// MCP server over stdio, for agent clients running habitd as a child
	// process.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Profiles: profiles,
		Writer:   writer,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})
	slog.Info("MCP server started (stdio transport)")

	return g.Wait()
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	resp, err := client.get("/healthz")
	switch {
	case err != nil:
		printWarning("server stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		printSuccess("server running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printWarning("server error (HTTP %d)", resp.StatusCode)
	}

	if cfg.LLM.OpenRouterAPIKey != "" {
		printStatus("Extraction", "enabled (%s)", cfg.LLM.Model)
	} else {
		printStatus("Extraction", "disabled (no API key)")
	}
	if cfg.Transcribe.OpenAIAPIKey != "" {
		printStatus("Voice", "enabled (%s)", cfg.Transcribe.Model)
	} else {
		printStatus("Voice", "disabled (no API key)")
	}
	if cfg.Reminder.NotifyURL != "" {
		printStatus("Reminders", "delivering to %s", cfg.Reminder.NotifyURL)
	} else {
		printStatus("Reminders", "disabled (no notify URL)")
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
