package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/agent-command/subbot/internal/config"
	"github.com/agent-command/subbot/internal/discord"
	"github.com/agent-command/subbot/internal/dispatch"
	"github.com/agent-command/subbot/internal/metrics"
	"github.com/agent-command/subbot/internal/protocol"
	"github.com/agent-command/subbot/internal/session"
	"github.com/agent-command/subbot/internal/ws"
	"github.com/joho/godotenv"
)

type globalFlags struct {
	configPath string
	envFile    string
}

// loadEnv reads the .env file into the process environment without
// overriding variables that are already set.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	return godotenv.Load(path)
}

func runDaemon(ctx context.Context, flags *globalFlags) error {
	dotenvErr := loadEnv(flags.envFile)

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)
	if dotenvErr != nil {
		logger.Debug("no .env file loaded", "error", dotenvErr)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	bot, err := discord.New(cfg.Discord.Token, discord.Presence{
		Name: cfg.Discord.Presence.Name,
		URL:  cfg.Discord.Presence.URL,
	}, logger.With("component", "discord"))
	if err != nil {
		return err
	}
	defer bot.Close()

	logger.Info("logging in to discord...")
	identity, err := bot.Open(ctx)
	if err != nil {
		return err
	}

	sess := newSession(cfg, identity, bot, m, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go stopOnClose(runCtx, bot.Done(), cancel)

	if cfg.Metrics.Listen != "" {
		router := metrics.NewRouter(m, func() bool { return sess.State() == session.StateServing })
		go func() {
			if err := metrics.Serve(runCtx, cfg.Metrics.Listen, router, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("connecting to main bot...", "url", cfg.Control.URL, "identity", identity)
	err = sess.Run(runCtx)
	switch {
	case err == nil:
		logger.Info("terminated by host")
		return nil
	case errors.Is(err, context.Canceled):
		logger.Info("shutting down...")
		return nil
	case errors.Is(err, session.ErrHandshakeRejected):
		logger.Error("could not connect to main bot", "error", err)
	default:
		logger.Error("control session ended", "error", err)
	}
	return err
}

// stopOnClose cancels the session once the bot has shut down.
func stopOnClose(ctx context.Context, done <-chan struct{}, cancel context.CancelFunc) {
	select {
	case <-done:
		cancel()
	case <-ctx.Done():
	}
}

func newSession(cfg *config.Config, identity session.Identity, bot *discord.Bot, m *metrics.Metrics, logger *slog.Logger) *session.Session {
	header := http.Header{}
	header.Set("X-Agent-Name", cfg.Agent.Name)

	dial := func(ctx context.Context) (session.Conn, error) {
		conn, err := ws.Dial(ctx, cfg.Control.URL, ws.DialOptions{
			Timeout: cfg.DialTimeout(),
			Header:  header,
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	return session.New(session.Options{
		Dial:     dial,
		Identity: identity,
		Parser:   protocol.NewParser(cfg.Framing(), cfg.Commands.MaxFloodCount),
		Dispatcher: dispatch.New(bot, logger.With("component", "dispatch"), m, dispatch.Options{
			FloodInterval: cfg.FloodInterval(),
		}),
		Logger:           logger.With("component", "session"),
		Metrics:          m,
		HandshakeTimeout: cfg.HandshakeTimeout(),
		ReceiveTimeout:   cfg.ReceiveTimeout(),
		Reconnect:        cfg.Control.Reconnect,
		Backoff:          cfg.ReconnectBackoff(),
		MaxReconnects:    cfg.Control.MaxReconnects,
	})
}
