package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agnometry/founderchat/internal/app"
	"github.com/agnometry/founderchat/internal/config"
	"github.com/agnometry/founderchat/internal/log"
	"github.com/agnometry/founderchat/internal/server"
)

// Server timeout configuration. Read and write timeouts are deliberately
// absent: websocket sessions are long-lived and enforce their own idle and
// write deadlines per frame.
const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve [addr]",
	Short: "Start the chat server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return runServeAt(args[0])
		}
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	return runServeAt("")
}

// runServeAt initializes and starts the HTTP server. A non-empty addr
// overrides the configured bind address.
func runServeAt(addrOverride string) error {
	// A missing .env file is fine; secrets may come from the real
	// environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if addrOverride != "" {
		cfg.Addr = addrOverride
	}
	if err := validateAddr(cfg.Addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", cfg.Addr, err)
	}

	logger := log.New(log.Config{Level: cfg.LogLevel()})
	logger.Info("starting founderchat", "version", AppVersion, "model", cfg.ModelName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srvHandler, err := server.New(server.Config{
		Logger:       logger,
		Prompts:      a.Composer,
		Generator:    a.LLM,
		Store:        a.Knowledge,
		IdleTimeout:  cfg.IdleTimeout,
		StallTimeout: cfg.StreamStallTimeout,
		RateBurst:    cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srvHandler.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("server ready",
		"addr", cfg.Addr,
		"ws", "/ws",
		"health", "/health, /ready",
		"chunks", a.Knowledge.Count(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
