package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/mixlab-host/internal/config"
	"github.com/RenatoCabral2022/mixlab-host/internal/host"
	"github.com/RenatoCabral2022/mixlab-host/internal/session"
	"github.com/RenatoCabral2022/mixlab-host/internal/window"
)

var errUsage = errors.New("usage: mixlab <plugin-path>")

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pluginPath returns the single positional argument.
func pluginPath(args []string) (string, error) {
	if len(args) < 2 || args[1] == "" {
		return "", errUsage
	}
	return args[1], nil
}

func run(args []string) error {
	path, err := pluginPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.LogDevelopment {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("mixlab host starting",
		zap.String("plugin", path),
		zap.Int("sampleRate", cfg.SampleRate),
		zap.Int("blockSize", cfg.BlockSize),
		zap.Float64("toneHz", cfg.ToneFrequency),
		zap.Int("queueCapacity", cfg.QueueCapacity),
		zap.String("overflow", cfg.OverflowPolicy),
		zap.Bool("headless", cfg.Headless),
		zap.Bool("editorOnly", cfg.EditorOnly),
	)

	registry := session.NewRegistry(session.StubLoader())
	toolkit := window.NewHeadless(logger.With(zap.String("component", "window")))

	h, err := host.New(cfg, registry, toolkit, logger)
	if err != nil {
		return fmt.Errorf("create host: %w", err)
	}

	if err := h.Start(path); err != nil {
		var se *session.StartupError
		if errors.As(err, &se) {
			logger.Error("startup failed", zap.String("stage", se.Stage), zap.Error(se.Err))
		}
		return err
	}

	var srv *http.Server
	if cfg.AdminAddr != "" {
		srv = &http.Server{
			Addr:         cfg.AdminAddr,
			Handler:      h.AdminHandler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
		}
		go func() {
			logger.Info("admin API listening", zap.String("addr", cfg.AdminAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("admin API failed", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := h.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}

	if runErr != nil {
		logger.Error("host stopped with errors", zap.Error(runErr))
		return runErr
	}
	logger.Info("shutdown complete")
	return nil
}
