package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"cropadvisor/advisor"
	"cropadvisor/config"
	chttp "cropadvisor/http"
	"cropadvisor/logger"
	"cropadvisor/monitoring"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the YAML config file")
	watch := pflag.Bool("watch", true, "reload the log level when the config file changes")
	pflag.Parse()

	if err := run(*configPath, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "cropadvisor: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, watch bool) error {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logger
	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Load the dataset and train before serving anything
	metrics := monitoring.NewMetrics()
	svc, err := advisor.New(ctx, cfg, log.Logger, metrics)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer svc.Close()

	if watch {
		go func() {
			err := config.Watch(ctx, configPath, log.Logger, func(next *config.Config) {
				if next.Log.Level == cfg.Log.Level {
					return
				}
				if err := log.SetLevel(next.Log.Level); err != nil {
					log.Warn("ignoring log level", zap.String("level", next.Log.Level), zap.Error(err))
					return
				}
				log.Info("log level changed", zap.String("level", next.Log.Level))
				cfg.Log.Level = next.Log.Level
			})
			if err != nil {
				log.Warn("config watch disabled", zap.Error(err))
			}
		}()
	}

	// 4. Start HTTP server
	hub := monitoring.NewExploreHub(svc.Explore, cfg.Http.AllowedOrigins, log.Logger, metrics)
	handlers := chttp.NewHandlers(svc, hub, log.Logger, metrics)
	server := chttp.NewServer(chttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.HTTPTimeout(),
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, handlers, log.Logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	// 5. Handle graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}
	log.Info("exiting")
	return nil
}
