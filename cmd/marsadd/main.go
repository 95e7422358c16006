package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"marsad/internal/config"
	"marsad/internal/daemon"
	"marsad/internal/findings"
	"marsad/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := findings.Open(cfg)
	if err != nil {
		logger.Error("open findings store", logging.Error(err))
		os.Exit(1)
	}

	runner := buildRunner(cfg, store, logger)

	d, err := daemon.New(cfg, store, runner, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("marsadd shutting down")
}
