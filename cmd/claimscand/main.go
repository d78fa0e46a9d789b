package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"claimscan/internal/attempts"
	"claimscan/internal/camera"
	"claimscan/internal/config"
	"claimscan/internal/daemon"
	"claimscan/internal/decode"
	"claimscan/internal/dispatch"
	"claimscan/internal/itemservice"
	"claimscan/internal/logging"
	"claimscan/internal/preflight"
	"claimscan/internal/scanner"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, exists, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		log.Printf("no config file at %s, using defaults", path)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}

	store, err := attempts.Open(cfg)
	if err != nil {
		logger.Error("open attempts store", logging.Error(err))
		os.Exit(1)
	}

	cam := camera.NewManager(cfg, logger)
	pipeline := decode.NewPipeline(cfg, logger)
	client := itemservice.NewClient(cfg)
	dispatcher := dispatch.New(client, store, dispatch.StaticToken(cfg.SessionToken()), logger)
	coordinator := scanner.New(cfg, scanner.ManagedCamera{Manager: cam}, pipeline, dispatcher, logger)

	d, err := daemon.New(cfg, store, coordinator, cam, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("claimscand shutting down")
	d.Stop()
}
