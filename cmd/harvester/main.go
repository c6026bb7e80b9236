package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-news-ingest/internal/app"
	"github.com/samvad-hq/samvad-news-ingest/internal/config"
	"github.com/samvad-hq/samvad-news-ingest/internal/logger"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "harvester start failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("harvester", pflag.ContinueOnError)
	config.Flags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Close()

	log.InfoObj("harvester starting", "config", map[string]any{
		"app_env":        cfg.Env,
		"storage_type":   cfg.StorageType,
		"crawl_interval": cfg.CrawlInterval.String(),
		"concurrency":    cfg.FetchConcurrency,
		"enrich":         cfg.EnrichMetadata,
		"metrics_addr":   cfg.MetricsAddr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	harvester, err := app.NewHarvester(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize harvester", "error", err.Error())
		return err
	}
	defer func() {
		if err := harvester.Close(); err != nil {
			log.ErrorObj("harvester close failed", "error", err.Error())
		}
	}()

	if err := harvester.Run(ctx); err != nil {
		return fmt.Errorf("harvester run: %w", err)
	}
	return nil
}
