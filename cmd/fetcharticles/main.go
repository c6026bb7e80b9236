package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-news-ingest/internal/app"
	"github.com/samvad-hq/samvad-news-ingest/internal/config"
	"github.com/samvad-hq/samvad-news-ingest/internal/domain"
	"github.com/samvad-hq/samvad-news-ingest/internal/logger"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fetch articles failed: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("fetcharticles", pflag.ContinueOnError)
	provider := fs.String("provider", "", "provider id (newsapi, guardian, nytimes); empty fetches all")
	var params domain.FetchParams
	fs.StringVar(&params.Keyword, "keyword", "", "search keyword")
	fs.StringVar(&params.Category, "category", "", "category or section")
	fs.StringVar(&params.From, "from", "", "earliest publication date (YYYY-MM-DD)")
	fs.StringVar(&params.To, "to", "", "latest publication date (YYYY-MM-DD)")
	fs.IntVar(&params.Page, "page", 1, "page number")
	fs.IntVar(&params.PageSize, "page-size", 50, "articles per provider request")
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

	sum, err := harvester.RunOnce(ctx, *provider, params)
	if err != nil {
		return err
	}

	for _, r := range sum.Results {
		log.InfoObj("provider stored articles", "provider_result", map[string]any{
			"provider_id": r.ProviderID,
			"stored":      r.Stored,
			"failed":      r.Failed,
			"skipped":     r.Skipped,
		})
	}
	log.InfoObj("fetch completed", "total_stored", sum.TotalStored)
	fmt.Fprintf(os.Stdout, "stored %d new articles\n", sum.TotalStored)
	return nil
}
