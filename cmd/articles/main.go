package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/samvad-hq/samvad-news-ingest/internal/config"
	"github.com/samvad-hq/samvad-news-ingest/internal/storage"
	"github.com/spf13/pflag"
)

// action runs a subcommand against an open store. args are the positional
// arguments left after flag parsing.
type action func(ctx context.Context, store storage.Store, args []string, out io.Writer) error

type command struct {
	usage string
	// setup registers the subcommand's flags and returns the action bound to them.
	setup func(fs *pflag.FlagSet) action
}

var commands = map[string]command{
	"search":     {usage: "search stored articles (default)", setup: searchCommand},
	"get":        {usage: "get <article-id>", setup: getCommand},
	"categories": {usage: "list categories", setup: categoriesCommand},
	"category":   {usage: "category <category-id>", setup: categoryCommand},
	"sources":    {usage: "list sources", setup: sourcesCommand},
	"activate":   {usage: "activate <source-identifier>", setup: activateCommand(true)},
	"deactivate": {usage: "deactivate <source-identifier>", setup: activateCommand(false)},
	"feed":       {usage: "personalized feed for --user", setup: feedCommand},
	"prefs":      {usage: "prefs show|set|delete --user N", setup: prefsCommand},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "articles: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs, act, err := prepare(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, storage.Options{
		Type:        cfg.StorageType,
		Path:        cfg.StoragePath,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	return act(ctx, store, fs.Args(), out)
}

// prepare selects the subcommand and parses its flags. Arguments that start
// with a flag run the default search so the bare invocation keeps working.
func prepare(args []string) (*pflag.FlagSet, action, error) {
	name := "search"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		name, args = args[0], args[1:]
	}
	cmd, ok := commands[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown command %q (available: %s)", name, strings.Join(commandNames(), ", "))
	}

	fs := pflag.NewFlagSet("articles "+name, pflag.ContinueOnError)
	act := cmd.setup(fs)
	config.Flags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return fs, act, nil
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
