// Command harvester pulls catalog entities by ID from the Spotify Web API and
// stores them as flat rows in SQLite, PostgreSQL or CSV files.
//
//	harvester [run]          fetch every ID listed in the *_ids.txt files and store them
//	harvester seed [-count]  sample IDs from browse/search endpoints into the ID files
//	harvester inspect        print row and column counts per table
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/overture/harvester/internal/adapters/csvfile"
	"github.com/ewilliams-labs/overture/harvester/internal/adapters/idfile"
	"github.com/ewilliams-labs/overture/harvester/internal/adapters/postgres"
	"github.com/ewilliams-labs/overture/harvester/internal/adapters/spotify"
	"github.com/ewilliams-labs/overture/harvester/internal/adapters/sqlite"
	"github.com/ewilliams-labs/overture/harvester/internal/config"
	"github.com/ewilliams-labs/overture/harvester/internal/core/domain"
	"github.com/ewilliams-labs/overture/harvester/internal/core/ports"
	"github.com/ewilliams-labs/overture/harvester/internal/core/services"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("FATAL harvester: %v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := config.Load()

	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "run":
		return harvest(ctx, cfg, args)
	case "seed":
		return seed(ctx, cfg, args)
	case "inspect":
		return inspect(ctx, cfg, args)
	default:
		return fmt.Errorf("unknown command %q (want run, seed or inspect)", cmd)
	}
}

func harvest(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	idDir := fs.String("ids", cfg.IDDir, "directory holding the *_ids.txt files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	tokens := newTokenProvider(cfg)
	client := spotify.NewClient(tokens, spotify.Options{
		BaseURL:     cfg.APIURL,
		Timeout:     cfg.HTTPTimeout,
		MaxRetries:  cfg.MaxRetries,
		BaseBackoff: cfg.RetryBackoff,
	})

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	h := services.NewHarvester(idfile.NewDir(*idDir), client, store)
	summary, err := h.Run(ctx)
	summary.Print(os.Stdout)
	if failed := summary.FailedTables(); len(failed) > 0 {
		log.Printf("WARN harvester: %d table(s) had failed batches: %s", len(failed), strings.Join(failed, ", "))
	}
	return err
}

func seed(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("count", spotify.DefaultDiscoverCount, "IDs to keep per entity kind")
	idDir := fs.String("ids", cfg.IDDir, "directory to write the *_ids.txt files to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	tokens := newTokenProvider(cfg)
	httpClient := oauth2.NewClient(ctx, tokens.TokenSource(ctx))
	httpClient.Timeout = cfg.HTTPTimeout

	found, err := spotify.NewDiscoverer(httpClient, cfg.APIURL, *count).Discover(ctx)
	if err != nil {
		return err
	}

	dir := idfile.NewDir(*idDir)
	for _, kind := range domain.FetchOrder() {
		ids := found[kind]
		if len(ids) == 0 {
			log.Printf("WARN harvester: discovered no %s ids, leaving %s unchanged", kind, dir.Path(kind))
			continue
		}
		if err := dir.Save(kind, ids); err != nil {
			return err
		}
		fmt.Printf("wrote %d %s ids to %s\n", len(ids), kind, dir.Path(kind))
	}
	return nil
}

func inspect(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateSchema(ctx); err != nil {
		return err
	}
	stats, err := store.Inspect(ctx)
	if err != nil {
		return err
	}
	for _, s := range stats {
		fmt.Printf("%-16s rows=%-8d columns=%d\n", s.Table, s.Rows, s.Columns)
		for _, d := range s.Details {
			fmt.Printf("  %-20s %-10s %s\n", d.Name, d.Type, d.Sample)
		}
	}
	return nil
}

func newTokenProvider(cfg *config.Config) *spotify.TokenProvider {
	return spotify.NewTokenProvider(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL,
		&http.Client{Timeout: cfg.TokenTimeout})
}

type store interface {
	ports.RecordStore
	ports.Inspector
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		return sqlite.NewAdapter(cfg.SQLitePath)
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		return postgres.Connect(ctx, cfg.DatabaseURL)
	case config.DriverCSV:
		return csvfile.NewAdapter(cfg.CSVDir), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
