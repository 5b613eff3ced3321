package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	goinstrument "github.com/goliatone/go-instrument"
	"github.com/goliatone/go-instrument/pkg/config"
	"github.com/goliatone/go-instrument/pkg/expression"
	"github.com/goliatone/go-instrument/pkg/instrument"
	"github.com/goliatone/go-instrument/pkg/store"
	"github.com/goliatone/go-instrument/pkg/tui"
)

func main() {
	os.Exit(run())
}

// run administers one session and returns the process exit code. Deferred
// cleanup runs before the caller exits.
func run() int {
	definition := flag.String("definition", "", "instrument definition (JSON or YAML); overrides the config file")
	configPath := flag.String("config", "", "session configuration file (YAML)")
	dbPath := flag.String("db", "", "SQLite database for saved answers; overrides the config file")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn or error")
	list := flag.Int("list", 0, "print the N most recent saved records instead of administering")
	flag.Parse()

	logger, err := newLogger(*logFormat, *logLevel)
	if err != nil {
		log.Printf("logger: %v", err)
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Printf("Failed to load config: %v", err)
			return 1
		}
		cfg = *loaded
	}
	if *definition != "" {
		cfg.Definition = *definition
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	if strings.TrimSpace(cfg.Definition) == "" {
		log.Print("an instrument definition is required (-definition or config file)")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	schema, err := goinstrument.LoadSchema(instrument.SourceFromFile(cfg.Definition))
	if err != nil {
		log.Printf("Failed to load instrument: %v", err)
		return 1
	}
	name := instrumentName(schema, cfg.Definition)

	db, err := store.New(store.Config{Path: cfg.Database, Logger: logger})
	if err != nil {
		log.Printf("Failed to open store: %v", err)
		return 1
	}
	defer db.Close()

	if *list > 0 {
		if err := printRecords(ctx, db, name, *list); err != nil {
			log.Printf("Failed to list records: %v", err)
			return 1
		}
		return 0
	}

	saver := db.SaverFor(name)
	opts := append(cfg.SessionOptions(), goinstrument.WithSessionLogger(logger), goinstrument.WithSessionSaver(saver))
	s := goinstrument.NewSession(schema, opts...)

	outcome, err := tui.New().Run(ctx, s)
	switch {
	case errors.Is(err, tui.ErrDeclined), errors.Is(err, tui.ErrAborted):
		fmt.Println("Answers were not saved.")
		return 0
	case err != nil:
		log.Printf("Session failed: %v", err)
		return 1
	}

	if rec := saver.Last(); rec != nil {
		fmt.Printf("Saved %s as %s (%s)\n", name, rec.ID, outcome.State)
	}
	return 0
}

func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func instrumentName(schema *instrument.Schema, fallback string) string {
	if short := strings.TrimSpace(schema.Meta().ShortName); short != "" {
		return short
	}
	return fallback
}

func printRecords(ctx context.Context, db *store.Store, name string, limit int) error {
	records, err := db.List(ctx, name, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No saved records for %s\n", name)
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %s  %d answers\n", rec.SavedAt.Format("2006-01-02 15:04:05"), rec.ID, len(rec.Data))
		for _, key := range sortedKeys(rec.Data) {
			fmt.Printf("    %s = %s\n", key, expression.DisplayString(rec.Data[key]))
		}
	}
	return nil
}

func sortedKeys(data instrument.AnswerSet) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
