// Command integrity runs the Integrity Runner (component C11) over a
// store's full corpus and prints a JSON report, for use as a regression
// gate in CI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joeybe1/secsplit"
	"github.com/joeybe1/secsplit/integrity"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	timeout := flag.Duration("timeout", 10*time.Minute, "Maximum time to spend validating the corpus")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := secsplit.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("SECSPLIT_DB_PATH"); v != "" {
		cfg.StorePath = v
	}

	engine, err := secsplit.New(cfg, nil, nil)
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := integrity.Run(ctx, engine.Store())
	if err != nil {
		slog.Error("running integrity check", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		slog.Error("encoding report", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if len(report.Mismatched) > 0 {
		os.Exit(1)
	}
}
