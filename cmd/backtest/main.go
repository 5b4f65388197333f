// Command backtest runs one manifest-configured backtest against a
// compiled-in strategy and persists the result. Grounded on the teacher's
// cmd/polybot/main.go: zerolog console writer, godotenv-loaded
// configuration, and a signal-aware context passed to run. run does not
// consult that context, so an interrupt does not stop a backtest in
// progress.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polyforge/datafeed"
	"github.com/web3guy0/polyforge/engine"
	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/notify"
	"github.com/web3guy0/polyforge/plugin"
	"github.com/web3guy0/polyforge/storage"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	manifestPath := flag.String("manifest", "manifest.json", "path to the backtest manifest JSON file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("main: no .env file found, continuing with process environment")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *manifestPath); err != nil {
		log.Fatal().Err(err).Msg("main: backtest run failed")
	}
}

func run(ctx context.Context, manifestPath string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}

	host, err := plugin.ParseManifest(data)
	if err != nil {
		return err
	}

	store := datafeed.NewStore()
	for _, sym := range host.Symbols {
		bars, err := loadSymbolBars(sym.Symbol)
		if err != nil {
			return err
		}
		store.StoreBars(manifestPath, sym.Symbol, bars)
	}
	batches := store.BuildBatches(manifestPath)

	reportStore, err := openReportStore()
	if err != nil {
		return err
	}

	telegram, err := notify.NewTelegramFromEnv()
	if err != nil {
		log.Warn().Err(err).Msg("main: telegram notifications disabled")
	}

	strategy := plugin.NoopStrategy{}
	e := engine.New(host, strategy)

	startedAt := time.Now()
	report, err := e.Run(batches)
	if err != nil {
		return err
	}
	finishedAt := time.Now()

	log.Info().
		Str("final_equity", report.FinalEquity.String()).
		Float64("total_return", report.TotalReturn).
		Float64("max_drawdown", report.MaxDrawdown).
		Int("fills", len(report.Fills)).
		Msg("main: backtest complete")

	if err := reportStore.Save(manifestPath, startedAt, finishedAt, report.Fills, report.FinalEquity, report.TotalReturn, report.MaxDrawdown, report.DeclinedOrders); err != nil {
		return err
	}

	return telegram.NotifyReportFinished(manifestPath, report)
}

func openReportStore() (*storage.ReportStore, error) {
	if os.Getenv("DATABASE_DRIVER") == "" && os.Getenv("DATABASE_DSN") == "" {
		return storage.NewDisabled(), nil
	}
	return storage.Open()
}

// loadSymbolBars is a placeholder data source: a real deployment wires this
// to a historical bar provider. Dynamic plugin/data-source loading is out
// of scope (see SPEC_FULL.md §6).
func loadSymbolBars(symbol string) ([]models.Bar, error) {
	_ = symbol
	return nil, nil
}
