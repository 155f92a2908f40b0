package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tradeforge/riskcore/internal/config"
	"github.com/tradeforge/riskcore/internal/correlation"
	"github.com/tradeforge/riskcore/internal/engine"
	"github.com/tradeforge/riskcore/internal/logging"
	"github.com/tradeforge/riskcore/internal/marketdata"
	"github.com/tradeforge/riskcore/internal/monitoring"
	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/storage"
	"github.com/tradeforge/riskcore/pkg/reporting"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to JSON config file")
		envFile     = flag.String("env", ".env", "path to .env file")
		symbols     = flag.String("symbols", "", "comma-separated symbol override")
		metricsPort = flag.Int("metrics-port", 0, "metrics/health port override")
		reportPath  = flag.String("report", "", "write the session audit report to this xlsx file and exit")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *symbols != "" {
		cfg.Feed.Symbols = strings.Split(*symbols, ",")
	}
	if *metricsPort > 0 {
		cfg.MetricsPort = *metricsPort
	}

	log := logging.Setup(cfg.LogLevel, cfg.ConsoleLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}

	if *reportPath != "" {
		if err := exportReport(ctx, store, *reportPath); err != nil {
			log.Fatal().Err(err).Msg("report export failed")
		}
		log.Info().Str("path", *reportPath).Msg("audit report written")
		return
	}

	riskMgr := risk.NewManager(store, log)
	feed := marketdata.NewFeed(marketdata.Config{
		URL:                  cfg.Feed.URL,
		Key:                  cfg.Feed.Key,
		Secret:               cfg.Feed.Secret,
		Symbols:              cfg.Feed.Symbols,
		MaxReconnectAttempts: cfg.Feed.MaxReconnectAttempts,
		ReconnectBase:        cfg.Feed.ReconnectBase,
	}, store, log)
	corrEngine := correlation.NewEngine(store, store, 72*time.Hour, log)
	health := monitoring.NewHealthChecker()

	eng := engine.New(engine.Config{
		Symbols:       cfg.Feed.Symbols,
		TickRetention: time.Duration(cfg.TickRetentionDays) * 24 * time.Hour,
	}, store, riskMgr, feed, corrEngine, health, log)

	if err := eng.Start(ctx, cfg.InitialBalance); err != nil {
		log.Fatal().Err(err).Msg("engine start failed")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())
	mux.Handle("/health", health)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: mux,
	}
	go func() {
		log.Info().Int("port", cfg.MetricsPort).Msg("metrics and health endpoints up")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	eng.Stop(shutdownCtx)

	if sess := eng.Session(); sess != nil {
		summaryCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		closedPnL, _ := store.ClosedPnL(summaryCtx, sess.ID)
		open, _ := store.OpenPositions(summaryCtx, sess.ID)
		openPnL := 0.0
		for _, p := range open {
			openPnL += p.PnL
		}
		reporting.PrintSessionSummary(os.Stdout, sess, closedPnL, openPnL, len(open))
		if len(open) > 0 {
			reporting.PrintPositions(os.Stdout, "Open positions", open)
		}
		if snaps, err := store.Snapshots(summaryCtx, sess.ID, sess.StartedAt); err == nil && len(snaps) > 0 {
			reporting.PrintSnapshots(os.Stdout, snaps)
		}
	}
	log.Info().Msg("shutdown complete")
}

// exportReport writes the active session's audit trail to an Excel
// workbook.
func exportReport(ctx context.Context, store *storage.Store, path string) error {
	sess, err := store.ActiveSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("no active session to report on")
	}
	snaps, err := store.Snapshots(ctx, sess.ID, sess.StartedAt)
	if err != nil {
		return err
	}
	closed, err := store.RecentClosedPositions(ctx, sess.ID, 1000)
	if err != nil {
		return err
	}
	return reporting.WriteAuditXLSX(reporting.AuditReport{
		Session:   sess,
		Snapshots: snaps,
		Closed:    closed,
	}, path)
}
