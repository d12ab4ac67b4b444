package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"slguard/internal/clock"
	"slguard/internal/config"
	"slguard/internal/engine"
	"slguard/internal/exchange/kite"
	"slguard/internal/exchange/kite/ticker"
	"slguard/internal/halt"
	"slguard/internal/instruments"
	"slguard/internal/journal"
	"slguard/internal/logger"
	"slguard/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Protect open positions until the market closes or the breaker fires",
	Args:  cobra.NoArgs,
	RunE:  runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:      cfg.Runtime.Log.Level,
		Format:     cfg.Runtime.Log.Format,
		Output:     cfg.Runtime.Log.File,
		MaxSize:    cfg.Runtime.Log.MaxSize,
		MaxBackups: cfg.Runtime.Log.MaxBackups,
		MaxAge:     cfg.Runtime.Log.MaxAge,
		Compress:   cfg.Runtime.Log.Compress,
	})
}

func runEngine(cmd *cobra.Command, args []string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	runID := uuid.NewString()
	log.WithFields(logrus.Fields{
		"run_id":    runID,
		"version":   Version,
		"log_level": log.Level().String(),
	}).Info("slguard starting.")

	store := halt.NewFileStore(cfg.Risk.HaltFile)
	halted, err := store.Halted()
	if err != nil {
		return err
	}
	if halted {
		log.WithFields(logrus.Fields{"halt_file": cfg.Risk.HaltFile}).Warn("Trading is halted for the day, not starting.")
		return nil
	}

	token, err := kite.LoadAccessToken(cfg.Exchange.AccessToken, cfg.Exchange.TokenFile)
	if err != nil {
		log.WithError(err).Error("No usable access token.")
		return err
	}
	client := kite.New(cfg.Exchange.BaseUrl, cfg.Exchange.ApiKey, token, log)
	stream := ticker.New(cfg.Exchange.WSUrl, cfg.Exchange.ApiKey, token, log)

	var jr journal.Journal = journal.Nop{}
	if cfg.Runtime.JournalPath != "" {
		sj, err := journal.NewSQLite(cfg.Runtime.JournalPath)
		if err != nil {
			return err
		}
		defer sj.Close()
		jr = sj
	}

	m := metrics.New()
	if cfg.Runtime.MetricsAddr != "" {
		srv := serveMetrics(cfg.Runtime.MetricsAddr, m, log)
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
			defer c()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	eng, err := engine.New(cfg, engine.Deps{
		Client:   client,
		Stream:   stream,
		Halt:     store,
		Journal:  jr,
		Metrics:  m,
		Clock:    clock.NewReal(),
		Resolver: instruments.NewResolver(client),
		RunID:    runID,
	}, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- eng.Start(ctx)
	}()

	select {
	case <-sigCh:
		log.Info("Shutdown signal received.")
		cancel()
		err = <-errCh
	case err = <-errCh:
	}

	switch {
	case errors.Is(err, engine.ErrHalted):
		log.Warn("Trading halted for the day, exiting.")
		return nil
	case err != nil:
		log.WithError(err).Error("Engine stopped with an error.")
		return fmt.Errorf("engine: %w", err)
	}
	log.Info("slguard stopped.")
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.WithComponent("metrics").WithField("addr", addr).Info("Serving metrics.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithComponent("metrics").WithError(err).Error("Metrics server failed.")
		}
	}()
	return srv
}
