package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"BreakoutScanner/internal/api"
	"BreakoutScanner/internal/metrics"
	"BreakoutScanner/internal/notifier"
	"BreakoutScanner/internal/recorder"
	"BreakoutScanner/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled scans and Telegram commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), runOnStart || os.Getenv("RUN_ON_START") == "true")
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run the scheduled scan once at startup")
	return cmd
}

func runServe(parent context.Context, runOnStart bool) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Msg("breakout scanner starting")

	reg := metrics.NewRegistry()
	p, err := buildPipeline(cfg, reg)
	if err != nil {
		return err
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.Driver != "" {
		sr, err := recorder.NewSQLRecorder(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("init scan recorder failed, using noop")
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tn *notifier.TelegramNotifier
	var n scheduler.Notifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	}

	sched := scheduler.NewScheduler(ctx, p.orch, n, rec, scheduler.Job{
		Tickers:     cfg.Scan.Tickers,
		Watchlist:   cfg.Scan.Watchlist,
		Horizon:     cfg.Schedule.Horizon,
		Concurrency: cfg.Scan.Concurrency,
	})
	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if runOnStart {
		go func() {
			if _, err := sched.RunScan(ctx, nil); err != nil {
				log.Error().Err(err).Msg("startup scan")
			}
		}()
	}

	srv := api.NewServer(api.Options{
		Scanner:     p.orch,
		Charts:      func() api.SeriesSource { return p.collector.NewSession() },
		Recorder:    rec,
		Metrics:     reg.Handler(),
		CORSOrigins: cfg.Server.CORSOrigins,
		KeepScans:   cfg.Server.KeepScans,
		ScanTimeout: cfg.Server.ScanTimeout,
		Concurrency: cfg.Scan.Concurrency,
	})
	err = srv.Run(ctx, cfg.Server.Addr)
	log.Info().Msg("breakout scanner stopped")
	return err
}
