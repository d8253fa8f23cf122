package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"igmonitor/pkg/auth"
	"igmonitor/pkg/config"
	"igmonitor/pkg/instagram"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/notify"
	"igmonitor/pkg/protection"
	"igmonitor/pkg/schedule"
	"igmonitor/pkg/server"
	"igmonitor/pkg/watcher"
)

var (
	serveAddr    string
	serveDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring service",
	Long: `Start the HTTP API, restore scheduled tasks from disk, run the
overdue catch-up sweep and arm the task timers.`,
	Example: `  # Run with defaults
  igmonitor serve

  # Run on a different port with a custom data directory
  igmonitor serve --addr :8080 --data-dir /var/lib/igmonitor`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :3000)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "directory for persisted state")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if serveAddr != "" {
		flags["addr"] = serveAddr
	}
	if serveDataDir != "" {
		flags["data-dir"] = serveDataDir
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	// Stored credentials fill in whatever the config leaves blank.
	if cfg.Instagram.SessionID == "" || cfg.Instagram.CSRFToken == "" {
		if chain, err := auth.NewChain(); err == nil {
			if creds, err := chain.Load(); err == nil {
				cfg.Instagram.SessionID = creds.SessionID
				cfg.Instagram.CSRFToken = creds.CSRFToken
				if cfg.Instagram.UserAgent == "" {
					cfg.Instagram.UserAgent = creds.UserAgent
				}
				log.Info("Loaded Instagram credentials from credential store")
			}
		}
	}
	if cfg.Instagram.SessionID == "" {
		log.Warn("No Instagram session configured, upstream checks will fail until 'igmonitor auth login' is run")
	}

	protStore, err := protection.NewStore(cfg.Storage.DataDir, protection.BaseQuotas{
		DailyCheckLimit:    cfg.Protection.DailyCheckLimit,
		MaxChecksPerHour:   cfg.Protection.MaxChecksPerHour,
		MinIntervalMinutes: int(cfg.Protection.MinInterval.Minutes()),
	}, log)
	if err != nil {
		return fmt.Errorf("initialize protection store: %w", err)
	}
	gate := protection.NewGate(protStore, log)

	client := instagram.NewClient(cfg.Instagram, cfg.Checks.Timeout, log)
	seq := watcher.NewSequencer(gate, cfg.Checks.Timeout, log)
	mailer := notify.NewMailer(cfg.Email, log)
	runner := watcher.NewTaskRunner(seq, mailer, log,
		watcher.NewPrivacyCheck(client),
		watcher.NewStoriesCheck(client),
	)

	taskStore, err := schedule.NewStore(cfg.Storage.DataDir, log)
	if err != nil {
		return fmt.Errorf("initialize task store: %w", err)
	}
	scheduler := schedule.NewScheduler(taskStore, runner.Execute, log)

	metrics := server.NewMetrics(prometheus.DefaultRegisterer)
	srv := server.NewServer(cfg.Server, runner, gate, scheduler, metrics, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("Gracefully stopped")
	return nil
}
