package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/piwi3910/gpustatsd/pkg/config"
	"github.com/piwi3910/gpustatsd/pkg/gpustats"
	"github.com/piwi3910/gpustatsd/pkg/reporter"
	"github.com/piwi3910/gpustatsd/pkg/server"
	"github.com/piwi3910/gpustatsd/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the GPU driver stats daemon",
		Long: `Starts the statistics daemon: the HTTP ingest and dump API, the
Prometheus metrics endpoint and the periodic global stats reporter. Runs
until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	tel, err := telemetry.New(cfg.Telemetry(buildVersion))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			tel.Logger.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.Log.Level))

	store := gpustats.New(gpustats.Options{
		MaxAppRecords: cfg.MaxAppRecords,
		Logger:        tel.Logger,
		Metrics:       tel.Metrics,
		Tracer:        tel.Tracer.Tracer(),
	})

	srv := server.New(server.Options{
		ListenAddress: cfg.ListenAddress,
		Store:         store,
		Logger:        tel.Logger,
		Metrics:       tel.Metrics,
	})

	rep := reporter.New(reporter.Options{
		Store:    store,
		Interval: time.Duration(cfg.PullInterval),
		Logger:   tel.Logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if configPath != "" {
		watcher := config.NewWatcher(tel.Logger)
		err := watcher.Watch(runCtx, configPath, func(next *config.Config) {
			store.SetMaxAppRecords(next.MaxAppRecords)
			zerolog.SetGlobalLevel(telemetry.ParseLevel(next.Log.Level))
		})
		if err != nil {
			tel.Logger.Warn().Err(err).Msg("Config hot reload unavailable")
		}
	}

	tel.Logger.Info().
		Str("version", buildVersion).
		Str("listen_address", cfg.ListenAddress).
		Int("max_app_records", cfg.MaxAppRecords).
		Dur("pull_interval", time.Duration(cfg.PullInterval)).
		Msg("Starting gpustatsd")

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Run(runCtx)
		cancel()
	}()
	go func() {
		errCh <- rep.Run(runCtx)
		cancel()
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
