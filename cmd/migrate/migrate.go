// Package migrate implements the migrate command.
package migrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/flagmigrate/internal/api"
	"github.com/tphakala/flagmigrate/internal/app"
	"github.com/tphakala/flagmigrate/internal/datastore"
	"github.com/tphakala/flagmigrate/internal/flags"
	"github.com/tphakala/flagmigrate/internal/logger"
	"github.com/tphakala/flagmigrate/internal/migration"
	"github.com/tphakala/flagmigrate/internal/observability"
)

// Command creates the migrate command.
func Command(ctx *app.Context, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy post flags",
		Long: "Walk posts:pid page by page and create a flag, its state and its notes " +
			"for every flagged post. Safe to re-run; use --resume to continue after the last completed page.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), ctx, cmd.OutOrStdout())
		},
	}

	if err := setupFlags(cmd, v); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the migrate command.
func setupFlags(cmd *cobra.Command, v *viper.Viper) error {
	f := cmd.Flags()
	f.Bool("resume", false, "Continue after the last completed page of a failed or interrupted run")
	f.Int("page-size", 0, "Number of pids read per page")
	f.Int("concurrency", 0, "Flagged posts migrated in parallel within a page")
	f.String("system-actor", "", "uid recorded on state and assignee updates")
	f.Duration("sleep-between", 0, "Pause between pages")
	f.Bool("metrics", false, "Serve status and Prometheus metrics while migrating")
	f.String("listen", "", "Listen address of the status server")

	for key, name := range map[string]string{
		"migration.resume":        "resume",
		"migration.page_size":     "page-size",
		"migration.concurrency":   "concurrency",
		"migration.system_actor":  "system-actor",
		"migration.sleep_between": "sleep-between",
		"metrics.enabled":         "metrics",
		"metrics.listen":          "listen",
	} {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}

func run(parent context.Context, ctx *app.Context, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	runCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := ctx.Settings
	log := ctx.Log("main")

	flush, err := app.InitTelemetry(settings, ctx.BuildInfo)
	if err != nil {
		log.Warn("error telemetry disabled", logger.Error(err))
		flush = func() {}
	}
	defer flush()

	mgr, err := app.OpenDatastore(settings, ctx.Log("datastore"))
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn("failed to close database", logger.Error(err))
		}
	}()

	store, err := app.ConnectLegacy(runCtx, settings, ctx.Log("legacy"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close redis client", logger.Error(err))
		}
	}()

	states := datastore.NewStateManager(mgr.DB())

	taskCfg := &migration.TaskConfig{
		Keyspace:     store,
		Posts:        store,
		Sets:         store,
		Checkpoints:  states,
		Logger:       ctx.Log("migration"),
		PageSize:     settings.Migration.PageSize,
		Concurrency:  settings.Migration.Concurrency,
		SystemActor:  settings.Migration.SystemActor,
		SleepBetween: settings.Migration.SleepBetween,
		Resume:       settings.Migration.Resume,
	}

	var (
		recorder flags.Recorder
		server   *api.Server
	)
	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return err
		}
		recorder = m.Flags
		taskCfg.Progress = m.Migration
		taskCfg.Metrics = m.Migration

		apiCfg := api.DefaultConfig()
		apiCfg.Listen = settings.Metrics.Listen
		apiCfg.Debug = settings.Debug
		server, err = api.New(apiCfg, ctx.Log("api"),
			api.WithStatusSource(states),
			api.WithMetricsHandler(m.Handler()))
		if err != nil {
			return err
		}
	}

	svc, err := app.NewFlagService(settings, mgr.DB(), recorder, ctx.Log("flags"))
	if err != nil {
		return err
	}
	taskCfg.Flags = svc

	task := migration.NewTask(taskCfg)

	g, gctx := errgroup.WithContext(runCtx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	var result *migration.Result
	g.Go(func() error {
		defer stopServer()
		var err error
		result, err = task.Run(gctx)
		return err
	})
	if server != nil {
		g.Go(func() error {
			return server.Run(serverCtx)
		})
	}

	err = g.Wait()
	if result != nil {
		printSummary(out, result, err)
	}
	return err
}

func printSummary(out io.Writer, result *migration.Result, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	_, _ = fmt.Fprintf(out, "Migration %s (run %s)\n", status, result.RunID)
	_, _ = fmt.Fprintf(out, "  scanned:   %d/%d\n", result.Scanned, result.Total)
	_, _ = fmt.Fprintf(out, "  attempted: %d\n", result.Attempted)
	if result.LastKey != "" {
		_, _ = fmt.Fprintf(out, "  last key:  %s\n", result.LastKey)
	}
	_, _ = fmt.Fprintf(out, "  duration:  %s\n", result.Duration.Round(time.Millisecond))
	if failed := migration.FailedItem(err); failed != "" {
		_, _ = fmt.Fprintf(out, "  failed at: pid %s (re-run with --resume after fixing it)\n", failed)
	}
}
