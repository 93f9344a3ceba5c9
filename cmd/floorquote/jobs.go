package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/observability"
	"github.com/smallbiznis/floorquote/internal/scheduler"
	"github.com/smallbiznis/floorquote/internal/server"
	"github.com/smallbiznis/floorquote/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const pushJobName = "floorquote_jobs"

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run the lead maintenance jobs once and exit",
	Long:  "Expires stale pending leads and distributes recently verified ones. Results are pushed to SCHEDULER_PUSHGATEWAY_URL when set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg        config.Config
			sched      *scheduler.Scheduler
			jobMetrics *scheduler.JobMetrics
			log        *zap.Logger
		)
		app := fx.New(
			config.Module,
			observability.Module,
			fx.Provide(RegisterSnowflake),
			db.Module,
			clock.Module,
			server.Services,
			fx.Provide(scheduler.ProvideConfig),
			fx.Provide(scheduler.NewJobMetrics),
			fx.Provide(scheduler.New),
			fx.Populate(&cfg, &sched, &jobMetrics, &log),
			fx.NopLogger,
		)
		return runOnce(cmd.Context(), app, func(ctx context.Context) error {
			runErr := sched.RunOnce(ctx)

			if cfg.Scheduler.PushgatewayURL != "" {
				pusher := scheduler.NewPushgatewayPusher(cfg.Scheduler.PushgatewayURL, pushJobName, map[string]string{
					"environment": cfg.Environment,
				})
				if err := pusher.Push(ctx, jobMetrics.Gatherer()); err != nil {
					log.Warn("failed to push job metrics", zap.Error(err))
				}
			}
			if runErr != nil {
				return eris.Wrap(runErr, "run jobs")
			}
			return nil
		})
	},
}
