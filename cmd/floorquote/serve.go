package main

import (
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/migration"
	"github.com/smallbiznis/floorquote/internal/observability"
	"github.com/smallbiznis/floorquote/internal/scheduler"
	"github.com/smallbiznis/floorquote/internal/server"
	"github.com/smallbiznis/floorquote/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations, start the HTTP API and the lead scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			config.Module,
			observability.Module,
			fx.Provide(RegisterSnowflake),
			db.Module,
			clock.Module,
			migration.Module,
			server.Module,
			scheduler.Module,
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}
