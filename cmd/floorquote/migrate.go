package main

import (
	"context"

	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/migration"
	"github.com/smallbiznis/floorquote/internal/observability"
	"github.com/smallbiznis/floorquote/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			config.Module,
			observability.Module,
			db.Module,
			migration.Module,
			fx.NopLogger,
		)
		return runOnce(cmd.Context(), app, func(context.Context) error { return nil })
	},
}
