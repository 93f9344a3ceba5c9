package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/rotisserie/eris"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/smallbiznis/floorquote/internal/migration"
	"github.com/smallbiznis/floorquote/internal/observability"
	"github.com/smallbiznis/floorquote/internal/seed"
	"github.com/smallbiznis/floorquote/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo retailers for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			conn *gorm.DB
			node *snowflake.Node
			clk  clock.Clock
		)
		app := fx.New(
			config.Module,
			observability.Module,
			fx.Provide(RegisterSnowflake),
			db.Module,
			migration.Module,
			clock.Module,
			fx.Populate(&conn, &node, &clk),
			fx.NopLogger,
		)
		return runOnce(cmd.Context(), app, func(ctx context.Context) error {
			res, err := seed.EnsureDemoRetailers(ctx, conn, node, clk.Now())
			if err != nil {
				return eris.Wrap(err, "seed demo retailers")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d retailers, %d subscriptions, %d credits\n",
				res.Retailers, res.Subscriptions, res.Credits)
			return nil
		})
	},
}
