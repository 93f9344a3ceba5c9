package main

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/config"
	distributiondomain "github.com/smallbiznis/floorquote/internal/distribution/domain"
	"github.com/smallbiznis/floorquote/internal/observability"
	"github.com/smallbiznis/floorquote/internal/server"
	"github.com/smallbiznis/floorquote/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute <lead-id>",
	Short: "Distribute a verified lead to matching retailers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var svc distributiondomain.Service
		app := fx.New(
			config.Module,
			observability.Module,
			fx.Provide(RegisterSnowflake),
			db.Module,
			clock.Module,
			server.Services,
			fx.Populate(&svc),
			fx.NopLogger,
		)
		return runOnce(cmd.Context(), app, func(ctx context.Context) error {
			report, err := svc.Distribute(ctx, args[0])
			if err != nil {
				return eris.Wrapf(err, "distribute lead %s", args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		})
	},
}
