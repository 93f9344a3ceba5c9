package main

import (
	"context"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rotisserie/eris"
	"github.com/smallbiznis/floorquote/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:           "floorquote",
	Short:         "Flooring lead marketplace",
	Long:          "Collects flooring quote requests, verifies them and sells them to matching retailers.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, distributeCmd, seedCmd, jobsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, eris.Wrapf(err, "snowflake node %d", cfg.NodeID)
	}
	return node, nil
}

// runOnce starts the app, runs fn and stops the app again.
func runOnce(ctx context.Context, app *fx.App, fn func(ctx context.Context) error) error {
	if err := app.Err(); err != nil {
		return eris.Wrap(err, "build app")
	}
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return eris.Wrap(err, "start app")
	}

	runErr := fn(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), startTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return eris.Wrap(err, "stop app")
	}
	return runErr
}
