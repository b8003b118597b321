// Package cli implements the smartbill command line.
package cli

import (
	"context"

	"github.com/sangkips/smartbill/internal/app"
	"github.com/sangkips/smartbill/internal/config"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// loadConfig is replaced in tests
var loadConfig = config.Load

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "smartbill",
		Short:         "Offline-first billing for the shop counter",
		Long:          "smartbill captures bills on the device, queues them while offline and syncs them to the store when connectivity returns.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newQueueCmd())
	return cmd
}

func Execute() error {
	return newRootCmd().Execute()
}

// withApp builds the app from configuration, runs fn and tears it down
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg := loadConfig()
	log := config.NewLogger(&cfg.Log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		config.LogError(log, "cli", "withApp", "startup failed", nil, err)
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("smartbill %s (%s)\n", version, commit)
		},
	}
}
