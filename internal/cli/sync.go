package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sangkips/smartbill/internal/app"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push queued bills to the remote store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()

				if statusOnly {
					a.Monitor.Probe(ctx)
					st, err := a.Sync.Status(ctx)
					if err != nil {
						return err
					}
					fmt.Fprint(out, renderSyncStatus(st, time.Now()))
					return nil
				}

				if err := a.Remote.Ping(ctx); err != nil {
					pending, _ := a.Queue.Len(ctx)
					return fmt.Errorf("remote store unreachable, %d bill(s) stay queued: %w", pending, err)
				}

				report, err := a.Sync.Drain(ctx)
				fmt.Fprint(out, renderDrain(report, err))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Show sync status without draining")
	return cmd
}
