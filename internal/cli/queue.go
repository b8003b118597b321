package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sangkips/smartbill/internal/app"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the offline bill queue",
	}
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueClearCmd())
	return cmd
}

func newQueueListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bills waiting to sync, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				bills, err := a.Queue.Snapshot(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(bills)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderQueue(bills, a.Location))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newQueueClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard every queued bill",
		Long:  "Discard every queued bill. Bills that never reached the remote store are lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Queue.Len(ctx)
				if err != nil {
					return err
				}
				if n > 0 && !yes {
					return fmt.Errorf("refusing to discard %d unsynced bill(s) without --yes", n)
				}
				if err := a.Queue.Clear(ctx); err != nil {
					return err
				}
				a.Log.WithFields(logrus.Fields{"module": "queue", "discarded": n}).Warn("offline queue cleared")
				cmd.Printf("discarded %d bill(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm discarding unsynced bills")
	return cmd
}
