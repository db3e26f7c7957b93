// Package reset implements the reset command.
package reset

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/flagmigrate/internal/app"
	"github.com/tphakala/flagmigrate/internal/datastore"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// Command creates the reset command.
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the migration checkpoint",
		Long:  "Return the checkpoint to idle so the next run starts from the first pid. Migrated flags are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := app.OpenDatastore(ctx.Settings, ctx.Log("datastore"))
			if err != nil {
				return err
			}
			defer func() {
				if err := mgr.Close(); err != nil {
					ctx.Log("main").Warn("failed to close database", logger.Error(err))
				}
			}()

			if err := datastore.NewStateManager(mgr.DB()).Reset(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Migration checkpoint reset")
			return err
		},
	}
}
