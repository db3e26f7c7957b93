// Package status implements the status command.
package status

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/flagmigrate/internal/app"
	"github.com/tphakala/flagmigrate/internal/datastore"
	"github.com/tphakala/flagmigrate/internal/json"
	"github.com/tphakala/flagmigrate/internal/logger"
)

// Output formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Command creates the status command.
func Command(ctx *app.Context) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the migration checkpoint",
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

			state, err := datastore.NewStateManager(mgr.DB()).GetState()
			if err != nil {
				return err
			}
			return Write(cmd.OutOrStdout(), state, format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", FormatYAML, "Output format (yaml or json)")

	return cmd
}

// Write renders state in format.
func Write(w io.Writer, state *datastore.MigrationState, format string) error {
	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(state); err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
