// Package cmd assembles the flagmigrate command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/flagmigrate/cmd/migrate"
	"github.com/tphakala/flagmigrate/cmd/reset"
	"github.com/tphakala/flagmigrate/cmd/status"
	"github.com/tphakala/flagmigrate/internal/app"
	"github.com/tphakala/flagmigrate/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(ctx *app.Context, v *viper.Viper) (*cobra.Command, error) {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "flagmigrate",
		Short:         "Migrate legacy post flags into the flags schema",
		Version:       ctx.BuildInfo.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, v, &configFile); err != nil {
		return nil, err
	}

	rootCmd.AddCommand(
		migrate.Command(ctx, v),
		status.Command(ctx),
		reset.Command(ctx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := conf.Load(v, configFile)
		if err != nil {
			return err
		}
		return ctx.Setup(settings)
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.Close()
	}

	return rootCmd, nil
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config file (default: config.yaml in ., ~/.config/flagmigrate, /etc/flagmigrate)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("redis", "", "Redis address of the legacy keyspace")
	flags.String("backend", "", "Flags backend (database or http)")

	for key, name := range map[string]string{
		"debug":         "debug",
		"redis.addr":    "redis",
		"flags.backend": "backend",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}
