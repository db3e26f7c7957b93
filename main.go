package main

import (
	"fmt"
	"os"

	"github.com/tphakala/flagmigrate/cmd"
	"github.com/tphakala/flagmigrate/internal/app"
	"github.com/tphakala/flagmigrate/internal/buildinfo"
	"github.com/tphakala/flagmigrate/internal/conf"
)

// Injected with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   string
	buildDate string
)

func main() {
	v, err := conf.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := app.NewContext(buildinfo.NewContext(version, buildDate))

	rootCmd, err := cmd.RootCommand(ctx, v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error setting up commands: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		_ = ctx.Close()
		os.Exit(1)
	}
}
