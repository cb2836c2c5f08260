// netfuser mangles the control flow of CIL method listings.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dotnet-toolset/Netfuser-sub001/internal/debug"
	"github.com/dotnet-toolset/Netfuser-sub001/internal/flags"
)

func newApp() *cli.App {
	app := flags.NewApp("control-flow mangler for CIL method listings")
	app.Commands = []*cli.Command{
		mangleCommand,
		graphCommand,
		keysCommand,
		dumpConfigCommand,
	}
	app.Flags = flags.Merge(debug.Flags)
	app.Before = func(ctx *cli.Context) error {
		flags.MigrateGlobalFlags(ctx)
		return debug.Setup(ctx)
	}
	app.After = func(ctx *cli.Context) error {
		debug.Exit()
		return nil
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
