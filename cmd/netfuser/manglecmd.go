package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dotnet-toolset/Netfuser-sub001/cmd/utils"
	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle/strategies"
	"github.com/dotnet-toolset/Netfuser-sub001/core/obfuscator"
	"github.com/dotnet-toolset/Netfuser-sub001/internal/debug"
	"github.com/dotnet-toolset/Netfuser-sub001/internal/flags"
	"github.com/dotnet-toolset/Netfuser-sub001/internal/ilfile"
	"github.com/dotnet-toolset/Netfuser-sub001/log"
)

var mangleCommand = &cli.Command{
	Action:    mangleFiles,
	Name:      "mangle",
	Usage:     "Mangle the control flow of method listings",
	ArgsUsage: "<listing.yaml> [listing.yaml...]",
	Flags: flags.Merge(utils.MangleFlags, []cli.Flag{
		utils.OutputFlag,
		utils.ReportFlag,
	}),
	Description: `
The mangle command splits every method body into fragments, scrambles them
with the selected strategies and writes the result as a new listing.

Each listing is processed as one unit: if any method fails verification the
listing is not written. Without --out, the result of a.yaml is written to
a.mangled.yaml. With several inputs --out names a directory.`,
}

// outputPath decides where the listing read from in is written.
func outputPath(in, out string, many bool) string {
	switch {
	case out == "":
		ext := filepath.Ext(in)
		return strings.TrimSuffix(in, ext) + ".mangled" + ext
	case many:
		return filepath.Join(out, filepath.Base(in))
	}
	return out
}

func mangleFiles(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("required arguments: %v", ctx.Command.ArgsUsage)
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	var (
		inputs = ctx.Args().Slice()
		out    = ctx.String(utils.OutputFlag.Name)
		many   = len(inputs) > 1
	)
	if many && out == "-" {
		return errors.New("--out - only works with a single input")
	}
	if many && out != "" {
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}
	}

	registry, err := strategies.NewRegistry()
	if err != nil {
		return err
	}
	importer := ilfile.NewImporter()
	o, err := obfuscator.New(cfg.Obfuscator, registry, importer)
	if err != nil {
		return err
	}

	var (
		reports = make([]*obfuscator.Report, len(inputs))
		errs    = make([]error, len(inputs))
		g       errgroup.Group
	)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			reports[i], errs[i] = mangleFile(ctx.Context, o, in, outputPath(in, out, many))
			return nil
		})
	}
	g.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}
	stats := importer.Stats()
	log.DebugIf(len(stats.Constants) > 0 || len(stats.Branches) > 0, "Importer statistics", "constants", len(stats.Constants), "branches", stats.Branches)

	if ctx.Bool(utils.ReportFlag.Name) {
		w, useColor := reportOutput()
		for _, r := range reports {
			r.WriteTable(w, useColor)
		}
	}
	return nil
}

// mangleFile reads one listing, mangles it and writes it to dst. Inputs
// are independent: a failing one leaves the others alone.
func mangleFile(ctx context.Context, o *obfuscator.Obfuscator, in, dst string) (*obfuscator.Report, error) {
	defer debug.Tracer.StartRegionAuto("mangle " + in)()

	m, err := ilfile.ReadFile(in)
	if err != nil {
		return nil, err
	}
	report, err := o.Run(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}
	if dst == "-" {
		return report, ilfile.Write(os.Stdout, m)
	}
	if err := ilfile.WriteFile(dst, m); err != nil {
		return nil, err
	}
	log.Info("Wrote mangled listing", "input", in, "output", dst)
	return report, nil
}

// reportOutput returns the writer tables go to and whether it takes colors.
func reportOutput() (io.Writer, bool) {
	if isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("TERM") != "dumb" {
		return colorable.NewColorableStdout(), true
	}
	return os.Stdout, false
}
