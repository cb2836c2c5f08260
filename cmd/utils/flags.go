// Package utils contains internal helper functions for netfuser commands.
package utils

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dotnet-toolset/Netfuser-sub001/core/obfuscator"
	"github.com/dotnet-toolset/Netfuser-sub001/internal/flags"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.

var (
	// General settings
	ConfigFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}

	// Mangling settings
	SeedFlag = &cli.Int64Flag{
		Name:     "seed",
		Usage:    "Global random seed; every method derives its own seed from it",
		Value:    obfuscator.DefaultConfig.Seed,
		Category: flags.MangleCategory,
	}
	IntensityFlag = &cli.Float64Flag{
		Name:     "intensity",
		Usage:    "Probability of splitting a block at a legal boundary, in [0, 1)",
		Value:    obfuscator.DefaultConfig.Mangle.Intensity,
		Category: flags.MangleCategory,
	}
	DebugModeFlag = &cli.BoolFlag{
		Name:     "debug",
		Usage:    "Verify every mangled method eagerly (slower)",
		Category: flags.MangleCategory,
	}
	StrategyFlag = &cli.StringFlag{
		Name:     "strategy",
		Usage:    "Comma separated list of strategies to draw from (default: all)",
		Category: flags.MangleCategory,
	}
	WorkersFlag = &cli.IntFlag{
		Name:     "workers",
		Usage:    "Number of parallel mangling workers (0 = derived from the CPU count)",
		Category: flags.MangleCategory,
	}

	// Output settings
	OutputFlag = &cli.StringFlag{
		Name:     "out",
		Aliases:  []string{"o"},
		Usage:    "Output file (directory when several inputs are given, - for stdout)",
		Category: flags.OutputCategory,
	}
	ReportFlag = &cli.BoolFlag{
		Name:     "report",
		Usage:    "Print a per-method report table",
		Category: flags.OutputCategory,
	}
	MethodFlag = &cli.StringFlag{
		Name:     "method",
		Usage:    "Method to inspect (default: every method with a body)",
		Category: flags.OutputCategory,
	}
	FormatFlag = &cli.StringFlag{
		Name:     "format",
		Usage:    "Graph output format: dot or svg (inferred from --out when omitted)",
		Category: flags.OutputCategory,
	}
)

// MangleFlags are the flags shared by the commands that run the engine.
var MangleFlags = []cli.Flag{
	ConfigFileFlag,
	SeedFlag,
	IntensityFlag,
	DebugModeFlag,
	StrategyFlag,
	WorkersFlag,
}

// SetObfuscatorConfig applies the mangling flags that were set explicitly.
func SetObfuscatorConfig(ctx *cli.Context, cfg *obfuscator.Config) {
	if ctx.IsSet(SeedFlag.Name) {
		cfg.Seed = ctx.Int64(SeedFlag.Name)
	}
	if ctx.IsSet(IntensityFlag.Name) {
		cfg.Mangle.Intensity = ctx.Float64(IntensityFlag.Name)
	}
	if ctx.IsSet(DebugModeFlag.Name) {
		cfg.Mangle.DebugMode = ctx.Bool(DebugModeFlag.Name)
	}
	if ctx.IsSet(StrategyFlag.Name) {
		cfg.Strategies = SplitAndTrim(ctx.String(StrategyFlag.Name))
	}
	if ctx.IsSet(WorkersFlag.Name) {
		cfg.Workers = ctx.Int(WorkersFlag.Name)
	}
}

// SplitAndTrim splits input separated by a comma
// and trims excessive white space from the substrings.
func SplitAndTrim(input string) (ret []string) {
	l := strings.Split(input, ",")
	for _, r := range l {
		if r = strings.TrimSpace(r); r != "" {
			ret = append(ret, r)
		}
	}
	return ret
}
