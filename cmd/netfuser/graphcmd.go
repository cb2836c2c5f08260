package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/dotnet-toolset/Netfuser-sub001/cmd/utils"
	"github.com/dotnet-toolset/Netfuser-sub001/core/cfg"
	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle"
	"github.com/dotnet-toolset/Netfuser-sub001/internal/ilfile"
)

var (
	graphCommand = &cli.Command{
		Action:    drawGraph,
		Name:      "graph",
		Usage:     "Render the structural control-flow graphs of methods as DOT or SVG",
		ArgsUsage: "<listing.yaml>",
		Flags: []cli.Flag{
			utils.MethodFlag,
			utils.OutputFlag,
			utils.FormatFlag,
			utils.SeedFlag,
		},
		Description: `
The graph command builds the structural block graph of the selected method,
or of every method, assigns state keys to its blocks and renders both. DOT
output holds one digraph per method; SVG output needs --method and
graphviz' dot in PATH. Keys are consecutive unless --seed is given.`,
	}
	keysCommand = &cli.Command{
		Action:    printKeys,
		Name:      "keys",
		Usage:     "Print the structural blocks and state keys of methods",
		ArgsUsage: "<listing.yaml>",
		Flags: []cli.Flag{
			utils.MethodFlag,
			utils.SeedFlag,
		},
	}
)

// graphed is one method with its graph and verified keys.
type graphed struct {
	body  *cil.MethodBody
	graph *cfg.Graph
	keys  []cfg.CfBlockKey
}

// loadGraphs builds graphs for the selected methods of the listing named by
// the first argument.
func loadGraphs(ctx *cli.Context) ([]graphed, error) {
	if ctx.NArg() != 1 {
		return nil, fmt.Errorf("required arguments: %v", ctx.Command.ArgsUsage)
	}
	m, err := ilfile.ReadFile(ctx.Args().First())
	if err != nil {
		return nil, err
	}
	name := ctx.String(utils.MethodFlag.Name)

	var out []graphed
	for _, body := range m.Methods {
		if !body.HasBody() || (name != "" && body.Name != name) {
			continue
		}
		g, err := cfg.Build(body)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", body.Name, err)
		}
		var rng *rand.Rand
		if ctx.IsSet(utils.SeedFlag.Name) {
			rng = mangle.NewRand(ctx.Int64(utils.SeedFlag.Name), body.Name)
		}
		keys := cfg.NewKeySequence(g, rng).ComputeKeys()
		if err := cfg.VerifyKeys(g, keys); err != nil {
			return nil, fmt.Errorf("method %s: %w", body.Name, err)
		}
		out = append(out, graphed{body: body, graph: g, keys: keys})
	}
	if len(out) == 0 {
		if name != "" {
			return nil, fmt.Errorf("no method %q with a body", name)
		}
		return nil, errors.New("listing has no method with a body")
	}
	return out, nil
}

func drawGraph(ctx *cli.Context) error {
	graphs, err := loadGraphs(ctx)
	if err != nil {
		return err
	}
	var dot []byte
	for _, g := range graphs {
		dot = append(dot, g.graph.DOT(g.body.Name, g.keys)...)
	}

	out := ctx.String(utils.OutputFlag.Name)
	format := ctx.String(utils.FormatFlag.Name)
	if format == "" {
		format = "dot"
		if strings.ToLower(filepath.Ext(out)) == ".svg" {
			format = "svg"
		}
	}
	if format == "svg" && len(graphs) > 1 {
		return fmt.Errorf("svg output holds one graph, select one of %d methods with --%s", len(graphs), utils.MethodFlag.Name)
	}
	var data []byte
	switch format {
	case "dot":
		data = dot
	case "svg":
		if data, err = renderSVG(dot); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (use dot or svg)", format)
	}
	if out == "" || out == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func renderSVG(dot []byte) ([]byte, error) {
	if _, err := exec.LookPath("dot"); err != nil {
		return nil, errors.New("dot not found in PATH; install graphviz or choose --format=dot")
	}
	var svg bytes.Buffer
	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = bytes.NewReader(dot)
	cmd.Stdout = &svg
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("dot render: %w", err)
	}
	return svg.Bytes(), nil
}

func printKeys(ctx *cli.Context) error {
	graphs, err := loadGraphs(ctx)
	if err != nil {
		return err
	}
	for _, g := range graphs {
		writeKeys(os.Stdout, g)
	}
	return nil
}

func writeKeys(w io.Writer, g graphed) {
	fmt.Fprintf(w, "%s\n", g.body.Name)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Block", "Type", "Header", "Footer", "Sources", "Targets", "Entry", "Exit", "Key"})
	for i, b := range g.graph.Blocks {
		k := g.keys[i]
		table.Append([]string{
			fmt.Sprintf("B%d", b.Index),
			b.Type.String(),
			b.Header.Label(),
			b.Footer.String(),
			fmt.Sprint(b.Sources),
			fmt.Sprint(b.Targets),
			fmt.Sprint(k.EntryState),
			fmt.Sprint(k.ExitState),
			k.Type.String(),
		})
	}
	table.Render()
}
