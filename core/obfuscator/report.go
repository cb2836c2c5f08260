package obfuscator

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle"
)

// Report describes a completed run, one entry per method in module order.
type Report struct {
	Module  string
	Seed    int64
	Methods []*mangle.Result
	Elapsed time.Duration
}

// Totals aggregates the results of a report.
type Totals struct {
	Mangled   int
	Skipped   int
	Fragments int
	Jumps     int
	Before    int
	After     int
}

// Totals sums the per-method results.
func (r *Report) Totals() Totals {
	var t Totals
	for _, res := range r.Methods {
		if res.Skipped {
			t.Skipped++
		} else {
			t.Mangled++
		}
		t.Fragments += res.Fragments
		t.Jumps += res.Jumps
		t.Before += res.Before
		t.After += res.After
	}
	return t
}

// WriteTable renders the report as a table.
func (r *Report) WriteTable(w io.Writer, useColor bool) {
	var (
		ok   = color.New(color.FgGreen)
		skip = color.New(color.Faint)
	)
	if useColor {
		ok.EnableColor()
		skip.EnableColor()
	} else {
		ok.DisableColor()
		skip.DisableColor()
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Method", "Strategy", "Status", "Blocks", "Fragments", "Jumps", "Instrs", "MaxStack"})
	for _, res := range r.Methods {
		status := ok.Sprint("mangled")
		if res.Skipped {
			status = skip.Sprint("skipped")
		}
		table.Append([]string{
			res.Method,
			res.Strategy,
			status,
			fmt.Sprint(res.Blocks),
			fmt.Sprint(res.Fragments),
			fmt.Sprint(res.Jumps),
			fmt.Sprintf("%d -> %d", res.Before, res.After),
			fmt.Sprint(res.MaxStack),
		})
	}
	t := r.Totals()
	table.SetFooter([]string{
		r.Module,
		fmt.Sprintf("seed %d", r.Seed),
		fmt.Sprintf("%d/%d", t.Mangled, t.Mangled+t.Skipped),
		"",
		fmt.Sprint(t.Fragments),
		fmt.Sprint(t.Jumps),
		fmt.Sprintf("%d -> %d", t.Before, t.After),
		r.Elapsed.Round(time.Millisecond).String(),
	})
	table.Render()
}

