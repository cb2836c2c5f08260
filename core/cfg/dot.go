package cfg

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// DOT renders the graph in Graphviz format. When keys is non-nil, each node
// also shows its entry and exit state.
func (g *Graph) DOT(title string, keys []CfBlockKey) []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	fmt.Fprintln(w, "digraph CFG {")
	fmt.Fprintln(w, "  rankdir=TB;")
	fmt.Fprintln(w, "  node [shape=box, fontname=\"monospace\"];")
	if title != "" {
		fmt.Fprintf(w, "  labelloc=\"t\";\n  label=\"%s\";\n", escapeDOT(title))
	}
	for _, b := range g.Blocks {
		first, last := "", ""
		if b.Header != nil {
			first = b.Header.String()
		}
		if b.Footer != nil {
			last = b.Footer.String()
		}
		label := fmt.Sprintf("B%d %s\\ninsns=%d handlers=%d\\nfirst: %s\\nlast: %s",
			b.Index, b.Type, len(b.Instructions), len(b.Handlers), first, last)
		if keys != nil && b.Index < len(keys) {
			k := keys[b.Index]
			label += fmt.Sprintf("\\nkey %s %08x -> %08x", k.Type, k.EntryState, k.ExitState)
		}
		shape := ""
		switch {
		case b.IsEntry() && b.IsExit():
			shape = ", style=bold, peripheries=2"
		case b.IsEntry():
			shape = ", style=bold"
		case b.IsExit():
			shape = ", peripheries=2"
		}
		fmt.Fprintf(w, "  n%d [label=\"%s\"%s];\n", b.Index, escapeDOT(label), shape)
	}
	for _, b := range g.Blocks {
		for _, t := range b.Targets {
			fmt.Fprintf(w, "  n%d -> n%d;\n", b.Index, t)
		}
	}
	fmt.Fprintln(w, "}")
	w.Flush()
	return buf.Bytes()
}

func escapeDOT(s string) string {
	// Backslash sequences such as \n are left for Graphviz.
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
