package ilfile

import (
	"sync"

	"golang.org/x/exp/maps"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

// Importer synthesizes instructions for a listing. A listing has no
// metadata tables, so constants become plain ldc.i4 forms; the importer
// keeps count of what it handed out. Safe for concurrent use.
type Importer struct {
	mu        sync.Mutex
	constants map[int32]int
	branches  map[string]int
}

// NewImporter returns an empty importer.
func NewImporter() *Importer {
	return &Importer{constants: make(map[int32]int), branches: make(map[string]int)}
}

func (imp *Importer) Constant(v int32) *cil.Instruction {
	imp.mu.Lock()
	imp.constants[v]++
	imp.mu.Unlock()
	return cil.LoadConstant(v)
}

func (imp *Importer) Branch(op *cil.OpCode, target *cil.Instruction) *cil.Instruction {
	imp.mu.Lock()
	imp.branches[op.Name]++
	imp.mu.Unlock()
	return cil.NewBranch(op, target)
}

// Stats is a snapshot of the importer counters.
type Stats struct {
	Constants map[int32]int
	Branches  map[string]int
}

// Stats returns a copy of the counters.
func (imp *Importer) Stats() Stats {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return Stats{Constants: maps.Clone(imp.constants), Branches: maps.Clone(imp.branches)}
}
