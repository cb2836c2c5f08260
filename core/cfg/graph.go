// Package cfg builds the structural control-flow graph of a method body and
// derives per-block state keys from it.
//
// Blocks live in one arena owned by the Graph; edges are index lists into
// that arena, so loops need no back-pointers.
package cfg

import (
	"fmt"

	"github.com/willf/bitset"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

// BlockType flags a block whose predecessors or successors are not visible
// inside the method. A block with neither flag is a normal block.
type BlockType uint8

const (
	Normal BlockType = 0
	Entry  BlockType = 1 << 0
	Exit   BlockType = 1 << 1
)

func (t BlockType) String() string {
	switch t {
	case Normal:
		return "normal"
	case Entry:
		return "entry"
	case Exit:
		return "exit"
	case Entry | Exit:
		return "entry|exit"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// CfBlock is a maximal straight-line run of instructions.
type CfBlock struct {
	Index        int
	Type         BlockType
	Header       *cil.Instruction
	Footer       *cil.Instruction
	Instructions []*cil.Instruction
	Sources      []int
	Targets      []int
	Handlers     []*cil.ExceptionHandler

	sourceSet *bitset.BitSet
	targetSet *bitset.BitSet
}

func (b *CfBlock) IsEntry() bool { return b.Type&Entry != 0 }
func (b *CfBlock) IsExit() bool  { return b.Type&Exit != 0 }

func (b *CfBlock) String() string {
	return fmt.Sprintf("B%d(%s, %d insns)", b.Index, b.Type, len(b.Instructions))
}

// Graph is the arena of blocks of one method.
type Graph struct {
	Body   *cil.MethodBody
	Blocks []*CfBlock

	byInstr map[*cil.Instruction]int
}

// NewGraph returns an empty graph. Build fills one from a method body;
// synthetic graphs are assembled with AddBlock and AddEdge.
func NewGraph() *Graph {
	return &Graph{byInstr: make(map[*cil.Instruction]int)}
}

// Len returns the number of blocks.
func (g *Graph) Len() int { return len(g.Blocks) }

// AddBlock appends a block holding instrs and returns it.
func (g *Graph) AddBlock(typ BlockType, instrs ...*cil.Instruction) *CfBlock {
	b := &CfBlock{
		Index:        len(g.Blocks),
		Type:         typ,
		Instructions: instrs,
		sourceSet:    bitset.New(0),
		targetSet:    bitset.New(0),
	}
	if len(instrs) > 0 {
		b.Header = instrs[0]
		b.Footer = instrs[len(instrs)-1]
	}
	for _, ins := range instrs {
		g.byInstr[ins] = b.Index
	}
	g.Blocks = append(g.Blocks, b)
	return b
}

// AddEdge links from -> to. Duplicate edges are ignored, so a conditional
// branch to its own fallthrough yields one edge.
func (g *Graph) AddEdge(from, to int) {
	src, dst := g.Blocks[from], g.Blocks[to]
	if !src.targetSet.Test(uint(to)) {
		src.targetSet.Set(uint(to))
		src.Targets = append(src.Targets, to)
	}
	if !dst.sourceSet.Test(uint(from)) {
		dst.sourceSet.Set(uint(from))
		dst.Sources = append(dst.Sources, from)
	}
}

// GetContainingBlock returns the block that owns ins, or nil.
func (g *Graph) GetContainingBlock(ins *cil.Instruction) *CfBlock {
	i, ok := g.byInstr[ins]
	if !ok {
		return nil
	}
	return g.Blocks[i]
}

// Build splits body into blocks and links them along declared control flow:
// fallthrough, branch and switch targets. Handler entries have no incoming
// edge; they are flagged Entry instead.
func Build(body *cil.MethodBody) (*Graph, error) {
	flow, err := cil.ComputeFlow(body)
	if err != nil {
		return nil, err
	}
	instrs := body.Instructions
	index := body.IndexOf()

	starts := bitset.New(uint(len(instrs)))
	starts.Set(0)
	mark := func(ins *cil.Instruction) error {
		if ins == nil {
			return nil
		}
		i, ok := index[ins]
		if !ok {
			return fmt.Errorf("%w: handler boundary %v", cil.ErrDanglingTarget, ins)
		}
		starts.Set(uint(i))
		return nil
	}
	entries := make(map[*cil.Instruction]bool)
	for _, h := range body.Handlers {
		for _, ins := range []*cil.Instruction{h.TryStart, h.TryEnd, h.FilterStart, h.HandlerStart, h.HandlerEnd} {
			if err := mark(ins); err != nil {
				return nil, err
			}
		}
		if h.HandlerStart != nil {
			entries[h.HandlerStart] = true
		}
		if h.FilterStart != nil {
			entries[h.FilterStart] = true
		}
	}
	for i, ins := range instrs {
		if flow.At(i).RefCount > 0 {
			starts.Set(uint(i))
		}
		switch ins.OpCode.Flow {
		case cil.FlowBranch, cil.FlowCondBranch, cil.FlowReturn, cil.FlowThrow:
			if i+1 < len(instrs) {
				starts.Set(uint(i + 1))
			}
		}
	}

	g := NewGraph()
	g.Body = body
	for i := 0; i < len(instrs); {
		j := i + 1
		for j < len(instrs) && !starts.Test(uint(j)) {
			j++
		}
		typ := Normal
		if i == 0 || entries[instrs[i]] {
			typ |= Entry
		}
		switch instrs[j-1].OpCode.Flow {
		case cil.FlowReturn, cil.FlowThrow:
			typ |= Exit
		}
		g.AddBlock(typ, instrs[i:j]...)
		i = j
	}

	for _, b := range g.Blocks {
		footer := b.Footer
		if !footer.OpCode.EndsFlow() && b.Index+1 < len(g.Blocks) {
			g.AddEdge(b.Index, b.Index+1)
		}
		for _, t := range footer.Targets() {
			g.AddEdge(b.Index, g.byInstr[t])
		}
	}
	g.attachHandlers(index)
	return g, nil
}

// attachHandlers records, per block, every handler whose try, filter or
// handler range contains the block header.
func (g *Graph) attachHandlers(index map[*cil.Instruction]int) {
	end := func(ins *cil.Instruction) int {
		if ins == nil {
			return len(g.Body.Instructions)
		}
		return index[ins]
	}
	for _, h := range g.Body.Handlers {
		var ranges [][2]int
		if h.TryStart != nil {
			ranges = append(ranges, [2]int{index[h.TryStart], end(h.TryEnd)})
		}
		if h.FilterStart != nil && h.HandlerStart != nil {
			ranges = append(ranges, [2]int{index[h.FilterStart], index[h.HandlerStart]})
		}
		if h.HandlerStart != nil {
			ranges = append(ranges, [2]int{index[h.HandlerStart], end(h.HandlerEnd)})
		}
		for _, b := range g.Blocks {
			at := index[b.Header]
			for _, r := range ranges {
				if at >= r[0] && at < r[1] {
					b.Handlers = append(b.Handlers, h)
					break
				}
			}
		}
	}
}
