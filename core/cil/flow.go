package cil

import (
	"errors"
	"fmt"
)

// MaxStackLimit is the largest max-stack value the method header can encode.
const MaxStackLimit = 0xffff

var (
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrStackMismatch   = errors.New("stack depth mismatch")
	ErrStackOverflow   = errors.New("max stack exceeds header limit")
	ErrDanglingTarget  = errors.New("branch target not in method body")
	ErrFallOffEnd      = errors.New("control falls off the end of the method")
	ErrEmptyMethodBody = errors.New("method body has no instructions")
)

// FlowEntry is the per-instruction stack state of a body snapshot.
type FlowEntry struct {
	DepthBefore int
	DepthAfter  int
	RefCount    int
	Reached     bool
}

// FlowInfo caches stack depth and reference counts for one body snapshot.
// Any rewrite of the instruction list invalidates it.
type FlowInfo struct {
	entries []FlowEntry
	index   map[*Instruction]int
}

// Get returns the entry of ins. Instructions synthesized after the snapshot
// report a zero entry and ok == false.
func (f *FlowInfo) Get(ins *Instruction) (FlowEntry, bool) {
	i, ok := f.index[ins]
	if !ok {
		return FlowEntry{}, false
	}
	return f.entries[i], true
}

// At returns the entry of the i-th instruction.
func (f *FlowInfo) At(i int) FlowEntry { return f.entries[i] }

// Index returns the position of ins in the snapshot.
func (f *FlowInfo) Index(ins *Instruction) (int, bool) {
	i, ok := f.index[ins]
	return i, ok
}

// Len returns the number of instructions in the snapshot.
func (f *FlowInfo) Len() int { return len(f.entries) }

// MaxStack returns the highest stack occupancy over all reached instructions.
func (f *FlowInfo) MaxStack() int {
	max := 0
	for _, e := range f.entries {
		if !e.Reached {
			continue
		}
		if e.DepthBefore > max {
			max = e.DepthBefore
		}
		if e.DepthAfter > max {
			max = e.DepthAfter
		}
	}
	return max
}

// ComputeFlow propagates stack depth from the method entry and every handler
// entry through all reachable instructions, checking that every merge point
// is reached with one consistent depth.
func ComputeFlow(body *MethodBody) (*FlowInfo, error) {
	if !body.HasBody() {
		return nil, ErrEmptyMethodBody
	}
	instrs := body.Instructions
	info := &FlowInfo{
		entries: make([]FlowEntry, len(instrs)),
		index:   body.IndexOf(),
	}
	for _, ins := range instrs {
		for _, t := range ins.Targets() {
			ti, ok := info.index[t]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrDanglingTarget, ins)
			}
			info.entries[ti].RefCount++
		}
	}

	worklist := make([]int, 0, len(instrs))
	enter := func(i int, depth int, from *Instruction) error {
		e := &info.entries[i]
		if !e.Reached {
			e.Reached = true
			e.DepthBefore = depth
			worklist = append(worklist, i)
			return nil
		}
		if e.DepthBefore != depth {
			return fmt.Errorf("%w at %s: have %d, incoming %d from %v", ErrStackMismatch, instrs[i], e.DepthBefore, depth, from)
		}
		return nil
	}
	lookup := func(ins *Instruction) (int, error) {
		i, ok := info.index[ins]
		if !ok {
			return 0, fmt.Errorf("%w: handler boundary %v", ErrDanglingTarget, ins)
		}
		return i, nil
	}
	if err := enter(0, 0, nil); err != nil {
		return nil, err
	}
	for _, h := range body.Handlers {
		if h.TryStart != nil {
			i, err := lookup(h.TryStart)
			if err != nil {
				return nil, err
			}
			if err := enter(i, 0, nil); err != nil {
				return nil, err
			}
		}
		if h.HandlerStart != nil {
			i, err := lookup(h.HandlerStart)
			if err != nil {
				return nil, err
			}
			if err := enter(i, h.EntryDepth(), nil); err != nil {
				return nil, err
			}
		}
		if h.FilterStart != nil {
			i, err := lookup(h.FilterStart)
			if err != nil {
				return nil, err
			}
			if err := enter(i, 1, nil); err != nil {
				return nil, err
			}
		}
	}

	for len(worklist) > 0 {
		i := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		ins := instrs[i]
		e := &info.entries[i]
		pops, pushes := ins.StackEffect(body.ReturnsValue)
		if e.DepthBefore < pops {
			return nil, fmt.Errorf("%w at %s: needed %d, have %d", ErrStackUnderflow, ins, pops, e.DepthBefore)
		}
		if ins.OpCode == Ret && e.DepthBefore != pops {
			return nil, fmt.Errorf("%w at %s: %d values left on the stack", ErrStackMismatch, ins, e.DepthBefore-pops)
		}
		after := e.DepthBefore - pops + pushes
		if ins.OpCode.IsLeave() {
			after = 0
		}
		if after > MaxStackLimit {
			return nil, fmt.Errorf("%w at %s: depth %d", ErrStackOverflow, ins, after)
		}
		e.DepthAfter = after

		if !ins.OpCode.EndsFlow() {
			if i+1 >= len(instrs) {
				return nil, fmt.Errorf("%w: %s", ErrFallOffEnd, ins)
			}
			if err := enter(i+1, after, ins); err != nil {
				return nil, err
			}
		}
		for _, t := range ins.Targets() {
			if err := enter(info.index[t], after, ins); err != nil {
				return nil, err
			}
		}
	}
	return info, nil
}

// ComputeMaxStack recomputes the maximum evaluation stack depth of body.
func ComputeMaxStack(body *MethodBody) (int, error) {
	info, err := ComputeFlow(body)
	if err != nil {
		return 0, err
	}
	return info.MaxStack(), nil
}

// NewFlowInfo builds a snapshot from precomputed entries, one per instruction.
// Importers that already carry stack annotations use it to skip ComputeFlow.
func NewFlowInfo(instrs []*Instruction, entries []FlowEntry) (*FlowInfo, error) {
	if len(instrs) != len(entries) {
		return nil, fmt.Errorf("flow info: %d instructions, %d entries", len(instrs), len(entries))
	}
	info := &FlowInfo{
		entries: append([]FlowEntry(nil), entries...),
		index:   make(map[*Instruction]int, len(instrs)),
	}
	for i, ins := range instrs {
		info.index[ins] = i
	}
	return info, nil
}
