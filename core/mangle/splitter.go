package mangle

import (
	"math/rand"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

// splitFragments cuts instrs into fragments that can be reordered freely.
// A boundary may follow an instruction only when the stack is empty after
// it, it is not a prefix, and no instruction is pending in the required set.
// Pending instructions are targets of jumps taken with a non-empty stack:
// the code in between must stay in one piece until they have been passed.
func splitFragments(instrs Fragment, flow *cil.FlowInfo, intensity float64, rng *rand.Rand) []Fragment {
	required := mapset.NewThreadUnsafeSet[*cil.Instruction]()
	var (
		out []Fragment
		cur Fragment
	)
	for _, ins := range instrs {
		cur = append(cur, ins)

		e, _ := flow.Get(ins)
		forced := false
		switch ins.OpCode.Flow {
		case cil.FlowBranch, cil.FlowCondBranch, cil.FlowReturn, cil.FlowThrow:
			forced = true
			if e.DepthAfter != 0 {
				for _, t := range ins.Targets() {
					required.Add(t)
				}
			}
		}
		// A jump back to ins itself is already passed.
		required.Remove(ins)
		if ins.OpCode.Type == cil.Prefix || e.DepthAfter != 0 || required.Cardinality() != 0 {
			continue
		}
		if forced || (rng != nil && intensity > 0 && rng.Float64() < intensity) {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
