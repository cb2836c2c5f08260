package cil

// SimplifyBranches rewrites every short-form branch into its long form so that
// later insertions cannot push a target out of the 8-bit displacement range.
// It returns the number of rewritten instructions.
func SimplifyBranches(body *MethodBody) int {
	n := 0
	for _, ins := range body.Instructions {
		if long := ins.OpCode.Long(); long != nil {
			ins.OpCode = long
			n++
		}
	}
	return n
}

// OptimizeBranches collapses long-form branches into short forms wherever the
// displacement fits in a signed byte. Shrinking only ever brings instructions
// closer together, so a branch made short stays valid; the loop repeats until
// no more branches fit. Offsets are up to date on return.
func OptimizeBranches(body *MethodBody) int {
	n := 0
	for {
		body.UpdateOffsets()
		changed := false
		for _, ins := range body.Instructions {
			short := ins.OpCode.Short()
			if short == nil {
				continue
			}
			target := ins.Target()
			if target == nil {
				continue
			}
			// Short branches are two bytes: opcode plus displacement.
			next := int64(ins.Offset) + 2
			disp := int64(target.Offset) - next
			if disp < -128 || disp > 127 {
				continue
			}
			ins.OpCode = short
			changed = true
			n++
		}
		if !changed {
			break
		}
	}
	body.UpdateOffsets()
	return n
}
