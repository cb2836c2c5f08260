package cil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplifyBranches(t *testing.T) {
	ret := New(Ret, nil)
	b := body(false,
		New(Ldarg0, nil),
		NewBranch(BrfalseS, ret),
		NewBranch(BrS, ret),
		ret,
	)
	assert.Equal(t, 2, SimplifyBranches(b))
	assert.Equal(t, Brfalse, b.Instructions[1].OpCode)
	assert.Equal(t, Br, b.Instructions[2].OpCode)
	assert.Equal(t, 0, SimplifyBranches(b))
}

func TestOptimizeBranchesNear(t *testing.T) {
	ret := New(Ret, nil)
	b := body(false,
		New(Ldarg0, nil),
		NewBranch(Brfalse, ret),
		New(Nop, nil),
		ret,
	)
	assert.Equal(t, 1, OptimizeBranches(b))
	assert.Equal(t, BrfalseS, b.Instructions[1].OpCode)
	// ldarg.0 (1) + brfalse.s (2) + nop (1)
	assert.Equal(t, uint32(4), ret.Offset)
}

func TestOptimizeBranchesFar(t *testing.T) {
	ret := New(Ret, nil)
	instrs := []*Instruction{NewBranch(Br, ret)}
	// 200 bytes of padding keeps the target out of short range.
	for i := 0; i < 200; i++ {
		instrs = append(instrs, New(Nop, nil))
	}
	instrs = append(instrs, ret)
	b := body(false, instrs...)

	assert.Equal(t, 0, OptimizeBranches(b))
	assert.Equal(t, Br, b.Instructions[0].OpCode)
}

func TestOptimizeBranchesFixedPoint(t *testing.T) {
	// The first branch only fits once the second one has been shortened.
	ret := New(Ret, nil)
	instrs := []*Instruction{NewBranch(Br, ret), NewBranch(Br, ret)}
	for i := 0; i < 121; i++ {
		instrs = append(instrs, New(Nop, nil))
	}
	instrs = append(instrs, ret)
	b := body(false, instrs...)

	n := OptimizeBranches(b)
	require.Equal(t, 2, n)
	for _, ins := range b.Instructions[:2] {
		assert.Equal(t, BrS, ins.OpCode)
		assert.LessOrEqual(t, int64(ret.Offset)-int64(ins.Offset+2), int64(127))
	}
}
