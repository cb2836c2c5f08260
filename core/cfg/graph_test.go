package cfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

func newBody(returns bool, instrs ...*cil.Instruction) *cil.MethodBody {
	b := &cil.MethodBody{Name: "test", Instructions: instrs, ReturnsValue: returns}
	b.UpdateOffsets()
	return b
}

// ifElse builds
//
//	ldarg.0; brfalse ELSE; ldc.i4.1; br END; ELSE: ldc.i4.2; END: ret
func ifElse() (*cil.MethodBody, []*cil.Instruction) {
	end := cil.New(cil.Ret, nil)
	els := cil.New(cil.LdcI4_2, nil)
	instrs := []*cil.Instruction{
		cil.New(cil.Ldarg0, nil),
		cil.NewBranch(cil.Brfalse, els),
		cil.New(cil.LdcI4_1, nil),
		cil.NewBranch(cil.Br, end),
		els,
		end,
	}
	return newBody(true, instrs...), instrs
}

func TestBuildIfElse(t *testing.T) {
	body, instrs := ifElse()
	g, err := Build(body)
	require.NoError(t, err)
	require.Equal(t, 4, g.Len())

	b0, b1, b2, b3 := g.Blocks[0], g.Blocks[1], g.Blocks[2], g.Blocks[3]
	assert.Equal(t, Entry, b0.Type)
	assert.Equal(t, Normal, b1.Type)
	assert.Equal(t, Normal, b2.Type)
	assert.Equal(t, Exit, b3.Type)

	assert.Equal(t, []int{1, 2}, b0.Targets)
	assert.Equal(t, []int{3}, b1.Targets)
	assert.Equal(t, []int{3}, b2.Targets)
	assert.Equal(t, []int{1, 2}, b3.Sources)
	assert.Empty(t, b3.Targets)

	assert.Same(t, instrs[0], b0.Header)
	assert.Same(t, instrs[1], b0.Footer)
	assert.Same(t, b2, g.GetContainingBlock(instrs[4]))
	assert.Same(t, b1, g.GetContainingBlock(instrs[3]))
	assert.Nil(t, g.GetContainingBlock(cil.New(cil.Nop, nil)))
}

func TestBuildPartitionsEveryInstruction(t *testing.T) {
	body, instrs := ifElse()
	g, err := Build(body)
	require.NoError(t, err)

	var seen []*cil.Instruction
	for _, b := range g.Blocks {
		seen = append(seen, b.Instructions...)
	}
	assert.Equal(t, instrs, seen)
}

func TestBuildSwitchDedupesEdges(t *testing.T) {
	ret := cil.New(cil.Ret, nil)
	body := newBody(false,
		cil.New(cil.Ldarg0, nil),
		&cil.Instruction{OpCode: cil.Switch, Operand: []*cil.Instruction{ret, ret}},
		cil.New(cil.Nop, nil),
		ret,
	)
	g, err := Build(body)
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())
	assert.Equal(t, []int{1, 2}, g.Blocks[0].Targets)
	assert.Equal(t, []int{0, 1}, g.Blocks[2].Sources)
}

func TestBuildHandlers(t *testing.T) {
	tryStart := cil.New(cil.Nop, nil)
	after := cil.New(cil.Ret, nil)
	catchStart := cil.New(cil.Pop, nil)
	body := newBody(false,
		tryStart,
		cil.NewBranch(cil.Leave, after),
		catchStart,
		cil.NewBranch(cil.Leave, after),
		after,
	)
	h := &cil.ExceptionHandler{
		Kind:         cil.HandlerCatch,
		TryStart:     tryStart,
		TryEnd:       catchStart,
		HandlerStart: catchStart,
		HandlerEnd:   after,
	}
	body.Handlers = []*cil.ExceptionHandler{h}

	g, err := Build(body)
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())

	assert.Equal(t, []*cil.ExceptionHandler{h}, g.Blocks[0].Handlers)
	assert.Equal(t, []*cil.ExceptionHandler{h}, g.Blocks[1].Handlers)
	assert.Empty(t, g.Blocks[2].Handlers)

	// The catch block is entered by the runtime, not by an edge.
	assert.True(t, g.Blocks[1].IsEntry())
	assert.Empty(t, g.Blocks[1].Sources)
	assert.Equal(t, []int{0, 1}, g.Blocks[2].Sources)
}

func TestBuildRejectsBrokenBody(t *testing.T) {
	_, err := Build(newBody(false, cil.NewBranch(cil.Br, cil.New(cil.Ret, nil))))
	assert.ErrorIs(t, err, cil.ErrDanglingTarget)
}

func TestDOT(t *testing.T) {
	body, _ := ifElse()
	g, err := Build(body)
	require.NoError(t, err)

	dot := string(g.DOT("if \"else\"", NewKeySequence(g, nil).ComputeKeys()))
	assert.True(t, strings.HasPrefix(dot, "digraph CFG {"))
	assert.Contains(t, dot, `label="if \"else\""`)
	assert.Contains(t, dot, "n0 -> n1;")
	assert.Contains(t, dot, "n0 -> n2;")
	assert.Contains(t, dot, "key explicit")
}
