package mangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

type countingImporter struct {
	cil.DefaultImporter
	constants int
}

func (c *countingImporter) Constant(v int32) *cil.Instruction {
	c.constants++
	return c.DefaultImporter.Constant(v)
}

func TestAddJump(t *testing.T) {
	body := loopBody()
	ctx := newTestContext(t, body, Config{}, nil)
	imp := &countingImporter{}
	ctx.Importer = imp

	target := body.Instructions[4]
	frag := Fragment{body.Instructions[0], body.Instructions[1]}

	disguised := ctx.AddJump(frag, target, true)
	require.Len(t, disguised, 4)
	assert.Equal(t, cil.LdcI4_0, disguised[2].OpCode)
	assert.Equal(t, cil.Brfalse, disguised[3].OpCode)
	assert.Same(t, target, disguised[3].Target())
	assert.Equal(t, 1, imp.constants)

	plain := ctx.AddJump(frag, target, false)
	require.Len(t, plain, 3)
	assert.Equal(t, cil.Br, plain[2].OpCode)
	assert.Same(t, target, plain[2].Target())
	assert.Equal(t, 1, imp.constants)
	assert.Equal(t, 2, ctx.jumps)
}

func TestFallthroughTarget(t *testing.T) {
	body, _ := tryCatchBody()
	ctx := newTestContext(t, body, Config{}, nil)
	regs := ctx.Root().Regulars()

	assert.Same(t, body.Instructions[1], ctx.FallthroughTarget(regs[0]))
	assert.Nil(t, ctx.FallthroughTarget(regs[3]))
	assert.Nil(t, ctx.FallthroughTarget(ctx.Root().Block))
}

func TestProps(t *testing.T) {
	ctx := newTestContext(t, loopBody(), Config{}, nil)
	key := NewPropKey("counter")
	other := NewPropKey("counter")

	_, ok := ctx.Prop(key)
	assert.False(t, ok)
	assert.Nil(t, ctx.props)

	ctx.SetProp(key, 1)
	v, ok := ctx.Prop(key)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = ctx.Prop(other)
	assert.False(t, ok, "keys compare by identity")

	calls := 0
	init := func() interface{} { calls++; return "x" }
	assert.Equal(t, "x", ctx.PropOrInit(other, init))
	assert.Equal(t, "x", ctx.PropOrInit(other, init))
	assert.Equal(t, 1, calls)
}

func TestStackEmptyAfter(t *testing.T) {
	body := forcedSplitBody()
	ctx := newTestContext(t, body, Config{}, nil)
	assert.False(t, ctx.StackEmptyAfter(body.Instructions[2]))
	assert.True(t, ctx.StackEmptyAfter(body.Instructions[5]))
	assert.False(t, ctx.StackEmptyAfter(cil.New(cil.Nop, nil)))
}
