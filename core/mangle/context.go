package mangle

import (
	"math/rand"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

// PropKey identifies one entry of a context's property map. Keys compare by
// identity, so two strategies using the same name never collide.
type PropKey struct {
	name string
}

// NewPropKey returns a fresh key.
func NewPropKey(name string) *PropKey { return &PropKey{name: name} }

func (k *PropKey) String() string { return k.name }

// Context is what a strategy sees while it mangles one method. It is owned
// by a single worker and must not be shared.
type Context struct {
	Method   *cil.MethodBody
	Config   Config
	Importer cil.Importer
	Rand     *rand.Rand

	root  *Root
	block *Block
	props map[*PropKey]interface{}
	jumps int
}

func newContext(body *cil.MethodBody, root *Root, cfg Config, imp cil.Importer, rng *rand.Rand) *Context {
	if imp == nil {
		imp = cil.DefaultImporter{}
	}
	return &Context{Method: body, Config: cfg, Importer: imp, Rand: rng, root: root}
}

// Root returns the mangling tree of the method.
func (c *Context) Root() *Root { return c.root }

// Block returns the block the strategy is currently invoked on.
func (c *Context) Block() *Block { return c.block }

// Flow returns the stack snapshot taken before any strategy ran.
func (c *Context) Flow() *cil.FlowInfo { return c.root.Flow }

// SplitFragments splits the original content of a regular block. Every call
// draws fresh random splits; the block itself is left untouched.
func (c *Context) SplitFragments(b *Block) ([]Fragment, error) {
	if b == nil || b.Kind != KindRegular {
		return nil, ErrNotRegular
	}
	return splitFragments(b.original, c.root.Flow, c.Config.Intensity, c.Rand), nil
}

// FallthroughTarget returns the instruction control reached after the last
// original instruction of b, or nil at the end of the method.
func (c *Context) FallthroughTarget(b *Block) *cil.Instruction {
	if b == nil || len(b.original) == 0 {
		return nil
	}
	return c.root.Next(b.original.Last())
}

// StackEmptyAfter reports whether the snapshot has an empty stack after ins.
// Synthesized instructions are unknown to the snapshot and report false.
func (c *Context) StackEmptyAfter(ins *cil.Instruction) bool {
	e, ok := c.root.Flow.Get(ins)
	return ok && e.DepthAfter == 0
}

// AddJump appends to f the shortest transfer of control to target. With an
// empty stack the jump is disguised as a conditional branch on a constant
// false; otherwise a plain br is used so no live value is disturbed.
func (c *Context) AddJump(f Fragment, target *cil.Instruction, stackEmpty bool) Fragment {
	c.jumps++
	if stackEmpty {
		return append(f, c.Importer.Constant(0), c.Importer.Branch(cil.Brfalse, target))
	}
	return append(f, c.Importer.Branch(cil.Br, target))
}

// Prop returns the value stored under key.
func (c *Context) Prop(key *PropKey) (interface{}, bool) {
	v, ok := c.props[key]
	return v, ok
}

// SetProp stores v under key. The map is created on first use.
func (c *Context) SetProp(key *PropKey, v interface{}) {
	if c.props == nil {
		c.props = make(map[*PropKey]interface{})
	}
	c.props[key] = v
}

// PropOrInit returns the value under key, storing init() first when absent.
func (c *Context) PropOrInit(key *PropKey, init func() interface{}) interface{} {
	if v, ok := c.props[key]; ok {
		return v
	}
	v := init()
	c.SetProp(key, v)
	return v
}
