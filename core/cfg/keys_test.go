package cfg

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

func TestKeysLinearChain(t *testing.T) {
	g := NewGraph()
	entry := g.AddBlock(Entry, cil.New(cil.Nop, nil))
	a := g.AddBlock(Normal, cil.New(cil.Nop, nil))
	exit := g.AddBlock(Exit, cil.New(cil.Ret, nil))
	g.AddEdge(entry.Index, a.Index)
	g.AddEdge(a.Index, exit.Index)

	keys := NewKeySequence(g, rand.New(rand.NewSource(1))).ComputeKeys()
	require.Len(t, keys, 3)

	assert.Equal(t, Explicit, keys[entry.Index].Type)
	assert.Equal(t, Incremental, keys[a.Index].Type)
	assert.Equal(t, keys[entry.Index].ExitState, keys[a.Index].EntryState)
	assert.Equal(t, Explicit, keys[exit.Index].Type)
	assert.NoError(t, VerifyKeys(g, keys))
}

func TestKeysFromBody(t *testing.T) {
	// nop; br A; A: nop; br X; X: ret
	x := cil.New(cil.Ret, nil)
	a := cil.New(cil.Nop, nil)
	body := newBody(false,
		cil.New(cil.Nop, nil),
		cil.NewBranch(cil.Br, a),
		a,
		cil.NewBranch(cil.Br, x),
		x,
	)
	g, err := Build(body)
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())

	keys := NewKeySequence(g, nil).ComputeKeys()
	assert.Equal(t, []CfBlockKey{
		{EntryState: 1, ExitState: 1, Type: Explicit},
		{EntryState: 1, ExitState: 1, Type: Incremental},
		{EntryState: 1, ExitState: 1, Type: Explicit},
	}, keys)
}

func TestKeysBranchAndMerge(t *testing.T) {
	body, _ := ifElse()
	g, err := Build(body)
	require.NoError(t, err)

	keys := NewKeySequence(g, nil).ComputeKeys()
	require.NoError(t, VerifyKeys(g, keys))

	// The branching entry gets a fresh exit state; both arms and the merge
	// point are explicit.
	assert.NotEqual(t, keys[0].EntryState, keys[0].ExitState)
	for _, i := range []int{1, 2, 3} {
		assert.Equal(t, Explicit, keys[i].Type, "block %d", i)
	}
	states := map[uint32]bool{}
	for _, k := range keys {
		states[k.EntryState] = true
	}
	assert.Len(t, states, 4)
}

func TestKeysDeterministic(t *testing.T) {
	body, _ := ifElse()
	g, err := Build(body)
	require.NoError(t, err)

	k1 := NewKeySequence(g, rand.New(rand.NewSource(42))).ComputeKeys()
	k2 := NewKeySequence(g, rand.New(rand.NewSource(42))).ComputeKeys()
	assert.Equal(t, k1, k2)

	k3 := NewKeySequence(g, rand.New(rand.NewSource(43))).ComputeKeys()
	assert.NotEqual(t, k1, k3)
}

func TestKeysUnreachableCycle(t *testing.T) {
	g := NewGraph()
	entry := g.AddBlock(Entry|Exit, cil.New(cil.Ret, nil))
	b := g.AddBlock(Normal, cil.New(cil.Nop, nil))
	c := g.AddBlock(Normal, cil.New(cil.Nop, nil))
	g.AddEdge(b.Index, c.Index)
	g.AddEdge(c.Index, b.Index)

	keys := NewKeySequence(g, nil).ComputeKeys()
	assert.Equal(t, Explicit, keys[entry.Index].Type)
	assert.Equal(t, Incremental, keys[b.Index].Type)
	assert.Equal(t, Incremental, keys[c.Index].Type)
	assert.NoError(t, VerifyKeys(g, keys))
}

func TestKeysRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		g := NewGraph()
		size := 2 + rng.Intn(12)
		for i := 0; i < size; i++ {
			typ := Normal
			if i == 0 {
				typ = Entry
			}
			g.AddBlock(typ, cil.New(cil.Nop, nil))
		}
		edges := rng.Intn(size * 2)
		for e := 0; e < edges; e++ {
			g.AddEdge(rng.Intn(size), rng.Intn(size))
		}
		keys := NewKeySequence(g, rand.New(rand.NewSource(int64(n)))).ComputeKeys()
		require.NoError(t, VerifyKeys(g, keys), "graph %d", n)
	}
}

func TestVerifyKeysDetectsBrokenChain(t *testing.T) {
	g := NewGraph()
	g.AddBlock(Entry, cil.New(cil.Nop, nil))
	g.AddBlock(Normal, cil.New(cil.Ret, nil))
	g.AddEdge(0, 1)

	keys := []CfBlockKey{
		{EntryState: 1, ExitState: 1, Type: Explicit},
		{EntryState: 2, ExitState: 2, Type: Incremental},
	}
	assert.ErrorIs(t, VerifyKeys(g, keys), ErrKeyMismatch)
}

func TestReversePostorder(t *testing.T) {
	body, _ := ifElse()
	g, err := Build(body)
	require.NoError(t, err)

	order := g.ReversePostorder()
	require.Len(t, order, 4)
	assert.Equal(t, 0, order[0])
	assert.Equal(t, 3, order[3])
}
