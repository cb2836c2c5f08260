package cfg

import (
	"errors"
	"fmt"
	"math/rand"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/willf/bitset"
)

// KeyType tells whether a key must be materialized by instrumentation.
type KeyType uint8

const (
	// Explicit keys cannot be inferred from a predecessor and must be set
	// by emitted code.
	Explicit KeyType = iota
	// Incremental keys equal the exit state of the unique predecessor.
	Incremental
)

func (t KeyType) String() string {
	if t == Incremental {
		return "incremental"
	}
	return "explicit"
}

// CfBlockKey is the abstract state of a block on entry and on exit.
type CfBlockKey struct {
	EntryState uint32
	ExitState  uint32
	Type       KeyType
}

var ErrKeyMismatch = errors.New("key sequence violates predecessor state")

// KeySequence assigns state keys to the blocks of one graph.
type KeySequence struct {
	graph *Graph
	rng   *rand.Rand

	used mapset.Set[uint32]
	next uint32
}

// NewKeySequence returns a generator over g. Fresh states are drawn from rng;
// a nil rng yields consecutive states starting at 1.
func NewKeySequence(g *Graph, rng *rand.Rand) *KeySequence {
	return &KeySequence{graph: g, rng: rng}
}

func (s *KeySequence) fresh() uint32 {
	for {
		var v uint32
		if s.rng != nil {
			v = s.rng.Uint32()
		} else {
			s.next++
			v = s.next
		}
		if s.used.Add(v) {
			return v
		}
	}
}

// uniquePredecessor returns the single source of b when that source has b as
// its only target.
func (s *KeySequence) uniquePredecessor(b *CfBlock) (int, bool) {
	if len(b.Sources) != 1 {
		return 0, false
	}
	src := b.Sources[0]
	if src == b.Index || len(s.graph.Blocks[src].Targets) != 1 {
		return 0, false
	}
	return src, true
}

// ComputeKeys returns one key per block index. The result only depends on
// the graph shape and the rng state, so a fixed seed reproduces it.
func (s *KeySequence) ComputeKeys() []CfBlockKey {
	s.used = mapset.NewThreadUnsafeSet[uint32]()
	s.next = 0

	g := s.graph
	keys := make([]CfBlockKey, len(g.Blocks))
	done := bitset.New(uint(len(g.Blocks)))
	for _, i := range g.ReversePostorder() {
		b := g.Blocks[i]
		var k CfBlockKey
		if src, ok := s.uniquePredecessor(b); ok && done.Test(uint(src)) && !b.IsEntry() {
			k.EntryState = keys[src].ExitState
			if b.Type == Normal {
				k.Type = Incremental
			}
		} else {
			k.EntryState = s.fresh()
		}
		if len(b.Targets) > 1 {
			k.ExitState = s.fresh()
		} else {
			k.ExitState = k.EntryState
		}
		keys[i] = k
		done.Set(uint(i))
	}
	s.settle(keys)
	return keys
}

// settle fixes up blocks that were keyed before their unique predecessor.
// Only unreachable code gets here: a reachable normal block is always
// preceded by its single source in reverse postorder. Unreachable cycles are
// entered at an arbitrary block, so states are copied along single edges
// until nothing changes.
func (s *KeySequence) settle(keys []CfBlockKey) {
	g := s.graph
	for pass := 0; pass <= len(g.Blocks); pass++ {
		changed := false
		for _, b := range g.Blocks {
			if b.Type != Normal {
				continue
			}
			src, ok := s.uniquePredecessor(b)
			if !ok {
				continue
			}
			k := &keys[b.Index]
			if k.Type == Incremental && k.EntryState == keys[src].ExitState {
				continue
			}
			k.EntryState = keys[src].ExitState
			k.Type = Incremental
			if len(b.Targets) <= 1 {
				k.ExitState = k.EntryState
			}
			changed = true
		}
		if !changed {
			return
		}
	}
}

// ReversePostorder lists block indices in reverse postorder of a depth-first
// walk from every Entry block in index order (block 0 when none is flagged).
// Blocks no entry reaches follow, in reverse postorder of walks started from
// each of them in index order.
func (g *Graph) ReversePostorder() []int {
	n := len(g.Blocks)
	visited := bitset.New(uint(n))
	var post []int

	type frame struct{ block, next int }
	walk := func(root int) {
		if visited.Test(uint(root)) {
			return
		}
		visited.Set(uint(root))
		stack := []frame{{block: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			targets := g.Blocks[top.block].Targets
			if top.next < len(targets) {
				t := targets[top.next]
				top.next++
				if !visited.Test(uint(t)) {
					visited.Set(uint(t))
					stack = append(stack, frame{block: t})
				}
				continue
			}
			post = append(post, top.block)
			stack = stack[:len(stack)-1]
		}
	}
	order := make([]int, 0, n)
	flush := func() {
		for i := len(post) - 1; i >= 0; i-- {
			order = append(order, post[i])
		}
		post = post[:0]
	}

	roots := 0
	for _, b := range g.Blocks {
		if b.IsEntry() {
			walk(b.Index)
			roots++
		}
	}
	if roots == 0 && n > 0 {
		walk(0)
	}
	flush()
	for i := 0; i < n; i++ {
		walk(i)
	}
	flush()
	return order
}

// VerifyKeys checks keys against g: a normal block whose only source has it
// as the only target must be Incremental and continue that source's state,
// and a block that merges several sources must be Explicit.
func VerifyKeys(g *Graph, keys []CfBlockKey) error {
	if len(keys) != len(g.Blocks) {
		return fmt.Errorf("%w: %d keys for %d blocks", ErrKeyMismatch, len(keys), len(g.Blocks))
	}
	for _, b := range g.Blocks {
		k := keys[b.Index]
		if len(b.Sources) > 1 && k.Type != Explicit {
			return fmt.Errorf("%w: merge block %v is %v", ErrKeyMismatch, b, k.Type)
		}
		if len(b.Sources) != 1 || b.Type != Normal {
			continue
		}
		src := b.Sources[0]
		if src == b.Index || len(g.Blocks[src].Targets) != 1 {
			continue
		}
		if k.EntryState != keys[src].ExitState || k.Type != Incremental {
			return fmt.Errorf("%w: %v entry %#x, B%d exit %#x, %v",
				ErrKeyMismatch, b, k.EntryState, src, keys[src].ExitState, k.Type)
		}
	}
	return nil
}
