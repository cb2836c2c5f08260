package strategies

import (
	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle"
)

// Shuffle splits a block and emits its fragments in random order. The first
// fragment stays in front because the block may be entered there from
// outside. Each fragment whose successor is no longer physically next gets a
// jump to it.
type Shuffle struct{}

func (Shuffle) Name() string { return "shuffle" }

func (Shuffle) Mangle(ctx *mangle.Context, b *mangle.Block) error {
	frags, err := ctx.SplitFragments(b)
	if err != nil {
		return err
	}
	n := len(frags)
	if n < 3 {
		// Nothing to permute behind the fixed first fragment.
		b.SetFragments(frags...)
		return nil
	}
	order := make([]int, 0, n)
	order = append(order, 0)
	for _, i := range ctx.Rand.Perm(n - 1) {
		order = append(order, i+1)
	}

	out := make([]mangle.Fragment, n)
	for k, i := range order {
		f := frags[i]
		out[k] = f
		if !f.CanFallThrough() {
			continue
		}
		lastPlaced := k == n-1
		var (
			target     *cil.Instruction
			stackEmpty bool
		)
		if i+1 < n {
			if !lastPlaced && order[k+1] == i+1 {
				continue
			}
			target, stackEmpty = frags[i+1].First(), true
		} else {
			if lastPlaced {
				continue
			}
			target = ctx.FallthroughTarget(b)
			stackEmpty = ctx.StackEmptyAfter(f.Last())
		}
		if target == nil {
			continue
		}
		// A disguised jump can fall through, which is only safe into
		// another fragment of this block.
		if lastPlaced {
			stackEmpty = false
		}
		out[k] = ctx.AddJump(f, target, stackEmpty)
	}
	b.SetFragments(out...)
	return nil
}
