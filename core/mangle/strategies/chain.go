package strategies

import (
	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle"
)

// Chain keeps fragments in their original order but ends every fragment
// that falls through with a disguised jump to the next one.
type Chain struct{}

func (Chain) Name() string { return "chain" }

func (Chain) Mangle(ctx *mangle.Context, b *mangle.Block) error {
	frags, err := ctx.SplitFragments(b)
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(frags); i++ {
		if frags[i].CanFallThrough() {
			frags[i] = ctx.AddJump(frags[i], frags[i+1].First(), true)
		}
	}
	b.SetFragments(frags...)
	return nil
}
