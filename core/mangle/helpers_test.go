package mangle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

// zeroSource makes every random split fire.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func alwaysSplit() *rand.Rand { return rand.New(zeroSource{}) }

func newBody(returns bool, instrs ...*cil.Instruction) *cil.MethodBody {
	b := &cil.MethodBody{Name: "Test::Method", Instructions: instrs, ReturnsValue: returns}
	b.UpdateOffsets()
	return b
}

func newTestContext(t *testing.T, body *cil.MethodBody, cfg Config, rng *rand.Rand) *Context {
	t.Helper()
	flow, err := cil.ComputeFlow(body)
	require.NoError(t, err)
	root, err := BuildTree(body, flow)
	require.NoError(t, err)
	return newContext(body, root, cfg, nil, rng)
}

func concat(frags []Fragment) []*cil.Instruction {
	var out []*cil.Instruction
	for _, f := range frags {
		out = append(out, f...)
	}
	return out
}

// forcedSplitBody is
//
//	ldc.i4.5; ldc.i4.1; brtrue T; ldc.i4.2; add; T: pop; ret
//
// brtrue leaves the 5 on the stack, so T is required until passed.
func forcedSplitBody() *cil.MethodBody {
	t := cil.New(cil.Pop, nil)
	return newBody(false,
		cil.New(cil.LdcI4_5, nil),
		cil.New(cil.LdcI4_1, nil),
		cil.NewBranch(cil.Brtrue, t),
		cil.New(cil.LdcI4_2, nil),
		cil.New(cil.Add, nil),
		t,
		cil.New(cil.Ret, nil),
	)
}

// requiredAtZeroBody is
//
//	ldc.i4.7; ldc.i4.0; brfalse T; stloc.0; ldc.i4.3; T: stloc.1; ret
//
// The stack is empty after stloc.0, but T is still pending there.
func requiredAtZeroBody() *cil.MethodBody {
	t := cil.New(cil.Stloc1, nil)
	return newBody(false,
		cil.New(cil.LdcI4_7, nil),
		cil.New(cil.LdcI4_0, nil),
		cil.NewBranch(cil.Brfalse, t),
		cil.New(cil.Stloc0, nil),
		cil.New(cil.LdcI4_3, nil),
		t,
		cil.New(cil.Ret, nil),
	)
}

// loopBody sums 0..9 into local 0 with several statements per iteration:
//
//	ldc.i4.0; stloc.0; ldc.i4.0; stloc.1
//	L: ldloc.0; ldloc.1; add; stloc.0; nop; ldloc.1; ldc.i4.1; add; stloc.1
//	ldloc.1; ldc.i4.s 10; blt L
//	ldloc.0; ret
func loopBody() *cil.MethodBody {
	head := cil.New(cil.Ldloc0, nil)
	return newBody(true,
		cil.New(cil.LdcI4_0, nil),
		cil.New(cil.Stloc0, nil),
		cil.New(cil.LdcI4_0, nil),
		cil.New(cil.Stloc1, nil),
		head,
		cil.New(cil.Ldloc1, nil),
		cil.New(cil.Add, nil),
		cil.New(cil.Stloc0, nil),
		cil.New(cil.Nop, nil),
		cil.New(cil.Ldloc1, nil),
		cil.New(cil.LdcI4_1, nil),
		cil.New(cil.Add, nil),
		cil.New(cil.Stloc1, nil),
		cil.New(cil.Ldloc1, nil),
		cil.New(cil.LdcI4S, int8(10)),
		cil.NewBranch(cil.Blt, head),
		cil.New(cil.Ldloc0, nil),
		cil.New(cil.Ret, nil),
	)
}

// tryCatchBody is
//
//	nop
//	.try { ldarg.0; call Work; leave END }
//	catch { pop; leave END }
//	END: ret
func tryCatchBody() (*cil.MethodBody, *cil.ExceptionHandler) {
	end := cil.New(cil.Ret, nil)
	tryStart := cil.New(cil.Ldarg0, nil)
	catchStart := cil.New(cil.Pop, nil)
	b := newBody(false,
		cil.New(cil.Nop, nil),
		tryStart,
		cil.New(cil.Call, &cil.MethodSig{Name: "Work", Params: 1}),
		cil.NewBranch(cil.Leave, end),
		catchStart,
		cil.NewBranch(cil.Leave, end),
		end,
	)
	h := &cil.ExceptionHandler{
		Kind:         cil.HandlerCatch,
		TryStart:     tryStart,
		TryEnd:       catchStart,
		HandlerStart: catchStart,
		HandlerEnd:   end,
		CatchType:    "System.Exception",
	}
	b.Handlers = []*cil.ExceptionHandler{h}
	return b, h
}
