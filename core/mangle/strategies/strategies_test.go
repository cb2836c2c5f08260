package strategies

import (
	"fmt"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/kylelemons/godebug/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle"
)

// run interprets the integer subset of the instruction set used by the test
// bodies and returns the value left by ret.
func run(body *cil.MethodBody, args ...int32) (int32, error) {
	index := body.IndexOf()
	var (
		stack  []int32
		locals [4]int32
	)
	pop := func() int32 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	pc := 0
	for steps := 0; steps < 100000; steps++ {
		if pc >= len(body.Instructions) {
			return 0, fmt.Errorf("fell off the end")
		}
		ins := body.Instructions[pc]
		pc++
		jump := func() { pc = index[ins.Target()] }
		op := ins.OpCode
		switch {
		case op == cil.Nop:
		case op.Value >= cil.LdcI4M1.Value && op.Value <= cil.LdcI4_8.Value:
			stack = append(stack, int32(op.Value)-int32(cil.LdcI4_0.Value))
		case op == cil.LdcI4S:
			stack = append(stack, int32(ins.Operand.(int8)))
		case op == cil.LdcI4:
			stack = append(stack, ins.Operand.(int32))
		case op == cil.Ldarg0:
			stack = append(stack, args[0])
		case op.Value >= cil.Ldloc0.Value && op.Value <= cil.Ldloc3.Value:
			stack = append(stack, locals[op.Value-cil.Ldloc0.Value])
		case op.Value >= cil.Stloc0.Value && op.Value <= cil.Stloc3.Value:
			locals[op.Value-cil.Stloc0.Value] = pop()
		case op == cil.Add:
			b, a := pop(), pop()
			stack = append(stack, a+b)
		case op == cil.Pop:
			pop()
		case op == cil.Br || op == cil.BrS:
			jump()
		case op == cil.Brfalse || op == cil.BrfalseS:
			if pop() == 0 {
				jump()
			}
		case op == cil.Brtrue || op == cil.BrtrueS:
			if pop() != 0 {
				jump()
			}
		case op == cil.Blt || op == cil.BltS:
			b, a := pop(), pop()
			if a < b {
				jump()
			}
		case op == cil.Ret:
			if len(stack) == 0 {
				return 0, nil
			}
			return pop(), nil
		default:
			return 0, fmt.Errorf("unsupported %s", ins)
		}
	}
	return 0, fmt.Errorf("step limit")
}

func newBody(name string, returns bool, instrs ...*cil.Instruction) *cil.MethodBody {
	b := &cil.MethodBody{Name: name, Instructions: instrs, ReturnsValue: returns}
	b.UpdateOffsets()
	return b
}

// sumBody returns 0+1+...+9.
func sumBody() *cil.MethodBody {
	head := cil.New(cil.Ldloc0, nil)
	return newBody("Sum::Run", true,
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
		cil.NewBranch(cil.BltS, head),
		cil.New(cil.Ldloc0, nil),
		cil.New(cil.Ret, nil),
	)
}

// selectBody returns 5 when arg 0 is non-zero and 7 otherwise; the branch
// is taken with the 5 still on the stack.
func selectBody() *cil.MethodBody {
	t := cil.New(cil.Ret, nil)
	return newBody("Select::Run", true,
		cil.New(cil.Nop, nil),
		cil.New(cil.LdcI4_5, nil),
		cil.New(cil.Ldarg0, nil),
		cil.NewBranch(cil.Brtrue, t),
		cil.New(cil.LdcI4_2, nil),
		cil.New(cil.Add, nil),
		t,
	)
}

// stepsBody stores and reloads through locals in many short statements.
func stepsBody() *cil.MethodBody {
	var instrs []*cil.Instruction
	instrs = append(instrs, cil.New(cil.LdcI4_1, nil), cil.New(cil.Stloc0, nil))
	for i := 0; i < 12; i++ {
		instrs = append(instrs,
			cil.New(cil.Ldloc0, nil),
			cil.New(cil.Ldloc0, nil),
			cil.New(cil.Add, nil),
			cil.New(cil.Stloc0, nil),
			cil.New(cil.Nop, nil),
		)
	}
	instrs = append(instrs, cil.New(cil.Ldloc0, nil), cil.New(cil.Ret, nil))
	return newBody("Steps::Run", true, instrs...)
}

func listing(body *cil.MethodBody) string {
	var s string
	for _, ins := range body.Instructions {
		s += ins.String() + "\n"
	}
	return s
}

func TestStrategiesPreserveBehavior(t *testing.T) {
	cases := []struct {
		mk   func() *cil.MethodBody
		args [][]int32
		want []int32
	}{
		{sumBody, [][]int32{nil}, []int32{45}},
		{selectBody, [][]int32{{0}, {1}}, []int32{7, 5}},
		{stepsBody, [][]int32{nil}, []int32{4096}},
	}
	for _, name := range Names() {
		reg, err := NewRegistry(name)
		require.NoError(t, err)
		for _, intensity := range []float64{0, 0.5, 0.95} {
			for seed := int64(0); seed < 25; seed++ {
				d := mangle.NewDispatcher(mangle.Config{Intensity: intensity, DebugMode: true}, reg, nil, seed)
				for _, c := range cases {
					orig := c.mk()
					body := c.mk()
					res, err := d.Mangle(body)
					require.NoError(t, err, "%s %s seed %d", name, body.Name, seed)
					require.Equal(t, name, res.Strategy)

					for i, args := range c.args {
						got, err := run(body, args...)
						require.NoError(t, err, "%s\n%s", spew.Sdump(res), listing(body))
						if got != c.want[i] {
							t.Fatalf("%s %s seed %d intensity %v: got %d, want %d\n%s", name, body.Name, seed, intensity, got, c.want[i],
								diff.Diff(listing(orig), listing(body)))
						}
					}
				}
			}
		}
	}
}

func TestShuffleReorders(t *testing.T) {
	reg, err := NewRegistry("shuffle")
	require.NoError(t, err)

	moved := false
	for seed := int64(0); seed < 10 && !moved; seed++ {
		body := stepsBody()
		orig := append([]*cil.Instruction(nil), body.Instructions...)
		d := mangle.NewDispatcher(mangle.Config{Intensity: 0.9}, reg, nil, seed)
		res, err := d.Mangle(body)
		require.NoError(t, err)
		require.Greater(t, res.Fragments, 2)
		if res.Jumps > 0 {
			moved = true
			assert.Greater(t, res.After, len(orig))
		}
	}
	assert.True(t, moved, "no seed reordered any fragment")
}

func TestChainAddsDisguisedJumps(t *testing.T) {
	reg, err := NewRegistry("chain")
	require.NoError(t, err)
	body := stepsBody()
	before := len(body.Instructions)

	res, err := mangle.NewDispatcher(mangle.Config{Intensity: 0.999}, reg, nil, 3).Mangle(body)
	require.NoError(t, err)
	require.Greater(t, res.Jumps, 0)
	assert.Equal(t, before+2*res.Jumps, res.After)

	brfalse := 0
	for _, ins := range body.Instructions {
		if ins.OpCode == cil.BrfalseS {
			brfalse++
		}
	}
	assert.Equal(t, res.Jumps, brfalse)
}

func TestRegister(t *testing.T) {
	assert.Equal(t, []string{"chain", "shuffle"}, Names())

	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	_, err = NewRegistry("nope")
	assert.Error(t, err)

	reg, err = NewRegistry("shuffle")
	require.NoError(t, err)
	assert.Equal(t, []string{"shuffle"}, reg.Names())
	assert.Error(t, Register(reg, "shuffle"))
}
