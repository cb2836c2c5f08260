package obfuscator

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle"
	"github.com/dotnet-toolset/Netfuser-sub001/core/mangle/strategies"
	"github.com/dotnet-toolset/Netfuser-sub001/log"
)

// counter returns a method counting a local up to n.
func counter(name string, n int8) *cil.MethodBody {
	head := cil.New(cil.Ldloc0, nil)
	b := &cil.MethodBody{Name: name, ReturnsValue: true, Instructions: []*cil.Instruction{
		cil.New(cil.LdcI4_0, nil),
		cil.New(cil.Stloc0, nil),
		head,
		cil.New(cil.LdcI4_1, nil),
		cil.New(cil.Add, nil),
		cil.New(cil.Stloc0, nil),
		cil.New(cil.Nop, nil),
		cil.New(cil.Ldloc0, nil),
		cil.New(cil.Ldloc0, nil),
		cil.New(cil.Pop, nil),
		cil.New(cil.LdcI4S, n),
		cil.NewBranch(cil.BltS, head),
		cil.New(cil.Ldloc0, nil),
		cil.New(cil.Ret, nil),
	}}
	b.UpdateOffsets()
	return b
}

func testModule(methods int) *Module {
	m := &Module{Name: "Test.dll"}
	for i := 0; i < methods; i++ {
		m.Methods = append(m.Methods, counter(fmt.Sprintf("Type%d::Count", i), int8(i+1)))
	}
	m.Methods = append(m.Methods, &cil.MethodBody{Name: "Iface::Abstract"})
	return m
}

func listing(m *Module) string {
	var b strings.Builder
	for _, body := range m.Methods {
		fmt.Fprintf(&b, "%s maxstack %d\n", body.Name, body.MaxStack)
		for _, ins := range body.Instructions {
			b.WriteString(ins.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func newObfuscator(t *testing.T, cfg Config) *Obfuscator {
	t.Helper()
	reg, err := strategies.NewRegistry()
	require.NoError(t, err)
	o, err := New(cfg, reg, nil)
	require.NoError(t, err)
	return o
}

func TestRun(t *testing.T) {
	m := testModule(20)
	o := newObfuscator(t, Config{Mangle: mangle.Config{Intensity: 0.8, DebugMode: true}, Seed: 7, Workers: 4})

	report, err := o.Run(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, report.Methods, 21)
	assert.Equal(t, "Test.dll", report.Module)
	assert.Equal(t, int64(7), report.Seed)

	for i, res := range report.Methods {
		assert.Equal(t, m.Methods[i].Name, res.Method, "report keeps module order")
		assert.Equal(t, res.After, len(m.Methods[i].Instructions))
	}
	last := report.Methods[20]
	assert.True(t, last.Skipped)

	totals := report.Totals()
	assert.Equal(t, 20, totals.Mangled)
	assert.Equal(t, 1, totals.Skipped)
	assert.Equal(t, 20*14, totals.Before)
	assert.Greater(t, totals.Jumps, 0)
	assert.Greater(t, totals.After, totals.Before)
}

func TestRunDeterministic(t *testing.T) {
	cfg := Config{Mangle: mangle.Config{Intensity: 0.6}, Seed: 42}

	var outputs []string
	for _, workers := range []int{1, 3, 8} {
		cfg.Workers = workers
		m := testModule(12)
		_, err := newObfuscator(t, cfg).Run(context.Background(), m)
		require.NoError(t, err)
		outputs = append(outputs, listing(m))
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])

	cfg.Seed = 43
	m := testModule(12)
	_, err := newObfuscator(t, cfg).Run(context.Background(), m)
	require.NoError(t, err)
	assert.NotEqual(t, outputs[0], listing(m), "seed changes the output")
}

func TestRunAbortLeavesModuleUntouched(t *testing.T) {
	fail := mangle.NewStrategy("fail", func(ctx *mangle.Context, b *mangle.Block) error {
		if ctx.Method.Name != "Type5::Count" {
			return nil
		}
		// Drop the loop head; the branch back to it dangles.
		var out mangle.Fragment
		for _, ins := range b.Instructions() {
			if e, _ := ctx.Flow().Get(ins); e.RefCount == 0 {
				out = append(out, ins)
			}
		}
		b.SetFragments(out)
		return nil
	})
	reg, err := mangle.NewRegistry(fail)
	require.NoError(t, err)
	o, err := New(Config{Mangle: mangle.DefaultConfig, Seed: 1, Workers: 2}, reg, nil)
	require.NoError(t, err)

	m := testModule(10)
	before := make([][]*cil.Instruction, len(m.Methods))
	for i, body := range m.Methods {
		before[i] = body.Instructions
	}
	report, err := o.Run(context.Background(), m)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, mangle.ErrStructuralViolation))
	assert.Contains(t, err.Error(), "Type5::Count")
	assert.Contains(t, err.Error(), "Test.dll")
	for i, body := range m.Methods {
		assert.Equal(t, before[i], body.Instructions, "method %s", body.Name)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := testModule(3)
	orig := listing(m)
	_, err := newObfuscator(t, DefaultConfig).Run(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, orig, listing(m))
}

func TestNew(t *testing.T) {
	reg, err := strategies.NewRegistry()
	require.NoError(t, err)

	_, err = New(Config{Mangle: mangle.Config{Intensity: 1}}, reg, nil)
	assert.ErrorIs(t, err, mangle.ErrIntensityRange)

	_, err = New(Config{Strategies: []string{"unknown"}}, reg, nil)
	assert.Error(t, err)

	o, err := New(Config{Strategies: []string{"chain"}, Mangle: mangle.Config{Intensity: 0.9}}, reg, nil)
	require.NoError(t, err)
	report, err := o.Run(context.Background(), testModule(4))
	require.NoError(t, err)
	for _, res := range report.Methods[:4] {
		assert.Equal(t, "chain", res.Strategy)
	}
}

func TestRunEmptyRegistry(t *testing.T) {
	reg, err := mangle.NewRegistry()
	require.NoError(t, err)
	o, err := New(DefaultConfig, reg, nil)
	require.NoError(t, err)

	var logs bytes.Buffer
	defer log.SetDefault(log.Root())
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(&logs, false)))

	m := testModule(3)
	orig := listing(m)
	report, err := o.Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Totals().Skipped)
	assert.Equal(t, orig, listing(m))
	assert.Contains(t, logs.String(), "No method was mangled")
	assert.Contains(t, logs.String(), "Skipped method")
}

func TestWriteTable(t *testing.T) {
	m := testModule(2)
	report, err := newObfuscator(t, Config{Mangle: mangle.DefaultConfig, Seed: 3}).Run(context.Background(), m)
	require.NoError(t, err)

	var buf bytes.Buffer
	report.WriteTable(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Type0::Count")
	assert.Contains(t, out, "Iface::Abstract")
	assert.Contains(t, out, "mangled")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "14 -> ")
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")

	buf.Reset()
	report.WriteTable(&buf, true)
	assert.Contains(t, buf.String(), "\x1b[32m")
}
