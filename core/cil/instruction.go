package cil

import (
	"fmt"
	"strings"
)

// MethodSig is the call-site view of a method reference: enough to work out
// how many values a call pops and pushes.
type MethodSig struct {
	Name    string
	Params  int
	HasThis bool
	Returns bool
}

func (s *MethodSig) String() string { return s.Name }

// Instruction is a single opcode with its operand. Branch operands are direct
// references: *Instruction for a branch, []*Instruction for switch.
type Instruction struct {
	OpCode  *OpCode
	Operand interface{}
	Offset  uint32
}

// New creates an instruction.
func New(op *OpCode, operand interface{}) *Instruction {
	return &Instruction{OpCode: op, Operand: operand}
}

// NewBranch creates a branch instruction targeting target.
func NewBranch(op *OpCode, target *Instruction) *Instruction {
	return &Instruction{OpCode: op, Operand: target}
}

// Target returns the branch target of a single-target branch, or nil.
func (ins *Instruction) Target() *Instruction {
	if t, ok := ins.Operand.(*Instruction); ok {
		return t
	}
	return nil
}

// Targets returns every instruction referenced by the operand.
func (ins *Instruction) Targets() []*Instruction {
	switch v := ins.Operand.(type) {
	case *Instruction:
		if v != nil {
			return []*Instruction{v}
		}
	case []*Instruction:
		return v
	}
	return nil
}

// Size returns the encoded size of the instruction in bytes.
func (ins *Instruction) Size() int {
	size := ins.OpCode.Size()
	switch ins.OpCode.Operand {
	case InlineNone:
	case ShortInlineBrTarget, ShortInlineI, ShortInlineVar:
		size++
	case InlineVar:
		size += 2
	case InlineI8, InlineR:
		size += 8
	case InlineSwitch:
		size += 4 + 4*len(ins.Targets())
	default:
		size += 4
	}
	return size
}

// StackEffect returns how many values the instruction pops and pushes.
// returnsValue tells whether the enclosing method returns a value, which
// decides what ret pops.
func (ins *Instruction) StackEffect(returnsValue bool) (pops, pushes int) {
	op := ins.OpCode
	pops, pushes = int(op.Pop), int(op.Push)
	if op == Ret {
		if returnsValue {
			return 1, 0
		}
		return 0, 0
	}
	if pops != Variable && pushes != Variable {
		return pops, pushes
	}
	sig, _ := ins.Operand.(*MethodSig)
	if sig == nil {
		sig = &MethodSig{}
	}
	switch op {
	case Newobj:
		return sig.Params, 1
	case Calli:
		pops = sig.Params + 1
	default:
		pops = sig.Params
	}
	if sig.HasThis {
		pops++
	}
	if sig.Returns {
		pushes = 1
	} else {
		pushes = 0
	}
	return pops, pushes
}

// Label returns the IL_xxxx name of the instruction offset.
func (ins *Instruction) Label() string {
	return fmt.Sprintf("IL_%04x", ins.Offset)
}

func (ins *Instruction) String() string {
	var b strings.Builder
	b.WriteString(ins.Label())
	b.WriteString(": ")
	b.WriteString(ins.OpCode.Name)
	if s := ins.OperandString(); s != "" {
		b.WriteByte(' ')
		b.WriteString(s)
	}
	return b.String()
}

// OperandString renders the operand, using labels for branch targets.
func (ins *Instruction) OperandString() string {
	switch v := ins.Operand.(type) {
	case nil:
		return ""
	case *Instruction:
		if v == nil {
			return "<nil>"
		}
		return v.Label()
	case []*Instruction:
		parts := make([]string, len(v))
		for i, t := range v {
			parts[i] = t.Label()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case string:
		if ins.OpCode == Ldstr {
			return fmt.Sprintf("%q", v)
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}
