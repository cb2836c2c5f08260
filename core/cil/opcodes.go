package cil

import "fmt"

// FlowControl describes how an opcode hands control to the next instruction.
type FlowControl uint8

const (
	FlowNext FlowControl = iota
	FlowBranch
	FlowCondBranch
	FlowReturn
	FlowThrow
	FlowCall
	FlowBreak
	FlowMeta
)

func (f FlowControl) String() string {
	switch f {
	case FlowNext:
		return "next"
	case FlowBranch:
		return "branch"
	case FlowCondBranch:
		return "cond_branch"
	case FlowReturn:
		return "return"
	case FlowThrow:
		return "throw"
	case FlowCall:
		return "call"
	case FlowBreak:
		return "break"
	case FlowMeta:
		return "meta"
	}
	return fmt.Sprintf("flow(%d)", uint8(f))
}

// OpCodeType classifies opcodes the way the metadata tables do.
type OpCodeType uint8

const (
	Primitive OpCodeType = iota
	Macro
	ObjModel
	Prefix
)

// OperandType is the encoding of the inline operand following the opcode.
type OperandType uint8

const (
	InlineNone OperandType = iota
	ShortInlineBrTarget
	InlineBrTarget
	InlineSwitch
	ShortInlineI
	InlineI
	InlineI8
	ShortInlineR
	InlineR
	ShortInlineVar
	InlineVar
	InlineMethod
	InlineField
	InlineType
	InlineString
	InlineTok
	InlineSig
)

// Variable marks a pop/push count that depends on the call-site signature.
const Variable = -1

// OpCode is one entry of the instruction set.
type OpCode struct {
	Name    string
	Value   uint16
	Operand OperandType
	Flow    FlowControl
	Type    OpCodeType
	Pop     int8
	Push    int8
}

// Size returns the encoded size of the opcode itself (1 or 2 bytes).
func (op *OpCode) Size() int {
	if op.Value > 0xff {
		return 2
	}
	return 1
}

func (op *OpCode) String() string { return op.Name }

// IsBranch reports whether the operand is a single branch target.
func (op *OpCode) IsBranch() bool {
	return op.Operand == InlineBrTarget || op.Operand == ShortInlineBrTarget
}

// IsLeave reports whether the opcode is leave or leave.s, which empty the stack.
func (op *OpCode) IsLeave() bool { return op == Leave || op == LeaveS }

// EndsFlow reports whether control never falls through to the next instruction.
func (op *OpCode) EndsFlow() bool {
	switch op.Flow {
	case FlowBranch, FlowReturn, FlowThrow:
		return true
	}
	return false
}

// Short returns the short-form equivalent of a long branch, or nil.
func (op *OpCode) Short() *OpCode { return longToShort[op] }

// Long returns the long-form equivalent of a short branch, or nil.
func (op *OpCode) Long() *OpCode { return shortToLong[op] }

var (
	opcodesByName  = make(map[string]*OpCode)
	opcodesByValue = make(map[uint16]*OpCode)
)

func def(name string, value uint16, operand OperandType, flow FlowControl, typ OpCodeType, pop, push int8) *OpCode {
	op := &OpCode{Name: name, Value: value, Operand: operand, Flow: flow, Type: typ, Pop: pop, Push: push}
	opcodesByName[name] = op
	opcodesByValue[value] = op
	return op
}

// LookupOpCode returns the opcode with the given mnemonic.
func LookupOpCode(name string) (*OpCode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// OpCodeByValue returns the opcode with the given encoding.
func OpCodeByValue(v uint16) (*OpCode, bool) {
	op, ok := opcodesByValue[v]
	return op, ok
}

const vr = Variable

var (
	Nop      = def("nop", 0x00, InlineNone, FlowNext, Primitive, 0, 0)
	Break    = def("break", 0x01, InlineNone, FlowBreak, Primitive, 0, 0)
	Ldarg0   = def("ldarg.0", 0x02, InlineNone, FlowNext, Macro, 0, 1)
	Ldarg1   = def("ldarg.1", 0x03, InlineNone, FlowNext, Macro, 0, 1)
	Ldarg2   = def("ldarg.2", 0x04, InlineNone, FlowNext, Macro, 0, 1)
	Ldarg3   = def("ldarg.3", 0x05, InlineNone, FlowNext, Macro, 0, 1)
	Ldloc0   = def("ldloc.0", 0x06, InlineNone, FlowNext, Macro, 0, 1)
	Ldloc1   = def("ldloc.1", 0x07, InlineNone, FlowNext, Macro, 0, 1)
	Ldloc2   = def("ldloc.2", 0x08, InlineNone, FlowNext, Macro, 0, 1)
	Ldloc3   = def("ldloc.3", 0x09, InlineNone, FlowNext, Macro, 0, 1)
	Stloc0   = def("stloc.0", 0x0a, InlineNone, FlowNext, Macro, 1, 0)
	Stloc1   = def("stloc.1", 0x0b, InlineNone, FlowNext, Macro, 1, 0)
	Stloc2   = def("stloc.2", 0x0c, InlineNone, FlowNext, Macro, 1, 0)
	Stloc3   = def("stloc.3", 0x0d, InlineNone, FlowNext, Macro, 1, 0)
	LdargS   = def("ldarg.s", 0x0e, ShortInlineVar, FlowNext, Macro, 0, 1)
	LdargaS  = def("ldarga.s", 0x0f, ShortInlineVar, FlowNext, Macro, 0, 1)
	StargS   = def("starg.s", 0x10, ShortInlineVar, FlowNext, Macro, 1, 0)
	LdlocS   = def("ldloc.s", 0x11, ShortInlineVar, FlowNext, Macro, 0, 1)
	LdlocaS  = def("ldloca.s", 0x12, ShortInlineVar, FlowNext, Macro, 0, 1)
	StlocS   = def("stloc.s", 0x13, ShortInlineVar, FlowNext, Macro, 1, 0)
	Ldnull   = def("ldnull", 0x14, InlineNone, FlowNext, Primitive, 0, 1)
	LdcI4M1  = def("ldc.i4.m1", 0x15, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_0  = def("ldc.i4.0", 0x16, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_1  = def("ldc.i4.1", 0x17, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_2  = def("ldc.i4.2", 0x18, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_3  = def("ldc.i4.3", 0x19, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_4  = def("ldc.i4.4", 0x1a, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_5  = def("ldc.i4.5", 0x1b, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_6  = def("ldc.i4.6", 0x1c, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_7  = def("ldc.i4.7", 0x1d, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4_8  = def("ldc.i4.8", 0x1e, InlineNone, FlowNext, Macro, 0, 1)
	LdcI4S   = def("ldc.i4.s", 0x1f, ShortInlineI, FlowNext, Macro, 0, 1)
	LdcI4    = def("ldc.i4", 0x20, InlineI, FlowNext, Primitive, 0, 1)
	LdcI8    = def("ldc.i8", 0x21, InlineI8, FlowNext, Primitive, 0, 1)
	LdcR4    = def("ldc.r4", 0x22, ShortInlineR, FlowNext, Primitive, 0, 1)
	LdcR8    = def("ldc.r8", 0x23, InlineR, FlowNext, Primitive, 0, 1)
	Dup      = def("dup", 0x25, InlineNone, FlowNext, Primitive, 1, 2)
	Pop      = def("pop", 0x26, InlineNone, FlowNext, Primitive, 1, 0)
	Jmp      = def("jmp", 0x27, InlineMethod, FlowReturn, Primitive, 0, 0)
	Call     = def("call", 0x28, InlineMethod, FlowCall, Primitive, vr, vr)
	Calli    = def("calli", 0x29, InlineSig, FlowCall, Primitive, vr, vr)
	Ret      = def("ret", 0x2a, InlineNone, FlowReturn, Primitive, vr, 0)
	BrS      = def("br.s", 0x2b, ShortInlineBrTarget, FlowBranch, Macro, 0, 0)
	BrfalseS = def("brfalse.s", 0x2c, ShortInlineBrTarget, FlowCondBranch, Macro, 1, 0)
	BrtrueS  = def("brtrue.s", 0x2d, ShortInlineBrTarget, FlowCondBranch, Macro, 1, 0)
	BeqS     = def("beq.s", 0x2e, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BgeS     = def("bge.s", 0x2f, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BgtS     = def("bgt.s", 0x30, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BleS     = def("ble.s", 0x31, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BltS     = def("blt.s", 0x32, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BneUnS   = def("bne.un.s", 0x33, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BgeUnS   = def("bge.un.s", 0x34, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BgtUnS   = def("bgt.un.s", 0x35, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BleUnS   = def("ble.un.s", 0x36, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BltUnS   = def("blt.un.s", 0x37, ShortInlineBrTarget, FlowCondBranch, Macro, 2, 0)
	Br       = def("br", 0x38, InlineBrTarget, FlowBranch, Primitive, 0, 0)
	Brfalse  = def("brfalse", 0x39, InlineBrTarget, FlowCondBranch, Primitive, 1, 0)
	Brtrue   = def("brtrue", 0x3a, InlineBrTarget, FlowCondBranch, Primitive, 1, 0)
	Beq      = def("beq", 0x3b, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	Bge      = def("bge", 0x3c, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	Bgt      = def("bgt", 0x3d, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	Ble      = def("ble", 0x3e, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	Blt      = def("blt", 0x3f, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BneUn    = def("bne.un", 0x40, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BgeUn    = def("bge.un", 0x41, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BgtUn    = def("bgt.un", 0x42, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BleUn    = def("ble.un", 0x43, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	BltUn    = def("blt.un", 0x44, InlineBrTarget, FlowCondBranch, Macro, 2, 0)
	Switch   = def("switch", 0x45, InlineSwitch, FlowCondBranch, Primitive, 1, 0)
	LdindI1  = def("ldind.i1", 0x46, InlineNone, FlowNext, Primitive, 1, 1)
	LdindU1  = def("ldind.u1", 0x47, InlineNone, FlowNext, Primitive, 1, 1)
	LdindI2  = def("ldind.i2", 0x48, InlineNone, FlowNext, Primitive, 1, 1)
	LdindU2  = def("ldind.u2", 0x49, InlineNone, FlowNext, Primitive, 1, 1)
	LdindI4  = def("ldind.i4", 0x4a, InlineNone, FlowNext, Primitive, 1, 1)
	LdindU4  = def("ldind.u4", 0x4b, InlineNone, FlowNext, Primitive, 1, 1)
	LdindI8  = def("ldind.i8", 0x4c, InlineNone, FlowNext, Primitive, 1, 1)
	LdindI   = def("ldind.i", 0x4d, InlineNone, FlowNext, Primitive, 1, 1)
	LdindR4  = def("ldind.r4", 0x4e, InlineNone, FlowNext, Primitive, 1, 1)
	LdindR8  = def("ldind.r8", 0x4f, InlineNone, FlowNext, Primitive, 1, 1)
	LdindRef = def("ldind.ref", 0x50, InlineNone, FlowNext, Primitive, 1, 1)
	StindRef = def("stind.ref", 0x51, InlineNone, FlowNext, Primitive, 2, 0)
	StindI1  = def("stind.i1", 0x52, InlineNone, FlowNext, Primitive, 2, 0)
	StindI2  = def("stind.i2", 0x53, InlineNone, FlowNext, Primitive, 2, 0)
	StindI4  = def("stind.i4", 0x54, InlineNone, FlowNext, Primitive, 2, 0)
	StindI8  = def("stind.i8", 0x55, InlineNone, FlowNext, Primitive, 2, 0)
	StindR4  = def("stind.r4", 0x56, InlineNone, FlowNext, Primitive, 2, 0)
	StindR8  = def("stind.r8", 0x57, InlineNone, FlowNext, Primitive, 2, 0)
	Add      = def("add", 0x58, InlineNone, FlowNext, Primitive, 2, 1)
	Sub      = def("sub", 0x59, InlineNone, FlowNext, Primitive, 2, 1)
	Mul      = def("mul", 0x5a, InlineNone, FlowNext, Primitive, 2, 1)
	Div      = def("div", 0x5b, InlineNone, FlowNext, Primitive, 2, 1)
	DivUn    = def("div.un", 0x5c, InlineNone, FlowNext, Primitive, 2, 1)
	Rem      = def("rem", 0x5d, InlineNone, FlowNext, Primitive, 2, 1)
	RemUn    = def("rem.un", 0x5e, InlineNone, FlowNext, Primitive, 2, 1)
	And      = def("and", 0x5f, InlineNone, FlowNext, Primitive, 2, 1)
	Or       = def("or", 0x60, InlineNone, FlowNext, Primitive, 2, 1)
	Xor      = def("xor", 0x61, InlineNone, FlowNext, Primitive, 2, 1)
	Shl      = def("shl", 0x62, InlineNone, FlowNext, Primitive, 2, 1)
	Shr      = def("shr", 0x63, InlineNone, FlowNext, Primitive, 2, 1)
	ShrUn    = def("shr.un", 0x64, InlineNone, FlowNext, Primitive, 2, 1)
	Neg      = def("neg", 0x65, InlineNone, FlowNext, Primitive, 1, 1)
	Not      = def("not", 0x66, InlineNone, FlowNext, Primitive, 1, 1)
	ConvI1   = def("conv.i1", 0x67, InlineNone, FlowNext, Primitive, 1, 1)
	ConvI2   = def("conv.i2", 0x68, InlineNone, FlowNext, Primitive, 1, 1)
	ConvI4   = def("conv.i4", 0x69, InlineNone, FlowNext, Primitive, 1, 1)
	ConvI8   = def("conv.i8", 0x6a, InlineNone, FlowNext, Primitive, 1, 1)
	ConvR4   = def("conv.r4", 0x6b, InlineNone, FlowNext, Primitive, 1, 1)
	ConvR8   = def("conv.r8", 0x6c, InlineNone, FlowNext, Primitive, 1, 1)
	ConvU4   = def("conv.u4", 0x6d, InlineNone, FlowNext, Primitive, 1, 1)
	ConvU8   = def("conv.u8", 0x6e, InlineNone, FlowNext, Primitive, 1, 1)
	Callvirt = def("callvirt", 0x6f, InlineMethod, FlowCall, ObjModel, vr, vr)
	Cpobj    = def("cpobj", 0x70, InlineType, FlowNext, ObjModel, 2, 0)
	Ldobj    = def("ldobj", 0x71, InlineType, FlowNext, ObjModel, 1, 1)
	Ldstr    = def("ldstr", 0x72, InlineString, FlowNext, ObjModel, 0, 1)
	Newobj   = def("newobj", 0x73, InlineMethod, FlowCall, ObjModel, vr, 1)
	Castcl   = def("castclass", 0x74, InlineType, FlowNext, ObjModel, 1, 1)
	Isinst   = def("isinst", 0x75, InlineType, FlowNext, ObjModel, 1, 1)
	ConvRUn  = def("conv.r.un", 0x76, InlineNone, FlowNext, Primitive, 1, 1)
	Unbox    = def("unbox", 0x79, InlineType, FlowNext, Primitive, 1, 1)
	Throw    = def("throw", 0x7a, InlineNone, FlowThrow, ObjModel, 1, 0)
	Ldfld    = def("ldfld", 0x7b, InlineField, FlowNext, ObjModel, 1, 1)
	Ldflda   = def("ldflda", 0x7c, InlineField, FlowNext, ObjModel, 1, 1)
	Stfld    = def("stfld", 0x7d, InlineField, FlowNext, ObjModel, 2, 0)
	Ldsfld   = def("ldsfld", 0x7e, InlineField, FlowNext, ObjModel, 0, 1)
	Ldsflda  = def("ldsflda", 0x7f, InlineField, FlowNext, ObjModel, 0, 1)
	Stsfld   = def("stsfld", 0x80, InlineField, FlowNext, ObjModel, 1, 0)
	Stobj    = def("stobj", 0x81, InlineType, FlowNext, Primitive, 2, 0)
	Box      = def("box", 0x8c, InlineType, FlowNext, Primitive, 1, 1)
	Newarr   = def("newarr", 0x8d, InlineType, FlowNext, ObjModel, 1, 1)
	Ldlen    = def("ldlen", 0x8e, InlineNone, FlowNext, ObjModel, 1, 1)
	Ldelema  = def("ldelema", 0x8f, InlineType, FlowNext, ObjModel, 2, 1)
	LdelemI1 = def("ldelem.i1", 0x90, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemU1 = def("ldelem.u1", 0x91, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemI2 = def("ldelem.i2", 0x92, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemU2 = def("ldelem.u2", 0x93, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemI4 = def("ldelem.i4", 0x94, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemU4 = def("ldelem.u4", 0x95, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemI8 = def("ldelem.i8", 0x96, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemI  = def("ldelem.i", 0x97, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemR4 = def("ldelem.r4", 0x98, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemR8 = def("ldelem.r8", 0x99, InlineNone, FlowNext, ObjModel, 2, 1)
	LdelemRf = def("ldelem.ref", 0x9a, InlineNone, FlowNext, ObjModel, 2, 1)
	StelemI  = def("stelem.i", 0x9b, InlineNone, FlowNext, ObjModel, 3, 0)
	StelemI1 = def("stelem.i1", 0x9c, InlineNone, FlowNext, ObjModel, 3, 0)
	StelemI2 = def("stelem.i2", 0x9d, InlineNone, FlowNext, ObjModel, 3, 0)
	StelemI4 = def("stelem.i4", 0x9e, InlineNone, FlowNext, ObjModel, 3, 0)
	StelemI8 = def("stelem.i8", 0x9f, InlineNone, FlowNext, ObjModel, 3, 0)
	StelemR4 = def("stelem.r4", 0xa0, InlineNone, FlowNext, ObjModel, 3, 0)
	StelemR8 = def("stelem.r8", 0xa1, InlineNone, FlowNext, ObjModel, 3, 0)
	StelemRf = def("stelem.ref", 0xa2, InlineNone, FlowNext, ObjModel, 3, 0)
	Ldelem   = def("ldelem", 0xa3, InlineType, FlowNext, ObjModel, 2, 1)
	Stelem   = def("stelem", 0xa4, InlineType, FlowNext, ObjModel, 3, 0)
	UnboxAny = def("unbox.any", 0xa5, InlineType, FlowNext, ObjModel, 1, 1)
	Ckfinite = def("ckfinite", 0xc3, InlineNone, FlowNext, Primitive, 1, 1)
	Ldtoken  = def("ldtoken", 0xd0, InlineTok, FlowNext, Primitive, 0, 1)
	ConvU2   = def("conv.u2", 0xd1, InlineNone, FlowNext, Primitive, 1, 1)
	ConvU1   = def("conv.u1", 0xd2, InlineNone, FlowNext, Primitive, 1, 1)
	ConvI    = def("conv.i", 0xd3, InlineNone, FlowNext, Primitive, 1, 1)
	AddOvf   = def("add.ovf", 0xd6, InlineNone, FlowNext, Primitive, 2, 1)
	MulOvf   = def("mul.ovf", 0xd8, InlineNone, FlowNext, Primitive, 2, 1)
	SubOvf   = def("sub.ovf", 0xda, InlineNone, FlowNext, Primitive, 2, 1)
	Endfin   = def("endfinally", 0xdc, InlineNone, FlowReturn, Primitive, 0, 0)
	Leave    = def("leave", 0xdd, InlineBrTarget, FlowBranch, Primitive, 0, 0)
	LeaveS   = def("leave.s", 0xde, ShortInlineBrTarget, FlowBranch, Primitive, 0, 0)
	StindI   = def("stind.i", 0xdf, InlineNone, FlowNext, Primitive, 2, 0)
	ConvU    = def("conv.u", 0xe0, InlineNone, FlowNext, Primitive, 1, 1)

	Arglist     = def("arglist", 0xfe00, InlineNone, FlowNext, Primitive, 0, 1)
	Ceq         = def("ceq", 0xfe01, InlineNone, FlowNext, Primitive, 2, 1)
	Cgt         = def("cgt", 0xfe02, InlineNone, FlowNext, Primitive, 2, 1)
	CgtUn       = def("cgt.un", 0xfe03, InlineNone, FlowNext, Primitive, 2, 1)
	Clt         = def("clt", 0xfe04, InlineNone, FlowNext, Primitive, 2, 1)
	CltUn       = def("clt.un", 0xfe05, InlineNone, FlowNext, Primitive, 2, 1)
	Ldftn       = def("ldftn", 0xfe06, InlineMethod, FlowNext, Primitive, 0, 1)
	Ldvirtftn   = def("ldvirtftn", 0xfe07, InlineMethod, FlowNext, Primitive, 1, 1)
	Ldarg       = def("ldarg", 0xfe09, InlineVar, FlowNext, Primitive, 0, 1)
	Ldarga      = def("ldarga", 0xfe0a, InlineVar, FlowNext, Primitive, 0, 1)
	Starg       = def("starg", 0xfe0b, InlineVar, FlowNext, Primitive, 1, 0)
	Ldloc       = def("ldloc", 0xfe0c, InlineVar, FlowNext, Primitive, 0, 1)
	Ldloca      = def("ldloca", 0xfe0d, InlineVar, FlowNext, Primitive, 0, 1)
	Stloc       = def("stloc", 0xfe0e, InlineVar, FlowNext, Primitive, 1, 0)
	Localloc    = def("localloc", 0xfe0f, InlineNone, FlowNext, Primitive, 1, 1)
	Endfilter   = def("endfilter", 0xfe11, InlineNone, FlowReturn, Primitive, 1, 0)
	Unaligned   = def("unaligned.", 0xfe12, ShortInlineI, FlowMeta, Prefix, 0, 0)
	Volatile    = def("volatile.", 0xfe13, InlineNone, FlowMeta, Prefix, 0, 0)
	Tail        = def("tail.", 0xfe14, InlineNone, FlowMeta, Prefix, 0, 0)
	Initobj     = def("initobj", 0xfe15, InlineType, FlowNext, ObjModel, 1, 0)
	Constrained = def("constrained.", 0xfe16, InlineType, FlowMeta, Prefix, 0, 0)
	Cpblk       = def("cpblk", 0xfe17, InlineNone, FlowNext, Primitive, 3, 0)
	Initblk     = def("initblk", 0xfe18, InlineNone, FlowNext, Primitive, 3, 0)
	No          = def("no.", 0xfe19, ShortInlineI, FlowMeta, Prefix, 0, 0)
	Rethrow     = def("rethrow", 0xfe1a, InlineNone, FlowThrow, ObjModel, 0, 0)
	Sizeof      = def("sizeof", 0xfe1c, InlineType, FlowNext, Primitive, 0, 1)
	Refanytype  = def("refanytype", 0xfe1d, InlineNone, FlowNext, Primitive, 1, 1)
	Readonly    = def("readonly.", 0xfe1e, InlineNone, FlowMeta, Prefix, 0, 0)
)

var (
	shortToLong = map[*OpCode]*OpCode{
		BrS: Br, BrfalseS: Brfalse, BrtrueS: Brtrue,
		BeqS: Beq, BgeS: Bge, BgtS: Bgt, BleS: Ble, BltS: Blt,
		BneUnS: BneUn, BgeUnS: BgeUn, BgtUnS: BgtUn, BleUnS: BleUn, BltUnS: BltUn,
		LeaveS: Leave,
	}
	longToShort = make(map[*OpCode]*OpCode, len(shortToLong))
)

func init() {
	for s, l := range shortToLong {
		longToShort[l] = s
	}
}
