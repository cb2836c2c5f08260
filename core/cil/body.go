package cil

// HandlerKind is the kind of an exception-handling clause.
type HandlerKind uint8

const (
	HandlerCatch HandlerKind = iota
	HandlerFilter
	HandlerFinally
	HandlerFault
)

func (k HandlerKind) String() string {
	switch k {
	case HandlerCatch:
		return "catch"
	case HandlerFilter:
		return "filter"
	case HandlerFinally:
		return "finally"
	case HandlerFault:
		return "fault"
	}
	return "unknown"
}

// ExceptionHandler is one clause of the exception table. End fields are
// exclusive; a nil end means the region runs to the end of the method.
type ExceptionHandler struct {
	Kind         HandlerKind
	TryStart     *Instruction
	TryEnd       *Instruction
	FilterStart  *Instruction
	HandlerStart *Instruction
	HandlerEnd   *Instruction
	CatchType    string
}

// EntryDepth is the stack depth at the first instruction of the handler
// (and of the filter): catch and filter blocks start with the exception
// object on the stack.
func (h *ExceptionHandler) EntryDepth() int {
	if h.Kind == HandlerCatch || h.Kind == HandlerFilter {
		return 1
	}
	return 0
}

// MethodBody is the executable content of one method as delivered by the
// bytecode importer.
type MethodBody struct {
	Name         string
	Instructions []*Instruction
	Handlers     []*ExceptionHandler
	MaxStack     int
	ReturnsValue bool
	InitLocals   bool
	Locals       []string
}

// HasBody reports whether there is anything to transform.
func (b *MethodBody) HasBody() bool {
	return b != nil && len(b.Instructions) > 0
}

// IndexOf maps every instruction to its position.
func (b *MethodBody) IndexOf() map[*Instruction]int {
	idx := make(map[*Instruction]int, len(b.Instructions))
	for i, ins := range b.Instructions {
		idx[ins] = i
	}
	return idx
}

// UpdateOffsets assigns byte offsets from instruction sizes.
func (b *MethodBody) UpdateOffsets() uint32 {
	var off uint32
	for _, ins := range b.Instructions {
		ins.Offset = off
		off += uint32(ins.Size())
	}
	return off
}

// Importer synthesizes instructions that reference metadata on behalf of the
// engine. The module loader owns the metadata tables; the engine never
// creates tokens itself.
type Importer interface {
	// Constant returns an instruction pushing the 32-bit integer v.
	Constant(v int32) *Instruction
	// Branch returns a branch instruction with opcode op targeting target.
	Branch(op *OpCode, target *Instruction) *Instruction
}

// DefaultImporter creates constants without touching any metadata table.
type DefaultImporter struct{}

// Constant returns the shortest ldc.i4 form for v.
func (DefaultImporter) Constant(v int32) *Instruction {
	return LoadConstant(v)
}

func (DefaultImporter) Branch(op *OpCode, target *Instruction) *Instruction {
	return NewBranch(op, target)
}

// LoadConstant returns the shortest ldc.i4 encoding of v.
func LoadConstant(v int32) *Instruction {
	switch {
	case v == -1:
		return New(LdcI4M1, nil)
	case v >= 0 && v <= 8:
		op, _ := OpCodeByValue(LdcI4_0.Value + uint16(v))
		return New(op, nil)
	case v >= -128 && v <= 127:
		return New(LdcI4S, int8(v))
	}
	return New(LdcI4, v)
}

// Clone returns a deep copy of the body. Branch operands and handler
// boundaries of the copy refer to the copied instructions.
func (b *MethodBody) Clone() *MethodBody {
	c := *b
	c.Locals = append([]string(nil), b.Locals...)
	c.Instructions = make([]*Instruction, len(b.Instructions))
	remap := make(map[*Instruction]*Instruction, len(b.Instructions))
	for i, ins := range b.Instructions {
		cp := *ins
		c.Instructions[i] = &cp
		remap[ins] = &cp
	}
	mapped := func(ins *Instruction) *Instruction {
		if ins == nil {
			return nil
		}
		if m, ok := remap[ins]; ok {
			return m
		}
		return ins
	}
	for _, ins := range c.Instructions {
		switch v := ins.Operand.(type) {
		case *Instruction:
			ins.Operand = mapped(v)
		case []*Instruction:
			targets := make([]*Instruction, len(v))
			for i, t := range v {
				targets[i] = mapped(t)
			}
			ins.Operand = targets
		}
	}
	c.Handlers = make([]*ExceptionHandler, len(b.Handlers))
	for i, h := range b.Handlers {
		hc := *h
		hc.TryStart = mapped(h.TryStart)
		hc.TryEnd = mapped(h.TryEnd)
		hc.FilterStart = mapped(h.FilterStart)
		hc.HandlerStart = mapped(h.HandlerStart)
		hc.HandlerEnd = mapped(h.HandlerEnd)
		c.Handlers[i] = &hc
	}
	return &c
}
