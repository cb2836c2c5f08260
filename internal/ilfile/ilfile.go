// Package ilfile reads and writes textual method listings. A listing is a
// YAML document carrying method bodies the way a module loader would hand
// them to the mangling engine: instructions with resolved branch targets and
// the exception table.
package ilfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
	"github.com/dotnet-toolset/Netfuser-sub001/core/obfuscator"
)

var (
	ErrUnknownOpCode = errors.New("unknown opcode")
	ErrUnknownLabel  = errors.New("unknown label")
	ErrBadOperand    = errors.New("bad operand")
)

// File is the document layout.
type File struct {
	Module  string   `yaml:"module,omitempty"`
	Methods []Method `yaml:"methods"`
}

type Method struct {
	Name         string        `yaml:"name"`
	Returns      bool          `yaml:"returns,omitempty"`
	MaxStack     int           `yaml:"maxstack,omitempty"`
	InitLocals   bool          `yaml:"initlocals,omitempty"`
	Locals       []string      `yaml:"locals,omitempty"`
	Instructions []Instruction `yaml:"instructions,omitempty"`
	Handlers     []Handler     `yaml:"handlers,omitempty"`
}

type Instruction struct {
	Label   string     `yaml:"label,omitempty"`
	Op      string     `yaml:"op"`
	Operand yaml.Node  `yaml:"operand,omitempty"`
	Target  string     `yaml:"target,omitempty"`
	Targets []string   `yaml:"targets,omitempty,flow"`
	Method  *Signature `yaml:"method,omitempty"`
}

type Signature struct {
	Name    string `yaml:"name"`
	Params  int    `yaml:"params,omitempty"`
	HasThis bool   `yaml:"this,omitempty"`
	Returns bool   `yaml:"returns,omitempty"`
}

// Handler is one exception clause. Empty end labels mean the end of the
// method.
type Handler struct {
	Kind       string `yaml:"kind"`
	Try        string `yaml:"try"`
	TryEnd     string `yaml:"tryEnd,omitempty"`
	Filter     string `yaml:"filter,omitempty"`
	Handler    string `yaml:"handler"`
	HandlerEnd string `yaml:"handlerEnd,omitempty"`
	Catch      string `yaml:"catch,omitempty"`
}

// ReadFile loads the listing at path. The module is named after the file
// unless the document names it.
func ReadFile(path string) (*obfuscator.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// Read decodes a listing. Unknown fields are rejected.
func Read(r io.Reader) (*obfuscator.Module, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc File
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, err
	}
	m := &obfuscator.Module{Name: doc.Module}
	for i := range doc.Methods {
		body, err := doc.Methods[i].decode()
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", doc.Methods[i].Name, err)
		}
		m.Methods = append(m.Methods, body)
	}
	return m, nil
}

func (m *Method) decode() (*cil.MethodBody, error) {
	body := &cil.MethodBody{
		Name:         m.Name,
		ReturnsValue: m.Returns,
		MaxStack:     m.MaxStack,
		InitLocals:   m.InitLocals,
		Locals:       m.Locals,
		Instructions: make([]*cil.Instruction, len(m.Instructions)),
	}
	labels := make(map[string]*cil.Instruction)
	for i, in := range m.Instructions {
		op, ok := cil.LookupOpCode(in.Op)
		if !ok {
			return nil, fmt.Errorf("%w %q at %d", ErrUnknownOpCode, in.Op, i)
		}
		body.Instructions[i] = cil.New(op, nil)
		if in.Label != "" {
			if _, dup := labels[in.Label]; dup {
				return nil, fmt.Errorf("duplicate label %s", in.Label)
			}
			labels[in.Label] = body.Instructions[i]
		}
	}
	resolve := func(label string) (*cil.Instruction, error) {
		ins, ok := labels[label]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownLabel, label)
		}
		return ins, nil
	}
	optional := func(label string) (*cil.Instruction, error) {
		if label == "" {
			return nil, nil
		}
		return resolve(label)
	}
	for i, in := range m.Instructions {
		ins := body.Instructions[i]
		operand, err := decodeOperand(ins.OpCode, &in, resolve)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, in.Op, err)
		}
		ins.Operand = operand
	}
	for i, h := range m.Handlers {
		eh := &cil.ExceptionHandler{CatchType: h.Catch}
		switch h.Kind {
		case "catch":
			eh.Kind = cil.HandlerCatch
		case "filter":
			eh.Kind = cil.HandlerFilter
		case "finally":
			eh.Kind = cil.HandlerFinally
		case "fault":
			eh.Kind = cil.HandlerFault
		default:
			return nil, fmt.Errorf("handler %d: unknown kind %q", i, h.Kind)
		}
		var err error
		if eh.TryStart, err = resolve(h.Try); err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		if eh.HandlerStart, err = resolve(h.Handler); err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		if eh.TryEnd, err = optional(h.TryEnd); err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		if eh.HandlerEnd, err = optional(h.HandlerEnd); err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		if eh.FilterStart, err = optional(h.Filter); err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		if (eh.Kind == cil.HandlerFilter) != (eh.FilterStart != nil) {
			return nil, fmt.Errorf("handler %d: filter label only goes with a filter clause", i)
		}
		body.Handlers = append(body.Handlers, eh)
	}
	body.UpdateOffsets()
	return body, nil
}

// decodeScalar decodes a literal operand. A zero node means the operand
// key was absent.
func decodeScalar[T any](node *yaml.Node) (T, error) {
	var v T
	if node.Kind == 0 {
		return v, fmt.Errorf("%w: missing", ErrBadOperand)
	}
	if err := node.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrBadOperand, err)
	}
	return v, nil
}

func decodeOperand(op *cil.OpCode, in *Instruction, resolve func(string) (*cil.Instruction, error)) (interface{}, error) {
	switch op.Operand {
	case cil.InlineNone:
		return nil, nil
	case cil.ShortInlineBrTarget, cil.InlineBrTarget:
		return resolve(in.Target)
	case cil.InlineSwitch:
		targets := make([]*cil.Instruction, len(in.Targets))
		for i, label := range in.Targets {
			t, err := resolve(label)
			if err != nil {
				return nil, err
			}
			targets[i] = t
		}
		return targets, nil
	case cil.ShortInlineI:
		return decodeScalar[int8](&in.Operand)
	case cil.InlineI:
		return decodeScalar[int32](&in.Operand)
	case cil.InlineI8:
		return decodeScalar[int64](&in.Operand)
	case cil.ShortInlineR:
		return decodeScalar[float32](&in.Operand)
	case cil.InlineR:
		return decodeScalar[float64](&in.Operand)
	case cil.ShortInlineVar, cil.InlineVar:
		return decodeScalar[int](&in.Operand)
	case cil.InlineMethod, cil.InlineSig:
		if in.Method == nil {
			return nil, fmt.Errorf("%w: missing method signature", ErrBadOperand)
		}
		s := in.Method
		return &cil.MethodSig{Name: s.Name, Params: s.Params, HasThis: s.HasThis, Returns: s.Returns}, nil
	default:
		return decodeScalar[string](&in.Operand)
	}
}

// Write encodes m. Labels are regenerated from offsets, and only the
// instructions something refers to get one.
func Write(w io.Writer, m *obfuscator.Module) error {
	doc := File{Module: m.Name}
	for _, body := range m.Methods {
		method, err := encode(body)
		if err != nil {
			return fmt.Errorf("method %s: %w", body.Name, err)
		}
		doc.Methods = append(doc.Methods, method)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFile writes m to path.
func WriteFile(path string, m *obfuscator.Module) error {
	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func encode(body *cil.MethodBody) (Method, error) {
	body.UpdateOffsets()
	m := Method{
		Name:       body.Name,
		Returns:    body.ReturnsValue,
		MaxStack:   body.MaxStack,
		InitLocals: body.InitLocals,
		Locals:     body.Locals,
	}
	referenced := make(map[*cil.Instruction]bool)
	mark := func(ins *cil.Instruction) string {
		if ins == nil {
			return ""
		}
		referenced[ins] = true
		return ins.Label()
	}
	for _, h := range body.Handlers {
		m.Handlers = append(m.Handlers, Handler{
			Kind:       h.Kind.String(),
			Try:        mark(h.TryStart),
			TryEnd:     mark(h.TryEnd),
			Filter:     mark(h.FilterStart),
			Handler:    mark(h.HandlerStart),
			HandlerEnd: mark(h.HandlerEnd),
			Catch:      h.CatchType,
		})
	}
	for _, ins := range body.Instructions {
		for _, t := range ins.Targets() {
			mark(t)
		}
	}
	for _, ins := range body.Instructions {
		in := Instruction{Op: ins.OpCode.Name}
		if referenced[ins] {
			in.Label = ins.Label()
		}
		switch v := ins.Operand.(type) {
		case nil:
		case *cil.Instruction:
			in.Target = v.Label()
		case []*cil.Instruction:
			for _, t := range v {
				in.Targets = append(in.Targets, t.Label())
			}
		case *cil.MethodSig:
			in.Method = &Signature{Name: v.Name, Params: v.Params, HasThis: v.HasThis, Returns: v.Returns}
		default:
			var node yaml.Node
			if err := node.Encode(v); err != nil {
				return m, fmt.Errorf("%s: %w", ins, err)
			}
			in.Operand = node
		}
		m.Instructions = append(m.Instructions, in)
	}
	return m, nil
}
