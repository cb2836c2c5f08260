package mangle

import (
	"fmt"
	"sort"

	"github.com/dotnet-toolset/Netfuser-sub001/core/cil"
)

// Kind is the role of a block in the mangling tree.
type Kind uint8

const (
	KindRoot Kind = iota
	// KindRegion groups the code of one protected, filter or handler range
	// so that fragments never leave the range they belong to.
	KindRegion
	// KindEntry marks a point entered from outside: the method start or the
	// start of a region.
	KindEntry
	// KindExit marks the end of the method or of a region.
	KindExit
	KindRegular
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindRegion:
		return "region"
	case KindEntry:
		return "entry"
	case KindExit:
		return "exit"
	case KindRegular:
		return "regular"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// RegionRole tells which range of an exception handler a region covers.
type RegionRole uint8

const (
	RoleTry RegionRole = iota
	RoleFilter
	RoleHandler
)

func (r RegionRole) String() string {
	switch r {
	case RoleTry:
		return "try"
	case RoleFilter:
		return "filter"
	case RoleHandler:
		return "handler"
	}
	return "role?"
}

// Fragment is a non-empty run of instructions moved as one unit.
type Fragment []*cil.Instruction

// First returns the first instruction of the fragment.
func (f Fragment) First() *cil.Instruction { return f[0] }

// Last returns the last instruction of the fragment.
func (f Fragment) Last() *cil.Instruction { return f[len(f)-1] }

// CanFallThrough reports whether control may continue past the fragment.
func (f Fragment) CanFallThrough() bool {
	return len(f) > 0 && !f.Last().OpCode.EndsFlow()
}

// Block is a node of the mangling tree.
type Block struct {
	Kind     Kind
	Parent   *Block
	Children []*Block

	// Region fields.
	Role     RegionRole
	Handlers []*cil.ExceptionHandler
	entry    *cil.Instruction

	// Regular fields: the original run and what a strategy made of it.
	original  Fragment
	fragments []Fragment
}

func (b *Block) add(child *Block) {
	child.Parent = b
	b.Children = append(b.Children, child)
}

// Instructions returns the original instructions of a regular block.
func (b *Block) Instructions() Fragment { return b.original }

// Fragments returns the current content of a regular block.
func (b *Block) Fragments() []Fragment { return b.fragments }

// SetFragments replaces the content of a regular block. The fragments are
// emitted in the given order.
func (b *Block) SetFragments(frags ...Fragment) {
	b.fragments = frags
}

func (b *Block) String() string {
	switch b.Kind {
	case KindRegular:
		return fmt.Sprintf("regular[%d insns, %d frags]", len(b.original), len(b.fragments))
	case KindRegion:
		return fmt.Sprintf("region[%s at %s]", b.Role, b.entry.Label())
	}
	return b.Kind.String()
}

// Root owns the mangling tree of one method and the flow snapshot taken
// before any strategy ran.
type Root struct {
	*Block

	Body *cil.MethodBody
	Flow *cil.FlowInfo

	original []*cil.Instruction
	pos      map[*cil.Instruction]int
	regulars []*Block
	regions  []*Block
}

type span struct {
	start, end int
	role       RegionRole
	handlers   []*cil.ExceptionHandler
}

// BuildTree decomposes body into regions and regular runs. Every regular
// block is a maximal run of instructions inside its innermost region.
func BuildTree(body *cil.MethodBody, flow *cil.FlowInfo) (*Root, error) {
	if !body.HasBody() {
		return nil, cil.ErrEmptyMethodBody
	}
	r := &Root{
		Block:    &Block{Kind: KindRoot},
		Body:     body,
		Flow:     flow,
		original: append([]*cil.Instruction(nil), body.Instructions...),
		pos:      body.IndexOf(),
	}
	spans, err := r.spans()
	if err != nil {
		return nil, err
	}
	r.add(&Block{Kind: KindEntry})
	if err := r.build(r.Block, 0, len(r.original), spans); err != nil {
		return nil, err
	}
	r.add(&Block{Kind: KindExit})
	return r, nil
}

func (r *Root) spans() ([]*span, error) {
	n := len(r.original)
	index := func(ins *cil.Instruction, dflt int) (int, error) {
		if ins == nil {
			return dflt, nil
		}
		i, ok := r.pos[ins]
		if !ok {
			return 0, fmt.Errorf("%w: handler boundary %v", cil.ErrDanglingTarget, ins)
		}
		return i, nil
	}
	byRange := make(map[[3]int]*span)
	var out []*span
	add := func(start, end int, role RegionRole, h *cil.ExceptionHandler) {
		key := [3]int{start, end, int(role)}
		s, ok := byRange[key]
		if !ok {
			s = &span{start: start, end: end, role: role}
			byRange[key] = s
			out = append(out, s)
		}
		s.handlers = append(s.handlers, h)
	}
	for _, h := range r.Body.Handlers {
		ts, err := index(h.TryStart, 0)
		if err != nil {
			return nil, err
		}
		te, err := index(h.TryEnd, n)
		if err != nil {
			return nil, err
		}
		hs, err := index(h.HandlerStart, n)
		if err != nil {
			return nil, err
		}
		he, err := index(h.HandlerEnd, n)
		if err != nil {
			return nil, err
		}
		if ts < te {
			add(ts, te, RoleTry, h)
		}
		if h.FilterStart != nil {
			fs, err := index(h.FilterStart, n)
			if err != nil {
				return nil, err
			}
			if fs < hs {
				add(fs, hs, RoleFilter, h)
			}
		}
		if hs < he {
			add(hs, he, RoleHandler, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end > out[j].end
	})
	return out, nil
}

func (r *Root) build(parent *Block, lo, hi int, spans []*span) error {
	at := lo
	for k := 0; k < len(spans); {
		s := spans[k]
		if s.start < at || s.end > hi {
			return fmt.Errorf("protected regions overlap at %s", r.original[s.start])
		}
		r.addRegular(parent, at, s.start)
		j := k + 1
		for j < len(spans) && spans[j].start < s.end {
			j++
		}
		region := &Block{Kind: KindRegion, Role: s.role, Handlers: s.handlers, entry: r.original[s.start]}
		parent.add(region)
		r.regions = append(r.regions, region)
		region.add(&Block{Kind: KindEntry})
		if err := r.build(region, s.start, s.end, spans[k+1:j]); err != nil {
			return err
		}
		region.add(&Block{Kind: KindExit})
		at, k = s.end, j
	}
	r.addRegular(parent, at, hi)
	return nil
}

func (r *Root) addRegular(parent *Block, lo, hi int) {
	if lo >= hi {
		return
	}
	run := Fragment(r.original[lo:hi:hi])
	b := &Block{Kind: KindRegular, original: run, fragments: []Fragment{run}}
	parent.add(b)
	r.regulars = append(r.regulars, b)
}

// Regulars returns the regular blocks in tree order.
func (r *Root) Regulars() []*Block { return r.regulars }

// Regions returns the region blocks in tree order.
func (r *Root) Regions() []*Block { return r.regions }

// Next returns the instruction following ins in the original stream.
func (r *Root) Next(ins *cil.Instruction) *cil.Instruction {
	i, ok := r.pos[ins]
	if !ok || i+1 >= len(r.original) {
		return nil
	}
	return r.original[i+1]
}

type regionBounds struct {
	block      *Block
	start, end int
}

// Flatten writes the tree back into one instruction list and moves the end
// of every handler range to wherever its region now ends. Region entries
// must stay first in their region, and the method entry first overall.
func (r *Root) Flatten() ([]*cil.Instruction, error) {
	out := make([]*cil.Instruction, 0, len(r.original))
	var bounds []*regionBounds
	var walk func(b *Block, rb *regionBounds)
	walk = func(b *Block, rb *regionBounds) {
		switch b.Kind {
		case KindRegular:
			for _, f := range b.fragments {
				out = append(out, f...)
			}
			return
		case KindEntry:
			if rb != nil {
				rb.start = len(out)
			}
			return
		case KindExit:
			if rb != nil {
				rb.end = len(out)
			}
			return
		case KindRegion:
			rb = &regionBounds{block: b}
			bounds = append(bounds, rb)
		}
		for _, c := range b.Children {
			walk(c, rb)
		}
	}
	walk(r.Block, nil)

	method := r.Body.Name
	if len(out) == 0 || out[0] != r.original[0] {
		return nil, violation(method, "method entry %s is no longer the first instruction", r.original[0])
	}
	at := func(i int) *cil.Instruction {
		if i >= len(out) {
			return nil
		}
		return out[i]
	}
	for _, rb := range bounds {
		b := rb.block
		if rb.end <= rb.start || out[rb.start] != b.entry {
			return nil, violation(method, "%s entry %s moved", b.Role, b.entry)
		}
		end := at(rb.end)
		for _, h := range b.Handlers {
			switch b.Role {
			case RoleTry:
				h.TryEnd = end
			case RoleFilter:
				if end != h.HandlerStart {
					return nil, violation(method, "filter at %s does not end at its handler", b.entry)
				}
			case RoleHandler:
				h.HandlerEnd = end
			}
		}
	}
	return out, nil
}
