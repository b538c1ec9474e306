package bisturi

import "github.com/bisturi/bisturi/internal/fragments"

// moveField is the pseudo-field behind .At/.Aligned decorations and the
// standalone Move constructor: it mutates the cursor without consuming or
// producing any bytes (spec.md §3's "Move: absolute/relative/align-global/
// align-local cursor mutation pseudo-field").
type moveField struct {
	name string
	arg  IntExpr
	kind MoveType
	prog *exprProgram
}

// Move builds a standalone cursor-mutation field, for use outside of an
// .At()/.Aligned() decoration.
func Move(arg IntExpr, kind MoveType) *Descriptor { return wrap(&moveField{arg: arg, kind: kind}) }

func (f *moveField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	return []namedField{{name: name, field: f}}
}

func (f *moveField) compile(pos int, fields []namedField, cfg *Config) ([]string, error) {
	f.prog = &exprProgram{p: f.arg.compile()}
	return nil, nil
}

func (f *moveField) init(m *Message, overrides map[string]any) {}

func (f *moveField) pack(m *Message, frag *fragments.Fragments) error {
	n := int(f.prog.evalInt(m, nil, nil, frag.Current, frag.Current))
	switch f.kind {
	case Absolute:
		frag.Current = n
	case Relative:
		frag.Current += n
	case AlignGlobal, AlignLocal:
		frag.Current = alignUp(frag.Current, n)
	}
	return nil
}

func (f *moveField) unpack(m *Message, raw []byte, cur *cursor) error {
	n := int(f.prog.evalInt(m, cur.root, raw, cur.offset, cur.localOffset))
	switch f.kind {
	case Absolute:
		cur.offset = n
	case Relative:
		cur.offset += n
	case AlignGlobal:
		cur.offset = alignUp(cur.offset, n)
	case AlignLocal:
		aligned := alignUp(cur.localOffset, n)
		cur.offset += aligned - cur.localOffset
		cur.localOffset = aligned
	}
	return nil
}

func (f *moveField) packRegexp(m *Message, frag *fragments.OfRegexps) error {
	n := int(f.prog.evalInt(m, nil, nil, frag.Current, frag.Current))
	switch f.kind {
	case Absolute:
		frag.Current = n
	case Relative:
		frag.Current += n
	case AlignGlobal, AlignLocal:
		frag.Current = alignUp(frag.Current, n)
	}
	return nil
}

func alignUp(x, to int) int {
	if to <= 1 {
		return x
	}
	r := x % to
	if r == 0 {
		return x
	}
	return x + (to - r)
}
