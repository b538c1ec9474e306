package bisturi

import (
	"fmt"

	"github.com/bisturi/bisturi/internal/fragments"
)

// sequenceField is the Sequence variant: a homogeneous run of a prototype
// field, driven by either a fixed/deferred count or an until-predicate
// checked against the most recently produced element, with an optional
// per-schema-wide presence gate and per-element alignment (spec.md §3's
// "Sequence: count-or-until loop with alignment/when-gate").
type sequenceField struct {
	name      string
	prototype Field
	opts      SequenceOpts

	elemSlot  string
	countProg *exprProgram
	untilProg *exprProgram
	whenProg  *exprProgram
}

func (f *sequenceField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	return []namedField{{name: name, field: f}}
}

func (f *sequenceField) compile(pos int, fields []namedField, cfg *Config) ([]string, error) {
	if f.opts.Count != nil && f.opts.Until != nil {
		return nil, fmt.Errorf("sequence %q: Count and Until are mutually exclusive", f.name)
	}
	// Neither Count nor Until given: consume elements until the buffer runs
	// dry on unpack, and pack back out exactly the stored slice's length.
	f.elemSlot = "_seq_elem__" + f.name

	inner := f.prototype.describeYourself(f.elemSlot, cfg)
	if len(inner) != 1 {
		return nil, fmt.Errorf("sequence %q: element prototype must describe itself as exactly one field, got %d", f.name, len(inner))
	}
	f.prototype = inner[0].field

	extra, err := f.prototype.compile(pos, fields, cfg)
	if err != nil {
		return nil, fmt.Errorf("sequence %q: %w", f.name, err)
	}
	if f.opts.Count != nil {
		f.countProg = &exprProgram{p: f.opts.Count.compile()}
	}
	if f.opts.Until != nil {
		f.untilProg = &exprProgram{p: f.opts.Until.compile()}
	}
	if f.opts.When != nil {
		f.whenProg = &exprProgram{p: f.opts.When.compile()}
	}
	return append(extra, f.elemSlot), nil
}

func (f *sequenceField) init(m *Message, overrides map[string]any) {
	if v, ok := overrides[f.name]; ok {
		m.Set(f.name, v)
		return
	}
	def := f.opts.Default
	cp := make([]any, len(def))
	copy(cp, def)
	m.Set(f.name, cp)
}

func (f *sequenceField) pack(m *Message, frag *fragments.Fragments) error {
	if f.whenProg != nil && !f.whenProg.evalBool(m, nil, nil, frag.Current, frag.Current) {
		return nil
	}
	vals, _ := m.Get(f.name).([]any)
	for _, v := range vals {
		m.Set(f.elemSlot, v)
		if err := f.prototype.pack(m, frag); err != nil {
			delete(m.values, f.elemSlot)
			return err
		}
		if f.opts.AlignedTo > 0 {
			frag.Current = alignUp(frag.Current, f.opts.AlignedTo)
		}
	}
	delete(m.values, f.elemSlot)
	return nil
}

func (f *sequenceField) unpack(m *Message, raw []byte, cur *cursor) error {
	if f.whenProg != nil && !f.whenProg.evalBool(m, cur.root, raw, cur.offset, cur.localOffset) {
		m.Set(f.name, nil)
		return nil
	}

	var out []any
	switch {
	case f.countProg != nil:
		n := int(f.countProg.evalInt(m, cur.root, raw, cur.offset, cur.localOffset))
		for i := 0; i < n; i++ {
			if err := f.prototype.unpack(m, raw, cur); err != nil {
				delete(m.values, f.elemSlot)
				return err
			}
			out = append(out, m.Get(f.elemSlot))
			f.realign(cur)
		}
	case f.untilProg != nil:
		// Do-while: always unpack at least one element before the first
		// until-test, matching bisturi's "evaluate the until expression
		// after each iteration, starting with the first" loop discipline
		// even against an already-exhausted buffer.
		for {
			if err := f.prototype.unpack(m, raw, cur); err != nil {
				delete(m.values, f.elemSlot)
				return err
			}
			out = append(out, m.Get(f.elemSlot))
			f.realign(cur)
			if f.untilProg.evalBool(m, cur.root, raw, cur.offset, cur.localOffset) {
				break
			}
		}
	default:
		for cur.offset < len(raw) {
			if err := f.prototype.unpack(m, raw, cur); err != nil {
				delete(m.values, f.elemSlot)
				return err
			}
			out = append(out, m.Get(f.elemSlot))
			f.realign(cur)
		}
	}

	delete(m.values, f.elemSlot)
	if out == nil {
		out = []any{}
	}
	m.Set(f.name, out)
	return nil
}

func (f *sequenceField) realign(cur *cursor) {
	if f.opts.AlignedTo <= 0 {
		return
	}
	cur.offset = alignUp(cur.offset, f.opts.AlignedTo)
	cur.localOffset = alignUp(cur.localOffset, f.opts.AlignedTo)
}

func (f *sequenceField) packRegexp(m *Message, frag *fragments.OfRegexps) error {
	vals, _ := m.Get(f.name).([]any)
	for _, v := range vals {
		m.Set(f.elemSlot, v)
		if err := f.prototype.packRegexp(m, frag); err != nil {
			delete(m.values, f.elemSlot)
			return err
		}
	}
	delete(m.values, f.elemSlot)
	return nil
}
