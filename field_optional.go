package bisturi

import (
	"fmt"

	"github.com/bisturi/bisturi/internal/fragments"
)

// optionalField is the Optional variant: a single prototype field present
// only when a predicate holds, otherwise bound to an absent sentinel (Go
// nil) rather than the prototype's own zero value (spec.md §3's "Optional:
// presence predicate, absent sentinel").
type optionalField struct {
	name      string
	prototype Field
	when      Cond
	def       any

	elemSlot string
	whenProg *exprProgram
}

func (f *optionalField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	return []namedField{{name: name, field: f}}
}

func (f *optionalField) compile(pos int, fields []namedField, cfg *Config) ([]string, error) {
	f.elemSlot = "_opt_elem__" + f.name

	inner := f.prototype.describeYourself(f.elemSlot, cfg)
	if len(inner) != 1 {
		return nil, fmt.Errorf("optional %q: element prototype must describe itself as exactly one field, got %d", f.name, len(inner))
	}
	f.prototype = inner[0].field

	extra, err := f.prototype.compile(pos, fields, cfg)
	if err != nil {
		return nil, err
	}
	f.whenProg = &exprProgram{p: f.when.compile()}
	return append(extra, f.elemSlot), nil
}

func (f *optionalField) init(m *Message, overrides map[string]any) {
	if v, ok := overrides[f.name]; ok {
		m.Set(f.name, v)
		return
	}
	m.Set(f.name, cloneValue(f.def))
}

func (f *optionalField) pack(m *Message, frag *fragments.Fragments) error {
	v := m.Get(f.name)
	if v == nil {
		return nil
	}
	m.Set(f.elemSlot, v)
	defer delete(m.values, f.elemSlot)
	return f.prototype.pack(m, frag)
}

func (f *optionalField) unpack(m *Message, raw []byte, cur *cursor) error {
	if !f.whenProg.evalBool(m, cur.root, raw, cur.offset, cur.localOffset) {
		m.Set(f.name, nil)
		return nil
	}
	if err := f.prototype.unpack(m, raw, cur); err != nil {
		delete(m.values, f.elemSlot)
		return err
	}
	v := m.Get(f.elemSlot)
	delete(m.values, f.elemSlot)
	m.Set(f.name, v)
	return nil
}

func (f *optionalField) packRegexp(m *Message, frag *fragments.OfRegexps) error {
	v := m.Get(f.name)
	if v == nil {
		return nil
	}
	m.Set(f.elemSlot, v)
	defer delete(m.values, f.elemSlot)
	return f.prototype.packRegexp(m, frag)
}
