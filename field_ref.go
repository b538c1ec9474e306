package bisturi

import (
	"fmt"

	"github.com/bisturi/bisturi/internal/fragments"
)

// refField is the Ref variant: a sub-message field whose schema is either
// fixed at declaration time or resolved from the already-unpacked prefix
// of the owning message, plus Embed's flat-splice mode (spec.md §3's
// "Ref: sub-message prototype/callable/deferred-expr, with Embed
// inlining").
type refField struct {
	name    string
	resolve func(m *Message) *Schema
	def     *Message
	embed   bool
}

// RefOpt configures a Ref field.
type RefOpt func(*refField)

// Embed splices the referenced schema's own fields directly into the
// owning schema's flat field list and namespace, instead of nesting them
// under a sub-*Message. Only valid with a concrete prototype (Ref, not
// RefFunc): the spliced fields must be fully known at declaration time.
func Embed() RefOpt { return func(f *refField) { f.embed = true } }

// Ref declares a fixed-schema sub-message field, defaulting to a clone of
// proto on construction.
func Ref(proto *Message, opts ...RefOpt) *Descriptor {
	f := &refField{resolve: func(*Message) *Schema { return proto.Schema() }, def: proto}
	for _, o := range opts {
		o(f)
	}
	return wrap(f)
}

// RefFunc declares a polymorphic sub-message field: resolve picks the
// schema to use based on sibling fields already unpacked/set on m, and
// def supplies the value a freshly constructed Message holds for this
// field (spec.md §3's "callable/deferred" resolution modes, collapsed
// into one Go closure since this port has no separate schema-valued
// deferred-expression type).
func RefFunc(resolve func(m *Message) *Schema, def *Message) *Descriptor {
	return wrap(&refField{resolve: resolve, def: def})
}

func (f *refField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	if f.embed {
		schema := f.resolve(nil)
		return append([]namedField(nil), schema.fields...)
	}
	return []namedField{{name: name, field: f}}
}

func (f *refField) compile(pos int, fields []namedField, cfg *Config) ([]string, error) {
	return nil, nil
}

func (f *refField) init(m *Message, overrides map[string]any) {
	if v, ok := overrides[f.name]; ok {
		m.Set(f.name, v)
		return
	}
	if f.def == nil {
		m.Set(f.name, (*Message)(nil))
		return
	}
	m.Set(f.name, f.def.Clone())
}

func (f *refField) pack(m *Message, frag *fragments.Fragments) error {
	sub, _ := m.Get(f.name).(*Message)
	if sub == nil {
		return fmt.Errorf("ref %q: value is nil", f.name)
	}
	b, err := sub.Pack()
	if err != nil {
		return err
	}
	return frag.Append(b)
}

func (f *refField) unpack(m *Message, raw []byte, cur *cursor) error {
	schema := f.resolve(m)
	if schema == nil {
		return fmt.Errorf("ref %q: resolve returned no schema", f.name)
	}
	sub, err := schema.unpackNested(raw, cur)
	if err != nil {
		return err
	}
	m.Set(f.name, sub)
	return nil
}

func (f *refField) packRegexp(m *Message, frag *fragments.OfRegexps) error {
	sub, _ := m.Get(f.name).(*Message)
	if sub == nil {
		return fmt.Errorf("ref %q: value is nil", f.name)
	}
	re, err := sub.Schema().AsRegularExpression(sub)
	if err != nil {
		return err
	}
	return frag.AppendPattern(re.String(), false)
}
