package bisturi

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/bisturi/bisturi/internal/bisturierr"
	"github.com/bisturi/bisturi/internal/fragments"
)

// SchemaOpt configures a Schema under construction, in the order passed to
// NewSchema. Field and WithConfig/SpecializationOf all return a SchemaOpt.
type SchemaOpt interface {
	applySchema(*schemaBuild)
}

type schemaBuild struct {
	decls  []FieldDecl
	cfg    *Config
	cfgSet bool
	parent *Schema
}

// FieldDecl names one field in a schema's declaration, built by Field.
type FieldDecl struct {
	name string
	desc *Descriptor
}

func (f FieldDecl) applySchema(b *schemaBuild) { b.decls = append(b.decls, f) }

// Field declares a bound field name for a Descriptor (the Int/Data/Bits/...
// value returned by this package's field constructors), for use in
// NewSchema.
func Field(name string, d *Descriptor) SchemaOpt {
	return FieldDecl{name: name, desc: d}
}

type configOpt struct{ cfg *Config }

func (c configOpt) applySchema(b *schemaBuild) { b.cfg = c.cfg; b.cfgSet = true }

// WithConfig attaches a per-schema Config (spec.md §6).
func WithConfig(cfg *Config) SchemaOpt { return configOpt{cfg} }

type specializationOpt struct{ parent *Schema }

func (s specializationOpt) applySchema(b *schemaBuild) { b.parent = s.parent }

// SpecializationOf starts this schema from parent's field list: any field
// in this schema's own declarations with the same name as one of parent's
// overrides it in place; new names are appended after parent's fields,
// porting bisturi's specialization_of config key (SPEC_FULL.md §11).
func SpecializationOf(parent *Schema) SchemaOpt { return specializationOpt{parent: parent} }

// Schema is the compiled, ordered plan for a declared message layout: the
// direct analogue of bisturi's per-class field list after compile_fields
// runs (spec.md §4.3's "Plan").  A *Schema is immutable after NewSchema
// returns and is safe for concurrent Pack/Unpack calls, each against its
// own *Message (spec.md §5).
type Schema struct {
	name          string
	id            uuid.UUID
	cfg           *Config
	fields        []namedField
	slots         []string
	hasBreakpoint bool
}

// NewSchema declares and compiles a schema from an ordered list of Field
// declarations (built with Field) plus optional WithConfig/
// SpecializationOf options. This replaces bisturi's reflection-based
// class-body collection with an explicit builder, per spec.md §9.
func NewSchema(name string, opts ...SchemaOpt) (*Schema, error) {
	b := &schemaBuild{cfg: DefaultConfig()}
	for _, o := range opts {
		o.applySchema(b)
	}
	if b.parent != nil {
		b.decls = mergeSpecialization(b.parent, b.decls)
		if !b.cfgSet {
			b.cfg = b.parent.cfg
		}
	}

	// Clone: b.cfg may be the caller's own *Config (WithConfig) or a
	// parent schema's (SpecializationOf inheritance); HasBreakpoint below
	// mutates GenerateForPack/GenerateForUnpack in place, which must never
	// leak back into a config object anyone else holds a reference to.
	s := &Schema{name: name, id: uuid.New(), cfg: b.cfg.clone()}

	// Step: describe_yourself expansion, in declaration order.
	var expanded []namedField
	for _, d := range b.decls {
		expanded = append(expanded, d.desc.describeYourself(d.name, s.cfg)...)
	}

	// Step: compile each expanded descriptor in position order, collecting
	// the instance slots it additionally needs (Sequence/Optional element
	// slots; Bits runs need none).
	slots := append([]string(nil), s.cfg.AdditionalSlots...)
	for i, nf := range expanded {
		extra, err := nf.field.compile(i, expanded, s.cfg)
		if err != nil {
			return nil, bisturierr.CompileError(nf.name, name, s.id, i, err)
		}
		slots = append(slots, extra...)

		if _, ok := nf.field.(*breakpointField); ok {
			s.hasBreakpoint = true
		}
	}
	if s.hasBreakpoint {
		s.cfg.GenerateForPack = false
		s.cfg.GenerateForUnpack = false
	}

	s.fields = expanded
	s.slots = slots
	return s, nil
}

// mergeSpecialization builds the effective declaration list for a schema
// declared with SpecializationOf: parent's fields are re-wrapped in
// declared order, substituted by name with own's override where present,
// followed by any of own's fields that don't name a parent field at all.
func mergeSpecialization(parent *Schema, own []FieldDecl) []FieldDecl {
	overrides := make(map[string]FieldDecl, len(own))
	for _, d := range own {
		overrides[d.name] = d
	}

	out := make([]FieldDecl, 0, len(parent.fields)+len(own))
	for _, nf := range parent.fields {
		if d, ok := overrides[nf.name]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, FieldDecl{name: nf.name, desc: wrap(nf.field)})
	}
	for _, d := range own {
		if _, isParentField := indexOfField(parent.fields, d.name); !isParentField {
			out = append(out, d)
		}
	}
	return out
}

func indexOfField(fields []namedField, name string) (int, bool) {
	for i, nf := range fields {
		if nf.name == name {
			return i, true
		}
	}
	return 0, false
}

// Name returns the schema's declared name.
func (s *Schema) Name() string { return s.name }

// ID returns this schema's unique compile-time identity, used to
// disambiguate error frames when two schemas share a declared name
// (SPEC_FULL.md §8).
func (s *Schema) ID() uuid.UUID { return s.id }

// HasBreakpoint reports whether this schema contains a Breakpoint
// pseudo-field (SPEC_FULL.md §11).
func (s *Schema) HasBreakpoint() bool { return s.hasBreakpoint }

// New constructs a *Message with named overrides; unspecified fields take
// their descriptor default (spec.md §6's construction API).
func (s *Schema) New(overrides map[string]any) *Message {
	m := newMessage(s)
	for _, nf := range s.fields {
		nf.field.init(m, overrides)
	}
	return m
}

// UnpackOption configures a single Unpack call.
type UnpackOption func(*unpackOpts)

type unpackOpts struct {
	silent bool
}

// Silent makes Unpack return (nil, offset, nil) instead of a structured
// error on failure (spec.md §7, "silent=true").
func Silent() UnpackOption {
	return func(o *unpackOpts) { o.silent = true }
}

// Unpack parses raw starting at offset into a new *Message, returning the
// offset immediately after the last byte consumed.
func (s *Schema) Unpack(raw []byte, offset int, opts ...UnpackOption) (msg *Message, next int, err error) {
	o := &unpackOpts{}
	for _, opt := range opts {
		opt(o)
	}

	m := newMessage(s)
	cur := &cursor{offset: offset, localOffset: offset, root: m}

	defer func() {
		if r := recover(); r != nil {
			err = s.wrapRuntimeError(bisturierr.Unpack, "", cur.offset, r)
			if o.silent {
				msg, next, err = nil, offset, nil
			}
		}
	}()

	for _, nf := range s.fields {
		if uerr := nf.field.unpack(m, raw, cur); uerr != nil {
			werr := s.asStructured(bisturierr.Unpack, nf.name, cur.offset, uerr)
			if o.silent {
				return nil, offset, nil
			}
			return nil, cur.offset, werr
		}
		if nf.hook != nil && nf.hook.AfterUnpack != nil {
			nf.hook.AfterUnpack(m)
		}
	}
	return m, cur.offset, nil
}

// unpackNested parses s's plan starting at cur.offset against raw,
// preserving the caller's root message (so RootFieldRef resolves against
// the outermost message even from inside a Ref) and resetting the local
// offset at the boundary (so Aligned(local: true) restarts counting from
// the sub-message's first byte). On return cur.offset/cur.localOffset
// have both advanced by exactly the bytes this nested schema consumed.
func (s *Schema) unpackNested(raw []byte, cur *cursor) (*Message, error) {
	m := newMessage(s)
	start := cur.offset
	sub := &cursor{offset: start, localOffset: start, root: cur.root}

	for _, nf := range s.fields {
		if err := nf.field.unpack(m, raw, sub); err != nil {
			return nil, s.asStructured(bisturierr.Unpack, nf.name, sub.offset, err)
		}
		if nf.hook != nil && nf.hook.AfterUnpack != nil {
			nf.hook.AfterUnpack(m)
		}
	}

	cur.advance(sub.offset - start)
	return m, nil
}

// pack is the runtime driver's Pack entry point, invoked by Message.Pack.
func (s *Schema) pack(m *Message) (out []byte, err error) {
	frag := fragments.New(0)

	defer func() {
		if r := recover(); r != nil {
			err = s.wrapRuntimeError(bisturierr.Pack, "", frag.Current, r)
		}
	}()

	for _, nf := range s.fields {
		if nf.hook != nil && nf.hook.BeforePack != nil {
			nf.hook.BeforePack(m)
		}
		if perr := nf.field.pack(m, frag); perr != nil {
			return nil, s.asStructured(bisturierr.Pack, nf.name, frag.Current, perr)
		}
	}
	return frag.ToBytes(), nil
}

// AsRegularExpression derives a compiled regular expression matching any
// byte string m's schema could pack from m, honoring Any() wildcards
// field-by-field (spec.md §4.4/§4.5). m is usually built with
// AnythingLike and then has a few fields pinned back to concrete values.
func (s *Schema) AsRegularExpression(m *Message) (*regexp.Regexp, error) {
	frag := fragments.NewRegexp()
	for _, nf := range s.fields {
		if err := nf.field.packRegexp(m, frag); err != nil {
			return nil, s.asStructured(bisturierr.Pack, nf.name, frag.Current, err)
		}
	}
	return regexp.Compile("(?s)" + frag.AssembleRegexp())
}

// asStructured wraps a field-level error into a *bisturierr.Error if it
// isn't one already, or appends a new frame if it already is (spec.md §7's
// propagation policy: every Ref boundary crossed adds a frame).
func (s *Schema) asStructured(phase bisturierr.Phase, field string, offset int, cause error) *bisturierr.Error {
	if be, ok := cause.(*bisturierr.Error); ok {
		return be.WithFrame(offset, field, s.name, s.id)
	}
	return bisturierr.New(phase, field, s.name, s.id, offset, cause)
}

func (s *Schema) wrapRuntimeError(phase bisturierr.Phase, field string, offset int, recovered any) *bisturierr.Error {
	var cause error
	switch r := recovered.(type) {
	case error:
		cause = r
	default:
		cause = fmt.Errorf("%v", r)
	}
	return s.asStructured(phase, field, offset, cause)
}
