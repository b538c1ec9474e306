package bisturi

import "github.com/bisturi/bisturi/internal/fragments"

// breakpointField is a debugging pseudo-field: it consumes and produces no
// bytes, and marks its schema as containing a breakpoint (HasBreakpoint),
// which turns the schema Config's GenerateForPack/GenerateForUnpack off;
// those toggles change nothing about how the schema packs or unpacks
// (spec.md §3's Breakpoint()/bisturi's Bkpt, see SPEC_FULL.md §11).
type breakpointField struct{ name string }

// Breakpoint marks a position in the declaration for debugging; it never
// appears in a Message's values.
func Breakpoint() *Descriptor { return wrap(&breakpointField{}) }

func (f *breakpointField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	return []namedField{{name: name, field: f}}
}
func (f *breakpointField) compile(int, []namedField, *Config) ([]string, error) { return nil, nil }
func (f *breakpointField) init(*Message, map[string]any)                        {}
func (f *breakpointField) pack(*Message, *fragments.Fragments) error            { return nil }
func (f *breakpointField) unpack(*Message, []byte, *cursor) error               { return nil }
func (f *breakpointField) packRegexp(*Message, *fragments.OfRegexps) error      { return nil }

// emptyField always packs/unpacks zero bytes, holding a named placeholder
// for a position with no wire representation (bisturi's Em).
type emptyField struct{ name string }

// Empty declares a zero-length named placeholder field.
func Empty() *Descriptor { return wrap(&emptyField{}) }

func (f *emptyField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	return []namedField{{name: name, field: f}}
}
func (f *emptyField) compile(int, []namedField, *Config) ([]string, error) { return nil, nil }
func (f *emptyField) init(m *Message, overrides map[string]any) {
	if v, ok := overrides[f.name]; ok {
		m.Set(f.name, v)
		return
	}
	m.Set(f.name, []byte{})
}
func (f *emptyField) pack(*Message, *fragments.Fragments) error       { return nil }
func (f *emptyField) unpack(m *Message, raw []byte, cur *cursor) error {
	m.Set(f.name, []byte{})
	return nil
}
func (f *emptyField) packRegexp(*Message, *fragments.OfRegexps) error { return nil }
