package bisturi

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/bisturi/bisturi/internal/fragments"
)

// DataOpts configures a Data field. Exactly one of Count, UntilLiteral,
// UntilRegexp, or UntilEnd selects how the field's length is determined
// (spec.md §3's "Data: fixed/ref/callable/deferred count, or until-marker
// literal/regexp with include/consume-delimiter flags").
type DataOpts struct {
	// Count, when set, is the field's byte length: a constant
	// (ConstInt), a sibling field's value (FieldInt), or a deferred
	// expression/callable (ExprInt/FuncInt).
	Count *IntExpr

	// UntilLiteral, when set, scans forward for this exact byte string.
	UntilLiteral []byte
	// UntilRegexp, when set, scans forward for the first match.
	UntilRegexp *regexp.Regexp
	// UntilEnd, when set, takes every remaining byte in the buffer — the
	// "$" end-of-buffer shortcut, bypassing the regexp engine entirely.
	UntilEnd bool

	// IncludeDelimiter keeps the matched marker inside the stored value.
	IncludeDelimiter bool
	// ConsumeDelimiter advances the cursor past the marker even when it
	// isn't included in the stored value.
	ConsumeDelimiter bool
	// SearchBufferLength bounds how far past the cursor the marker search
	// looks; 0 defers to the schema Config's SearchBufferLength (0 there
	// means unbounded).
	SearchBufferLength int

	Default []byte
}

// dataField is the Data variant of the field descriptor algebra.
type dataField struct {
	name string
	opts DataOpts

	countProg *exprProgram
	window    int
}

// Data declares a variable- or fixed-length byte-string field.
func Data(opts DataOpts) *Descriptor { return wrap(&dataField{opts: opts}) }

func (f *dataField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	return []namedField{{name: name, field: f}}
}

func (f *dataField) compile(pos int, fields []namedField, cfg *Config) ([]string, error) {
	set := 0
	if f.opts.Count != nil {
		set++
	}
	if f.opts.UntilLiteral != nil {
		set++
	}
	if f.opts.UntilRegexp != nil {
		set++
	}
	if f.opts.UntilEnd {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("data %q: exactly one of Count/UntilLiteral/UntilRegexp/UntilEnd must be set, got %d", f.name, set)
	}

	if f.opts.Count != nil {
		f.countProg = &exprProgram{p: f.opts.Count.compile()}
	}
	f.window = f.opts.SearchBufferLength
	if f.window == 0 {
		f.window = cfg.SearchBufferLength
	}
	return nil, nil
}

func (f *dataField) init(m *Message, overrides map[string]any) {
	if v, ok := overrides[f.name]; ok {
		m.Set(f.name, v)
		return
	}
	def := f.opts.Default
	cp := make([]byte, len(def))
	copy(cp, def)
	m.Set(f.name, cp)
}

func (f *dataField) pack(m *Message, frag *fragments.Fragments) error {
	v, _ := m.Get(f.name).([]byte)

	if f.opts.Count != nil || f.opts.UntilEnd {
		return frag.Append(v)
	}

	out := v
	if f.opts.ConsumeDelimiter && !f.opts.IncludeDelimiter && f.opts.UntilLiteral != nil {
		out = append(append([]byte(nil), v...), f.opts.UntilLiteral...)
	}
	return frag.Append(out)
}

func (f *dataField) unpack(m *Message, raw []byte, cur *cursor) error {
	switch {
	case f.countProg != nil:
		n := int(f.countProg.evalInt(m, cur.root, raw, cur.offset, cur.localOffset))
		if n < 0 || cur.offset+n > len(raw) {
			return fmt.Errorf("data %q: need %d bytes at offset %d, have %d", f.name, n, cur.offset, len(raw)-cur.offset)
		}
		chunk := make([]byte, n)
		copy(chunk, raw[cur.offset:cur.offset+n])
		m.Set(f.name, chunk)
		cur.advance(n)
		return nil

	case f.opts.UntilEnd:
		chunk := make([]byte, len(raw)-cur.offset)
		copy(chunk, raw[cur.offset:])
		m.Set(f.name, chunk)
		cur.advance(len(chunk))
		return nil

	case f.opts.UntilLiteral != nil:
		return f.unpackUntilLiteral(m, raw, cur)

	default:
		return f.unpackUntilRegexp(m, raw, cur)
	}
}

func (f *dataField) searchWindow(raw []byte, from int) []byte {
	end := len(raw)
	if f.window > 0 && from+f.window < end {
		end = from + f.window
	}
	return raw[from:end]
}

func (f *dataField) unpackUntilLiteral(m *Message, raw []byte, cur *cursor) error {
	win := f.searchWindow(raw, cur.offset)
	idx := bytes.Index(win, f.opts.UntilLiteral)
	if idx < 0 {
		return fmt.Errorf("data %q: marker %q not found within %d bytes of offset %d", f.name, f.opts.UntilLiteral, len(win), cur.offset)
	}
	return f.finishUntil(m, raw, cur, idx, len(f.opts.UntilLiteral))
}

func (f *dataField) unpackUntilRegexp(m *Message, raw []byte, cur *cursor) error {
	win := f.searchWindow(raw, cur.offset)
	loc := f.opts.UntilRegexp.FindIndex(win)
	if loc == nil {
		return fmt.Errorf("data %q: pattern %q did not match within %d bytes of offset %d", f.name, f.opts.UntilRegexp.String(), len(win), cur.offset)
	}
	return f.finishUntil(m, raw, cur, loc[0], loc[1]-loc[0])
}

// finishUntil slices out the value and advances the cursor once the
// marker's relative start (idx) and byte length (markerLen) are known.
func (f *dataField) finishUntil(m *Message, raw []byte, cur *cursor, idx, markerLen int) error {
	valueEnd := cur.offset + idx
	if f.opts.IncludeDelimiter {
		valueEnd += markerLen
	}
	chunk := make([]byte, valueEnd-cur.offset)
	copy(chunk, raw[cur.offset:valueEnd])
	m.Set(f.name, chunk)

	advanceTo := idx
	if f.opts.ConsumeDelimiter {
		advanceTo = idx + markerLen
	}
	cur.advance(advanceTo)
	return nil
}

func (f *dataField) packRegexp(m *Message, frag *fragments.OfRegexps) error {
	v := m.Get(f.name)
	if isAny(v) {
		// The count may depend on a sibling field not available outside a
		// real pack/unpack context, so an Any() Data field always widens
		// to "any run of bytes" rather than trying to pin its length.
		return frag.AppendPattern(".*", false)
	}
	b, _ := v.([]byte)
	return frag.AppendPattern(string(b), true)
}
