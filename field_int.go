package bisturi

import (
	"fmt"
	"math/big"

	"github.com/bisturi/bisturi/internal/fragments"
)

// IntOpt configures an Int field constructed with Int.
type IntOpt func(*intField)

// Signed marks the field as two's-complement signed rather than unsigned.
func Signed() IntOpt { return func(f *intField) { f.signed = true } }

// WithEndian overrides this field's byte order; absent, the owning
// schema's Config.Endianness applies.
func WithEndian(e Endianness) IntOpt {
	return func(f *intField) { f.endian = &e }
}

// IntDefault sets the value a freshly constructed Message holds for this
// field when no override is given to Schema.New.
func IntDefault(n int64) IntOpt { return func(f *intField) { f.def = n } }

// intField is the Int variant of the field descriptor algebra: an
// arbitrary-byte-width, fixed-endianness, optionally-signed integer
// (spec.md §3's "Int: arbitrary byte width/endianness/signedness").
type intField struct {
	name   string
	width  int
	signed bool
	endian *Endianness
	def    int64

	resolvedEndian Endianness
}

// Int declares a width-byte integer field. width must be >= 1; widths
// above 8 are packed/unpacked through math/big, since Go has no native
// integer type wide enough to hold them (see DESIGN.md).
func Int(width int, opts ...IntOpt) *Descriptor {
	f := &intField{width: width}
	for _, o := range opts {
		o(f)
	}
	return wrap(f)
}

func (f *intField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	return []namedField{{name: name, field: f}}
}

func (f *intField) compile(pos int, fields []namedField, cfg *Config) ([]string, error) {
	if f.width < 1 {
		return nil, fmt.Errorf("int %q: width must be >= 1, got %d", f.name, f.width)
	}
	if f.endian != nil {
		f.resolvedEndian = *f.endian
	} else {
		f.resolvedEndian = cfg.Endianness
	}
	return nil, nil
}

func (f *intField) init(m *Message, overrides map[string]any) {
	if v, ok := overrides[f.name]; ok {
		m.Set(f.name, v)
		return
	}
	if f.width > 8 {
		m.Set(f.name, big.NewInt(f.def))
		return
	}
	if f.signed {
		m.Set(f.name, f.def)
	} else {
		m.Set(f.name, uint64(f.def))
	}
}

func (f *intField) bigEndian() bool {
	return f.resolvedEndian == Big || f.resolvedEndian == Network
}

func (f *intField) pack(m *Message, frag *fragments.Fragments) error {
	v := m.Get(f.name)
	b, err := f.encode(v)
	if err != nil {
		return fmt.Errorf("int %q: %w", f.name, err)
	}
	return frag.Append(b)
}

func (f *intField) unpack(m *Message, raw []byte, cur *cursor) error {
	if cur.offset+f.width > len(raw) {
		return fmt.Errorf("int %q: need %d bytes at offset %d, have %d", f.name, f.width, cur.offset, len(raw)-cur.offset)
	}
	chunk := raw[cur.offset : cur.offset+f.width]
	if f.width > 8 {
		m.Set(f.name, f.decodeBig(chunk))
	} else {
		m.Set(f.name, f.decode(chunk))
	}
	cur.advance(f.width)
	return nil
}

func (f *intField) packRegexp(m *Message, frag *fragments.OfRegexps) error {
	v := m.Get(f.name)
	if isAny(v) {
		return frag.AppendPattern(fmt.Sprintf(".{%d}", f.width), false)
	}
	b, err := f.encode(v)
	if err != nil {
		return fmt.Errorf("int %q: %w", f.name, err)
	}
	return frag.AppendPattern(string(b), true)
}

// encode renders v (an int64/uint64/int/*big.Int) into f.width bytes in
// this field's resolved endianness, two's-complement if signed.
func (f *intField) encode(v any) ([]byte, error) {
	if f.width > 8 {
		return f.encodeBig(v)
	}

	var u uint64
	switch x := v.(type) {
	case int64:
		u = uint64(x)
	case uint64:
		u = x
	case int:
		u = uint64(int64(x))
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}

	if err := f.checkRange(u); err != nil {
		return nil, err
	}

	out := make([]byte, f.width)
	for i := 0; i < f.width; i++ {
		shift := uint(8 * i)
		b := byte(u >> shift)
		if f.bigEndian() {
			out[f.width-1-i] = b
		} else {
			out[i] = b
		}
	}
	return out, nil
}

// checkRange reports whether u, reinterpreted per f.signed, fits in
// f.width bytes, matching encodeBig's overflow check for widths <= 8
// (the fast path below would otherwise silently truncate, e.g. Int(1)
// packing 300 emitting 0x2C with no error).
func (f *intField) checkRange(u uint64) error {
	if f.width >= 8 {
		return nil
	}
	bits := uint(f.width * 8)
	if f.signed {
		v := int64(u)
		lo := -(int64(1) << (bits - 1))
		hi := int64(1)<<(bits-1) - 1
		if v < lo || v > hi {
			return fmt.Errorf("value %d does not fit in %d bytes", v, f.width)
		}
		return nil
	}
	max := uint64(1)<<bits - 1
	if u > max {
		return fmt.Errorf("value %d does not fit in %d bytes", u, f.width)
	}
	return nil
}

func (f *intField) decode(chunk []byte) any {
	var u uint64
	for i := 0; i < f.width; i++ {
		var b byte
		if f.bigEndian() {
			b = chunk[f.width-1-i]
		} else {
			b = chunk[i]
		}
		u |= uint64(b) << uint(8*i)
	}
	if f.width < 8 && f.signed {
		signBit := uint64(1) << uint(f.width*8-1)
		if u&signBit != 0 {
			u |= ^uint64(0) << uint(f.width*8)
		}
		return int64(u)
	}
	if f.signed {
		return int64(u)
	}
	return u
}

// encodeBig renders a *big.Int (or a narrower integer, promoted) into
// f.width bytes, base-256, two's-complement when signed and negative.
func (f *intField) encodeBig(v any) ([]byte, error) {
	bi, err := toBigInt(v)
	if err != nil {
		return nil, err
	}

	mod := new(big.Int).Lsh(big.NewInt(1), uint(f.width*8))
	lo, hi := new(big.Int), mod // unsigned span: [0, 2^(8*width))
	if f.signed {
		hi = new(big.Int).Rsh(mod, 1)
		lo = new(big.Int).Neg(hi)
	}
	if bi.Cmp(lo) < 0 || bi.Cmp(hi) >= 0 {
		return nil, fmt.Errorf("value %s does not fit in %d bytes", bi, f.width)
	}
	if bi.Sign() < 0 {
		bi = new(big.Int).Add(bi, mod)
	}

	raw := bi.Bytes()
	if len(raw) > f.width {
		return nil, fmt.Errorf("value does not fit in %d bytes", f.width)
	}
	out := make([]byte, f.width)
	copy(out[f.width-len(raw):], raw) // big-endian natural form from Bytes()

	if !f.bigEndian() {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (f *intField) decodeBig(chunk []byte) any {
	be := make([]byte, len(chunk))
	if f.bigEndian() {
		copy(be, chunk)
	} else {
		for i, b := range chunk {
			be[len(chunk)-1-i] = b
		}
	}

	bi := new(big.Int).SetBytes(be)
	if f.signed {
		signBit := new(big.Int).Lsh(big.NewInt(1), uint(f.width*8-1))
		if bi.Cmp(signBit) >= 0 {
			mod := new(big.Int).Lsh(big.NewInt(1), uint(f.width*8))
			bi = new(big.Int).Sub(bi, mod)
		}
	}
	return bi
}

func toBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		return x, nil
	case int64:
		return big.NewInt(x), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case int:
		return big.NewInt(int64(x)), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
