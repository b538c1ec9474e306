package bisturi

import (
	"fmt"

	"github.com/bisturi/bisturi/internal/fragments"
)

// BitsOpt configures a Bits field constructed with Bits.
type BitsOpt func(*bitsField)

// BitsSigned marks this bit-run as two's-complement signed.
func BitsSigned() BitsOpt { return func(f *bitsField) { f.signed = true } }

// BitsDefault sets this bit-run's value in a freshly constructed Message.
func BitsDefault(n int64) BitsOpt { return func(f *bitsField) { f.def = n } }

// bitRun is the shared state for one contiguous run of Bits fields that
// compile-groups into a single byte-aligned synthetic integer (spec.md
// §3's "Bits: contiguous runs grouped into synthetic byte-aligned Int,
// MSB-first").
type bitRun struct {
	names      []string
	widths     []int
	signed     []bool
	totalBits  int
	totalBytes int
	endian     Endianness
}

// bitsField is one member of a bit run: width bits wide, MSB-first within
// the run. Only the leftmost (first) member of a run performs byte I/O;
// the rest just read their slice out of the group's shared value.
type bitsField struct {
	name    string
	width   int
	signed  bool
	def     int64
	isFirst bool
	run     *bitRun
}

// Bits declares a width-bit field. Adjacent Bits declarations are grouped
// at compile time into one byte-aligned synthetic integer; a run whose
// total width isn't a multiple of 8 is a compile error.
func Bits(width int, opts ...BitsOpt) *Descriptor {
	f := &bitsField{width: width}
	for _, o := range opts {
		o(f)
	}
	return wrap(f)
}

func (f *bitsField) describeYourself(name string, cfg *Config) []namedField {
	f.name = name
	return []namedField{{name: name, field: f}}
}

func (f *bitsField) compile(pos int, fields []namedField, cfg *Config) ([]string, error) {
	if f.run != nil {
		// Already grouped by the run-starting field processed earlier in
		// this same compile pass.
		return nil, nil
	}
	if f.width < 1 {
		return nil, fmt.Errorf("bits %q: width must be >= 1, got %d", f.name, f.width)
	}

	end := pos + 1
	for end < len(fields) {
		if _, ok := fields[end].field.(*bitsField); !ok {
			break
		}
		end++
	}

	run := &bitRun{endian: cfg.Endianness}
	for i := pos; i < end; i++ {
		bf := fields[i].field.(*bitsField)
		run.names = append(run.names, fields[i].name)
		run.widths = append(run.widths, bf.width)
		run.signed = append(run.signed, bf.signed)
		run.totalBits += bf.width
	}
	if run.totalBits%8 != 0 {
		return nil, fmt.Errorf("bits run starting at %q: total width %d bits is not byte-aligned", f.name, run.totalBits)
	}
	run.totalBytes = run.totalBits / 8

	for i := pos; i < end; i++ {
		bf := fields[i].field.(*bitsField)
		bf.run = run
		bf.isFirst = i == pos
	}
	return nil, nil
}

func (f *bitsField) init(m *Message, overrides map[string]any) {
	if v, ok := overrides[f.name]; ok {
		m.Set(f.name, v)
		return
	}
	if f.signed {
		m.Set(f.name, f.def)
	} else {
		m.Set(f.name, uint64(f.def))
	}
}

func bitsBigEndian(e Endianness) bool { return e == Big || e == Network }

func (f *bitsField) pack(m *Message, frag *fragments.Fragments) error {
	if !f.isFirst {
		return nil
	}
	value, err := f.run.assemble(m)
	if err != nil {
		return err
	}
	return frag.Append(f.run.toBytes(value))
}

func (f *bitsField) unpack(m *Message, raw []byte, cur *cursor) error {
	if !f.isFirst {
		return nil
	}
	if cur.offset+f.run.totalBytes > len(raw) {
		return fmt.Errorf("bits %q: need %d bytes at offset %d, have %d", f.name, f.run.totalBytes, cur.offset, len(raw)-cur.offset)
	}
	value := f.run.fromBytes(raw[cur.offset : cur.offset+f.run.totalBytes])
	f.run.disassemble(m, value)
	cur.advance(f.run.totalBytes)
	return nil
}

func (r *bitRun) assemble(m *Message) (uint64, error) {
	var value uint64
	bitPos := r.totalBits
	for i, name := range r.names {
		w := r.widths[i]
		v, err := toUint64Generic(m.Get(name))
		if err != nil {
			return 0, fmt.Errorf("bits %q: %w", name, err)
		}
		mask := uint64(1)<<uint(w) - 1
		bitPos -= w
		value |= (v & mask) << uint(bitPos)
	}
	return value, nil
}

func (r *bitRun) disassemble(m *Message, value uint64) {
	bitPos := r.totalBits
	for i, name := range r.names {
		w := r.widths[i]
		bitPos -= w
		mask := uint64(1)<<uint(w) - 1
		v := (value >> uint(bitPos)) & mask
		if r.signed[i] && w < 64 {
			signBit := uint64(1) << uint(w-1)
			if v&signBit != 0 {
				v |= ^mask
			}
			m.Set(name, int64(v))
		} else {
			m.Set(name, v)
		}
	}
}

func (r *bitRun) toBytes(value uint64) []byte {
	out := make([]byte, r.totalBytes)
	for i := 0; i < r.totalBytes; i++ {
		b := byte(value >> uint(8*i))
		if bitsBigEndian(r.endian) {
			out[r.totalBytes-1-i] = b
		} else {
			out[i] = b
		}
	}
	return out
}

func (r *bitRun) fromBytes(chunk []byte) uint64 {
	var value uint64
	for i := 0; i < r.totalBytes; i++ {
		var b byte
		if bitsBigEndian(r.endian) {
			b = chunk[r.totalBytes-1-i]
		} else {
			b = chunk[i]
		}
		value |= uint64(b) << uint(8*i)
	}
	return value
}

func toUint64Generic(v any) (uint64, error) {
	switch x := v.(type) {
	case int64:
		return uint64(x), nil
	case uint64:
		return x, nil
	case int:
		return uint64(int64(x)), nil
	default:
		return 0, fmt.Errorf("unsupported bit-field value type %T", v)
	}
}

// packRegexp approximates bisturi's per-byte wildcard/literal/mixed
// classification: a byte whose bits are entirely from Any() members packs
// as a single-byte wildcard, a byte whose bits are all concrete packs as a
// literal, and a byte straddling both (a genuinely "mixed" byte) falls
// back to a wildcard rather than over-constraining the match.
func (f *bitsField) packRegexp(m *Message, frag *fragments.OfRegexps) error {
	if !f.isFirst {
		return nil
	}

	anyBitPos := f.run.totalBits
	var anyMask uint64
	for i, name := range f.run.names {
		w := f.run.widths[i]
		anyBitPos -= w
		if isAny(m.Get(name)) {
			mask := uint64(1)<<uint(w) - 1
			anyMask |= mask << uint(anyBitPos)
		}
	}

	value, err := f.run.assembleConcrete(m)
	if err != nil {
		return err
	}
	valueBytes := f.run.toBytes(value)
	anyMaskBytes := f.run.toBytes(anyMask)

	for i := 0; i < f.run.totalBytes; i++ {
		am := anyMaskBytes[i]
		if am == 0xff {
			if err := frag.AppendPattern(".", false); err != nil {
				return err
			}
		} else if am == 0 {
			if err := frag.AppendPattern(string(valueBytes[i:i+1]), true); err != nil {
				return err
			}
		} else {
			if err := frag.AppendPattern(".", false); err != nil {
				return err
			}
		}
	}
	return nil
}

// assembleConcrete is like assemble but treats any Any()-valued member as
// zero, for building the literal half of the byte classification above.
func (r *bitRun) assembleConcrete(m *Message) (uint64, error) {
	var value uint64
	bitPos := r.totalBits
	for i, name := range r.names {
		w := r.widths[i]
		bitPos -= w
		v := m.Get(name)
		if isAny(v) {
			continue
		}
		u, err := toUint64Generic(v)
		if err != nil {
			return 0, fmt.Errorf("bits %q: %w", name, err)
		}
		mask := uint64(1)<<uint(w) - 1
		value |= (u & mask) << uint(bitPos)
	}
	return value, nil
}
