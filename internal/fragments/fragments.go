// Package fragments implements the sparse byte-buffer assembler used by
// [Pack]. Fields may append in order or, via Move, jump around and leave
// holes; Fragments tracks each write as an offset-keyed chunk and detects
// overlapping writes before they corrupt the final buffer.
package fragments

import (
	"fmt"
	"sort"
)

// Fragments is a sparse, sorted collection of byte chunks keyed by their
// absolute offset, plus a cursor tracking where the next sequential append
// lands. No two chunks may overlap.
type Fragments struct {
	fill    byte
	starts  []int // sorted offsets, kept parallel with chunks
	chunks  [][]byte
	Current int // current_offset: where Append writes next
}

// New returns an empty Fragments that pads holes with fill when assembled.
func New(fill byte) *Fragments {
	return &Fragments{fill: fill}
}

// Append writes b at the current offset and advances the cursor.
func (f *Fragments) Append(b []byte) error {
	return f.Insert(f.Current, b)
}

// Extend appends every element of bs in order.
func (f *Fragments) Extend(bs [][]byte) error {
	for _, b := range bs {
		if err := f.Append(b); err != nil {
			return err
		}
	}
	return nil
}

// Insert writes b at an explicit absolute position. Empty chunks are
// permitted and still advance Current. Insert fails if [position,
// position+len(b)) overlaps any existing chunk.
func (f *Fragments) Insert(position int, b []byte) error {
	i := sort.SearchInts(f.starts, position+1) - 1

	if i >= 0 {
		b1 := f.starts[i]
		e1 := b1 + len(f.chunks[i])
		if position < e1 {
			return fmt.Errorf("fragments: collision with chunk %#x-%#x when inserting %#x-%#x", b1, e1, position, position+len(b))
		}
	}
	if i+1 < len(f.starts) {
		b2 := f.starts[i+1]
		if b2 < position+len(b) {
			e2 := b2 + len(f.chunks[i+1])
			return fmt.Errorf("fragments: collision with chunk %#x-%#x when inserting %#x-%#x", b2, e2, position, position+len(b))
		}
	}

	cp := make([]byte, len(b))
	copy(cp, b)

	f.starts = append(f.starts, 0)
	f.chunks = append(f.chunks, nil)
	copy(f.starts[i+2:], f.starts[i+1:])
	copy(f.chunks[i+2:], f.chunks[i+1:])
	f.starts[i+1] = position
	f.chunks[i+1] = cp

	f.Current = position + len(b)
	return nil
}

// ToBytes materializes the final buffer, concatenating chunks in offset
// order and filling inter-chunk holes with the fill byte.
func (f *Fragments) ToBytes() []byte {
	if len(f.starts) == 0 {
		return nil
	}

	end := f.starts[len(f.starts)-1] + len(f.chunks[len(f.chunks)-1])
	out := make([]byte, end)
	for i := range out {
		out[i] = f.fill
	}
	for i, start := range f.starts {
		copy(out[start:], f.chunks[i])
	}
	return out
}

// pattern is a single position's regexp fragment: either a literal escaped
// string or an already-formed regexp subpattern.
type pattern struct {
	offset int
	regexp string
	length int
}

// OfRegexps is the regex-mode sibling of Fragments: instead of raw bytes it
// accumulates a pattern per position, so the final assembly can produce a
// compiled regular expression that matches any byte string packed from a
// message with the same shape.
type OfRegexps struct {
	Fragments
	patterns []pattern
}

// NewRegexp returns an empty regex-mode Fragments.
func NewRegexp() *OfRegexps {
	return &OfRegexps{Fragments: Fragments{fill: '.'}}
}

// AppendPattern stores the pattern for the chunk at the current offset. If
// literal is true, s is a raw byte string to be escaped; otherwise s is
// already a regexp subpattern.
func (f *OfRegexps) AppendPattern(s string, literal bool) error {
	position := f.Current
	var placeholder []byte
	regexp := s
	if literal {
		regexp = escape(s)
		placeholder = []byte(s)
	} else {
		placeholder = make([]byte, max(1, estimateLen(s)))
	}

	if err := f.Fragments.Insert(position, placeholder); err != nil {
		return err
	}
	f.patterns = append(f.patterns, pattern{offset: position, regexp: regexp, length: len(placeholder)})
	return nil
}

// AssembleRegexp concatenates every stored pattern in offset order, filling
// holes between them with a "match any N bytes" subpattern.
func (f *OfRegexps) AssembleRegexp() string {
	sort.Slice(f.patterns, func(i, j int) bool { return f.patterns[i].offset < f.patterns[j].offset })

	begin := 0
	var out []byte
	for _, p := range f.patterns {
		if hole := p.offset - begin; hole > 0 {
			out = append(out, []byte(fmt.Sprintf("(?:.{%d})", hole))...)
		}
		out = append(out, p.regexp...)
		begin = p.offset + p.length
	}
	return string(out)
}

func escape(s string) string {
	special := "\\.+*?()|[]{}^$"
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		for _, sp := range []byte(special) {
			if c == sp {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, c)
	}
	return string(out)
}

// estimateLen returns how many bytes a ".{N}" subpattern consumes, and 1
// for any other non-literal subpattern, whose width it cannot tell. The
// result is the placeholder chunk's length: it moves Current and sets where
// the hole before the next pattern begins.
func estimateLen(s string) int {
	var n int
	if _, err := fmt.Sscanf(s, ".{%d}", &n); err == nil && fmt.Sprintf(".{%d}", n) == s {
		return n
	}
	return 1
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
