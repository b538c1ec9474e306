package bisturi

import "math/big"

// anyValue is the wildcard sentinel produced by Any(): a field bound to it
// packs as "match anything of this field's length" in AsRegularExpression
// instead of its concrete bytes (spec.md §4.5's "Any: wildcard sentinel
// value used to derive a regex form").
type anyValue struct{}

// Any returns the wildcard sentinel. Bind a field to it before calling
// Schema.AsRegularExpression to widen that field to "match anything".
func Any() any { return anyValue{} }

func isAny(v any) bool {
	_, ok := v.(anyValue)
	return ok
}

// AnythingLike builds a message from s with every bound field set to
// Any(), the template AsRegularExpression needs to derive "a pattern
// matching any instance of this schema, with these fields pinned" once
// the caller overwrites the fields it actually wants to constrain.
func AnythingLike(s *Schema) *Message {
	m := s.New(nil)
	for k := range m.values {
		m.values[k] = Any()
	}
	return m
}

// FilterLike keeps every candidate byte string whose shape matches
// pattern's derived regular expression (spec.md §4.5's
// "filter_like(pkt, iterable)"): by default a candidate must match
// starting at its first byte; scanThroughString instead accepts a match
// anywhere in the candidate.
func FilterLike(pattern *Message, candidates [][]byte, scanThroughString bool) ([][]byte, error) {
	re, err := pattern.AsRegularExpression()
	if err != nil {
		return nil, err
	}

	var out [][]byte
	for _, c := range candidates {
		if scanThroughString {
			if re.Match(c) {
				out = append(out, c)
			}
			continue
		}
		if loc := re.FindIndex(c); loc != nil && loc[0] == 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

// Filter narrows candidates to those that structurally match pattern: it
// pre-filters with FilterLike's regular expression, then unpacks each
// surviving candidate (silently discarding one that fails to parse) and
// keeps it only if the parsed Message equals pattern field-by-field, with
// any Any()-valued field in pattern treated as matching anything (spec.md
// §4.5's "filter(pkt, iterable)").
func Filter(pattern *Message, candidates [][]byte) ([]*Message, error) {
	narrowed, err := FilterLike(pattern, candidates, false)
	if err != nil {
		return nil, err
	}

	var out []*Message
	for _, c := range narrowed {
		m, _, err := pattern.schema.Unpack(c, 0, Silent())
		if err != nil || m == nil {
			continue
		}
		if equalsWithAny(pattern, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// equalsWithAny is Message.Equal except a field bound to Any() in a (the
// pattern) always compares equal, whatever b holds for it, mirroring Python
// Any.__eq__ always returning true. An Any() held only by b is compared
// like any other value.
func equalsWithAny(a, b *Message) bool {
	if a.schema != b.schema {
		return false
	}
	for k, av := range a.values {
		if isAny(av) {
			continue
		}
		bv, ok := b.values[k]
		if !ok || !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	am, aok := a.(*Message)
	bm, bok := b.(*Message)
	if aok || bok {
		return aok && bok && am.Equal(bm)
	}
	ab, aok2 := a.([]byte)
	bb, bok2 := b.([]byte)
	if aok2 || bok2 {
		if !aok2 || !bok2 || len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	}
	// *big.Int (the width>8 Int storage type) compares by value, not
	// pointer identity, the same way Message.Equal's cmp.Comparer does.
	ai, aok3 := a.(*big.Int)
	bi, bok3 := b.(*big.Int)
	if aok3 || bok3 {
		if !aok3 || !bok3 {
			return false
		}
		if ai == nil || bi == nil {
			return ai == bi
		}
		return ai.Cmp(bi) == 0
	}
	return a == b
}
