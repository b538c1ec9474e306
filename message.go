package bisturi

import (
	"math/big"
	"regexp"

	"github.com/google/go-cmp/cmp"
	deepcopy "github.com/tiendc/go-deepcopy"
)

// bigIntComparer lets cmp.Equal compare *big.Int by value: big.Int keeps
// its sign/magnitude in unexported fields, so cmp would otherwise panic
// trying to reach them instead of using Cmp.
var bigIntComparer = cmp.Comparer(func(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
})

// Message is a packet instance: an ordered mapping from bound field name to
// value (spec.md §3). Values are int64/uint64 integers, []byte blobs,
// *Message sub-instances, []any sequences, or nil for an absent Optional.
// Each Message owns its values; nothing is shared across instances.
type Message struct {
	schema *Schema
	values map[string]any
}

func newMessage(s *Schema) *Message {
	return &Message{schema: s, values: make(map[string]any, len(s.fields))}
}

// Field implements expr.FieldLookup, letting a Message serve directly as
// the evaluation context for deferred expressions and predicates.
func (m *Message) Field(name string) (any, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Get returns the named field's value, or nil if unset.
func (m *Message) Get(name string) any { return m.values[name] }

// Set overwrites the named field's value.
func (m *Message) Set(name string, v any) { m.values[name] = v }

// Schema returns the compiled schema this message was built from.
func (m *Message) Schema() *Schema { return m.schema }

// Pack serializes m per its schema's compiled plan.
func (m *Message) Pack() ([]byte, error) {
	return m.schema.pack(m)
}

// AsRegularExpression derives a compiled regular expression matching any
// byte string m's schema could pack from m (spec.md §4.5's
// "pkt.as_regular_expression()").
func (m *Message) AsRegularExpression() (*regexp.Regexp, error) {
	return m.schema.AsRegularExpression(m)
}

// Clone deep-copies m, including any nested sub-messages, so mutating the
// clone never mutates m. This backs Ref's prototype cloning (spec.md §3,
// "Prototype: a sub-message value used as both structural template and
// default clone source").
func (m *Message) Clone() *Message {
	cp := newMessage(m.schema)
	for k, v := range m.values {
		cp.values[k] = cloneValue(v)
	}
	return cp
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case *Message:
		if x == nil {
			return (*Message)(nil)
		}
		return x.Clone()
	case []byte:
		cp := make([]byte, len(x))
		copy(cp, x)
		return cp
	case []any:
		cp := make([]any, len(x))
		for i, e := range x {
			cp[i] = cloneValue(e)
		}
		return cp
	default:
		var dst any
		if err := deepcopy.Copy(&dst, &v); err == nil {
			return dst
		}
		return v
	}
}

// Equal reports whether m and other hold pairwise-equal field values in
// declared order (spec.md §4.4, "Equality between instances is pairwise
// field equality in declared order"), and whether they were built from the
// same schema.
func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.schema != other.schema {
		return false
	}
	return cmp.Equal(m.values, other.values, bigIntComparer)
}
