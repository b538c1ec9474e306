package bisturi

import (
	"github.com/bisturi/bisturi/internal/expr"
	"github.com/bisturi/bisturi/internal/fragments"
)

// Field is the polymorphic field-descriptor interface implemented by every
// variant in the field descriptor algebra (spec.md §3/§4.3): Int, Data,
// Bits, Ref, Sequence, Optional, Move.
//
// Each method mirrors one step of bisturi's descriptor contract:
// describeYourself is the describe_yourself expansion, compile is the
// one-shot _compile that specializes pack/unpack, init applies defaults,
// and pack/unpack/packRegexp are the specialized closures themselves.
type Field interface {
	describeYourself(name string, cfg *Config) []namedField
	compile(pos int, fields []namedField, cfg *Config) ([]string, error)
	init(m *Message, overrides map[string]any)
	pack(m *Message, frag *fragments.Fragments) error
	unpack(m *Message, raw []byte, cur *cursor) error
	packRegexp(m *Message, frag *fragments.OfRegexps) error
}

// namedField is one entry of a compiled Schema's plan: a bound name paired
// with the descriptor responsible for it, plus an optional sync hook run
// by the runtime driver around that field's pack/unpack.
type namedField struct {
	name  string
	field Field
	hook  *SyncHook
}

// cursor threads the offset, local offset (for align-local) and root
// message through an in-progress unpack, mirroring the **k kwargs bisturi
// passes to every unpack call (offset, local_offset, root).
type cursor struct {
	offset      int
	localOffset int
	root        *Message
}

// advance moves both the global and local offset forward by n bytes, the
// bookkeeping every byte-consuming field performs after a successful read.
func (c *cursor) advance(n int) {
	c.offset += n
	c.localOffset += n
}

// Descriptor is the fluent wrapper every field constructor (Int, Data,
// Bits, ...) returns, so that .Repeated/.When/.At/.Aligned/.Describe can
// decorate any field uniformly (spec.md §6, "Per-field decoration").
type Descriptor struct {
	Field
	move *moveDirective
	hook SyncHook
}

// wrap lifts a concrete Field implementation into a *Descriptor.
func wrap(f Field) *Descriptor {
	return &Descriptor{Field: f}
}

// MoveType is the kind of cursor movement a Move pseudo-field or an .At()
// decoration performs.
type MoveType int

const (
	Absolute MoveType = iota
	Relative
	AlignGlobal
	AlignLocal
)

type moveDirective struct {
	arg            IntExpr
	kind           MoveType
	useSchemaAlign bool
}

// At prepends a Move that jumps the cursor to/by pos (absolute or
// relative) before this field is processed.
func (d *Descriptor) At(pos IntExpr, kind MoveType) *Descriptor {
	d.move = &moveDirective{arg: pos, kind: kind}
	return d
}

// Aligned prepends an align-global or align-local Move before this field.
// A non-positive to defers to the owning schema's Config.Align.
func (d *Descriptor) Aligned(to int, local bool) *Descriptor {
	kind := AlignGlobal
	if local {
		kind = AlignLocal
	}
	if to <= 0 {
		d.move = &moveDirective{arg: IntExpr{}, kind: kind, useSchemaAlign: true}
		return d
	}
	d.move = &moveDirective{arg: ConstInt(to), kind: kind}
	return d
}

// SequenceOpts configures a .Repeated() decoration. At most one of Count or
// Until may be set (setting both is a compile error); with neither, unpack
// reads elements until the buffer is exhausted.
type SequenceOpts struct {
	Count     *IntExpr
	Until     *Cond
	When      *Cond
	AlignedTo int
	Default   []any
}

// Repeated wraps this field as the element prototype of a Sequence.
func (d *Descriptor) Repeated(opts SequenceOpts) *Descriptor {
	return wrap(&sequenceField{prototype: d.Field, opts: opts})
}

// When wraps this field as the element prototype of an Optional.
func (d *Descriptor) When(cond Cond, def any) *Descriptor {
	return wrap(&optionalField{prototype: d.Field, when: cond, def: def})
}

// SyncHook is a descriptor-object hook: a synthesized attribute computed
// before packing or after unpacking (spec.md §3's "optional
// descriptor-object hook for computed/synchronized attributes").
type SyncHook struct {
	BeforePack func(m *Message)
	AfterUnpack func(m *Message)
}

// Describe attaches a SyncHook to this field's schema registration.
func (d *Descriptor) Describe(hook SyncHook) *Descriptor {
	d.hook = hook
	return d
}

// describeYourself on *Descriptor handles the At/Aligned expansion: a Move
// pseudo-field is prepended to whatever the wrapped Field expands to.
func (d *Descriptor) describeYourself(name string, cfg *Config) []namedField {
	inner := d.Field.describeYourself(name, cfg)
	if d.hook.BeforePack != nil || d.hook.AfterUnpack != nil {
		for i := range inner {
			if inner[i].name == name {
				hook := d.hook
				inner[i].hook = &hook
			}
		}
	}
	if d.move == nil {
		return inner
	}
	arg := d.move.arg
	if d.move.useSchemaAlign {
		arg = ConstInt(cfg.Align)
	}
	moveName := "_move__" + name
	out := make([]namedField, 0, len(inner)+1)
	out = append(out, namedField{name: moveName, field: &moveField{arg: arg, kind: d.move.kind}})
	return append(out, inner...)
}

// --- Cond: a lazily-compiled boolean predicate -----------------------

// Cond is a boolean predicate evaluated against a field's unpack/pack
// context: the presence test for Optional, the when-gate and until-test
// for Sequence.
type Cond struct {
	node   expr.Node
	always *bool
}

// CondTrue always evaluates to true.
func CondTrue() Cond { t := true; return Cond{always: &t} }

// CondFalse always evaluates to false.
func CondFalse() Cond { f := false; return Cond{always: &f} }

// CondField gates on the named field's own truth/length (spec.md §4.2's
// "a bare field used as a condition is implicitly converted to a bool").
func CondField(name string) Cond { return Cond{node: expr.Bool(expr.FieldRef(name))} }

// CondExpr gates on a deferred expression's truth value.
func CondExpr(n expr.Node) Cond { return Cond{node: expr.Bool(n)} }

// CondFunc gates on an arbitrary Go predicate.
func CondFunc(fn func(ctx *expr.Context) bool) Cond {
	return Cond{node: expr.Func(func(ctx *expr.Context) any { return fn(ctx) })}
}

func (c Cond) compile() *expr.Program {
	if c.always != nil {
		v := *c.always
		return expr.Compile(expr.Lit(v))
	}
	return expr.Compile(c.node)
}

// --- IntExpr: a lazily-compiled integer-valued expression -------------

// IntExpr is a deferred integer value: a Data byte count, a Sequence
// count, or a Move's argument.
type IntExpr struct {
	node expr.Node
}

// ConstInt is a compile-time-known integer.
func ConstInt(n int) IntExpr { return IntExpr{node: expr.Lit(int64(n))} }

// FieldInt reads a prior field's integer value.
func FieldInt(name string) IntExpr { return IntExpr{node: expr.FieldRef(name)} }

// ExprInt wraps a deferred expression tree.
func ExprInt(n expr.Node) IntExpr { return IntExpr{node: n} }

// FuncInt wraps an arbitrary Go callable.
func FuncInt(fn func(ctx *expr.Context) int) IntExpr {
	return IntExpr{node: expr.Func(func(ctx *expr.Context) any { return int64(fn(ctx)) })}
}

func (e IntExpr) compile() *expr.Program { return expr.Compile(e.node) }
