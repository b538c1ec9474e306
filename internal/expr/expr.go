// Package expr implements the deferred-expression sublanguage: a small
// combinator DSL for building expression trees over not-yet-known field
// values, compiled to a linear bytecode of (arity, op) pairs and evaluated
// against a [Context] once the referenced fields are available.
//
// Per spec.md's design note, this is an explicit AST/builder-function DSL
// rather than operator overloading on descriptor values (Go has no operator
// overloading to abuse in the first place).
package expr

import "fmt"

// FieldLookup resolves a bound field name to its current value. Both
// *bisturi.Message and any other value owner can implement this to serve as
// evaluation context without expr importing the root package.
type FieldLookup interface {
	Field(name string) (value any, ok bool)
}

// Context carries everything a compiled expression may need: the message
// being packed/unpacked, the raw buffer (unpack only), the absolute and
// local offsets, and the outermost message (Root).
type Context struct {
	Pkt         FieldLookup
	Raw         []byte
	Offset      int
	LocalOffset int
	Root        FieldLookup
}

// Node is a deferred-expression tree node.
type Node interface {
	compileInto(ops *[]op)
}

type op struct {
	arity int
	fn    func(ctx *Context, args []any) any
}

// Program is a compiled, linear deferred expression, ready for repeated
// evaluation against different contexts.
type Program struct {
	ops []op
}

// Compile lowers a Node tree into a linear Program.
func Compile(n Node) *Program {
	var ops []op
	n.compileInto(&ops)
	return &Program{ops: ops}
}

// Eval executes the program against ctx and returns the resulting value.
func (p *Program) Eval(ctx *Context) any {
	args := make([]any, 0, len(p.ops))
	for _, o := range p.ops {
		var result any
		if o.arity == 0 {
			result = o.fn(ctx, nil)
		} else {
			n := len(args)
			taken := make([]any, o.arity)
			for i := 0; i < o.arity; i++ {
				taken[o.arity-1-i] = args[n-1-i]
			}
			args = args[:n-o.arity]
			result = o.fn(ctx, taken)
		}
		args = append(args, result)
	}
	if len(args) != 1 {
		panic(fmt.Sprintf("expr: malformed program, %d values left on stack", len(args)))
	}
	return args[0]
}

// EvalInt evaluates the program and coerces the result to an int64. Panics
// if the result is not an integer type.
func (p *Program) EvalInt(ctx *Context) int64 {
	return toInt64(p.Eval(ctx))
}

// EvalBool evaluates the program and normalizes the result to a bool: an
// integer is truthy if non-zero, a slice/string is truthy if non-empty, a
// bool is itself.
func (p *Program) EvalBool(ctx *Context) bool {
	return Truth(p.Eval(ctx))
}

// Truth normalizes a bare value into a boolean condition, the same
// normalization a bare field used as a Sequence/Optional predicate gets:
// an integer's truth value, or a sequence's non-zero length.
func Truth(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case nil:
		return false
	case []byte:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case string:
		return x != ""
	default:
		return toInt64(v) != 0
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case uint64:
		return int64(x)
	case uint32:
		return int64(x)
	case int32:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("expr: cannot convert %T to integer", v))
	}
}

func toLen(v any) int64 {
	switch x := v.(type) {
	case []byte:
		return int64(len(x))
	case []any:
		return int64(len(x))
	case string:
		return int64(len(x))
	default:
		panic(fmt.Sprintf("expr: cannot take length of %T", v))
	}
}

// --- leaves -----------------------------------------------------------

type leaf struct {
	fn func(ctx *Context) any
}

func (l leaf) compileInto(ops *[]op) {
	*ops = append(*ops, op{arity: 0, fn: func(ctx *Context, _ []any) any { return l.fn(ctx) }})
}

// Lit builds a leaf node holding a compile-time-known constant.
func Lit(v any) Node {
	return leaf{fn: func(*Context) any { return v }}
}

// FieldRef builds a leaf node that looks up a field by name in Pkt at
// evaluation time.
func FieldRef(name string) Node {
	return leaf{fn: func(ctx *Context) any {
		v, ok := ctx.Pkt.Field(name)
		if !ok {
			panic(fmt.Sprintf("expr: no such field %q", name))
		}
		return v
	}}
}

// RootFieldRef is like FieldRef but resolves against the outermost message.
func RootFieldRef(name string) Node {
	return leaf{fn: func(ctx *Context) any {
		v, ok := ctx.Root.Field(name)
		if !ok {
			panic(fmt.Sprintf("expr: no such root field %q", name))
		}
		return v
	}}
}

// Func wraps an arbitrary Go callable as a leaf, for the "count/until is a
// callable" case in the field descriptor algebra.
func Func(fn func(ctx *Context) any) Node {
	return leaf{fn: fn}
}

// --- unary --------------------------------------------------------------

type unary struct {
	r  Node
	fn func(any) any
}

func (u unary) compileInto(ops *[]op) {
	u.r.compileInto(ops)
	*ops = append(*ops, op{arity: 1, fn: func(_ *Context, args []any) any { return u.fn(args[0]) }})
}

func Neg(r Node) Node    { return unary{r, func(v any) any { return -toInt64(v) }} }
func Invert(r Node) Node { return unary{r, func(v any) any { return ^toInt64(v) }} }
func Not(r Node) Node    { return unary{r, func(v any) any { return !Truth(v) }} }
func Len(r Node) Node    { return unary{r, func(v any) any { return toLen(v) }} }

// Bool coerces any node's runtime value into a bool using the same
// normalization rule as a bare field used as a condition (spec.md §4.2).
func Bool(r Node) Node { return unary{r, func(v any) any { return Truth(v) }} }

// --- binary ---------------------------------------------------------------

type binary struct {
	l, r Node
	fn   func(l, r any) any
}

func (b binary) compileInto(ops *[]op) {
	b.l.compileInto(ops)
	b.r.compileInto(ops)
	*ops = append(*ops, op{arity: 2, fn: func(_ *Context, args []any) any { return b.fn(args[0], args[1]) }})
}

func intBinary(fn func(l, r int64) int64) func(l, r Node) Node {
	return func(l, r Node) Node {
		return binary{l, r, func(a, b any) any { return fn(toInt64(a), toInt64(b)) }}
	}
}

func cmpBinary(fn func(l, r int64) bool) func(l, r Node) Node {
	return func(l, r Node) Node {
		return binary{l, r, func(a, b any) any { return fn(toInt64(a), toInt64(b)) }}
	}
}

var (
	Add      = intBinary(func(l, r int64) int64 { return l + r })
	Sub      = intBinary(func(l, r int64) int64 { return l - r })
	Mul      = intBinary(func(l, r int64) int64 { return l * r })
	FloorDiv = intBinary(func(l, r int64) int64 { return l / r })
	Mod      = intBinary(func(l, r int64) int64 { return l % r })
	Pow      = intBinary(func(l, r int64) int64 {
		result := int64(1)
		for i := int64(0); i < r; i++ {
			result *= l
		}
		return result
	})
	And = intBinary(func(l, r int64) int64 { return l & r })
	Or  = intBinary(func(l, r int64) int64 { return l | r })
	Xor = intBinary(func(l, r int64) int64 { return l ^ r })
	Shr = intBinary(func(l, r int64) int64 { return l >> uint(r) })
	Shl = intBinary(func(l, r int64) int64 { return l << uint(r) })

	Le = cmpBinary(func(l, r int64) bool { return l <= r })
	Lt = cmpBinary(func(l, r int64) bool { return l < r })
	Ge = cmpBinary(func(l, r int64) bool { return l >= r })
	Gt = cmpBinary(func(l, r int64) bool { return l > r })
)

// TrueDiv is floating-point division; unlike the other integer operators it
// always yields a float64, matching Python's "/" under deferred.py.
func TrueDiv(l, r Node) Node {
	return binary{l, r, func(a, b any) any { return float64(toInt64(a)) / float64(toInt64(b)) }}
}

// Eq and Ne compare two []byte values by content and anything else as
// integers; other sequence types ([]any) are not supported and panic in the
// integer conversion.
func Eq(l, r Node) Node {
	return binary{l, r, func(a, b any) any { return equalValues(a, b) }}
}

func Ne(l, r Node) Node {
	return binary{l, r, func(a, b any) any { return !equalValues(a, b) }}
}

func equalValues(a, b any) bool {
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)
	if aok && bok {
		if len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	}
	return toInt64(a) == toInt64(b)
}

// GetItem indexes into a sequence value (the "sequence" category's
// operator.getitem).
func GetItem(seq, index Node) Node {
	return binary{seq, index, func(s, i any) any {
		idx := int(toInt64(i))
		switch x := s.(type) {
		case []any:
			return x[idx]
		case []byte:
			return x[idx]
		default:
			panic(fmt.Sprintf("expr: cannot index %T", s))
		}
	}}
}

// --- n-ary ------------------------------------------------------------

type nary struct {
	args []Node
	fn   func(args []any) any
}

func (n nary) compileInto(ops *[]op) {
	for _, a := range n.args {
		a.compileInto(ops)
	}
	arity := len(n.args)
	*ops = append(*ops, op{arity: arity, fn: func(_ *Context, args []any) any { return n.fn(args) }})
}

// IfTrueThenElse evaluates cond and returns the value of ifTrue or ifFalse
// depending on its truth value.
func IfTrueThenElse(cond, ifTrue, ifFalse Node) Node {
	return nary{[]Node{cond, ifTrue, ifFalse}, func(args []any) any {
		if Truth(args[0]) {
			return args[1]
		}
		return args[2]
	}}
}

// Choose evaluates index and returns the option at that position.
func Choose(index Node, options ...Node) Node {
	args := append([]Node{index}, options...)
	return nary{args, func(args []any) any {
		i := int(toInt64(args[0]))
		return args[1+i]
	}}
}
