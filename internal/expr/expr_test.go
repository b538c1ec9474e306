package expr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bisturi/bisturi/internal/expr"
)

type fakeLookup map[string]any

func (f fakeLookup) Field(name string) (any, bool) {
	v, ok := f[name]
	return v, ok
}

func TestArithmetic(t *testing.T) {
	ctx := &expr.Context{Pkt: fakeLookup{"n": int64(3)}}
	prog := expr.Compile(expr.Add(expr.FieldRef("n"), expr.Lit(int64(4))))
	require.EqualValues(t, 7, prog.EvalInt(ctx))
}

func TestSubtractionPreservesOperandOrder(t *testing.T) {
	ctx := &expr.Context{Pkt: fakeLookup{"n": int64(10)}}
	prog := expr.Compile(expr.Sub(expr.Lit(int64(100)), expr.FieldRef("n")))
	require.EqualValues(t, 90, prog.EvalInt(ctx))
}

func TestIfTrueThenElse(t *testing.T) {
	ctx := &expr.Context{Pkt: fakeLookup{"flag": int64(0)}}
	prog := expr.Compile(expr.IfTrueThenElse(expr.FieldRef("flag"), expr.Lit(int64(1)), expr.Lit(int64(2))))
	require.EqualValues(t, 2, prog.EvalInt(ctx))
}

func TestChoose(t *testing.T) {
	ctx := &expr.Context{Pkt: fakeLookup{}}
	prog := expr.Compile(expr.Choose(expr.Lit(int64(1)), expr.Lit(int64(10)), expr.Lit(int64(20)), expr.Lit(int64(30))))
	require.EqualValues(t, 20, prog.EvalInt(ctx))
}

func TestBoolNormalizesLength(t *testing.T) {
	require.True(t, expr.Truth([]byte{1}))
	require.False(t, expr.Truth([]byte{}))
	require.True(t, expr.Truth(int64(5)))
	require.False(t, expr.Truth(int64(0)))
}
