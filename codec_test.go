package bisturi_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bisturi/bisturi"
)

func TestTwoBigEndianUint32s(t *testing.T) {
	schema, err := bisturi.NewSchema("pair",
		bisturi.Field("a", bisturi.Int(4)),
		bisturi.Field("b", bisturi.Int(4)),
	)
	require.NoError(t, err)

	m := schema.New(map[string]any{"a": uint64(1), "b": uint64(0x0102_0304)})
	out, err := m.Pack()
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 1, 1, 2, 3, 4}, out)

	back, next, err := schema.Unpack(out, 0)
	require.NoError(t, err)
	require.Equal(t, len(out), next)
	require.Equal(t, uint64(1), back.Get("a"))
	require.Equal(t, uint64(0x0102_0304), back.Get("b"))
	require.True(t, m.Equal(back))
}

func TestLengthPrefixedData(t *testing.T) {
	schema, err := bisturi.NewSchema("blob",
		bisturi.Field("length", bisturi.Int(2)),
		bisturi.Field("payload", bisturi.Data(bisturi.DataOpts{Count: exprRef(bisturi.FieldInt("length"))})),
	)
	require.NoError(t, err)

	m := schema.New(map[string]any{"length": uint64(3), "payload": []byte("hey")})
	out, err := m.Pack()
	require.NoError(t, err)
	require.Equal(t, []byte{0, 3, 'h', 'e', 'y'}, out)

	back, next, err := schema.Unpack(out, 0)
	require.NoError(t, err)
	require.Equal(t, 5, next)
	require.Equal(t, []byte("hey"), back.Get("payload"))
}

func TestMixedEndiannessViaConfig(t *testing.T) {
	cfg := bisturi.DefaultConfig()
	cfg.Endianness = bisturi.Little

	schema, err := bisturi.NewSchema("mixed",
		bisturi.WithConfig(cfg),
		bisturi.Field("native", bisturi.Int(2)),              // follows schema config: little
		bisturi.Field("forced_big", bisturi.Int(2, bisturi.WithEndian(bisturi.Big))),
	)
	require.NoError(t, err)

	m := schema.New(map[string]any{"native": uint64(1), "forced_big": uint64(1)})
	out, err := m.Pack()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 0, 1}, out)
}

func TestBitFieldGroup(t *testing.T) {
	schema, err := bisturi.NewSchema("flags",
		bisturi.Field("version", bisturi.Bits(4)),
		bisturi.Field("kind", bisturi.Bits(4)),
	)
	require.NoError(t, err)

	m := schema.New(map[string]any{"version": uint64(0xA), "kind": uint64(0x5)})
	out, err := m.Pack()
	require.NoError(t, err)
	require.Equal(t, []byte{0xA5}, out)

	back, _, err := schema.Unpack(out, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0xA), back.Get("version"))
	require.Equal(t, uint64(0x5), back.Get("kind"))
}

func TestBitFieldGroupByteBoundaryViolation(t *testing.T) {
	_, err := bisturi.NewSchema("bad_flags",
		bisturi.Field("version", bisturi.Bits(4)),
		bisturi.Field("kind", bisturi.Bits(5)), // 9 bits total, not byte-aligned
	)
	require.Error(t, err)
}

func TestUntilMarkerConsumesDelimiter(t *testing.T) {
	schema, err := bisturi.NewSchema("line",
		bisturi.Field("text", bisturi.Data(bisturi.DataOpts{
			UntilLiteral:     []byte("\r\n"),
			ConsumeDelimiter: true,
		})),
		bisturi.Field("rest", bisturi.Data(bisturi.DataOpts{UntilEnd: true})),
	)
	require.NoError(t, err)

	raw := []byte("hello\r\nworld")
	m, next, err := schema.Unpack(raw, 0)
	require.NoError(t, err)
	require.Equal(t, len(raw), next)
	require.Equal(t, []byte("hello"), m.Get("text"))
	require.Equal(t, []byte("world"), m.Get("rest"))
}

func TestNestedRefWithLengthReference(t *testing.T) {
	inner, err := bisturi.NewSchema("inner",
		bisturi.Field("value", bisturi.Int(1)),
	)
	require.NoError(t, err)

	outer, err := bisturi.NewSchema("outer",
		bisturi.Field("count", bisturi.Int(1)),
		bisturi.Field("items", bisturi.Ref(inner.New(nil)).Repeated(bisturi.SequenceOpts{
			Count: exprRef(bisturi.FieldInt("count")),
		})),
	)
	require.NoError(t, err)

	raw := []byte{2, 10, 20}
	m, next, err := outer.Unpack(raw, 0)
	require.NoError(t, err)
	require.Equal(t, 3, next)

	items := m.Get("items").([]any)
	require.Len(t, items, 2)
	require.Equal(t, uint64(10), items[0].(*bisturi.Message).Get("value"))
	require.Equal(t, uint64(20), items[1].(*bisturi.Message).Get("value"))

	out, err := m.Pack()
	require.NoError(t, err)
	require.Equal(t, raw, out)
}

func TestIntPackRejectsOutOfRangeValue(t *testing.T) {
	schema, err := bisturi.NewSchema("narrow",
		bisturi.Field("tag", bisturi.Int(1)),
	)
	require.NoError(t, err)

	m := schema.New(map[string]any{"tag": uint64(300)})
	_, err = m.Pack()
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not fit")
}

func TestIntPackRejectsOutOfRangeSignedValue(t *testing.T) {
	schema, err := bisturi.NewSchema("narrow_signed",
		bisturi.Field("tag", bisturi.Int(1, bisturi.Signed())),
	)
	require.NoError(t, err)

	m := schema.New(map[string]any{"tag": int64(200)}) // max for signed 1-byte is 127
	_, err = m.Pack()
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not fit")
}

func TestWideIntRoundTripsAndComparesByValue(t *testing.T) {
	schema, err := bisturi.NewSchema("wide",
		bisturi.Field("id", bisturi.Int(16)),
	)
	require.NoError(t, err)

	m := schema.New(map[string]any{"id": bigFromString(t, "123456789012345678901234567890")})
	out, err := m.Pack()
	require.NoError(t, err)

	back, _, err := schema.Unpack(out, 0)
	require.NoError(t, err)
	require.True(t, m.Equal(back), "Equal must compare *big.Int fields by value, not pointer identity")
}

func TestUntilSequenceAlwaysRunsAtLeastOneIteration(t *testing.T) {
	schema, err := bisturi.NewSchema("one_shot",
		bisturi.Field("items", bisturi.Int(1).Repeated(bisturi.SequenceOpts{
			Until: condTrue(),
		})),
	)
	require.NoError(t, err)

	raw := []byte{0x01, 0x02, 0x03}
	m, next, err := schema.Unpack(raw, 0)
	require.NoError(t, err)
	require.Equal(t, 1, next, "an always-true Until must stop after exactly one element")
	require.Len(t, m.Get("items").([]any), 1)
}

func TestUntilSequenceErrorsRatherThanSilentlyStoppingOnEmptyBuffer(t *testing.T) {
	schema, err := bisturi.NewSchema("one_shot_empty",
		bisturi.Field("items", bisturi.Int(1).Repeated(bisturi.SequenceOpts{
			Until: condTrue(),
		})),
	)
	require.NoError(t, err)

	_, _, err = schema.Unpack(nil, 0)
	require.Error(t, err, "do-while semantics: the first element is always attempted, even against an exhausted buffer")
}

func condTrue() *bisturi.Cond {
	c := bisturi.CondTrue()
	return &c
}

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return n
}

func exprRef(e bisturi.IntExpr) *bisturi.IntExpr { return &e }
