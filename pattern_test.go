package bisturi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bisturi/bisturi"
)

func tagSchema(t *testing.T) *bisturi.Schema {
	t.Helper()
	schema, err := bisturi.NewSchema("tagged",
		bisturi.Field("tag", bisturi.Int(1)),
		bisturi.Field("value", bisturi.Int(2)),
	)
	require.NoError(t, err)
	return schema
}

func TestAnythingLikeBindsEveryFieldToAny(t *testing.T) {
	schema := tagSchema(t)
	m := bisturi.AnythingLike(schema)

	re, err := m.AsRegularExpression()
	require.NoError(t, err)

	want, err := bisturi.NewSchema("tagged2",
		bisturi.Field("tag", bisturi.Int(1)),
		bisturi.Field("value", bisturi.Int(2)),
	)
	require.NoError(t, err)
	packed, err := want.New(map[string]any{"tag": uint64(7), "value": uint64(0x1234)}).Pack()
	require.NoError(t, err)

	require.True(t, re.Match(packed))
}

func TestAsRegularExpressionPinsConcreteFieldsAndWidensAny(t *testing.T) {
	schema := tagSchema(t)
	m := bisturi.AnythingLike(schema)
	m.Set("tag", uint64(0x05))

	re, err := m.AsRegularExpression()
	require.NoError(t, err)

	matching := schema.New(map[string]any{"tag": uint64(0x05), "value": uint64(0xBEEF)})
	packedMatch, err := matching.Pack()
	require.NoError(t, err)
	require.True(t, re.MatchString(string(packedMatch)))

	mismatching := schema.New(map[string]any{"tag": uint64(0x06), "value": uint64(0xBEEF)})
	packedMismatch, err := mismatching.Pack()
	require.NoError(t, err)
	require.False(t, re.MatchString(string(packedMismatch)))
}

func TestFilterLikeNarrowsCandidatesByShape(t *testing.T) {
	schema := tagSchema(t)
	pattern := bisturi.AnythingLike(schema)
	pattern.Set("tag", uint64(0x01))

	matchPacked, err := schema.New(map[string]any{"tag": uint64(0x01), "value": uint64(0xAAAA)}).Pack()
	require.NoError(t, err)
	otherTagPacked, err := schema.New(map[string]any{"tag": uint64(0x02), "value": uint64(0xAAAA)}).Pack()
	require.NoError(t, err)
	tooShort := []byte{0x01, 0x00}

	candidates := [][]byte{matchPacked, otherTagPacked, tooShort}
	kept, err := bisturi.FilterLike(pattern, candidates, false)
	require.NoError(t, err)
	require.Equal(t, [][]byte{matchPacked}, kept)
}

func TestFilterUnpacksSurvivorsAndChecksEquality(t *testing.T) {
	schema := tagSchema(t)
	pattern := bisturi.AnythingLike(schema)
	pattern.Set("tag", uint64(0x01))

	matchPacked, err := schema.New(map[string]any{"tag": uint64(0x01), "value": uint64(0xAAAA)}).Pack()
	require.NoError(t, err)
	otherValuePacked, err := schema.New(map[string]any{"tag": uint64(0x01), "value": uint64(0xBBBB)}).Pack()
	require.NoError(t, err)

	candidates := [][]byte{matchPacked, otherValuePacked}
	got, err := bisturi.Filter(pattern, candidates)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(0xAAAA), got[0].Get("value"))
	require.Equal(t, uint64(0xBBBB), got[1].Get("value"))
}

func TestFilterExcludesCandidatesWithDifferentPinnedField(t *testing.T) {
	schema := tagSchema(t)
	pattern := schema.New(map[string]any{"tag": uint64(0x01), "value": uint64(0xAAAA)})

	matchPacked, err := schema.New(map[string]any{"tag": uint64(0x01), "value": uint64(0xAAAA)}).Pack()
	require.NoError(t, err)
	differentPacked, err := schema.New(map[string]any{"tag": uint64(0x01), "value": uint64(0xCCCC)}).Pack()
	require.NoError(t, err)

	got, err := bisturi.Filter(pattern, [][]byte{matchPacked, differentPacked})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, uint64(0xAAAA), got[0].Get("value"))
}
