package fragments_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bisturi/bisturi/internal/fragments"
)

func TestAppendSequential(t *testing.T) {
	f := fragments.New('.')
	require.NoError(t, f.Append([]byte{0x01, 0x02}))
	require.NoError(t, f.Append([]byte{0x03}))
	require.Equal(t, []byte{0x01, 0x02, 0x03}, f.ToBytes())
	require.Equal(t, 3, f.Current)
}

func TestInsertHoleIsFilled(t *testing.T) {
	f := fragments.New('.')
	require.NoError(t, f.Insert(0, []byte{0xAA}))
	require.NoError(t, f.Insert(4, []byte{0xBB}))
	require.Equal(t, []byte{0xAA, '.', '.', '.', 0xBB}, f.ToBytes())
}

func TestInsertCollisionDetected(t *testing.T) {
	f := fragments.New('.')
	require.NoError(t, f.Insert(0, []byte{0x01, 0x02, 0x03}))
	require.Error(t, f.Insert(1, []byte{0xFF}))
	require.Error(t, f.Insert(2, []byte{0xFF, 0xFF, 0xFF}))
}

func TestEmptyChunkAdvancesCurrent(t *testing.T) {
	f := fragments.New('.')
	require.NoError(t, f.Insert(5, nil))
	require.Equal(t, 5, f.Current)
}

func TestRegexpHoleFilling(t *testing.T) {
	f := fragments.NewRegexp()
	require.NoError(t, f.AppendPattern("AB", true))
	f.Current = 5
	require.NoError(t, f.AppendPattern(".{2}", false))

	got := f.AssembleRegexp()
	require.Equal(t, "AB(?:.{3}).{2}", got)
}
