package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bisturi/bisturi/internal/config"
)

func TestParseEndianness(t *testing.T) {
	require.Equal(t, config.Little, config.ParseEndianness("little"))
	require.Equal(t, config.Network, config.ParseEndianness("network"))
	require.Equal(t, config.Native, config.ParseEndianness("native"))
	require.Equal(t, config.Native, config.ParseEndianness("local"))
	require.Equal(t, config.Big, config.ParseEndianness("big"))
	require.Equal(t, config.Big, config.ParseEndianness(""))
	require.Equal(t, config.Big, config.ParseEndianness("nonsense"))
}

func TestFromYAMLDecodesAllFields(t *testing.T) {
	doc := []byte(`
endianness: little
align: 4
search_buffer_length: 64
generate_for_pack: true
generate_for_unpack: false
additional_slots: [checksum, length]
`)
	r, err := config.FromYAML(doc)
	require.NoError(t, err)
	require.Equal(t, "little", r.Endianness)
	require.Equal(t, 4, r.Align)
	require.Equal(t, 64, r.SearchBufferLength)
	require.True(t, r.GenerateForPack)
	require.False(t, r.GenerateForUnpack)
	require.Equal(t, []string{"checksum", "length"}, r.AdditionalSlots)
}

func TestFromYAMLRejectsMalformedDocument(t *testing.T) {
	_, err := config.FromYAML([]byte("align: [this is not an int"))
	require.Error(t, err)
}

func TestFromYAMLZeroValueOnEmptyDocument(t *testing.T) {
	r, err := config.FromYAML(nil)
	require.NoError(t, err)
	require.Equal(t, config.Raw{}, r)
}
