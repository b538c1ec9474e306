package bisturierr_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bisturi/bisturi/internal/bisturierr"
)

func TestNewBuildsInnermostFrame(t *testing.T) {
	cause := errors.New("short read")
	id := uuid.New()
	err := bisturierr.New(bisturierr.Unpack, "length", "Header", id, 4, cause)

	require.Equal(t, bisturierr.Unpack, err.Phase)
	require.Len(t, err.Frames, 1)
	require.Equal(t, bisturierr.Frame{Offset: 4, Field: "length", Schema: "Header", SchemaID: id}, err.Frames[0])
	require.ErrorIs(t, err, cause)
}

func TestWithFrameAppendsEnclosingFrame(t *testing.T) {
	err := bisturierr.New(bisturierr.Unpack, "flags", "Inner", uuid.New(), 2, errors.New("boom"))
	err = err.WithFrame(10, "body", "Outer", uuid.New())

	require.Len(t, err.Frames, 2)
	require.Equal(t, "flags", err.Frames[0].Field)
	require.Equal(t, "body", err.Frames[1].Field)
}

func TestErrorStringNamesInnermostFieldAndOffset(t *testing.T) {
	err := bisturierr.New(bisturierr.Pack, "checksum", "Frame", uuid.New(), 0x10, errors.New("overflow"))
	err = err.WithFrame(0x20, "payload", "Envelope", uuid.New())

	msg := err.Error()
	require.Contains(t, msg, `field "checksum"`)
	require.Contains(t, msg, `schema "Frame"`)
	require.Contains(t, msg, "0x10")
	require.Contains(t, msg, "Envelope.payload")
	require.Contains(t, msg, "overflow")
}

func TestErrorStringDisambiguatesSharedSchemaNames(t *testing.T) {
	outerID := uuid.New()
	innerID := uuid.New() // same declared name as the outer frame, different schema
	err := bisturierr.New(bisturierr.Unpack, "value", "Node", innerID, 2, errors.New("boom"))
	err = err.WithFrame(6, "next", "Node", outerID)

	msg := err.Error()
	require.Contains(t, msg, "Node<"+innerID.String()[:8]+">.value")
	require.Contains(t, msg, "Node<"+outerID.String()[:8]+">.next")
}

func TestErrorStringOmitsIDWhenSchemaNamesAreUnambiguous(t *testing.T) {
	err := bisturierr.New(bisturierr.Unpack, "value", "Node", uuid.New(), 2, errors.New("boom"))
	err = err.WithFrame(6, "payload", "Envelope", uuid.New())

	msg := err.Error()
	require.Contains(t, msg, "Node.value")
	require.Contains(t, msg, "Envelope.payload")
	require.NotContains(t, msg, "Node<")
}

func TestCompileErrorUsesPositionAsOffset(t *testing.T) {
	err := bisturierr.CompileError("count", "Packet", uuid.New(), 3, errors.New("bad width"))
	require.Equal(t, bisturierr.Compile, err.Phase)
	require.Equal(t, 3, err.Frames[0].Offset)
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "compiling", bisturierr.Compile.String())
	require.Equal(t, "packing", bisturierr.Pack.String())
	require.Equal(t, "unpacking", bisturierr.Unpack.String())
}
