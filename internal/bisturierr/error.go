// Package bisturierr implements the structured error value shared by the
// compiler and the runtime driver: a phase tag, the innermost field/schema/
// offset where the failure was first observed, the original cause, and a
// stack of enclosing frames accumulated as the error crosses Ref
// boundaries on its way back to the caller.
package bisturierr

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Phase identifies which side of the codec an error was raised on.
type Phase int

const (
	// Compile errors are raised while building a Schema's plan.
	Compile Phase = iota
	Pack
	Unpack
)

func (p Phase) String() string {
	switch p {
	case Compile:
		return "compiling"
	case Pack:
		return "packing"
	case Unpack:
		return "unpacking"
	default:
		return "unknown"
	}
}

// Frame names one schema/field/offset triple on the error's path from the
// outermost schema down to where the error originated. SchemaID
// disambiguates two independently-compiled schemas that happen to share a
// declared Schema name, so Error can tell them apart in the printed stack.
type Frame struct {
	Offset   int
	Field    string
	Schema   string
	SchemaID uuid.UUID
}

// Error is the single structured error value this package returns. The
// first frame (index 0) is the innermost field where the failure was
// detected; later frames are added by each enclosing Ref as the error
// propagates outward.
type Error struct {
	Phase  Phase
	Frames []Frame
	Cause  error
}

// New constructs an Error rooted at the given field/schema/offset.
func New(phase Phase, field, schema string, schemaID uuid.UUID, offset int, cause error) *Error {
	return &Error{
		Phase:  phase,
		Frames: []Frame{{Offset: offset, Field: field, Schema: schema, SchemaID: schemaID}},
		Cause:  cause,
	}
}

// WithFrame returns e with one more enclosing frame appended, used when an
// error crosses a Ref boundary.
func (e *Error) WithFrame(offset int, field, schema string, schemaID uuid.UUID) *Error {
	e.Frames = append(e.Frames, Frame{Offset: offset, Field: field, Schema: schema, SchemaID: schemaID})
	return e
}

// Unwrap exposes the original cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Error renders the phase, innermost field/offset, the full nesting stack,
// and the original cause, per spec.md §7's user-visible failure format.
func (e *Error) Error() string {
	if len(e.Frames) == 0 {
		return fmt.Sprintf("bisturi: error while %s: %v", e.Phase, e.Cause)
	}

	ambiguous := e.ambiguousSchemaNames()

	inner := e.Frames[0]
	var stack strings.Builder
	for i := len(e.Frames) - 1; i >= 0; i-- {
		f := e.Frames[i]
		if ambiguous[f.Schema] {
			fmt.Fprintf(&stack, "    %#08x %s<%s>.%s\n", f.Offset, f.Schema, shortID(f.SchemaID), f.Field)
		} else {
			fmt.Fprintf(&stack, "    %#08x %s.%s\n", f.Offset, f.Schema, f.Field)
		}
	}

	return fmt.Sprintf(
		"bisturi: error while %s field %q of schema %q at offset %#x: %v\nschema stack:\n%sroot cause: %v",
		e.Phase, inner.Field, inner.Schema, inner.Offset, e.Cause, stack.String(), e.Cause,
	)
}

// ambiguousSchemaNames reports which Schema names appear more than once
// among e.Frames under distinct SchemaIDs, so Error only prints the
// disambiguating id where two compiled schemas actually share a name.
func (e *Error) ambiguousSchemaNames() map[string]bool {
	seen := make(map[string]uuid.UUID, len(e.Frames))
	ambiguous := make(map[string]bool)
	for _, f := range e.Frames {
		if id, ok := seen[f.Schema]; ok && id != f.SchemaID {
			ambiguous[f.Schema] = true
		}
		seen[f.Schema] = f.SchemaID
	}
	return ambiguous
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// CompileError builds a schema-compile-time Error (no offset in the wire
// sense — it is the descriptor's position in the field list).
func CompileError(field, schema string, schemaID uuid.UUID, position int, cause error) *Error {
	return New(Compile, field, schema, schemaID, position, cause)
}
