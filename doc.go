// Package bisturi is a declarative binary-packet codec engine.
//
// A wire message is declared as an ordered list of field descriptors built
// with the constructors in this package (Int, Data, Bits, Ref, and the
// Sequence/Optional/Move decorations), then compiled once with NewSchema.
// The resulting *Schema derives two total functions over a byte buffer:
// Unpack (bytes -> *Message) and a Message's Pack (*Message -> bytes),
// plus a derived regular-expression form used for template matching
// (Schema.AsRegularExpression).
//
// Compilation is the only place reflection-like bookkeeping happens: the
// declared field list, its describe-yourself expansion (At/Aligned
// decorations prepend a Move, Embed splices a sub-schema's fields inline),
// Bits-run grouping, and per-field pack/unpack closures are all resolved
// once by NewSchema. The runtime driver (Schema.Unpack, Message.Pack) never
// inspects descriptor internals again; it only invokes the precompiled
// closures in declared order.
package bisturi
