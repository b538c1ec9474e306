package bisturi

import "github.com/bisturi/bisturi/internal/expr"

// exprProgram adapts a compiled internal/expr.Program to this package's
// Message-as-FieldLookup context, so field implementations don't each
// re-assemble an expr.Context by hand.
type exprProgram struct {
	p *expr.Program
}

func (ep *exprProgram) ctx(m, root *Message, raw []byte, offset, localOffset int) *expr.Context {
	if root == nil {
		root = m
	}
	return &expr.Context{Pkt: m, Raw: raw, Offset: offset, LocalOffset: localOffset, Root: root}
}

func (ep *exprProgram) evalInt(m, root *Message, raw []byte, offset, localOffset int) int64 {
	return ep.p.EvalInt(ep.ctx(m, root, raw, offset, localOffset))
}

func (ep *exprProgram) evalBool(m, root *Message, raw []byte, offset, localOffset int) bool {
	return ep.p.EvalBool(ep.ctx(m, root, raw, offset, localOffset))
}

func (ep *exprProgram) eval(m, root *Message, raw []byte, offset, localOffset int) any {
	return ep.p.Eval(ep.ctx(m, root, raw, offset, localOffset))
}
