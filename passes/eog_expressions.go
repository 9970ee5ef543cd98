package passes

import (
	"cpg-enrich/graph"
)

// handleBinary evaluates lhs then rhs then the operator. For short-circuit
// operators the rhs is only reached along the lhs's deciding branch; the
// other branch skips straight to the operator.
func (b *eogBuilder) handleBinary(n *graph.BinaryOperator) {
	lang := n.Language
	if lang == nil || !lang.HasShortCircuitOperators ||
		!(lang.IsConjunctive(n.OperatorCode) || lang.IsDisjunctive(n.OperatorCode)) {
		b.build(n.LHS())
		b.build(n.RHS())
		b.push(n)
		return
	}

	conj := lang.IsConjunctive(n.OperatorCode)
	enter, skip := graph.FalseBranch, graph.TrueBranch
	if conj {
		enter, skip = graph.TrueBranch, graph.FalseBranch
	}

	b.build(n.LHS())
	lhs := b.take()
	b.frontier = lhs
	b.branch = enter
	b.build(n.RHS())
	for _, e := range lhs {
		b.addExits(exit{node: e.node, branch: skip})
	}
	b.push(n)
}

// handleCall evaluates the callee, then the arguments, then the call.
func (b *eogBuilder) handleCall(n graph.Node, c *graph.CallExpression) {
	b.build(c.Callee())
	for _, a := range c.Arguments {
		b.build(a)
	}
	b.push(n)
}

// handleConditional: condition → conditional → (true) then, (false) else.
func (b *eogBuilder) handleConditional(n *graph.ConditionalExpression) {
	b.build(n.Condition)
	b.push(n)

	b.branch = graph.TrueBranch
	b.build(n.Then())
	thenExits := b.take()

	b.frontier = []exit{{node: n, branch: graph.FalseBranch}}
	b.build(n.Else())
	elseExits := b.take()

	b.addExits(thenExits...)
	b.addExits(elseExits...)
}
