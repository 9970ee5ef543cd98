package passes

import (
	"fmt"

	"cpg-enrich/graph"
	"cpg-enrich/scope"
)

// withScope runs fn inside the scope of n. Breaks left on a scope that is
// neither loop nor switch target a labelled block; they join the frontier.
func (b *eogBuilder) withScope(n graph.Node, fn func(s *scope.Scope)) {
	s, err := b.ctx.Scopes.WithScope(n, fn)
	if err != nil {
		b.ctx.structural(b.pass, n, err)
	}
	if s != nil && len(s.Breaks()) > 0 {
		b.addNodes(s.Breaks()...)
		s.ClearEscapes()
	}
}

func (b *eogBuilder) handleCompound(c *graph.CompoundStatement) {
	b.withScope(c, func(*scope.Scope) {
		for _, s := range c.Statements {
			b.build(s)
		}
	})
	b.push(c)
}

// handleIf: condition → if → (true) then, (false) else. Without an else
// the false edge leaves the statement.
func (b *eogBuilder) handleIf(n *graph.IfStatement) {
	b.withScope(n, func(*scope.Scope) {
		b.build(n.Initializer)
		b.build(n.ConditionDeclaration)
		b.build(n.Condition)
		b.push(n)

		b.branch = graph.TrueBranch
		b.build(n.Then)
		thenExits := b.take()

		b.frontier = []exit{{node: n, branch: graph.FalseBranch}}
		b.build(n.Else)
		elseExits := b.take()

		b.addExits(thenExits...)
		b.addExits(elseExits...)
	})
}

// closeLoop wires the end of a loop body back to start, the continues of s
// to cont and sets the frontier to the loop's exits.
func (b *eogBuilder) closeLoop(s *scope.Scope, loop graph.Node, cond graph.Expression, start, cont graph.Node) {
	b.connect(start)
	b.frontier, b.branch = nil, graph.NoBranch
	for _, c := range s.Continues() {
		b.edge(c, cont, graph.NoBranch)
	}
	if hasFalseExit(cond) {
		b.addExits(exit{node: loop, branch: graph.FalseBranch})
	}
	b.addNodes(s.Breaks()...)
	s.ClearEscapes()
}

func (b *eogBuilder) handleWhile(n *graph.WhileStatement) {
	b.withScope(n, func(s *scope.Scope) {
		m := b.mark()
		b.build(n.ConditionDeclaration)
		b.build(n.Condition)
		b.push(n)
		start := b.firstSince(m)
		s.AddCondition(start)

		b.branch = graph.TrueBranch
		b.build(n.Body)
		b.closeLoop(s, n, n.Condition, start, start)
	})
}

// handleDo: body → condition → do; the true edge returns to the body,
// continues go to the condition.
func (b *eogBuilder) handleDo(n *graph.DoStatement) {
	b.withScope(n, func(s *scope.Scope) {
		m := b.mark()
		b.build(n.Body)
		cm := b.mark()
		b.build(n.Condition)
		b.push(n)
		start, condStart := b.firstSince(m), b.firstSince(cm)
		s.AddCondition(start)

		b.branch = graph.TrueBranch
		b.closeLoop(s, n, n.Condition, start, condStart)
	})
}

// handleFor: initializer → condition → for → (true) body → iteration →
// condition. Continues go to the iteration, or the condition without one.
func (b *eogBuilder) handleFor(n *graph.ForStatement) {
	b.withScope(n, func(s *scope.Scope) {
		b.build(n.Initializer)
		cm := b.mark()
		b.build(n.ConditionDeclaration)
		b.build(n.Condition)
		b.push(n)
		condStart := b.firstSince(cm)
		s.AddCondition(condStart)

		b.branch = graph.TrueBranch
		b.build(n.Body)
		im := b.mark()
		b.build(n.Iteration)
		cont := b.firstSince(im)
		if cont == nil {
			cont = condStart
		}
		b.closeLoop(s, n, n.Condition, condStart, cont)
	})
}

// handleForEach: iterable → variable → foreach → (true) body → variable;
// the false edge leaves the loop.
func (b *eogBuilder) handleForEach(n *graph.ForEachStatement) {
	b.withScope(n, func(s *scope.Scope) {
		b.build(n.Iterable)
		vm := b.mark()
		b.build(n.Variable)
		b.push(n)
		start := b.firstSince(vm)
		s.AddCondition(start)

		b.branch = graph.TrueBranch
		b.build(n.Body)
		b.connect(start)
		b.frontier, b.branch = nil, graph.NoBranch
		for _, c := range s.Continues() {
			b.edge(c, start, graph.NoBranch)
		}
		b.addExits(exit{node: n, branch: graph.FalseBranch})
		b.addNodes(s.Breaks()...)
		s.ClearEscapes()
	})
}

// handleSwitch: selector → switch → every case and default. Without a
// default the switch also flows past the statement.
func (b *eogBuilder) handleSwitch(n *graph.SwitchStatement) {
	b.withScope(n, func(s *scope.Scope) {
		b.build(n.Initializer)
		b.build(n.SelectorDeclaration)
		b.build(n.Selector)
		b.push(n)
		entry := b.take()

		hasDefault := false
		if n.Body != nil {
			b.withScope(n.Body, func(*scope.Scope) {
				for _, st := range n.Body.Statements {
					switch st.(type) {
					case *graph.DefaultStatement:
						hasDefault = true
						b.addExits(entry...)
					case *graph.CaseStatement:
						b.addExits(entry...)
					}
					b.build(st)
				}
			})
			b.push(n.Body)
		}
		if !hasDefault {
			b.addExits(entry...)
		}
		b.addNodes(s.Breaks()...)
		s.ClearEscapes()
	})
}

// handleGoto links the goto to the first node evaluated after its label.
// Labels further down are linked once that node is pushed.
func (b *eogBuilder) handleGoto(g *graph.GotoStatement) {
	b.push(g)
	b.frontier = nil
	target := g.TargetLabel
	if target == nil {
		target = b.labels[g.LabelName]
		g.TargetLabel = target
	}
	if target == nil {
		b.ctx.structural(b.pass, g, fmt.Errorf("%w: %q", scope.ErrUnknownLabel, g.LabelName))
		return
	}
	if entry, ok := b.labelEntry[target]; ok {
		b.edge(g, entry, graph.NoBranch)
		return
	}
	b.pendingGotos[target] = append(b.pendingGotos[target], g)
}

// handleTry: resources → try block; throws of the try block flow to the
// first catch clause accepting their type; try and catch exits together
// with every unclaimed throw flow into the finally block. Throws still
// unclaimed move on to the enclosing try or function.
func (b *eogBuilder) handleTry(n *graph.TryStatement) {
	b.withScope(n, func(ts *scope.Scope) {
		for _, r := range n.Resources {
			b.build(r)
		}
		b.build(n.TryBlock)
		exits := b.take()

		pending := &scope.Throws{}
		ts.CatchesOrRelays().MergeInto(pending)
		for _, cc := range n.CatchClauses {
			claimed := pending.Claim(b.catchMatcher(cc))
			for _, e := range claimed {
				b.addNodes(e.Exits...)
			}
			b.build(cc)
			exits = append(exits, b.take()...)
		}
		// Throws raised inside the catch clauses are not handled here.
		ts.CatchesOrRelays().MergeInto(pending)

		canComplete := false
		for _, e := range exits {
			if reachesRoot(e.node) {
				canComplete = true
				break
			}
		}

		b.addExits(exits...)
		if n.FinallyBlock != nil {
			b.addNodes(pending.AllExits()...)
			b.build(n.FinallyBlock)
			var finExits []graph.Node
			for _, e := range b.frontier {
				finExits = append(finExits, e.node)
			}
			for _, e := range pending.Entries() {
				e.Exits = finExits
			}
			// Throws raised inside the finally block.
			ts.CatchesOrRelays().MergeInto(pending)
		}

		if outer := b.ctx.Scopes.EnclosingHandler(ts); outer != nil {
			pending.MergeInto(outer.CatchesOrRelays())
		} else if pending.Len() > 0 {
			b.ctx.Logger.Debug("uncaught throws", "node", graph.Describe(n), "types", pending.Len())
		}

		if !canComplete {
			b.frontier = nil
		}
	})
	b.push(n)
}

// catchMatcher accepts the throw types cc handles. A clause without a
// parameter handles everything, including throws of unknown type.
func (b *eogBuilder) catchMatcher(cc *graph.CatchClause) func(graph.Type) bool {
	if cc.Parameter == nil {
		return func(graph.Type) bool { return true }
	}
	caught := graph.TypeOf(cc.Parameter)
	return func(t graph.Type) bool {
		return t != nil && b.ctx.Types.IsSupertypeOf(caught, t)
	}
}

func (b *eogBuilder) handleCatch(cc *graph.CatchClause) {
	b.withScope(cc, func(*scope.Scope) {
		b.push(cc)
		b.catches = append(b.catches, cc)
		b.build(cc.Parameter)
		b.build(cc.Body)
		b.catches = b.catches[:len(b.catches)-1]
	})
}

// handleThrow: exception → throw. The throw is registered under the
// exception's type; a bare rethrow uses the type of the enclosing catch
// clause. Nothing is evaluated after a throw.
func (b *eogBuilder) handleThrow(n *graph.ThrowExpression) {
	b.build(n.Exception)
	b.push(n)
	b.frontier = nil

	var typ graph.Type
	if !graph.IsNil(n.Exception) {
		if t := graph.TypeOf(n.Exception); !graph.IsUnknown(t) {
			typ = t
		}
	} else if len(b.catches) > 0 {
		if p := b.catches[len(b.catches)-1].Parameter; p != nil && !graph.IsUnknown(graph.TypeOf(p)) {
			typ = graph.TypeOf(p)
		}
	}
	if err := b.ctx.Scopes.AddThrow(typ, n); err != nil {
		b.ctx.structural(b.pass, n, err)
	}
}
