package passes

import (
	"fmt"
	"slices"

	"cpg-enrich/graph"
	"cpg-enrich/scope"
)

// EvaluationOrderGraphPass links every node to the nodes evaluated right
// after it. Expressions are evaluated operands first; statements follow
// their language's execution order. Branching nodes tag their outgoing
// edges with the branch taken.
type EvaluationOrderGraphPass struct{}

func (*EvaluationOrderGraphPass) Name() string { return "eog" }

func (p *EvaluationOrderGraphPass) Run(ctx *Context) error {
	ctx.Progress.Log("Building evaluation order graph...")
	b := newEOGBuilder(ctx, p.Name())
	ctx.eachUnit(b.handleUnit)
	ctx.Telemetry.EOGEdges.Add(float64(b.edges))
	ctx.Progress.Log("Created %d EOG edges", b.edges)
	return nil
}

// exit is one entry of the builder's frontier. An entry without its own
// branch takes the builder's current branch when it is connected.
type exit struct {
	node   graph.Node
	branch graph.BranchProperty
}

type eogBuilder struct {
	ctx  *Context
	pass string

	frontier []exit
	branch   graph.BranchProperty
	// pushed lists the nodes of the current root in push order.
	pushed []graph.Node

	pendingLabels []*graph.LabelStatement
	labelEntry    map[*graph.LabelStatement]graph.Node
	pendingGotos  map[*graph.LabelStatement][]graph.Node
	labels        map[string]*graph.LabelStatement
	catches       []*graph.CatchClause

	depth    int
	maxDepth int
	edges    int
}

func newEOGBuilder(ctx *Context, pass string) *eogBuilder {
	return &eogBuilder{
		ctx:          ctx,
		pass:         pass,
		labelEntry:   make(map[*graph.LabelStatement]graph.Node),
		pendingGotos: make(map[*graph.LabelStatement][]graph.Node),
		maxDepth:     ctx.Config.EOG.MaxDepth,
	}
}

// builderState is the per-root part of the builder, saved around nested
// roots such as lambdas and local records.
type builderState struct {
	frontier      []exit
	branch        graph.BranchProperty
	pushed        []graph.Node
	pendingLabels []*graph.LabelStatement
	labels        map[string]*graph.LabelStatement
	catches       []*graph.CatchClause
}

func (b *eogBuilder) save() builderState {
	s := builderState{b.frontier, b.branch, b.pushed, b.pendingLabels, b.labels, b.catches}
	b.frontier, b.branch, b.pushed, b.pendingLabels, b.catches = nil, graph.NoBranch, nil, nil, nil
	return s
}

func (b *eogBuilder) restore(s builderState) {
	b.frontier, b.branch, b.pushed, b.pendingLabels, b.labels, b.catches =
		s.frontier, s.branch, s.pushed, s.pendingLabels, s.labels, s.catches
}

// push makes n the next evaluated node: every frontier entry gets an edge
// to n and n becomes the only frontier entry.
func (b *eogBuilder) push(n graph.Node) {
	for _, l := range b.pendingLabels {
		b.labelEntry[l] = n
		for _, g := range b.pendingGotos[l] {
			b.edge(g, n, graph.NoBranch)
		}
		delete(b.pendingGotos, l)
	}
	b.pendingLabels = nil
	b.connect(n)
	b.frontier = []exit{{node: n}}
	b.branch = graph.NoBranch
	b.pushed = append(b.pushed, n)
}

// connect adds edges from the frontier to n without changing the frontier.
func (b *eogBuilder) connect(n graph.Node) {
	for _, e := range b.frontier {
		br := e.branch
		if br == graph.NoBranch {
			br = b.branch
		}
		b.edge(e.node, n, br)
	}
}

func (b *eogBuilder) edge(from, to graph.Node, br graph.BranchProperty) {
	for _, e := range from.Base().NextEOG() {
		if e.End == to && e.Branch == br {
			return
		}
	}
	graph.AddEOGEdge(from, to, br, contradicts(from, br))
	b.edges++
}

// take empties the frontier and returns it with every entry's branch made
// explicit.
func (b *eogBuilder) take() []exit {
	out := make([]exit, 0, len(b.frontier))
	for _, e := range b.frontier {
		if e.branch == graph.NoBranch {
			e.branch = b.branch
		}
		out = append(out, e)
	}
	b.frontier = nil
	b.branch = graph.NoBranch
	return out
}

func (b *eogBuilder) addExits(exits ...exit) {
	for _, e := range exits {
		if !slices.Contains(b.frontier, e) {
			b.frontier = append(b.frontier, e)
		}
	}
}

func (b *eogBuilder) addNodes(nodes ...graph.Node) {
	for _, n := range nodes {
		b.addExits(exit{node: n})
	}
}

func (b *eogBuilder) mark() int { return len(b.pushed) }

// firstSince returns the first node pushed after mark m, nil if none.
func (b *eogBuilder) firstSince(m int) graph.Node {
	if len(b.pushed) > m {
		return b.pushed[m]
	}
	return nil
}

// constantCondition returns the value of n's condition when it is a boolean
// literal.
func constantCondition(n graph.Node) (value, ok bool) {
	var cond graph.Expression
	switch n := n.(type) {
	case *graph.IfStatement:
		cond = n.Condition
	case *graph.WhileStatement:
		cond = n.Condition
	case *graph.DoStatement:
		cond = n.Condition
	case *graph.ForStatement:
		cond = n.Condition
	case *graph.ConditionalExpression:
		cond = n.Condition
	}
	lit, isLit := cond.(*graph.Literal)
	if !isLit || lit == nil {
		return false, false
	}
	value, ok = lit.Value.(bool)
	return value, ok
}

// contradicts reports whether leaving from along br can never happen.
func contradicts(from graph.Node, br graph.BranchProperty) bool {
	if br == graph.NoBranch {
		return false
	}
	v, ok := constantCondition(from)
	return ok && v != (br == graph.TrueBranch)
}

// hasFalseExit reports whether a loop with condition cond can terminate
// through its condition.
func hasFalseExit(cond graph.Expression) bool {
	if graph.IsNil(cond) {
		return false
	}
	if lit, ok := cond.(*graph.Literal); ok {
		if v, ok := lit.Value.(bool); ok && v {
			return false
		}
	}
	return true
}

// isPruneRoot reports whether evaluation may start at n: the EOG roots and
// parameters with default values, which start their default chains.
func isPruneRoot(n graph.Node) bool {
	if graph.IsEOGRoot(n) {
		return true
	}
	p, ok := n.(*graph.ParamVariableDeclaration)
	return ok && !graph.IsNil(p.Default)
}

// reachesRoot reports whether n can be reached from a root, walking
// predecessor edges.
func reachesRoot(n graph.Node) bool {
	seen := map[graph.Node]struct{}{n: {}}
	queue := []graph.Node{n}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		if isPruneRoot(x) {
			return true
		}
		for _, prev := range graph.PrevEOGNodes(x) {
			if _, ok := seen[prev]; !ok {
				seen[prev] = struct{}{}
				queue = append(queue, prev)
			}
		}
	}
	return false
}

// build dispatches on the kind of n. Nil nodes are ignored.
func (b *eogBuilder) build(n graph.Node) {
	if graph.IsNil(n) {
		return
	}
	b.depth++
	defer func() { b.depth-- }()
	if b.maxDepth > 0 && b.depth > b.maxDepth {
		b.ctx.structural(b.pass, n, fmt.Errorf("nesting deeper than %d", b.maxDepth))
		return
	}

	switch n := n.(type) {
	case *graph.TranslationUnitDeclaration:
		b.handleUnit(n)
	case *graph.NamespaceDeclaration:
		b.handleNamespace(n)
	case *graph.RecordDeclaration:
		b.handleRecord(n)
	case *graph.FunctionDeclaration:
		b.handleFunction(n)
	case *graph.MethodDeclaration:
		b.handleFunction(n)
	case *graph.ConstructorDeclaration:
		b.handleFunction(n)
	case *graph.FieldDeclaration:
		b.build(n.Initializer())
		b.push(n)
	case *graph.VariableDeclaration:
		b.build(n.Initializer())
		b.push(n)
	case *graph.ParamVariableDeclaration:
		b.push(n)
	case *graph.TypeParamDeclaration:

	case *graph.CompoundStatement:
		b.handleCompound(n)
	case *graph.DeclarationStatement:
		for _, d := range n.Declarations {
			b.build(d)
		}
		b.push(n)
	case *graph.ReturnStatement:
		b.build(n.Value)
		b.push(n)
		b.frontier = nil
	case *graph.IfStatement:
		b.handleIf(n)
	case *graph.WhileStatement:
		b.handleWhile(n)
	case *graph.DoStatement:
		b.handleDo(n)
	case *graph.ForStatement:
		b.handleFor(n)
	case *graph.ForEachStatement:
		b.handleForEach(n)
	case *graph.SwitchStatement:
		b.handleSwitch(n)
	case *graph.CaseStatement:
		b.build(n.CaseExpression)
		b.push(n)
	case *graph.DefaultStatement:
		b.push(n)
	case *graph.BreakStatement:
		b.push(n)
		if err := b.ctx.Scopes.AddBreak(n); err != nil {
			b.ctx.structural(b.pass, n, err)
		}
		b.frontier = nil
	case *graph.ContinueStatement:
		b.push(n)
		if err := b.ctx.Scopes.AddContinue(n); err != nil {
			b.ctx.structural(b.pass, n, err)
		}
		b.frontier = nil
	case *graph.LabelStatement:
		b.pendingLabels = append(b.pendingLabels, n)
		b.build(n.SubStatement)
	case *graph.GotoStatement:
		b.handleGoto(n)
	case *graph.TryStatement:
		b.handleTry(n)
	case *graph.CatchClause:
		b.handleCatch(n)
	case *graph.EmptyStatement:
		b.push(n)
	case *graph.SynchronizedStatement:
		b.build(n.Expression)
		b.push(n)
		b.build(n.Block)
	case *graph.AssertStatement:
		b.build(n.Condition)
		b.build(n.Message)
		b.push(n)

	case *graph.Literal, *graph.DeclaredReferenceExpression, *graph.TypeExpression:
		b.push(n)
	case *graph.MemberExpression:
		b.build(n.Receiver())
		b.push(n)
	case *graph.BinaryOperator:
		b.handleBinary(n)
	case *graph.UnaryOperator:
		b.build(n.Input())
		b.push(n)
	case *graph.ThrowExpression:
		b.handleThrow(n)
	case *graph.CallExpression:
		b.handleCall(n, n)
	case *graph.MemberCallExpression:
		b.handleCall(n, &n.CallExpression)
	case *graph.ConstructExpression:
		for _, a := range n.Arguments {
			b.build(a)
		}
		b.push(n)
	case *graph.NewExpression:
		b.build(n.Initializer())
		b.push(n)
	case *graph.ConditionalExpression:
		b.handleConditional(n)
	case *graph.ArraySubscriptionExpression:
		b.build(n.ArrayExpression())
		b.build(n.SubscriptExpression)
		b.push(n)
	case *graph.ArrayCreationExpression:
		for _, d := range n.Dimensions {
			b.build(d)
		}
		b.build(n.Initializer)
		b.push(n)
	case *graph.CastExpression:
		b.build(n.Expression)
		b.push(n)
	case *graph.InitializerListExpression:
		for _, e := range n.Initializers {
			b.build(e)
		}
		b.push(n)
	case *graph.ExpressionList:
		for _, e := range n.Expressions {
			b.build(e)
		}
		b.push(n)
	case *graph.DeleteExpression:
		b.build(n.Operand)
		b.push(n)
	case *graph.LambdaExpression:
		b.push(n)
		if n.Function != nil {
			b.handleFunction(n.Function)
		}

	default:
		b.ctx.Logger.Info("no EOG handler", "kind", graph.KindOf(n), "node", graph.Describe(n))
		b.ctx.Telemetry.Unsupported.WithLabelValues(graph.KindOf(n)).Inc()
	}
}

// handleUnit links the unit to its global variables and top-level
// statements; functions, records and namespaces start their own chains.
func (b *eogBuilder) handleUnit(tu *graph.TranslationUnitDeclaration) {
	saved := b.save()
	defer b.restore(saved)
	b.handleHolder(tu, tu.Declarations, tu.Statements)
}

func (b *eogBuilder) handleNamespace(ns *graph.NamespaceDeclaration) {
	saved := b.save()
	defer b.restore(saved)
	if _, err := b.ctx.Scopes.WithScope(ns, func(*scope.Scope) {
		b.handleHolder(ns, ns.Declarations, ns.Statements)
	}); err != nil {
		b.ctx.structural(b.pass, ns, err)
	}
}

func (b *eogBuilder) handleHolder(n graph.Node, decls []graph.Declaration, stmts []graph.Statement) {
	b.push(n)
	var roots []graph.Declaration
	for _, d := range decls {
		switch d.(type) {
		case *graph.VariableDeclaration, *graph.FieldDeclaration:
			b.build(d)
		default:
			roots = append(roots, d)
		}
	}
	for _, s := range stmts {
		b.build(s)
	}
	b.frontier = nil
	for _, d := range roots {
		b.build(d)
	}
}

// handleRecord chains the record through its field initializers, fields
// and static blocks. Constructors, methods and nested records are roots of
// their own.
func (b *eogBuilder) handleRecord(r *graph.RecordDeclaration) {
	saved := b.save()
	defer b.restore(saved)
	if _, err := b.ctx.Scopes.WithScope(r, func(*scope.Scope) {
		b.push(r)
		for _, f := range r.Fields {
			b.build(f)
		}
		for _, s := range r.StaticBlocks {
			b.build(s)
		}
		for _, s := range r.Statements {
			b.build(s)
		}
		b.frontier = nil
		for _, c := range r.Constructors {
			b.build(c)
		}
		for _, m := range r.Methods {
			b.build(m)
		}
		for _, nested := range r.Records {
			b.build(nested)
		}
	}); err != nil {
		b.ctx.structural(b.pass, r, err)
	}
}

// handleFunction chains fn → body. Throws no handler claimed flow to the
// body's exit node. Each parameter with a default value starts a chain
// parameter → default → fn.
func (b *eogBuilder) handleFunction(fn graph.FunctionLike) {
	saved := b.save()
	defer b.restore(saved)

	f := fn.Func()
	b.labels = make(map[string]*graph.LabelStatement)
	if !graph.IsNil(f.Body) {
		for _, l := range graph.AllOf[*graph.LabelStatement](f.Body) {
			b.labels[l.Label] = l
		}
	}

	if _, err := b.ctx.Scopes.WithScope(fn, func(fs *scope.Scope) {
		b.push(fn)
		b.build(f.Body)
		if graph.IsNil(f.Body) {
			return
		}
		for _, x := range fs.CatchesOrRelays().AllExits() {
			b.edge(x, f.Body, graph.NoBranch)
		}
		fs.CatchesOrRelays().Clear()
	}); err != nil {
		b.ctx.structural(b.pass, fn, err)
	}

	for _, p := range f.Parameters {
		if graph.IsNil(p.Default) {
			continue
		}
		b.frontier, b.branch = nil, graph.NoBranch
		b.push(p)
		b.build(p.Default)
		b.connect(fn)
	}
}
