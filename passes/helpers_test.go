package passes

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"cpg-enrich/config"
	"cpg-enrich/graph"
)

// Small AST constructors. Languages are set for the whole tree by unit.

func lit(v any, t graph.Type) *graph.Literal {
	l := &graph.Literal{Value: v}
	if t != nil {
		graph.SetType(l, t)
	}
	return l
}

func ref(name string) *graph.DeclaredReferenceExpression {
	r := &graph.DeclaredReferenceExpression{}
	r.Name = name
	return r
}

func typedRef(name string, t graph.Type) *graph.DeclaredReferenceExpression {
	r := ref(name)
	graph.SetType(r, t)
	return r
}

func bin(op string, lhs, rhs graph.Expression) *graph.BinaryOperator {
	b := &graph.BinaryOperator{OperatorCode: op}
	b.SetLHS(lhs)
	b.SetRHS(rhs)
	return b
}

func call(name string, args ...graph.Expression) *graph.CallExpression {
	c := &graph.CallExpression{}
	c.Name = name
	c.SetCallee(ref(name))
	for _, a := range args {
		c.AddArgument(a)
	}
	return c
}

func member(recv graph.Expression, name string) *graph.MemberExpression {
	m := &graph.MemberExpression{Operator: "."}
	m.Name = name
	m.SetReceiver(recv)
	return m
}

func memberCall(recv graph.Expression, name string, args ...graph.Expression) *graph.MemberCallExpression {
	mc := &graph.MemberCallExpression{}
	mc.Name = name
	mc.SetCallee(member(recv, name))
	for _, a := range args {
		mc.AddArgument(a)
	}
	return mc
}

func block(stmts ...graph.Statement) *graph.CompoundStatement {
	return &graph.CompoundStatement{Statements: stmts}
}

func local(name string, t graph.Type, init graph.Expression) (*graph.DeclarationStatement, *graph.VariableDeclaration) {
	v := &graph.VariableDeclaration{}
	v.Name = name
	if t != nil {
		graph.SetType(v, t)
	}
	if init != nil {
		v.SetInitializer(init)
	}
	return &graph.DeclarationStatement{Declarations: []graph.Declaration{v}}, v
}

func param(name string, t graph.Type) *graph.ParamVariableDeclaration {
	p := &graph.ParamVariableDeclaration{}
	p.Name = name
	if t != nil {
		graph.SetType(p, t)
	}
	return p
}

func function(name string, body graph.Statement, params ...*graph.ParamVariableDeclaration) *graph.FunctionDeclaration {
	f := &graph.FunctionDeclaration{Body: body}
	f.Name = name
	for _, p := range params {
		f.AddParameter(p)
	}
	return f
}

func method(rec *graph.RecordDeclaration, name string, body graph.Statement, params ...*graph.ParamVariableDeclaration) *graph.MethodDeclaration {
	m := &graph.MethodDeclaration{}
	m.Name = name
	m.Body = body
	for _, p := range params {
		m.AddParameter(p)
	}
	rec.AddMethod(m)
	return m
}

func record(name string, kind graph.RecordKind) *graph.RecordDeclaration {
	r := &graph.RecordDeclaration{Kind: kind}
	r.Name = name
	return r
}

func field(rec *graph.RecordDeclaration, name string, t graph.Type) *graph.FieldDeclaration {
	f := &graph.FieldDeclaration{}
	f.Name = name
	graph.SetType(f, t)
	rec.AddField(f)
	return f
}

// unit wraps decls in a translation unit and sets lang on every node.
func unit(lang *graph.Language, decls ...graph.Declaration) *graph.TranslationUnitDeclaration {
	tu := &graph.TranslationUnitDeclaration{Path: "test." + lang.Name}
	for _, d := range decls {
		tu.AddDeclaration(d)
	}
	for _, n := range graph.Flatten(tu) {
		n.Base().Language = lang
	}
	return tu
}

func newTestContext(cfg *config.Config) *Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewContext(cfg, logger, nil, nil)
}

// runPasses runs ps over units with auto reset off, so types stay
// inspectable afterwards.
func runPasses(t *testing.T, ctx *Context, units []*graph.TranslationUnitDeclaration, ps ...Pass) {
	t.Helper()
	ctx.Types.SetAutoReset(false)
	require.NoError(t, NewPipeline(ctx, ps...).Run(context.Background(), units))
}

func eogOnly(t *testing.T, tus ...*graph.TranslationUnitDeclaration) *Context {
	t.Helper()
	ctx := newTestContext(nil)
	runPasses(t, ctx, tus, &EvaluationOrderGraphPass{})
	return ctx
}

func resolveAll(t *testing.T, cfg *config.Config, tus ...*graph.TranslationUnitDeclaration) *Context {
	t.Helper()
	ctx := newTestContext(cfg)
	runPasses(t, ctx, tus, &ScopePass{}, &TypeResolver{}, &SymbolResolver{}, &CallResolver{})
	return ctx
}

// edgeBetween returns the first EOG edge from → to, nil if there is none.
func edgeBetween(from, to graph.Node) *graph.EOGEdge {
	for _, e := range from.Base().NextEOG() {
		if e.End == to {
			return e
		}
	}
	return nil
}

// chain follows single successors from n until a node has zero or several.
func chain(n graph.Node) []graph.Node {
	out := []graph.Node{n}
	seen := map[graph.Node]bool{n: true}
	for {
		next := graph.NextEOGNodes(n)
		if len(next) != 1 || seen[next[0]] {
			return out
		}
		n = next[0]
		seen[n] = true
		out = append(out, n)
	}
}

func calleeOf(c *graph.CallExpression) graph.Node { return c.Callee() }

func declsNamed[T graph.Node](tu *graph.TranslationUnitDeclaration, name string) []T {
	var out []T
	for _, d := range tu.Declarations {
		if x, ok := d.(T); ok && d.Base().Name == name {
			out = append(out, x)
		}
	}
	return out
}
