package frontend

import (
	"cpg-enrich/graph"
)

// Origin is the source text and range a node is built from.
type Origin struct {
	Code string
	Loc  *graph.Location
}

// Builder creates the graph nodes of one source file. Every node carries the
// builder's language, so operators see the right coercion rules as soon as
// their operands are attached.
type Builder struct {
	Lang  *graph.Language
	Types *graph.TypeManager
	File  string
}

// NewBuilder returns a builder for file. A nil manager gets a fresh one.
func NewBuilder(lang *graph.Language, tm *graph.TypeManager, file string) *Builder {
	if tm == nil {
		tm = graph.NewTypeManager()
	}
	return &Builder{Lang: lang, Types: tm, File: file}
}

// Loc returns a location in the builder's file. Lines and columns are 1-based.
func (b *Builder) Loc(startLine, startCol, endLine, endCol int) *graph.Location {
	return &graph.Location{File: b.File, StartLine: startLine, StartCol: startCol, EndLine: endLine, EndCol: endCol}
}

// Place stamps n with the builder's language and with o.
func Place[T graph.Node](b *Builder, n T, o Origin) T {
	base := n.Base()
	base.Language = b.Lang
	base.Code = o.Code
	base.Location = o.Loc
	return n
}

// Implicit places n and marks it as having no source counterpart of its own.
func Implicit[T graph.Node](b *Builder, n T, o Origin) T {
	Place(b, n, o).Base().Implicit = true
	return n
}

// Type parses a type as written in source.
func (b *Builder) Type(s string) graph.Type {
	return b.Types.Parse(s, b.Lang)
}

// Unit creates the translation unit of the builder's file.
func (b *Builder) Unit() *graph.TranslationUnitDeclaration {
	tu := Place(b, &graph.TranslationUnitDeclaration{Path: b.File}, Origin{})
	tu.Name = b.File
	return tu
}

func (b *Builder) Literal(o Origin, v any, typeName string) *graph.Literal {
	l := Place(b, &graph.Literal{Value: v}, o)
	if typeName != "" {
		graph.SetType(l, b.Type(typeName))
	}
	return l
}

func (b *Builder) Ref(o Origin, name string) *graph.DeclaredReferenceExpression {
	r := Place(b, &graph.DeclaredReferenceExpression{}, o)
	r.Name = name
	return r
}

// TypedRef is a reference whose type is known without resolution, e.g. this.
func (b *Builder) TypedRef(o Origin, name string, t graph.Type) *graph.DeclaredReferenceExpression {
	r := b.Ref(o, name)
	if t != nil {
		graph.SetType(r, t)
	}
	return r
}

func (b *Builder) Member(o Origin, recv graph.Expression, name, op string) *graph.MemberExpression {
	m := Place(b, &graph.MemberExpression{Operator: op}, o)
	m.Name = name
	m.SetReceiver(recv)
	return m
}

func (b *Builder) Binary(o Origin, op string, lhs, rhs graph.Expression) *graph.BinaryOperator {
	bin := Place(b, &graph.BinaryOperator{OperatorCode: op}, o)
	bin.Name = op
	if !graph.IsNil(lhs) {
		bin.SetLHS(lhs)
	}
	if !graph.IsNil(rhs) {
		bin.SetRHS(rhs)
	}
	return bin
}

func (b *Builder) Unary(o Origin, op string, input graph.Expression, postfix bool) *graph.UnaryOperator {
	u := Place(b, &graph.UnaryOperator{OperatorCode: op, Postfix: postfix, Prefix: !postfix}, o)
	u.Name = op
	if !graph.IsNil(input) {
		u.SetInput(input)
	}
	return u
}

// Call creates a free call. A nil callee becomes a reference to name.
func (b *Builder) Call(o Origin, name string, callee graph.Expression, args ...graph.Expression) *graph.CallExpression {
	c := Place(b, &graph.CallExpression{}, o)
	c.Name = name
	if graph.IsNil(callee) {
		callee = b.Ref(o, name)
	}
	c.SetCallee(callee)
	for _, a := range args {
		if !graph.IsNil(a) {
			c.AddArgument(a)
		}
	}
	return c
}

// MemberCall creates recv.name(args). op is the member access operator.
func (b *Builder) MemberCall(o Origin, recv graph.Expression, name, op string, args ...graph.Expression) *graph.MemberCallExpression {
	mc := Place(b, &graph.MemberCallExpression{}, o)
	mc.Name = name
	mc.SetCallee(b.Member(o, recv, name, op))
	for _, a := range args {
		if !graph.IsNil(a) {
			mc.AddArgument(a)
		}
	}
	return mc
}

// Construct creates an instantiation of t.
func (b *Builder) Construct(o Origin, t graph.Type, args ...graph.Expression) *graph.ConstructExpression {
	c := Place(b, &graph.ConstructExpression{}, o)
	c.Name = t.Root().Name()
	for _, a := range args {
		if !graph.IsNil(a) {
			c.AddArgument(a)
		}
	}
	graph.SetType(c, t)
	return c
}

func (b *Builder) New(o Origin, init graph.Expression) *graph.NewExpression {
	n := Place(b, &graph.NewExpression{}, o)
	n.SetInitializer(init)
	return n
}

func (b *Builder) Conditional(o Origin, cond, then, els graph.Expression) *graph.ConditionalExpression {
	c := Place(b, &graph.ConditionalExpression{Condition: cond}, o)
	c.SetBranches(then, els)
	return c
}

func (b *Builder) Subscript(o Origin, arr, index graph.Expression) *graph.ArraySubscriptionExpression {
	s := Place(b, &graph.ArraySubscriptionExpression{SubscriptExpression: index}, o)
	s.SetArrayExpression(arr)
	return s
}

func (b *Builder) Cast(o Origin, e graph.Expression, t graph.Type) *graph.CastExpression {
	c := Place(b, &graph.CastExpression{Expression: e}, o)
	c.SetCastType(t)
	return c
}

func (b *Builder) Throw(o Origin, e graph.Expression) *graph.ThrowExpression {
	return Place(b, &graph.ThrowExpression{Exception: e}, o)
}

// Var creates a local variable. t and init may be nil.
func (b *Builder) Var(o Origin, name string, t graph.Type, init graph.Expression) *graph.VariableDeclaration {
	v := Place(b, &graph.VariableDeclaration{}, o)
	v.Name = name
	if t != nil {
		graph.SetType(v, t)
	}
	if !graph.IsNil(init) {
		v.SetInitializer(init)
	}
	return v
}

func (b *Builder) Declare(o Origin, decls ...graph.Declaration) *graph.DeclarationStatement {
	return Place(b, &graph.DeclarationStatement{Declarations: decls}, o)
}

func (b *Builder) Param(o Origin, name string, t graph.Type, variadic bool) *graph.ParamVariableDeclaration {
	p := Place(b, &graph.ParamVariableDeclaration{Variadic: variadic}, o)
	p.Name = name
	if t != nil {
		graph.SetType(p, t)
	}
	return p
}

// Function creates a free function returning ret. A nil ret leaves the
// return type unset.
func (b *Builder) Function(o Origin, name string, ret graph.Type) *graph.FunctionDeclaration {
	f := Place(b, &graph.FunctionDeclaration{}, o)
	f.Name = name
	setReturn(f, &f.ReturnTypes, ret)
	return f
}

// Method creates a method and attaches it to rec when rec is not nil.
func (b *Builder) Method(o Origin, name string, ret graph.Type, rec *graph.RecordDeclaration) *graph.MethodDeclaration {
	m := Place(b, &graph.MethodDeclaration{}, o)
	m.Name = name
	setReturn(m, &m.ReturnTypes, ret)
	if rec != nil {
		rec.AddMethod(m)
	}
	return m
}

// Constructor creates a constructor of rec, typed as rec.
func (b *Builder) Constructor(o Origin, rec *graph.RecordDeclaration) *graph.ConstructorDeclaration {
	c := Place(b, &graph.ConstructorDeclaration{}, o)
	c.Name = rec.Name
	graph.SetType(c, rec.ToType())
	rec.AddConstructor(c)
	return c
}

func setReturn(fn graph.HasType, returns *[]graph.Type, ret graph.Type) {
	if ret == nil {
		return
	}
	*returns = append(*returns, ret)
	graph.SetType(fn, ret)
}

func (b *Builder) Record(o Origin, name string, kind graph.RecordKind) *graph.RecordDeclaration {
	r := Place(b, &graph.RecordDeclaration{Kind: kind}, o)
	r.Name = name
	return r
}

// Field creates a field of rec. init may be nil.
func (b *Builder) Field(o Origin, rec *graph.RecordDeclaration, name string, t graph.Type, init graph.Expression) *graph.FieldDeclaration {
	f := Place(b, &graph.FieldDeclaration{}, o)
	f.Name = name
	if t != nil {
		graph.SetType(f, t)
	}
	if !graph.IsNil(init) {
		f.SetInitializer(init)
	}
	if rec != nil {
		rec.AddField(f)
	}
	return f
}

func (b *Builder) Block(o Origin, stmts ...graph.Statement) *graph.CompoundStatement {
	return Place(b, &graph.CompoundStatement{Statements: stmts}, o)
}
