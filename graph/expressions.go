package graph

import "slices"

// Literal is a constant value. Value holds the Go representation: bool,
// int64, float64, string, rune or nil.
type Literal struct {
	ExpressionBase
	Value any
}

// AccessKind tells whether a reference reads, writes or does both.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessReadWrite
)

// DeclaredReferenceExpression refers to a declaration by name.
type DeclaredReferenceExpression struct {
	ExpressionBase
	Access AccessKind

	refersTo Declaration
}

func (r *DeclaredReferenceExpression) RefersTo() Declaration { return r.refersTo }

// SetRefersTo binds the reference to d. The reference stops listening to the
// previous declaration and listens to d, and the DFG edge between declaration
// and reference is moved according to the access kind.
func (r *DeclaredReferenceExpression) SetRefersTo(d Declaration) {
	r.refersTo = rebind(r, r.Access, r.refersTo, d)
}

// SetAccess changes the access kind and rewires the DFG edges of the binding.
func (r *DeclaredReferenceExpression) SetAccess(a AccessKind) {
	d := r.refersTo
	r.refersTo = rebind(r, r.Access, d, nil)
	r.Access = a
	r.refersTo = rebind(r, a, nil, d)
}

func (r *DeclaredReferenceExpression) TypeChanged(w *Wave, src HasType, _ Type) {
	followSource(w, r, src)
}

func (r *DeclaredReferenceExpression) PossibleSubTypesChanged(w *Wave, src HasType, _ []Type) {
	followSubTypes(w, r, src)
}

// MemberExpression accesses a field or method through a receiver, e.g.
// a.b or p->b.
type MemberExpression struct {
	ExpressionBase
	Operator string
	Access   AccessKind

	receiver Expression
	refersTo Declaration
}

func (m *MemberExpression) Receiver() Expression  { return m.receiver }
func (m *MemberExpression) RefersTo() Declaration { return m.refersTo }

// SetReceiver replaces the receiver expression and moves the DFG edge
// receiver→member.
func (m *MemberExpression) SetReceiver(e Expression) {
	if !IsNil(m.receiver) {
		RemoveDFG(m.receiver, m)
	}
	m.receiver = e
	if !IsNil(e) {
		AddDFG(e, m)
	}
}

// SetRefersTo behaves like DeclaredReferenceExpression.SetRefersTo.
func (m *MemberExpression) SetRefersTo(d Declaration) {
	m.refersTo = rebind(m, m.Access, m.refersTo, d)
}

func (m *MemberExpression) TypeChanged(w *Wave, src HasType, _ Type) {
	followSource(w, m, src)
}

func (m *MemberExpression) PossibleSubTypesChanged(w *Wave, src HasType, _ []Type) {
	followSubTypes(w, m, src)
}

func rebind(self TypeListener, access AccessKind, old, d Declaration) Declaration {
	if !IsNil(old) {
		if v, ok := old.(ValueDeclaration); ok {
			UnregisterTypeListener(v, self)
		}
		RemoveDFG(old, self)
		RemoveDFG(self, old)
	}
	if IsNil(d) {
		return nil
	}
	if v, ok := d.(ValueDeclaration); ok {
		RegisterTypeListener(v, self)
	}
	if access != AccessWrite {
		AddDFG(d, self)
	}
	if access != AccessRead {
		AddDFG(self, d)
	}
	return d
}

// BinaryOperator is a binary expression including assignments.
type BinaryOperator struct {
	ExpressionBase
	OperatorCode string

	lhs Expression
	rhs Expression
}

func (b *BinaryOperator) LHS() Expression { return b.lhs }
func (b *BinaryOperator) RHS() Expression { return b.rhs }

// SetLHS replaces the left operand. Listener registrations and DFG edges of
// the whole operator are torn down and rebuilt for the new operand pair.
func (b *BinaryOperator) SetLHS(e Expression) {
	b.disconnect()
	b.lhs = e
	b.connect()
}

// SetRHS replaces the right operand, see SetLHS.
func (b *BinaryOperator) SetRHS(e Expression) {
	b.disconnect()
	b.rhs = e
	b.connect()
}

// IsAssignment reports whether the operator is a plain assignment.
func (b *BinaryOperator) IsAssignment() bool { return IsAssignmentOperator(b.OperatorCode) }

// IsCompoundAssignment reports whether the operator is e.g. +=.
func (b *BinaryOperator) IsCompoundAssignment() bool {
	return IsCompoundAssignmentOperator(b.OperatorCode)
}

func (b *BinaryOperator) connect() {
	lhs, rhs := b.lhs, b.rhs
	switch {
	case b.IsAssignment():
		if !IsNil(rhs) {
			RegisterTypeListener(rhs, b)
			AddDFG(rhs, b)
		}
		if l, ok := lhs.(TypeListener); ok && !IsNil(lhs) {
			RegisterTypeListener(b, l)
			AddDFG(b, lhs)
			setWriteAccess(lhs, AccessWrite)
		}
	case b.IsCompoundAssignment():
		if !IsNil(lhs) && !IsNil(rhs) {
			if l, ok := lhs.(TypeListener); ok {
				RegisterTypeListener(rhs, l)
			}
			if r, ok := rhs.(TypeListener); ok {
				RegisterTypeListener(lhs, r)
			}
		}
		for _, e := range []Expression{lhs, rhs} {
			if !IsNil(e) {
				RegisterTypeListener(e, b)
				AddDFG(e, b)
			}
		}
		if !IsNil(lhs) {
			AddDFG(b, lhs)
			setWriteAccess(lhs, AccessReadWrite)
		}
	default:
		for _, e := range []Expression{lhs, rhs} {
			if !IsNil(e) {
				RegisterTypeListener(e, b)
				AddDFG(e, b)
			}
		}
	}
	w := NewWave()
	b.update(w)
	w.Drain()
}

func (b *BinaryOperator) disconnect() {
	lhs, rhs := b.lhs, b.rhs
	for _, e := range []Expression{lhs, rhs} {
		if IsNil(e) {
			continue
		}
		UnregisterTypeListener(e, b)
		if l, ok := e.(TypeListener); ok {
			UnregisterTypeListener(b, l)
		}
		RemoveDFG(e, b)
		RemoveDFG(b, e)
	}
	if !IsNil(lhs) && !IsNil(rhs) {
		if l, ok := lhs.(TypeListener); ok {
			UnregisterTypeListener(rhs, l)
		}
		if r, ok := rhs.(TypeListener); ok {
			UnregisterTypeListener(lhs, r)
		}
	}
}

func setWriteAccess(e Expression, a AccessKind) {
	switch r := e.(type) {
	case *DeclaredReferenceExpression:
		if r.Access != a {
			r.SetAccess(a)
		}
	case *MemberExpression:
		if r.Access != a {
			d := r.refersTo
			r.refersTo = rebind(r, r.Access, d, nil)
			r.Access = a
			r.refersTo = rebind(r, a, nil, d)
		}
	}
}

func (b *BinaryOperator) TypeChanged(w *Wave, src HasType, _ Type) {
	b.update(w)
}

func (b *BinaryOperator) PossibleSubTypesChanged(w *Wave, src HasType, _ []Type) {
	if b.IsAssignment() && HasType(b.rhs) == src {
		followSubTypes(w, b, src)
	}
}

// update recomputes the operator's type from its operands.
func (b *BinaryOperator) update(w *Wave) {
	if IsNil(b.lhs) && IsNil(b.rhs) {
		return
	}
	switch {
	case b.IsAssignment():
		if !IsNil(b.rhs) && b.rhs.Type() != nil {
			followSource(w, b, b.rhs)
		}
		return
	case b.IsCompoundAssignment():
		if !IsNil(b.lhs) && b.lhs.Type() != nil {
			followSource(w, b, b.lhs)
		}
		return
	}

	lang := b.Language
	lt, rt := operandType(b.lhs), operandType(b.rhs)
	if lang != nil && lang.Coercion != nil {
		if t, ok := lang.Coercion.BinaryType(b.OperatorCode, lt, rt); ok {
			w.ReplaceType(b, t)
			return
		}
	}
	if IsBooleanOperator(b.OperatorCode) && lang != nil && lang.BooleanType != "" {
		w.SetType(b, NewObjectType(lang.BooleanType, lang))
		return
	}
	switch {
	case IsUnknown(lt) && IsUnknown(rt):
		return
	case IsUnknown(rt):
		w.SetType(b, lt)
	case IsUnknown(lt):
		w.SetType(b, rt)
	default:
		if common, ok := CommonType([]Type{lt, rt}, nil); ok {
			w.SetType(b, common)
		} else {
			w.SetType(b, lt)
		}
	}
}

func operandType(e Expression) Type {
	if IsNil(e) {
		return nil
	}
	return e.PropagationType()
}

var compoundAssignments = []string{
	"+=", "-=", "*=", "/=", "%=", "<<=", ">>=", ">>>=", "&=", "|=", "^=", "&^=",
}

var booleanOperators = []string{
	"==", "!=", "<", ">", "<=", ">=", "&&", "||", "instanceof", "and", "or",
}

// IsAssignmentOperator reports whether op is a plain assignment.
func IsAssignmentOperator(op string) bool { return op == "=" || op == ":=" }

// IsCompoundAssignmentOperator reports whether op is an operator-assignment.
func IsCompoundAssignmentOperator(op string) bool { return slices.Contains(compoundAssignments, op) }

// IsBooleanOperator reports whether op is relational or logical.
func IsBooleanOperator(op string) bool { return slices.Contains(booleanOperators, op) }

// UnaryOperator is a prefix or postfix operator.
type UnaryOperator struct {
	ExpressionBase
	OperatorCode string
	Postfix      bool
	Prefix       bool

	input Expression
}

func (u *UnaryOperator) Input() Expression { return u.input }

// SetInput replaces the operand, moving listener registration and DFG edges.
// Increments and decrements also write back into their operand.
func (u *UnaryOperator) SetInput(e Expression) {
	if old := u.input; !IsNil(old) {
		UnregisterTypeListener(old, u)
		RemoveDFG(old, u)
		RemoveDFG(u, old)
	}
	u.input = e
	if IsNil(e) {
		return
	}
	AddDFG(e, u)
	if u.OperatorCode == "++" || u.OperatorCode == "--" {
		AddDFG(u, e)
		setWriteAccess(e, AccessReadWrite)
	}
	RegisterTypeListener(e, u)
}

func (u *UnaryOperator) TypeChanged(w *Wave, src HasType, _ Type) {
	t := PropagationTypeOf(src)
	switch u.OperatorCode {
	case "*":
		w.SetType(u, t.Dereference())
	case "&":
		w.SetType(u, t.Reference(OriginPointer))
	case "!":
		if l := u.Language; l != nil && l.BooleanType != "" {
			w.SetType(u, NewObjectType(l.BooleanType, l))
			return
		}
		w.SetType(u, t)
	default:
		w.SetType(u, t)
	}
}

func (u *UnaryOperator) PossibleSubTypesChanged(w *Wave, src HasType, _ []Type) {
	if u.OperatorCode == "*" || u.OperatorCode == "&" {
		return
	}
	followSubTypes(w, u, src)
}

// ThrowExpression raises Exception. A nil Exception is a bare rethrow.
type ThrowExpression struct {
	ExpressionBase
	Exception Expression
}

// CallExpression calls a function through its callee expression.
type CallExpression struct {
	ExpressionBase
	Arguments     []Expression
	TypeArguments []Type

	callee  Expression
	invokes []FunctionLike
}

func (c *CallExpression) Callee() Expression       { return c.callee }
func (c *CallExpression) SetCallee(e Expression)   { c.callee = e }
func (c *CallExpression) Args() []Expression       { return c.Arguments }
func (c *CallExpression) AddArgument(e Expression) { c.Arguments = append(c.Arguments, e) }
func (c *CallExpression) Invokes() []FunctionLike  { return c.invokes }

// ArgumentTypes returns the current types of the arguments.
func (c *CallExpression) ArgumentTypes() []Type {
	out := make([]Type, len(c.Arguments))
	for i, a := range c.Arguments {
		out[i] = TypeOf(a)
	}
	return out
}

// SetInvokes binds the call to fns. The call listens to the return types of
// every target, and DFG edges argument→parameter and function→call are
// rebuilt.
func (c *CallExpression) SetInvokes(fns []FunctionLike) { setInvokes(c, c, fns) }

func (c *CallExpression) TypeChanged(w *Wave, _ HasType, _ Type) { updateCallType(w, c, c) }

func (c *CallExpression) PossibleSubTypesChanged(*Wave, HasType, []Type) {}

type callNode interface {
	TypeListener
	ArgumentHolder
}

func setInvokes(self callNode, c *CallExpression, fns []FunctionLike) {
	for _, old := range c.invokes {
		UnregisterTypeListener(old, self)
		RemoveDFG(old, self)
		for i, p := range old.Func().Parameters {
			if i < len(c.Arguments) {
				RemoveDFG(c.Arguments[i], p)
			}
		}
	}
	c.invokes = slices.Clone(fns)
	for _, fn := range c.invokes {
		params := fn.Func().Parameters
		for i, a := range c.Arguments {
			if len(params) == 0 {
				break
			}
			p := params[min(i, len(params)-1)]
			if i >= len(params) && !p.Variadic {
				break
			}
			AddDFG(a, p)
		}
		AddDFG(fn, self)
		RegisterTypeListener(fn, self)
	}
}

func updateCallType(w *Wave, self HasType, c *CallExpression) {
	var types []Type
	for _, fn := range c.invokes {
		if t := fn.Type(); !IsUnknown(t) && !containsType(types, t) {
			types = append(types, t)
		}
	}
	switch len(types) {
	case 0:
		return
	case 1:
		w.SetType(self, types[0])
	default:
		if common, ok := CommonType(types, nil); ok {
			w.SetType(self, common)
		} else {
			w.SetType(self, types[0])
		}
	}
}

// MemberCallExpression is a call whose callee is a MemberExpression.
type MemberCallExpression struct {
	CallExpression
	IsStatic bool
}

// Receiver returns the callee's receiver expression.
func (m *MemberCallExpression) Receiver() Expression {
	if me, ok := m.callee.(*MemberExpression); ok {
		return me.Receiver()
	}
	return nil
}

func (m *MemberCallExpression) SetInvokes(fns []FunctionLike) { setInvokes(m, &m.CallExpression, fns) }

func (m *MemberCallExpression) TypeChanged(w *Wave, _ HasType, _ Type) {
	updateCallType(w, m, &m.CallExpression)
}

// ConstructExpression instantiates a record through one of its constructors.
type ConstructExpression struct {
	CallExpression
	InstantiatedRecord *RecordDeclaration
}

// Constructor returns the resolved constructor, if any.
func (c *ConstructExpression) Constructor() *ConstructorDeclaration {
	for _, fn := range c.invokes {
		if ctor, ok := fn.(*ConstructorDeclaration); ok {
			return ctor
		}
	}
	return nil
}

func (c *ConstructExpression) SetInvokes(fns []FunctionLike) { setInvokes(c, &c.CallExpression, fns) }

// TypeChanged ignores constructor types: a construct expression has the type
// of the record it instantiates.
func (c *ConstructExpression) TypeChanged(*Wave, HasType, Type) {}

// NewExpression allocates the value produced by Initializer.
type NewExpression struct {
	ExpressionBase

	initializer Expression
}

func (n *NewExpression) Initializer() Expression { return n.initializer }

// SetInitializer replaces the initializer and moves listener and DFG edge.
func (n *NewExpression) SetInitializer(e Expression) {
	if old := n.initializer; !IsNil(old) {
		UnregisterTypeListener(old, n)
		RemoveDFG(old, n)
	}
	n.initializer = e
	if !IsNil(e) {
		AddDFG(e, n)
		RegisterTypeListener(e, n)
	}
}

func (n *NewExpression) TypeChanged(w *Wave, src HasType, _ Type) {
	t := PropagationTypeOf(src)
	if l := n.Language; l != nil && l.HasFunctionPointers {
		t = t.Reference(OriginPointer)
	}
	w.SetType(n, t)
}

func (n *NewExpression) PossibleSubTypesChanged(*Wave, HasType, []Type) {}

// ConditionalExpression is cond ? a : b.
type ConditionalExpression struct {
	ExpressionBase
	Condition Expression

	thenExpr Expression
	elseExpr Expression
}

func (c *ConditionalExpression) Then() Expression { return c.thenExpr }
func (c *ConditionalExpression) Else() Expression { return c.elseExpr }

// SetBranches replaces both branch expressions, moving listener registrations
// and DFG edges.
func (c *ConditionalExpression) SetBranches(thenExpr, elseExpr Expression) {
	for _, old := range []Expression{c.thenExpr, c.elseExpr} {
		if !IsNil(old) {
			UnregisterTypeListener(old, c)
			RemoveDFG(old, c)
		}
	}
	c.thenExpr, c.elseExpr = thenExpr, elseExpr
	for _, e := range []Expression{thenExpr, elseExpr} {
		if !IsNil(e) {
			AddDFG(e, c)
			RegisterTypeListener(e, c)
		}
	}
}

func (c *ConditionalExpression) TypeChanged(w *Wave, _ HasType, _ Type) {
	var types []Type
	for _, e := range []Expression{c.thenExpr, c.elseExpr} {
		if IsNil(e) {
			continue
		}
		if t := e.PropagationType(); !IsUnknown(t) {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return
	}
	if common, ok := CommonType(types, nil); ok {
		w.SetType(c, common)
		return
	}
	w.SetType(c, types[0])
}

func (c *ConditionalExpression) PossibleSubTypesChanged(w *Wave, src HasType, _ []Type) {
	followSubTypes(w, c, src)
}

// ArraySubscriptionExpression is a[i].
type ArraySubscriptionExpression struct {
	ExpressionBase
	SubscriptExpression Expression

	arrayExpression Expression
}

func (a *ArraySubscriptionExpression) ArrayExpression() Expression { return a.arrayExpression }

// SetArrayExpression replaces the subscripted expression, moving listener
// registration and DFG edge.
func (a *ArraySubscriptionExpression) SetArrayExpression(e Expression) {
	if old := a.arrayExpression; !IsNil(old) {
		UnregisterTypeListener(old, a)
		RemoveDFG(old, a)
	}
	a.arrayExpression = e
	if !IsNil(e) {
		AddDFG(e, a)
		RegisterTypeListener(e, a)
	}
}

func (a *ArraySubscriptionExpression) TypeChanged(w *Wave, src HasType, _ Type) {
	w.SetType(a, PropagationTypeOf(src).Dereference())
}

func (a *ArraySubscriptionExpression) PossibleSubTypesChanged(*Wave, HasType, []Type) {}

type ArrayCreationExpression struct {
	ExpressionBase
	Dimensions  []Expression
	Initializer Expression
}

// CastExpression converts Expression to CastType.
type CastExpression struct {
	ExpressionBase
	Expression Expression
	CastType   Type
}

// SetCastType fixes the cast's type.
func (c *CastExpression) SetCastType(t Type) {
	c.CastType = t
	SetType(c, t)
}

// InitializerListExpression is {a, b, c}.
type InitializerListExpression struct {
	ExpressionBase
	Initializers []Expression
}

func (l *InitializerListExpression) Args() []Expression { return l.Initializers }

// AddArgument appends e and records the DFG edge e→list.
func (l *InitializerListExpression) AddArgument(e Expression) {
	l.Initializers = append(l.Initializers, e)
	AddDFG(e, l)
}

// ExpressionList is a comma expression or a multi-value list.
type ExpressionList struct {
	ExpressionBase
	Expressions []Statement
}

func (l *ExpressionList) Args() []Expression {
	var out []Expression
	for _, s := range l.Expressions {
		if e, ok := s.(Expression); ok {
			out = append(out, e)
		}
	}
	return out
}

func (l *ExpressionList) AddArgument(e Expression) { l.Expressions = append(l.Expressions, e) }

type DeleteExpression struct {
	ExpressionBase
	Operand Expression
}

// TypeExpression uses a type as a value, e.g. the operand of sizeof.
type TypeExpression struct {
	ExpressionBase
}

// LambdaExpression wraps an anonymous function.
type LambdaExpression struct {
	ExpressionBase
	Function *FunctionDeclaration
}
