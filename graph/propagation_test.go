package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func literal(lang *Language, value any, typ Type) *Literal {
	l := &Literal{Value: value}
	l.Language = lang
	SetType(l, typ)
	return l
}

func ref(lang *Language, name string) *DeclaredReferenceExpression {
	r := &DeclaredReferenceExpression{}
	r.Name = name
	r.Language = lang
	return r
}

func binary(lang *Language, op string, lhs, rhs Expression) *BinaryOperator {
	b := &BinaryOperator{OperatorCode: op}
	b.Language = lang
	b.SetLHS(lhs)
	b.SetRHS(rhs)
	return b
}

func TestAssignmentPropagatesRightToLeft(t *testing.T) {
	str := NewObjectType("String", Java)
	rhs := literal(Java, "x", str)
	lhs := ref(Java, "s")
	op := binary(Java, "=", lhs, rhs)

	assert.True(t, TypeOf(op).Equal(str))
	assert.True(t, TypeOf(lhs).Equal(str))
	assert.Contains(t, op.PrevDFG(), Node(rhs))
	assert.Contains(t, op.NextDFG(), Node(lhs))
	assert.Equal(t, AccessWrite, lhs.Access)

	// A later change of the right side reaches the left side.
	other := NewObjectType("Foo", Java)
	SetType(rhs, other)
	assert.True(t, containsType(lhs.PossibleSubTypes(), other))
}

func TestCompoundAssignmentListensBothWays(t *testing.T) {
	lhs, rhs := ref(Java, "a"), ref(Java, "b")
	op := binary(Java, "+=", lhs, rhs)

	foo := NewObjectType("Foo", Java)
	SetType(rhs, foo)
	assert.True(t, TypeOf(lhs).Equal(foo))
	assert.True(t, TypeOf(op).Equal(foo))

	assert.True(t, IsListening(lhs, rhs))
	assert.True(t, IsListening(rhs, lhs))
	assert.Equal(t, AccessReadWrite, lhs.Access)
}

func TestStringCoercion(t *testing.T) {
	str := NewObjectType("String", Java)
	integer := NewObjectType("int", Java)
	op := binary(Java, "+", literal(Java, "a", str), literal(Java, int64(1), integer))

	assert.True(t, TypeOf(op).Equal(str))
	require.Len(t, op.PossibleSubTypes(), 1)
	assert.True(t, op.PossibleSubTypes()[0].Equal(str))

	reversed := binary(Java, "+", literal(Java, int64(1), integer), literal(Java, "a", str))
	assert.True(t, TypeOf(reversed).Equal(str))
}

func TestCoercionIsPerLanguage(t *testing.T) {
	str := NewObjectType("String", C)
	integer := NewObjectType("int", C)
	op := binary(C, "+", literal(C, int64(1), integer), literal(C, "a", str))
	assert.True(t, TypeOf(op).Equal(integer), "C has no string concatenation rule")
}

func TestRelationalOperatorYieldsBoolean(t *testing.T) {
	integer := NewObjectType("int", Java)
	op := binary(Java, "<", literal(Java, int64(1), integer), literal(Java, int64(2), integer))
	assert.Equal(t, "boolean", TypeOf(op).Name())
}

func TestArithmeticCommonType(t *testing.T) {
	integer := NewObjectType("int", Java)
	op := binary(Java, "+", literal(Java, int64(1), integer), literal(Java, int64(2), integer))
	assert.True(t, TypeOf(op).Equal(integer))

	half := binary(Java, "*", ref(Java, "x"), literal(Java, int64(2), integer))
	assert.True(t, TypeOf(half).Equal(integer), "known operand wins")
}

func TestUnknownNeverReplacesKnown(t *testing.T) {
	integer := NewObjectType("int", Java)
	l := literal(Java, int64(1), integer)
	SetType(l, Java.UnknownType())
	assert.True(t, TypeOf(l).Equal(integer))

	fresh := ref(Java, "x")
	SetType(fresh, Java.UnknownType())
	assert.True(t, IsUnknown(TypeOf(fresh)))
}

func TestListenerCycleTerminates(t *testing.T) {
	a, b := ref(Java, "a"), ref(Java, "b")
	RegisterTypeListener(a, b)
	RegisterTypeListener(b, a)

	foo := NewObjectType("Foo", Java)
	SetType(a, foo)
	assert.True(t, TypeOf(a).Equal(foo))
	assert.True(t, TypeOf(b).Equal(foo))
}

func TestRegistrationNotifiesImmediately(t *testing.T) {
	foo := NewObjectType("Foo", Java)
	src := literal(Java, nil, foo)
	listener := ref(Java, "x")
	RegisterTypeListener(src, listener)
	assert.True(t, TypeOf(listener).Equal(foo))

	UnregisterTypeListener(src, listener)
	assert.False(t, IsListening(src, listener))
	SetType(src, NewObjectType("Bar", Java))
	assert.True(t, TypeOf(listener).Equal(foo))
}

func TestVariableFollowsInitializer(t *testing.T) {
	root := newRecord("Root")
	level0 := newRecord("Level0", root)
	level1 := newRecord("Level1", level0)

	v := &VariableDeclaration{}
	v.Language = Java
	SetType(v, level0.ToType())
	init := literal(Java, nil, level1.ToType())
	v.SetInitializer(init)

	assert.Same(t, level0.ToType(), v.Type(), "declared super type is kept")
	assert.True(t, containsType(v.PossibleSubTypes(), level1.ToType()))
	assert.Contains(t, v.PrevDFG(), Node(init))

	untyped := &VariableDeclaration{}
	untyped.Language = Java
	untyped.SetInitializer(literal(Java, nil, level1.ToType()))
	assert.True(t, TypeOf(untyped).Equal(level1.ToType()))

	prim := &VariableDeclaration{}
	prim.Language = Java
	SetType(prim, NewObjectType("int", Java))
	prim.SetInitializer(literal(Java, int64(1), NewObjectType("long", Java)))
	assert.Equal(t, "int", TypeOf(prim).Name())

	replacement := literal(Java, nil, level0.ToType())
	v.SetInitializer(replacement)
	assert.False(t, IsListening(init, v))
	assert.NotContains(t, v.PrevDFG(), Node(init))
	assert.Contains(t, v.PrevDFG(), Node(replacement))
}

func TestSetRefersTo(t *testing.T) {
	foo := NewObjectType("Foo", Java)
	decl := &VariableDeclaration{}
	decl.Name = "x"
	SetType(decl, foo)

	r := ref(Java, "x")
	r.SetRefersTo(decl)
	assert.Same(t, decl, r.RefersTo())
	assert.True(t, TypeOf(r).Equal(foo))
	assert.Contains(t, decl.NextDFG(), Node(r))

	other := &VariableDeclaration{}
	SetType(other, NewObjectType("Bar", Java))
	r.SetRefersTo(other)
	assert.False(t, IsListening(decl, r))
	assert.NotContains(t, decl.NextDFG(), Node(r))
}

func TestCallFollowsInvokedReturnTypes(t *testing.T) {
	foo := NewObjectType("Foo", Java)
	fn := &FunctionDeclaration{}
	fn.Name = "make"
	SetType(fn, foo)
	p := &ParamVariableDeclaration{}
	fn.AddParameter(p)

	arg := literal(Java, int64(1), NewObjectType("int", Java))
	call := &CallExpression{}
	call.AddArgument(arg)
	call.SetInvokes([]FunctionLike{fn})

	assert.True(t, TypeOf(call).Equal(foo))
	assert.Contains(t, arg.NextDFG(), Node(p))
	assert.Contains(t, call.PrevDFG(), Node(fn))

	bar := NewObjectType("Bar", Java)
	fn2 := &FunctionDeclaration{}
	SetType(fn2, bar)
	call.SetInvokes([]FunctionLike{fn2})
	assert.False(t, IsListening(fn, call))
	assert.NotContains(t, arg.NextDFG(), Node(p))
	assert.True(t, TypeOf(call).Equal(bar))
}

func TestMemberCallListenerIdentity(t *testing.T) {
	foo := NewObjectType("Foo", Java)
	m := &MethodDeclaration{}
	SetType(m, foo)
	mc := &MemberCallExpression{}
	mc.SetInvokes([]FunctionLike{m})

	assert.True(t, IsListening(m, mc))
	assert.Contains(t, m.NextDFG(), Node(mc))
	assert.True(t, TypeOf(mc).Equal(foo))
}

func TestConditionalTakesCommonType(t *testing.T) {
	root := newRecord("Root")
	level0 := newRecord("Level0", root)
	a := newRecord("Level1", level0)
	b := newRecord("Level1B", level0)

	c := &ConditionalExpression{}
	c.Language = Java
	c.SetBranches(literal(Java, nil, a.ToType()), literal(Java, nil, b.ToType()))
	assert.Same(t, level0.ToType(), c.Type())
}

func TestUnaryAndSubscript(t *testing.T) {
	integer := NewObjectType("int", C)
	ptr := literal(C, nil, integer.Reference(OriginPointer))

	deref := &UnaryOperator{OperatorCode: "*"}
	deref.SetInput(ptr)
	assert.True(t, TypeOf(deref).Equal(integer))

	addr := &UnaryOperator{OperatorCode: "&"}
	addr.SetInput(literal(C, nil, integer))
	assert.True(t, TypeOf(addr).Equal(integer.Reference(OriginPointer)))

	inc := &UnaryOperator{OperatorCode: "++", Postfix: true}
	x := ref(C, "x")
	inc.SetInput(x)
	assert.Contains(t, inc.NextDFG(), Node(x))

	sub := &ArraySubscriptionExpression{}
	sub.SetArrayExpression(literal(C, nil, integer.Reference(OriginArray)))
	assert.True(t, TypeOf(sub).Equal(integer))
}

func TestWaveRootSet(t *testing.T) {
	w := NewWave()
	a := ref(Java, "a")
	foo := NewObjectType("Foo", Java)
	w.SetType(a, foo)
	assert.True(t, w.InRoot(a))
	w.SetType(a, NewObjectType("Bar", Java))
	w.Drain()
	assert.True(t, TypeOf(a).Equal(foo), "second change in the same wave is ignored")
	assert.Equal(t, 1, w.Root())
}

func TestWaveUsesRecordLookup(t *testing.T) {
	animal := newRecord("Animal")
	lookup := mapLookup{"Animal": animal, "Cat": newRecord("Cat", animal), "Dog": newRecord("Dog", animal)}
	cat, dog := NewObjectType("Cat", Java), NewObjectType("Dog", Java)

	bare := ref(Java, "pet")
	SetType(bare, cat)
	SetType(bare, dog)
	assert.Equal(t, "Dog", bare.Type().String(), "no record lookup, no common type")

	tm := NewTypeManager()
	tm.SetRecordLookup(lookup)
	pet := ref(Java, "pet")
	tm.SetType(pet, cat)
	tm.SetType(pet, dog)
	assert.Equal(t, "Animal", pet.Type().String())
	assert.Len(t, pet.PossibleSubTypes(), 2)
}
