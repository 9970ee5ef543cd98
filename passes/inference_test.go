package passes

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpg-enrich/config"
	"cpg-enrich/graph"
)

// twoFooAccesses builds a.x; b.y where a and b are declared with separate
// instances of the undeclared type Foo.
func twoFooAccesses() (*graph.TranslationUnitDeclaration, *graph.ObjectType, *graph.ObjectType, *graph.MemberExpression, *graph.MemberExpression) {
	fooA := graph.NewObjectType("Foo", graph.Java)
	fooB := graph.NewObjectType("Foo", graph.Java)
	declA, _ := local("a", fooA, nil)
	declB, _ := local("b", fooB, nil)
	mx := member(ref("a"), "x")
	my := member(ref("b"), "y")
	tu := unit(graph.Java, function("run", block(declA, declB, mx, my)))
	return tu, fooA, fooB, mx, my
}

func TestInferRecordIsIdempotent(t *testing.T) {
	tu, fooA, fooB, mx, my := twoFooAccesses()
	ctx := resolveAll(t, nil, tu)

	recs := declsNamed[*graph.RecordDeclaration](tu, "Foo")
	require.Len(t, recs, 1, "one record for every use of the name")
	rec := recs[0]
	assert.True(t, rec.Inferred)
	assert.True(t, rec.Implicit)
	assert.Equal(t, graph.KindClass, rec.Kind, "java has no structs")
	assert.Same(t, rec, fooA.Record)
	assert.Same(t, rec, fooB.Record, "every registered instance is backfilled")
	assert.Same(t, rec, ctx.Scopes.LookupRecord("Foo"))
	assert.NotNil(t, ctx.Scopes.ScopeOf(rec))

	require.Len(t, rec.Fields, 2)
	assert.Same(t, rec.Field("x"), mx.RefersTo())
	assert.Same(t, rec.Field("y"), my.RefersTo())
	assert.True(t, rec.Field("x").Inferred)

	inferred := ctx.Telemetry.Inferred
	assert.Equal(t, float64(1), testutil.ToFloat64(inferred.WithLabelValues("record")))
	assert.Equal(t, float64(2), testutil.ToFloat64(inferred.WithLabelValues("field")))

	again := ctx.Inference().InferRecord(graph.NewObjectType("Foo", graph.Java), "")
	assert.Same(t, rec, again)
	assert.Equal(t, float64(1), testutil.ToFloat64(inferred.WithLabelValues("record")))
}

func TestInferenceDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Inference.Records = false
	cfg.Inference.Functions = false
	cfg.Inference.Fields = false

	tu, fooA, _, mx, _ := twoFooAccesses()
	ctx := resolveAll(t, cfg, tu)

	assert.Empty(t, declsNamed[*graph.RecordDeclaration](tu, "Foo"))
	assert.Nil(t, fooA.Record)
	assert.Nil(t, mx.RefersTo())
	assert.Equal(t, float64(2), testutil.ToFloat64(ctx.Telemetry.Unresolved.WithLabelValues("member")))

	inf := ctx.Inference()
	assert.Nil(t, inf.InferRecord(fooA, ""))
	assert.Nil(t, inf.InferFunction(call("f"), "f", nil, false))
	assert.Nil(t, inf.InferField(mx, record("R", graph.KindClass)))
	assert.Nil(t, inf.InferConstructor(&graph.ConstructExpression{}, record("R", graph.KindClass)))
}

func TestInferRecordSkipsPrimitivesAndUnknown(t *testing.T) {
	ctx := newTestContext(nil)
	inf := ctx.Inference()
	assert.Nil(t, inf.InferRecord(graph.NewObjectType("int", graph.Java), ""))
	assert.Nil(t, inf.InferRecord(nil, ""))
}

func TestInferRecordKindFollowsLanguage(t *testing.T) {
	ctx := newTestContext(nil)
	tu := unit(graph.C)
	ctx.Units = []*graph.TranslationUnitDeclaration{tu}
	ctx.eachUnit(func(*graph.TranslationUnitDeclaration) {
		rec := ctx.Inference().InferRecord(graph.NewObjectType("node", graph.C), "")
		require.NotNil(t, rec)
		assert.Equal(t, graph.KindStruct, rec.Kind)

		iface := ctx.Inference().InferRecord(graph.NewObjectType("Runnable", graph.Java), graph.KindInterface)
		assert.Equal(t, graph.KindInterface, iface.Kind)
	})
	assert.Len(t, tu.Declarations, 2)
}

func TestInferMethodTurnsStructIntoClass(t *testing.T) {
	widget := graph.NewObjectType("Widget", graph.CPP)
	integer := graph.NewObjectType("int", graph.CPP)
	decl, _ := local("w", widget, nil)
	draw := memberCall(ref("w"), "draw", lit(int64(1), integer))
	tu := unit(graph.CPP, function("main", block(decl, draw)))
	ctx := resolveAll(t, nil, tu)

	rec := widget.Record
	require.NotNil(t, rec)
	assert.Equal(t, graph.KindClass, rec.Kind, "a struct with methods is a class")
	require.Len(t, rec.Methods, 1)
	m := rec.Methods[0]
	assert.Equal(t, "draw", m.Name)
	assert.True(t, m.Inferred)
	assert.Same(t, rec, m.Record)
	require.Len(t, m.Parameters, 1)
	assert.Equal(t, "arg0", m.Parameters[0].Name)
	assert.True(t, graph.TypeOf(m.Parameters[0]).Equal(integer))
	assert.Equal(t, []graph.FunctionLike{m}, draw.Invokes())
	assert.Equal(t, float64(1), testutil.ToFloat64(ctx.Telemetry.Inferred.WithLabelValues("method")))
}

func TestInferFreeFunctionOnce(t *testing.T) {
	integer := graph.NewObjectType("int", graph.C)
	decl, _ := local("x", integer, nil)
	first := call("foo", lit(int64(1), integer), ref("x"))
	second := call("foo", lit(int64(2), integer), lit(int64(3), integer))
	tu := unit(graph.C, function("main", block(decl, first, second)))
	resolveAll(t, nil, tu)

	fns := declsNamed[*graph.FunctionDeclaration](tu, "foo")
	require.Len(t, fns, 1)
	foo := fns[0]
	assert.True(t, foo.Inferred)
	assert.Same(t, tu, foo.Owner)
	require.Len(t, foo.Parameters, 2)
	assert.Equal(t, "arg1", foo.Parameters[1].Name)
	assert.True(t, graph.TypeOf(foo.Parameters[1]).Equal(integer), "typed from the resolved argument")

	assert.Equal(t, []graph.FunctionLike{foo}, first.Invokes())
	assert.Equal(t, []graph.FunctionLike{foo}, second.Invokes(), "the second call finds the inferred function")
}

func TestInferConstructor(t *testing.T) {
	integer := graph.NewObjectType("int", graph.Java)
	point := record("Point", graph.KindClass)
	ctor := &graph.ConstructorDeclaration{}
	ctor.Name = "Point"
	ctor.AddParameter(param("x", integer))
	ctor.AddParameter(param("y", integer))
	point.AddConstructor(ctor)

	matching := &graph.ConstructExpression{}
	matching.AddArgument(lit(int64(1), integer))
	matching.AddArgument(lit(int64(2), integer))
	graph.SetType(matching, graph.NewObjectType("Point", graph.Java))

	single := &graph.ConstructExpression{}
	single.AddArgument(lit(int64(1), integer))
	graph.SetType(single, graph.NewObjectType("Point", graph.Java))

	tu := unit(graph.Java, point, function("main", block(matching, single)))
	resolveAll(t, nil, tu)

	assert.Same(t, ctor, matching.Constructor())
	assert.Same(t, point, matching.InstantiatedRecord)
	assert.True(t, graph.TypeOf(matching).Equal(point.ToType()))

	require.Len(t, point.Constructors, 2)
	implicit := point.Constructors[1]
	assert.True(t, implicit.Inferred)
	assert.Equal(t, "Point", implicit.Name)
	assert.Same(t, implicit, single.Constructor())
	assert.Len(t, implicit.Parameters, 1)
}

func TestInferSuperRecords(t *testing.T) {
	derived := record("Derived", graph.KindClass)
	base := graph.NewObjectType("Base", graph.Java)
	iface := graph.NewObjectType("Marker", graph.Java)
	derived.SuperClasses = []graph.Type{base}
	derived.Implements = []graph.Type{iface}
	tu := unit(graph.Java, derived)
	resolveAll(t, nil, tu)

	require.NotNil(t, base.Record)
	assert.Equal(t, graph.KindClass, base.Record.Kind)
	require.NotNil(t, iface.Record)
	assert.Equal(t, graph.KindInterface, iface.Record.Kind)
	assert.ElementsMatch(t, []*graph.RecordDeclaration{base.Record, iface.Record}, derived.SuperRecords())
}
