package java

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpg-enrich/graph"
	"cpg-enrich/passes"
)

func parse(t *testing.T, tm *graph.TypeManager, code string) *graph.TranslationUnitDeclaration {
	t.Helper()
	tu, err := NewParser(tm, "").Parse(context.Background(), "Test.java", []byte(code))
	require.NoError(t, err)
	return tu
}

func onlyRecord(t *testing.T, tu *graph.TranslationUnitDeclaration) *graph.RecordDeclaration {
	t.Helper()
	require.Len(t, tu.Declarations, 1)
	rec, ok := tu.Declarations[0].(*graph.RecordDeclaration)
	require.True(t, ok)
	return rec
}

func bodyOf(t *testing.T, f *graph.FunctionDeclaration) []graph.Statement {
	t.Helper()
	blk, ok := f.Body.(*graph.CompoundStatement)
	require.True(t, ok, "body of %s", f.Name)
	return blk.Statements
}

func TestParseClass(t *testing.T) {
	code := `package demo;

public class Point extends Base implements Comparable<Point>, Cloneable {
    private int x = 0, y;
    static final String NAME = "p";

    public Point(int x) {
        this.x = x;
    }

    public int getX() {
        return x;
    }

    static int sum(int... values) throws Exception {
        int total = 0;
        for (int v : values) {
            total += v;
        }
        return total;
    }
}
`
	tu := parse(t, nil, code)
	assert.Equal(t, "Test.java", tu.Path)
	rec := onlyRecord(t, tu)
	assert.Equal(t, "Point", rec.Name)
	assert.Equal(t, graph.KindClass, rec.Kind)
	assert.Same(t, graph.Java, rec.Language)
	require.NotNil(t, rec.Location)
	assert.Equal(t, 3, rec.Location.StartLine)

	require.Len(t, rec.SuperClasses, 1)
	assert.Equal(t, "Base", rec.SuperClasses[0].Name())
	require.Len(t, rec.Implements, 2)
	assert.Equal(t, "Cloneable", rec.Implements[1].Name())

	require.Len(t, rec.Fields, 3)
	assert.Equal(t, "x", rec.Fields[0].Name)
	assert.Equal(t, "y", rec.Fields[1].Name)
	init, ok := rec.Fields[0].Initializer().(*graph.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(0), init.Value)
	assert.Nil(t, rec.Fields[1].Initializer())
	assert.Equal(t, "int", graph.TypeOf(rec.Fields[1]).Name())
	assert.Contains(t, rec.Fields[2].Modifiers, "static")
	assert.Equal(t, "p", rec.Fields[2].Initializer().(*graph.Literal).Value)

	require.Len(t, rec.Constructors, 1)
	ctor := rec.Constructors[0]
	require.Len(t, ctor.Parameters, 1)
	assert.Equal(t, "x", ctor.Parameters[0].Name)
	assign, ok := bodyOf(t, &ctor.FunctionDeclaration)[0].(*graph.BinaryOperator)
	require.True(t, ok)
	assert.Equal(t, "=", assign.OperatorCode)
	lhs, ok := assign.LHS().(*graph.MemberExpression)
	require.True(t, ok)
	assert.Equal(t, "x", lhs.Name)
	assert.Equal(t, "Point", graph.TypeOf(lhs.Receiver()).Name(), "this is typed as the enclosing class")

	require.Len(t, rec.Methods, 2)
	getX, sum := rec.Methods[0], rec.Methods[1]
	assert.Equal(t, "getX", getX.Name)
	assert.False(t, getX.IsStatic)
	ret, ok := bodyOf(t, &getX.FunctionDeclaration)[0].(*graph.ReturnStatement)
	require.True(t, ok)
	assert.Equal(t, "x", ret.Value.Base().Name)

	assert.True(t, sum.IsStatic)
	require.Len(t, sum.Parameters, 1)
	assert.True(t, sum.Parameters[0].Variadic)
	assert.True(t, sum.IsVariadic())
	require.Len(t, sum.ThrowsTypes, 1)
	assert.Equal(t, "Exception", sum.ThrowsTypes[0].Name())

	stmts := bodyOf(t, &sum.FunctionDeclaration)
	require.Len(t, stmts, 3)
	assert.IsType(t, &graph.DeclarationStatement{}, stmts[0])
	loop, ok := stmts[1].(*graph.ForEachStatement)
	require.True(t, ok)
	assert.Equal(t, "values", loop.Iterable.Base().Name)
	inc := loop.Body.(*graph.CompoundStatement).Statements[0].(*graph.BinaryOperator)
	assert.Equal(t, "+=", inc.OperatorCode)
}

func TestParseControlFlow(t *testing.T) {
	code := `class Flow {
    void run(int n) {
        outer:
        while (n > 0) {
            if (n == 1) { break outer; } else { n--; }
            for (int i = 0, j = 1; i < n; i++, j++) { continue; }
            do { n -= 1; } while (n > 5);
        }
        switch (n) {
            case 1:
            case 2:
                n = 3;
                break;
            default:
                n = 0;
        }
        try {
            risky();
        } catch (IllegalStateException | IllegalArgumentException e) {
            throw e;
        } finally {
            done();
        }
    }
}
`
	rec := onlyRecord(t, parse(t, nil, code))
	require.Len(t, rec.Methods, 1)
	stmts := bodyOf(t, &rec.Methods[0].FunctionDeclaration)
	require.Len(t, stmts, 3)

	label, ok := stmts[0].(*graph.LabelStatement)
	require.True(t, ok)
	assert.Equal(t, "outer", label.Label)
	loop, ok := label.SubStatement.(*graph.WhileStatement)
	require.True(t, ok)
	assert.Equal(t, ">", loop.Condition.(*graph.BinaryOperator).OperatorCode)

	inner := loop.Body.(*graph.CompoundStatement).Statements
	require.Len(t, inner, 3)
	ifs := inner[0].(*graph.IfStatement)
	brk := ifs.Then.(*graph.CompoundStatement).Statements[0].(*graph.BreakStatement)
	assert.Equal(t, "outer", brk.Label)
	dec := ifs.Else.(*graph.CompoundStatement).Statements[0].(*graph.UnaryOperator)
	assert.Equal(t, "--", dec.OperatorCode)
	assert.True(t, dec.Postfix)

	forLoop := inner[1].(*graph.ForStatement)
	assert.Len(t, forLoop.Initializer.(*graph.DeclarationStatement).Declarations, 2)
	assert.Equal(t, "<", forLoop.Condition.(*graph.BinaryOperator).OperatorCode)
	assert.Len(t, forLoop.Iteration.(*graph.ExpressionList).Expressions, 2)
	assert.IsType(t, &graph.ContinueStatement{}, forLoop.Body.(*graph.CompoundStatement).Statements[0])

	do := inner[2].(*graph.DoStatement)
	assert.Equal(t, ">", do.Condition.(*graph.BinaryOperator).OperatorCode)

	sw, ok := stmts[1].(*graph.SwitchStatement)
	require.True(t, ok)
	assert.Equal(t, "n", sw.Selector.Base().Name)
	var kinds []string
	for _, s := range sw.Body.Statements {
		kinds = append(kinds, graph.KindOf(s))
	}
	assert.Equal(t, []string{"CaseStatement", "CaseStatement", "BinaryOperator", "BreakStatement", "DefaultStatement", "BinaryOperator"}, kinds)

	try, ok := stmts[2].(*graph.TryStatement)
	require.True(t, ok)
	assert.Equal(t, "risky", try.TryBlock.Statements[0].(*graph.CallExpression).Name)
	require.Len(t, try.CatchClauses, 1)
	cc := try.CatchClauses[0]
	require.NotNil(t, cc.Parameter)
	assert.Equal(t, "e", cc.Parameter.Name)
	throw := cc.Body.Statements[0].(*graph.ThrowExpression)
	assert.Equal(t, "e", throw.Exception.Base().Name)
	require.NotNil(t, try.FinallyBlock)
	assert.Len(t, try.FinallyBlock.Statements, 1)
}

func TestParseExpressions(t *testing.T) {
	code := `class E {
    void f(String s) {
        long big = 0x10L;
        double d = 1.5;
        boolean ok = !false && s != null;
        char c = 'a';
        int[] xs = new int[] {1, 2};
        int first = xs[0];
        String t = ok ? s : "none";
        Object o = (Object) s;
        Math.max(1, 2);
    }
}
`
	rec := onlyRecord(t, parse(t, nil, code))
	stmts := bodyOf(t, &rec.Methods[0].FunctionDeclaration)
	require.Len(t, stmts, 9)

	initOf := func(i int) graph.Expression {
		ds := stmts[i].(*graph.DeclarationStatement)
		return ds.SingleDeclaration().(*graph.VariableDeclaration).Initializer()
	}
	big := initOf(0).(*graph.Literal)
	assert.Equal(t, int64(16), big.Value)
	assert.Equal(t, "long", graph.TypeOf(big).Name())
	assert.Equal(t, 1.5, initOf(1).(*graph.Literal).Value)

	and := initOf(2).(*graph.BinaryOperator)
	assert.Equal(t, "&&", and.OperatorCode)
	not := and.LHS().(*graph.UnaryOperator)
	assert.Equal(t, false, not.Input().(*graph.Literal).Value, "boolean literals keep their value")

	assert.Equal(t, 'a', initOf(3).(*graph.Literal).Value)

	arr := initOf(4).(*graph.ArrayCreationExpression)
	assert.Equal(t, "int[]", graph.TypeOf(arr).Name())
	require.NotNil(t, arr.Initializer)
	assert.Len(t, arr.Initializer.(*graph.InitializerListExpression).Initializers, 2)

	sub := initOf(5).(*graph.ArraySubscriptionExpression)
	assert.Equal(t, "xs", sub.ArrayExpression().Base().Name)

	cond := initOf(6).(*graph.ConditionalExpression)
	assert.Equal(t, "none", cond.Else().(*graph.Literal).Value)

	cast := initOf(7).(*graph.CastExpression)
	assert.Equal(t, "Object", cast.CastType.Name())

	mc := stmts[8].(*graph.MemberCallExpression)
	assert.Equal(t, "max", mc.Name)
	assert.True(t, mc.IsStatic)
	assert.Len(t, mc.Arguments, 2)
}

func TestParseAndEnrich(t *testing.T) {
	code := `class Counter {
    int count;

    void inc() {
        count = count + 1;
    }

    static void main() {
        Counter c = new Counter();
        c.inc();
    }
}
`
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pctx := passes.NewContext(nil, logger, nil, nil)
	tu := parse(t, pctx.Types, code)
	require.NoError(t, passes.NewPipeline(pctx).Run(context.Background(), []*graph.TranslationUnitDeclaration{tu}))

	rec := onlyRecord(t, tu)
	var inc, main *graph.MethodDeclaration
	for _, m := range rec.Methods {
		switch m.Name {
		case "inc":
			inc = m
		case "main":
			main = m
		}
	}
	require.NotNil(t, inc)
	require.NotNil(t, main)

	assign := bodyOf(t, &inc.FunctionDeclaration)[0].(*graph.BinaryOperator)
	assert.Same(t, rec.Fields[0], assign.LHS().(*graph.DeclaredReferenceExpression).RefersTo())

	call := bodyOf(t, &main.FunctionDeclaration)[1].(*graph.MemberCallExpression)
	assert.Equal(t, []graph.FunctionLike{inc}, call.Invokes())
	assert.True(t, graph.HasEOGEdges(call))
	assert.Empty(t, pctx.Violations)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src", "A.java")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("class A {}\n"), 0o644))

	p := NewParser(nil, dir)
	defer p.Close()

	tu, err := p.ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "src/A.java", tu.Path)
	assert.Equal(t, "A", onlyRecord(t, tu).Name)

	_, err = p.ParseFile(context.Background(), filepath.Join(dir, "missing.java"))
	assert.Error(t, err)
}
