package c

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
	tu, err := NewParser(tm, "").Parse(context.Background(), "test.c", []byte(code))
	require.NoError(t, err)
	return tu
}

func declNamed[T graph.Declaration](t *testing.T, tu *graph.TranslationUnitDeclaration, name string) T {
	t.Helper()
	var found []T
	for _, d := range tu.Declarations {
		if x, ok := d.(T); ok && d.Base().Name == name {
			found = append(found, x)
		}
	}
	require.Len(t, found, 1, "declarations named %s", name)
	return found[0]
}

func bodyOf(t *testing.T, f *graph.FunctionDeclaration) []graph.Statement {
	t.Helper()
	blk, ok := f.Body.(*graph.CompoundStatement)
	require.True(t, ok, "body of %s", f.Name)
	return blk.Statements
}

func varOf(t *testing.T, s graph.Statement) *graph.VariableDeclaration {
	t.Helper()
	ds, ok := s.(*graph.DeclarationStatement)
	require.True(t, ok)
	require.Len(t, ds.Declarations, 1)
	v, ok := ds.Declarations[0].(*graph.VariableDeclaration)
	require.True(t, ok)
	return v
}

func TestParseDeclarations(t *testing.T) {
	code := `#include <stdio.h>

struct node {
    int value;
    struct node *next;
};

typedef struct {
    int x, y;
} point;

int counter = 0;
int (*handler)(int, int);

int add(int a, int b);

static int add(int a, int b) {
    return a + b;
}

int sum(struct node *head) {
    int total = 0;
    while (head != 0) {
        total += head->value;
        head = head->next;
    }
    return total;
}

void log_all(const char *fmt, ...);
`
	tu := parse(t, nil, code)
	assert.Equal(t, "test.c", tu.Path)

	node := declNamed[*graph.RecordDeclaration](t, tu, "node")
	assert.Equal(t, graph.KindStruct, node.Kind)
	require.Len(t, node.Fields, 2)
	assert.Equal(t, "int", graph.TypeOf(node.Fields[0]).Name())
	assert.Equal(t, "node*", graph.TypeOf(node.Fields[1]).Name())

	point := declNamed[*graph.RecordDeclaration](t, tu, "point")
	require.Len(t, point.Fields, 2)
	assert.Equal(t, "y", point.Fields[1].Name)

	counter := declNamed[*graph.VariableDeclaration](t, tu, "counter")
	assert.Equal(t, int64(0), counter.Initializer().(*graph.Literal).Value)

	handler := declNamed[*graph.VariableDeclaration](t, tu, "handler")
	assert.IsType(t, &graph.FunctionPointerType{}, graph.TypeOf(handler))

	add := declNamed[*graph.FunctionDeclaration](t, tu, "add")
	assert.True(t, add.HasBody(), "the definition replaces the prototype")
	require.Len(t, add.Parameters, 2)
	assert.Equal(t, "b", add.Parameters[1].Name)
	assert.Same(t, tu, add.Owner)

	sum := declNamed[*graph.FunctionDeclaration](t, tu, "sum")
	require.Len(t, sum.Parameters, 1)
	assert.Equal(t, "node*", graph.TypeOf(sum.Parameters[0]).Name())
	stmts := bodyOf(t, sum)
	require.Len(t, stmts, 3)
	loop, ok := stmts[1].(*graph.WhileStatement)
	require.True(t, ok)
	assert.Equal(t, "!=", loop.Condition.(*graph.BinaryOperator).OperatorCode)
	inner := loop.Body.(*graph.CompoundStatement).Statements
	require.Len(t, inner, 2)
	acc := inner[0].(*graph.BinaryOperator)
	assert.Equal(t, "+=", acc.OperatorCode)
	member := acc.RHS().(*graph.MemberExpression)
	assert.Equal(t, "->", member.Operator)
	assert.Equal(t, "value", member.Name)

	logAll := declNamed[*graph.FunctionDeclaration](t, tu, "log_all")
	assert.False(t, logAll.HasBody())
	assert.True(t, logAll.IsVariadic())
}

func TestParseControlFlow(t *testing.T) {
	code := `int classify(int n) {
    int r = 0;
    switch (n) {
    case 1:
        r = 10;
        break;
    case 2:
    case 3:
        r = 20;
        break;
    default:
        r = 30;
    }
    for (int i = 0, j = 1; i < n; i++, j++) {
        if (i == 2) continue;
        else if (i > 5) goto done;
    }
    do { n--; } while (n > 0);
done:
    return r;
}
`
	tu := parse(t, nil, code)
	stmts := bodyOf(t, declNamed[*graph.FunctionDeclaration](t, tu, "classify"))
	require.Len(t, stmts, 5)

	sw, ok := stmts[1].(*graph.SwitchStatement)
	require.True(t, ok)
	assert.Equal(t, "n", sw.Selector.Base().Name)
	var kinds []string
	for _, s := range sw.Body.Statements {
		switch s.(type) {
		case *graph.CaseStatement:
			kinds = append(kinds, "case")
		case *graph.DefaultStatement:
			kinds = append(kinds, "default")
		case *graph.BreakStatement:
			kinds = append(kinds, "break")
		case *graph.BinaryOperator:
			kinds = append(kinds, "assign")
		}
	}
	assert.Equal(t, []string{"case", "assign", "break", "case", "case", "assign", "break", "default", "assign"}, kinds)

	loop, ok := stmts[2].(*graph.ForStatement)
	require.True(t, ok)
	assert.Len(t, loop.Initializer.(*graph.DeclarationStatement).Declarations, 2)
	assert.Equal(t, "<", loop.Condition.(*graph.BinaryOperator).OperatorCode)
	assert.Len(t, loop.Iteration.(*graph.ExpressionList).Expressions, 2)
	branch := loop.Body.(*graph.CompoundStatement).Statements[0].(*graph.IfStatement)
	assert.IsType(t, &graph.ContinueStatement{}, branch.Then)
	nested, ok := branch.Else.(*graph.IfStatement)
	require.True(t, ok)
	assert.Equal(t, "done", nested.Then.(*graph.GotoStatement).LabelName)

	do, ok := stmts[3].(*graph.DoStatement)
	require.True(t, ok)
	assert.Equal(t, ">", do.Condition.(*graph.BinaryOperator).OperatorCode)

	label, ok := stmts[4].(*graph.LabelStatement)
	require.True(t, ok)
	assert.Equal(t, "done", label.Label)
	assert.IsType(t, &graph.ReturnStatement{}, label.SubStatement)
}

func TestParseExpressions(t *testing.T) {
	code := `void exprs(int *p) {
    int a[3] = {1, 2, 3};
    long big = 10UL;
    double d = 1.5;
    float f = 2.0f;
    char c = 'x';
    char *s = "hi" " there";
    int x = *p;
    int *q = &x;
    x = a[1];
    x = (int) d;
    x = x > 0 ? x : 0;
    x = sizeof(int);
    x++;
    --x;
    printf("%d\n", x);
}
`
	tu := parse(t, nil, code)
	stmts := bodyOf(t, declNamed[*graph.FunctionDeclaration](t, tu, "exprs"))
	require.Len(t, stmts, 15)

	arr := varOf(t, stmts[0])
	assert.Equal(t, "int[]", graph.TypeOf(arr).Name())
	assert.Len(t, arr.Initializer().(*graph.InitializerListExpression).Initializers, 3)

	big := varOf(t, stmts[1]).Initializer().(*graph.Literal)
	assert.Equal(t, int64(10), big.Value)
	assert.Equal(t, "long", graph.TypeOf(big).Name())

	d := varOf(t, stmts[2]).Initializer().(*graph.Literal)
	assert.Equal(t, 1.5, d.Value)
	assert.Equal(t, "double", graph.TypeOf(d).Name())

	f := varOf(t, stmts[3]).Initializer().(*graph.Literal)
	assert.Equal(t, 2.0, f.Value)
	assert.Equal(t, "float", graph.TypeOf(f).Name())

	assert.Equal(t, 'x', varOf(t, stmts[4]).Initializer().(*graph.Literal).Value)
	assert.Equal(t, "hi there", varOf(t, stmts[5]).Initializer().(*graph.Literal).Value)

	deref := varOf(t, stmts[6]).Initializer().(*graph.UnaryOperator)
	assert.Equal(t, "*", deref.OperatorCode)
	assert.Equal(t, "p", deref.Input().Base().Name)
	addr := varOf(t, stmts[7]).Initializer().(*graph.UnaryOperator)
	assert.Equal(t, "&", addr.OperatorCode)

	assert.IsType(t, &graph.ArraySubscriptionExpression{}, stmts[8].(*graph.BinaryOperator).RHS())
	cast := stmts[9].(*graph.BinaryOperator).RHS().(*graph.CastExpression)
	assert.Equal(t, "int", cast.CastType.Name())
	assert.IsType(t, &graph.ConditionalExpression{}, stmts[10].(*graph.BinaryOperator).RHS())
	size := stmts[11].(*graph.BinaryOperator).RHS().(*graph.TypeExpression)
	assert.Equal(t, "size_t", graph.TypeOf(size).Name())

	post := stmts[12].(*graph.UnaryOperator)
	assert.True(t, post.Postfix)
	pre := stmts[13].(*graph.UnaryOperator)
	assert.False(t, pre.Postfix)
	assert.Equal(t, "--", pre.OperatorCode)

	call := stmts[14].(*graph.CallExpression)
	assert.Equal(t, "printf", call.Name)
	require.Len(t, call.Arguments, 2)
	assert.Equal(t, "%d\n", call.Arguments[0].(*graph.Literal).Value)
}

func TestParseAndEnrich(t *testing.T) {
	code := `int counter;

int add(int a, int b) {
    return a + b;
}

int main(void) {
    counter = add(1, 2);
    if (counter > 2) goto end;
    counter = 0;
end:
    return counter;
}
`
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pctx := passes.NewContext(nil, logger, nil, nil)
	tu := parse(t, pctx.Types, code)
	require.NoError(t, passes.NewPipeline(pctx).Run(context.Background(), []*graph.TranslationUnitDeclaration{tu}))

	counter := declNamed[*graph.VariableDeclaration](t, tu, "counter")
	add := declNamed[*graph.FunctionDeclaration](t, tu, "add")
	main := declNamed[*graph.FunctionDeclaration](t, tu, "main")
	assert.Empty(t, main.Parameters)

	stmts := bodyOf(t, main)
	assign := stmts[0].(*graph.BinaryOperator)
	assert.Same(t, counter, assign.LHS().(*graph.DeclaredReferenceExpression).RefersTo())
	call := assign.RHS().(*graph.CallExpression)
	assert.Equal(t, []graph.FunctionLike{add}, call.Invokes())
	assert.True(t, graph.HasEOGEdges(call))

	jump := stmts[1].(*graph.IfStatement).Then.(*graph.GotoStatement)
	assert.Same(t, stmts[3], jump.TargetLabel)
}

func TestDeclarationAndReturnSurviveEnrichment(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pctx := passes.NewContext(nil, logger, nil, nil)
	tu := parse(t, pctx.Types, "int f(void) {\n    int a = 1;\n    return 1 + 2;\n}\n")
	require.NoError(t, passes.NewPipeline(pctx).Run(context.Background(), []*graph.TranslationUnitDeclaration{tu}))

	stmts := bodyOf(t, declNamed[*graph.FunctionDeclaration](t, tu, "f"))
	require.Len(t, stmts, 2)

	a := varOf(t, stmts[0])
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, int64(1), a.Initializer().(*graph.Literal).Value)

	ret, ok := stmts[1].(*graph.ReturnStatement)
	require.True(t, ok)
	sum, ok := ret.Value.(*graph.BinaryOperator)
	require.True(t, ok)
	assert.Equal(t, "+", sum.OperatorCode)
	assert.Equal(t, int64(1), sum.LHS().(*graph.Literal).Value)
	assert.Equal(t, int64(2), sum.RHS().(*graph.Literal).Value)
	assert.Empty(t, passes.CheckEOG(tu))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib", "util.c")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("int one(void) { return 1; }\n"), 0o644))

	p := NewParser(nil, dir)
	defer p.Close()

	tu, err := p.ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "lib/util.c", tu.Path)
	assert.Equal(t, "one", declNamed[*graph.FunctionDeclaration](t, tu, "one").Name)

	_, err = p.ParseFile(context.Background(), filepath.Join(dir, "missing.c"))
	assert.Error(t, err)
}
