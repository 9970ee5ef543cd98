package export

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"cpg-enrich/frontend/c"
	"cpg-enrich/graph"
	"cpg-enrich/passes"
)

type quietProgress struct{}

func (quietProgress) Log(string, ...any)     {}
func (quietProgress) Verbose(string, ...any) {}

const program = `struct point { int x; int y; };

int add(int a, int b) {
    return a + b;
}

int main(void) {
    int r = add(1, 2);
    if (r > 2) {
        r = 0;
    }
    return r;
}
`

func enriched(t *testing.T) *passes.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pctx := passes.NewContext(nil, logger, nil, nil)
	parser := c.NewParser(pctx.Types, "")
	defer parser.Close()
	tu, err := parser.Parse(context.Background(), "main.c", []byte(program))
	require.NoError(t, err)
	require.NoError(t, passes.NewPipeline(pctx).Run(context.Background(), []*graph.TranslationUnitDeclaration{tu}))
	return pctx
}

func nodeNamed(t *testing.T, g *Graph, kind, name string) Node {
	t.Helper()
	for _, n := range g.Nodes {
		if n.Kind == kind && n.Name == name {
			return n
		}
	}
	require.FailNow(t, "node not found", "%s %s", kind, name)
	return Node{}
}

func TestGraphDeduplicates(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "a", Name: "first"})
	g.AddNode(Node{ID: "a", Name: "second"})
	g.AddNode(Node{ID: "b"})
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "first", g.Nodes[0].Name)
	assert.True(t, g.HasNode("b"))

	g.AddEdge(Edge{Source: "a", Target: "b", Kind: EdgeEOG, Properties: map[string]any{"branch": "true"}})
	g.AddEdge(Edge{Source: "a", Target: "b", Kind: EdgeEOG, Properties: map[string]any{"branch": "false"}})
	g.AddEdge(Edge{Source: "a", Target: "b", Kind: EdgeEOG, Properties: map[string]any{"branch": "true"}})
	g.AddEdge(Edge{Source: "a", Target: "b", Kind: EdgeDFG})
	assert.Len(t, g.EdgesOfKind(EdgeEOG), 2)
	assert.Len(t, g.Edges, 3)
}

func TestPropsJSON(t *testing.T) {
	assert.Equal(t, "", PropsJSON(nil))
	assert.Equal(t, `{"index":1,"inferred":true}`, PropsJSON(map[string]any{"inferred": true, "index": 1}))
}

func TestCollect(t *testing.T) {
	pctx := enriched(t)
	g := Collect(pctx)

	_, err := uuid.Parse(g.Meta["run_id"])
	assert.NoError(t, err)
	assert.Equal(t, Generator, g.Meta["generator"])
	assert.Equal(t, "1", g.Meta["units"])
	assert.Equal(t, "0", g.Meta["eog_violations"])

	ids := make(map[string]bool)
	for _, n := range g.Nodes {
		assert.False(t, ids[n.ID], "duplicate id %s", n.ID)
		ids[n.ID] = true
	}
	for _, e := range g.Edges {
		assert.True(t, g.HasNode(e.Source), "edge source %s", e.Source)
		assert.True(t, g.HasNode(e.Target), "edge target %s", e.Target)
	}

	point := nodeNamed(t, g, "RecordDeclaration", "point")
	assert.Equal(t, "struct", point.Properties["record_kind"])

	add := nodeNamed(t, g, "FunctionDeclaration", "add")
	main := nodeNamed(t, g, "FunctionDeclaration", "main")
	assert.Equal(t, "main.c", add.File)
	assert.Equal(t, 3, add.Line)
	assert.Equal(t, "int", add.TypeInfo)

	call := nodeNamed(t, g, "CallExpression", "add")
	assert.Equal(t, main.ID, call.ParentFunction)
	assert.Contains(t, g.EdgesOfKind(EdgeInvokes), Edge{Source: call.ID, Target: add.ID, Kind: EdgeInvokes})

	branches := make(map[any]int)
	for _, e := range g.EdgesOfKind(EdgeEOG) {
		branches[e.Properties["branch"]]++
	}
	assert.Equal(t, 1, branches["true"])
	assert.Equal(t, 1, branches["false"])

	assert.NotEmpty(t, g.EdgesOfKind(EdgeAST))
	assert.NotEmpty(t, g.EdgesOfKind(EdgeDFG))
	assert.NotEmpty(t, g.EdgesOfKind(EdgeRefersTo))
	assert.NotEmpty(t, g.EdgesOfKind(EdgeCDG))

	require.NotEmpty(t, g.Scopes)
	assert.Equal(t, "global", g.Scopes[0].Kind)
	assert.Empty(t, g.Scopes[0].Parent)

	var mainMetrics *Metrics
	for i := range g.Metrics {
		if g.Metrics[i].FunctionID == main.ID {
			mainMetrics = &g.Metrics[i]
		}
	}
	require.NotNil(t, mainMetrics)
	assert.Equal(t, 2, mainMetrics.CyclomaticComplexity)
	assert.Equal(t, 1, mainMetrics.FanOut)

	var intUses int
	for _, tu := range g.Types {
		if tu.Name == "int" {
			intUses = tu.Uses
		}
	}
	assert.Positive(t, intUses)
}

func TestWrite(t *testing.T) {
	g := Collect(enriched(t))
	path := filepath.Join(t.TempDir(), "out.db")

	report, err := Write(path, g, true, quietProgress{})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Zero(t, report.OrphanEdges)
	assert.Zero(t, report.EOGViolations)
	assert.Equal(t, int64(2), report.NodeKinds["FunctionDeclaration"])
	assert.Equal(t, int64(len(g.EdgesOfKind(EdgeEOG))), report.EdgeKinds[EdgeEOG])

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	count := func(query string) int64 {
		var n int64
		require.NoError(t, sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt64(0)
				return nil
			},
		}))
		return n
	}
	assert.Equal(t, int64(len(g.Nodes)), count(`SELECT COUNT(*) FROM nodes`))
	assert.Equal(t, int64(len(g.Scopes)), count(`SELECT COUNT(*) FROM scopes`))
	assert.Equal(t, int64(len(g.Metrics)), count(`SELECT COUNT(*) FROM metrics`))
	assert.Equal(t, int64(1), count(`SELECT COUNT(*) FROM v_call_graph WHERE callee_name = 'add'`))
	assert.Equal(t, int64(1), count(`SELECT COUNT(*) FROM meta WHERE key = 'run_id' AND value = '`+g.Meta["run_id"]+`'`))
}
