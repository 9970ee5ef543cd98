package export

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cpg-enrich/graph"
	"cpg-enrich/passes"
	"cpg-enrich/scope"
)

// Generator is recorded in the meta table of every database.
const Generator = "cpg-enrich"

// collector assigns IDs to graph nodes and turns them into rows.
type collector struct {
	g     *Graph
	ids   map[graph.Node]string
	used  map[string]int
	order []graph.Node
	types map[string]*TypeUse
}

// Collect flattens the units of an enriched run, together with the scope
// tree, control dependences and metrics the passes computed.
func Collect(pctx *passes.Context) *Graph {
	c := &collector{
		g:     NewGraph(),
		ids:   make(map[graph.Node]string),
		used:  make(map[string]int),
		types: make(map[string]*TypeUse),
	}
	seen := make(map[graph.Node]bool)
	for _, tu := range pctx.Units {
		c.visit(tu, tu.Path, "", seen)
	}
	// Edges may point at nodes outside every unit, e.g. inferred
	// declarations; those are added on first reference.
	for i := 0; i < len(c.order); i++ {
		c.edgesOf(c.order[i])
	}
	for _, d := range pctx.Dependences {
		props := map[string]any{}
		if d.Branch != graph.NoBranch {
			props["branch"] = d.Branch.String()
		}
		c.g.AddEdge(Edge{Source: c.ref(d.From), Target: c.ref(d.To), Kind: EdgeCDG, Properties: props})
	}
	c.scopes(pctx.Scopes)
	for _, m := range pctx.Metrics {
		c.g.Metrics = append(c.g.Metrics, Metrics{
			FunctionID:           c.ref(m.Function),
			CyclomaticComplexity: m.CyclomaticComplexity,
			FanIn:                m.FanIn,
			FanOut:               m.FanOut,
			LOC:                  m.LOC,
			NumParams:            m.NumParams,
			Recursive:            m.Recursive,
		})
	}
	for _, t := range c.types {
		c.g.Types = append(c.g.Types, *t)
	}
	slices.SortFunc(c.g.Types, func(a, b TypeUse) int { return strings.Compare(a.Name, b.Name) })

	roots := make([]graph.Node, len(pctx.Units))
	for i, tu := range pctx.Units {
		roots[i] = tu
	}
	meta := c.g.Meta
	meta["run_id"] = uuid.NewString()
	meta["generator"] = Generator
	meta["created_at"] = time.Now().UTC().Format(time.RFC3339)
	meta["units"] = strconv.Itoa(len(pctx.Units))
	meta["nodes"] = strconv.Itoa(len(c.g.Nodes))
	meta["edges"] = strconv.Itoa(len(c.g.Edges))
	meta["eog_violations"] = strconv.Itoa(len(passes.CheckEOG(roots...)))
	return c.g
}

// visit adds n and its AST subtree. fn is the ID of the innermost enclosing
// function.
func (c *collector) visit(n graph.Node, file, fn string, seen map[graph.Node]bool) {
	if graph.IsNil(n) || seen[n] {
		return
	}
	seen[n] = true
	id := c.add(n, file, fn)
	if _, ok := n.(graph.FunctionLike); ok {
		fn = id
	}
	for i, child := range graph.Children(n) {
		c.visit(child, file, fn, seen)
		c.g.AddEdge(Edge{Source: id, Target: c.ref(child), Kind: EdgeAST, Properties: map[string]any{"index": i}})
	}
}

// ref returns the ID of n, adding it as a detached node if needed.
func (c *collector) ref(n graph.Node) string {
	if id, ok := c.ids[n]; ok {
		return id
	}
	return c.add(n, "", "")
}

func (c *collector) add(n graph.Node, file, fn string) string {
	b := n.Base()
	kind := graph.KindOf(n)
	row := Node{
		Kind:           kind,
		Name:           b.Name,
		Code:           b.Code,
		File:           file,
		ParentFunction: fn,
	}
	if loc := b.Location; loc != nil {
		if loc.File != "" {
			row.File = loc.File
		}
		row.Line, row.Col, row.EndLine = loc.StartLine, loc.StartCol, loc.EndLine
	}
	if b.Language != nil {
		row.Language = b.Language.Name
	}
	if h, ok := n.(graph.HasType); ok {
		if t := h.Type(); !graph.IsUnknown(t) {
			row.TypeInfo = t.Name()
			c.countType(t)
		}
	}
	row.Properties = properties(n)

	id := NodeID(row.File, row.Line, row.Col, kind)
	c.used[id]++
	if k := c.used[id]; k > 1 {
		id = fmt.Sprintf("%s#%d", id, k)
	}
	row.ID = id
	c.ids[n] = id
	c.order = append(c.order, n)
	c.g.AddNode(row)
	return id
}

func (c *collector) countType(t graph.Type) {
	tu, ok := c.types[t.Name()]
	if !ok {
		tu = &TypeUse{Name: t.Name(), Kind: strings.TrimPrefix(fmt.Sprintf("%T", t), "*graph.")}
		if l := t.Language(); l != nil {
			tu.Language = l.Name
		}
		c.types[t.Name()] = tu
	}
	tu.Uses++
}

// properties returns the kind specific attributes stored as JSON.
func properties(n graph.Node) map[string]any {
	b := n.Base()
	props := make(map[string]any)
	if b.Implicit {
		props["implicit"] = true
	}
	if b.Inferred {
		props["inferred"] = true
	}
	switch n := n.(type) {
	case *graph.BinaryOperator:
		props["operator"] = n.OperatorCode
	case *graph.UnaryOperator:
		props["operator"] = n.OperatorCode
		if n.Postfix {
			props["postfix"] = true
		}
	case *graph.Literal:
		if n.Value != nil {
			props["value"] = fmt.Sprint(n.Value)
		}
	case *graph.RecordDeclaration:
		props["record_kind"] = string(n.Kind)
	case *graph.MethodDeclaration:
		if n.IsStatic {
			props["static"] = true
		}
	case *graph.ParamVariableDeclaration:
		props["index"] = n.Index
		if n.Variadic {
			props["variadic"] = true
		}
	case *graph.MemberExpression:
		props["operator"] = n.Operator
	}
	return props
}

type invoker interface {
	Invokes() []graph.FunctionLike
}

// edgesOf adds the non-AST edges leaving n.
func (c *collector) edgesOf(n graph.Node) {
	id := c.ids[n]
	for _, e := range n.Base().NextEOG() {
		props := map[string]any{"index": e.Index}
		if e.Branch != graph.NoBranch {
			props["branch"] = e.Branch.String()
		}
		if e.Unreachable {
			props["unreachable"] = true
		}
		c.g.AddEdge(Edge{Source: id, Target: c.ref(e.End), Kind: EdgeEOG, Properties: props})
	}
	for _, next := range n.Base().NextDFG() {
		c.g.AddEdge(Edge{Source: id, Target: c.ref(next), Kind: EdgeDFG})
	}

	var target graph.Declaration
	switch x := n.(type) {
	case *graph.DeclaredReferenceExpression:
		target = x.RefersTo()
	case *graph.MemberExpression:
		target = x.RefersTo()
	case *graph.RecordDeclaration:
		for _, super := range x.SuperRecords() {
			c.g.AddEdge(Edge{Source: id, Target: c.ref(super), Kind: EdgeSuperType})
		}
	}
	if !graph.IsNil(target) {
		c.g.AddEdge(Edge{Source: id, Target: c.ref(target), Kind: EdgeRefersTo})
	}
	if call, ok := n.(invoker); ok {
		for _, fn := range call.Invokes() {
			c.g.AddEdge(Edge{Source: id, Target: c.ref(fn), Kind: EdgeInvokes})
		}
	}
}

func (c *collector) scopes(m *scope.Manager) {
	if m == nil {
		return
	}
	all := m.Scopes()
	index := make(map[*scope.Scope]int, len(all))
	for i, s := range all {
		index[s] = i
	}
	for i, s := range all {
		row := Scope{
			ID:      ScopeID(i),
			Kind:    s.Kind.String(),
			Symbols: len(s.SymbolNames()),
		}
		if s.Parent != nil {
			row.Parent = ScopeID(index[s.Parent])
		}
		if !graph.IsNil(s.AST) {
			row.Node = c.ref(s.AST)
		}
		c.g.Scopes = append(c.g.Scopes, row)
	}
}
