// Package export flattens an enriched graph into rows and writes them to a
// SQLite database.
package export

import (
	"encoding/json"
	"fmt"
)

// Node is one row of the nodes table.
type Node struct {
	ID             string
	Kind           string
	Name           string
	Code           string
	File           string // relative to the analysed root
	Line, Col      int
	EndLine        int
	Language       string
	ParentFunction string // ID of the enclosing function, or ""
	TypeInfo       string
	Properties     map[string]any
}

// Edge is one row of the edges table.
type Edge struct {
	Source     string
	Target     string
	Kind       string
	Properties map[string]any
}

// Edge kinds.
const (
	EdgeAST       = "ast"
	EdgeEOG       = "eog"
	EdgeDFG       = "dfg"
	EdgeRefersTo  = "refers_to"
	EdgeInvokes   = "invokes"
	EdgeCDG       = "cdg"
	EdgeSuperType = "super_type"
)

// Scope is one row of the scopes table.
type Scope struct {
	ID      string
	Kind    string
	Parent  string
	Node    string // ID of the node opening the scope
	Symbols int
}

// TypeUse is one row of the types table: a type name and how many nodes
// carry it.
type TypeUse struct {
	Name     string
	Kind     string
	Language string
	Uses     int
}

// Metrics is one row of the metrics table.
type Metrics struct {
	FunctionID           string
	CyclomaticComplexity int
	FanIn                int
	FanOut               int
	LOC                  int
	NumParams            int
	Recursive            bool
}

// edgeKey identifies an edge. Label keeps the branches of an EOG fork
// apart when both lead to the same node.
type edgeKey struct {
	Source, Target, Kind, Label string
}

// Graph accumulates every row in memory before it is flushed to SQLite.
type Graph struct {
	Nodes   []Node
	Edges   []Edge
	Scopes  []Scope
	Types   []TypeUse
	Metrics []Metrics
	// Meta holds run level key/value pairs: run id, generator, counts.
	Meta map[string]string

	nodeSeen map[string]struct{}
	edgeSeen map[edgeKey]struct{}
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Meta:     make(map[string]string),
		nodeSeen: make(map[string]struct{}),
		edgeSeen: make(map[edgeKey]struct{}),
	}
}

// AddNode appends a node, deduplicating by ID (first wins).
func (g *Graph) AddNode(n Node) {
	if _, dup := g.nodeSeen[n.ID]; dup {
		return
	}
	g.nodeSeen[n.ID] = struct{}{}
	g.Nodes = append(g.Nodes, n)
}

// AddEdge appends an edge unless one with the same source, target, kind and
// branch exists.
func (g *Graph) AddEdge(e Edge) {
	label, _ := e.Properties["branch"].(string)
	k := edgeKey{e.Source, e.Target, e.Kind, label}
	if _, dup := g.edgeSeen[k]; dup {
		return
	}
	g.edgeSeen[k] = struct{}{}
	g.Edges = append(g.Edges, e)
}

// HasNode reports whether a node with id was added.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodeSeen[id]
	return ok
}

// EdgesOfKind returns the edges of one kind in insertion order.
func (g *Graph) EdgesOfKind(kind string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// NodeID builds the ID of a node from its position. Nodes without a
// location are numbered per file instead.
func NodeID(file string, line, col int, kind string) string {
	return fmt.Sprintf("%s@%d:%d:%s", file, line, col, kind)
}

// ScopeID builds the ID of the i-th scope in pre-order.
func ScopeID(i int) string {
	return fmt.Sprintf("scope::%d", i)
}

// PropsJSON marshals a properties map, or returns "" when it is empty.
func PropsJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
