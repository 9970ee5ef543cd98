package graph

import "slices"

// BranchProperty tags an EOG edge with the outcome of the condition it leaves.
type BranchProperty int

const (
	NoBranch BranchProperty = iota
	TrueBranch
	FalseBranch
)

func (b BranchProperty) String() string {
	switch b {
	case TrueBranch:
		return "true"
	case FalseBranch:
		return "false"
	default:
		return ""
	}
}

// EOGEdge is an evaluation order edge. Index is the edge's position among
// the start node's successors.
type EOGEdge struct {
	Start       Node
	End         Node
	Index       int
	Branch      BranchProperty
	Unreachable bool
}

// AddEOGEdge links start→end and mirrors the edge in end's predecessors.
func AddEOGEdge(start, end Node, branch BranchProperty, unreachable bool) *EOGEdge {
	sb, eb := start.Base(), end.Base()
	e := &EOGEdge{
		Start:       start,
		End:         end,
		Index:       len(sb.nextEOG),
		Branch:      branch,
		Unreachable: unreachable,
	}
	sb.nextEOG = append(sb.nextEOG, e)
	eb.prevEOG = append(eb.prevEOG, e)
	return e
}

// RemoveEOGEdge unlinks e on both sides and renumbers the start node's
// remaining successors.
func RemoveEOGEdge(e *EOGEdge) {
	sb, eb := e.Start.Base(), e.End.Base()
	sb.nextEOG = slices.DeleteFunc(sb.nextEOG, func(x *EOGEdge) bool { return x == e })
	eb.prevEOG = slices.DeleteFunc(eb.prevEOG, func(x *EOGEdge) bool { return x == e })
	for i, x := range sb.nextEOG {
		x.Index = i
	}
}

// DetachOutgoingEOG removes every outgoing edge of n together with the
// mirrored predecessor links. It returns the number of removed edges.
func DetachOutgoingEOG(n Node) int {
	edges := slices.Clone(n.Base().nextEOG)
	for _, e := range edges {
		RemoveEOGEdge(e)
	}
	return len(edges)
}

// NextEOGNodes returns the successor nodes of n.
func NextEOGNodes(n Node) []Node {
	out := make([]Node, 0, len(n.Base().nextEOG))
	for _, e := range n.Base().nextEOG {
		out = append(out, e.End)
	}
	return out
}

// PrevEOGNodes returns the predecessor nodes of n.
func PrevEOGNodes(n Node) []Node {
	out := make([]Node, 0, len(n.Base().prevEOG))
	for _, e := range n.Base().prevEOG {
		out = append(out, e.Start)
	}
	return out
}

// HasEOGEdges reports whether n has any incoming or outgoing EOG edge.
func HasEOGEdges(n Node) bool {
	b := n.Base()
	return len(b.nextEOG) > 0 || len(b.prevEOG) > 0
}

// IsEOGRoot reports whether n is a valid starting point of evaluation:
// functions, records, namespaces and translation units.
func IsEOGRoot(n Node) bool {
	switch n.(type) {
	case *FunctionDeclaration, *MethodDeclaration, *ConstructorDeclaration,
		*RecordDeclaration, *NamespaceDeclaration, *TranslationUnitDeclaration:
		return true
	default:
		return false
	}
}

// EOGEntries returns the nodes of the subtree rooted at n that have an
// EOG predecessor outside the subtree.
func EOGEntries(n Node) []Node {
	inside := make(map[Node]struct{})
	for _, x := range Flatten(n) {
		inside[x] = struct{}{}
	}
	var out []Node
	for _, x := range Flatten(n) {
		for _, e := range x.Base().prevEOG {
			if _, ok := inside[e.Start]; !ok {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

// EOGExits returns the nodes of the subtree rooted at n that have an EOG
// successor outside the subtree.
func EOGExits(n Node) []Node {
	inside := make(map[Node]struct{})
	for _, x := range Flatten(n) {
		inside[x] = struct{}{}
	}
	var out []Node
	for _, x := range Flatten(n) {
		for _, e := range x.Base().nextEOG {
			if _, ok := inside[e.End]; !ok {
				out = append(out, x)
				break
			}
		}
	}
	return out
}
