package passes

import (
	"fmt"
	"slices"

	"cpg-enrich/graph"
)

// Violation is one broken EOG mirror: an edge listed on one side only, or
// listed on the wrong node.
type Violation struct {
	Node   graph.Node
	Edge   *graph.EOGEdge
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", graph.Describe(v.Node), v.Reason)
}

// CheckEOG verifies that every outgoing edge of every node below roots
// starts at that node and appears among its end's incoming edges, and the
// reverse for incoming edges. Successor indices must match positions.
func CheckEOG(roots ...graph.Node) []Violation {
	var out []Violation
	seen := make(map[graph.Node]struct{})
	for _, r := range roots {
		for _, n := range graph.Flatten(r) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, checkNode(n)...)
		}
	}
	return out
}

func checkNode(n graph.Node) []Violation {
	var out []Violation
	for i, e := range n.Base().NextEOG() {
		switch {
		case e.Start != n:
			out = append(out, Violation{n, e, "outgoing edge starts elsewhere"})
		case !slices.Contains(e.End.Base().PrevEOG(), e):
			out = append(out, Violation{n, e, "successor " + graph.Describe(e.End) + " does not list the edge"})
		case e.Index != i:
			out = append(out, Violation{n, e, fmt.Sprintf("edge index %d at position %d", e.Index, i)})
		}
	}
	for _, e := range n.Base().PrevEOG() {
		switch {
		case e.End != n:
			out = append(out, Violation{n, e, "incoming edge ends elsewhere"})
		case !slices.Contains(e.Start.Base().NextEOG(), e):
			out = append(out, Violation{n, e, "predecessor " + graph.Describe(e.Start) + " does not list the edge"})
		}
	}
	return out
}

// EOGInvariantPass runs CheckEOG over every unit and logs each violation.
type EOGInvariantPass struct{}

func (*EOGInvariantPass) Name() string { return "eog-check" }

func (p *EOGInvariantPass) Run(ctx *Context) error {
	ctx.Progress.Log("Checking EOG invariant...")
	var found []Violation
	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		for _, v := range CheckEOG(tu) {
			ctx.Logger.Error("EOG invariant violated", "unit", tu.Path, "violation", v.String())
			found = append(found, v)
		}
	})
	ctx.Violations = append(ctx.Violations, found...)
	ctx.Telemetry.Violations.Add(float64(len(found)))
	ctx.Progress.Log("Found %d EOG violations", len(found))
	return nil
}
