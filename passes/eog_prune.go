package passes

import (
	"cpg-enrich/graph"
)

// UnreachableEOGPass removes the EOG edges of nodes that no evaluation can
// reach.
type UnreachableEOGPass struct{}

func (*UnreachableEOGPass) Name() string { return "eog-prune" }

func (p *UnreachableEOGPass) Run(ctx *Context) error {
	ctx.Progress.Log("Pruning unreachable EOG edges...")
	var removed int
	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		removed += PruneUnreachable(tu)
	})
	ctx.Telemetry.PrunedEdges.Add(float64(removed))
	ctx.Progress.Log("Pruned %d EOG edges", removed)
	return nil
}

// PruneUnreachable walks forward from every root below n over edges not
// flagged unreachable and detaches all outgoing edges of nodes the walk
// never visits. It returns the number of removed edges.
func PruneUnreachable(n graph.Node) int {
	nodes := graph.Flatten(n)
	reached := make(map[graph.Node]struct{})
	var queue []graph.Node
	for _, x := range nodes {
		if isPruneRoot(x) {
			reached[x] = struct{}{}
			queue = append(queue, x)
		}
	}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		for _, e := range x.Base().NextEOG() {
			if e.Unreachable {
				continue
			}
			if _, ok := reached[e.End]; !ok {
				reached[e.End] = struct{}{}
				queue = append(queue, e.End)
			}
		}
	}

	removed := 0
	for _, x := range nodes {
		if _, ok := reached[x]; !ok {
			removed += graph.DetachOutgoingEOG(x)
		}
	}
	return removed
}
