package passes

import (
	"cpg-enrich/graph"
)

// ControlDependence records that To only executes when From, a branching
// node, takes Branch.
type ControlDependence struct {
	Function graph.FunctionLike
	From     graph.Node
	To       graph.Node
	Branch   graph.BranchProperty
}

// ControlDependencePass computes control dependences over each function's
// EOG using post-dominator trees and post-dominance frontiers.
type ControlDependencePass struct{}

func (*ControlDependencePass) Name() string { return "cdg" }

func (p *ControlDependencePass) Run(ctx *Context) error {
	ctx.Progress.Log("Extracting control dependence...")
	var funcs int
	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		for _, fn := range functionsOf(tu) {
			deps := ControlDependences(fn)
			if len(deps) > 0 {
				funcs++
			}
			ctx.Dependences = append(ctx.Dependences, deps...)
		}
	})
	ctx.Progress.Log("Created %d control dependences across %d functions", len(ctx.Dependences), funcs)
	return nil
}

// functionsOf returns every function, method and constructor below n.
func functionsOf(n graph.Node) []graph.FunctionLike {
	var out []graph.FunctionLike
	graph.Walk(n, func(x graph.Node) bool {
		if fn, ok := x.(graph.FunctionLike); ok {
			out = append(out, fn)
		}
		return true
	})
	return out
}

// eogSubgraph indexes the nodes reachable from root over edges not flagged
// unreachable. Index 0 is root.
type eogSubgraph struct {
	nodes []graph.Node
	succs [][]int
	edges [][]*graph.EOGEdge
}

func reachableEOG(root graph.Node) *eogSubgraph {
	g := &eogSubgraph{}
	index := make(map[graph.Node]int)
	add := func(n graph.Node) int {
		if i, ok := index[n]; ok {
			return i
		}
		index[n] = len(g.nodes)
		g.nodes = append(g.nodes, n)
		g.succs = append(g.succs, nil)
		g.edges = append(g.edges, nil)
		return len(g.nodes) - 1
	}
	add(root)
	for i := 0; i < len(g.nodes); i++ {
		for _, e := range g.nodes[i].Base().NextEOG() {
			if e.Unreachable {
				continue
			}
			j := add(e.End)
			g.succs[i] = append(g.succs[i], j)
			g.edges[i] = append(g.edges[i], e)
		}
	}
	return g
}

// distinct returns the number of different successors of node i.
func (g *eogSubgraph) distinct(i int) int {
	seen := make(map[int]struct{}, len(g.succs[i]))
	for _, s := range g.succs[i] {
		seen[s] = struct{}{}
	}
	return len(seen)
}

// ControlDependences computes the control dependences inside fn.
//
// A node W is control-dependent on edge (U→V) when W post-dominates V (or
// W == V) and W does not strictly post-dominate U. Walking from V up the
// post-dominator tree until ipdom(U) visits exactly those W.
func ControlDependences(fn graph.FunctionLike) []ControlDependence {
	g := reachableEOG(fn)
	if len(g.nodes) < 2 {
		return nil
	}
	ipdom := postDominators(g.succs)

	type key struct {
		u, w int
		br   graph.BranchProperty
	}
	seen := make(map[key]struct{})
	var out []ControlDependence
	for u := range g.nodes {
		if g.distinct(u) < 2 {
			continue // only branching nodes create control dependence
		}
		stop := ipdom[u]
		for k, v := range g.succs[u] {
			br := g.edges[u][k].Branch
			for w := v; w != -1 && w != stop; w = ipdom[w] {
				kk := key{u, w, br}
				if _, ok := seen[kk]; ok {
					continue
				}
				seen[kk] = struct{}{}
				out = append(out, ControlDependence{Function: fn, From: g.nodes[u], To: g.nodes[w], Branch: br})
			}
		}
	}
	return out
}

// postDominators computes the immediate post-dominator of every node using
// the Cooper-Harvey-Kennedy algorithm on the reversed graph.
//
// Returns ipdom[i] = immediate post-dominator of node i. ipdom[i] == -1
// means the node is post-dominated by the virtual exit only (an exit node,
// or a node that cannot reach any exit).
func postDominators(succs [][]int) []int {
	n := len(succs)
	vExit := n

	var exits []int
	for i, s := range succs {
		if len(s) == 0 {
			exits = append(exits, i)
		}
	}
	result := make([]int, n)
	for i := range result {
		result[i] = -1
	}
	if len(exits) == 0 {
		// Infinite loop with no exit: no post-dominators.
		return result
	}

	total := n + 1
	// Original edge (i → j) becomes reversed edge (j → i); the virtual exit
	// leads to every exit node.
	revAdj := make([][]int, total)
	for i, s := range succs {
		for _, j := range s {
			revAdj[j] = append(revAdj[j], i)
		}
	}
	revAdj[vExit] = append(revAdj[vExit], exits...)

	rpo := reversePostorder(revAdj, vExit, total)
	rpoPos := make([]int, total)
	for i := range rpoPos {
		rpoPos[i] = -1
	}
	for i, node := range rpo {
		rpoPos[node] = i
	}

	revPreds := make([][]int, total)
	for from, neighbors := range revAdj {
		for _, to := range neighbors {
			revPreds[to] = append(revPreds[to], from)
		}
	}

	idom := make([]int, total)
	for i := range idom {
		idom[i] = -1
	}
	idom[vExit] = vExit

	for changed := true; changed; {
		changed = false
		for _, b := range rpo {
			if b == vExit {
				continue
			}
			newIdom := -1
			for _, p := range revPreds[b] {
				if idom[p] != -1 {
					newIdom = p
					break
				}
			}
			if newIdom == -1 {
				continue
			}
			for _, p := range revPreds[b] {
				if p == newIdom || idom[p] == -1 {
					continue
				}
				newIdom = chkIntersect(idom, rpoPos, p, newIdom)
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	for i := 0; i < n; i++ {
		if d := idom[i]; d >= 0 && d < n {
			result[i] = d
		}
	}
	return result
}

// chkIntersect finds the nearest common ancestor of a and b in the dominator
// tree using reverse postorder positions.
func chkIntersect(idom, rpoPos []int, a, b int) int {
	for a != b {
		for rpoPos[a] > rpoPos[b] {
			a = idom[a]
		}
		for rpoPos[b] > rpoPos[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(adj [][]int, root, n int) []int {
	visited := make([]bool, n)
	order := make([]int, 0, n)

	var dfs func(int)
	dfs = func(node int) {
		visited[node] = true
		for _, next := range adj[node] {
			if !visited[next] {
				dfs(next)
			}
		}
		order = append(order, node)
	}
	dfs(root)

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
