package passes

import (
	"cpg-enrich/graph"
)

// FunctionMetrics are the size and complexity figures of one function.
type FunctionMetrics struct {
	Function             graph.FunctionLike
	CyclomaticComplexity int
	FanIn                int
	FanOut               int
	LOC                  int
	NumParams            int
	Recursive            bool
}

// MetricsPass computes cyclomatic complexity from the EOG, lines of code,
// parameter counts and call fan-in/fan-out for every function.
type MetricsPass struct{}

func (*MetricsPass) Name() string { return "metrics" }

func (p *MetricsPass) Run(ctx *Context) error {
	ctx.Progress.Log("Computing metrics...")

	byFn := make(map[graph.FunctionLike]*FunctionMetrics)
	var order []*FunctionMetrics
	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		for _, fn := range functionsOf(tu) {
			if _, ok := byFn[fn]; ok {
				continue
			}
			m := ComputeMetrics(fn)
			byFn[fn] = m
			order = append(order, m)
		}
	})

	// Fan-in/fan-out from the resolved calls. Inferred targets outside any
	// unit get an entry of their own so their fan-in is kept.
	for _, m := range order {
		for _, target := range calledFrom(m.Function) {
			m.FanOut++
			if target == m.Function {
				m.Recursive = true
			}
			tm, ok := byFn[target]
			if !ok {
				tm = &FunctionMetrics{Function: target, NumParams: len(target.Func().Parameters)}
				byFn[target] = tm
				order = append(order, tm)
			}
			tm.FanIn++
		}
	}

	ctx.Metrics = append(ctx.Metrics, order...)
	ctx.Progress.Log("Computed metrics for %d functions", len(order))
	return nil
}

// ComputeMetrics returns the metrics of fn that need no call graph.
// Cyclomatic complexity is one plus, for every branching node reachable
// from fn, the number of its distinct successors beyond the first.
func ComputeMetrics(fn graph.FunctionLike) *FunctionMetrics {
	f := fn.Func()
	m := &FunctionMetrics{
		Function:             fn,
		CyclomaticComplexity: 1,
		NumParams:            len(f.Parameters),
	}
	g := reachableEOG(fn)
	for i := range g.nodes {
		if d := g.distinct(i); d > 1 {
			m.CyclomaticComplexity += d - 1
		}
	}
	if loc := f.Location; loc != nil && loc.EndLine >= loc.StartLine {
		m.LOC = loc.EndLine - loc.StartLine + 1
	}
	return m
}

// calledFrom returns the distinct functions invoked by calls in fn's body.
func calledFrom(fn graph.FunctionLike) []graph.FunctionLike {
	body := fn.Func().Body
	if graph.IsNil(body) {
		return nil
	}
	seen := make(map[graph.FunctionLike]struct{})
	var out []graph.FunctionLike
	graph.Walk(body, func(n graph.Node) bool {
		var targets []graph.FunctionLike
		switch c := n.(type) {
		case *graph.CallExpression:
			targets = c.Invokes()
		case *graph.MemberCallExpression:
			targets = c.Invokes()
		case *graph.ConstructExpression:
			targets = c.Invokes()
		case *graph.LambdaExpression:
			return false
		}
		for _, t := range targets {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
		return true
	})
	return out
}
