package passes

import (
	"cpg-enrich/graph"
	"cpg-enrich/scope"
)

// ScopePass builds the scope tree and fills the symbol tables. Every
// declaration is registered in the scope enclosing it; parameters go to
// their function's scope.
type ScopePass struct {
	seen map[graph.Node]struct{}
}

func (*ScopePass) Name() string { return "scopes" }

func (p *ScopePass) Run(ctx *Context) error {
	ctx.Progress.Log("Building scopes...")
	p.seen = make(map[graph.Node]struct{})
	var declared int
	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		for _, c := range graph.Children(tu) {
			declared += p.visit(ctx, c)
		}
	})
	ctx.Progress.Log("Registered %d declarations in %d scopes", declared, len(ctx.Scopes.Scopes()))
	return nil
}

func (p *ScopePass) visit(ctx *Context, n graph.Node) int {
	if _, ok := p.seen[n]; ok {
		return 0
	}
	p.seen[n] = struct{}{}

	count := 0
	switch n := n.(type) {
	case *graph.TranslationUnitDeclaration:
	case graph.Declaration:
		ctx.Scopes.AddDeclaration(n)
		count++
	case *graph.LabelStatement:
		ctx.Scopes.AddLabel(n)
	}

	if _, opens := scope.KindFor(n); !opens {
		for _, c := range graph.Children(n) {
			count += p.visit(ctx, c)
		}
		return count
	}
	if _, err := ctx.Scopes.WithScope(n, func(*scope.Scope) {
		for _, c := range graph.Children(n) {
			count += p.visit(ctx, c)
		}
	}); err != nil {
		ctx.structural(p.Name(), n, err)
	}
	return count
}
