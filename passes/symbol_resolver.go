package passes

import (
	"cpg-enrich/graph"
)

// SymbolResolver binds declared references to the declarations visible at
// their position and member expressions to record fields. Callees are left
// to the CallResolver.
type SymbolResolver struct {
	resolved, unresolved int
}

func (*SymbolResolver) Name() string { return "symbols" }

func (r *SymbolResolver) Run(ctx *Context) error {
	ctx.Progress.Log("Resolving symbols...")
	r.resolved, r.unresolved = 0, 0
	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		callees := calleesOf(tu)
		scopedWalk(ctx, r.Name(), tu, func(n graph.Node) {
			if _, ok := callees[n]; ok {
				return
			}
			switch n := n.(type) {
			case *graph.DeclaredReferenceExpression:
				r.resolveReference(ctx, n)
			case *graph.MemberExpression:
				r.resolveMember(ctx, n)
			}
		})
	})
	ctx.Progress.Log("Resolved %d references, %d unresolved", r.resolved, r.unresolved)
	return nil
}

func (r *SymbolResolver) resolveReference(ctx *Context, ref *graph.DeclaredReferenceExpression) {
	if ref.RefersTo() != nil {
		return
	}
	switch ref.Name {
	case "", "this", "super":
		return
	}

	if d := pickValue(ctx.Scopes.Resolve(ref.Name)); d != nil {
		ref.SetRefersTo(d)
		r.resolved++
		return
	}
	// Fields of the enclosing record are visible without a receiver.
	if f := findField(ctx.Scopes.CurrentRecord(), ref.Name); f != nil {
		ref.SetRefersTo(f)
		r.resolved++
		return
	}
	if rec := ctx.Scopes.LookupRecord(ref.Name); rec != nil {
		ref.SetRefersTo(rec)
		r.resolved++
		return
	}
	r.unresolved++
	ctx.Telemetry.Unresolved.WithLabelValues("reference").Inc()
	ctx.Logger.Debug("unresolved reference", "name", ref.Name, "unit", unitPath(ctx.current))
}

// pickValue prefers variables, parameters and fields over functions, and
// functions over any other declaration.
func pickValue(decls []graph.Declaration) graph.Declaration {
	var fn, other graph.Declaration
	for _, d := range decls {
		switch d.(type) {
		case *graph.VariableDeclaration, *graph.ParamVariableDeclaration, *graph.FieldDeclaration:
			return d
		case graph.FunctionLike:
			if fn == nil {
				fn = d
			}
		default:
			if other == nil {
				other = d
			}
		}
	}
	if fn != nil {
		return fn
	}
	return other
}

func (r *SymbolResolver) resolveMember(ctx *Context, m *graph.MemberExpression) {
	if m.RefersTo() != nil {
		return
	}
	rec, _ := receiverRecord(ctx, m.Receiver())
	if rec == nil {
		if o := objectType(graph.TypeOf(m.Receiver())); o != nil {
			rec = ctx.Inference().InferRecord(o, "")
		}
	}
	if rec == nil {
		r.unresolved++
		ctx.Telemetry.Unresolved.WithLabelValues("member").Inc()
		return
	}
	if f := findField(rec, m.Name); f != nil {
		m.SetRefersTo(f)
		r.resolved++
		return
	}
	if f := ctx.Inference().InferField(m, rec); f != nil {
		m.SetRefersTo(f)
		r.resolved++
		return
	}
	r.unresolved++
	ctx.Telemetry.Unresolved.WithLabelValues("member").Inc()
	ctx.Logger.Debug("unresolved member", "name", m.Name, "record", rec.Name)
}
