package passes

import (
	"cpg-enrich/graph"
)

// CallResolver binds calls to the functions they invoke. Free calls are
// resolved lexically, member calls through the receiver's record and its
// super records, construct expressions through the record's constructors.
// Gaps are filled by the inference engine when it is allowed to.
type CallResolver struct {
	resolved, unresolved int
}

func (*CallResolver) Name() string { return "calls" }

func (r *CallResolver) Run(ctx *Context) error {
	ctx.Progress.Log("Resolving calls...")
	r.resolved, r.unresolved = 0, 0
	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		scopedWalk(ctx, r.Name(), tu, func(n graph.Node) {
			switch n := n.(type) {
			case *graph.MemberCallExpression:
				r.resolveMemberCall(ctx, n)
			case *graph.ConstructExpression:
				r.resolveConstruct(ctx, n)
			case *graph.CallExpression:
				r.resolveCall(ctx, n)
			}
		})
	})
	ctx.Progress.Log("Resolved %d calls, %d unresolved", r.resolved, r.unresolved)
	return nil
}

func (r *CallResolver) miss(ctx *Context, kind, name string) {
	r.unresolved++
	ctx.Telemetry.Unresolved.WithLabelValues(kind).Inc()
	ctx.Logger.Debug("unresolved "+kind, "name", name, "unit", unitPath(ctx.current))
}

func (r *CallResolver) resolveCall(ctx *Context, c *graph.CallExpression) {
	if len(c.Invokes()) > 0 {
		return
	}
	ref, ok := c.Callee().(*graph.DeclaredReferenceExpression)
	if !ok {
		// Calls of call results, lambdas and the like have no static target.
		r.miss(ctx, "call", graph.Describe(c))
		return
	}

	argc := len(c.Arguments)
	decls := ctx.Scopes.Resolve(ref.Name)
	fns := functionCandidates(decls, argc)
	if len(fns) == 0 && c.Language != nil && !c.Language.Overloads() {
		// Without overloading the name alone identifies the function.
		fns = functionCandidates(decls, anyArity)
	}
	if len(fns) == 0 && len(decls) > 0 {
		if v := pickValue(decls); v != nil {
			if _, isFn := v.(graph.FunctionLike); !isFn {
				// A call through a variable holding a function pointer.
				ref.SetRefersTo(v)
				r.resolved++
				return
			}
		}
	}

	implicit := implicitReceiver(ctx)
	if len(fns) == 0 && implicit != nil {
		fns = methodCandidates(implicit, ref.Name, argc)
	}
	if len(fns) == 0 {
		if fn := ctx.Inference().InferFunction(c, ref.Name, implicit, false); fn != nil {
			fns = []graph.FunctionLike{fn}
		}
	}
	if len(fns) == 0 {
		r.miss(ctx, "call", ref.Name)
		return
	}
	c.SetInvokes(bestMatch(fns, c.ArgumentTypes()))
	r.resolved++
}

// implicitReceiver returns the record whose methods an unqualified call may
// reach: the enclosing record of a method without an explicit receiver.
func implicitReceiver(ctx *Context) *graph.RecordDeclaration {
	switch fn := ctx.Scopes.CurrentFunction().(type) {
	case *graph.MethodDeclaration:
		if fn.Receiver == nil {
			return fn.Record
		}
	case *graph.ConstructorDeclaration:
		return fn.Record
	}
	return nil
}

func (r *CallResolver) resolveMemberCall(ctx *Context, mc *graph.MemberCallExpression) {
	if len(mc.Invokes()) > 0 {
		return
	}
	callee, ok := mc.Callee().(*graph.MemberExpression)
	if !ok {
		r.resolveCall(ctx, &mc.CallExpression)
		return
	}

	rec, static := receiverRecord(ctx, callee.Receiver())
	if rec == nil {
		if o := objectType(graph.TypeOf(callee.Receiver())); o != nil {
			rec = ctx.Inference().InferRecord(o, "")
		}
	}
	if rec == nil {
		r.miss(ctx, "member_call", callee.Name)
		return
	}

	fns := methodCandidates(rec, callee.Name, len(mc.Arguments))
	if len(fns) == 0 && mc.Language != nil && !mc.Language.Overloads() {
		fns = methodCandidates(rec, callee.Name, anyArity)
	}
	if len(fns) == 0 {
		if fn := ctx.Inference().InferFunction(&mc.CallExpression, callee.Name, rec, static); fn != nil {
			fns = []graph.FunctionLike{fn}
		}
	}
	if len(fns) == 0 {
		r.miss(ctx, "member_call", callee.Name)
		return
	}
	mc.SetInvokes(bestMatch(fns, mc.ArgumentTypes()))
	r.resolved++
}

func (r *CallResolver) resolveConstruct(ctx *Context, c *graph.ConstructExpression) {
	rec := c.InstantiatedRecord
	if rec == nil {
		rec = recordOf(ctx, graph.TypeOf(c))
	}
	if rec == nil {
		if o := objectType(graph.TypeOf(c)); o != nil {
			rec = ctx.Inference().InferRecord(o, "")
		}
	}
	if rec == nil {
		r.miss(ctx, "construct", c.Name)
		return
	}
	c.InstantiatedRecord = rec
	ctx.Types.SetType(c, rec.ToType())
	if len(c.Invokes()) > 0 {
		return
	}

	var ctors []graph.FunctionLike
	for _, ctor := range rec.Constructors {
		if ctor.Accepts(len(c.Arguments)) {
			ctors = append(ctors, ctor)
		}
	}
	if len(ctors) == 0 {
		if ctor := ctx.Inference().InferConstructor(c, rec); ctor != nil {
			ctors = []graph.FunctionLike{ctor}
		}
	}
	if len(ctors) == 0 {
		r.miss(ctx, "construct", rec.Name)
		return
	}
	c.SetInvokes(bestMatch(ctors, c.ArgumentTypes()))
	r.resolved++
}
