package passes

import (
	"cpg-enrich/graph"
	"cpg-enrich/scope"
)

// scopedWalk visits every node below tu in post-order. While a node is
// visited the scope manager is positioned at the scope enclosing it, so
// lexical lookups see exactly the declarations visible at the node.
func scopedWalk(ctx *Context, pass string, tu *graph.TranslationUnitDeclaration, visit func(graph.Node)) {
	seen := make(map[graph.Node]struct{})
	var rec func(graph.Node)
	rec = func(n graph.Node) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		if _, opens := scope.KindFor(n); opens {
			if _, err := ctx.Scopes.WithScope(n, func(*scope.Scope) {
				for _, c := range graph.Children(n) {
					rec(c)
				}
			}); err != nil {
				ctx.structural(pass, n, err)
			}
		} else {
			for _, c := range graph.Children(n) {
				rec(c)
			}
		}
		visit(n)
	}
	for _, c := range graph.Children(tu) {
		rec(c)
	}
}

// calleesOf returns the callee expressions of every call below tu.
func calleesOf(tu *graph.TranslationUnitDeclaration) map[graph.Node]struct{} {
	out := make(map[graph.Node]struct{})
	graph.Walk(tu, func(n graph.Node) bool {
		var callee graph.Expression
		switch c := n.(type) {
		case *graph.CallExpression:
			callee = c.Callee()
		case *graph.MemberCallExpression:
			callee = c.Callee()
		}
		if !graph.IsNil(callee) {
			out[callee] = struct{}{}
		}
		return true
	})
	return out
}

// receiverRecord returns the record a member access goes through. static is
// true when the receiver names the record itself.
func receiverRecord(ctx *Context, receiver graph.Expression) (rec *graph.RecordDeclaration, static bool) {
	if graph.IsNil(receiver) {
		return nil, false
	}
	if ref, ok := receiver.(*graph.DeclaredReferenceExpression); ok {
		if r, ok := ref.RefersTo().(*graph.RecordDeclaration); ok {
			return r, true
		}
	}
	return recordOf(ctx, graph.TypeOf(receiver)), false
}

// objectType returns the object type at the root of t, if any.
func objectType(t graph.Type) *graph.ObjectType {
	if graph.IsUnknown(t) {
		return nil
	}
	o, ok := t.Root().(*graph.ObjectType)
	if !ok || o.Primitive {
		return nil
	}
	return o
}

// hierarchy returns rec followed by its super records, breadth first.
func hierarchy(rec *graph.RecordDeclaration) []*graph.RecordDeclaration {
	if rec == nil {
		return nil
	}
	seen := map[*graph.RecordDeclaration]struct{}{rec: {}}
	out := []*graph.RecordDeclaration{rec}
	for i := 0; i < len(out); i++ {
		for _, s := range out[i].SuperRecords() {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func findField(rec *graph.RecordDeclaration, name string) *graph.FieldDeclaration {
	for _, r := range hierarchy(rec) {
		if f := r.Field(name); f != nil {
			return f
		}
	}
	return nil
}

// methodCandidates returns the methods named name accepting argc arguments,
// taken from the most derived record that declares any.
func methodCandidates(rec *graph.RecordDeclaration, name string, argc int) []graph.FunctionLike {
	for _, r := range hierarchy(rec) {
		var out []graph.FunctionLike
		for _, m := range r.MethodsNamed(name) {
			if argc == anyArity || m.Accepts(argc) {
				out = append(out, m)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// anyArity disables the arity filter of the candidate lookups.
const anyArity = -1

// functionCandidates filters decls down to functions accepting argc
// arguments.
func functionCandidates(decls []graph.Declaration, argc int) []graph.FunctionLike {
	var out []graph.FunctionLike
	for _, d := range decls {
		if f, ok := d.(graph.FunctionLike); ok && (argc == anyArity || f.Func().Accepts(argc)) {
			out = append(out, f)
		}
	}
	return out
}

// bestMatch narrows candidates to those whose parameter types equal the
// argument types. Without an exact match all candidates are kept.
func bestMatch(candidates []graph.FunctionLike, args []graph.Type) []graph.FunctionLike {
	if len(candidates) < 2 {
		return candidates
	}
	var exact []graph.FunctionLike
	for _, c := range candidates {
		sig := c.Func().Signature()
		ok := true
		for i := 0; i < len(args) && i < len(sig); i++ {
			if !sig[i].Equal(args[i]) {
				ok = false
				break
			}
		}
		if ok {
			exact = append(exact, c)
		}
	}
	if len(exact) == 0 {
		return candidates
	}
	return exact
}
