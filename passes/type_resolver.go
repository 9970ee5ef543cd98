package passes

import (
	"cpg-enrich/graph"
)

// TypeResolver registers every type in use with the type manager and links
// object types to the records declaring them. Super types that no unit
// declares are inferred when record inference is on.
type TypeResolver struct{}

func (*TypeResolver) Name() string { return "types" }

func (r *TypeResolver) Run(ctx *Context) error {
	ctx.Progress.Log("Resolving types...")

	var records, linked, inferred int
	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		for _, rec := range graph.AllOf[*graph.RecordDeclaration](tu) {
			ctx.Types.Register(rec.ToType())
			records++
		}
	})

	ctx.eachUnit(func(tu *graph.TranslationUnitDeclaration) {
		for _, rec := range graph.AllOf[*graph.RecordDeclaration](tu) {
			for _, st := range rec.SuperClasses {
				linked += r.linkSuper(ctx, st, "", &inferred)
			}
			for _, st := range rec.Implements {
				linked += r.linkSuper(ctx, st, graph.KindInterface, &inferred)
			}
		}
		graph.Walk(tu, func(n graph.Node) bool {
			h, ok := n.(graph.HasType)
			if !ok {
				return true
			}
			if t := h.Type(); t != nil {
				ctx.Types.Register(t)
				linked += link(ctx, t)
			}
			for _, st := range h.PossibleSubTypes() {
				ctx.Types.Register(st)
				linked += link(ctx, st)
			}
			return true
		})
	})

	ctx.Progress.Log("Registered %d records, linked %d types, inferred %d super records", records, linked, inferred)
	return nil
}

func (r *TypeResolver) linkSuper(ctx *Context, t graph.Type, kind graph.RecordKind, inferred *int) int {
	ctx.Types.Register(t)
	n := link(ctx, t)
	o, ok := t.Root().(*graph.ObjectType)
	if !ok || o.Record != nil || o.Primitive || graph.IsUnknown(o) {
		return n
	}
	if rec := ctx.Inference().InferRecord(o, kind); rec != nil {
		*inferred++
		n++
	}
	return n
}

// link points every unresolved object type inside t at its record. It
// returns the number of types it linked.
func link(ctx *Context, t graph.Type) int {
	o, ok := t.Root().(*graph.ObjectType)
	if !ok {
		return 0
	}
	n := 0
	if o.Record == nil && !o.Primitive {
		if rec := ctx.Scopes.LookupRecord(o.Name()); rec != nil {
			o.Record = rec
			n++
		}
	}
	for _, g := range o.Generics {
		n += link(ctx, g)
	}
	return n
}

// recordOf returns the record behind t, resolving it by name when the type
// carries no back-reference.
func recordOf(ctx *Context, t graph.Type) *graph.RecordDeclaration {
	if graph.IsUnknown(t) {
		return nil
	}
	o, ok := t.Root().(*graph.ObjectType)
	if !ok || o.Primitive {
		return nil
	}
	if o.Record == nil {
		o.Record = ctx.Scopes.LookupRecord(o.Name())
	}
	return o.Record
}
