package passes

import (
	"fmt"
	"strings"

	"cpg-enrich/graph"
	"cpg-enrich/scope"
)

// Inferrer synthesises declarations for resolution gaps. Every method checks
// its configuration switch first and returns nil when inference of that kind
// is disabled. Synthesised nodes are flagged Inferred.
type Inferrer struct {
	ctx *Context
}

// InferRecord returns the record declaring t, creating it when no unit
// declares one. An empty kind picks struct for languages with structs and
// class otherwise. Every registered instance of t is pointed at the record.
func (i *Inferrer) InferRecord(t *graph.ObjectType, kind graph.RecordKind) *graph.RecordDeclaration {
	ctx := i.ctx
	if !ctx.Config.Inference.Records || t == nil || t.Primitive || graph.IsUnknown(t) {
		return nil
	}
	if rec := ctx.Scopes.LookupRecord(t.Name()); rec != nil {
		i.backfill(t, rec)
		return rec
	}

	lang := t.Language()
	if kind == "" {
		kind = graph.KindClass
		if lang != nil && lang.HasStructs {
			kind = graph.KindStruct
		}
	}
	rec := &graph.RecordDeclaration{Kind: kind}
	rec.Name = t.Name()
	rec.Language = lang
	rec.Inferred = true
	rec.Implicit = true

	if tu := ctx.current; tu != nil {
		tu.AddDeclaration(rec)
	}
	ctx.Scopes.AddDeclarationTo(ctx.Scopes.Global(), rec)
	ctx.Scopes.AttachScope(ctx.Scopes.Global(), rec)
	ctx.Types.Register(rec.ToType())
	i.backfill(t, rec)

	ctx.Telemetry.Inferred.WithLabelValues("record").Inc()
	ctx.Logger.Debug("inferred record", "name", rec.Name, "kind", string(kind), "unit", unitPath(ctx.current))
	return rec
}

func (i *Inferrer) backfill(t *graph.ObjectType, rec *graph.RecordDeclaration) {
	t.Record = rec
	for _, inst := range i.ctx.Types.InstancesOf(t) {
		if o, ok := inst.Root().(*graph.ObjectType); ok && o.Record == nil {
			o.Record = rec
		}
	}
}

// InferFunction synthesises the target of call, named name. With a record
// the result is a method of that record, otherwise a free function of the
// current unit. One parameter is created per argument, typed with the
// argument's type; the return type is the call's current type.
func (i *Inferrer) InferFunction(call *graph.CallExpression, name string, rec *graph.RecordDeclaration, static bool) graph.FunctionLike {
	ctx := i.ctx
	if !ctx.Config.Inference.Functions || call == nil {
		return nil
	}

	var (
		fn     graph.FunctionLike
		parent *scope.Scope
	)
	if rec != nil {
		m := &graph.MethodDeclaration{IsStatic: static}
		rec.AddMethod(m)
		if rec.Inferred && rec.Kind == graph.KindStruct {
			rec.Kind = graph.KindClass
		}
		parent = ctx.Scopes.AttachScope(ctx.Scopes.Global(), rec)
		fn = m
	} else {
		f := &graph.FunctionDeclaration{}
		if tu := ctx.current; tu != nil {
			f.Owner = tu
			tu.AddDeclaration(f)
		}
		parent = ctx.Scopes.Global()
		fn = f
	}

	f := fn.Func()
	f.Name = name
	f.Language = call.Language
	f.Inferred = true
	f.Implicit = true
	ctx.Scopes.AddDeclarationTo(parent, fn)

	fs := ctx.Scopes.AttachScope(parent, fn)
	for idx, arg := range call.Arguments {
		p := &graph.ParamVariableDeclaration{}
		p.Name = fmt.Sprintf("arg%d", idx)
		p.Language = call.Language
		p.Inferred = true
		p.Implicit = true
		ctx.Types.SetType(p, graph.TypeOf(arg))
		f.AddParameter(p)
		ctx.Scopes.AddDeclarationTo(fs, p)
	}
	ret := graph.TypeOf(call)
	if !graph.IsUnknown(ret) {
		f.ReturnTypes = []graph.Type{ret}
	}
	ctx.Types.SetType(fn, ret)

	kind := "function"
	if rec != nil {
		kind = "method"
	}
	ctx.Telemetry.Inferred.WithLabelValues(kind).Inc()
	ctx.Logger.Debug("inferred "+kind, "name", name, "params", len(call.Arguments), "record", recordName(rec))
	return fn
}

// InferConstructor adds an implicit constructor taking the arguments of c.
func (i *Inferrer) InferConstructor(c *graph.ConstructExpression, rec *graph.RecordDeclaration) *graph.ConstructorDeclaration {
	ctx := i.ctx
	if !ctx.Config.Inference.Functions || rec == nil {
		return nil
	}
	ctor := &graph.ConstructorDeclaration{}
	ctor.Name = lastSegment(rec.Name, rec.Language)
	ctor.Language = rec.Language
	ctor.Inferred = true
	ctor.Implicit = true
	rec.AddConstructor(ctor)

	rs := ctx.Scopes.AttachScope(ctx.Scopes.Global(), rec)
	ctx.Scopes.AddDeclarationTo(rs, ctor)
	fs := ctx.Scopes.AttachScope(rs, ctor)
	for idx, arg := range c.Arguments {
		p := &graph.ParamVariableDeclaration{}
		p.Name = fmt.Sprintf("arg%d", idx)
		p.Language = rec.Language
		p.Inferred = true
		p.Implicit = true
		ctx.Types.SetType(p, graph.TypeOf(arg))
		ctor.AddParameter(p)
		ctx.Scopes.AddDeclarationTo(fs, p)
	}
	ctx.Types.SetType(ctor, rec.ToType())

	ctx.Telemetry.Inferred.WithLabelValues("constructor").Inc()
	ctx.Logger.Debug("inferred constructor", "record", rec.Name, "params", len(c.Arguments))
	return ctor
}

// InferField adds a field named after member to rec, typed with the member
// expression's current type.
func (i *Inferrer) InferField(member *graph.MemberExpression, rec *graph.RecordDeclaration) *graph.FieldDeclaration {
	ctx := i.ctx
	if !ctx.Config.Inference.Fields || member == nil || rec == nil {
		return nil
	}
	f := &graph.FieldDeclaration{}
	f.Name = member.Name
	f.Language = member.Language
	f.Inferred = true
	f.Implicit = true
	ctx.Types.SetType(f, graph.TypeOf(member))
	rec.AddField(f)
	ctx.Scopes.AddDeclarationTo(ctx.Scopes.AttachScope(ctx.Scopes.Global(), rec), f)

	ctx.Telemetry.Inferred.WithLabelValues("field").Inc()
	ctx.Logger.Debug("inferred field", "name", f.Name, "record", rec.Name)
	return f
}

func unitPath(tu *graph.TranslationUnitDeclaration) string {
	if tu == nil {
		return ""
	}
	return tu.Path
}

func recordName(r *graph.RecordDeclaration) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func lastSegment(name string, lang *graph.Language) string {
	if lang == nil || lang.NamespaceDelimiter == "" {
		return name
	}
	if i := strings.LastIndex(name, lang.NamespaceDelimiter); i >= 0 {
		return name[i+len(lang.NamespaceDelimiter):]
	}
	return name
}
