package golang

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

// expr translates an expression. Type expressions in value position become
// typed TypeExpressions; nil yields nil.
func (t *translator) expr(e ast.Expr) graph.Expression {
	b := t.b
	switch e := e.(type) {
	case nil:
		return nil
	case *ast.ParenExpr:
		return t.expr(e.X)
	case *ast.Ident:
		return t.ident(e)
	case *ast.BasicLit:
		return t.literal(e)
	case *ast.CompositeLit:
		return t.composite(e)
	case *ast.FuncLit:
		fn := b.Function(t.at(e), "", nil)
		fn.Implicit = true
		t.function(fn, e.Type, e.Body)
		return frontend.Place(b, &graph.LambdaExpression{Function: fn}, t.at(e))
	case *ast.BinaryExpr:
		return b.Binary(t.at(e), e.Op.String(), t.expr(e.X), t.expr(e.Y))
	case *ast.UnaryExpr:
		return b.Unary(t.at(e), e.Op.String(), t.expr(e.X), false)
	case *ast.StarExpr:
		if t.isType(e) {
			return t.typeExpr(e)
		}
		return b.Unary(t.at(e), "*", t.expr(e.X), false)
	case *ast.CallExpr:
		return t.call(e)
	case *ast.SelectorExpr:
		if x, ok := e.X.(*ast.Ident); ok && t.isPackage(x) {
			return b.Ref(t.at(e), x.Name+"."+e.Sel.Name)
		}
		return b.Member(t.at(e), t.expr(e.X), e.Sel.Name, ".")
	case *ast.IndexExpr:
		if t.isGeneric(e.X) {
			return t.expr(e.X)
		}
		return b.Subscript(t.at(e), t.expr(e.X), t.expr(e.Index))
	case *ast.IndexListExpr:
		return t.expr(e.X)
	case *ast.SliceExpr:
		// A slice has the type of the sliced operand.
		return b.Unary(t.at(e), "[:]", t.expr(e.X), true)
	case *ast.TypeAssertExpr:
		return b.Cast(t.at(e), t.expr(e.X), t.typeOf(e.Type))
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.InterfaceType, *ast.StructType:
		return t.typeExpr(e)
	}
	return nil
}

func (t *translator) typeExpr(e ast.Expr) *graph.TypeExpression {
	te := frontend.Place(t.b, &graph.TypeExpression{}, t.at(e))
	graph.SetType(te, t.typeOf(e))
	return te
}

func (t *translator) ident(e *ast.Ident) graph.Expression {
	b := t.b
	o := t.at(e)
	switch e.Name {
	case "nil":
		return b.Literal(o, nil, "")
	case "true":
		return b.Literal(o, true, "bool")
	case "false":
		return b.Literal(o, false, "bool")
	}
	return b.Ref(o, e.Name)
}

func (t *translator) literal(e *ast.BasicLit) graph.Expression {
	b := t.b
	o := t.at(e)
	switch e.Kind {
	case token.INT:
		v, _ := frontend.IntLiteral(e.Value)
		return b.Literal(o, v, "int")
	case token.FLOAT:
		v, _ := frontend.FloatLiteral(e.Value)
		return b.Literal(o, v, "float64")
	case token.IMAG:
		return b.Literal(o, e.Value, "complex128")
	case token.CHAR:
		return b.Literal(o, frontend.CharLiteral(e.Value), "rune")
	case token.STRING:
		s, err := strconv.Unquote(e.Value)
		if err != nil {
			s = e.Value
		}
		return b.Literal(o, s, "string")
	}
	return nil
}

// composite translates T{...} into an initializer list of type T. Struct
// field keys are dropped; map keys are kept in front of their values.
func (t *translator) composite(e *ast.CompositeLit) graph.Expression {
	l := frontend.Place(t.b, &graph.InitializerListExpression{}, t.at(e))
	_, isMap := e.Type.(*ast.MapType)
	for _, elt := range e.Elts {
		if kv, ok := elt.(*ast.KeyValueExpr); ok {
			if _, field := kv.Key.(*ast.Ident); !field || isMap {
				if k := t.expr(kv.Key); k != nil {
					l.AddArgument(k)
				}
			}
			elt = kv.Value
		}
		if x := t.expr(elt); x != nil {
			l.AddArgument(x)
		}
	}
	if e.Type != nil {
		graph.SetType(l, t.typeOf(e.Type))
	}
	return l
}

// call translates calls. Conversions become casts, new, make and panic get
// their own node kinds, and calls of package qualified functions keep the
// qualifier in the callee name.
func (t *translator) call(e *ast.CallExpr) graph.Expression {
	b := t.b
	o := t.at(e)
	fun := ast.Unparen(e.Fun)
	if len(e.Args) == 1 && t.isType(fun) {
		return b.Cast(o, t.expr(e.Args[0]), t.typeOf(fun))
	}
	if id, ok := fun.(*ast.Ident); ok && t.isBuiltin(id) && len(e.Args) > 0 {
		switch id.Name {
		case "new":
			ne := frontend.Place(b, &graph.NewExpression{}, o)
			graph.SetType(ne, b.Type(typeString(e.Args[0])+"*"))
			return ne
		case "make":
			ac := frontend.Place(b, &graph.ArrayCreationExpression{}, o)
			for _, a := range e.Args[1:] {
				if x := t.expr(a); x != nil {
					ac.Dimensions = append(ac.Dimensions, x)
				}
			}
			graph.SetType(ac, t.typeOf(e.Args[0]))
			return ac
		case "panic":
			return b.Throw(o, t.expr(e.Args[0]))
		}
	}

	var args []graph.Expression
	for _, a := range e.Args {
		if x := t.expr(a); x != nil {
			args = append(args, x)
		}
	}
	switch f := fun.(type) {
	case *ast.Ident:
		return b.Call(o, f.Name, nil, args...)
	case *ast.SelectorExpr:
		if x, ok := f.X.(*ast.Ident); ok && t.isPackage(x) {
			name := x.Name + "." + f.Sel.Name
			return b.Call(o, name, b.Ref(t.at(f), name), args...)
		}
		return b.MemberCall(o, t.expr(f.X), f.Sel.Name, ".", args...)
	case *ast.IndexExpr:
		if id, ok := f.X.(*ast.Ident); ok {
			return b.Call(o, id.Name, nil, args...)
		}
	case *ast.IndexListExpr:
		if id, ok := f.X.(*ast.Ident); ok {
			return b.Call(o, id.Name, nil, args...)
		}
	}
	callee := t.expr(fun)
	return b.Call(o, t.at(fun).Code, callee, args...)
}

// isPackage reports whether id names an imported package. Without type
// information the file's imports decide.
func (t *translator) isPackage(id *ast.Ident) bool {
	if t.info != nil {
		if obj, ok := t.info.Uses[id]; ok {
			_, pkg := obj.(*types.PkgName)
			return pkg
		}
	}
	return t.imports[id.Name]
}

func (t *translator) isBuiltin(id *ast.Ident) bool {
	if t.info != nil {
		if obj, ok := t.info.Uses[id]; ok {
			_, builtin := obj.(*types.Builtin)
			return builtin
		}
	}
	switch id.Name {
	case "new", "make", "panic":
		return true
	}
	return false
}

// isType reports whether e denotes a type. Without type information only
// type literals, predeclared types and the package's own types are known.
func (t *translator) isType(e ast.Expr) bool {
	if t.info != nil {
		if tv, ok := t.info.Types[e]; ok {
			return tv.IsType()
		}
	}
	switch e := e.(type) {
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.InterfaceType, *ast.StructType:
		return true
	case *ast.StarExpr:
		return t.isType(e.X)
	case *ast.ParenExpr:
		return t.isType(e.X)
	case *ast.Ident:
		switch e.Name {
		case "error", "any":
			return true
		}
		return graph.Golang.IsPrimitive(e.Name) || t.records[e.Name] != nil
	}
	return false
}

// isGeneric reports whether indexing e instantiates a generic function or
// type rather than reading an element.
func (t *translator) isGeneric(e ast.Expr) bool {
	if t.info == nil {
		return false
	}
	tv, ok := t.info.Types[e]
	if !ok {
		return false
	}
	if tv.IsType() {
		return true
	}
	sig, ok := tv.Type.(*types.Signature)
	return ok && sig.TypeParams().Len() > 0
}
