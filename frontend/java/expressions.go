package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

// expr translates an expression node. Unsupported kinds are skipped and
// yield nil.
func (v *visitor) expr(n *sitter.Node) graph.Expression {
	if n == nil {
		return nil
	}
	b := v.src.Builder
	o := v.at(n)
	switch n.Type() {
	case "parenthesized_expression":
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			return v.expr(inner[0])
		}
		return nil
	case "identifier":
		return b.Ref(o, o.Code)
	case "this":
		if rec := v.currentRecord(); rec != nil {
			return b.TypedRef(o, "this", rec.ToType())
		}
		return b.Ref(o, "this")
	case "super":
		if rec := v.currentRecord(); rec != nil && len(rec.SuperClasses) > 0 {
			return b.TypedRef(o, "super", rec.SuperClasses[0])
		}
		return b.Ref(o, "super")

	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		val, _ := frontend.IntLiteral(o.Code)
		if frontend.LongSuffix(o.Code) {
			return b.Literal(o, val, "long")
		}
		return b.Literal(o, val, "int")
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		val, _ := frontend.FloatLiteral(o.Code)
		if strings.HasSuffix(o.Code, "f") || strings.HasSuffix(o.Code, "F") {
			return b.Literal(o, val, "float")
		}
		return b.Literal(o, val, "double")
	case "true":
		return b.Literal(o, true, "boolean")
	case "false":
		return b.Literal(o, false, "boolean")
	case "character_literal":
		return b.Literal(o, frontend.CharLiteral(o.Code), "char")
	case "string_literal", "text_block":
		return b.Literal(o, frontend.StringLiteral(o.Code), "String")
	case "null_literal":
		return b.Literal(o, nil, "")
	case "class_literal":
		te := frontend.Place(b, &graph.TypeExpression{}, o)
		graph.SetType(te, b.Type("Class"))
		return te

	case "assignment_expression", "binary_expression":
		return b.Binary(o, v.text(n.ChildByFieldName("operator")),
			v.expr(n.ChildByFieldName("left")), v.expr(n.ChildByFieldName("right")))
	case "instanceof_expression":
		te := frontend.Place(b, &graph.TypeExpression{}, v.at(n.ChildByFieldName("right")))
		graph.SetType(te, v.typeOf(n.ChildByFieldName("right")))
		return b.Binary(o, "instanceof", v.expr(n.ChildByFieldName("left")), te)
	case "unary_expression":
		return b.Unary(o, v.text(n.ChildByFieldName("operator")), v.expr(n.ChildByFieldName("operand")), false)
	case "update_expression":
		return v.update(n)
	case "cast_expression":
		return b.Cast(o, v.expr(n.ChildByFieldName("value")), v.typeOf(n.ChildByFieldName("type")))
	case "ternary_expression":
		return b.Conditional(o, v.expr(n.ChildByFieldName("condition")),
			v.expr(n.ChildByFieldName("consequence")), v.expr(n.ChildByFieldName("alternative")))

	case "method_invocation":
		return v.call(n)
	case "object_creation_expression":
		t := v.typeOf(n.ChildByFieldName("type"))
		return b.New(o, b.Construct(o, t, v.args(n.ChildByFieldName("arguments"))...))
	case "array_creation_expression":
		return v.arrayCreation(n)
	case "array_initializer":
		return v.initList(n)
	case "array_access":
		return b.Subscript(o, v.expr(n.ChildByFieldName("array")), v.expr(n.ChildByFieldName("index")))
	case "field_access":
		return b.Member(o, v.expr(n.ChildByFieldName("object")), v.text(n.ChildByFieldName("field")), ".")
	case "lambda_expression":
		return v.lambda(n)
	case "method_reference":
		return b.Ref(o, o.Code)
	case "switch_expression":
		// A switch used as a value; its cases still evaluate in order.
		list := frontend.Place(b, &graph.ExpressionList{}, o)
		list.Expressions = append(list.Expressions, v.switchStmt(n))
		return list
	}
	return nil
}

// update translates ++ and --. The operator follows the operand when the
// first child is the operand.
func (v *visitor) update(n *sitter.Node) graph.Expression {
	children := frontend.Children(n)
	if len(children) != 2 {
		return nil
	}
	if children[0].IsNamed() {
		return v.src.Unary(v.at(n), v.text(children[1]), v.expr(children[0]), true)
	}
	return v.src.Unary(v.at(n), v.text(children[0]), v.expr(children[1]), false)
}

func (v *visitor) args(list *sitter.Node) []graph.Expression {
	var out []graph.Expression
	for _, a := range frontend.NamedChildren(list) {
		if e := v.expr(a); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// call builds a free call for name(args) and a member call for
// object.name(args). Calls on this stay member calls.
func (v *visitor) call(n *sitter.Node) graph.Expression {
	b := v.src.Builder
	o := v.at(n)
	name := v.text(n.ChildByFieldName("name"))
	args := v.args(n.ChildByFieldName("arguments"))
	obj := n.ChildByFieldName("object")
	if obj == nil {
		return b.Call(o, name, nil, args...)
	}
	mc := b.MemberCall(o, v.expr(obj), name, ".", args...)
	if obj.Type() == "identifier" && isTypeName(v.text(obj)) {
		mc.IsStatic = true
	}
	return mc
}

// isTypeName applies the Java naming convention: types start upper case.
func isTypeName(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

func (v *visitor) arrayCreation(n *sitter.Node) graph.Expression {
	b := v.src.Builder
	a := frontend.Place(b, &graph.ArrayCreationExpression{}, v.at(n))
	depth := 0
	for _, c := range frontend.NamedChildren(n) {
		switch c.Type() {
		case "dimensions_expr":
			depth++
			if inner := frontend.NamedChildren(c); len(inner) == 1 {
				if e := v.expr(inner[0]); e != nil {
					a.Dimensions = append(a.Dimensions, e)
				}
			}
		case "dimensions":
			depth += strings.Count(v.text(c), "[")
		}
	}
	if init := n.ChildByFieldName("value"); init != nil {
		a.Initializer = v.initList(init)
	}
	graph.SetType(a, b.Type(v.text(n.ChildByFieldName("type"))+strings.Repeat("[]", depth)))
	return a
}

func (v *visitor) lambda(n *sitter.Node) graph.Expression {
	b := v.src.Builder
	o := v.at(n)
	fn := b.Function(o, "", nil)
	fn.Implicit = true
	params := n.ChildByFieldName("parameters")
	switch {
	case params == nil:
	case params.Type() == "identifier":
		fn.AddParameter(b.Param(v.at(params), v.text(params), nil, false))
	case params.Type() == "formal_parameters":
		v.params(fn, params)
	default:
		for _, p := range frontend.NamedChildren(params) {
			fn.AddParameter(b.Param(v.at(p), v.text(p), nil, false))
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if body.Type() == "block" {
			fn.Body = v.block(body)
		} else {
			ret := frontend.Implicit(b, &graph.ReturnStatement{Value: v.expr(body)}, v.at(body))
			fn.Body = b.Block(v.at(body), ret)
		}
	}
	return frontend.Place(b, &graph.LambdaExpression{Function: fn}, o)
}
