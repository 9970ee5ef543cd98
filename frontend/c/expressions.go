package c

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

// expr translates an expression node. Unsupported kinds yield nil.
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

	case "number_literal":
		return v.number(o)
	case "char_literal":
		return b.Literal(o, frontend.CharLiteral(o.Code), "char")
	case "string_literal":
		return b.Literal(o, frontend.StringLiteral(o.Code), "char*")
	case "concatenated_string":
		var sb strings.Builder
		for _, part := range frontend.NamedChildren(n) {
			if part.Type() == "string_literal" {
				sb.WriteString(frontend.StringLiteral(v.text(part)))
			}
		}
		return b.Literal(o, sb.String(), "char*")
	case "true":
		return b.Literal(o, true, "bool")
	case "false":
		return b.Literal(o, false, "bool")
	case "null":
		return b.Literal(o, nil, "")

	case "assignment_expression", "binary_expression":
		return b.Binary(o, v.text(n.ChildByFieldName("operator")),
			v.expr(n.ChildByFieldName("left")), v.expr(n.ChildByFieldName("right")))
	case "unary_expression", "pointer_expression":
		return b.Unary(o, v.text(n.ChildByFieldName("operator")), v.expr(n.ChildByFieldName("argument")), false)
	case "update_expression":
		arg := n.ChildByFieldName("argument")
		op := n.ChildByFieldName("operator")
		postfix := arg != nil && op != nil && arg.StartByte() < op.StartByte()
		return b.Unary(o, v.text(op), v.expr(arg), postfix)
	case "conditional_expression":
		return b.Conditional(o, v.expr(n.ChildByFieldName("condition")),
			v.expr(n.ChildByFieldName("consequence")), v.expr(n.ChildByFieldName("alternative")))
	case "cast_expression":
		return b.Cast(o, v.expr(n.ChildByFieldName("value")), v.typeDescriptor(n.ChildByFieldName("type")))
	case "sizeof_expression", "alignof_expression":
		// The operand is not evaluated.
		te := frontend.Place(b, &graph.TypeExpression{}, o)
		graph.SetType(te, b.Type("size_t"))
		return te
	case "comma_expression":
		list := frontend.Place(b, &graph.ExpressionList{}, o)
		for _, side := range []string{"left", "right"} {
			if e := v.expr(n.ChildByFieldName(side)); e != nil {
				list.Expressions = append(list.Expressions, e)
			}
		}
		return list

	case "call_expression":
		return v.call(n)
	case "field_expression":
		return b.Member(o, v.expr(n.ChildByFieldName("argument")),
			v.text(n.ChildByFieldName("field")), v.text(n.ChildByFieldName("operator")))
	case "subscript_expression":
		index := n.ChildByFieldName("index")
		if index == nil {
			if inner := frontend.NamedChildren(n); len(inner) == 2 {
				index = inner[1]
			}
		}
		return b.Subscript(o, v.expr(n.ChildByFieldName("argument")), v.expr(index))
	case "initializer_list":
		return v.initList(n)
	case "compound_literal_expression":
		value := n.ChildByFieldName("value")
		if value == nil {
			return nil
		}
		list := v.initList(value)
		graph.SetType(list, v.typeDescriptor(n.ChildByFieldName("type")))
		return list
	}
	return nil
}

// number types a numeric literal by its form and suffix.
func (v *visitor) number(o frontend.Origin) graph.Expression {
	b := v.src.Builder
	if frontend.IsFloatLiteral(o.Code) {
		val, _ := frontend.FloatLiteral(o.Code)
		if strings.HasSuffix(o.Code, "f") || strings.HasSuffix(o.Code, "F") {
			return b.Literal(o, val, "float")
		}
		return b.Literal(o, val, "double")
	}
	val, _ := frontend.IntLiteral(o.Code)
	suffix := strings.ToLower(strings.TrimLeft(o.Code, "0123456789abcdefABCDEFxX'"))
	typ := "int"
	if strings.Contains(suffix, "l") {
		typ = "long"
	}
	if strings.Contains(suffix, "u") {
		typ = "unsigned " + typ
	}
	return b.Literal(o, val, typ)
}

// call builds a call to a named function, or a call through the callee
// expression for function pointers and struct members.
func (v *visitor) call(n *sitter.Node) graph.Expression {
	b := v.src.Builder
	o := v.at(n)
	var args []graph.Expression
	for _, a := range frontend.NamedChildren(n.ChildByFieldName("arguments")) {
		if e := v.expr(a); e != nil {
			args = append(args, e)
		}
	}
	fn := n.ChildByFieldName("function")
	if fn != nil && fn.Type() == "identifier" {
		return b.Call(o, v.text(fn), nil, args...)
	}
	callee := v.expr(fn)
	name := v.text(fn)
	if m, ok := callee.(*graph.MemberExpression); ok {
		name = m.Name
	}
	return b.Call(o, name, callee, args...)
}

// typeDescriptor parses the type of casts and compound literals, including
// abstract declarators such as the star of (char *).
func (v *visitor) typeDescriptor(n *sitter.Node) graph.Type {
	if n == nil {
		return nil
	}
	d := v.declarator(n.ChildByFieldName("declarator"), v.baseType(n))
	return v.src.Type(d.typ)
}
