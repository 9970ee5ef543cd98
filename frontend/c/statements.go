package c

import (
	sitter "github.com/smacker/go-tree-sitter"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

func (v *visitor) block(n *sitter.Node) *graph.CompoundStatement {
	blk := v.src.Block(v.at(n))
	for _, s := range frontend.NamedChildren(n) {
		if st := v.stmt(s); st != nil {
			blk.AddStatement(st)
		}
	}
	return blk
}

// stmt translates a statement node. Nodes without a graph counterpart, such
// as local typedefs, yield nil.
func (v *visitor) stmt(n *sitter.Node) graph.Statement {
	if n == nil {
		return nil
	}
	b := v.src.Builder
	o := v.at(n)
	switch n.Type() {
	case "compound_statement":
		return v.block(n)
	case "expression_statement":
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			return v.exprStmt(inner[0])
		}
		return frontend.Place(b, &graph.EmptyStatement{}, o)
	case "declaration":
		return v.localDecl(n)
	case "if_statement":
		return frontend.Place(b, &graph.IfStatement{
			Condition: v.condition(n.ChildByFieldName("condition")),
			Then:      v.stmt(n.ChildByFieldName("consequence")),
			Else:      v.elseBranch(n.ChildByFieldName("alternative")),
		}, o)
	case "while_statement":
		return frontend.Place(b, &graph.WhileStatement{
			Condition: v.condition(n.ChildByFieldName("condition")),
			Body:      v.stmt(n.ChildByFieldName("body")),
		}, o)
	case "do_statement":
		return frontend.Place(b, &graph.DoStatement{
			Body:      v.stmt(n.ChildByFieldName("body")),
			Condition: v.condition(n.ChildByFieldName("condition")),
		}, o)
	case "for_statement":
		f := frontend.Place(b, &graph.ForStatement{
			Condition: v.expr(n.ChildByFieldName("condition")),
			Body:      v.stmt(n.ChildByFieldName("body")),
		}, o)
		if init := n.ChildByFieldName("initializer"); init != nil {
			if init.Type() == "declaration" {
				f.Initializer = v.localDecl(init)
			} else {
				f.Initializer = v.exprStmt(init)
			}
		}
		if update := n.ChildByFieldName("update"); update != nil {
			f.Iteration = v.exprStmt(update)
		}
		return f
	case "return_statement":
		r := frontend.Place(b, &graph.ReturnStatement{}, o)
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			r.Value = v.expr(inner[0])
		}
		return r
	case "break_statement":
		return frontend.Place(b, &graph.BreakStatement{}, o)
	case "continue_statement":
		return frontend.Place(b, &graph.ContinueStatement{}, o)
	case "goto_statement":
		return frontend.Place(b, &graph.GotoStatement{LabelName: v.text(n.ChildByFieldName("label"))}, o)
	case "labeled_statement":
		label := n.ChildByFieldName("label")
		l := frontend.Place(b, &graph.LabelStatement{Label: v.text(label)}, o)
		for _, c := range frontend.NamedChildren(n) {
			if !frontend.SameNode(c, label) {
				l.SubStatement = v.stmt(c)
			}
		}
		return l
	case "switch_statement":
		return v.switchStmt(n)
	case "type_definition", "struct_specifier", "union_specifier", "enum_specifier":
		return nil
	}
	return v.exprStmt(n)
}

// elseBranch unwraps the else clause newer grammars put around the
// alternative.
func (v *visitor) elseBranch(n *sitter.Node) graph.Statement {
	if n != nil && n.Type() == "else_clause" {
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			return v.stmt(inner[0])
		}
		return nil
	}
	return v.stmt(n)
}

func (v *visitor) exprStmt(n *sitter.Node) graph.Statement {
	if e := v.expr(n); e != nil {
		return e
	}
	return nil
}

func (v *visitor) localDecl(n *sitter.Node) *graph.DeclarationStatement {
	ds := v.src.Declare(v.at(n))
	ds.Declarations = v.declaration(n, false)
	return ds
}

// condition unwraps the parentheses around if, while and switch conditions.
func (v *visitor) condition(n *sitter.Node) graph.Expression {
	if n == nil {
		return nil
	}
	if n.Type() == "parenthesized_expression" {
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			return v.expr(inner[0])
		}
	}
	return v.expr(n)
}

// switchStmt flattens the case statements, which hold the statements that
// follow their label, into the switch body.
func (v *visitor) switchStmt(n *sitter.Node) *graph.SwitchStatement {
	b := v.src.Builder
	s := frontend.Place(b, &graph.SwitchStatement{
		Selector: v.condition(n.ChildByFieldName("condition")),
	}, v.at(n))
	body := n.ChildByFieldName("body")
	s.Body = b.Block(v.at(body))
	for _, c := range frontend.NamedChildren(body) {
		if c.Type() != "case_statement" {
			if st := v.stmt(c); st != nil {
				s.Body.AddStatement(st)
			}
			continue
		}
		value := c.ChildByFieldName("value")
		if value == nil {
			s.Body.AddStatement(frontend.Place(b, &graph.DefaultStatement{}, v.at(c)))
		} else {
			s.Body.AddStatement(frontend.Place(b, &graph.CaseStatement{CaseExpression: v.expr(value)}, v.at(c)))
		}
		for _, inner := range frontend.NamedChildren(c) {
			if frontend.SameNode(inner, value) {
				continue
			}
			if st := v.stmt(inner); st != nil {
				s.Body.AddStatement(st)
			}
		}
	}
	return s
}
