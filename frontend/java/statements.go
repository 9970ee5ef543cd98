package java

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

// stmt translates a statement node. Nodes without a graph counterpart
// yield nil.
func (v *visitor) stmt(n *sitter.Node) graph.Statement {
	if n == nil {
		return nil
	}
	b := v.src.Builder
	o := v.at(n)
	switch n.Type() {
	case "block", "constructor_body":
		return v.block(n)
	case "expression_statement":
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			return v.exprStmt(inner[0])
		}
		return nil
	case "local_variable_declaration":
		return v.localDecl(n)
	case "if_statement":
		return frontend.Place(b, &graph.IfStatement{
			Condition: v.condition(n.ChildByFieldName("condition")),
			Then:      v.stmt(n.ChildByFieldName("consequence")),
			Else:      v.stmt(n.ChildByFieldName("alternative")),
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
		return v.forStmt(n)
	case "enhanced_for_statement":
		variable := b.Var(v.at(n.ChildByFieldName("name")), v.text(n.ChildByFieldName("name")), v.declaratorType(v.text(n.ChildByFieldName("type")), n), nil)
		return frontend.Place(b, &graph.ForEachStatement{
			Variable: b.Declare(v.at(n.ChildByFieldName("name")), variable),
			Iterable: v.expr(n.ChildByFieldName("value")),
			Body:     v.stmt(n.ChildByFieldName("body")),
		}, o)
	case "return_statement":
		r := frontend.Place(b, &graph.ReturnStatement{}, o)
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			r.Value = v.expr(inner[0])
		}
		return r
	case "break_statement":
		return frontend.Place(b, &graph.BreakStatement{Label: v.text(frontend.ChildOfType(n, "identifier"))}, o)
	case "continue_statement":
		return frontend.Place(b, &graph.ContinueStatement{Label: v.text(frontend.ChildOfType(n, "identifier"))}, o)
	case "throw_statement":
		var ex graph.Expression
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			ex = v.expr(inner[0])
		}
		return b.Throw(o, ex)
	case "try_statement", "try_with_resources_statement":
		return v.tryStmt(n)
	case "switch_expression", "switch_statement":
		return v.switchStmt(n)
	case "labeled_statement":
		l := frontend.Place(b, &graph.LabelStatement{Label: v.text(frontend.ChildOfType(n, "identifier"))}, o)
		for _, c := range frontend.NamedChildren(n) {
			if c.Type() != "identifier" {
				l.SubStatement = v.stmt(c)
			}
		}
		return l
	case "synchronized_statement":
		s := frontend.Place(b, &graph.SynchronizedStatement{
			Expression: v.condition(frontend.ChildOfType(n, "parenthesized_expression")),
		}, o)
		if body := n.ChildByFieldName("body"); body != nil {
			s.Block = v.block(body)
		}
		return s
	case "assert_statement":
		a := frontend.Place(b, &graph.AssertStatement{}, o)
		inner := frontend.NamedChildren(n)
		if len(inner) > 0 {
			a.Condition = v.expr(inner[0])
		}
		if len(inner) > 1 {
			if msg := v.expr(inner[1]); msg != nil {
				a.Message = msg
			}
		}
		return a
	case "explicit_constructor_invocation":
		return v.constructorInvocation(n)
	case "yield_statement":
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			return v.exprStmt(inner[0])
		}
		return nil
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "local_class_declaration":
		// Local types are not statements; their declarations are not evaluated.
		return nil
	}
	return v.exprStmt(n)
}

// exprStmt wraps an expression as a statement, keeping a nil result nil.
func (v *visitor) exprStmt(n *sitter.Node) graph.Statement {
	if e := v.expr(n); e != nil {
		return e
	}
	return nil
}

func (v *visitor) localDecl(n *sitter.Node) *graph.DeclarationStatement {
	typeText := v.text(n.ChildByFieldName("type"))
	ds := v.src.Declare(v.at(n))
	for _, d := range frontend.NamedChildren(n) {
		if d.Type() != "variable_declarator" {
			continue
		}
		variable := v.src.Var(v.at(d), v.text(d.ChildByFieldName("name")), v.declaratorType(typeText, d), v.initializer(d.ChildByFieldName("value")))
		ds.Declarations = append(ds.Declarations, variable)
	}
	return ds
}

// forStmt splits the header at its semicolons: init ; condition ; update.
// A local variable declaration init carries its own semicolon.
func (v *visitor) forStmt(n *sitter.Node) *graph.ForStatement {
	b := v.src.Builder
	f := frontend.Place(b, &graph.ForStatement{}, v.at(n))
	var inits, updates []graph.Statement
	segment := 0
loop:
	for _, c := range frontend.Children(n) {
		switch {
		case c.Type() == ")":
			break loop
		case c.Type() == ";":
			segment++
		case c.Type() == "local_variable_declaration":
			inits = append(inits, v.localDecl(c))
			segment++
		case !c.IsNamed():
		case segment == 0:
			if e := v.expr(c); e != nil {
				inits = append(inits, e)
			}
		case segment == 1:
			f.Condition = v.expr(c)
		default:
			if e := v.expr(c); e != nil {
				updates = append(updates, e)
			}
		}
	}
	f.Initializer = sequence(b, inits)
	f.Iteration = sequence(b, updates)
	f.Body = v.stmt(n.ChildByFieldName("body"))
	return f
}

// sequence returns a single statement as is and several as an expression
// list evaluated in order.
func sequence(b *frontend.Builder, stmts []graph.Statement) graph.Statement {
	switch len(stmts) {
	case 0:
		return nil
	case 1:
		return stmts[0]
	}
	return frontend.Implicit(b, &graph.ExpressionList{Expressions: stmts}, frontend.Origin{Loc: stmts[0].Base().Location})
}

func (v *visitor) tryStmt(n *sitter.Node) *graph.TryStatement {
	b := v.src.Builder
	t := frontend.Place(b, &graph.TryStatement{}, v.at(n))
	if res := n.ChildByFieldName("resources"); res != nil {
		for _, r := range frontend.NamedChildren(res) {
			if name := r.ChildByFieldName("name"); name != nil {
				variable := b.Var(v.at(r), v.text(name), v.declaratorType(v.text(r.ChildByFieldName("type")), r), v.expr(r.ChildByFieldName("value")))
				t.Resources = append(t.Resources, b.Declare(v.at(r), variable))
				continue
			}
			if inner := frontend.NamedChildren(r); len(inner) == 1 {
				if e := v.expr(inner[0]); e != nil {
					t.Resources = append(t.Resources, e)
				}
			}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		t.TryBlock = v.block(body)
	}
	for _, c := range frontend.NamedChildren(n) {
		switch c.Type() {
		case "catch_clause":
			t.CatchClauses = append(t.CatchClauses, v.catchClause(c))
		case "finally_clause":
			if blk := frontend.ChildOfType(c, "block"); blk != nil {
				t.FinallyBlock = v.block(blk)
			}
		}
	}
	return t
}

// catchClause builds the clause parameter; a multi-catch parameter gets
// every alternative as a possible type.
func (v *visitor) catchClause(n *sitter.Node) *graph.CatchClause {
	b := v.src.Builder
	cc := frontend.Place(b, &graph.CatchClause{}, v.at(n))
	if p := frontend.ChildOfType(n, "catch_formal_parameter"); p != nil {
		param := b.Var(v.at(p), v.text(p.ChildByFieldName("name")), nil, nil)
		for _, alt := range frontend.NamedChildren(frontend.ChildOfType(p, "catch_type")) {
			graph.SetType(param, v.typeOf(alt))
		}
		cc.Parameter = param
	}
	if body := n.ChildByFieldName("body"); body != nil {
		cc.Body = v.block(body)
	}
	return cc
}

// switchStmt flattens case groups into the switch body. Arrow rules do not
// fall through and get an implicit break.
func (v *visitor) switchStmt(n *sitter.Node) *graph.SwitchStatement {
	b := v.src.Builder
	s := frontend.Place(b, &graph.SwitchStatement{
		Selector: v.condition(n.ChildByFieldName("condition")),
	}, v.at(n))
	body := n.ChildByFieldName("body")
	s.Body = b.Block(v.at(body))
	for _, group := range frontend.NamedChildren(body) {
		switch group.Type() {
		case "switch_block_statement_group", "switch_rule":
		default:
			continue
		}
		for _, c := range frontend.NamedChildren(group) {
			if c.Type() == "switch_label" {
				v.switchLabel(s.Body, c)
				continue
			}
			if st := v.stmt(c); st != nil {
				s.Body.AddStatement(st)
			}
		}
		if group.Type() == "switch_rule" {
			s.Body.AddStatement(frontend.Implicit(b, &graph.BreakStatement{}, frontend.Origin{Loc: v.at(group).Loc}))
		}
	}
	return s
}

func (v *visitor) switchLabel(body *graph.CompoundStatement, n *sitter.Node) {
	b := v.src.Builder
	if strings.HasPrefix(v.text(n), "default") {
		body.AddStatement(frontend.Place(b, &graph.DefaultStatement{}, v.at(n)))
		return
	}
	for _, e := range frontend.NamedChildren(n) {
		body.AddStatement(frontend.Place(b, &graph.CaseStatement{CaseExpression: v.expr(e)}, v.at(n)))
	}
}

// constructorInvocation turns this(...) and super(...) into a construction
// of the own or the super record.
func (v *visitor) constructorInvocation(n *sitter.Node) graph.Statement {
	rec := v.currentRecord()
	if rec == nil {
		return nil
	}
	t := graph.Type(rec.ToType())
	if strings.HasPrefix(v.text(n.ChildByFieldName("constructor")), "super") {
		if len(rec.SuperClasses) == 0 {
			return nil
		}
		t = rec.SuperClasses[0]
	}
	c := v.src.Construct(v.at(n), t, v.args(n.ChildByFieldName("arguments"))...)
	c.Implicit = true
	return c
}
