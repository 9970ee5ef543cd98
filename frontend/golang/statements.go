package golang

import (
	"go/ast"
	"go/token"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

func (t *translator) block(n *ast.BlockStmt) *graph.CompoundStatement {
	blk := t.b.Block(t.at(n))
	for _, s := range n.List {
		if st := t.stmt(s); st != nil {
			blk.AddStatement(st)
		}
	}
	return blk
}

// stmt translates a statement. Declarations of local types and fallthrough,
// which the enclosing switch handles, yield nil.
func (t *translator) stmt(s ast.Stmt) graph.Statement {
	b := t.b
	switch s := s.(type) {
	case nil:
		return nil
	case *ast.BlockStmt:
		return t.block(s)
	case *ast.ExprStmt:
		return t.exprStmt(s.X)
	case *ast.AssignStmt:
		return t.assign(s)
	case *ast.IncDecStmt:
		return b.Unary(t.at(s), s.Tok.String(), t.expr(s.X), true)
	case *ast.SendStmt:
		return b.Binary(t.at(s), "<-", t.expr(s.Chan), t.expr(s.Value))
	case *ast.DeclStmt:
		gd, ok := s.Decl.(*ast.GenDecl)
		if !ok || (gd.Tok != token.VAR && gd.Tok != token.CONST) {
			return nil
		}
		return b.Declare(t.at(s), t.valueSpecs(gd)...)
	case *ast.ReturnStmt:
		r := frontend.Place(b, &graph.ReturnStatement{}, t.at(s))
		r.Value = t.exprList(s, s.Results)
		return r
	case *ast.IfStmt:
		return frontend.Place(b, &graph.IfStatement{
			Initializer: t.stmt(s.Init),
			Condition:   t.expr(s.Cond),
			Then:        t.block(s.Body),
			Else:        t.stmt(s.Else),
		}, t.at(s))
	case *ast.ForStmt:
		return frontend.Place(b, &graph.ForStatement{
			Initializer: t.stmt(s.Init),
			Condition:   t.expr(s.Cond),
			Iteration:   t.stmt(s.Post),
			Body:        t.block(s.Body),
		}, t.at(s))
	case *ast.RangeStmt:
		return t.rangeStmt(s)
	case *ast.SwitchStmt:
		sw := frontend.Place(b, &graph.SwitchStatement{
			Initializer: t.stmt(s.Init),
			Selector:    t.expr(s.Tag),
		}, t.at(s))
		sw.Body = t.clauses(s.Body)
		return sw
	case *ast.TypeSwitchStmt:
		return t.typeSwitch(s)
	case *ast.SelectStmt:
		sw := frontend.Place(b, &graph.SwitchStatement{}, t.at(s))
		sw.Body = t.clauses(s.Body)
		return sw
	case *ast.BranchStmt:
		return t.branch(s)
	case *ast.LabeledStmt:
		return frontend.Place(b, &graph.LabelStatement{
			Label:        s.Label.Name,
			SubStatement: t.stmt(s.Stmt),
		}, t.at(s))
	case *ast.GoStmt:
		return t.exprStmt(s.Call)
	case *ast.DeferStmt:
		return t.exprStmt(s.Call)
	case *ast.EmptyStmt:
		return frontend.Place(b, &graph.EmptyStatement{}, t.at(s))
	}
	return nil
}

func (t *translator) exprStmt(e ast.Expr) graph.Statement {
	if x := t.expr(e); x != nil {
		return x
	}
	return nil
}

// exprList returns nothing, the only expression or an expression list.
func (t *translator) exprList(at ast.Node, exprs []ast.Expr) graph.Expression {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return t.expr(exprs[0])
	}
	list := frontend.Implicit(t.b, &graph.ExpressionList{}, t.at(at))
	for _, e := range exprs {
		if x := t.expr(e); x != nil {
			list.Expressions = append(list.Expressions, x)
		}
	}
	return list
}

// assign translates := into declarations and the other assignment tokens
// into assignment operators. Pairs of a parallel assignment become one
// expression list; a multi-value right side is assigned to the whole left
// side, or initializes the first declared name.
func (t *translator) assign(s *ast.AssignStmt) graph.Statement {
	b := t.b
	if s.Tok == token.DEFINE {
		ds := b.Declare(t.at(s))
		for i, lhs := range s.Lhs {
			var init graph.Expression
			switch {
			case len(s.Rhs) == len(s.Lhs):
				init = t.expr(s.Rhs[i])
			case i == 0:
				init = t.expr(s.Rhs[0])
			}
			name := ""
			if id, ok := lhs.(*ast.Ident); ok {
				name = id.Name
			}
			ds.Declarations = append(ds.Declarations, b.Var(t.at(lhs), name, nil, init))
		}
		return ds
	}

	op := s.Tok.String()
	if len(s.Lhs) == 1 && len(s.Rhs) == 1 {
		return b.Binary(t.at(s), op, t.expr(s.Lhs[0]), t.expr(s.Rhs[0]))
	}
	if len(s.Lhs) == len(s.Rhs) {
		list := frontend.Implicit(b, &graph.ExpressionList{}, t.at(s))
		for i := range s.Lhs {
			list.Expressions = append(list.Expressions, b.Binary(t.at(s.Lhs[i]), op, t.expr(s.Lhs[i]), t.expr(s.Rhs[i])))
		}
		return list
	}
	return b.Binary(t.at(s), op, t.exprList(s, s.Lhs), t.exprList(s, s.Rhs))
}

// rangeStmt declares the loop variables for := and assigns them otherwise.
func (t *translator) rangeStmt(s *ast.RangeStmt) *graph.ForEachStatement {
	b := t.b
	fe := frontend.Place(b, &graph.ForEachStatement{
		Iterable: t.expr(s.X),
		Body:     t.block(s.Body),
	}, t.at(s))
	var vars []ast.Expr
	for _, e := range []ast.Expr{s.Key, s.Value} {
		if e != nil {
			vars = append(vars, e)
		}
	}
	if len(vars) == 0 {
		return fe
	}
	if s.Tok == token.DEFINE {
		ds := b.Declare(t.at(vars[0]))
		for _, e := range vars {
			name := ""
			if id, ok := e.(*ast.Ident); ok {
				name = id.Name
			}
			ds.Declarations = append(ds.Declarations, b.Var(t.at(e), name, nil, nil))
		}
		fe.Variable = ds
		return fe
	}
	fe.Variable = t.exprList(s, vars)
	return fe
}

// clauses flattens case and comm clauses into a switch body. Each clause ends
// in an implicit break unless it falls through.
func (t *translator) clauses(body *ast.BlockStmt) *graph.CompoundStatement {
	b := t.b
	blk := b.Block(t.at(body))
	for _, c := range body.List {
		var (
			stmts []ast.Stmt
			at    = t.at(c)
		)
		switch c := c.(type) {
		case *ast.CaseClause:
			if c.List == nil {
				blk.AddStatement(frontend.Place(b, &graph.DefaultStatement{}, at))
			}
			for _, e := range c.List {
				blk.AddStatement(frontend.Place(b, &graph.CaseStatement{CaseExpression: t.caseExpr(e)}, at))
			}
			stmts = c.Body
		case *ast.CommClause:
			if c.Comm == nil {
				blk.AddStatement(frontend.Place(b, &graph.DefaultStatement{}, at))
			} else {
				cs := frontend.Place(b, &graph.CaseStatement{}, at)
				comm := t.stmt(c.Comm)
				if e, ok := comm.(graph.Expression); ok {
					cs.CaseExpression = e
					comm = nil
				}
				blk.AddStatement(cs)
				if comm != nil {
					blk.AddStatement(comm)
				}
			}
			stmts = c.Body
		default:
			continue
		}
		for _, s := range stmts {
			if st := t.stmt(s); st != nil {
				blk.AddStatement(st)
			}
		}
		if !fallsThrough(stmts) {
			blk.AddStatement(frontend.Implicit(b, &graph.BreakStatement{}, frontend.Origin{Loc: at.Loc}))
		}
	}
	return blk
}

// caseExpr translates a case value. Type switch cases list types.
func (t *translator) caseExpr(e ast.Expr) graph.Expression {
	if t.isType(e) {
		te := frontend.Place(t.b, &graph.TypeExpression{}, t.at(e))
		graph.SetType(te, t.typeOf(e))
		return te
	}
	return t.expr(e)
}

func fallsThrough(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	br, ok := stmts[len(stmts)-1].(*ast.BranchStmt)
	return ok && br.Tok == token.FALLTHROUGH
}

// typeSwitch binds the guard's variable, if any, to the value switched on.
func (t *translator) typeSwitch(s *ast.TypeSwitchStmt) *graph.SwitchStatement {
	b := t.b
	sw := frontend.Place(b, &graph.SwitchStatement{Initializer: t.stmt(s.Init)}, t.at(s))
	var (
		guard ast.Expr
		name  string
	)
	switch a := s.Assign.(type) {
	case *ast.AssignStmt:
		if len(a.Lhs) == 1 && len(a.Rhs) == 1 {
			guard = a.Rhs[0]
			if id, ok := a.Lhs[0].(*ast.Ident); ok {
				name = id.Name
			}
		}
	case *ast.ExprStmt:
		guard = a.X
	}
	if ta, ok := guard.(*ast.TypeAssertExpr); ok {
		guard = ta.X
	}
	if name != "" {
		sw.SelectorDeclaration = b.Var(t.at(s.Assign), name, nil, t.expr(guard))
	} else {
		sw.Selector = t.expr(guard)
	}
	sw.Body = t.clauses(s.Body)
	return sw
}

func (t *translator) branch(s *ast.BranchStmt) graph.Statement {
	b := t.b
	label := ""
	if s.Label != nil {
		label = s.Label.Name
	}
	switch s.Tok {
	case token.BREAK:
		return frontend.Place(b, &graph.BreakStatement{Label: label}, t.at(s))
	case token.CONTINUE:
		return frontend.Place(b, &graph.ContinueStatement{Label: label}, t.at(s))
	case token.GOTO:
		return frontend.Place(b, &graph.GotoStatement{LabelName: label}, t.at(s))
	}
	return nil
}
