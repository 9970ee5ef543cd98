package graph

// Children returns the AST children of n in source order. Nil children are
// omitted.
func Children(n Node) []Node {
	var out []Node
	add := func(c ...Node) {
		for _, x := range c {
			if !IsNil(x) {
				out = append(out, x)
			}
		}
	}
	switch n := n.(type) {
	case *TranslationUnitDeclaration:
		for _, d := range n.Declarations {
			add(d)
		}
		for _, s := range n.Statements {
			add(s)
		}
	case *NamespaceDeclaration:
		for _, d := range n.Declarations {
			add(d)
		}
		for _, s := range n.Statements {
			add(s)
		}
	case *RecordDeclaration:
		for _, p := range n.TypeParams {
			add(p)
		}
		for _, f := range n.Fields {
			add(f)
		}
		for _, c := range n.Constructors {
			add(c)
		}
		for _, m := range n.Methods {
			add(m)
		}
		for _, r := range n.Records {
			add(r)
		}
		for _, b := range n.StaticBlocks {
			add(b)
		}
		for _, s := range n.Statements {
			add(s)
		}
	case *FieldDeclaration:
		add(n.initializer)
	case *VariableDeclaration:
		add(n.initializer)
	case *ParamVariableDeclaration:
		add(n.Default)
	case *FunctionDeclaration:
		functionChildren(n, add)
	case *MethodDeclaration:
		add(n.Receiver)
		functionChildren(&n.FunctionDeclaration, add)
	case *ConstructorDeclaration:
		functionChildren(&n.FunctionDeclaration, add)

	case *CompoundStatement:
		for _, s := range n.Statements {
			add(s)
		}
	case *DeclarationStatement:
		for _, d := range n.Declarations {
			add(d)
		}
	case *ReturnStatement:
		add(n.Value)
	case *IfStatement:
		add(n.Initializer, n.ConditionDeclaration, n.Condition, n.Then, n.Else)
	case *WhileStatement:
		add(n.ConditionDeclaration, n.Condition, n.Body)
	case *DoStatement:
		add(n.Body, n.Condition)
	case *ForStatement:
		add(n.Initializer, n.ConditionDeclaration, n.Condition, n.Iteration, n.Body)
	case *ForEachStatement:
		add(n.Variable, n.Iterable, n.Body)
	case *SwitchStatement:
		add(n.Initializer, n.SelectorDeclaration, n.Selector, n.Body)
	case *CaseStatement:
		add(n.CaseExpression)
	case *LabelStatement:
		add(n.SubStatement)
	case *TryStatement:
		for _, r := range n.Resources {
			add(r)
		}
		add(n.TryBlock)
		for _, c := range n.CatchClauses {
			add(c)
		}
		add(n.FinallyBlock)
	case *CatchClause:
		add(n.Parameter, n.Body)
	case *SynchronizedStatement:
		add(n.Expression, n.Block)
	case *AssertStatement:
		add(n.Condition, n.Message)

	case *MemberExpression:
		add(n.receiver)
	case *BinaryOperator:
		add(n.lhs, n.rhs)
	case *UnaryOperator:
		add(n.input)
	case *ThrowExpression:
		add(n.Exception)
	case *CallExpression:
		callChildren(n, add)
	case *MemberCallExpression:
		callChildren(&n.CallExpression, add)
	case *ConstructExpression:
		for _, a := range n.Arguments {
			add(a)
		}
	case *NewExpression:
		add(n.initializer)
	case *ConditionalExpression:
		add(n.Condition, n.thenExpr, n.elseExpr)
	case *ArraySubscriptionExpression:
		add(n.arrayExpression, n.SubscriptExpression)
	case *ArrayCreationExpression:
		for _, d := range n.Dimensions {
			add(d)
		}
		add(n.Initializer)
	case *CastExpression:
		add(n.Expression)
	case *InitializerListExpression:
		for _, e := range n.Initializers {
			add(e)
		}
	case *ExpressionList:
		for _, e := range n.Expressions {
			add(e)
		}
	case *DeleteExpression:
		add(n.Operand)
	case *LambdaExpression:
		add(n.Function)
	}
	return out
}

func functionChildren(f *FunctionDeclaration, add func(...Node)) {
	for _, p := range f.TypeParams {
		add(p)
	}
	for _, p := range f.Parameters {
		add(p)
	}
	add(f.Body)
}

func callChildren(c *CallExpression, add func(...Node)) {
	add(c.callee)
	for _, a := range c.Arguments {
		add(a)
	}
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if IsNil(n) {
		return
	}
	seen := make(map[Node]struct{})
	var visit func(Node)
	visit = func(x Node) {
		if _, ok := seen[x]; ok {
			return
		}
		seen[x] = struct{}{}
		if !fn(x) {
			return
		}
		for _, c := range Children(x) {
			visit(c)
		}
	}
	visit(n)
}

// Flatten returns n and all its descendants in pre-order.
func Flatten(n Node) []Node {
	var out []Node
	Walk(n, func(x Node) bool {
		out = append(out, x)
		return true
	})
	return out
}

// AllOf returns every node of type T below the given roots.
func AllOf[T Node](roots ...Node) []T {
	var out []T
	for _, r := range roots {
		Walk(r, func(x Node) bool {
			if t, ok := x.(T); ok {
				out = append(out, t)
			}
			return true
		})
	}
	return out
}
