package graph

// CompoundStatement is a block.
type CompoundStatement struct {
	StatementBase
	Statements []Statement
}

func (c *CompoundStatement) Stmts() []Statement       { return c.Statements }
func (c *CompoundStatement) AddStatement(s Statement) { c.Statements = append(c.Statements, s) }

// DeclarationStatement wraps local declarations appearing in a block.
type DeclarationStatement struct {
	StatementBase
	Declarations []Declaration
}

// SingleDeclaration returns the only declaration, or nil when there are
// several.
func (d *DeclarationStatement) SingleDeclaration() Declaration {
	if len(d.Declarations) != 1 {
		return nil
	}
	return d.Declarations[0]
}

type ReturnStatement struct {
	StatementBase
	Value Expression
}

// IfStatement covers if/else chains. Initializer and ConditionDeclaration
// model C++17 and Go init statements.
type IfStatement struct {
	StatementBase
	Initializer          Statement
	ConditionDeclaration Declaration
	Condition            Expression
	Then                 Statement
	Else                 Statement
}

type WhileStatement struct {
	StatementBase
	ConditionDeclaration Declaration
	Condition            Expression
	Body                 Statement
}

type DoStatement struct {
	StatementBase
	Body      Statement
	Condition Expression
}

type ForStatement struct {
	StatementBase
	Initializer          Statement
	ConditionDeclaration Declaration
	Condition            Expression
	Iteration            Statement
	Body                 Statement
}

// ForEachStatement iterates Iterable, binding Variable on every round.
type ForEachStatement struct {
	StatementBase
	Variable Statement
	Iterable Statement
	Body     Statement
}

type SwitchStatement struct {
	StatementBase
	Initializer         Statement
	SelectorDeclaration Declaration
	Selector            Expression
	Body                *CompoundStatement
}

type CaseStatement struct {
	StatementBase
	CaseExpression Expression
}

type DefaultStatement struct {
	StatementBase
}

// BreakStatement leaves the innermost breakable statement, or the labelled
// one when Label is set.
type BreakStatement struct {
	StatementBase
	Label string
}

type ContinueStatement struct {
	StatementBase
	Label string
}

type LabelStatement struct {
	StatementBase
	Label        string
	SubStatement Statement
}

// GotoStatement jumps to TargetLabel. LabelName is what the source says;
// TargetLabel is filled in by the frontend or the EOG pass.
type GotoStatement struct {
	StatementBase
	LabelName   string
	TargetLabel *LabelStatement
}

type TryStatement struct {
	StatementBase
	Resources    []Statement
	TryBlock     *CompoundStatement
	CatchClauses []*CatchClause
	FinallyBlock *CompoundStatement
}

// CatchClause handles exceptions of its parameter's type. A nil Parameter
// catches everything.
type CatchClause struct {
	StatementBase
	Parameter *VariableDeclaration
	Body      *CompoundStatement
}

type EmptyStatement struct {
	StatementBase
}

type SynchronizedStatement struct {
	StatementBase
	Expression Expression
	Block      *CompoundStatement
}

type AssertStatement struct {
	StatementBase
	Condition Expression
	Message   Statement
}
