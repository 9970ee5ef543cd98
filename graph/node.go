// Package graph holds the code property graph model: AST nodes, types, the
// type manager, type propagation and the EOG/DFG edge lists.
package graph

import (
	"fmt"
	"reflect"
)

// Location is a source range. Lines and columns are 1-based.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func (l *Location) String() string {
	if l == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.StartLine, l.StartCol)
}

// NodeBase holds the properties shared by every node kind.
type NodeBase struct {
	Name     string
	Code     string
	Location *Location
	Language *Language
	// Inferred marks nodes fabricated by the inference engine.
	Inferred bool
	// Implicit marks nodes that have no direct source counterpart.
	Implicit bool

	nextEOG []*EOGEdge
	prevEOG []*EOGEdge
	nextDFG []Node
	prevDFG []Node
}

// Base returns the node itself. It makes every struct embedding NodeBase a Node.
func (b *NodeBase) Base() *NodeBase { return b }

// NextEOG returns the outgoing EOG edges in index order.
func (b *NodeBase) NextEOG() []*EOGEdge { return b.nextEOG }

// PrevEOG returns the incoming EOG edges.
func (b *NodeBase) PrevEOG() []*EOGEdge { return b.prevEOG }

// NextDFG returns the nodes this node's value flows into.
func (b *NodeBase) NextDFG() []Node { return b.nextDFG }

// PrevDFG returns the nodes whose values flow into this node.
func (b *NodeBase) PrevDFG() []Node { return b.prevDFG }

// Node is implemented by every AST node kind. The set of kinds is closed:
// handlers type-switch over the concrete pointer types.
type Node interface {
	Base() *NodeBase
}

// Declaration is a node introducing a name.
type Declaration interface {
	Node
	declaration()
}

// Statement is a node that can appear in a statement list. Expressions are
// statements too.
type Statement interface {
	Node
	statement()
}

// Expression is a statement producing a typed value.
type Expression interface {
	Statement
	HasType
	expression()
}

// ValueDeclaration is a declaration carrying a type.
type ValueDeclaration interface {
	Declaration
	HasType
}

// ArgumentHolder is implemented by nodes holding an argument list.
type ArgumentHolder interface {
	Node
	Args() []Expression
	AddArgument(e Expression)
}

// StatementHolder is implemented by nodes holding a statement list.
type StatementHolder interface {
	Node
	Stmts() []Statement
	AddStatement(s Statement)
}

// DeclarationBase is embedded by every declaration kind.
type DeclarationBase struct {
	NodeBase
}

func (*DeclarationBase) declaration() {}

// StatementBase is embedded by every statement kind that is not an expression.
type StatementBase struct {
	NodeBase
}

func (*StatementBase) statement() {}

// ExpressionBase is embedded by every expression kind.
type ExpressionBase struct {
	NodeBase
	Typed
}

func (*ExpressionBase) statement()  {}
func (*ExpressionBase) expression() {}

// KindOf returns the node kind name, e.g. "BinaryOperator".
func KindOf(n Node) string {
	if n == nil {
		return ""
	}
	t := reflect.TypeOf(n)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// IsNil reports whether n is nil or a typed nil pointer.
func IsNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Describe renders a node for log output.
func Describe(n Node) string {
	if IsNil(n) {
		return "<nil>"
	}
	b := n.Base()
	if b.Name != "" {
		return fmt.Sprintf("%s %q at %s", KindOf(n), b.Name, b.Location)
	}
	return fmt.Sprintf("%s at %s", KindOf(n), b.Location)
}
