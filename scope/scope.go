// Package scope implements the scope tree: lexical and semantic scopes
// mirroring the AST nesting, their symbol tables and the control escape
// bookkeeping used while building the EOG.
package scope

import (
	"slices"
	"sort"

	"cpg-enrich/graph"
)

// Kind enumerates the scope categories.
type Kind uint8

const (
	KindGlobal Kind = iota
	KindNamespace
	KindRecord
	KindFunction
	KindBlock
	KindLoop
	KindTry
	KindSwitch
)

func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindNamespace:
		return "namespace"
	case KindRecord:
		return "record"
	case KindFunction:
		return "function"
	case KindBlock:
		return "block"
	case KindLoop:
		return "loop"
	case KindTry:
		return "try"
	case KindSwitch:
		return "switch"
	default:
		return "invalid"
	}
}

// KindFor returns the kind of scope node opens, and false when node does
// not open a scope.
func KindFor(node graph.Node) (Kind, bool) {
	switch node.(type) {
	case *graph.TranslationUnitDeclaration:
		return KindGlobal, true
	case *graph.NamespaceDeclaration:
		return KindNamespace, true
	case *graph.RecordDeclaration:
		return KindRecord, true
	case *graph.FunctionDeclaration, *graph.MethodDeclaration, *graph.ConstructorDeclaration:
		return KindFunction, true
	case *graph.WhileStatement, *graph.DoStatement, *graph.ForStatement, *graph.ForEachStatement:
		return KindLoop, true
	case *graph.TryStatement:
		return KindTry, true
	case *graph.SwitchStatement:
		return KindSwitch, true
	case *graph.CompoundStatement, *graph.CatchClause, *graph.IfStatement:
		return KindBlock, true
	default:
		return 0, false
	}
}

// Scope is one node of the scope tree.
type Scope struct {
	Kind     Kind
	AST      graph.Node
	Parent   *Scope
	Children []*Scope

	symbols map[string][]graph.Declaration
	labels  map[string]*graph.LabelStatement

	breaks     []graph.Node
	continues  []graph.Node
	conditions []graph.Node

	throws *Throws
}

func newScope(kind Kind, ast graph.Node, parent *Scope) *Scope {
	s := &Scope{
		Kind:    kind,
		AST:     ast,
		Parent:  parent,
		symbols: make(map[string][]graph.Declaration),
		labels:  make(map[string]*graph.LabelStatement),
	}
	if kind == KindTry || kind == KindFunction {
		s.throws = &Throws{}
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// AddSymbol registers d under name. Overloads accumulate in declaration
// order; registering the same declaration twice is a no-op.
func (s *Scope) AddSymbol(name string, d graph.Declaration) {
	if name == "" || graph.IsNil(d) {
		return
	}
	if slices.Contains(s.symbols[name], d) {
		return
	}
	s.symbols[name] = append(s.symbols[name], d)
}

// RemoveSymbol drops d from the table.
func (s *Scope) RemoveSymbol(name string, d graph.Declaration) {
	s.symbols[name] = slices.DeleteFunc(s.symbols[name], func(x graph.Declaration) bool { return x == d })
	if len(s.symbols[name]) == 0 {
		delete(s.symbols, name)
	}
}

// Resolve returns every declaration named name in this scope only.
func (s *Scope) Resolve(name string) []graph.Declaration {
	return slices.Clone(s.symbols[name])
}

// SymbolNames returns the names declared in this scope, sorted.
func (s *Scope) SymbolNames() []string {
	names := make([]string, 0, len(s.symbols))
	for n := range s.symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddLabel registers a label statement.
func (s *Scope) AddLabel(l *graph.LabelStatement) {
	s.labels[l.Label] = l
}

// Label returns the label statement named name declared in this scope.
func (s *Scope) Label(name string) *graph.LabelStatement {
	return s.labels[name]
}

// Breakable reports whether break statements may target this scope.
func (s *Scope) Breakable() bool { return s.Kind == KindLoop || s.Kind == KindSwitch }

// Continuable reports whether continue statements may target this scope.
func (s *Scope) Continuable() bool { return s.Kind == KindLoop }

func (s *Scope) AddBreak(n graph.Node)     { s.breaks = append(s.breaks, n) }
func (s *Scope) AddContinue(n graph.Node)  { s.continues = append(s.continues, n) }
func (s *Scope) AddCondition(n graph.Node) { s.conditions = append(s.conditions, n) }

func (s *Scope) Breaks() []graph.Node     { return s.breaks }
func (s *Scope) Continues() []graph.Node  { return s.continues }
func (s *Scope) Conditions() []graph.Node { return s.conditions }

// ClearEscapes forgets the break, continue and condition bookkeeping.
func (s *Scope) ClearEscapes() {
	s.breaks = nil
	s.continues = nil
	s.conditions = nil
}

// CatchesOrRelays returns the pending throws of try and function scopes,
// nil for every other kind.
func (s *Scope) CatchesOrRelays() *Throws { return s.throws }

// Walk visits s and its descendants in pre-order.
func (s *Scope) Walk(fn func(*Scope)) {
	fn(s)
	for _, c := range s.Children {
		c.Walk(fn)
	}
}

// ThrowEntry is the set of EOG exits that raised exceptions of one type. A
// nil Type stands for throws whose type is not known.
type ThrowEntry struct {
	Type  graph.Type
	Exits []graph.Node
}

// Throws maps thrown types to the EOG exits that are not handled yet. Entry
// order is insertion order.
type Throws struct {
	entries []*ThrowEntry
}

func sameThrowType(a, b graph.Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Add records exits under t. A nil t is the absent throw type.
func (t *Throws) Add(typ graph.Type, exits ...graph.Node) {
	for _, e := range t.entries {
		if sameThrowType(e.Type, typ) {
			for _, x := range exits {
				if !slices.Contains(e.Exits, x) {
					e.Exits = append(e.Exits, x)
				}
			}
			return
		}
	}
	t.entries = append(t.entries, &ThrowEntry{Type: typ, Exits: slices.Clone(exits)})
}

// Entries returns the pending entries in insertion order.
func (t *Throws) Entries() []*ThrowEntry { return t.entries }

// Len returns the number of pending entries.
func (t *Throws) Len() int { return len(t.entries) }

// Claim removes and returns every entry accepted by match.
func (t *Throws) Claim(match func(typ graph.Type) bool) []*ThrowEntry {
	var claimed, kept []*ThrowEntry
	for _, e := range t.entries {
		if match(e.Type) {
			claimed = append(claimed, e)
		} else {
			kept = append(kept, e)
		}
	}
	t.entries = kept
	return claimed
}

// AllExits returns the exits of every pending entry, deduplicated.
func (t *Throws) AllExits() []graph.Node {
	var out []graph.Node
	for _, e := range t.entries {
		for _, x := range e.Exits {
			if !slices.Contains(out, x) {
				out = append(out, x)
			}
		}
	}
	return out
}

// MergeInto moves every pending entry into dst.
func (t *Throws) MergeInto(dst *Throws) {
	for _, e := range t.entries {
		dst.Add(e.Type, e.Exits...)
	}
	t.entries = nil
}

// Clear drops every entry.
func (t *Throws) Clear() { t.entries = nil }
