package scope

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cpg-enrich/graph"
)

var (
	// ErrScopeMismatch is returned when a scope is left that is not current.
	ErrScopeMismatch = errors.New("scope mismatch")
	// ErrNotInLoop is returned for break or continue without a target.
	ErrNotInLoop = errors.New("no enclosing breakable or continuable scope")
	// ErrNoHandlerScope is returned for throws outside any try or function.
	ErrNoHandlerScope = errors.New("no enclosing try or function scope")
	// ErrUnknownLabel is returned for labelled jumps to undeclared labels.
	ErrUnknownLabel = errors.New("unknown label")
)

// Manager owns the scope tree of one analysis run and the explicit stack of
// the scope currently being visited. All translation units share the global
// scope.
type Manager struct {
	global   *Scope
	current  *Scope
	scopeMap map[graph.Node]*Scope
	records  map[string]*graph.RecordDeclaration
	lang     *graph.Language
	logger   *slog.Logger
}

// NewManager creates a manager holding only the global scope.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	g := newScope(KindGlobal, nil, nil)
	return &Manager{
		global:   g,
		current:  g,
		scopeMap: make(map[graph.Node]*Scope),
		records:  make(map[string]*graph.RecordDeclaration),
		logger:   logger,
	}
}

func (m *Manager) Global() *Scope  { return m.global }
func (m *Manager) Current() *Scope { return m.current }

// ScopeOf returns the scope opened by node, if any.
func (m *Manager) ScopeOf(node graph.Node) *Scope { return m.scopeMap[node] }

// SetLanguage selects the language whose namespace delimiter qualifies
// record lookups.
func (m *Manager) SetLanguage(l *graph.Language) { m.lang = l }

// ResetToGlobal makes the global scope current and binds tu to it.
func (m *Manager) ResetToGlobal(tu *graph.TranslationUnitDeclaration) {
	m.current = m.global
	if tu != nil {
		m.scopeMap[tu] = m.global
		m.lang = tu.Language
	}
}

// Enter makes the scope opened by node current. A scope created earlier for
// node is re-entered; otherwise a new child of the current scope is created.
// Nodes that open no scope get a block scope.
func (m *Manager) Enter(node graph.Node) *Scope {
	if s, ok := m.scopeMap[node]; ok {
		m.current = s
		return s
	}
	kind, ok := KindFor(node)
	if !ok {
		kind = KindBlock
	}
	s := newScope(kind, node, m.current)
	m.scopeMap[node] = s
	m.current = s
	return s
}

// AttachScope creates the scope of node below parent without changing the
// current scope. Declarations synthesised after the tree was built get their
// scopes this way.
func (m *Manager) AttachScope(parent *Scope, node graph.Node) *Scope {
	if s, ok := m.scopeMap[node]; ok {
		return s
	}
	if parent == nil {
		parent = m.global
	}
	kind, ok := KindFor(node)
	if !ok {
		kind = KindBlock
	}
	s := newScope(kind, node, parent)
	m.scopeMap[node] = s
	return s
}

// Leave pops the scope of node and returns it. Leaving any scope but the
// current one is a structural error; the stack is left untouched then.
func (m *Manager) Leave(node graph.Node) (*Scope, error) {
	cur := m.current
	if m.scopeMap[node] != cur {
		return nil, fmt.Errorf("%w: leaving %s while %s is current", ErrScopeMismatch,
			graph.Describe(node), describeScope(cur))
	}
	if cur.Parent != nil {
		m.current = cur.Parent
	}
	return cur, nil
}

// WithScope runs fn inside the scope of node. The scope is left on every
// exit path, including panics unwinding through fn. If fn leaves the stack
// unbalanced, the stack is restored and ErrScopeMismatch returned.
func (m *Manager) WithScope(node graph.Node, fn func(s *Scope)) (*Scope, error) {
	prev := m.current
	s := m.Enter(node)
	defer func() {
		if r := recover(); r != nil {
			m.current = prev
			panic(r)
		}
	}()
	fn(s)
	if _, err := m.Leave(node); err != nil {
		m.logger.Error("unbalanced scope", "node", graph.Describe(node), "error", err)
		m.current = prev
		return s, err
	}
	m.current = prev
	return s, nil
}

func describeScope(s *Scope) string {
	if s == nil {
		return "<none>"
	}
	if s.AST == nil {
		return s.Kind.String() + " scope"
	}
	return s.Kind.String() + " scope of " + graph.Describe(s.AST)
}

// AddDeclaration registers d in the scope it belongs to: parameters go to the
// enclosing function scope, everything else to the current scope. Records
// are indexed for LookupRecord.
func (m *Manager) AddDeclaration(d graph.Declaration) {
	if graph.IsNil(d) {
		return
	}
	target := m.current
	if _, ok := d.(*graph.ParamVariableDeclaration); ok {
		if fs := m.FirstScopeOf(KindFunction); fs != nil {
			target = fs
		}
	}
	m.AddDeclarationTo(target, d)
}

// AddDeclarationTo registers d in s.
func (m *Manager) AddDeclarationTo(s *Scope, d graph.Declaration) {
	name := d.Base().Name
	s.AddSymbol(name, d)
	if r, ok := d.(*graph.RecordDeclaration); ok {
		m.indexRecord(r)
	}
}

func (m *Manager) indexRecord(r *graph.RecordDeclaration) {
	if _, ok := m.records[r.Name]; !ok {
		m.records[r.Name] = r
	}
	if short := m.shortName(r.Name, r.Language); short != r.Name {
		if _, ok := m.records[short]; !ok {
			m.records[short] = r
		}
	}
}

func (m *Manager) shortName(name string, lang *graph.Language) string {
	if lang == nil {
		lang = m.lang
	}
	if lang == nil || lang.NamespaceDelimiter == "" {
		return name
	}
	if i := strings.LastIndex(name, lang.NamespaceDelimiter); i >= 0 {
		return name[i+len(lang.NamespaceDelimiter):]
	}
	return name
}

// Resolve walks from the current scope to the global scope and returns the
// declarations of the first scope defining name.
func (m *Manager) Resolve(name string) []graph.Declaration {
	return m.ResolveFrom(m.current, name)
}

// ResolveFrom is Resolve starting at s.
func (m *Manager) ResolveFrom(s *Scope, name string) []graph.Declaration {
	for ; s != nil; s = s.Parent {
		if found := s.Resolve(name); len(found) > 0 {
			return found
		}
	}
	return nil
}

// LookupRecord finds a record by qualified or simple name.
func (m *Manager) LookupRecord(name string) *graph.RecordDeclaration {
	if r, ok := m.records[name]; ok {
		return r
	}
	if r, ok := m.records[m.shortName(name, nil)]; ok {
		return r
	}
	return nil
}

// Records returns the number of indexed record names.
func (m *Manager) Records() int { return len(m.records) }

// FirstScopeOf returns the innermost scope of one of kinds, starting at the
// current scope.
func (m *Manager) FirstScopeOf(kinds ...Kind) *Scope {
	return firstScope(m.current, func(s *Scope) bool {
		for _, k := range kinds {
			if s.Kind == k {
				return true
			}
		}
		return false
	})
}

func firstScope(s *Scope, match func(*Scope) bool) *Scope {
	for ; s != nil; s = s.Parent {
		if match(s) {
			return s
		}
	}
	return nil
}

// CurrentFunction returns the function whose scope encloses the current one.
func (m *Manager) CurrentFunction() graph.FunctionLike {
	if s := m.FirstScopeOf(KindFunction); s != nil {
		if f, ok := s.AST.(graph.FunctionLike); ok {
			return f
		}
	}
	return nil
}

// CurrentRecord returns the record whose scope encloses the current one.
func (m *Manager) CurrentRecord() *graph.RecordDeclaration {
	if s := m.FirstScopeOf(KindRecord); s != nil {
		if r, ok := s.AST.(*graph.RecordDeclaration); ok {
			return r
		}
	}
	return nil
}

// AddLabel registers l on the current scope.
func (m *Manager) AddLabel(l *graph.LabelStatement) {
	m.current.AddLabel(l)
}

// LookupLabel walks upwards from the current scope.
func (m *Manager) LookupLabel(name string) *graph.LabelStatement {
	for s := m.current; s != nil; s = s.Parent {
		if l := s.Label(name); l != nil {
			return l
		}
	}
	return nil
}

// labelTarget returns the scope of the statement labelled name.
func (m *Manager) labelTarget(name string) (*Scope, error) {
	l := m.LookupLabel(name)
	if l == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	sub := l.SubStatement
	if lbl, ok := sub.(*graph.LabelStatement); ok {
		sub = lbl.SubStatement
	}
	s := firstScope(m.current, func(s *Scope) bool { return s.AST == graph.Node(sub) })
	if s == nil {
		return nil, fmt.Errorf("%w: label %q does not enclose the jump", ErrNotInLoop, name)
	}
	return s, nil
}

// AddBreak registers b on the scope it leaves: the labelled statement's
// scope when b has a label, the innermost loop or switch otherwise.
func (m *Manager) AddBreak(b *graph.BreakStatement) error {
	var target *Scope
	if b.Label != "" {
		s, err := m.labelTarget(b.Label)
		if err != nil {
			return err
		}
		target = s
	} else {
		target = firstScope(m.current, (*Scope).Breakable)
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNotInLoop, graph.Describe(b))
	}
	target.AddBreak(b)
	return nil
}

// AddContinue registers c on the loop it continues.
func (m *Manager) AddContinue(c *graph.ContinueStatement) error {
	var target *Scope
	if c.Label != "" {
		s, err := m.labelTarget(c.Label)
		if err != nil {
			return err
		}
		target = s
	} else {
		target = firstScope(m.current, (*Scope).Continuable)
	}
	if target == nil || !target.Continuable() {
		return fmt.Errorf("%w: %s", ErrNotInLoop, graph.Describe(c))
	}
	target.AddContinue(c)
	return nil
}

// AddThrow registers exits raising typ on the innermost try or function
// scope. A nil typ is a throw of unknown type.
func (m *Manager) AddThrow(typ graph.Type, exits ...graph.Node) error {
	s := m.FirstScopeOf(KindTry, KindFunction)
	if s == nil {
		return ErrNoHandlerScope
	}
	s.CatchesOrRelays().Add(typ, exits...)
	return nil
}

// EnclosingHandler returns the try or function scope above s.
func (m *Manager) EnclosingHandler(s *Scope) *Scope {
	if s == nil {
		return nil
	}
	return firstScope(s.Parent, func(x *Scope) bool { return x.Kind == KindTry || x.Kind == KindFunction })
}

// Scopes returns every scope in pre-order, starting with the global scope.
func (m *Manager) Scopes() []*Scope {
	var out []*Scope
	m.global.Walk(func(s *Scope) { out = append(out, s) })
	return out
}
