package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpg-enrich/graph"
)

func named[T graph.Node](n T, name string) T {
	n.Base().Name = name
	return n
}

func TestEnterLeave(t *testing.T) {
	m := NewManager(nil)
	tu := &graph.TranslationUnitDeclaration{}
	m.ResetToGlobal(tu)
	fn := named(&graph.FunctionDeclaration{}, "f")
	body := &graph.CompoundStatement{}

	fs := m.Enter(fn)
	assert.Equal(t, KindFunction, fs.Kind)
	assert.Same(t, m.Global(), fs.Parent)
	bs := m.Enter(body)
	assert.Equal(t, KindBlock, bs.Kind)

	_, err := m.Leave(fn)
	require.ErrorIs(t, err, ErrScopeMismatch)
	assert.Same(t, bs, m.Current(), "failed leave keeps the stack")

	popped, err := m.Leave(body)
	require.NoError(t, err)
	assert.Same(t, bs, popped)
	popped, err = m.Leave(fn)
	require.NoError(t, err)
	assert.Same(t, fs, popped)
	assert.Same(t, m.Global(), m.Current())

	// Re-entering returns the scope created before.
	assert.Same(t, fs, m.Enter(fn))
	_, err = m.Leave(fn)
	require.NoError(t, err)
	assert.Len(t, m.Global().Children, 1)
	assert.Same(t, m.Global(), m.ScopeOf(tu))
}

func TestWithScopeRestoresOnPanic(t *testing.T) {
	m := NewManager(nil)
	fn := &graph.FunctionDeclaration{}
	loop := &graph.WhileStatement{}

	assert.Panics(t, func() {
		_, _ = m.WithScope(fn, func(*Scope) {
			m.Enter(loop)
			panic("boom")
		})
	})
	assert.Same(t, m.Global(), m.Current())

	s, err := m.WithScope(fn, func(s *Scope) {
		assert.Same(t, s, m.Current())
	})
	require.NoError(t, err)
	assert.Equal(t, KindFunction, s.Kind)
	assert.Same(t, m.Global(), m.Current())
}

func TestWithScopeUnbalanced(t *testing.T) {
	m := NewManager(nil)
	fn := &graph.FunctionDeclaration{}
	_, err := m.WithScope(fn, func(*Scope) {
		m.Enter(&graph.CompoundStatement{})
	})
	require.ErrorIs(t, err, ErrScopeMismatch)
	assert.Same(t, m.Global(), m.Current())
}

func TestResolve(t *testing.T) {
	m := NewManager(nil)
	outer := named(&graph.VariableDeclaration{}, "x")
	m.AddDeclaration(outer)

	fn := named(&graph.FunctionDeclaration{}, "f")
	m.AddDeclaration(fn)
	_, err := m.WithScope(fn, func(fs *Scope) {
		p := named(&graph.ParamVariableDeclaration{}, "p")
		body := &graph.CompoundStatement{}
		_, err := m.WithScope(body, func(bs *Scope) {
			m.AddDeclaration(p)
			inner := named(&graph.VariableDeclaration{}, "x")
			m.AddDeclaration(inner)

			assert.Equal(t, []graph.Declaration{inner}, m.Resolve("x"), "inner shadows outer")
			assert.Empty(t, bs.Resolve("p"), "parameters live in the function scope")
			assert.Equal(t, []graph.Declaration{p}, m.Resolve("p"))
			assert.Equal(t, []graph.Declaration{fn}, m.Resolve("f"))
			assert.Empty(t, bs.Resolve("f"), "scope resolution does not walk up")
		})
		require.NoError(t, err)
		assert.Equal(t, []graph.Declaration{p}, fs.Resolve("p"))
	})
	require.NoError(t, err)
	assert.Equal(t, []graph.Declaration{outer}, m.Resolve("x"))
}

func TestOverloads(t *testing.T) {
	m := NewManager(nil)
	a := named(&graph.FunctionDeclaration{}, "f")
	b := named(&graph.FunctionDeclaration{}, "f")
	m.AddDeclaration(a)
	m.AddDeclaration(b)
	m.AddDeclaration(a)
	assert.Equal(t, []graph.Declaration{a, b}, m.Global().Resolve("f"))
}

func TestLookupRecord(t *testing.T) {
	m := NewManager(nil)
	m.SetLanguage(graph.Java)
	r := named(&graph.RecordDeclaration{}, "com.example.Foo")
	r.Language = graph.Java
	m.AddDeclaration(r)

	assert.Same(t, r, m.LookupRecord("com.example.Foo"))
	assert.Same(t, r, m.LookupRecord("Foo"))
	assert.Same(t, r, m.LookupRecord("other.pkg.Foo"))
	assert.Nil(t, m.LookupRecord("Bar"))
}

func TestBreakContinueTargets(t *testing.T) {
	m := NewManager(nil)
	fn := &graph.FunctionDeclaration{}
	outer := &graph.ForStatement{}
	label := &graph.LabelStatement{Label: "outer", SubStatement: outer}
	inner := &graph.WhileStatement{}
	sw := &graph.SwitchStatement{}

	_, err := m.WithScope(fn, func(*Scope) {
		m.AddLabel(label)
		_, err := m.WithScope(outer, func(os *Scope) {
			_, err := m.WithScope(inner, func(is *Scope) {
				_, err := m.WithScope(sw, func(ss *Scope) {
					plain := &graph.BreakStatement{}
					require.NoError(t, m.AddBreak(plain))
					assert.Equal(t, []graph.Node{plain}, ss.Breaks())

					cont := &graph.ContinueStatement{}
					require.NoError(t, m.AddContinue(cont))
					assert.Equal(t, []graph.Node{cont}, is.Continues(), "switch is not continuable")

					labelled := &graph.BreakStatement{Label: "outer"}
					require.NoError(t, m.AddBreak(labelled))
					assert.Equal(t, []graph.Node{labelled}, os.Breaks())

					assert.ErrorIs(t, m.AddBreak(&graph.BreakStatement{Label: "nope"}), ErrUnknownLabel)
				})
				require.NoError(t, err)
			})
			require.NoError(t, err)
		})
		require.NoError(t, err)
		assert.ErrorIs(t, m.AddBreak(&graph.BreakStatement{}), ErrNotInLoop)
	})
	require.NoError(t, err)
}

func TestThrowBookkeeping(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.AddThrow(nil), ErrNoHandlerScope)

	fn := &graph.FunctionDeclaration{}
	try := &graph.TryStatement{}
	ioe := graph.NewObjectType("IOException", graph.Java)
	site1, site2, site3 := &graph.ThrowExpression{}, &graph.ThrowExpression{}, &graph.ThrowExpression{}

	_, err := m.WithScope(fn, func(fs *Scope) {
		ts, err := m.WithScope(try, func(ts *Scope) {
			require.NoError(t, m.AddThrow(ioe, site1))
			require.NoError(t, m.AddThrow(graph.NewObjectType("IOException", graph.Java), site2))
			require.NoError(t, m.AddThrow(nil, site3))
		})
		require.NoError(t, err)

		pending := ts.CatchesOrRelays()
		require.Equal(t, 2, pending.Len())
		assert.Equal(t, []graph.Node{site1, site2}, pending.Entries()[0].Exits)
		assert.Nil(t, pending.Entries()[1].Type)

		claimed := pending.Claim(func(typ graph.Type) bool { return typ != nil && typ.Equal(ioe) })
		require.Len(t, claimed, 1)
		assert.Equal(t, 1, pending.Len())

		assert.Same(t, fs, m.EnclosingHandler(ts))
		pending.MergeInto(fs.CatchesOrRelays())
		assert.Zero(t, pending.Len())
		assert.Equal(t, []graph.Node{site3}, fs.CatchesOrRelays().AllExits())
	})
	require.NoError(t, err)
}

func TestScopesPreOrder(t *testing.T) {
	m := NewManager(nil)
	ns := &graph.NamespaceDeclaration{}
	rec := &graph.RecordDeclaration{}
	_, err := m.WithScope(ns, func(*Scope) {
		_, err := m.WithScope(rec, func(*Scope) {})
		require.NoError(t, err)
	})
	require.NoError(t, err)

	var kinds []Kind
	for _, s := range m.Scopes() {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []Kind{KindGlobal, KindNamespace, KindRecord}, kinds)
}

func TestAttachScope(t *testing.T) {
	m := NewManager(nil)
	fn := &graph.FunctionDeclaration{}
	_, err := m.WithScope(fn, func(fs *Scope) {
		rec := &graph.RecordDeclaration{}
		rs := m.AttachScope(m.Global(), rec)
		assert.Same(t, fs, m.Current(), "attaching does not enter")
		assert.Equal(t, KindRecord, rs.Kind)
		assert.Same(t, m.Global(), rs.Parent)
		assert.Same(t, rs, m.AttachScope(nil, rec))
		assert.Same(t, rs, m.ScopeOf(rec))
	})
	require.NoError(t, err)
}
