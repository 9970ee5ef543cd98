package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLookup map[string]*RecordDeclaration

func (m mapLookup) LookupRecord(name string) *RecordDeclaration { return m[name] }

func newRecord(name string, supers ...*RecordDeclaration) *RecordDeclaration {
	r := &RecordDeclaration{Kind: KindClass}
	r.Name = name
	r.Language = Java
	for _, s := range supers {
		r.SuperClasses = append(r.SuperClasses, s.ToType())
	}
	return r
}

func TestReferenceDereferenceRoundTrip(t *testing.T) {
	tm := NewTypeManager()
	cases := []Type{
		NewObjectType("Foo", Java),
		NewObjectType("int", C),
		NewPointerType(NewObjectType("char", C), OriginPointer),
		NewPointerType(NewObjectType("String", Java), OriginArray),
		NewReferenceType(NewObjectType("int", CPP)),
		NewFunctionPointerType([]Type{NewObjectType("int", C)}, nil, C),
		NewIncompleteType(C),
		tm.GetTypeParameter(newRecord("List"), "T"),
		Java.UnknownType(),
	}
	for _, typ := range cases {
		t.Run(typ.String(), func(t *testing.T) {
			for _, origin := range []PointerOrigin{OriginPointer, OriginArray} {
				got := typ.Reference(origin).Dereference()
				assert.True(t, got.Equal(typ), "got %s", got)
			}
		})
	}
}

func TestUnknownTypeIsReferenceFixedPoint(t *testing.T) {
	u := C.UnknownType()
	assert.Same(t, u, u.Reference(OriginPointer))
	assert.Same(t, u, u.Dereference())
	assert.Same(t, C.UnknownType(), u, "one unknown type per language")
	assert.False(t, u.Equal(Java.UnknownType()))
}

func TestObjectDereferenceIsUnknown(t *testing.T) {
	for _, lang := range []*Language{Java, C, CPP, Golang} {
		got := NewObjectType("Foo", lang).Dereference()
		require.NotNil(t, got)
		assert.Same(t, lang.UnknownType(), got, lang.Name)
	}
	assert.Same(t, UnknownTypeFor(nil), NewObjectType("x", nil).Dereference())
}

func TestFunctionPointerDereferenceIsFixedPoint(t *testing.T) {
	fp := NewFunctionPointerType(nil, NewObjectType("int", C), C)
	assert.Same(t, fp, fp.Dereference())
}

func TestStructuralEquality(t *testing.T) {
	a := NewObjectType("Map", Java, NewObjectType("String", Java), NewObjectType("Integer", Java))
	b := NewObjectType("Map", Java, NewObjectType("String", Java), NewObjectType("Integer", Java))
	swapped := NewObjectType("Map", Java, NewObjectType("Integer", Java), NewObjectType("String", Java))

	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(swapped), "generics are order sensitive")
	assert.False(t, a.Equal(NewObjectType("Map", C)), "language is part of equality")

	withRecord := NewObjectType("Foo", Java)
	withRecord.Record = newRecord("Foo")
	assert.True(t, withRecord.Equal(NewObjectType("Foo", Java)), "record back-reference is not compared")

	p := NewPointerType(NewObjectType("int", C), OriginPointer)
	arr := NewPointerType(NewObjectType("int", C), OriginArray)
	assert.False(t, p.Equal(arr))
	assert.False(t, p.Equal(NewReferenceType(NewObjectType("int", C))))

	c := NewObjectType("int", C)
	c.Qualifiers.Const = true
	assert.False(t, c.Equal(NewObjectType("int", C)))
}

func TestReferenceDepth(t *testing.T) {
	base := NewObjectType("char", C)
	pp := base.Reference(OriginPointer).Reference(OriginPointer)
	assert.Equal(t, 2, pp.ReferenceDepth())
	assert.Same(t, base, pp.Root())
	assert.Equal(t, "char**", pp.String())
}
