package graph

import (
	"strings"
)

// UnknownTypeName is the name carried by every UnknownType.
const UnknownTypeName = "UNKNOWN"

// Storage is the storage class of a type.
type Storage int

const (
	StorageAuto Storage = iota
	StorageExtern
	StorageStatic
	StorageRegister
)

func (s Storage) String() string {
	switch s {
	case StorageExtern:
		return "extern"
	case StorageStatic:
		return "static"
	case StorageRegister:
		return "register"
	default:
		return "auto"
	}
}

// Qualifier holds the type qualifier flags.
type Qualifier struct {
	Const    bool
	Volatile bool
	Restrict bool
	Atomic   bool
}

// Modifier is the signedness of a primitive object type.
type Modifier int

const (
	ModifierNotApplicable Modifier = iota
	ModifierSigned
	ModifierUnsigned
)

// PointerOrigin tells whether a pointer type stems from a pointer declarator
// or from an array.
type PointerOrigin int

const (
	OriginPointer PointerOrigin = iota
	OriginArray
)

// Type is the closed set of type variants: *ObjectType, *PointerType,
// *ReferenceType, *FunctionPointerType, *UnknownType, *IncompleteType and
// *ParameterizedType.
type Type interface {
	Name() string
	Language() *Language
	Storage() Storage
	Qualifier() Qualifier

	// Reference wraps the type into a pointer of the given origin.
	Reference(origin PointerOrigin) Type
	// Dereference removes one level of indirection.
	Dereference() Type
	// Equal reports structural equality.
	Equal(other Type) bool
	// Root returns the innermost element type.
	Root() Type
	// ReferenceDepth counts the pointer levels around the root.
	ReferenceDepth() int

	String() string
	isType()
}

// TypeBase holds the fields every type variant shares.
type TypeBase struct {
	TypeName     string
	Lang         *Language
	StorageClass Storage
	Qualifiers   Qualifier
}

func (b *TypeBase) Name() string         { return b.TypeName }
func (b *TypeBase) Language() *Language  { return b.Lang }
func (b *TypeBase) Storage() Storage     { return b.StorageClass }
func (b *TypeBase) Qualifier() Qualifier { return b.Qualifiers }
func (b *TypeBase) isType()              {}

func (b *TypeBase) baseEqual(o *TypeBase) bool {
	return b.TypeName == o.TypeName &&
		b.StorageClass == o.StorageClass &&
		b.Qualifiers == o.Qualifiers &&
		b.Lang.String() == o.Lang.String()
}

// ObjectType is a named type: a primitive, a record or an external class.
type ObjectType struct {
	TypeBase
	Generics  []Type
	Modifier  Modifier
	Primitive bool
	// Record is the declaration this type resolves to. It is not part of
	// structural equality and may be filled in later by resolution or
	// inference.
	Record *RecordDeclaration
}

// NewObjectType creates an object type. Primitive is derived from lang and
// primitives default to signed.
func NewObjectType(name string, lang *Language, generics ...Type) *ObjectType {
	t := &ObjectType{
		TypeBase:  TypeBase{TypeName: name, Lang: lang},
		Generics:  generics,
		Primitive: lang.IsPrimitive(name),
	}
	if t.Primitive {
		t.Modifier = ModifierSigned
	}
	return t
}

func (t *ObjectType) Reference(origin PointerOrigin) Type { return NewPointerType(t, origin) }

// Dereference of an object yields the unknown type: memory contents are not tracked.
func (t *ObjectType) Dereference() Type   { return UnknownTypeFor(t.Lang) }
func (t *ObjectType) Root() Type          { return t }
func (t *ObjectType) ReferenceDepth() int { return 0 }

func (t *ObjectType) Equal(other Type) bool {
	o, ok := other.(*ObjectType)
	if !ok {
		return false
	}
	if t == o {
		return true
	}
	if !t.baseEqual(&o.TypeBase) || t.Modifier != o.Modifier || t.Primitive != o.Primitive {
		return false
	}
	return typesEqual(t.Generics, o.Generics)
}

func (t *ObjectType) String() string {
	var sb strings.Builder
	writeQualifiers(&sb, t.Qualifiers)
	if t.Modifier == ModifierUnsigned {
		sb.WriteString("unsigned ")
	}
	sb.WriteString(t.TypeName)
	if len(t.Generics) > 0 {
		sb.WriteByte('<')
		for i, g := range t.Generics {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(g.String())
		}
		sb.WriteByte('>')
	}
	return sb.String()
}

// PointerType wraps an element type.
type PointerType struct {
	TypeBase
	Element Type
	Origin  PointerOrigin
}

// NewPointerType wraps elem. The pointer inherits the element's language.
func NewPointerType(elem Type, origin PointerOrigin) *PointerType {
	suffix := "*"
	if origin == OriginArray {
		suffix = "[]"
	}
	return &PointerType{
		TypeBase: TypeBase{TypeName: elem.Name() + suffix, Lang: elem.Language()},
		Element:  elem,
		Origin:   origin,
	}
}

func (t *PointerType) Reference(origin PointerOrigin) Type { return NewPointerType(t, origin) }
func (t *PointerType) Dereference() Type                   { return t.Element }
func (t *PointerType) Root() Type                          { return t.Element.Root() }
func (t *PointerType) ReferenceDepth() int                 { return 1 + t.Element.ReferenceDepth() }

func (t *PointerType) Equal(other Type) bool {
	o, ok := other.(*PointerType)
	if !ok {
		return false
	}
	return t == o || (t.baseEqual(&o.TypeBase) && t.Origin == o.Origin && t.Element.Equal(o.Element))
}

func (t *PointerType) String() string {
	var sb strings.Builder
	sb.WriteString(t.Element.String())
	if t.Origin == OriginArray {
		sb.WriteString("[]")
	} else {
		sb.WriteByte('*')
	}
	if t.Qualifiers != (Qualifier{}) {
		sb.WriteByte(' ')
		writeQualifiers(&sb, t.Qualifiers)
	}
	return strings.TrimSpace(sb.String())
}

// ReferenceType is a non-owning alias of its element (C++ references).
type ReferenceType struct {
	TypeBase
	Element Type
}

// NewReferenceType creates an alias of elem.
func NewReferenceType(elem Type) *ReferenceType {
	return &ReferenceType{
		TypeBase: TypeBase{TypeName: elem.Name() + "&", Lang: elem.Language()},
		Element:  elem,
	}
}

func (t *ReferenceType) Reference(origin PointerOrigin) Type { return NewPointerType(t, origin) }
func (t *ReferenceType) Dereference() Type                   { return t.Element }
func (t *ReferenceType) Root() Type                          { return t.Element.Root() }
func (t *ReferenceType) ReferenceDepth() int                 { return t.Element.ReferenceDepth() }

func (t *ReferenceType) Equal(other Type) bool {
	o, ok := other.(*ReferenceType)
	if !ok {
		return false
	}
	return t == o || (t.baseEqual(&o.TypeBase) && t.Element.Equal(o.Element))
}

func (t *ReferenceType) String() string { return t.Element.String() + "&" }

// FunctionPointerType is the type of a pointer to a function.
type FunctionPointerType struct {
	TypeBase
	Parameters []Type
	ReturnType Type
}

// NewFunctionPointerType creates a function pointer type. A nil return type
// means void.
func NewFunctionPointerType(params []Type, ret Type, lang *Language) *FunctionPointerType {
	if ret == nil {
		ret = NewIncompleteType(lang)
	}
	t := &FunctionPointerType{Parameters: params, ReturnType: ret}
	t.Lang = lang
	t.TypeName = t.String()
	return t
}

func (t *FunctionPointerType) Reference(origin PointerOrigin) Type { return NewPointerType(t, origin) }

// Dereference of a function pointer is the function pointer itself.
func (t *FunctionPointerType) Dereference() Type   { return t }
func (t *FunctionPointerType) Root() Type          { return t }
func (t *FunctionPointerType) ReferenceDepth() int { return 0 }

func (t *FunctionPointerType) Equal(other Type) bool {
	o, ok := other.(*FunctionPointerType)
	if !ok {
		return false
	}
	if t == o {
		return true
	}
	return t.baseEqual(&o.TypeBase) && typesEqual(t.Parameters, o.Parameters) && t.ReturnType.Equal(o.ReturnType)
}

func (t *FunctionPointerType) String() string {
	var sb strings.Builder
	sb.WriteString(t.ReturnType.String())
	sb.WriteString("(*)(")
	for i, p := range t.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// UnknownType is the per-language sentinel for types that could not be
// determined. Obtain it through Language.UnknownType.
type UnknownType struct {
	TypeBase
}

// Reference keeps the unknown type unknown.
func (t *UnknownType) Reference(PointerOrigin) Type { return t }
func (t *UnknownType) Dereference() Type            { return t }
func (t *UnknownType) Root() Type                   { return t }
func (t *UnknownType) ReferenceDepth() int          { return 0 }
func (t *UnknownType) String() string               { return UnknownTypeName }

func (t *UnknownType) Equal(other Type) bool {
	o, ok := other.(*UnknownType)
	return ok && t.Lang.String() == o.Lang.String()
}

// IncompleteType stands for void-like types.
type IncompleteType struct {
	TypeBase
}

// NewIncompleteType creates a "void" type for lang.
func NewIncompleteType(lang *Language) *IncompleteType {
	return &IncompleteType{TypeBase{TypeName: "void", Lang: lang}}
}

func (t *IncompleteType) Reference(origin PointerOrigin) Type { return NewPointerType(t, origin) }
func (t *IncompleteType) Dereference() Type                   { return t }
func (t *IncompleteType) Root() Type                          { return t }
func (t *IncompleteType) ReferenceDepth() int                 { return 0 }
func (t *IncompleteType) String() string                      { return t.TypeName }

func (t *IncompleteType) Equal(other Type) bool {
	o, ok := other.(*IncompleteType)
	return ok && (t == o || t.baseEqual(&o.TypeBase))
}

// ParameterizedType is a type parameter of a generic record, e.g. the T of
// List<T>. Instances are cached per (record, name) by the TypeManager.
type ParameterizedType struct {
	TypeBase
	Record *RecordDeclaration
}

func (t *ParameterizedType) Reference(origin PointerOrigin) Type { return NewPointerType(t, origin) }
func (t *ParameterizedType) Dereference() Type                   { return UnknownTypeFor(t.Lang) }
func (t *ParameterizedType) Root() Type                          { return t }
func (t *ParameterizedType) ReferenceDepth() int                 { return 0 }
func (t *ParameterizedType) String() string                      { return t.TypeName }

func (t *ParameterizedType) Equal(other Type) bool {
	o, ok := other.(*ParameterizedType)
	return ok && (t == o || (t.baseEqual(&o.TypeBase) && t.Record == o.Record))
}

// IsUnknown reports whether t is nil or an UnknownType.
func IsUnknown(t Type) bool {
	if t == nil {
		return true
	}
	_, ok := t.(*UnknownType)
	return ok
}

// IsPrimitive reports whether t is a primitive object type.
func IsPrimitive(t Type) bool {
	o, ok := t.(*ObjectType)
	return ok && o.Primitive
}

func typesEqual(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// containsType reports whether list holds a type structurally equal to t.
func containsType(list []Type, t Type) bool {
	for _, e := range list {
		if e.Equal(t) {
			return true
		}
	}
	return false
}

func writeQualifiers(sb *strings.Builder, q Qualifier) {
	if q.Const {
		sb.WriteString("const ")
	}
	if q.Volatile {
		sb.WriteString("volatile ")
	}
	if q.Restrict {
		sb.WriteString("restrict ")
	}
	if q.Atomic {
		sb.WriteString("_Atomic ")
	}
}
