package graph

import (
	"slices"
	"sync"
)

// Language describes the capabilities of a source language that the
// enrichment passes need to know about. Frontends attach it to every node
// they create.
type Language struct {
	Name               string
	FileExtensions     []string
	NamespaceDelimiter string

	// Qualifiers lists the keywords recognised as type qualifiers.
	Qualifiers     []string
	PrimitiveTypes []string
	// BooleanType is the name of the type relational and logical operators
	// yield. Empty means the language has no dedicated boolean type.
	BooleanType string

	HasStructs                  bool
	HasFunctionPointers         bool
	HasElaboratedTypeSpecifiers bool
	HasShortCircuitOperators    bool
	// SupportsOverloading is set when several functions may share a name
	// and differ in their parameters.
	SupportsOverloading bool

	ConjunctiveOperators []string
	DisjunctiveOperators []string

	// Coercion decides result types of binary operators before the generic
	// rules apply. Nil means no language specific coercion.
	Coercion CoercionPolicy

	once    sync.Once
	unknown *UnknownType
}

// UnknownType returns the unknown type sentinel of this language. The same
// instance is returned on every call.
func (l *Language) UnknownType() *UnknownType {
	l.once.Do(func() {
		l.unknown = &UnknownType{TypeBase: TypeBase{TypeName: UnknownTypeName, Lang: l}}
	})
	return l.unknown
}

// IsPrimitive reports whether name is one of the language's primitive types.
func (l *Language) IsPrimitive(name string) bool {
	if l == nil {
		return false
	}
	return slices.Contains(l.PrimitiveTypes, name)
}

// IsQualifier reports whether word is a qualifier keyword of the language.
func (l *Language) IsQualifier(word string) bool {
	if l == nil {
		return false
	}
	return slices.Contains(l.Qualifiers, word)
}

// IsConjunctive reports whether op is a short-circuit "and" operator.
func (l *Language) IsConjunctive(op string) bool {
	return l != nil && l.HasShortCircuitOperators && slices.Contains(l.ConjunctiveOperators, op)
}

// IsDisjunctive reports whether op is a short-circuit "or" operator.
func (l *Language) IsDisjunctive(op string) bool {
	return l != nil && l.HasShortCircuitOperators && slices.Contains(l.DisjunctiveOperators, op)
}

// Overloads reports whether calls must be matched on arity as well as name.
func (l *Language) Overloads() bool {
	return l != nil && l.SupportsOverloading
}

func (l *Language) String() string {
	if l == nil {
		return "<none>"
	}
	return l.Name
}

var noLanguage = &Language{Name: ""}

// UnknownTypeFor returns the unknown type of l, or of the anonymous language
// when l is nil.
func UnknownTypeFor(l *Language) *UnknownType {
	if l == nil {
		return noLanguage.UnknownType()
	}
	return l.UnknownType()
}

// CoercionPolicy lets a language override the result type of a binary
// operator. It is consulted for every operator except assignments.
type CoercionPolicy interface {
	BinaryType(op string, lhs, rhs Type) (Type, bool)
}

// StringConcatenation collapses the result of a binary operator to the
// string type as soon as one operand is string typed.
type StringConcatenation struct {
	TypeNames []string
	// Operators restricts the rule. Empty means every non-assignment operator.
	Operators []string
}

func (s StringConcatenation) BinaryType(op string, lhs, rhs Type) (Type, bool) {
	if len(s.Operators) > 0 && !slices.Contains(s.Operators, op) {
		return nil, false
	}
	for _, t := range []Type{lhs, rhs} {
		if o, ok := t.(*ObjectType); ok && slices.Contains(s.TypeNames, o.Name()) {
			return o, true
		}
	}
	return nil, false
}

// Java is the descriptor used by the Java frontend.
var Java = &Language{
	Name:               "java",
	FileExtensions:     []string{".java"},
	NamespaceDelimiter: ".",
	Qualifiers:         []string{"final", "volatile"},
	PrimitiveTypes:     []string{"byte", "short", "int", "long", "float", "double", "char", "boolean"},
	BooleanType:        "boolean",

	HasShortCircuitOperators: true,
	SupportsOverloading:      true,
	ConjunctiveOperators:     []string{"&&"},
	DisjunctiveOperators:     []string{"||"},

	Coercion: StringConcatenation{TypeNames: []string{"java.lang.String", "String"}},
}

// C is the descriptor used by the C frontend.
var C = &Language{
	Name:               "c",
	FileExtensions:     []string{".c", ".h"},
	NamespaceDelimiter: "::",
	Qualifiers:         []string{"const", "volatile", "restrict", "_Atomic"},
	PrimitiveTypes: []string{
		"char", "short", "int", "long", "long long", "float", "double", "long double",
		"_Bool", "bool", "size_t",
	},
	BooleanType: "int",

	HasStructs:                  true,
	HasFunctionPointers:         true,
	HasElaboratedTypeSpecifiers: true,
	HasShortCircuitOperators:    true,
	ConjunctiveOperators:        []string{"&&"},
	DisjunctiveOperators:        []string{"||"},
}

// CPP extends C with classes and references.
var CPP = &Language{
	Name:               "cpp",
	FileExtensions:     []string{".cpp", ".cc", ".cxx", ".hpp"},
	NamespaceDelimiter: "::",
	Qualifiers:         []string{"const", "volatile", "restrict", "_Atomic"},
	PrimitiveTypes: []string{
		"char", "short", "int", "long", "long long", "float", "double", "long double",
		"bool", "wchar_t", "size_t",
	},
	BooleanType: "bool",

	HasStructs:                  true,
	HasFunctionPointers:         true,
	HasElaboratedTypeSpecifiers: true,
	HasShortCircuitOperators:    true,
	SupportsOverloading:         true,
	ConjunctiveOperators:        []string{"&&", "and"},
	DisjunctiveOperators:        []string{"||", "or"},
}

// Golang is the descriptor used by the Go frontend.
var Golang = &Language{
	Name:               "go",
	FileExtensions:     []string{".go"},
	NamespaceDelimiter: ".",
	PrimitiveTypes: []string{
		"bool", "string", "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"float32", "float64", "complex64", "complex128", "byte", "rune",
	},
	BooleanType: "bool",

	HasStructs:               true,
	HasShortCircuitOperators: true,
	ConjunctiveOperators:     []string{"&&"},
	DisjunctiveOperators:     []string{"||"},
}
