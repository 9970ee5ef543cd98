package graph

import "slices"

// TranslationUnitDeclaration is the root of one parsed source file.
type TranslationUnitDeclaration struct {
	DeclarationBase
	Path         string
	Declarations []Declaration
	Statements   []Statement
}

func (tu *TranslationUnitDeclaration) Stmts() []Statement { return tu.Statements }
func (tu *TranslationUnitDeclaration) AddStatement(s Statement) {
	tu.Statements = append(tu.Statements, s)
}

// AddDeclaration appends d unless it is already present.
func (tu *TranslationUnitDeclaration) AddDeclaration(d Declaration) {
	if !slices.Contains(tu.Declarations, d) {
		tu.Declarations = append(tu.Declarations, d)
	}
}

// NamespaceDeclaration groups declarations under a qualified name. Java
// packages and C++ namespaces map to it.
type NamespaceDeclaration struct {
	DeclarationBase
	Declarations []Declaration
	Statements   []Statement
}

func (ns *NamespaceDeclaration) Stmts() []Statement       { return ns.Statements }
func (ns *NamespaceDeclaration) AddStatement(s Statement) { ns.Statements = append(ns.Statements, s) }

// AddDeclaration appends d unless it is already present.
func (ns *NamespaceDeclaration) AddDeclaration(d Declaration) {
	if !slices.Contains(ns.Declarations, d) {
		ns.Declarations = append(ns.Declarations, d)
	}
}

// RecordKind is the flavour of a record declaration.
type RecordKind string

const (
	KindStruct    RecordKind = "struct"
	KindClass     RecordKind = "class"
	KindInterface RecordKind = "interface"
	KindEnum      RecordKind = "enum"
	KindUnion     RecordKind = "union"
)

// RecordDeclaration is a struct, class, interface, enum or union.
type RecordDeclaration struct {
	DeclarationBase
	Kind         RecordKind
	Fields       []*FieldDeclaration
	Methods      []*MethodDeclaration
	Constructors []*ConstructorDeclaration
	Records      []*RecordDeclaration
	StaticBlocks []*CompoundStatement
	SuperClasses []Type
	Implements   []Type
	TypeParams   []*TypeParamDeclaration
	Statements   []Statement

	typ *ObjectType
}

// ToType returns the object type naming this record. The instance is cached
// and points back at the record.
func (r *RecordDeclaration) ToType() *ObjectType {
	if r.typ == nil {
		r.typ = NewObjectType(r.Name, r.Language)
		r.typ.Record = r
	}
	return r.typ
}

// SuperTypes returns the super classes followed by the implemented interfaces.
func (r *RecordDeclaration) SuperTypes() []Type {
	out := make([]Type, 0, len(r.SuperClasses)+len(r.Implements))
	out = append(out, r.SuperClasses...)
	return append(out, r.Implements...)
}

// SuperRecords returns the records of the super types that are resolved.
func (r *RecordDeclaration) SuperRecords() []*RecordDeclaration {
	var out []*RecordDeclaration
	for _, t := range r.SuperTypes() {
		if o, ok := t.(*ObjectType); ok && o.Record != nil && o.Record != r {
			out = append(out, o.Record)
		}
	}
	return out
}

func (r *RecordDeclaration) Stmts() []Statement       { return r.Statements }
func (r *RecordDeclaration) AddStatement(s Statement) { r.Statements = append(r.Statements, s) }

// AddField attaches f to the record.
func (r *RecordDeclaration) AddField(f *FieldDeclaration) {
	if !slices.Contains(r.Fields, f) {
		f.Record = r
		r.Fields = append(r.Fields, f)
	}
}

// AddMethod attaches m to the record.
func (r *RecordDeclaration) AddMethod(m *MethodDeclaration) {
	if !slices.Contains(r.Methods, m) {
		m.Record = r
		r.Methods = append(r.Methods, m)
	}
}

// AddConstructor attaches c to the record.
func (r *RecordDeclaration) AddConstructor(c *ConstructorDeclaration) {
	if !slices.Contains(r.Constructors, c) {
		c.Record = r
		r.Constructors = append(r.Constructors, c)
	}
}

// Field returns the field named name declared directly in r.
func (r *RecordDeclaration) Field(name string) *FieldDeclaration {
	for _, f := range r.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// MethodsNamed returns the methods named name declared directly in r.
func (r *RecordDeclaration) MethodsNamed(name string) []*MethodDeclaration {
	var out []*MethodDeclaration
	for _, m := range r.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// FieldDeclaration is a member variable of a record.
type FieldDeclaration struct {
	DeclarationBase
	Typed
	Modifiers []string
	Record    *RecordDeclaration

	initializer Expression
}

func (f *FieldDeclaration) Initializer() Expression { return f.initializer }

// SetInitializer replaces the initializer. The field stops listening to the
// old initializer, listens to the new one and the DFG edge old→field is
// replaced by new→field.
func (f *FieldDeclaration) SetInitializer(e Expression) {
	f.initializer = swapInitializer(f, f.initializer, e)
}

func (f *FieldDeclaration) TypeChanged(w *Wave, src HasType, _ Type) {
	if IsPrimitive(f.Type()) {
		return
	}
	followSource(w, f, src)
}

func (f *FieldDeclaration) PossibleSubTypesChanged(w *Wave, src HasType, _ []Type) {
	if IsPrimitive(f.Type()) {
		return
	}
	followSubTypes(w, f, src)
}

// VariableDeclaration is a local variable.
type VariableDeclaration struct {
	DeclarationBase
	Typed

	initializer Expression
}

func (v *VariableDeclaration) Initializer() Expression { return v.initializer }

// SetInitializer behaves like FieldDeclaration.SetInitializer.
func (v *VariableDeclaration) SetInitializer(e Expression) {
	v.initializer = swapInitializer(v, v.initializer, e)
}

func (v *VariableDeclaration) TypeChanged(w *Wave, src HasType, _ Type) {
	if IsPrimitive(v.Type()) {
		return
	}
	followSource(w, v, src)
}

func (v *VariableDeclaration) PossibleSubTypesChanged(w *Wave, src HasType, _ []Type) {
	if IsPrimitive(v.Type()) {
		return
	}
	followSubTypes(w, v, src)
}

func swapInitializer(owner TypeListener, old, e Expression) Expression {
	if !IsNil(old) {
		UnregisterTypeListener(old, owner)
		RemoveDFG(old, owner)
	}
	if IsNil(e) {
		return nil
	}
	// A list initializer sizes the declaration; it does not type it.
	if _, ok := e.(*InitializerListExpression); !ok {
		RegisterTypeListener(e, owner)
	}
	AddDFG(e, owner)
	return e
}

// ParamVariableDeclaration is a function parameter.
type ParamVariableDeclaration struct {
	DeclarationBase
	Typed
	// Default is the default value expression, if the language has them.
	Default  Expression
	Variadic bool
	Index    int
}

// TypeParamDeclaration declares a type parameter of a generic record or
// function.
type TypeParamDeclaration struct {
	DeclarationBase
	Typed
	Default Type
}

// FunctionLike is implemented by functions, methods and constructors.
type FunctionLike interface {
	ValueDeclaration
	Func() *FunctionDeclaration
}

// FunctionDeclaration is a free function. Its type is its (first) return type.
type FunctionDeclaration struct {
	DeclarationBase
	Typed
	Parameters  []*ParamVariableDeclaration
	Body        Statement
	ReturnTypes []Type
	ThrowsTypes []Type
	TypeParams  []*TypeParamDeclaration
	// Owner is the translation unit or namespace listing this function.
	Owner Declaration
}

// Func returns the embedded function of functions, methods and constructors.
func (f *FunctionDeclaration) Func() *FunctionDeclaration { return f }

// HasBody reports whether the function is a definition.
func (f *FunctionDeclaration) HasBody() bool { return !IsNil(f.Body) }

// AddParameter appends p and fixes its index.
func (f *FunctionDeclaration) AddParameter(p *ParamVariableDeclaration) {
	p.Index = len(f.Parameters)
	f.Parameters = append(f.Parameters, p)
}

// IsVariadic reports whether the last parameter is variadic.
func (f *FunctionDeclaration) IsVariadic() bool {
	return len(f.Parameters) > 0 && f.Parameters[len(f.Parameters)-1].Variadic
}

// Accepts reports whether a call with argc arguments can bind to f, counting
// default parameters and variadics.
func (f *FunctionDeclaration) Accepts(argc int) bool {
	n := len(f.Parameters)
	if f.IsVariadic() {
		return argc >= n-1
	}
	required := n
	for i := n - 1; i >= 0 && !IsNil(f.Parameters[i].Default); i-- {
		required--
	}
	return argc >= required && argc <= n
}

// Signature returns the parameter types.
func (f *FunctionDeclaration) Signature() []Type {
	out := make([]Type, len(f.Parameters))
	for i, p := range f.Parameters {
		out[i] = TypeOf(p)
	}
	return out
}

// MethodDeclaration is a function belonging to a record.
type MethodDeclaration struct {
	FunctionDeclaration
	Record   *RecordDeclaration
	IsStatic bool
	// Receiver is the explicit receiver of Go methods.
	Receiver *VariableDeclaration
}

// ConstructorDeclaration creates instances of its record.
type ConstructorDeclaration struct {
	MethodDeclaration
}
