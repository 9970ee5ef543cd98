// Package c builds translation units from C sources using tree-sitter.
package c

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

func init() {
	frontend.DefaultRegistry.Register("c", graph.C.FileExtensions,
		func(tm *graph.TypeManager, root string) frontend.Parser {
			return NewParser(tm, root)
		})
}

// Parser builds translation units from C files.
type Parser struct {
	types  *graph.TypeManager
	root   string
	parser *sitter.Parser
}

// NewParser creates a C parser. Unit paths are relative to root.
func NewParser(tm *graph.TypeManager, root string) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(c.GetLanguage())
	return &Parser{types: tm, root: root, parser: p}
}

// Close releases the tree-sitter parser. The parser is unusable afterwards.
func (p *Parser) Close() { p.parser.Close() }

// ParseFile parses the C file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*graph.TranslationUnitDeclaration, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return p.Parse(ctx, frontend.RelPath(p.root, path), content)
}

// Parse builds the unit of content, naming it file. Prototypes of functions
// the file also defines are dropped in favour of the definition.
func (p *Parser) Parse(ctx context.Context, file string, content []byte) (*graph.TranslationUnitDeclaration, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	defer tree.Close()

	v := &visitor{
		src: &frontend.Source{
			Builder: frontend.NewBuilder(graph.C, p.types, file),
			Content: content,
		},
		defined: make(map[string]bool),
	}
	v.tu = v.src.Unit()
	v.topLevel(tree.RootNode())

	decls := v.tu.Declarations[:0]
	for _, d := range v.tu.Declarations {
		if f, ok := d.(*graph.FunctionDeclaration); ok && !f.HasBody() && v.defined[f.Name] {
			continue
		}
		decls = append(decls, d)
	}
	v.tu.Declarations = decls
	return v.tu, nil
}

type visitor struct {
	src     *frontend.Source
	tu      *graph.TranslationUnitDeclaration
	defined map[string]bool
}

func (v *visitor) text(n *sitter.Node) string { return v.src.Text(n) }

func (v *visitor) at(n *sitter.Node) frontend.Origin { return v.src.At(n) }

func (v *visitor) topLevel(n *sitter.Node) {
	for _, child := range frontend.NamedChildren(n) {
		switch child.Type() {
		case "function_definition":
			v.tu.AddDeclaration(v.functionDefinition(child))
		case "declaration":
			for _, d := range v.declaration(child, true) {
				v.tu.AddDeclaration(d)
			}
		case "type_definition":
			if rec := v.typeDefinition(child); rec != nil {
				v.tu.AddDeclaration(rec)
			}
		case "struct_specifier", "union_specifier", "enum_specifier":
			if rec := v.specifier(child, ""); rec != nil {
				v.tu.AddDeclaration(rec)
			}
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "linkage_specification", "declaration_list":
			v.topLevel(child)
		}
	}
}

// declarator is the flattened view of a C declarator: the declared name,
// the full type text and, for function declarators, the parameter list.
type declarator struct {
	name   string
	typ    string
	params *sitter.Node
	value  *sitter.Node
}

func (v *visitor) declarator(n *sitter.Node, typ string) declarator {
	if n == nil {
		return declarator{typ: typ}
	}
	switch n.Type() {
	case "identifier", "field_identifier", "type_identifier", "primitive_type":
		return declarator{name: v.text(n), typ: typ}
	case "init_declarator":
		d := v.declarator(n.ChildByFieldName("declarator"), typ)
		d.value = n.ChildByFieldName("value")
		return d
	case "pointer_declarator", "abstract_pointer_declarator":
		return v.declarator(n.ChildByFieldName("declarator"), typ+"*")
	case "array_declarator", "abstract_array_declarator":
		return v.declarator(n.ChildByFieldName("declarator"), typ+"[]")
	case "parenthesized_declarator", "abstract_parenthesized_declarator":
		if inner := frontend.NamedChildren(n); len(inner) > 0 {
			return v.declarator(inner[len(inner)-1], typ)
		}
		return declarator{typ: typ}
	case "function_declarator", "abstract_function_declarator":
		params := n.ChildByFieldName("parameters")
		inner := unwrapParens(n.ChildByFieldName("declarator"))
		if inner != nil && (inner.Type() == "pointer_declarator" || inner.Type() == "abstract_pointer_declarator") {
			fp := fmt.Sprintf("%s (*)(%s)", typ, v.paramTypes(params))
			return v.declarator(inner.ChildByFieldName("declarator"), fp)
		}
		d := v.declarator(inner, typ)
		d.params = params
		return d
	}
	return declarator{name: v.text(n), typ: typ}
}

func unwrapParens(n *sitter.Node) *sitter.Node {
	for n != nil && (n.Type() == "parenthesized_declarator" || n.Type() == "abstract_parenthesized_declarator") {
		inner := frontend.NamedChildren(n)
		if len(inner) == 0 {
			return nil
		}
		n = inner[len(inner)-1]
	}
	return n
}

func (v *visitor) paramTypes(params *sitter.Node) string {
	var types []string
	for _, p := range frontend.NamedChildren(params) {
		if p.Type() != "parameter_declaration" {
			continue
		}
		d := v.declarator(p.ChildByFieldName("declarator"), v.baseType(p))
		if d.typ == "void" {
			continue
		}
		types = append(types, d.typ)
	}
	return strings.Join(types, ", ")
}

// baseType returns the type text of a node with a type field, qualifiers
// included. Struct, union and enum specifiers are reduced to their tag.
func (v *visitor) baseType(n *sitter.Node) string {
	var parts []string
	for _, c := range frontend.NamedChildren(n) {
		if c.Type() == "type_qualifier" {
			parts = append(parts, v.text(c))
		}
	}
	t := n.ChildByFieldName("type")
	if t == nil {
		return strings.Join(parts, " ")
	}
	switch t.Type() {
	case "struct_specifier", "union_specifier", "enum_specifier":
		keyword := strings.TrimSuffix(t.Type(), "_specifier")
		parts = append(parts, keyword+" "+v.text(t.ChildByFieldName("name")))
	default:
		parts = append(parts, v.text(t))
	}
	return strings.Join(parts, " ")
}

// specifier declares the record of a struct, union or enum specifier with a
// body. alias names anonymous specifiers of typedefs.
func (v *visitor) specifier(n *sitter.Node, alias string) *graph.RecordDeclaration {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	name := v.text(n.ChildByFieldName("name"))
	if name == "" {
		name = alias
	}
	if name == "" {
		return nil
	}
	b := v.src.Builder
	var rec *graph.RecordDeclaration
	switch n.Type() {
	case "enum_specifier":
		rec = b.Record(v.at(n), name, graph.KindEnum)
		for _, e := range frontend.NamedChildren(body) {
			if e.Type() != "enumerator" {
				continue
			}
			var value graph.Expression
			if val := e.ChildByFieldName("value"); val != nil {
				value = v.expr(val)
			}
			b.Field(v.at(e), rec, v.text(e.ChildByFieldName("name")), b.Type("int"), value)
		}
	default:
		kind := graph.KindStruct
		if n.Type() == "union_specifier" {
			kind = graph.KindUnion
		}
		rec = b.Record(v.at(n), name, kind)
		for _, f := range frontend.NamedChildren(body) {
			if f.Type() != "field_declaration" {
				continue
			}
			if t := f.ChildByFieldName("type"); t != nil {
				if nested := v.specifier(t, ""); nested != nil {
					rec.Records = append(rec.Records, nested)
				}
			}
			base := v.baseType(f)
			for _, d := range v.declarators(f) {
				dd := v.declarator(d, base)
				b.Field(v.at(d), rec, dd.name, b.Type(dd.typ), nil)
			}
		}
	}
	return rec
}

// declarators returns the declarator children of a declaration-like node.
func (v *visitor) declarators(n *sitter.Node) []*sitter.Node {
	typ := n.ChildByFieldName("type")
	var out []*sitter.Node
	for _, c := range frontend.NamedChildren(n) {
		switch c.Type() {
		case "storage_class_specifier", "type_qualifier", "attribute_specifier", "attribute_declaration",
			"ms_declspec_modifier", "bitfield_clause", "gnu_asm_expression":
			continue
		}
		if frontend.SameNode(c, typ) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (v *visitor) typeDefinition(n *sitter.Node) *graph.RecordDeclaration {
	t := n.ChildByFieldName("type")
	if t == nil {
		return nil
	}
	alias := ""
	if ds := v.declarators(n); len(ds) > 0 {
		alias = v.declarator(ds[0], "").name
	}
	return v.specifier(t, alias)
}

func (v *visitor) functionDefinition(n *sitter.Node) *graph.FunctionDeclaration {
	d := v.declarator(n.ChildByFieldName("declarator"), v.baseType(n))
	f := v.function(n, d)
	if body := n.ChildByFieldName("body"); body != nil {
		f.Body = v.block(body)
		v.defined[f.Name] = true
	}
	return f
}

func (v *visitor) function(n *sitter.Node, d declarator) *graph.FunctionDeclaration {
	b := v.src.Builder
	f := b.Function(v.at(n), d.name, b.Type(d.typ))
	f.Owner = v.tu
	for _, p := range frontend.NamedChildren(d.params) {
		switch p.Type() {
		case "parameter_declaration":
			pd := v.declarator(p.ChildByFieldName("declarator"), v.baseType(p))
			if pd.typ == "void" && pd.name == "" {
				continue
			}
			f.AddParameter(b.Param(v.at(p), pd.name, b.Type(pd.typ), false))
		case "variadic_parameter":
			f.AddParameter(b.Param(v.at(p), "", nil, true))
		}
	}
	return f
}

// declaration translates a declaration. At file level records defined in the
// type become declarations and function declarators become prototypes;
// inside functions both are skipped.
func (v *visitor) declaration(n *sitter.Node, global bool) []graph.Declaration {
	var out []graph.Declaration
	if t := n.ChildByFieldName("type"); t != nil && global {
		if rec := v.specifier(t, ""); rec != nil {
			out = append(out, rec)
		}
	}
	b := v.src.Builder
	base := v.baseType(n)
	for _, dn := range v.declarators(n) {
		d := v.declarator(dn, base)
		if d.name == "" {
			continue
		}
		if d.params != nil {
			if global {
				out = append(out, v.function(dn, d))
			}
			continue
		}
		out = append(out, b.Var(v.at(dn), d.name, b.Type(d.typ), v.initializer(d.value)))
	}
	return out
}

func (v *visitor) initializer(n *sitter.Node) graph.Expression {
	if n == nil {
		return nil
	}
	if n.Type() == "initializer_list" {
		return v.initList(n)
	}
	return v.expr(n)
}

func (v *visitor) initList(n *sitter.Node) *graph.InitializerListExpression {
	l := frontend.Place(v.src.Builder, &graph.InitializerListExpression{}, v.at(n))
	for _, e := range frontend.NamedChildren(n) {
		if e.Type() == "initializer_pair" {
			e = e.ChildByFieldName("value")
		}
		if x := v.initializer(e); x != nil {
			l.AddArgument(x)
		}
	}
	return l
}
