// Package java builds translation units from Java sources using tree-sitter.
package java

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

func init() {
	frontend.DefaultRegistry.Register("java", graph.Java.FileExtensions,
		func(tm *graph.TypeManager, root string) frontend.Parser {
			return NewParser(tm, root)
		})
}

// Parser builds translation units from Java files.
type Parser struct {
	types  *graph.TypeManager
	root   string
	parser *sitter.Parser
}

// NewParser creates a Java parser. Unit paths are relative to root.
func NewParser(tm *graph.TypeManager, root string) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{types: tm, root: root, parser: p}
}

// Close releases the tree-sitter parser. The parser is unusable afterwards.
func (p *Parser) Close() { p.parser.Close() }

// ParseFile parses the Java file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*graph.TranslationUnitDeclaration, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return p.Parse(ctx, frontend.RelPath(p.root, path), content)
}

// Parse builds the unit of content, naming it file.
func (p *Parser) Parse(ctx context.Context, file string, content []byte) (*graph.TranslationUnitDeclaration, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	defer tree.Close()

	v := &visitor{src: &frontend.Source{
		Builder: frontend.NewBuilder(graph.Java, p.types, file),
		Content: content,
	}}
	tu := v.src.Unit()
	for _, child := range frontend.NamedChildren(tree.RootNode()) {
		switch child.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			tu.AddDeclaration(v.record(child))
		}
	}
	return tu, nil
}

// visitor translates one file. records is the stack of enclosing records,
// used to type this and super.
type visitor struct {
	src     *frontend.Source
	records []*graph.RecordDeclaration
}

func (v *visitor) text(n *sitter.Node) string { return v.src.Text(n) }

func (v *visitor) at(n *sitter.Node) frontend.Origin { return v.src.At(n) }

func (v *visitor) typeOf(n *sitter.Node) graph.Type {
	if n == nil {
		return nil
	}
	return v.src.Type(v.text(n))
}

func (v *visitor) currentRecord() *graph.RecordDeclaration {
	if len(v.records) == 0 {
		return nil
	}
	return v.records[len(v.records)-1]
}

var recordKinds = map[string]graph.RecordKind{
	"class_declaration":     graph.KindClass,
	"interface_declaration": graph.KindInterface,
	"enum_declaration":      graph.KindEnum,
	"record_declaration":    graph.KindClass,
}

func (v *visitor) record(n *sitter.Node) *graph.RecordDeclaration {
	rec := v.src.Record(v.at(n), v.text(n.ChildByFieldName("name")), recordKinds[n.Type()])
	v.records = append(v.records, rec)
	defer func() { v.records = v.records[:len(v.records)-1] }()

	if sc := n.ChildByFieldName("superclass"); sc != nil {
		for _, t := range frontend.NamedChildren(sc) {
			rec.SuperClasses = append(rec.SuperClasses, v.typeOf(t))
		}
	}
	interfaces := n.ChildByFieldName("interfaces")
	if interfaces == nil {
		interfaces = frontend.ChildOfType(n, "extends_interfaces")
	}
	if interfaces != nil {
		for _, t := range frontend.NamedChildren(frontend.ChildOfType(interfaces, "type_list")) {
			rec.Implements = append(rec.Implements, v.typeOf(t))
		}
	}
	// Record components become fields.
	if params := n.ChildByFieldName("parameters"); params != nil {
		for _, p := range frontend.NamedChildren(params) {
			v.src.Field(v.at(p), rec, v.text(p.ChildByFieldName("name")), v.typeOf(p.ChildByFieldName("type")), nil)
		}
	}
	v.members(rec, n.ChildByFieldName("body"))
	return rec
}

func (v *visitor) members(rec *graph.RecordDeclaration, body *sitter.Node) {
	for _, m := range frontend.NamedChildren(body) {
		switch m.Type() {
		case "field_declaration", "constant_declaration":
			v.fields(rec, m)
		case "method_declaration":
			v.method(rec, m)
		case "constructor_declaration", "compact_constructor_declaration":
			v.constructor(rec, m)
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			rec.Records = append(rec.Records, v.record(m))
		case "static_initializer":
			if blk := frontend.ChildOfType(m, "block"); blk != nil {
				rec.StaticBlocks = append(rec.StaticBlocks, v.block(blk))
			}
		case "block":
			rec.StaticBlocks = append(rec.StaticBlocks, v.block(m))
		case "enum_constant":
			f := v.src.Field(v.at(m), rec, v.text(m.ChildByFieldName("name")), rec.ToType(), nil)
			f.Modifiers = []string{"public", "static", "final"}
		case "enum_body_declarations":
			v.members(rec, m)
		}
	}
}

func modifiers(v *visitor, n *sitter.Node) []string {
	var out []string
	for _, c := range frontend.Children(frontend.ChildOfType(n, "modifiers")) {
		switch c.Type() {
		case "annotation", "marker_annotation":
			continue
		}
		out = append(out, v.text(c))
	}
	return out
}

func (v *visitor) fields(rec *graph.RecordDeclaration, n *sitter.Node) {
	mods := modifiers(v, n)
	typeText := v.text(n.ChildByFieldName("type"))
	for _, d := range frontend.NamedChildren(n) {
		if d.Type() != "variable_declarator" {
			continue
		}
		f := v.src.Field(v.at(d), rec, v.text(d.ChildByFieldName("name")), v.declaratorType(typeText, d), v.initializer(d.ChildByFieldName("value")))
		f.Modifiers = mods
	}
}

// declaratorType appends the declarator's own array dimensions, as in
// int a[], to the declared type.
func (v *visitor) declaratorType(typeText string, d *sitter.Node) graph.Type {
	if typeText == "" || typeText == "var" {
		return nil
	}
	if dims := d.ChildByFieldName("dimensions"); dims != nil {
		typeText += strings.Repeat("[]", strings.Count(v.text(dims), "["))
	}
	return v.src.Type(typeText)
}

func (v *visitor) initializer(n *sitter.Node) graph.Expression {
	if n == nil {
		return nil
	}
	if n.Type() == "array_initializer" {
		return v.initList(n)
	}
	return v.expr(n)
}

func (v *visitor) initList(n *sitter.Node) *graph.InitializerListExpression {
	l := frontend.Place(v.src.Builder, &graph.InitializerListExpression{}, v.at(n))
	for _, e := range frontend.NamedChildren(n) {
		if x := v.initializer(e); x != nil {
			l.AddArgument(x)
		}
	}
	return l
}

func (v *visitor) method(rec *graph.RecordDeclaration, n *sitter.Node) {
	m := v.src.Method(v.at(n), v.text(n.ChildByFieldName("name")), v.typeOf(n.ChildByFieldName("type")), rec)
	for _, mod := range modifiers(v, n) {
		if mod == "static" {
			m.IsStatic = true
		}
	}
	v.function(&m.FunctionDeclaration, n)
}

func (v *visitor) constructor(rec *graph.RecordDeclaration, n *sitter.Node) {
	c := v.src.Constructor(v.at(n), rec)
	v.function(&c.FunctionDeclaration, n)
}

func (v *visitor) function(f *graph.FunctionDeclaration, n *sitter.Node) {
	v.params(f, n.ChildByFieldName("parameters"))
	if throws := frontend.ChildOfType(n, "throws"); throws != nil {
		for _, t := range frontend.NamedChildren(throws) {
			f.ThrowsTypes = append(f.ThrowsTypes, v.typeOf(t))
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		f.Body = v.block(body)
	}
}

func (v *visitor) params(f *graph.FunctionDeclaration, list *sitter.Node) {
	for _, p := range frontend.NamedChildren(list) {
		switch p.Type() {
		case "formal_parameter":
			t := v.declaratorType(v.text(p.ChildByFieldName("type")), p)
			f.AddParameter(v.src.Param(v.at(p), v.text(p.ChildByFieldName("name")), t, false))
		case "spread_parameter":
			var typeNode, decl *sitter.Node
			for _, c := range frontend.NamedChildren(p) {
				switch c.Type() {
				case "modifiers":
				case "variable_declarator":
					decl = c
				default:
					if typeNode == nil {
						typeNode = c
					}
				}
			}
			name := v.text(decl)
			if decl != nil && decl.ChildByFieldName("name") != nil {
				name = v.text(decl.ChildByFieldName("name"))
			}
			f.AddParameter(v.src.Param(v.at(p), name, v.src.Type(v.text(typeNode)+"[]"), true))
		}
	}
}

func (v *visitor) block(n *sitter.Node) *graph.CompoundStatement {
	blk := v.src.Block(v.at(n))
	for _, s := range frontend.NamedChildren(n) {
		if st := v.stmt(s); st != nil {
			blk.AddStatement(st)
		}
	}
	return blk
}

// condition unwraps the parentheses around if and loop conditions.
func (v *visitor) condition(n *sitter.Node) graph.Expression {
	if n == nil {
		return nil
	}
	if n.Type() == "parenthesized_expression" || n.Type() == "condition" {
		if inner := frontend.NamedChildren(n); len(inner) == 1 {
			return v.expr(inner[0])
		}
	}
	return v.expr(n)
}
