package golang

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

// translator turns the syntax of one file into a translation unit. Records
// are shared by every file of the package, so methods find their receiver's
// record wherever it is declared.
type translator struct {
	b       *frontend.Builder
	fset    *token.FileSet
	info    *types.Info
	content []byte
	tu      *graph.TranslationUnitDeclaration
	records map[string]*graph.RecordDeclaration
	imports map[string]bool
}

// translatePackage translates the files of one package. Type declarations of
// all files are collected before any function is translated.
func (p *Parser) translatePackage(fset *token.FileSet, info *types.Info, srcs []source) []*graph.TranslationUnitDeclaration {
	records := make(map[string]*graph.RecordDeclaration)
	ts := make([]*translator, len(srcs))
	for i, src := range srcs {
		t := &translator{
			b:       frontend.NewBuilder(graph.Golang, p.types, src.path),
			fset:    fset,
			info:    info,
			content: src.content,
			records: records,
			imports: importNames(src.file),
		}
		t.tu = t.b.Unit()
		t.declareTypes(src.file)
		ts[i] = t
	}
	tus := make([]*graph.TranslationUnitDeclaration, len(srcs))
	for i, src := range srcs {
		ts[i].declareValues(src.file)
		tus[i] = ts[i].tu
	}
	return tus
}

// importNames returns the names under which a file refers to its imports.
// Unnamed imports use the last path element, skipping a major version
// suffix and anything after a dot.
func importNames(f *ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, spec := range f.Imports {
		if spec.Name != nil {
			if spec.Name.Name != "_" && spec.Name.Name != "." {
				names[spec.Name.Name] = true
			}
			continue
		}
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		elems := strings.Split(path, "/")
		name := elems[len(elems)-1]
		if len(elems) > 1 && isMajorVersion(name) {
			name = elems[len(elems)-2]
		}
		if i := strings.Index(name, "."); i > 0 {
			name = name[:i]
		}
		name = strings.TrimPrefix(name, "go-")
		names[name] = true
	}
	return names
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

func (t *translator) at(n ast.Node) frontend.Origin {
	start, end := t.fset.Position(n.Pos()), t.fset.Position(n.End())
	var code string
	if start.Offset >= 0 && start.Offset <= end.Offset && end.Offset <= len(t.content) {
		code = string(t.content[start.Offset:end.Offset])
	}
	return frontend.Origin{Code: code, Loc: t.b.Loc(start.Line, start.Column, end.Line, end.Column)}
}

func (t *translator) typeOf(e ast.Expr) graph.Type {
	if e == nil {
		return nil
	}
	return t.b.Type(typeString(e))
}

// typeString spells a Go type expression the way the type parser reads it:
// element types first, pointers and slices as suffixes, type arguments in
// angle brackets.
func typeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		if x, ok := t.X.(*ast.Ident); ok {
			return x.Name + "." + t.Sel.Name
		}
		return t.Sel.Name
	case *ast.StarExpr:
		return typeString(t.X) + "*"
	case *ast.ArrayType:
		return typeString(t.Elt) + "[]"
	case *ast.Ellipsis:
		return typeString(t.Elt) + "[]"
	case *ast.MapType:
		return "map<" + typeString(t.Key) + ", " + typeString(t.Value) + ">"
	case *ast.ChanType:
		return "chan<" + typeString(t.Value) + ">"
	case *ast.FuncType:
		return "func"
	case *ast.InterfaceType:
		return "any"
	case *ast.StructType:
		return "struct"
	case *ast.ParenExpr:
		return typeString(t.X)
	case *ast.IndexExpr:
		return typeString(t.X) + "<" + typeString(t.Index) + ">"
	case *ast.IndexListExpr:
		parts := make([]string, len(t.Indices))
		for i, idx := range t.Indices {
			parts[i] = typeString(idx)
		}
		return typeString(t.X) + "<" + strings.Join(parts, ", ") + ">"
	}
	return ""
}

// baseTypeName strips pointers and type arguments from a receiver type.
func baseTypeName(expr ast.Expr) string {
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.ParenExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}

func (t *translator) declareTypes(f *ast.File) {
	for _, d := range f.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			if ts.Assign.IsValid() {
				continue
			}
			rec := t.record(ts)
			t.records[rec.Name] = rec
			t.tu.AddDeclaration(rec)
		}
	}
}

// record declares a named type. Structs and interfaces keep their members;
// embedded types become super types. Other named types become classes
// without fields so their methods have a home.
func (t *translator) record(ts *ast.TypeSpec) *graph.RecordDeclaration {
	b := t.b
	switch st := ts.Type.(type) {
	case *ast.StructType:
		rec := b.Record(t.at(ts), ts.Name.Name, graph.KindStruct)
		for _, field := range st.Fields.List {
			typ := t.typeOf(field.Type)
			if len(field.Names) == 0 {
				rec.SuperClasses = append(rec.SuperClasses, typ)
				b.Field(t.at(field), rec, baseTypeName(field.Type), typ, nil)
				continue
			}
			for _, name := range field.Names {
				b.Field(t.at(name), rec, name.Name, typ, nil)
			}
		}
		return rec
	case *ast.InterfaceType:
		rec := b.Record(t.at(ts), ts.Name.Name, graph.KindInterface)
		for _, m := range st.Methods.List {
			ft, ok := m.Type.(*ast.FuncType)
			if !ok || len(m.Names) == 0 {
				rec.SuperClasses = append(rec.SuperClasses, t.typeOf(m.Type))
				continue
			}
			for _, name := range m.Names {
				method := b.Method(t.at(m), name.Name, nil, rec)
				t.signature(&method.FunctionDeclaration, ft)
			}
		}
		return rec
	}
	return b.Record(t.at(ts), ts.Name.Name, graph.KindClass)
}

// declareValues translates functions, methods and package level variables
// and constants.
func (t *translator) declareValues(f *ast.File) {
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil && len(d.Recv.List) > 0 {
				if m := t.method(d); m.Record == nil {
					t.tu.AddDeclaration(m)
				}
				continue
			}
			fn := t.b.Function(t.at(d), d.Name.Name, nil)
			fn.Owner = t.tu
			t.function(fn, d.Type, d.Body)
			t.tu.AddDeclaration(fn)
		case *ast.GenDecl:
			if d.Tok != token.VAR && d.Tok != token.CONST {
				continue
			}
			for _, v := range t.valueSpecs(d) {
				t.tu.AddDeclaration(v)
			}
		}
	}
}

// method translates a method and attaches it to its receiver's record when
// the package declares one.
func (t *translator) method(d *ast.FuncDecl) *graph.MethodDeclaration {
	recv := d.Recv.List[0]
	rec := t.records[baseTypeName(recv.Type)]
	m := t.b.Method(t.at(d), d.Name.Name, nil, rec)
	name := ""
	if len(recv.Names) > 0 {
		name = recv.Names[0].Name
	}
	m.Receiver = t.b.Var(t.at(recv), name, t.typeOf(recv.Type), nil)
	t.function(&m.FunctionDeclaration, d.Type, d.Body)
	return m
}

// function fills in parameters, results and body. Named results are
// declared at the top of the body.
func (t *translator) function(fn *graph.FunctionDeclaration, ft *ast.FuncType, body *ast.BlockStmt) {
	named := t.signature(fn, ft)
	if body == nil {
		return
	}
	blk := t.block(body)
	if len(named) > 0 {
		decl := frontend.Implicit(t.b, &graph.DeclarationStatement{Declarations: named}, frontend.Origin{Loc: t.at(ft.Results).Loc})
		blk.Statements = append([]graph.Statement{decl}, blk.Statements...)
	}
	fn.Body = blk
}

// signature adds parameters and return types. It returns the declarations of
// named results.
func (t *translator) signature(fn *graph.FunctionDeclaration, ft *ast.FuncType) []graph.Declaration {
	b := t.b
	if ft.Params != nil {
		for _, field := range ft.Params.List {
			_, variadic := field.Type.(*ast.Ellipsis)
			typ := t.typeOf(field.Type)
			if len(field.Names) == 0 {
				fn.AddParameter(b.Param(t.at(field), "", typ, variadic))
				continue
			}
			for _, name := range field.Names {
				fn.AddParameter(b.Param(t.at(name), name.Name, typ, variadic))
			}
		}
	}
	var named []graph.Declaration
	if ft.Results != nil {
		for _, field := range ft.Results.List {
			typ := t.typeOf(field.Type)
			n := max(len(field.Names), 1)
			for range n {
				fn.ReturnTypes = append(fn.ReturnTypes, typ)
			}
			for _, name := range field.Names {
				named = append(named, b.Var(t.at(name), name.Name, typ, nil))
			}
		}
	}
	if len(fn.ReturnTypes) == 1 {
		graph.SetType(fn, fn.ReturnTypes[0])
	}
	return named
}

// valueSpecs translates var and const specs. Values pair up with names; a
// single multi-value initializer goes to the first name.
func (t *translator) valueSpecs(gd *ast.GenDecl) []graph.Declaration {
	var out []graph.Declaration
	for _, spec := range gd.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		typ := t.typeOf(vs.Type)
		for i, name := range vs.Names {
			var init graph.Expression
			switch {
			case len(vs.Values) == len(vs.Names):
				init = t.expr(vs.Values[i])
			case len(vs.Values) == 1 && i == 0:
				init = t.expr(vs.Values[0])
			}
			out = append(out, t.b.Var(t.at(name), name.Name, typ, init))
		}
	}
	return out
}
