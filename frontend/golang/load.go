// Package golang builds translation units from Go sources. Module trees are
// loaded with go/packages so package qualified names are told apart from
// values; loose files fall back to syntax-only parsing.
package golang

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/tools/go/packages"

	"cpg-enrich/frontend"
	"cpg-enrich/graph"
)

func init() {
	frontend.DefaultRegistry.Register("go", graph.Golang.FileExtensions,
		func(tm *graph.TypeManager, root string) frontend.Parser {
			return NewParser(tm, root)
		})
}

// Parser builds translation units from Go files.
type Parser struct {
	types  *graph.TypeManager
	root   string
	Logger *slog.Logger
}

// NewParser creates a Go parser. Unit paths are relative to root.
func NewParser(tm *graph.TypeManager, root string) *Parser {
	if tm == nil {
		tm = graph.NewTypeManager()
	}
	return &Parser{types: tm, root: root, Logger: slog.Default()}
}

// source is one file ready for translation.
type source struct {
	path    string // relative to the parser root
	file    *ast.File
	content []byte
}

// ParseFile parses a single Go file without type information.
func (p *Parser) ParseFile(ctx context.Context, path string) (*graph.TranslationUnitDeclaration, error) {
	fset := token.NewFileSet()
	src, err := p.parseSyntax(fset, path)
	if err != nil {
		return nil, err
	}
	return p.translatePackage(fset, nil, []source{src})[0], nil
}

// Parse builds the unit of content, naming it file.
func (p *Parser) Parse(ctx context.Context, file string, content []byte) (*graph.TranslationUnitDeclaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, content, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	return p.translatePackage(fset, nil, []source{{path: file, file: f, content: content}})[0], nil
}

func (p *Parser) parseSyntax(fset *token.FileSet, path string) (source, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("read file: %w", err)
	}
	f, err := parser.ParseFile(fset, path, content, parser.SkipObjectResolution)
	if err != nil {
		return source{}, fmt.Errorf("parse file: %w", err)
	}
	return source{path: frontend.RelPath(p.root, path), file: f, content: content}, nil
}

// LoadDir translates files, which all live below root. Files belonging to a
// module are loaded package by package with type information; the rest are
// parsed one directory at a time.
func (p *Parser) LoadDir(ctx context.Context, root string, files []string) ([]*graph.TranslationUnitDeclaration, error) {
	want := make(map[string]bool, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		want[abs] = true
	}

	fset := token.NewFileSet()
	var tus []*graph.TranslationUnitDeclaration

	ms, err := discoverModules(root)
	if err != nil {
		return nil, err
	}
	if !ms.empty() {
		pkgs, err := p.loadPackages(ctx, fset, ms)
		if err != nil {
			p.Logger.Warn("package loading failed, parsing without types", "root", root, "err", err)
		}
		for _, pkg := range pkgs {
			var srcs []source
			for i, f := range pkg.Syntax {
				if i >= len(pkg.CompiledGoFiles) || !want[pkg.CompiledGoFiles[i]] {
					continue
				}
				path := pkg.CompiledGoFiles[i]
				delete(want, path)
				content, err := os.ReadFile(path)
				if err != nil {
					p.Logger.Warn("skipping file", "file", path, "err", err)
					continue
				}
				srcs = append(srcs, source{path: frontend.RelPath(p.root, path), file: f, content: content})
			}
			if len(srcs) > 0 {
				tus = append(tus, p.translatePackage(fset, pkg.TypesInfo, srcs)...)
			}
		}
	}

	// Files outside modules, excluded by build constraints or test files.
	rest := make([]string, 0, len(want))
	for f := range want {
		rest = append(rest, f)
	}
	sort.Strings(rest)
	groups := make(map[string][]source)
	var order []string
	for _, path := range rest {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := p.parseSyntax(fset, path)
		if err != nil {
			p.Logger.Warn("skipping file", "file", path, "err", err)
			continue
		}
		key := filepath.Dir(path) + "\x00" + src.file.Name.Name
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], src)
	}
	for _, key := range order {
		tus = append(tus, p.translatePackage(fset, nil, groups[key])...)
	}
	return tus, nil
}

// loadPackages loads every package of the module set. Several modules are
// loaded through a temporary workspace.
func (p *Parser) loadPackages(ctx context.Context, fset *token.FileSet, ms *moduleSet) ([]*packages.Package, error) {
	env := replaceEnv(os.Environ(), "GOWORK", "off")
	if len(ms.modules) > 1 {
		work, err := ms.writeWorkspace()
		if err != nil {
			return nil, err
		}
		defer os.Remove(work)
		env = replaceEnv(os.Environ(), "GOWORK", work)
	}
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo,
		Context: ctx,
		Dir:     ms.PrimaryDir(),
		Fset:    fset,
		Tests:   false,
		Env:     env,
	}
	initial, err := packages.Load(cfg, ms.LoadPatterns()...)
	if err != nil {
		return nil, fmt.Errorf("packages.Load: %w", err)
	}

	filtered := make([]*packages.Package, 0, len(initial))
	for _, pkg := range initial {
		if !ms.IsKnownPkg(pkg.PkgPath) {
			continue
		}
		if len(pkg.Errors) > 0 {
			p.Logger.Debug("package has errors", "package", pkg.PkgPath, "count", len(pkg.Errors), "first", pkg.Errors[0])
		}
		if pkg.TypesInfo == nil {
			pkg.TypesInfo = &types.Info{}
		}
		filtered = append(filtered, pkg)
	}
	return filtered, nil
}
