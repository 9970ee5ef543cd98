package frontend

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"cpg-enrich/config"
	"cpg-enrich/graph"
)

// Options selects the files ParseAll parses and how.
type Options struct {
	// Languages lists the enabled frontends; empty means all registered.
	Languages   []string
	SkipTests   bool
	Parallelism int
	Logger      *slog.Logger
	// Registry defaults to DefaultRegistry.
	Registry *Registry
}

// OptionsFrom derives parse options from the frontend configuration.
func OptionsFrom(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Languages:   cfg.Frontend.Languages,
		SkipTests:   cfg.Frontend.SkipTests,
		Parallelism: cfg.Frontend.Parallelism,
		Logger:      logger,
	}
}

func (o *Options) defaults() {
	if o.Registry == nil {
		o.Registry = DefaultRegistry
	}
	if len(o.Languages) == 0 {
		o.Languages = o.Registry.Languages()
	}
	if o.Parallelism < 1 {
		o.Parallelism = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Discover returns the source files below root per enabled language, each
// list sorted.
func Discover(root string, opts Options) (map[string][]string, error) {
	opts.defaults()
	files := make(map[string][]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldSkipDir(d.Name(), opts.SkipTests) {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := opts.Registry.LanguageFor(filepath.Ext(path))
		if !ok || !slices.Contains(opts.Languages, lang) {
			return nil
		}
		if opts.SkipTests && isTestFile(d.Name()) {
			return nil
		}
		files[lang] = append(files[lang], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	for _, l := range files {
		slices.Sort(l)
	}
	return files, nil
}

// ParseAll parses every enabled source file below root. Files that fail to
// parse are logged and skipped; only cancellation and loader failures are
// returned. Units are sorted by path.
func ParseAll(ctx context.Context, root string, tm *graph.TypeManager, opts Options) ([]*graph.TranslationUnitDeclaration, error) {
	opts.defaults()
	files, err := Discover(root, opts)
	if err != nil {
		return nil, err
	}

	var units []*graph.TranslationUnitDeclaration
	for _, lang := range opts.Languages {
		paths := files[lang]
		if len(paths) == 0 {
			continue
		}
		parsed, err := parseLanguage(ctx, root, lang, paths, tm, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", lang, err)
		}
		units = append(units, parsed...)
	}
	slices.SortFunc(units, func(a, b *graph.TranslationUnitDeclaration) int {
		return strings.Compare(a.Path, b.Path)
	})
	return units, nil
}

func parseLanguage(ctx context.Context, root, lang string, paths []string, tm *graph.TypeManager, opts Options) ([]*graph.TranslationUnitDeclaration, error) {
	first, err := opts.Registry.Create(lang, tm, root)
	if err != nil {
		return nil, err
	}
	if loader, ok := first.(DirLoader); ok {
		defer closeParser(first)
		return loader.LoadDir(ctx, root, paths)
	}
	closeParser(first)

	var (
		mu    sync.Mutex
		units = make([]*graph.TranslationUnitDeclaration, 0, len(paths))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Parsers keep per-file state and are not shared between goroutines.
			p, err := opts.Registry.Create(lang, tm, root)
			if err != nil {
				return err
			}
			defer closeParser(p)
			tu, err := p.ParseFile(gctx, path)
			if err != nil {
				opts.Logger.Warn("skipping file", "language", lang, "path", path, "error", err)
				return nil
			}
			mu.Lock()
			units = append(units, tu)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

func closeParser(p Parser) {
	if c, ok := p.(Closer); ok {
		c.Close()
	}
}

// shouldSkipDir reports whether a directory holds no analysable sources.
func shouldSkipDir(name string, skipTests bool) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	switch name {
	case "vendor", "node_modules", "testdata",
		"target", "build", "bin", "out", "classes":
		return true
	case "test", "tests":
		return skipTests
	}
	return false
}

func isTestFile(name string) bool {
	switch {
	case strings.HasSuffix(name, "_test.go"):
		return true
	case strings.HasSuffix(name, "Test.java"), strings.HasSuffix(name, "Tests.java"):
		return true
	case strings.HasPrefix(name, "test_") && strings.HasSuffix(name, ".c"):
		return true
	}
	return false
}

// RelPath returns path relative to root with forward slashes, or path
// itself when it is not below root.
func RelPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
