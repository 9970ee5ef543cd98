package frontend_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpg-enrich/frontend"
	_ "cpg-enrich/frontend/c"
	"cpg-enrich/graph"
)

type stubParser struct {
	root  string
	calls *atomic.Int32
}

func (p stubParser) ParseFile(_ context.Context, path string) (*graph.TranslationUnitDeclaration, error) {
	p.calls.Add(1)
	if filepath.Base(path) == "broken.x" {
		return nil, errors.New("syntax error")
	}
	tu := &graph.TranslationUnitDeclaration{Path: frontend.RelPath(p.root, path)}
	tu.Name = tu.Path
	return tu, nil
}

type stubLoader struct {
	stubParser
	batches *[][]string
}

func (l stubLoader) LoadDir(ctx context.Context, root string, files []string) ([]*graph.TranslationUnitDeclaration, error) {
	*l.batches = append(*l.batches, files)
	var tus []*graph.TranslationUnitDeclaration
	for _, f := range files {
		tu, err := l.ParseFile(ctx, f)
		if err != nil {
			return nil, err
		}
		tus = append(tus, tu)
	}
	return tus, nil
}

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("int f(void) { return 0; }\n"), 0o644))
	}
	return root
}

func stubRegistry(calls *atomic.Int32) *frontend.Registry {
	r := frontend.NewRegistry()
	r.Register("x", []string{".x"}, func(_ *graph.TypeManager, root string) frontend.Parser {
		return stubParser{root: root, calls: calls}
	})
	r.Register("y", []string{".y", ".x"}, func(_ *graph.TypeManager, root string) frontend.Parser {
		return stubParser{root: root, calls: calls}
	})
	return r
}

func TestRegistry(t *testing.T) {
	var calls atomic.Int32
	r := stubRegistry(&calls)

	assert.Equal(t, []string{"x", "y"}, r.Languages())
	lang, ok := r.LanguageFor(".x")
	assert.True(t, ok)
	assert.Equal(t, "x", lang, "the first registration of an extension wins")
	assert.Equal(t, []string{".y"}, r.Extensions("y"))

	_, ok = r.LanguageFor(".z")
	assert.False(t, ok)
	_, err := r.Create("z", nil, "")
	assert.Error(t, err)

	p, err := r.Create("x", nil, "/src")
	require.NoError(t, err)
	assert.IsType(t, stubParser{}, p)
}

func TestDefaultRegistryHasC(t *testing.T) {
	lang, ok := frontend.DefaultRegistry.LanguageFor(".c")
	assert.True(t, ok)
	assert.Equal(t, "c", lang)
	assert.Contains(t, frontend.DefaultRegistry.Languages(), "c")
}

func TestDiscover(t *testing.T) {
	root := writeTree(t,
		"a.x",
		"pkg/b.x",
		"pkg/c.y",
		"pkg/readme.md",
		"vendor/v.x",
		".git/g.x",
		"_build/u.x",
		"tests/t.x",
	)
	var calls atomic.Int32
	reg := stubRegistry(&calls)

	files, err := frontend.Discover(root, frontend.Options{Registry: reg})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.x"),
		filepath.Join(root, "pkg", "b.x"),
		filepath.Join(root, "tests", "t.x"),
	}, files["x"])
	assert.Equal(t, []string{filepath.Join(root, "pkg", "c.y")}, files["y"])

	files, err = frontend.Discover(root, frontend.Options{Registry: reg, Languages: []string{"y"}, SkipTests: true})
	require.NoError(t, err)
	assert.NotContains(t, files, "x")
	assert.Len(t, files["y"], 1)

	_, err = frontend.Discover(filepath.Join(root, "missing"), frontend.Options{Registry: reg})
	assert.Error(t, err)
}

func TestParseAllSkipsBrokenFiles(t *testing.T) {
	root := writeTree(t, "z.x", "a.x", "broken.x", "m/n.y")
	var calls atomic.Int32
	opts := frontend.Options{Registry: stubRegistry(&calls), Parallelism: 4}

	units, err := frontend.ParseAll(context.Background(), root, graph.NewTypeManager(), opts)
	require.NoError(t, err)
	var paths []string
	for _, u := range units {
		paths = append(paths, u.Path)
	}
	assert.Equal(t, []string{"a.x", "m/n.y", "z.x"}, paths)
	assert.Equal(t, int32(4), calls.Load())
}

func TestParseAllUsesDirLoader(t *testing.T) {
	root := writeTree(t, "a.x", "sub/b.x")
	var (
		calls   atomic.Int32
		batches [][]string
	)
	reg := frontend.NewRegistry()
	reg.Register("x", []string{".x"}, func(_ *graph.TypeManager, root string) frontend.Parser {
		return stubLoader{stubParser: stubParser{root: root, calls: &calls}, batches: &batches}
	})

	units, err := frontend.ParseAll(context.Background(), root, nil, frontend.Options{Registry: reg})
	require.NoError(t, err)
	assert.Len(t, units, 2)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

type closingParser struct {
	stubParser
	closed *atomic.Int32
}

func (p closingParser) Close() { p.closed.Add(1) }

func TestParseAllClosesParsers(t *testing.T) {
	root := writeTree(t, "a.x", "b.x", "broken.x")
	var calls, created, closed atomic.Int32
	reg := frontend.NewRegistry()
	reg.Register("x", []string{".x"}, func(_ *graph.TypeManager, root string) frontend.Parser {
		created.Add(1)
		return closingParser{stubParser: stubParser{root: root, calls: &calls}, closed: &closed}
	})

	units, err := frontend.ParseAll(context.Background(), root, nil, frontend.Options{Registry: reg, Parallelism: 2})
	require.NoError(t, err)
	assert.Len(t, units, 2)
	assert.Equal(t, int32(4), created.Load(), "one parser per file plus the one checked for directory loading")
	assert.Equal(t, created.Load(), closed.Load())
}

func TestParseAllCancelled(t *testing.T) {
	root := writeTree(t, "a.x", "b.x")
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := frontend.ParseAll(ctx, root, nil, frontend.Options{Registry: stubRegistry(&calls)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseAllWithCFrontend(t *testing.T) {
	root := writeTree(t, "src/main.c", "src/util.c", "test_main.c")

	units, err := frontend.ParseAll(context.Background(), root, graph.NewTypeManager(), frontend.Options{
		Languages: []string{"c"},
		SkipTests: true,
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "src/main.c", units[0].Path)
	assert.Equal(t, "src/util.c", units[1].Path)
	require.Len(t, units[0].Declarations, 1)
	assert.Equal(t, "f", units[0].Declarations[0].Base().Name)
}

func TestRelPath(t *testing.T) {
	assert.Equal(t, "a/b.c", frontend.RelPath("/src", "/src/a/b.c"))
	assert.Equal(t, "/other/b.c", frontend.RelPath("/src", "/other/b.c"))
}
