package golang

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/mod/modfile"
)

// module is one Go module found below the analysed root.
type module struct {
	Path string // e.g. "github.com/prometheus/prometheus"
	Dir  string // absolute path to the module root
}

// moduleSet holds every module below a root. The root module, if any, comes
// first.
type moduleSet struct {
	modules []module
}

// discoverModules collects the modules below root. A nested module declaring
// a path already seen is skipped, so the workspace never lists a module twice.
func discoverModules(root string) (*moduleSet, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	ms := &moduleSet{}
	seen := make(map[string]bool)
	add := func(dir string) {
		path := readModulePath(dir)
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		ms.modules = append(ms.modules, module{Path: path, Dir: dir})
	}
	add(abs)
	for _, d := range findSubModules(abs) {
		add(d)
	}
	return ms, nil
}

// readModulePath returns the module path from dir/go.mod, or "" if unreadable.
func readModulePath(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// findSubModules walks dir looking for directories with go.mod (excluding dir itself).
func findSubModules(dir string) []string {
	var dirs []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			base := d.Name()
			if path != dir && (base == "vendor" || base == "testdata" || strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == "go.mod" && path != filepath.Join(dir, "go.mod") {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	return dirs
}

func (ms *moduleSet) empty() bool { return len(ms.modules) == 0 }

// IsKnownPkg returns true if pkgPath belongs to any module in the set.
func (ms *moduleSet) IsKnownPkg(pkgPath string) bool {
	for _, m := range ms.modules {
		if pkgPath == m.Path || strings.HasPrefix(pkgPath, m.Path+"/") {
			return true
		}
	}
	return false
}

// PrimaryDir returns the first module's directory.
func (ms *moduleSet) PrimaryDir() string {
	return ms.modules[0].Dir
}

// LoadPatterns returns the "path/..." patterns for packages.Load.
func (ms *moduleSet) LoadPatterns() []string {
	patterns := make([]string, len(ms.modules))
	for i, m := range ms.modules {
		patterns[i] = m.Path + "/..."
	}
	return patterns
}

// writeWorkspace writes a temporary go.work using every module of the set.
// The caller removes the returned file.
func (ms *moduleSet) writeWorkspace() (string, error) {
	var buf strings.Builder
	buf.WriteString("go " + goVersion() + "\n\nuse (\n")
	for _, m := range ms.modules {
		buf.WriteString("\t" + m.Dir + "\n")
	}
	buf.WriteString(")\n")

	f, err := os.CreateTemp("", "cpg-workspace-*.work")
	if err != nil {
		return "", fmt.Errorf("create temp go.work: %w", err)
	}
	if _, err := f.WriteString(buf.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write go.work: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// goVersion is the running toolchain's version in go.work syntax, so the
// workspace never asks for a toolchain download.
func goVersion() string {
	v, ok := strings.CutPrefix(runtime.Version(), "go")
	if !ok {
		return "1.22"
	}
	if i := strings.IndexAny(v, " -"); i >= 0 {
		v = v[:i]
	}
	return v
}

// replaceEnv returns a copy of environ with key set to val, replacing any
// existing entry for key. This avoids duplicate env vars which have
// platform-dependent behavior (last-wins on Linux, first-wins on some BSDs).
func replaceEnv(environ []string, key, val string) []string {
	prefix := key + "="
	result := make([]string, 0, len(environ)+1)
	for _, e := range environ {
		if !strings.HasPrefix(e, prefix) {
			result = append(result, e)
		}
	}
	return append(result, prefix+val)
}
