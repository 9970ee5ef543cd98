package export

import (
	"fmt"
	"os"
	"slices"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const batchSize = 50000

// Progress receives export messages.
type Progress interface {
	Log(format string, args ...any)
	Verbose(format string, args ...any)
}

// Report is the outcome of the validation queries.
type Report struct {
	OrphanEdges   int64
	EOGViolations int64
	NodeKinds     map[string]int64
	EdgeKinds     map[string]int64
}

// Write writes g to a fresh SQLite database at path. Indexes are created
// after the bulk insert. With validate set the validation queries run last
// and their report is returned.
func Write(path string, g *Graph, validate bool, prog Progress) (*Report, error) {
	prog.Log("Writing SQLite to %s ...", path)

	_ = os.Remove(path)

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -64000",
		"PRAGMA journal_mode = WAL",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := createTables(conn); err != nil {
		return nil, err
	}

	if err := insertAll(conn, g, prog); err != nil {
		return nil, err
	}

	prog.Log("Creating indexes...")
	if err := createIndexes(conn); err != nil {
		return nil, err
	}
	if err := createViews(conn); err != nil {
		return nil, err
	}

	var report *Report
	if validate {
		if report, err = Validate(conn, prog); err != nil {
			return nil, err
		}
	}

	if info, _ := os.Stat(path); info != nil {
		prog.Log("Wrote %s (%d KB)", path, info.Size()/1024)
	}
	return report, nil
}

// insertAll inserts every row in one immediate transaction.
func insertAll(conn *sqlite.Conn, g *Graph, prog Progress) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	if err = insertNodes(conn, g.Nodes, prog); err != nil {
		return err
	}
	if err = insertEdges(conn, g.Edges, prog); err != nil {
		return err
	}
	if err = insertScopes(conn, g.Scopes); err != nil {
		return err
	}
	if err = insertTypes(conn, g.Types); err != nil {
		return err
	}
	if err = insertMetrics(conn, g.Metrics, prog); err != nil {
		return err
	}
	return insertMeta(conn, g.Meta)
}

func createTables(conn *sqlite.Conn) error {
	ddl := `
CREATE TABLE nodes (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    code TEXT,
    file TEXT,
    line INTEGER,
    col INTEGER,
    end_line INTEGER,
    language TEXT,
    parent_function TEXT,
    type_info TEXT,
    properties TEXT
);

CREATE TABLE edges (
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    kind TEXT NOT NULL,
    properties TEXT
);

CREATE TABLE scopes (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    parent TEXT,
    node TEXT,
    symbols INTEGER NOT NULL
);

CREATE TABLE types (
    name TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    language TEXT,
    uses INTEGER NOT NULL
);

CREATE TABLE metrics (
    function_id TEXT PRIMARY KEY,
    cyclomatic_complexity INTEGER,
    fan_in INTEGER,
    fan_out INTEGER,
    loc INTEGER,
    num_params INTEGER,
    recursive INTEGER
);

CREATE TABLE meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
	if err := sqlitex.ExecuteScript(conn, ddl, nil); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func createIndexes(conn *sqlite.Conn) error {
	indexes := `
CREATE INDEX idx_nodes_kind ON nodes(kind);
CREATE INDEX idx_nodes_file ON nodes(file);
CREATE INDEX idx_nodes_parent ON nodes(parent_function);
CREATE INDEX idx_edges_source ON edges(source, kind);
CREATE INDEX idx_edges_target ON edges(target, kind);
CREATE INDEX idx_edges_kind ON edges(kind);
CREATE INDEX idx_scopes_parent ON scopes(parent);
`
	if err := sqlitex.ExecuteScript(conn, indexes, nil); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// createViews adds the summary views queried by the check command and
// ad-hoc inspection.
func createViews(conn *sqlite.Conn) error {
	ddl := `
CREATE VIEW v_call_graph AS
  SELECT c.id AS call_id, c.name AS call_name, c.file AS file, c.line AS line,
         f.id AS callee_id, f.name AS callee_name,
         json_extract(f.properties, '$.inferred') IS NOT NULL AS callee_inferred
  FROM edges e
  JOIN nodes c ON c.id = e.source
  JOIN nodes f ON f.id = e.target
  WHERE e.kind = 'invokes';

CREATE VIEW v_unresolved_refs AS
  SELECT n.id, n.name, n.file, n.line
  FROM nodes n
  WHERE n.kind IN ('DeclaredReferenceExpression', 'MemberExpression')
    AND NOT EXISTS (SELECT 1 FROM edges e WHERE e.source = n.id AND e.kind = 'refers_to');

CREATE VIEW v_stats_node_kinds AS
  SELECT kind, COUNT(*) AS count FROM nodes GROUP BY kind ORDER BY count DESC;

CREATE VIEW v_stats_edge_kinds AS
  SELECT kind, COUNT(*) AS count FROM edges GROUP BY kind ORDER BY count DESC;
`
	if err := sqlitex.ExecuteScript(conn, ddl, nil); err != nil {
		return fmt.Errorf("create views: %w", err)
	}
	return nil
}

func insertNodes(conn *sqlite.Conn, nodes []Node, prog Progress) error {
	stmt, err := conn.Prepare(`INSERT OR IGNORE INTO nodes (id, kind, name, code, file, line, col, end_line, language, parent_function, type_info, properties) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare node insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i, n := range nodes {
		stmt.BindText(1, n.ID)
		stmt.BindText(2, n.Kind)
		stmt.BindText(3, n.Name)
		bindTextOrNull(stmt, 4, n.Code)
		bindTextOrNull(stmt, 5, n.File)
		bindIntOrNull(stmt, 6, n.Line)
		bindIntOrNull(stmt, 7, n.Col)
		bindIntOrNull(stmt, 8, n.EndLine)
		bindTextOrNull(stmt, 9, n.Language)
		bindTextOrNull(stmt, 10, n.ParentFunction)
		bindTextOrNull(stmt, 11, n.TypeInfo)
		bindTextOrNull(stmt, 12, PropsJSON(n.Properties))

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
		_ = stmt.Reset()

		if (i+1)%batchSize == 0 {
			prog.Verbose("  inserted %d/%d nodes", i+1, len(nodes))
		}
	}

	prog.Log("Inserted %d nodes", len(nodes))
	return nil
}

func insertEdges(conn *sqlite.Conn, edges []Edge, prog Progress) error {
	stmt, err := conn.Prepare(`INSERT INTO edges (source, target, kind, properties) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i, e := range edges {
		stmt.BindText(1, e.Source)
		stmt.BindText(2, e.Target)
		stmt.BindText(3, e.Kind)
		bindTextOrNull(stmt, 4, PropsJSON(e.Properties))

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert edge %s→%s: %w", e.Source, e.Target, err)
		}
		_ = stmt.Reset()

		if (i+1)%batchSize == 0 {
			prog.Verbose("  inserted %d/%d edges", i+1, len(edges))
		}
	}

	prog.Log("Inserted %d edges", len(edges))
	return nil
}

func insertScopes(conn *sqlite.Conn, scopes []Scope) error {
	stmt, err := conn.Prepare(`INSERT INTO scopes (id, kind, parent, node, symbols) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare scope insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for _, s := range scopes {
		stmt.BindText(1, s.ID)
		stmt.BindText(2, s.Kind)
		bindTextOrNull(stmt, 3, s.Parent)
		bindTextOrNull(stmt, 4, s.Node)
		stmt.BindInt64(5, int64(s.Symbols))

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert scope %s: %w", s.ID, err)
		}
		_ = stmt.Reset()
	}
	return nil
}

func insertTypes(conn *sqlite.Conn, types []TypeUse) error {
	stmt, err := conn.Prepare(`INSERT OR IGNORE INTO types (name, kind, language, uses) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare type insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for _, t := range types {
		stmt.BindText(1, t.Name)
		stmt.BindText(2, t.Kind)
		bindTextOrNull(stmt, 3, t.Language)
		stmt.BindInt64(4, int64(t.Uses))

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert type %s: %w", t.Name, err)
		}
		_ = stmt.Reset()
	}
	return nil
}

func insertMetrics(conn *sqlite.Conn, metrics []Metrics, prog Progress) error {
	stmt, err := conn.Prepare(`INSERT OR IGNORE INTO metrics (function_id, cyclomatic_complexity, fan_in, fan_out, loc, num_params, recursive) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare metrics insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for _, m := range metrics {
		stmt.BindText(1, m.FunctionID)
		stmt.BindInt64(2, int64(m.CyclomaticComplexity))
		stmt.BindInt64(3, int64(m.FanIn))
		stmt.BindInt64(4, int64(m.FanOut))
		stmt.BindInt64(5, int64(m.LOC))
		stmt.BindInt64(6, int64(m.NumParams))
		stmt.BindBool(7, m.Recursive)

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert metric %s: %w", m.FunctionID, err)
		}
		_ = stmt.Reset()
	}

	prog.Log("Inserted %d function metrics", len(metrics))
	return nil
}

func insertMeta(conn *sqlite.Conn, meta map[string]string) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := sqlitex.Execute(conn, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{k, meta[k]}}); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}
	return nil
}

// Validate runs the validation queries against a written database: orphan
// edges, the EOG check recorded at collection time and counts per kind.
func Validate(conn *sqlite.Conn, prog Progress) (*Report, error) {
	prog.Log("Running validation queries...")
	r := &Report{NodeKinds: make(map[string]int64), EdgeKinds: make(map[string]int64)}

	if err := sqlitex.ExecuteTransient(conn,
		`SELECT COUNT(*) FROM edges WHERE source NOT IN (SELECT id FROM nodes) OR target NOT IN (SELECT id FROM nodes)`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				r.OrphanEdges = stmt.ColumnInt64(0)
				return nil
			},
		}); err != nil {
		return nil, fmt.Errorf("orphan edges: %w", err)
	}
	if r.OrphanEdges > 0 {
		prog.Log("  WARNING: %d orphan edges (referencing non-existent nodes)", r.OrphanEdges)
	} else {
		prog.Log("  OK: zero orphan edges")
	}

	if err := sqlitex.ExecuteTransient(conn,
		`SELECT CAST(value AS INTEGER) FROM meta WHERE key = 'eog_violations'`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				r.EOGViolations = stmt.ColumnInt64(0)
				return nil
			},
		}); err != nil {
		return nil, fmt.Errorf("eog check: %w", err)
	}
	if r.EOGViolations > 0 {
		prog.Log("  WARNING: %d EOG mirror violations", r.EOGViolations)
	} else {
		prog.Log("  OK: EOG edges mirrored")
	}

	for _, q := range []struct {
		table string
		into  map[string]int64
	}{
		{"nodes", r.NodeKinds},
		{"edges", r.EdgeKinds},
	} {
		if err := sqlitex.ExecuteTransient(conn,
			`SELECT kind, COUNT(*) FROM `+q.table+` GROUP BY kind ORDER BY COUNT(*) DESC`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					q.into[stmt.ColumnText(0)] = stmt.ColumnInt64(1)
					prog.Log("  %s: %s = %d", q.table, stmt.ColumnText(0), stmt.ColumnInt64(1))
					return nil
				},
			}); err != nil {
			return nil, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return r, nil
}

// Helper functions for nullable bindings.

func bindTextOrNull(stmt *sqlite.Stmt, param int, val string) {
	if val == "" {
		stmt.BindNull(param)
	} else {
		stmt.BindText(param, val)
	}
}

func bindIntOrNull(stmt *sqlite.Stmt, param, val int) {
	if val == 0 {
		stmt.BindNull(param)
	} else {
		stmt.BindInt64(param, int64(val))
	}
}
