// Package store persists annotated matrices to a single SQLite file so that
// analysis steps run as separate commands can be chained.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"

	"sctools/internal/adata"
)

// ErrNotFound is returned when the store file does not exist.
var ErrNotFound = errors.New("matrix store not found")

const schema = `
DROP TABLE IF EXISTS meta;
DROP TABLE IF EXISTS names;
DROP TABLE IF EXISTS x;
DROP TABLE IF EXISTS columns;
DROP TABLE IF EXISTS matrices;
DROP TABLE IF EXISTS edges;
DROP TABLE IF EXISTS uns;
CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE names (axis TEXT NOT NULL, pos INTEGER NOT NULL, name TEXT NOT NULL, PRIMARY KEY (axis, pos));
CREATE TABLE x (i INTEGER NOT NULL, j INTEGER NOT NULL, v REAL NOT NULL);
CREATE TABLE columns (
	axis       TEXT NOT NULL,
	pos        INTEGER NOT NULL,
	name       TEXT NOT NULL,
	numeric    INTEGER NOT NULL,
	categories TEXT NOT NULL,
	data       BLOB NOT NULL,
	PRIMARY KEY (axis, pos)
);
CREATE TABLE matrices (kind TEXT NOT NULL, name TEXT NOT NULL, rows INTEGER NOT NULL, cols INTEGER NOT NULL, data BLOB NOT NULL, PRIMARY KEY (kind, name));
CREATE TABLE edges (i INTEGER NOT NULL, j INTEGER NOT NULL, w REAL NOT NULL);
CREATE TABLE uns (key TEXT PRIMARY KEY, type TEXT NOT NULL, value TEXT NOT NULL);`

const (
	axisObs = "obs"
	axisVar = "var"
)

// Save replaces the contents of path with ad.
func Save(ctx context.Context, path string, ad *adata.AnnData) error {
	if err := ad.Validate(); err != nil {
		return err
	}
	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create store %s: %w", path, err)
	}
	w := writer{ctx: ctx, tx: tx}
	w.meta(ad)
	w.names(axisObs, ad.Obs.Names)
	w.names(axisVar, ad.Var.Names)
	w.matrix(ad.X)
	w.frame(axisObs, ad.Obs)
	w.frame(axisVar, ad.Var)
	for _, k := range sortedKeys(ad.Obsm) {
		w.dense("obsm", k, ad.Obsm[k])
	}
	for _, k := range sortedKeys(ad.Varm) {
		w.dense("varm", k, ad.Varm[k])
	}
	w.graph(ad.Graph)
	w.uns(ad.Uns)
	if w.err != nil {
		return fmt.Errorf("save %s: %w", path, w.err)
	}
	return tx.Commit()
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// writer stops at the first error.
type writer struct {
	ctx context.Context
	tx  *sql.Tx
	err error
}

func (w *writer) exec(q string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = w.tx.ExecContext(w.ctx, q, args...)
}

func (w *writer) meta(ad *adata.AnnData) {
	w.exec(`INSERT INTO meta (key, value) VALUES ('n_obs', ?), ('n_vars', ?)`,
		strconv.Itoa(ad.NObs()), strconv.Itoa(ad.NVars()))
	if g := ad.Graph; g != nil {
		w.exec(`INSERT INTO meta (key, value) VALUES ('graph_n', ?), ('graph_k', ?), ('graph_npcs', ?)`,
			strconv.Itoa(g.N), strconv.Itoa(g.K), strconv.Itoa(g.NPCs))
	}
}

func (w *writer) names(axis string, names []string) {
	for i, n := range names {
		w.exec(`INSERT INTO names (axis, pos, name) VALUES (?, ?, ?)`, axis, i, n)
	}
}

// matrix stores the non-zero entries of x.
func (w *writer) matrix(x *mat.Dense) {
	if w.err != nil || x.IsEmpty() {
		return
	}
	stmt, err := w.tx.PrepareContext(w.ctx, `INSERT INTO x (i, j, v) VALUES (?, ?, ?)`)
	if err != nil {
		w.err = err
		return
	}
	defer stmt.Close()
	r, _ := x.Dims()
	for i := 0; i < r; i++ {
		for j, v := range x.RawRowView(i) {
			if v == 0 {
				continue
			}
			if _, err := stmt.ExecContext(w.ctx, i, j, v); err != nil {
				w.err = err
				return
			}
		}
	}
}

func (w *writer) frame(axis string, f *adata.Frame) {
	for pos, name := range f.Columns() {
		c, _ := f.Col(name)
		cats, err := json.Marshal(nonNil(c.Categories))
		if err != nil {
			w.err = err
			return
		}
		var data []byte
		if c.IsNumeric() {
			data = floatBlob(c.Num)
		} else if data, err = json.Marshal(c.Str); err != nil {
			w.err = err
			return
		}
		w.exec(`INSERT INTO columns (axis, pos, name, numeric, categories, data) VALUES (?, ?, ?, ?, ?, ?)`,
			axis, pos, name, boolInt(c.IsNumeric()), string(cats), data)
	}
}

func (w *writer) dense(kind, name string, m *mat.Dense) {
	if m == nil || m.IsEmpty() {
		w.exec(`INSERT INTO matrices (kind, name, rows, cols, data) VALUES (?, ?, 0, 0, ?)`, kind, name, []byte{})
		return
	}
	r, c := m.Dims()
	data := mat.DenseCopyOf(m).RawMatrix().Data
	w.exec(`INSERT INTO matrices (kind, name, rows, cols, data) VALUES (?, ?, ?, ?, ?)`, kind, name, r, c, floatBlob(data))
}

func (w *writer) graph(g *adata.Neighbors) {
	if g == nil {
		return
	}
	for _, e := range g.Edges {
		w.exec(`INSERT INTO edges (i, j, w) VALUES (?, ?, ?)`, e.I, e.J, e.W)
	}
}

// Uns value types that round-trip.
const (
	unsFloat   = "float"
	unsFloats  = "floats"
	unsString  = "string"
	unsStrings = "strings"
	unsInt     = "int"
	unsBool    = "bool"
)

func (w *writer) uns(m map[string]any) {
	for _, k := range sortedKeys(m) {
		var typ string
		switch m[k].(type) {
		case float64:
			typ = unsFloat
		case []float64:
			typ = unsFloats
		case string:
			typ = unsString
		case []string:
			typ = unsStrings
		case int:
			typ = unsInt
		case bool:
			typ = unsBool
		default:
			if w.err == nil {
				w.err = fmt.Errorf("uns[%q]: unsupported type %T", k, m[k])
			}
			return
		}
		b, err := json.Marshal(m[k])
		if err != nil {
			w.err = err
			return
		}
		w.exec(`INSERT INTO uns (key, type, value) VALUES (?, ?, ?)`, k, typ, string(b))
	}
}

// Load reads the matrix saved at path.
func Load(ctx context.Context, path string) (*adata.AnnData, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	r := reader{ctx: ctx, db: db}
	meta := r.meta()
	obs := r.names(axisObs)
	vars := r.names(axisVar)
	if r.err != nil {
		return nil, fmt.Errorf("load %s: %w", path, r.err)
	}
	x := r.matrix(len(obs), len(vars))
	ad, err := adata.New(x, obs, vars)
	if err != nil {
		return nil, err
	}
	r.frame(axisObs, ad.Obs)
	r.frame(axisVar, ad.Var)
	r.dense(ad)
	if n, ok := meta["graph_n"]; ok {
		g := &adata.Neighbors{N: n, K: meta["graph_k"], NPCs: meta["graph_npcs"]}
		g.Edges = r.edges()
		ad.Graph = g
	}
	r.uns(ad.Uns)
	if r.err != nil {
		return nil, fmt.Errorf("load %s: %w", path, r.err)
	}
	if err := ad.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ad, nil
}

// reader stops at the first error.
type reader struct {
	ctx context.Context
	db  *sql.DB
	err error
}

func (r *reader) query(q string, args []any, scan func(*sql.Rows) error) {
	if r.err != nil {
		return
	}
	rows, err := r.db.QueryContext(r.ctx, q, args...)
	if err != nil {
		r.err = err
		return
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			r.err = err
			return
		}
	}
	r.err = rows.Err()
}

func (r *reader) meta() map[string]int {
	out := make(map[string]int)
	r.query(`SELECT key, value FROM meta`, nil, func(rows *sql.Rows) error {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("meta %s: %w", k, err)
		}
		out[k] = n
		return nil
	})
	return out
}

func (r *reader) names(axis string) []string {
	var out []string
	r.query(`SELECT name FROM names WHERE axis = ? ORDER BY pos`, []any{axis}, func(rows *sql.Rows) error {
		var n string
		if err := rows.Scan(&n); err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	return out
}

func (r *reader) matrix(n, m int) *mat.Dense {
	if n == 0 || m == 0 {
		return nil
	}
	x := mat.NewDense(n, m, nil)
	r.query(`SELECT i, j, v FROM x`, nil, func(rows *sql.Rows) error {
		var i, j int
		var v float64
		if err := rows.Scan(&i, &j, &v); err != nil {
			return err
		}
		if i < 0 || i >= n || j < 0 || j >= m {
			return fmt.Errorf("entry (%d, %d) outside %d×%d", i, j, n, m)
		}
		x.Set(i, j, v)
		return nil
	})
	return x
}

func (r *reader) frame(axis string, f *adata.Frame) {
	r.query(`SELECT name, numeric, categories, data FROM columns WHERE axis = ? ORDER BY pos`, []any{axis}, func(rows *sql.Rows) error {
		var (
			name    string
			numeric int
			cats    string
			data    []byte
		)
		if err := rows.Scan(&name, &numeric, &cats, &data); err != nil {
			return err
		}
		c := &adata.Column{Name: name}
		if err := json.Unmarshal([]byte(cats), &c.Categories); err != nil {
			return err
		}
		if len(c.Categories) == 0 {
			c.Categories = nil
		}
		if numeric == 1 {
			nums, err := floatsFromBlob(data)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			c.Num = nums
		} else {
			c.Str = []string{}
			if err := json.Unmarshal(data, &c.Str); err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
		}
		return f.Set(c)
	})
}

func (r *reader) dense(ad *adata.AnnData) {
	r.query(`SELECT kind, name, rows, cols, data FROM matrices`, nil, func(rows *sql.Rows) error {
		var (
			kind, name string
			n, m       int
			data       []byte
		)
		if err := rows.Scan(&kind, &name, &n, &m, &data); err != nil {
			return err
		}
		d := &mat.Dense{}
		if n > 0 && m > 0 {
			vals, err := floatsFromBlob(data)
			if err != nil {
				return fmt.Errorf("%s %s: %w", kind, name, err)
			}
			if len(vals) != n*m {
				return fmt.Errorf("%s %s: %d values for %d×%d", kind, name, len(vals), n, m)
			}
			d = mat.NewDense(n, m, vals)
		}
		switch kind {
		case "obsm":
			ad.Obsm[name] = d
		case "varm":
			ad.Varm[name] = d
		default:
			return fmt.Errorf("unknown matrix kind %q", kind)
		}
		return nil
	})
}

func (r *reader) edges() []adata.Edge {
	var out []adata.Edge
	r.query(`SELECT i, j, w FROM edges ORDER BY rowid`, nil, func(rows *sql.Rows) error {
		var e adata.Edge
		if err := rows.Scan(&e.I, &e.J, &e.W); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out
}

func (r *reader) uns(m map[string]any) {
	r.query(`SELECT key, type, value FROM uns`, nil, func(rows *sql.Rows) error {
		var k, typ, raw string
		if err := rows.Scan(&k, &typ, &raw); err != nil {
			return err
		}
		var v any
		var err error
		switch typ {
		case unsFloat:
			var f float64
			err = json.Unmarshal([]byte(raw), &f)
			v = f
		case unsFloats:
			var f []float64
			err = json.Unmarshal([]byte(raw), &f)
			v = f
		case unsString:
			var s string
			err = json.Unmarshal([]byte(raw), &s)
			v = s
		case unsStrings:
			var s []string
			err = json.Unmarshal([]byte(raw), &s)
			v = s
		case unsInt:
			var n int
			err = json.Unmarshal([]byte(raw), &n)
			v = n
		case unsBool:
			var b bool
			err = json.Unmarshal([]byte(raw), &b)
			v = b
		default:
			return fmt.Errorf("uns %s: unknown type %q", k, typ)
		}
		if err != nil {
			return fmt.Errorf("uns %s: %w", k, err)
		}
		m[k] = v
		return nil
	})
}

func floatBlob(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(f))
	}
	return b
}

func floatsFromBlob(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
