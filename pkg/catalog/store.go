package catalog

import (
	"context"
	"database/sql"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// ErrNotFound is returned when a store holds no assembly of the requested
// name.
var ErrNotFound = errors.New("assembly not found")

const schema = `
CREATE TABLE IF NOT EXISTS assemblies (
	name    TEXT PRIMARY KEY,
	version TEXT NOT NULL,
	token   TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS types (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	assembly  TEXT NOT NULL,
	full_name TEXT NOT NULL,
	attribute INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS types_assembly ON types (assembly);
CREATE TABLE IF NOT EXISTS members (
	type_id INTEGER NOT NULL,
	seq     INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	name    TEXT NOT NULL,
	params  TEXT NOT NULL,
	ret     TEXT NOT NULL,
	static  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS members_type ON members (type_id);
`

// Store is a type catalog persisted in a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens (creating if needed) the catalog database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	// SQLite allows one writer; a single connection keeps it simple.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "migrate catalog %s", path)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores asm, replacing any assembly of the same name.
func (s *Store) Put(ctx context.Context, asm *Assembly) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmts := []string{
		`DELETE FROM members WHERE type_id IN (SELECT id FROM types WHERE assembly = ?)`,
		`DELETE FROM types WHERE assembly = ?`,
		`DELETE FROM assemblies WHERE name = ?`,
	}
	for _, q := range stmts {
		if _, err = tx.ExecContext(ctx, q, asm.Name); err != nil {
			return errors.Wrapf(err, "replace %s", asm.Name)
		}
	}
	token := strings.ToUpper(hex.EncodeToString(asm.PublicKeyToken))
	if _, err = tx.ExecContext(ctx, `INSERT INTO assemblies (name, version, token) VALUES (?, ?, ?)`,
		asm.Name, asm.Version, token); err != nil {
		return errors.Wrapf(err, "insert %s", asm.Name)
	}

	for _, t := range asm.Types {
		res, err := tx.ExecContext(ctx, `INSERT INTO types (assembly, full_name, attribute) VALUES (?, ?, ?)`,
			asm.Name, t.FullName, boolInt(t.Attribute))
		if err != nil {
			return errors.Wrapf(err, "insert type %s", t.FullName)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "type id")
		}
		if err := insertMembers(ctx, tx, id, t); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func insertMembers(ctx context.Context, tx *sql.Tx, typeID int64, t *Type) error {
	const q = `INSERT INTO members (type_id, seq, kind, name, params, ret, static) VALUES (?, ?, ?, ?, ?, ?, ?)`
	seq := 0
	add := func(kind, name string, params []string, ret string, static bool) error {
		seq++
		_, err := tx.ExecContext(ctx, q, typeID, seq, kind, name, strings.Join(params, ","), ret, boolInt(static))
		return errors.Wrapf(err, "insert %s %s.%s", kind, t.FullName, name)
	}
	for _, c := range t.Constructors {
		if err := add("ctor", ".ctor", c, "System.Void", false); err != nil {
			return err
		}
	}
	for _, m := range t.Methods {
		if err := add("method", m.Name, m.Params, m.Return, m.Static); err != nil {
			return err
		}
	}
	for _, p := range t.Properties {
		if err := add("property", p.Name, nil, p.Type, p.Static); err != nil {
			return err
		}
	}
	return nil
}

// Get loads the assembly called name with all its types.
func (s *Store) Get(ctx context.Context, name string) (*Assembly, error) {
	var version, token string
	err := s.db.QueryRowContext(ctx, `SELECT version, token FROM assemblies WHERE name = ?`, name).
		Scan(&version, &token)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "%s in %s", name, s.path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", name)
	}
	asm := &Assembly{Name: name, Version: version}
	if token != "" {
		if asm.PublicKeyToken, err = hex.DecodeString(token); err != nil {
			return nil, errors.Wrapf(err, "%s: public key token", name)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.full_name, t.attribute, m.kind, m.name, m.params, m.ret, m.static
		FROM types t LEFT JOIN members m ON m.type_id = t.id
		WHERE t.assembly = ?
		ORDER BY t.id, m.seq`, name)
	if err != nil {
		return nil, errors.Wrapf(err, "load types of %s", name)
	}
	defer rows.Close()

	var cur *Type
	var curID int64 = -1
	for rows.Next() {
		var (
			id                       int64
			fullName                 string
			attribute                bool
			kind, mname, params, ret sql.NullString
			static                   sql.NullBool
		)
		if err := rows.Scan(&id, &fullName, &attribute, &kind, &mname, &params, &ret, &static); err != nil {
			return nil, errors.Wrapf(err, "scan types of %s", name)
		}
		if id != curID {
			cur = &Type{FullName: fullName, Assembly: name, Attribute: attribute}
			asm.Types = append(asm.Types, cur)
			curID = id
		}
		if !kind.Valid {
			continue
		}
		ps := splitParams(params.String)
		switch kind.String {
		case "ctor":
			cur.Constructors = append(cur.Constructors, ps)
		case "method":
			cur.Methods = append(cur.Methods, Method{Name: mname.String, Params: ps, Return: ret.String, Static: static.Bool})
		case "property":
			cur.Properties = append(cur.Properties, Property{Name: mname.String, Type: ret.String, Static: static.Bool})
		}
	}
	return asm, errors.Wrapf(rows.Err(), "load types of %s", name)
}

// Summary is one row of List.
type Summary struct {
	Name    string
	Version string
	Types   int
}

// List returns every stored assembly ordered by name.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.name, a.version, COUNT(t.id)
		FROM assemblies a LEFT JOIN types t ON t.assembly = a.name
		GROUP BY a.name, a.version
		ORDER BY a.name`)
	if err != nil {
		return nil, errors.Wrap(err, "list assemblies")
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.Name, &sum.Version, &sum.Types); err != nil {
			return nil, errors.Wrap(err, "list assemblies")
		}
		out = append(out, sum)
	}
	return out, errors.Wrap(rows.Err(), "list assemblies")
}

// All loads every stored assembly.
func (s *Store) All(ctx context.Context) ([]*Assembly, error) {
	sums, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Assembly, 0, len(sums))
	for _, sum := range sums {
		asm, err := s.Get(ctx, sum.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, asm)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
