package tags

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

const tagSchema = `CREATE TABLE IF NOT EXISTS resource_tags (
	path  TEXT NOT NULL,
	tag   TEXT NOT NULL,
	kind  TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (path, tag)
)`

// SQLiteBackend persists tags in a SQLite database so that an incremental
// build can pick up the tags of the previous run. Values are stored as JSON
// next to their Go kind, which JSON alone does not preserve (2.0 reads back
// as an integer).
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLiteBackend opens (and if needed creates) the tag database at dbPath.
func OpenSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tag db %s: %w", dbPath, err)
	}
	// One writer at a time; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(tagSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tag schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close releases the database.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) Set(path, tag string, v Value) error {
	kind, err := kindOf(v)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO resource_tags (path, tag, kind, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT (path, tag) DO UPDATE SET kind = excluded.kind, value = excluded.value`,
		path, tag, kind, oj.JSON(v),
	)
	if err != nil {
		return fmt.Errorf("set tag %s on %s: %w", tag, path, err)
	}
	return nil
}

func (s *SQLiteBackend) Clear(path, tag string) error {
	if _, err := s.db.Exec(`DELETE FROM resource_tags WHERE path = ? AND tag = ?`, path, tag); err != nil {
		return fmt.Errorf("clear tag %s on %s: %w", tag, path, err)
	}
	return nil
}

func (s *SQLiteBackend) Get(path, tag string) (Value, bool, error) {
	var kind, raw string
	err := s.db.QueryRow(`SELECT kind, value FROM resource_tags WHERE path = ? AND tag = ?`, path, tag).Scan(&kind, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get tag %s on %s: %w", tag, path, err)
	}
	v, err := decodeValue(kind, raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode tag %s on %s: %w", tag, path, err)
	}
	return v, true, nil
}

func (s *SQLiteBackend) Paths(tag string) ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM resource_tags WHERE tag = ? ORDER BY path`, tag)
	if err != nil {
		return nil, fmt.Errorf("list tag %s: %w", tag, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const (
	kindBool    = "bool"
	kindString  = "string"
	kindInt64   = "int64"
	kindFloat64 = "float64"
)

func kindOf(v Value) (string, error) {
	switch v.(type) {
	case bool:
		return kindBool, nil
	case string:
		return kindString, nil
	case int64:
		return kindInt64, nil
	case float64:
		return kindFloat64, nil
	}
	return "", fmt.Errorf("tag value of type %T cannot be stored", v)
}

func decodeValue(kind, raw string) (Value, error) {
	v, err := oj.ParseString(raw)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case bool:
		if kind == kindBool {
			return x, nil
		}
	case string:
		if kind == kindString {
			return x, nil
		}
	case int64:
		switch kind {
		case kindInt64:
			return x, nil
		case kindFloat64:
			return float64(x), nil
		}
	case float64:
		if kind == kindFloat64 {
			return x, nil
		}
	}
	return nil, fmt.Errorf("value %s is not a %s", raw, kind)
}

var _ Backend = (*SQLiteBackend)(nil)
