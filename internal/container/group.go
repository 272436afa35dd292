package container

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	kindGroup = "group"
	kindField = "field"
)

// Group is a named node that holds child groups and fields.
type Group struct {
	file *File
	id   int64
	path string
}

// Name returns the last path element of the group ("" for the root).
func (g *Group) Name() string {
	if g.path == "/" {
		return ""
	}
	return path.Base(g.path)
}

// Path returns the absolute path of the group inside the container.
func (g *Group) Path() string { return g.path }

func (g *Group) childPath(name string) string {
	return path.Join(g.path, name)
}

// node is one row of the nodes table.
type node struct {
	id    int64
	kind  string
	dtype string
	shape string
	tag   string
	value any
}

func (g *Group) lookup(ctx context.Context, name string) (node, error) {
	db, err := g.file.conn()
	if err != nil {
		return node{}, err
	}

	var n node
	err = db.QueryRowContext(ctx, `
		SELECT id, kind, dtype, shape, tag, value
		FROM nodes
		WHERE parent_id = ? AND name = ?
	`, g.id, name).Scan(&n.id, &n.kind, &n.dtype, &n.shape, &n.tag, &n.value)
	if errors.Is(err, sql.ErrNoRows) {
		return node{}, fmt.Errorf("%s: %w", g.childPath(name), ErrNotExist)
	}
	if err != nil {
		return node{}, fmt.Errorf("lookup %s: %w", g.childPath(name), err)
	}
	return n, nil
}

// Has reports whether a child (group or field) named name exists.
func (g *Group) Has(ctx context.Context, name string) (bool, error) {
	db, err := g.file.conn()
	if err != nil {
		return false, err
	}

	var count int
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM nodes WHERE parent_id = ? AND name = ?
	`, g.id, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", g.childPath(name), err)
	}
	return count > 0, nil
}

// Group returns the child group named name.
// Returns ErrNotExist if absent and ErrNotGroup if the child is a field.
func (g *Group) Group(ctx context.Context, name string) (*Group, error) {
	n, err := g.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if n.kind != kindGroup {
		return nil, fmt.Errorf("%s: %w", g.childPath(name), ErrNotGroup)
	}
	return &Group{file: g.file, id: n.id, path: g.childPath(name)}, nil
}

// CreateGroup creates a child group. Returns ErrExist if the name is taken.
func (g *Group) CreateGroup(ctx context.Context, name string) (*Group, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := g.file.writable(); err != nil {
		return nil, fmt.Errorf("create group %s: %w", g.childPath(name), err)
	}

	exists, err := g.Has(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("create group %s: %w", g.childPath(name), ErrExist)
	}

	result, err := g.file.db.ExecContext(ctx, `
		INSERT INTO nodes (parent_id, name, kind) VALUES (?, ?, ?)
	`, g.id, name, kindGroup)
	if err != nil {
		return nil, fmt.Errorf("create group %s: %w", g.childPath(name), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create group %s: last insert id: %w", g.childPath(name), err)
	}
	return &Group{file: g.file, id: id, path: g.childPath(name)}, nil
}

// RequireGroup returns the child group named name, creating it if absent.
func (g *Group) RequireGroup(ctx context.Context, name string) (*Group, error) {
	child, err := g.Group(ctx, name)
	if err == nil {
		return child, nil
	}
	if !errors.Is(err, ErrNotExist) {
		return nil, err
	}
	return g.CreateGroup(ctx, name)
}

// Children returns the names of all direct children in creation order.
// The order is stable across sessions.
func (g *Group) Children(ctx context.Context) ([]string, error) {
	db, err := g.file.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT name FROM nodes WHERE parent_id = ? ORDER BY id ASC
	`, g.id)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", g.path, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan child of %s: %w", g.path, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", g.path, err)
	}
	return names, nil
}

// Read returns the field named name.
func (g *Group) Read(ctx context.Context, name string) (Field, error) {
	n, err := g.lookup(ctx, name)
	if err != nil {
		return Field{}, err
	}
	if n.kind != kindField {
		return Field{}, fmt.Errorf("%s: %w", g.childPath(name), ErrNotField)
	}

	f := Field{
		Name:  name,
		Path:  g.childPath(name),
		DType: DType(n.dtype),
		Tag:   n.tag,
		raw:   n.value,
	}
	if n.shape != "" {
		if err := json.Unmarshal([]byte(n.shape), &f.Shape); err != nil {
			return Field{}, fmt.Errorf("%s: shape %q: %w", f.Path, n.shape, ErrCorrupt)
		}
	}
	return f, nil
}

// Write stores value as a new field named name.
//
// Supported values: int, int32, int64, float32, float64, bool, string,
// []int64, []float64, Int64Array and Float64Array. Anything else, or an array
// whose shape does not match its data, fails with ErrUnsupported and writes
// nothing. Fields are write-once; an existing name fails with ErrExist.
func (g *Group) Write(ctx context.Context, name string, value any) error {
	enc, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("write %s: %w", g.childPath(name), err)
	}
	return g.insertField(ctx, name, enc)
}

// WriteOpaque stores data verbatim as an opaque field carrying tag.
func (g *Group) WriteOpaque(ctx context.Context, name, tag string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	return g.insertField(ctx, name, encoded{dtype: Opaque, tag: tag, value: data})
}

func (g *Group) insertField(ctx context.Context, name string, enc encoded) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := g.file.writable(); err != nil {
		return fmt.Errorf("write %s: %w", g.childPath(name), err)
	}

	exists, err := g.Has(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("write %s: %w", g.childPath(name), ErrExist)
	}

	_, err = g.file.db.ExecContext(ctx, `
		INSERT INTO nodes (parent_id, name, kind, dtype, shape, tag, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, g.id, name, kindField, string(enc.dtype), enc.shape, enc.tag, enc.value)
	if err != nil {
		return fmt.Errorf("write %s: %w", g.childPath(name), err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("invalid node name %q: %w", name, ErrUnsupported)
	}
	return nil
}
