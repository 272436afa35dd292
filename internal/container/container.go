package container

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial node tree layout
const currentSchemaVersion = 1

// rootID is the node id of the root group in every container.
const rootID = 1

// Mode selects how a container file is opened.
type Mode int

const (
	// ModeRead opens an existing file. All writes fail with ErrReadOnly.
	ModeRead Mode = iota

	// ModeReadWriteCreate opens a file for writing, creating it if absent.
	ModeReadWriteCreate
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeReadWriteCreate:
		return "read-write-create"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrNotExist     = errors.New("container: no such node")
	ErrExist        = errors.New("container: node already exists")
	ErrNotGroup     = errors.New("container: node is not a group")
	ErrNotField     = errors.New("container: node is not a field")
	ErrReadOnly     = errors.New("container: file opened read-only")
	ErrUnsupported  = errors.New("container: unsupported field value")
	ErrTypeMismatch = errors.New("container: field type mismatch")
	ErrCorrupt      = errors.New("container: corrupt field payload")
	ErrNotContainer = errors.New("container: file is not a container")
	ErrClosed       = errors.New("container: file is closed")
)

// File is an open container session.
type File struct {
	db   *sql.DB
	path string
	mode Mode
}

// Open opens the container file at path.
//
// ModeRead requires the file to exist and to carry the container schema.
// ModeReadWriteCreate creates the file and schema when missing and is safe to
// call on an existing container.
func Open(ctx context.Context, path string, mode Mode) (*File, error) {
	if mode == ModeRead {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("open %s: %w", path, ErrNotExist)
			}
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite3", dataSource(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", path, notContainer(err))
	}

	// Pragmas are per connection, so pin the pool to one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db, mode); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", notContainer(err))
	}

	if mode == ModeRead {
		if err := checkSchema(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	} else if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", notContainer(err))
	}

	return &File{db: db, path: path, mode: mode}, nil
}

// dataSource builds the driver DSN. Read mode opens the file with the SQLite
// URI parameter mode=ro, so the connection itself cannot write.
func dataSource(path string, mode Mode) string {
	if mode != ModeRead {
		return path
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}
	return u.String()
}

// notContainer maps SQLite's "file is not a database" to ErrNotContainer.
func notContainer(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrNotADB {
		return fmt.Errorf("%w: %v", ErrNotContainer, err)
	}
	return err
}

// Close releases the file handle. Calling Close more than once is a no-op.
func (f *File) Close() error {
	if f == nil || f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

// Path returns the file path the container was opened from.
func (f *File) Path() string { return f.path }

// Mode returns the mode the container was opened with.
func (f *File) Mode() Mode { return f.mode }

// Root returns the root group.
func (f *File) Root() *Group {
	return &Group{file: f, id: rootID, path: "/"}
}

func (f *File) conn() (*sql.DB, error) {
	if f.db == nil {
		return nil, ErrClosed
	}
	return f.db, nil
}

func (f *File) writable() error {
	if f.db == nil {
		return ErrClosed
	}
	if f.mode != ModeReadWriteCreate {
		return ErrReadOnly
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, mode Mode) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if mode == ModeRead {
		pragmas = append(pragmas, "PRAGMA query_only = ON")
	} else {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = DELETE",
			"PRAGMA synchronous = FULL",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and records the schema version.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if version < currentSchemaVersion {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// checkSchema verifies a file opened read-only carries the node table.
func checkSchema(ctx context.Context, db *sql.DB) error {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'nodes'",
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect schema: %w", notContainer(err))
	}
	if n == 0 {
		return ErrNotContainer
	}
	return nil
}
