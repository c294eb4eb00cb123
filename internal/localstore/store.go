// Package localstore is the client's durable state between invocations:
// display preferences and the session cookie jar, kept in a SQLite file
// under the workspace.
package localstore

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

const defaultDBName = "taskdeck.db"

//go:embed sql/*.sql
var migrationsFS embed.FS

// Preference keys are versioned so a format change can start fresh without
// tripping over old values.
const (
	KeyTheme       = "theme_v1"
	KeySidebarOpen = "sidebar_open_v1"
)

type Store struct {
	DB *sql.DB
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".taskdeck", defaultDBName)
}

// EnsureWorkspace creates the state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".taskdeck")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the state database and applies migrations.
func Open(workspace string) (*Store, error) {
	if _, err := EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", dbPath(workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{DB: conn}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Path returns the database path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}

// Get reads a raw preference value.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRow(`SELECT value FROM prefs WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set writes a preference value.
func (s *Store) Set(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.DB.Exec(
		`INSERT INTO prefs(key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, now,
	)
	return err
}

// Theme returns the stored theme, defaulting to "light".
func (s *Store) Theme() (string, error) {
	v, ok, err := s.Get(KeyTheme)
	if err != nil || !ok {
		return "light", err
	}
	return v, nil
}

func (s *Store) SetTheme(theme string) error {
	return s.Set(KeyTheme, theme)
}

// SidebarOpen returns the stored sidebar state, defaulting to open.
func (s *Store) SidebarOpen() (bool, error) {
	v, ok, err := s.Get(KeySidebarOpen)
	if err != nil || !ok {
		return true, err
	}
	return v == "true", nil
}

func (s *Store) SetSidebarOpen(open bool) error {
	v := "false"
	if open {
		v = "true"
	}
	return s.Set(KeySidebarOpen, v)
}

type migration struct {
	version int
	name    string
	upSQL   string
}

func loadMigrations() ([]migration, error) {
	files, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		return nil, err
	}
	var migrations []migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := migrationsFS.ReadFile("sql/" + f.Name())
		if err != nil {
			return nil, err
		}
		var v int
		if _, err := fmt.Sscanf(f.Name(), "%d_", &v); err != nil {
			return nil, fmt.Errorf("invalid migration filename %s: %w", f.Name(), err)
		}
		migrations = append(migrations, migration{version: v, name: f.Name(), upSQL: string(data)})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

func migrate(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL);`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	err = tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&current)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
		current = 0
	} else if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.Exec(m.upSQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, m.version); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
		current = m.version
	}
	return tx.Commit()
}
