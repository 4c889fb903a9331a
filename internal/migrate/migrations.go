package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema step. The file name carries the order:
// NNN_description.sql.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrate brings the schema fully up to date.
func Migrate(db *sql.DB) error {
	_, err := Up(db)
	return err
}

// Up applies every pending migration, each in its own transaction together
// with its ledger row, and returns how many ran.
func Up(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations(
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	current, err := Version(db)
	if err != nil {
		return 0, err
	}
	migrations, err := load()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(db, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Version reports the highest applied migration version, zero for a fresh
// database. Valid only after Up created the ledger.
func Version(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_migrations: %w", err)
	}
	return int(v.Int64), nil
}

func apply(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("apply %s: %w", m.Name, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations(version,name,applied_at) VALUES (?,?,?)`,
		m.Version, m.Name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("record %s: %w", m.Name, err)
	}
	return tx.Commit()
}

func load() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		return nil, err
	}
	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: file name must start with a positive version", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		seen[version] = name
		data, err := migrationsFS.ReadFile("sql/" + name)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{
			Version: version,
			Name:    strings.TrimSuffix(name, ".sql"),
			SQL:     string(data),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
