package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const defaultDBName = "atlas.db"

type Config struct {
	Workspace string
}

// openPragmas are applied on every connection. Foreign keys must be on
// explicitly or sqlite ignores the schema's REFERENCES clauses; WAL lets
// readers proceed during writes; the busy timeout makes parallel writers
// queue instead of failing immediately.
var openPragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=journal_mode(WAL)",
	"_pragma=busy_timeout(5000)",
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".atlas", defaultDBName)
}

// EnsureWorkspace creates the workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".atlas")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the workspace database.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := "file:" + dbPath(cfg.Workspace) + "?" + strings.Join(openPragmas, "&")
	return sql.Open("sqlite", dsn)
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
