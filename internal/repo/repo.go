package repo

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInUse is returned when a delete is blocked by referencing rows.
var ErrInUse = errors.New("resource is referenced and cannot be deleted")

// Repo is the SQL persistence layer. Methods suffixed Tx run inside the
// caller's transaction; everything else uses the pool directly.
type Repo struct {
	DB *sql.DB
}
