package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"atlas/internal/domain"
)

var (
	ErrNotFound           = errors.New("identity not found")
	ErrEmailTaken         = errors.New("este email ya está registrado")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Store manages authentication identities. It owns the credential hashes;
// nothing outside this package reads or writes them.
type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create registers a new identity. Pre-confirmed creation skips any
// verification round trip; provisioning always uses confirmed=true.
func (s Store) Create(ctx context.Context, email, password string, confirmed bool) (domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.Identity{}, errors.New("email required")
	}
	if password == "" {
		return domain.Identity{}, errors.New("password required")
	}
	var existing int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM identities WHERE email=? LIMIT 1`, email).Scan(&existing)
	if err == nil {
		return domain.Identity{}, ErrEmailTaken
	}
	if err != sql.ErrNoRows {
		return domain.Identity{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}
	id := domain.Identity{
		ID:        uuid.New().String(),
		Email:     email,
		Confirmed: confirmed,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO identities(id,email,password_hash,confirmed,created_at) VALUES (?,?,?,?,?)`,
		id.ID, id.Email, string(hash), boolToInt(id.Confirmed), id.CreatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return domain.Identity{}, ErrEmailTaken
		}
		return domain.Identity{}, err
	}
	return id, nil
}

// Delete removes an identity. Used as the compensating step when profile
// provisioning fails after the identity was created.
func (s Store) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM identities WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) Get(ctx context.Context, id string) (domain.Identity, error) {
	return s.scan(s.DB.QueryRowContext(ctx,
		`SELECT id,email,confirmed,created_at FROM identities WHERE id=?`, id))
}

func (s Store) GetByEmail(ctx context.Context, email string) (domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.scan(s.DB.QueryRowContext(ctx,
		`SELECT id,email,confirmed,created_at FROM identities WHERE email=?`, email))
}

// Authenticate verifies email/password and returns the identity.
func (s Store) Authenticate(ctx context.Context, email, password string) (domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		id   domain.Identity
		hash string
		conf int
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id,email,password_hash,confirmed,created_at FROM identities WHERE email=?`, email).
		Scan(&id.ID, &id.Email, &hash, &conf, &id.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Identity{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return domain.Identity{}, ErrInvalidCredentials
	}
	id.Confirmed = conf != 0
	return id, nil
}

func (s Store) UpdatePassword(ctx context.Context, id, newPassword string) error {
	if newPassword == "" {
		return errors.New("password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE identities SET password_hash=? WHERE id=?`, string(hash), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) scan(row *sql.Row) (domain.Identity, error) {
	var id domain.Identity
	var conf int
	err := row.Scan(&id.ID, &id.Email, &conf, &id.CreatedAt)
	if err == sql.ErrNoRows {
		return id, ErrNotFound
	}
	if err != nil {
		return id, err
	}
	id.Confirmed = conf != 0
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
