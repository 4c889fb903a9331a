package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"atlas/internal/domain"
)

// HashKey returns the stored form of a raw service key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (r Repo) InsertServiceKey(ctx context.Context, k domain.ServiceKey) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO service_keys(id,name,key_hash,created_at) VALUES (?,?,?,?)`,
		k.ID, nullable(k.Name), k.KeyHash, k.CreatedAt)
	return err
}

// GetServiceKeyByHash looks up a key by the hash of its raw value.
func (r Repo) GetServiceKeyByHash(ctx context.Context, hash string) (domain.ServiceKey, error) {
	var k domain.ServiceKey
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,name,key_hash,created_at FROM service_keys WHERE key_hash=?`, hash).
		Scan(&k.ID, &name, &k.KeyHash, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return k, ErrNotFound
	}
	if err != nil {
		return k, err
	}
	k.Name = name.String
	return k, nil
}

func (r Repo) ListServiceKeys(ctx context.Context) ([]domain.ServiceKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,name,key_hash,created_at FROM service_keys ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ServiceKey
	for rows.Next() {
		var k domain.ServiceKey
		var name sql.NullString
		if err := rows.Scan(&k.ID, &name, &k.KeyHash, &k.CreatedAt); err != nil {
			return nil, err
		}
		k.Name = name.String
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r Repo) DeleteServiceKey(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM service_keys WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
