package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"atlas/internal/domain"
)

const profileCols = `id,username,full_name,role,email,department_id,supervised_json,last_activity`

// UpsertProfile writes the full profile row, inserting or replacing by id.
// Re-running a provisioning step with the same payload is a no-op.
func (r Repo) UpsertProfile(ctx context.Context, p domain.Profile) error {
	supervised, err := marshalSupervised(p.Supervised)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO profiles(id,username,full_name,role,email,department_id,supervised_json,last_activity)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   username=excluded.username,
		   full_name=excluded.full_name,
		   role=excluded.role,
		   email=excluded.email,
		   department_id=excluded.department_id,
		   supervised_json=excluded.supervised_json,
		   last_activity=excluded.last_activity`,
		p.ID, p.Username, p.FullName, string(p.Role), p.Email, p.DepartmentID, supervised, p.LastActivity)
	return err
}

func (r Repo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	return scanProfile(r.DB.QueryRowContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE id=?`, id))
}

func (r Repo) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	return scanProfile(r.DB.QueryRowContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE username=?`, username))
}

func (r Repo) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	return scanProfile(r.DB.QueryRowContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE email=?`, strings.ToLower(strings.TrimSpace(email))))
}

// ListProfiles returns every profile ordered by username.
func (r Repo) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+profileCols+` FROM profiles ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r Repo) DeleteProfile(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM profiles WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchActivity records the caller's last seen timestamp. Failure is
// ignored by callers.
func (r Repo) TouchActivity(ctx context.Context, id, ts string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE profiles SET last_activity=? WHERE id=?`, ts, id)
	return err
}

func (r Repo) CountProfiles(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var (
		p          domain.Profile
		dept       sql.NullString
		supervised sql.NullString
	)
	err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Role, &p.Email, &dept, &supervised, &p.LastActivity)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if dept.Valid {
		p.DepartmentID = &dept.String
	}
	if supervised.Valid && supervised.String != "" {
		if err := json.Unmarshal([]byte(supervised.String), &p.Supervised); err != nil {
			return p, err
		}
	}
	return p, nil
}

func marshalSupervised(ids []string) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
