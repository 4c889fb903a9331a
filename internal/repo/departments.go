package repo

import (
	"context"
	"database/sql"

	"atlas/internal/domain"
)

func (r Repo) InsertDepartment(ctx context.Context, d domain.Department) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO departments(id,name,description,created_at) VALUES (?,?,?,?)`,
		d.ID, d.Name, nullable(d.Description), d.CreatedAt)
	return err
}

func (r Repo) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	var d domain.Department
	var desc sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,name,description,created_at FROM departments WHERE id=?`, id).
		Scan(&d.ID, &d.Name, &desc, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.Description = desc.String
	return d, nil
}

func (r Repo) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,name,description,created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Department
	for rows.Next() {
		var d domain.Department
		var desc sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &desc, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Description = desc.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r Repo) UpdateDepartment(ctx context.Context, d domain.Department) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE departments SET name=?, description=? WHERE id=?`,
		d.Name, nullable(d.Description), d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDepartment refuses to remove a department that profiles or tasks
// still reference.
func (r Repo) DeleteDepartment(ctx context.Context, id string) error {
	var refs int
	err := r.DB.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM profiles WHERE department_id=?) +
		        (SELECT COUNT(*) FROM tasks WHERE department_id=?)`, id, id).Scan(&refs)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrInUse
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM departments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountDepartments(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM departments`).Scan(&n)
	return n, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
