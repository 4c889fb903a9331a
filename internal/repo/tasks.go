package repo

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"atlas/internal/domain"
)

const taskCols = `id,title,description,creator_id,assignee_id,assignee_text,priority,status,is_private,department_id,created_at,updated_at`

// TaskFilter narrows a visibility-scoped task listing. Zero values mean
// "no constraint"; Status may be the open-tasks sentinel.
type TaskFilter struct {
	ViewerID   string
	Supervised []string
	Status     string
	Priority   string
	Assignee   string
	Query      string
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO tasks(`+taskCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), t.CreatorID, t.AssigneeID, t.AssigneeText,
		string(t.Priority), string(t.Status), boolToInt(t.IsPrivate), t.DepartmentID,
		t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) UpdateTaskTx(tx *sql.Tx, t domain.Task) error {
	res, err := tx.Exec(
		`UPDATE tasks SET title=?, description=?, assignee_id=?, assignee_text=?,
		 priority=?, status=?, is_private=?, department_id=?, updated_at=?
		 WHERE id=?`,
		t.Title, nullable(t.Description), t.AssigneeID, t.AssigneeText,
		string(t.Priority), string(t.Status), boolToInt(t.IsPrivate), t.DepartmentID,
		t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id=?`, id))
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// VisibleTasks lists tasks the viewer may see, newest activity first.
// A task is visible when the viewer created it, is assigned to it, or
// supervises its creator. Private tasks are visible to their creator only.
func (r Repo) VisibleTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	creators := append([]string{f.ViewerID}, f.Supervised...)
	visible := sq.And{
		sq.Or{
			sq.Eq{"creator_id": creators},
			sq.Eq{"assignee_id": f.ViewerID},
		},
		sq.Or{
			sq.Eq{"is_private": 0},
			sq.Eq{"creator_id": f.ViewerID},
		},
	}

	q := sq.Select(taskCols).From("tasks").Where(visible).OrderBy("updated_at DESC, id")
	switch f.Status {
	case "":
	case domain.StatusFilterOpen:
		q = q.Where(sq.NotEq{"status": string(domain.StatusFinalizada)})
	default:
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if f.Priority != "" {
		q = q.Where(sq.Eq{"priority": f.Priority})
	}
	if f.Assignee != "" {
		q = q.Where(sq.Eq{"assignee_id": f.Assignee})
	}
	if f.Query != "" {
		pat := "%" + f.Query + "%"
		q = q.Where(sq.Expr(`(title LIKE ? OR description LIKE ?)`, pat, pat))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTasksByStatus returns task counts keyed by status.
func (r Repo) CountTasksByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[domain.Status]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[domain.Status(s)] = n
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t            domain.Task
		desc         sql.NullString
		assigneeID   sql.NullString
		assigneeText sql.NullString
		dept         sql.NullString
		private      int
	)
	err := row.Scan(&t.ID, &t.Title, &desc, &t.CreatorID, &assigneeID, &assigneeText,
		&t.Priority, &t.Status, &private, &dept, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Description = desc.String
	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.String
	}
	if assigneeText.Valid {
		t.AssigneeText = &assigneeText.String
	}
	if dept.Valid {
		t.DepartmentID = &dept.String
	}
	t.IsPrivate = private != 0
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
