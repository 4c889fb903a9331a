package repo

import (
	"context"
	"database/sql"

	"atlas/internal/domain"
)

// ListHistory returns a task's full timeline, oldest first. Insertion order
// is the tiebreaker for entries sharing a timestamp.
func (r Repo) ListHistory(ctx context.Context, taskID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,task_id,actor_id,field,old_value,new_value,comment,created_at
		 FROM task_history WHERE task_id=? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			e       domain.HistoryEntry
			old     sql.NullString
			comment sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.ActorID, &e.Field, &old, &e.NewValue, &comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		if old.Valid {
			e.OldValue = &old.String
		}
		if comment.Valid {
			e.Comment = &comment.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
