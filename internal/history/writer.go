package history

import (
	"context"
	"database/sql"
	"time"

	"atlas/internal/domain"
)

// Writer appends timeline entries. Append runs inside the caller's
// transaction so audit lines commit atomically with the change they record;
// AppendStandalone is for best-effort writes outside any transaction.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Append inserts one entry within tx and returns it with id and timestamp set.
func (w Writer) Append(tx *sql.Tx, e domain.HistoryEntry) (domain.HistoryEntry, error) {
	e.CreatedAt = w.now().UTC().Format(time.RFC3339)
	res, err := tx.Exec(
		`INSERT INTO task_history(task_id,actor_id,field,old_value,new_value,comment,created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		e.TaskID, e.ActorID, e.Field, e.OldValue, e.NewValue, e.Comment, e.CreatedAt)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return e, nil
}

// AppendStandalone inserts one entry outside any transaction. Callers treat
// failure as non-fatal: a missing audit line never blocks the operation
// it describes.
func (w Writer) AppendStandalone(ctx context.Context, e domain.HistoryEntry) (domain.HistoryEntry, error) {
	e.CreatedAt = w.now().UTC().Format(time.RFC3339)
	res, err := w.DB.ExecContext(ctx,
		`INSERT INTO task_history(task_id,actor_id,field,old_value,new_value,comment,created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		e.TaskID, e.ActorID, e.Field, e.OldValue, e.NewValue, e.Comment, e.CreatedAt)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return e, nil
}
