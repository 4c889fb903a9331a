package repo

import (
	"context"

	"atlas/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO notifications(id,recipient_id,type,message,is_read,created_at)
		 VALUES (?,?,?,?,?,?)`,
		n.ID, n.RecipientID, n.Type, n.Message, boolToInt(n.IsRead), n.CreatedAt)
	return err
}

// ListNotifications returns a recipient's notifications, newest first.
func (r Repo) ListNotifications(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,recipient_id,type,message,is_read,created_at
		 FROM notifications WHERE recipient_id=? ORDER BY created_at DESC, id`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var read int
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Message, &read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.IsRead = read != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flips one notification, scoped to its recipient so a
// caller cannot mark someone else's.
func (r Repo) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET is_read=1 WHERE id=? AND recipient_id=?`, id, recipientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkAllNotificationsRead(ctx context.Context, recipientID string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE notifications SET is_read=1 WHERE recipient_id=?`, recipientID)
	return err
}

func (r Repo) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id=? AND is_read=0`, recipientID).Scan(&n)
	return n, err
}
