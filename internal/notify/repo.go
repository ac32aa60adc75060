package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, n *Notification) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO notifications(id, user_id, kind, title, message, redeem_code, order_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, '')::uuid, $8, $9)`,
		n.ID, n.UserID, string(n.Kind), n.Title, n.Message, n.RedeemCode, n.OrderID, n.Read, n.CreatedAt)
	return err
}

func (r *Repo) List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, kind, title, message, COALESCE(redeem_code, ''), COALESCE(order_id::text, ''), is_read, created_at
		FROM notifications
		WHERE user_id=$1 AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC, id`, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Message, &n.RedeemCode, &n.OrderID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = Kind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repo) MarkRead(ctx context.Context, userID, id string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND is_read=FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (r *Repo) Delete(ctx context.Context, userID, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM notifications WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) PurgeRead(ctx context.Context, cutoff time.Time) (int, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM notifications WHERE is_read AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}
