package orders

import (
	"context"
	"errors"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgTx struct {
	tx  pgx.Tx
	pos map[string]int // urutan item per order
}

// LockProducts: lock baris product (FOR UPDATE) urut id supaya dua cart yang
// overlap tidak saling deadlock. Urutan proses item tetap urutan cart.
func (t *pgTx) LockProducts(ctx context.Context, ids []string) (map[string]Product, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	rows, err := t.tx.Query(ctx, `SELECT `+productCols+`
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)
		ORDER BY p.id
		FOR UPDATE OF p`, sorted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(sorted))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// AllocateCode: ambil satu code available; SKIP LOCKED supaya checkout lain
// tidak menunggu baris yang sedang dialokasikan.
func (t *pgTx) AllocateCode(ctx context.Context, productID string) (RedeemCode, bool, error) {
	var c RedeemCode
	var s string
	err := t.tx.QueryRow(ctx, `
		UPDATE redeem_codes SET status='allocated', allocated_at=now()
		WHERE id = (
			SELECT id FROM redeem_codes
			WHERE product_id=$1 AND status='available'
			ORDER BY created_at, id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, product_id, code, status, allocated_at`, productID).
		Scan(&c.ID, &c.ProductID, &c.Code, &s, &c.AllocatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RedeemCode{}, false, nil
	}
	if err != nil {
		return RedeemCode{}, false, err
	}
	c.Status = CodeStatus(s)
	return c, true, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, user_id, status, total_cents, player_id, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''), $7, $7)`,
		o.ID, o.ExternalID, o.UserID, string(o.Status), o.TotalCents, o.PlayerID, o.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) InsertOrderItem(ctx context.Context, it *OrderItem) error {
	if t.pos == nil {
		t.pos = map[string]int{}
	}
	t.pos[it.OrderID]++

	if _, err := t.tx.Exec(ctx, `
		INSERT INTO order_items(id, order_id, product_id, product_name, qty, price_cents, redeem_code, redeem_code_id, position)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, '')::uuid, $9)`,
		it.ID, it.OrderID, it.ProductID, it.ProductName, it.Qty, it.PriceCents,
		it.RedeemCode, it.RedeemCodeID, t.pos[it.OrderID]); err != nil {
		return err
	}
	if it.RedeemCodeID == "" {
		return nil
	}
	_, err := t.tx.Exec(ctx, `UPDATE redeem_codes SET order_item_id=$2 WHERE id=$1`, it.RedeemCodeID, it.ID)
	return err
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at=now()
		WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &InsufficientStockError{ProductID: productID, Requested: qty}
	}
	return nil
}

func (t *pgTx) ClearCart(ctx context.Context, cartID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return err
}
