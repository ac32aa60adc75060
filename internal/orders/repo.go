package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Store.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) SetOrderStatus(ctx context.Context, orderID string, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, orderID, string(from), string(to))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var cur string
	if err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&cur); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: order %s is %s, not %s", ErrInvalidTransition, orderID, cur, from)
}

// MarkCodeDelivered is idempotent: a code already delivered stays delivered.
func (r *Repo) MarkCodeDelivered(ctx context.Context, codeID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE redeem_codes SET status='delivered', delivered_at=now()
		WHERE id=$1 AND status='allocated'`, codeID)
	return err
}

const orderCols = `id, COALESCE(external_id, ''), user_id, status, total_cents, COALESCE(player_id, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var s string
	if err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &s, &o.TotalCents, &o.PlayerID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Status = Status(s)
	return &o, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, err
	}
	items, err := r.itemsOf(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repo) OrderByExternalID(ctx context.Context, userID, externalID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE user_id=$1 AND external_id=$2`, userID, externalID))
	if err != nil {
		return nil, err
	}
	items, err := r.itemsOf(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context, userID string, status Status) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE user_id=$1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id`, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.itemsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) itemsOf(ctx context.Context, orderIDs []string) (map[string][]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, qty, price_cents,
		       COALESCE(redeem_code, ''), COALESCE(redeem_code_id::text, '')
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Qty, &it.PriceCents,
			&it.RedeemCode, &it.RedeemCodeID); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

const productCols = `
	p.id, p.sku, p.name, p.price_cents, p.stock, p.is_active, p.is_featured,
	p.is_redeem_product, p.requires_player_id, p.created_at, p.updated_at,
	c.id, c.slug, c.name, c.requires_player_id, c.manual_code`

func scanProduct(row pgx.Row, extra ...any) (Product, error) {
	var p Product
	dest := []any{
		&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock, &p.Active, &p.Featured,
		&p.IsRedeemProduct, &p.RequiresPlayerID, &p.CreatedAt, &p.UpdatedAt,
		&p.Category.ID, &p.Category.Slug, &p.Category.Name, &p.Category.RequiresPlayerID, &p.Category.ManualCode,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Product{}, err
	}
	p.CategoryID = p.Category.ID
	return p, nil
}

// ListProducts returns the active catalog with the number of codes still sellable.
func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productCols+`,
		(SELECT COUNT(*) FROM redeem_codes rc WHERE rc.product_id = p.id AND rc.status = 'available')
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.is_active ORDER BY p.is_featured DESC, p.sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var n int
		p, err := scanProduct(rows, &n)
		if err != nil {
			return nil, err
		}
		p.AvailableCodes = n
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `SELECT id, username, email FROM users WHERE id=$1`, userID).
		Scan(&u.ID, &u.Username, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// LoadCart returns the user's cart lines in the order they were added.
func (r *Repo) LoadCart(ctx context.Context, userID string) (Cart, error) {
	var c Cart
	err := r.DB.QueryRow(ctx, `SELECT id, user_id FROM carts WHERE user_id=$1`, userID).Scan(&c.ID, &c.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, err
	}

	rows, err := r.DB.Query(ctx, `SELECT product_id, qty FROM cart_items WHERE cart_id=$1 ORDER BY added_at, id`, c.ID)
	if err != nil {
		return Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.ProductID, &l.Qty); err != nil {
			return Cart{}, err
		}
		c.Lines = append(c.Lines, l)
	}
	return c, rows.Err()
}

func (r *Repo) StaleAllocations(ctx context.Context, cutoff time.Time) ([]RedeemCode, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, code, status, COALESCE(order_item_id::text, ''), allocated_at
		FROM redeem_codes
		WHERE status='allocated' AND allocated_at < $1
		ORDER BY allocated_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RedeemCode
	for rows.Next() {
		var c RedeemCode
		var s string
		if err := rows.Scan(&c.ID, &c.ProductID, &c.Code, &s, &c.OrderItemID, &c.AllocatedAt); err != nil {
			return nil, err
		}
		c.Status = CodeStatus(s)
		out = append(out, c)
	}
	return out, rows.Err()
}
