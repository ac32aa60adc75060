package orders

import (
	"context"
	"errors"
	"time"
)

var ErrAlreadyExists = errors.New("order already exists")

// Tx is the unit of work used while an order is being placed. Everything done
// through a Tx is committed together or not at all.
type Tx interface {
	// LockProducts locks the product rows in ID order and returns them keyed by ID.
	// Unknown IDs are simply absent from the map.
	LockProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// AllocateCode moves one available code of the product to allocated.
	// ok=false when the ledger has no available code left.
	AllocateCode(ctx context.Context, productID string) (code RedeemCode, ok bool, err error)
	InsertOrder(ctx context.Context, o *Order) error
	// InsertOrderItem also binds the item's redeem code (if any) to the item.
	InsertOrderItem(ctx context.Context, it *OrderItem) error
	DecrementStock(ctx context.Context, productID string, qty int) error
	ClearCart(ctx context.Context, cartID string) error
}

type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	SetOrderStatus(ctx context.Context, orderID string, from, to Status) error
	MarkCodeDelivered(ctx context.Context, codeID string) error

	GetOrder(ctx context.Context, orderID string) (*Order, error)
	OrderByExternalID(ctx context.Context, userID, externalID string) (*Order, error)
	// ListOrders returns the user's orders, newest first. An empty status
	// returns every order.
	ListOrders(ctx context.Context, userID string, status Status) ([]Order, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetUser(ctx context.Context, userID string) (User, error)
	LoadCart(ctx context.Context, userID string) (Cart, error)

	// StaleAllocations lists codes still allocated (never delivered) since before cutoff.
	StaleAllocations(ctx context.Context, cutoff time.Time) ([]RedeemCode, error)
}
