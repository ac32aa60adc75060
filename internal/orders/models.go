package orders

import "time"

type Category struct {
	ID               string `json:"id"`
	Slug             string `json:"slug"`
	Name             string `json:"name"`
	RequiresPlayerID bool   `json:"requires_player_id"`
	ManualCode       bool   `json:"manual_code"`
}

type Product struct {
	ID               string    `json:"id"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	CategoryID       string    `json:"category_id"`
	Category         Category  `json:"category"`
	PriceCents       int       `json:"price_cents"`
	Stock            int       `json:"stock"`
	Active           bool      `json:"active"`
	Featured         bool      `json:"featured"`
	IsRedeemProduct  bool      `json:"is_redeem_product"`
	RequiresPlayerID bool      `json:"requires_player_id"`
	AvailableCodes   int       `json:"available_codes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NeedsPlayerID reports whether checkout must carry a player ID for this
// product, either by its own flag or through its category.
func (p Product) NeedsPlayerID() bool {
	return p.RequiresPlayerID || p.Category.RequiresPlayerID
}

// RedeemCodeUsed is true once a redeem product has no sellable code left.
func (p Product) RedeemCodeUsed() bool {
	return p.IsRedeemProduct && p.AvailableCodes == 0
}

func (p Product) Available() bool {
	return p.Active && p.Stock > 0
}

type CodeStatus string

const (
	CodeAvailable CodeStatus = "available"
	CodeAllocated CodeStatus = "allocated"
	CodeDelivered CodeStatus = "delivered"
)

// RedeemCode is one row of the allocation ledger: a single sellable code.
type RedeemCode struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"product_id"`
	Code        string     `json:"code"`
	Status      CodeStatus `json:"status"`
	OrderItemID string     `json:"order_item_id,omitempty"`
	AllocatedAt *time.Time `json:"allocated_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	ExternalID string      `json:"external_id,omitempty"` // idempotency key dari client
	Status     Status      `json:"status"`                // lihat status.go
	TotalCents int         `json:"total_cents"`
	PlayerID   string      `json:"player_id,omitempty"`
	Items      []OrderItem `json:"items,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Qty          int    `json:"qty"`
	PriceCents   int    `json:"price_cents"`
	RedeemCode   string `json:"redeem_code,omitempty"`
	RedeemCodeID string `json:"-"`
}

func (it OrderItem) TotalCents() int { return it.PriceCents * it.Qty }

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type Cart struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id"`
	Lines  []CartLine `json:"lines"`
}

// StatusView is the cached shape of an order's status.
type StatusView struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o Order) StatusView() StatusView {
	return StatusView{OrderID: o.ID, UserID: o.UserID, Status: o.Status, UpdatedAt: o.UpdatedAt}
}
