package notify

import (
	"errors"
	"time"
)

type Kind string

const (
	KindOrder   Kind = "order"
	KindRedeem  Kind = "redeem"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Kind       Kind      `json:"kind"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	RedeemCode string    `json:"redeem_code,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	Read       bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}
