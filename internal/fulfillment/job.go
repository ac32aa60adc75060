package fulfillment

import (
	"context"

	"github.com/ariefcatur/go-voucher-orders/internal/notify"
)

// Job is one order line handed to delivery. It is also the Kafka payload
// of FulfillmentRequested.
type Job struct {
	OrderID     string   `json:"order_id"`
	OrderItemID string   `json:"order_item_id"`
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	Strategy    Strategy `json:"strategy"`
	PlayerID    string   `json:"player_id,omitempty"`
	Code        string   `json:"code,omitempty"`
	CodeID      string   `json:"code_id,omitempty"`
}

func (j Job) delivery() notify.Delivery {
	return notify.Delivery{
		UserID:      j.UserID,
		Username:    j.Username,
		Email:       j.Email,
		OrderID:     j.OrderID,
		OrderItemID: j.OrderItemID,
		ProductName: j.ProductName,
		PlayerID:    j.PlayerID,
		Code:        j.Code,
	}
}

// LineState is where a line ended up after delivery.
type LineState string

const (
	StateDelivered        LineState = "delivered"
	StateFallbackNotified LineState = "fallback_notified"
	StateEscalated        LineState = "escalated"
	StateCodeSent         LineState = "code_sent"
	StateCodeSentDegraded LineState = "code_sent_degraded"
	StateNoAction         LineState = "no_action"
	StateDispatched       LineState = "dispatched"
)

// Notifier is the part of notify.Sink used by delivery.
type Notifier interface {
	RechargeSucceeded(ctx context.Context, d notify.Delivery) notify.Receipt
	ManualFallback(ctx context.Context, d notify.Delivery) notify.Receipt
	DeliverCode(ctx context.Context, d notify.Delivery) notify.Receipt
	OperatorAlert(ctx context.Context, a notify.Alert) notify.Receipt
}

type CodeLedger interface {
	MarkCodeDelivered(ctx context.Context, codeID string) error
}
