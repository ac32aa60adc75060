package fulfillment

import "github.com/ariefcatur/go-voucher-orders/internal/orders"

type Strategy string

const (
	AutomatedRecharge Strategy = "automated_recharge"
	CodeEmail         Strategy = "code_email"
	NoAction          Strategy = "no_action"
)

// LineContext is what the selector knows about a purchased line.
type LineContext struct {
	Product  orders.Product
	PlayerID string
	Code     string // allocated redeem code, empty when none
}

func SelectStrategy(lc LineContext) Strategy {
	if lc.Code == "" {
		return NoAction
	}
	if lc.Product.NeedsPlayerID() && lc.PlayerID != "" {
		return AutomatedRecharge
	}
	if lc.Product.Category.ManualCode {
		return CodeEmail
	}
	return NoAction
}
