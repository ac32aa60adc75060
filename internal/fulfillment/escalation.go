package fulfillment

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-voucher-orders/internal/notify"
	"go.uber.org/zap"
)

// Escalator is the last line of defense for a line whose delivery failed.
// None of its methods return errors or panic.
type Escalator struct {
	Sink Notifier
	Log  *zap.Logger
}

// RechargeFailed hands the code to the customer for manual redemption.
func (e *Escalator) RechargeFailed(ctx context.Context, job Job, reason string) (state LineState) {
	defer e.guard(job, reason, &state)

	e.Log.Warn("automated recharge failed, sending manual fallback",
		jobFields(job, zap.String("reason", reason))...)

	rc := e.Sink.ManualFallback(ctx, job.delivery())
	if err := rc.Err(); err != nil {
		return e.alert(ctx, job, reason, err.Error())
	}
	return StateFallbackNotified
}

// DispatchFailed delivers the code directly when the line could not be queued.
func (e *Escalator) DispatchFailed(ctx context.Context, job Job, cause error) (state LineState) {
	reason := fmt.Sprintf("dispatch failed: %v", cause)
	defer e.guard(job, reason, &state)

	if job.Strategy == AutomatedRecharge {
		return e.RechargeFailed(ctx, job, reason)
	}
	e.Log.Warn("dispatch failed, delivering code inline", jobFields(job, zap.Error(cause))...)
	rc := e.Sink.DeliverCode(ctx, job.delivery())
	if rc.EmailErr != nil && rc.NotifyErr != nil {
		return e.alert(ctx, job, reason, rc.Err().Error())
	}
	if rc.EmailErr != nil {
		return StateCodeSentDegraded
	}
	return StateCodeSent
}

// Undeliverable alerts the operator about a line whose outcome could not
// reach the customer. It does not change the line's state.
func (e *Escalator) Undeliverable(ctx context.Context, job Job, reason string, cause error) {
	defer e.guard(job, reason, new(LineState))
	e.alert(ctx, job, reason, cause.Error())
}

func (e *Escalator) alert(ctx context.Context, job Job, reason, secondary string) LineState {
	e.Log.Error("fulfillment notification failed, alerting operator",
		jobFields(job,
			zap.Bool("critical", true),
			zap.String("reason", reason),
			zap.String("secondary_reason", secondary))...)

	rc := e.Sink.OperatorAlert(ctx, notify.Alert{
		Delivery:        job.delivery(),
		Reason:          reason,
		SecondaryReason: secondary,
	})
	if err := rc.Err(); err != nil {
		e.Log.Error("operator alert failed, manual intervention required",
			jobFields(job,
				zap.Bool("critical", true),
				zap.String("reason", reason),
				zap.String("secondary_reason", secondary),
				zap.NamedError("alert_error", err))...)
	}
	return StateEscalated
}

func (e *Escalator) guard(job Job, reason string, state *LineState) {
	if r := recover(); r != nil {
		e.Log.Error("escalation panicked",
			jobFields(job,
				zap.Bool("critical", true),
				zap.String("reason", reason),
				zap.Any("panic", r))...)
		*state = StateEscalated
	}
}

func jobFields(job Job, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("order_id", job.OrderID),
		zap.String("order_item_id", job.OrderItemID),
		zap.String("user_id", job.UserID),
		zap.String("product_id", job.ProductID),
		zap.String("strategy", string(job.Strategy)),
	}, extra...)
}
