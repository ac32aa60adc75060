package fulfillment

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-voucher-orders/internal/redeem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-voucher-orders/internal/fulfillment")

// Runner delivers one order line. Run never fails: every outcome ends in a
// LineState plus the matching customer/operator communication.
type Runner struct {
	Redeemer  redeem.Redeemer
	Sink      Notifier
	Ledger    CodeLedger
	Escalator *Escalator
	Log       *zap.Logger
}

func (r *Runner) Run(ctx context.Context, job Job) (state LineState) {
	ctx, span := tracer.Start(ctx, "fulfillment.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", job.OrderID),
		attribute.String("order_item.id", job.OrderItemID),
		attribute.String("fulfillment.strategy", string(job.Strategy)),
	)

	defer func() {
		if p := recover(); p != nil {
			reason := fmt.Sprintf("delivery panicked: %v", p)
			if job.Strategy == AutomatedRecharge {
				state = r.Escalator.RechargeFailed(ctx, job, reason)
			} else {
				r.Escalator.Undeliverable(ctx, job, reason, fmt.Errorf("panic: %v", p))
				state = StateEscalated
			}
		}
		span.SetAttributes(attribute.String("fulfillment.state", string(state)))
		r.Log.Info("line fulfilled", jobFields(job, zap.String("state", string(state)))...)
	}()

	switch job.Strategy {
	case AutomatedRecharge:
		return r.recharge(ctx, job)
	case CodeEmail:
		return r.sendCode(ctx, job)
	default:
		return StateNoAction
	}
}

func (r *Runner) recharge(ctx context.Context, job Job) LineState {
	res := r.Redeemer.Redeem(ctx, job.PlayerID, job.Code)
	if !res.OK() {
		return r.Escalator.RechargeFailed(ctx, job, fmt.Sprintf("%s: %s", res.Outcome, res.Message))
	}

	r.markDelivered(ctx, job)
	if rc := r.Sink.RechargeSucceeded(ctx, job.delivery()); rc.Err() != nil {
		r.Escalator.Undeliverable(ctx, job, "recharge succeeded but the customer was not notified", rc.Err())
	}
	return StateDelivered
}

func (r *Runner) sendCode(ctx context.Context, job Job) LineState {
	rc := r.Sink.DeliverCode(ctx, job.delivery())
	switch {
	case rc.EmailErr != nil && rc.NotifyErr != nil:
		r.Escalator.Undeliverable(ctx, job, "redeem code could not be delivered", rc.Err())
		return StateEscalated
	case rc.EmailErr != nil:
		r.markDelivered(ctx, job)
		return StateCodeSentDegraded
	default:
		if rc.NotifyErr != nil {
			r.Log.Warn("code emailed but in-app notification failed", jobFields(job, zap.Error(rc.NotifyErr))...)
		}
		r.markDelivered(ctx, job)
		return StateCodeSent
	}
}

func (r *Runner) markDelivered(ctx context.Context, job Job) {
	if job.CodeID == "" {
		return
	}
	if err := r.Ledger.MarkCodeDelivered(ctx, job.CodeID); err != nil {
		r.Log.Warn("mark code delivered", jobFields(job, zap.Error(err))...)
	}
}
