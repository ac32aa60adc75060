package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkax "github.com/ariefcatur/go-voucher-orders/internal/kafka"
	"github.com/ariefcatur/go-voucher-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

type StatusCache interface {
	SetOrderStatus(ctx context.Context, orderID string, body []byte) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

type PlaceOrderRequest struct {
	User           orders.User
	CartID         string
	Lines          []orders.CartLine
	PlayerID       string
	IdempotencyKey string
}

// Orchestrator turns a cart into a completed order. Stock, code allocation,
// order rows and the cart are changed in one transaction; delivery happens
// after commit and never fails the order.
type Orchestrator struct {
	Store      orders.Store
	Dispatcher Dispatcher
	Escalator  *Escalator
	Cache      StatusCache    // optional
	Events     EventPublisher // optional
	Service    string
	Log        *zap.Logger

	Now   func() time.Time
	NewID func() string
}

func NewOrchestrator(store orders.Store, d Dispatcher, esc *Escalator, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Store:      store,
		Dispatcher: d,
		Escalator:  esc,
		Service:    "voucher-api",
		Log:        log,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

func (o *Orchestrator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *orders.Order, err error) {
	ctx, span := tracer.Start(ctx, "fulfillment.PlaceOrder")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("user.id", req.User.ID), attribute.Int("cart.lines", len(req.Lines)))

	order, jobs, err := o.reserve(ctx, req)
	if errors.Is(err, orders.ErrAlreadyExists) && req.IdempotencyKey != "" {
		// checkout paralel dengan key yang sama: kembalikan order yang menang
		return o.Store.OrderByExternalID(ctx, req.User.ID, req.IdempotencyKey)
	}
	if err != nil {
		if errors.Is(err, orders.ErrInvalidCheckout) || errors.Is(err, orders.ErrInsufficientStock) {
			o.Log.Info("checkout rejected", zap.String("user_id", req.User.ID), zap.Error(err))
		} else {
			o.Log.Error("checkout failed", zap.String("user_id", req.User.ID), zap.Error(err))
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	o.Log.Info("order reserved",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("total_cents", order.TotalCents),
		zap.Int("items", len(order.Items)))

	// phase 2 sudah committed: caller pergi atau timeout tidak boleh menghentikannya
	dctx := context.WithoutCancel(ctx)
	for _, job := range jobs {
		o.deliver(dctx, job)
	}

	o.complete(dctx, order)
	return order, nil
}

// reserve is phase 1: everything that must be all-or-nothing.
func (o *Orchestrator) reserve(ctx context.Context, req PlaceOrderRequest) (*orders.Order, []Job, error) {
	if len(req.Lines) == 0 {
		return nil, nil, orders.InvalidCheckout("cart is empty")
	}
	ids := make([]string, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Qty <= 0 {
			return nil, nil, orders.InvalidCheckout("invalid quantity %d for product %s", l.Qty, l.ProductID)
		}
		ids = append(ids, l.ProductID)
	}
	playerID := strings.TrimSpace(req.PlayerID)

	var order *orders.Order
	var jobs []Job
	err := o.Store.WithinTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		order, jobs = nil, nil

		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		total := 0
		for _, l := range req.Lines {
			p, ok := products[l.ProductID]
			if !ok || !p.Active {
				return orders.InvalidCheckout("product %s is not available", l.ProductID)
			}
			if p.NeedsPlayerID() && playerID == "" {
				return orders.InvalidCheckout("player ID is required for %s", p.Name)
			}
			total += l.Qty * p.PriceCents
		}

		now := o.Now().UTC()
		ord := &orders.Order{
			ID:         o.NewID(),
			ExternalID: req.IdempotencyKey,
			UserID:     req.User.ID,
			Status:     orders.StatusProcessing,
			TotalCents: total,
			PlayerID:   playerID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertOrder(ctx, ord); err != nil {
			return err
		}

		for _, l := range req.Lines {
			p := products[l.ProductID]
			if p.Stock < l.Qty {
				return &orders.InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: l.Qty, Available: p.Stock}
			}

			item := orders.OrderItem{
				ID:          o.NewID(),
				OrderID:     ord.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Qty:         l.Qty,
				PriceCents:  p.PriceCents,
			}
			if p.IsRedeemProduct {
				code, ok, err := tx.AllocateCode(ctx, p.ID)
				if err != nil {
					return fmt.Errorf("allocate code for %s: %w", p.ID, err)
				}
				if ok {
					item.RedeemCode, item.RedeemCodeID = code.Code, code.ID
				} else {
					o.Log.Warn("redeem product has no code left",
						zap.String("order_id", ord.ID), zap.String("product_id", p.ID))
				}
			}
			if err := tx.InsertOrderItem(ctx, &item); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			if err := tx.DecrementStock(ctx, p.ID, l.Qty); err != nil {
				return err
			}
			p.Stock -= l.Qty
			products[p.ID] = p
			ord.Items = append(ord.Items, item)

			jobs = append(jobs, Job{
				OrderID:     ord.ID,
				OrderItemID: item.ID,
				UserID:      req.User.ID,
				Username:    req.User.Username,
				Email:       req.User.Email,
				ProductID:   p.ID,
				ProductName: p.Name,
				Strategy:    SelectStrategy(LineContext{Product: p, PlayerID: playerID, Code: item.RedeemCode}),
				PlayerID:    playerID,
				Code:        item.RedeemCode,
				CodeID:      item.RedeemCodeID,
			})
		}

		if req.CartID != "" {
			if err := tx.ClearCart(ctx, req.CartID); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}
		order = ord
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, jobs, nil
}

// deliver is phase 2 for one line, in cart order.
func (o *Orchestrator) deliver(ctx context.Context, job Job) {
	if job.Strategy == NoAction {
		o.Log.Info("line needs no delivery", jobFields(job, zap.String("state", string(StateNoAction)))...)
		return
	}
	state, err := o.Dispatcher.Dispatch(ctx, job)
	if err != nil {
		state = o.Escalator.DispatchFailed(ctx, job, err)
	}
	o.Log.Info("line dispatched", jobFields(job, zap.String("state", string(state)))...)
}

func (o *Orchestrator) complete(ctx context.Context, order *orders.Order) {
	if err := o.Store.SetOrderStatus(ctx, order.ID, orders.StatusProcessing, orders.StatusCompleted); err != nil {
		o.Log.Error("order stuck in processing", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	order.Status = orders.StatusCompleted
	order.UpdatedAt = o.Now().UTC()
	o.Log.Info("order completed", zap.String("order_id", order.ID), zap.String("state", string(order.Status)))

	if o.Cache != nil {
		if err := o.Cache.SetOrderStatus(ctx, order.ID, kafkax.MustMarshal(order.StatusView())); err != nil {
			o.Log.Warn("cache order status", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	if o.Events != nil {
		o.publishCompleted(ctx, order)
	}
}

func (o *Orchestrator) publishCompleted(ctx context.Context, order *orders.Order) {
	items := make([]orders.ItemQty, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	ev := orders.Envelope{
		EventID:       o.NewID(),
		EventType:     orders.EventOrderCompleted,
		EventVersion:  1,
		OccurredAt:    o.Now().UTC(),
		Producer:      o.Service,
		TraceID:       traceID(ctx),
		CorrelationID: order.ID,
		Payload: kafkax.MustMarshal(orders.OrderCompletedPayload{
			OrderID: order.ID, UserID: order.UserID, TotalCents: order.TotalCents, Items: items,
		}),
	}
	if err := o.Events.Publish(ctx, orders.PartitionKey(order.ID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventOrderCompleted, 1)...); err != nil {
		o.Log.Warn("publish order completed", zap.String("order_id", order.ID), zap.Error(err))
	}
}
