package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-voucher-orders/internal/fulfillment"
	"github.com/ariefcatur/go-voucher-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Checkout interface {
	PlaceOrder(ctx context.Context, req fulfillment.PlaceOrderRequest) (*orders.Order, error)
}

// OrderCache is the Redis fast path in front of the store.
type OrderCache interface {
	CheckoutOrder(ctx context.Context, userID, key string) (string, bool, error)
	RememberCheckout(ctx context.Context, userID, key, orderID string) error
	OrderStatus(ctx context.Context, orderID string) ([]byte, bool, error)
	SetOrderStatus(ctx context.Context, orderID string, body []byte) error
}

type OrdersHandler struct {
	Store    orders.Store
	Checkout Checkout
	Cache    OrderCache // optional
	Log      *zap.Logger
}

type CheckoutReq struct {
	PlayerID string `json:"player_id"`
}

type ProductResp struct {
	orders.Product
	RedeemCodeUsed bool `json:"redeem_code_used"`
	Available      bool `json:"available"`
}

type InsufficientStockResp struct {
	Error       string `json:"error"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.ListProducts(ctx)
	if err != nil {
		h.Log.Error("list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]ProductResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, ProductResp{Product: p, RedeemCodeUsed: p.RedeemCodeUsed(), Available: p.Available()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// 1) replay: Redis dulu, DB tetap jadi kebenaran
	if key != "" {
		if o, ok := h.replay(ctx, uid, key); ok {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	// 2) cart + user
	cart, err := h.Store.LoadCart(ctx, uid)
	if errors.Is(err, orders.ErrNotFound) || (err == nil && len(cart.Lines) == 0) {
		writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}
	if err != nil {
		h.Log.Error("load cart", zap.String("user_id", uid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	user, err := h.Store.GetUser(ctx, uid)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if err != nil {
		h.Log.Error("get user", zap.String("user_id", uid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// 3) place
	order, err := h.Checkout.PlaceOrder(ctx, fulfillment.PlaceOrderRequest{
		User:           user,
		CartID:         cart.ID,
		Lines:          cart.Lines,
		PlayerID:       req.PlayerID,
		IdempotencyKey: key,
	})
	var stockErr *orders.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, InsufficientStockResp{
			Error:       stockErr.Error(),
			ProductID:   stockErr.ProductID,
			ProductName: stockErr.ProductName,
			Requested:   stockErr.Requested,
			Available:   stockErr.Available,
		})
		return
	case errors.Is(err, orders.ErrInvalidCheckout):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Log.Error("place order", zap.String("user_id", uid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if key != "" && h.Cache != nil {
		if err := h.Cache.RememberCheckout(ctx, uid, key, order.ID); err != nil {
			h.Log.Warn("remember checkout", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) replay(ctx context.Context, uid, key string) (*orders.Order, bool) {
	if h.Cache != nil {
		if id, ok, err := h.Cache.CheckoutOrder(ctx, uid, key); err == nil && ok {
			if o, err := h.Store.GetOrder(ctx, id); err == nil && o.UserID == uid {
				return o, true
			}
		}
	}
	o, err := h.Store.OrderByExternalID(ctx, uid, key)
	if err != nil {
		if !errors.Is(err, orders.ErrNotFound) {
			h.Log.Warn("idempotency lookup", zap.String("user_id", uid), zap.Error(err))
		}
		return nil, false
	}
	return o, true
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	status := orders.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Store.ListOrders(ctx, uid, status)
	if err != nil {
		h.Log.Error("list orders", zap.String("user_id", uid), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetOrder(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrNotFound) || (err == nil && o.UserID != uid) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.Log.Error("get order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		if b, ok, err := h.Cache.OrderStatus(ctx, orderID); err == nil && ok {
			var v orders.StatusView
			if json.Unmarshal(b, &v) == nil && v.UserID == uid {
				writeJSON(w, http.StatusOK, v)
				return
			}
		}
	}

	// 2) fallback DB
	o, err := h.Store.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) || (err == nil && o.UserID != uid) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		h.Log.Error("get order status", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	view := o.StatusView()
	if h.Cache != nil {
		if b, err := json.Marshal(view); err == nil {
			_ = h.Cache.SetOrderStatus(ctx, orderID, b)
		}
	}
	writeJSON(w, http.StatusOK, view)
}
