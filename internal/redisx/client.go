package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * TimeoutOp,
		WriteTimeout: 2 * TimeoutOp,
	})
}

// Cache wraps the Redis shortcuts used around orders. Postgres stays the
// source of truth; every miss falls back to the store.
type Cache struct{ RDB *redis.Client }

func (c Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

// CheckoutOrder returns the order already created for (user, idempotency key).
func (c Cache) CheckoutOrder(ctx context.Context, userID, key string) (string, bool, error) {
	v, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c Cache) RememberCheckout(ctx context.Context, userID, key, orderID string) error {
	return c.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, key), orderID, TTLIdempotency).Err()
}

// OrderStatus returns the cached status JSON of an order.
func (c Cache) OrderStatus(ctx context.Context, orderID string) ([]byte, bool, error) {
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c Cache) SetOrderStatus(ctx context.Context, orderID string, body []byte) error {
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), body, TTLStatusCache).Err()
}

// Claim marks (service, id) as being processed. false means somebody already did.
func (c Cache) Claim(ctx context.Context, service, id string) (bool, error) {
	return c.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, service, id), "1", TTLDedup).Result()
}

// Release drops a claim so a redelivered message can be processed again.
func (c Cache) Release(ctx context.Context, service, id string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyDedup, service, id)).Err()
}
