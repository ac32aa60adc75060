package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore() *MemoryStore {
	m := NewMemoryStore()
	m.AddUser(User{ID: "u1", Username: "awa", Email: "awa@example.com"})
	m.AddProduct(Product{ID: "p1", SKU: "FF-100", Name: "100 Diamants", PriceCents: 1000, Stock: 3, Active: true, IsRedeemProduct: true})
	m.AddCodes("p1", "AAA", "BBB")
	return m
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	m := seededStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		_, ok, err := tx.AllocateCode(ctx, "p1")
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.DecrementStock(ctx, "p1", 2))
		require.NoError(t, tx.InsertOrder(ctx, &Order{ID: "o1", UserID: "u1", Status: StatusProcessing}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, _ := m.Product("p1")
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, 0, m.OrderCount())
	for _, c := range m.Codes("p1") {
		assert.Equal(t, CodeAvailable, c.Status)
	}
}

func TestAllocateCodeInInsertionOrderUntilExhausted(t *testing.T) {
	m := seededStore()
	ctx := context.Background()

	var got []string
	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		for i := 0; i < 3; i++ {
			c, ok, err := tx.AllocateCode(ctx, "p1")
			if err != nil {
				return err
			}
			if ok {
				got = append(got, c.Code)
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, got)
}

func TestDecrementStockInsufficient(t *testing.T) {
	m := seededStore()
	err := m.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.DecrementStock(ctx, "p1", 4)
	})

	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 4, ise.Requested)
	assert.Equal(t, 3, ise.Available)
}

func TestSetOrderStatus(t *testing.T) {
	m := seededStore()
	ctx := context.Background()
	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertOrder(ctx, &Order{ID: "o1", UserID: "u1", Status: StatusProcessing})
	}))

	require.NoError(t, m.SetOrderStatus(ctx, "o1", StatusProcessing, StatusCompleted))
	err := m.SetOrderStatus(ctx, "o1", StatusProcessing, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, m.SetOrderStatus(ctx, "missing", StatusProcessing, StatusCompleted), ErrNotFound)
	assert.ErrorIs(t, m.SetOrderStatus(ctx, "o1", StatusCompleted, StatusPending), ErrInvalidTransition)
}

func TestMarkCodeDeliveredIsIdempotent(t *testing.T) {
	m := seededStore()
	ctx := context.Background()
	var code RedeemCode
	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		code, _, err = tx.AllocateCode(ctx, "p1")
		return err
	}))

	require.NoError(t, m.MarkCodeDelivered(ctx, code.ID))
	require.NoError(t, m.MarkCodeDelivered(ctx, code.ID))
	assert.Equal(t, CodeDelivered, m.Codes("p1")[0].Status)
	assert.NotNil(t, m.Codes("p1")[0].DeliveredAt)
}

func TestListOrdersNewestFirst(t *testing.T) {
	m := seededStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		for id, h := range map[string]int{"old": 0, "new": 2, "mid": 1} {
			at := base.Add(time.Duration(h) * time.Hour)
			if err := tx.InsertOrder(ctx, &Order{ID: id, UserID: "u1", Status: StatusProcessing, CreatedAt: at}); err != nil {
				return err
			}
		}
		return nil
	}))

	list, err := m.ListOrders(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
}

func TestListOrdersByStatus(t *testing.T) {
	m := seededStore()
	ctx := context.Background()
	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		for id, st := range map[string]Status{"a": StatusCompleted, "b": StatusPending, "c": StatusCompleted} {
			if err := tx.InsertOrder(ctx, &Order{ID: id, UserID: "u1", Status: st}); err != nil {
				return err
			}
		}
		return tx.InsertOrder(ctx, &Order{ID: "d", UserID: "u2", Status: StatusCompleted})
	}))

	done, err := m.ListOrders(ctx, "u1", StatusCompleted)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, orderIDs(done))

	pending, err := m.ListOrders(ctx, "u1", StatusPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, orderIDs(pending))

	all, err := m.ListOrders(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func orderIDs(list []Order) []string {
	ids := make([]string, 0, len(list))
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestInsertOrderRejectsDuplicateExternalID(t *testing.T) {
	m := seededStore()
	ctx := context.Background()
	err := m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertOrder(ctx, &Order{ID: "o1", UserID: "u1", ExternalID: "k1"}); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, &Order{ID: "o2", UserID: "u1", ExternalID: "k1"})
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestStaleAllocations(t *testing.T) {
	m := seededStore()
	ctx := context.Background()
	past := time.Now().Add(-48 * time.Hour)
	m.now = func() time.Time { return past }
	require.NoError(t, m.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		_, _, err := tx.AllocateCode(ctx, "p1")
		return err
	}))

	stale, err := m.StaleAllocations(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "AAA", stale[0].Code)

	fresh, err := m.StaleAllocations(ctx, past.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
