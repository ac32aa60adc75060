package orders

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by the memory driver and tests.
// Transactions are serialized by a single mutex and work on a staged copy of
// the state that is swapped in only on success.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
	now   func() time.Time
}

type memState struct {
	users    map[string]User
	products map[string]Product
	codes    map[string]RedeemCode
	codeSeq  []string // urutan insert, dipakai saat alokasi
	orders   map[string]Order
	items    map[string][]OrderItem
	carts    map[string]Cart // by cart id
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memState{
			users:    map[string]User{},
			products: map[string]Product{},
			codes:    map[string]RedeemCode{},
			orders:   map[string]Order{},
			items:    map[string][]OrderItem{},
			carts:    map[string]Cart{},
		},
		now: time.Now,
	}
}

func (s memState) clone() memState {
	c := memState{
		users:    maps.Clone(s.users),
		products: maps.Clone(s.products),
		codes:    maps.Clone(s.codes),
		codeSeq:  slices.Clone(s.codeSeq),
		orders:   maps.Clone(s.orders),
		items:    make(map[string][]OrderItem, len(s.items)),
		carts:    make(map[string]Cart, len(s.carts)),
	}
	for k, v := range s.items {
		c.items[k] = slices.Clone(v)
	}
	for k, v := range s.carts {
		v.Lines = slices.Clone(v.Lines)
		c.carts[k] = v
	}
	return c
}

func (m *MemoryStore) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[u.ID] = u
}

func (m *MemoryStore) AddProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CategoryID == "" {
		p.CategoryID = p.Category.ID
	}
	m.state.products[p.ID] = p
}

// AddCodes appends available codes to the product's ledger.
func (m *MemoryStore) AddCodes(productID string, codes ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, code := range codes {
		id := fmt.Sprintf("code-%d", len(m.state.codeSeq)+1)
		m.state.codes[id] = RedeemCode{ID: id, ProductID: productID, Code: code, Status: CodeAvailable}
		m.state.codeSeq = append(m.state.codeSeq, id)
	}
}

func (m *MemoryStore) PutCart(c Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Lines = slices.Clone(c.Lines)
	m.state.carts[c.ID] = c
}

func (m *MemoryStore) Product(id string) (Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.products[id]
	return p, ok
}

// Codes returns the product's ledger in insertion order.
func (m *MemoryStore) Codes(productID string) []RedeemCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RedeemCode
	for _, id := range m.state.codeSeq {
		if c := m.state.codes[id]; c.ProductID == productID {
			out = append(out, c)
		}
	}
	return out
}

func (m *MemoryStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{st: m.state.clone(), now: m.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = tx.st
	return nil
}

func (m *MemoryStore) SetOrderStatus(_ context.Context, orderID string, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return fmt.Errorf("%w: order %s is %s, not %s", ErrInvalidTransition, orderID, o.Status, from)
	}
	o.Status = to
	o.UpdatedAt = m.now()
	m.state.orders[orderID] = o
	return nil
}

func (m *MemoryStore) MarkCodeDelivered(_ context.Context, codeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.codes[codeID]
	if !ok || c.Status != CodeAllocated {
		return nil
	}
	now := m.now()
	c.Status = CodeDelivered
	c.DeliveredAt = &now
	m.state.codes[codeID] = c
	return nil
}

func (m *MemoryStore) orderWithItems(o Order) *Order {
	o.Items = slices.Clone(m.state.items[o.ID])
	return &o
}

func (m *MemoryStore) GetOrder(_ context.Context, orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.orderWithItems(o), nil
}

func (m *MemoryStore) OrderByExternalID(_ context.Context, userID, externalID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.state.orders {
		if o.UserID == userID && o.ExternalID != "" && o.ExternalID == externalID {
			return m.orderWithItems(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListOrders(_ context.Context, userID string, status Status) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.state.orders {
		if o.UserID == userID && (status == "" || o.Status == status) {
			out = append(out, *m.orderWithItems(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) ListProducts(_ context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	avail := map[string]int{}
	for _, c := range m.state.codes {
		if c.Status == CodeAvailable {
			avail[c.ProductID]++
		}
	}
	var out []Product
	for _, p := range m.state.products {
		if !p.Active {
			continue
		}
		p.AvailableCodes = avail[p.ID]
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Featured != out[j].Featured {
			return out[i].Featured
		}
		return out[i].SKU < out[j].SKU
	})
	return out, nil
}

func (m *MemoryStore) GetUser(_ context.Context, userID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.state.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) LoadCart(_ context.Context, userID string) (Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.state.carts {
		if c.UserID == userID {
			c.Lines = slices.Clone(c.Lines)
			return c, nil
		}
	}
	return Cart{}, ErrNotFound
}

func (m *MemoryStore) StaleAllocations(_ context.Context, cutoff time.Time) ([]RedeemCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RedeemCode
	for _, id := range m.state.codeSeq {
		c := m.state.codes[id]
		if c.Status == CodeAllocated && c.AllocatedAt != nil && c.AllocatedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

type memTx struct {
	st  memState
	now func() time.Time
}

func (t *memTx) LockProducts(_ context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) AllocateCode(_ context.Context, productID string) (RedeemCode, bool, error) {
	for _, id := range t.st.codeSeq {
		c := t.st.codes[id]
		if c.ProductID != productID || c.Status != CodeAvailable {
			continue
		}
		now := t.now()
		c.Status = CodeAllocated
		c.AllocatedAt = &now
		t.st.codes[id] = c
		return c, true, nil
	}
	return RedeemCode{}, false, nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return ErrAlreadyExists
	}
	if o.ExternalID != "" {
		for _, x := range t.st.orders {
			if x.UserID == o.UserID && x.ExternalID == o.ExternalID {
				return ErrAlreadyExists
			}
		}
	}
	cp := *o
	cp.Items = nil
	cp.UpdatedAt = cp.CreatedAt
	t.st.orders[o.ID] = cp
	return nil
}

func (t *memTx) InsertOrderItem(_ context.Context, it *OrderItem) error {
	if _, ok := t.st.orders[it.OrderID]; !ok {
		return fmt.Errorf("order %s: %w", it.OrderID, ErrNotFound)
	}
	t.st.items[it.OrderID] = append(t.st.items[it.OrderID], *it)
	if it.RedeemCodeID != "" {
		c := t.st.codes[it.RedeemCodeID]
		c.OrderItemID = it.ID
		t.st.codes[it.RedeemCodeID] = c
	}
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID string, qty int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if p.Stock < qty {
		return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	p.UpdatedAt = t.now()
	t.st.products[productID] = p
	return nil
}

func (t *memTx) ClearCart(_ context.Context, cartID string) error {
	c, ok := t.st.carts[cartID]
	if !ok {
		return nil
	}
	c.Lines = nil
	t.st.carts[cartID] = c
	return nil
}
