package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-voucher-orders/internal/notify"
	"github.com/ariefcatur/go-voucher-orders/internal/orders"
	"github.com/ariefcatur/go-voucher-orders/internal/redeem"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

var errSMTP = errors.New("smtp: connection refused")

type mockRedeemer struct{ mock.Mock }

func (m *mockRedeemer) Redeem(ctx context.Context, playerID, code string) redeem.Result {
	args := m.Called(playerID, code)
	return args.Get(0).(redeem.Result)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (m *recordingMailer) Send(_ context.Context, e notify.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.err
}

func (m *recordingMailer) To(addr string) []notify.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Email
	for _, e := range m.sent {
		if e.To == addr {
			out = append(out, e)
		}
	}
	return out
}

type brokenInbox struct{ notify.Store }

func (brokenInbox) Create(context.Context, *notify.Notification) error {
	return errors.New("notifications table locked")
}

var (
	catAutomated = orders.Category{ID: "c-ff", Slug: "diamant-ff-par-id", Name: "Diamant FF par ID", RequiresPlayerID: true}
	catManual    = orders.Category{ID: "c-code", Slug: "code-redeem-free-fire", Name: "Code Redeem Free Fire", ManualCode: true}
	catPlain     = orders.Category{ID: "c-pubg", Slug: "pubg-mobile-uc", Name: "PUBG Mobile UC"}
)

const (
	customerEmail = "awa@example.com"
	operatorEmail = "ops@example.com"
)

type harness struct {
	store    *orders.MemoryStore
	inbox    *notify.Memory
	mailer   *recordingMailer
	redeemer *mockRedeemer
	sink     *notify.Sink
	runner   *Runner
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	h := &harness{
		store:    orders.NewMemoryStore(),
		inbox:    notify.NewMemory(),
		mailer:   &recordingMailer{},
		redeemer: new(mockRedeemer),
	}
	h.store.AddUser(orders.User{ID: "u1", Username: "awa", Email: customerEmail})
	h.store.AddProduct(orders.Product{ID: "ff100", SKU: "FF-100", Name: "100 Diamants", Category: catAutomated,
		PriceCents: 1000, Stock: 3, Active: true, IsRedeemProduct: true})
	h.store.AddCodes("ff100", "ABC123")
	h.store.AddProduct(orders.Product{ID: "code50", SKU: "FF-CODE-50", Name: "Code 50 Diamants", Category: catManual,
		PriceCents: 500, Stock: 5, Active: true, IsRedeemProduct: true})
	h.store.AddCodes("code50", "CODE-1", "CODE-2")
	h.store.AddProduct(orders.Product{ID: "uc60", SKU: "UC-60", Name: "60 UC", Category: catPlain,
		PriceCents: 700, Stock: 2, Active: true})
	h.store.AddProduct(orders.Product{ID: "old", SKU: "OLD", Name: "Retired", Category: catPlain,
		PriceCents: 100, Stock: 9, Active: false})
	h.store.PutCart(orders.Cart{ID: "cart1", UserID: "u1", Lines: []orders.CartLine{{ProductID: "ff100", Qty: 1}}})

	h.sink = notify.NewSink(h.inbox, h.mailer, notify.MustParseTemplates(), notify.Support{
		Email: "support@example.com", WhatsApp: "+221 00 000 00 00", PortalURL: "https://portal.test",
	}, operatorEmail, log)
	esc := &Escalator{Sink: h.sink, Log: log}
	h.runner = &Runner{Redeemer: h.redeemer, Sink: h.sink, Ledger: h.store, Escalator: esc, Log: log}
	h.orch = NewOrchestrator(h.store, InlineDispatcher{Runner: h.runner}, esc, log)

	n := 0
	var mu sync.Mutex
	h.orch.NewID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	return h
}

func (h *harness) user() orders.User {
	return orders.User{ID: "u1", Username: "awa", Email: customerEmail}
}

func (h *harness) checkout(t *testing.T, playerID string, lines ...orders.CartLine) (*orders.Order, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.orch.PlaceOrder(ctx, PlaceOrderRequest{User: h.user(), CartID: "cart1", Lines: lines, PlayerID: playerID})
}

func (h *harness) notifications(t *testing.T) []notify.Notification {
	t.Helper()
	list, err := h.inbox.List(context.Background(), "u1", false)
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func (h *harness) stock(id string) int {
	p, _ := h.store.Product(id)
	return p.Stock
}

// fakeNotifier lets escalation tests fail individual channels.
type fakeNotifier struct {
	mu        sync.Mutex
	fallback  notify.Receipt
	deliver   notify.Receipt
	success   notify.Receipt
	alert     notify.Receipt
	panicOn   string
	calls     []string
	lastAlert notify.Alert
}

func (f *fakeNotifier) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.panicOn == name {
		panic(name + " exploded")
	}
}

func (f *fakeNotifier) RechargeSucceeded(context.Context, notify.Delivery) notify.Receipt {
	f.record("success")
	return f.success
}

func (f *fakeNotifier) ManualFallback(context.Context, notify.Delivery) notify.Receipt {
	f.record("fallback")
	return f.fallback
}

func (f *fakeNotifier) DeliverCode(context.Context, notify.Delivery) notify.Receipt {
	f.record("deliver")
	return f.deliver
}

func (f *fakeNotifier) OperatorAlert(_ context.Context, a notify.Alert) notify.Receipt {
	f.mu.Lock()
	f.lastAlert = a
	f.mu.Unlock()
	f.record("alert")
	return f.alert
}
