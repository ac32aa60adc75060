package redeem

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-voucher-orders/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func testPortal(t *testing.T, b Browser) *Portal {
	return NewPortal(b, config.Portal{
		URL:              "https://portal.test/?channel=1",
		CandidateTimeout: 2 * time.Millisecond,
		AttemptBudget:    time.Second,
	}, zaptest.NewLogger(t))
}

func TestRedeemSuccess(t *testing.T) {
	page := newFakePage("input[name='id']", "//button[contains(text(),'Redeem')]", "input[name='code']", "button[type='submit']")
	page.body = "Congratulations, 100 diamonds added"

	res := testPortal(t, &fakeBrowser{page: page}).Redeem(context.Background(), "123456789", "FFAB-CDEF")

	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, "123456789", page.values["input[name='id']"])
	assert.Equal(t, "FFAB-CDEF", page.values["input[name='code']"])
	assert.Equal(t, []string{"//button[contains(text(),'Redeem')]", "button[type='submit']"}, page.clicked)
	assert.Equal(t, 1, page.closed)
}

func TestRedeemFallsBackToFormSubmit(t *testing.T) {
	page := newFakePage("#player-id", "#redeem-code")
	page.body = "Code redeemed"

	res := testPortal(t, &fakeBrowser{page: page}).Redeem(context.Background(), "42", "CODE")

	assert.True(t, res.OK())
	assert.Empty(t, page.clicked)
	assert.Equal(t, []string{"#player-id", "#redeem-code"}, page.submits)
}

func TestRedeemClickErrorFallsBackToSubmit(t *testing.T) {
	page := newFakePage("#player-id", "#redeem-btn", "#redeem-code", ".submit-button")
	page.clickErr = errBoom
	page.body = "success"

	res := testPortal(t, &fakeBrowser{page: page}).Redeem(context.Background(), "42", "CODE")

	assert.True(t, res.OK())
	assert.Equal(t, []string{"#player-id", "#redeem-code"}, page.submits)
}

func TestRedeemPortalError(t *testing.T) {
	page := newFakePage("input[name='id']", "input[name='code']")
	page.body = "Erreur: code expiré"
	page.errText = "Code expiré"

	res := testPortal(t, &fakeBrowser{page: page}).Redeem(context.Background(), "42", "OLD")

	assert.Equal(t, Failure, res.Outcome)
	assert.Equal(t, "Code expiré", res.Message)
	assert.Equal(t, 1, page.closed)
}

func TestRedeemMissingPlayerInput(t *testing.T) {
	page := newFakePage()

	res := testPortal(t, &fakeBrowser{page: page}).Redeem(context.Background(), "42", "CODE")

	assert.Equal(t, Failure, res.Outcome)
	assert.Contains(t, res.Message, "player id input")
	assert.Equal(t, 1, page.closed)
}

func TestRedeemBrowserInitFailure(t *testing.T) {
	res := testPortal(t, &fakeBrowser{err: errBoom}).Redeem(context.Background(), "42", "CODE")

	assert.Equal(t, Failure, res.Outcome)
	assert.Contains(t, res.Message, "browser init failed")
}

func TestRedeemRecoversPanicAndCloses(t *testing.T) {
	page := newFakePage()
	page.panicOn = "navigate"

	res := testPortal(t, &fakeBrowser{page: page}).Redeem(context.Background(), "42", "CODE")

	assert.Equal(t, Failure, res.Outcome)
	assert.Contains(t, res.Message, "tab crashed")
	assert.Equal(t, 1, page.closed)
}

func TestRedeemBudgetExhausted(t *testing.T) {
	page := newFakePage("input[name='id']")
	p := testPortal(t, &fakeBrowser{page: page})
	p.Cfg.AttemptBudget = 20 * time.Millisecond
	p.Cfg.PageSettle = time.Second

	res := p.Redeem(context.Background(), "42", "CODE")

	assert.Equal(t, Failure, res.Outcome)
	assert.Contains(t, res.Message, "attempt budget exhausted")
	assert.Equal(t, 1, page.closed)
}

func TestRedeemIndeterminate(t *testing.T) {
	page := newFakePage("input[name='id']", "input[name='code']")
	page.body = "Processing your request"

	res := testPortal(t, &fakeBrowser{page: page}).Redeem(context.Background(), "42", "CODE")

	assert.Equal(t, Indeterminate, res.Outcome)
	assert.False(t, res.OK())
}
