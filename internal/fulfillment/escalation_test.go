package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-voucher-orders/internal/notify"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var escJob = Job{
	OrderID: "o1", OrderItemID: "i1", UserID: "u1", Email: customerEmail,
	ProductID: "ff100", ProductName: "100 Diamants", Strategy: AutomatedRecharge,
	PlayerID: "12345678", Code: "ABC123",
}

func observedEscalator(n Notifier) (*Escalator, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Escalator{Sink: n, Log: zap.New(core)}, logs
}

func criticalEntries(logs *observer.ObservedLogs) int {
	count := 0
	for _, e := range logs.FilterLevelExact(zapcore.ErrorLevel).All() {
		if v, ok := e.ContextMap()["critical"]; ok && v == true {
			count++
		}
	}
	return count
}

func TestRechargeFailedSendsFallback(t *testing.T) {
	n := &fakeNotifier{}
	esc, logs := observedEscalator(n)

	state := esc.RechargeFailed(context.Background(), escJob, "invalid code")

	assert.Equal(t, StateFallbackNotified, state)
	assert.Equal(t, []string{"fallback"}, n.calls)
	assert.Equal(t, 1, logs.FilterMessage("automated recharge failed, sending manual fallback").Len())
	assert.Zero(t, criticalEntries(logs))
}

func TestRechargeFailedEscalatesWhenFallbackFails(t *testing.T) {
	n := &fakeNotifier{fallback: notify.Receipt{EmailErr: errSMTP}}
	esc, logs := observedEscalator(n)

	state := esc.RechargeFailed(context.Background(), escJob, "invalid code")

	assert.Equal(t, StateEscalated, state)
	assert.Equal(t, []string{"fallback", "alert"}, n.calls)
	assert.Equal(t, "invalid code", n.lastAlert.Reason)
	assert.Contains(t, n.lastAlert.SecondaryReason, errSMTP.Error())
	assert.Equal(t, "ABC123", n.lastAlert.Code)
	assert.Equal(t, 1, criticalEntries(logs))
}

func TestRechargeFailedAlertAlsoFails(t *testing.T) {
	n := &fakeNotifier{
		fallback: notify.Receipt{NotifyErr: errors.New("db down")},
		alert:    notify.Receipt{EmailErr: errSMTP},
	}
	esc, logs := observedEscalator(n)

	state := esc.RechargeFailed(context.Background(), escJob, "timeout")

	assert.Equal(t, StateEscalated, state)
	assert.Equal(t, 2, criticalEntries(logs))
	assert.Equal(t, 1, logs.FilterMessage("operator alert failed, manual intervention required").Len())
}

func TestRechargeFailedNeverPanics(t *testing.T) {
	n := &fakeNotifier{panicOn: "fallback"}
	esc, logs := observedEscalator(n)

	var state LineState
	assert.NotPanics(t, func() { state = esc.RechargeFailed(context.Background(), escJob, "timeout") })
	assert.Equal(t, StateEscalated, state)
	assert.Equal(t, 1, logs.FilterMessage("escalation panicked").Len())
}

func TestRechargeFailedSurvivesPanickingAlert(t *testing.T) {
	n := &fakeNotifier{fallback: notify.Receipt{EmailErr: errSMTP}, panicOn: "alert"}
	esc, _ := observedEscalator(n)

	assert.NotPanics(t, func() {
		assert.Equal(t, StateEscalated, esc.RechargeFailed(context.Background(), escJob, "timeout"))
	})
}

func TestDispatchFailedCodeEmail(t *testing.T) {
	job := escJob
	job.Strategy = CodeEmail

	n := &fakeNotifier{}
	esc, _ := observedEscalator(n)
	assert.Equal(t, StateCodeSent, esc.DispatchFailed(context.Background(), job, errors.New("broker down")))
	assert.Equal(t, []string{"deliver"}, n.calls)

	n = &fakeNotifier{deliver: notify.Receipt{EmailErr: errSMTP}}
	esc, _ = observedEscalator(n)
	assert.Equal(t, StateCodeSentDegraded, esc.DispatchFailed(context.Background(), job, errors.New("broker down")))

	n = &fakeNotifier{deliver: notify.Receipt{EmailErr: errSMTP, NotifyErr: errors.New("db down")}}
	esc, _ = observedEscalator(n)
	assert.Equal(t, StateEscalated, esc.DispatchFailed(context.Background(), job, errors.New("broker down")))
	assert.Equal(t, []string{"deliver", "alert"}, n.calls)
	assert.Contains(t, n.lastAlert.Reason, "broker down")
}

func TestDispatchFailedAutomatedUsesFallback(t *testing.T) {
	n := &fakeNotifier{}
	esc, _ := observedEscalator(n)

	state := esc.DispatchFailed(context.Background(), escJob, errors.New("broker down"))

	assert.Equal(t, StateFallbackNotified, state)
	assert.Equal(t, []string{"fallback"}, n.calls)
}
