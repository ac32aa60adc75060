package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-voucher-orders/internal/notify"
	"github.com/ariefcatur/go-voucher-orders/internal/orders"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Purger interface {
	PurgeRead(ctx context.Context, cutoff time.Time) (int, error)
}

type Allocations interface {
	StaleAllocations(ctx context.Context, cutoff time.Time) ([]orders.RedeemCode, error)
}

type Reporter interface {
	StaleReport(ctx context.Context, cutoff time.Time, codes []notify.StaleCode) error
}

// Jobs holds the housekeeping tasks run by the fulfillment process.
type Jobs struct {
	Inbox     Purger
	Ledger    Allocations
	Reporter  Reporter
	Retention time.Duration
	StaleAge  time.Duration
	Timeout   time.Duration
	Log       *zap.Logger
	Now       func() time.Time
}

// Schedule registers both jobs on a new scheduler; the caller starts and stops it.
func (j *Jobs) Schedule(location string) (*cron.Cron, error) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, fmt.Errorf("cron location %q: %w", location, err)
	}
	sched := cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	if _, err := sched.AddFunc("@daily", func() { j.run("purge_notifications", j.PurgeNotifications) }); err != nil {
		return nil, fmt.Errorf("schedule purge: %w", err)
	}
	if _, err := sched.AddFunc("0 0 8 * * *", func() { j.run("stale_allocations", j.ReportStaleAllocations) }); err != nil {
		return nil, fmt.Errorf("schedule stale report: %w", err)
	}
	return sched, nil
}

func (j *Jobs) run(name string, fn func(context.Context) error) {
	defer func() {
		if p := recover(); p != nil {
			j.Log.Error("job panicked", zap.String("job", name), zap.Any("panic", p))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), j.Timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		j.Log.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	j.Log.Info("job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// PurgeNotifications deletes read notifications older than the retention.
func (j *Jobs) PurgeNotifications(ctx context.Context) error {
	n, err := j.Inbox.PurgeRead(ctx, j.Now().Add(-j.Retention))
	if err != nil {
		return fmt.Errorf("purge notifications: %w", err)
	}
	j.Log.Info("read notifications purged", zap.Int("deleted", n))
	return nil
}

// ReportStaleAllocations mails the operator the codes that have been
// allocated but never delivered for longer than StaleAge. Nothing is sent
// when there are none.
func (j *Jobs) ReportStaleAllocations(ctx context.Context) error {
	cutoff := j.Now().Add(-j.StaleAge)
	codes, err := j.Ledger.StaleAllocations(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("stale allocations: %w", err)
	}
	if len(codes) == 0 {
		return nil
	}

	stale := make([]notify.StaleCode, 0, len(codes))
	for _, c := range codes {
		sc := notify.StaleCode{Code: c.Code, ProductID: c.ProductID, OrderItemID: c.OrderItemID}
		if c.AllocatedAt != nil {
			sc.AllocatedAt = *c.AllocatedAt
		}
		stale = append(stale, sc)
	}
	j.Log.Warn("undelivered redeem codes", zap.Int("count", len(stale)), zap.Time("cutoff", cutoff))
	return j.Reporter.StaleReport(ctx, cutoff, stale)
}
