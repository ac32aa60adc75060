package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/go-voucher-orders/internal/kafka"
	"github.com/ariefcatur/go-voucher-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Deduper interface {
	Claim(ctx context.Context, service, id string) (bool, error)
	Release(ctx context.Context, service, id string) error
}

// Worker consumes FulfillmentRequested and runs each line exactly once.
type Worker struct {
	Runner *Runner
	Dedup  Deduper
	Log    *zap.Logger
}

const dedupService = "fulfillment"

// HandleFulfillmentRequested: dipasang sebagai handler consumer.
func (w *Worker) HandleFulfillmentRequested(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// pesan rusak tidak akan pernah bisa diproses; commit saja
		w.Log.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventFulfillmentRequested {
		return nil
	} // ignore

	// 2) decode payload
	job, err := kafkax.UnwrapPayload[Job](env.Payload)
	if err != nil {
		w.Log.Error("drop bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	// 3) dedup via Redis (pakai order_item_id): satu line hanya dikirim sekali
	claimed, err := w.Dedup.Claim(ctx, dedupService, job.OrderItemID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", job.OrderItemID, err)
	}
	if !claimed {
		w.Log.Info("duplicate fulfillment request skipped", jobFields(job, zap.String("event_id", env.EventID))...)
		return nil
	}

	// 4) jalankan; Run tidak pernah gagal, hasilnya selalu LineState
	if ctx.Err() != nil {
		if err := w.Dedup.Release(context.WithoutCancel(ctx), dedupService, job.OrderItemID); err != nil {
			w.Log.Warn("release dedup claim", jobFields(job, zap.Error(err))...)
		}
		return ctx.Err()
	}
	// claim sudah dipegang: shutdown tidak boleh memotong redeem di tengah jalan.
	// Redeem tetap dibatasi AttemptBudget dan consumer menunggu handler selesai.
	state := w.Runner.Run(context.WithoutCancel(ctx), job)
	w.Log.Info("fulfillment request handled",
		jobFields(job, zap.String("event_id", env.EventID), zap.String("state", string(state)))...)
	return nil
}
