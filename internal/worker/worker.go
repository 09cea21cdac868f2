package worker

import (
	"context"
	"log"

	"inventory-ledger/internal/broker"
	"inventory-ledger/internal/models"
)

// StockCounter reads live stock counts from the store
type StockCounter interface {
	CountInStock(ctx context.Context, tenantID, productID int64) (int, error)
}

// StockCacheSetter writes refreshed counts into the cache
type StockCacheSetter interface {
	SetStockCount(ctx context.Context, productID int64, count int) error
}

// StockCacheWorker keeps the per-product stock-count cache warm by consuming
// stock events and recounting the affected products. Purely best-effort: the
// cache is advisory and the store stays authoritative.
type StockCacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	counter      StockCounter
	cache        StockCacheSetter
}

// NewStockCacheWorker creates a new stock cache worker
func NewStockCacheWorker(consumer *broker.Consumer, counter StockCounter, cache StockCacheSetter) *StockCacheWorker {
	w := &StockCacheWorker{
		consumer: consumer,
		counter:  counter,
		cache:    cache,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPurchaseConfirmed(func(ctx context.Context, event *models.PurchaseConfirmedEvent) error {
		return w.refresh(ctx, event.TenantID, event.ProductIDs)
	})
	eventHandler.OnPurchaseDeleted(func(ctx context.Context, event *models.PurchaseDeletedEvent) error {
		return w.refresh(ctx, event.TenantID, event.ProductIDs)
	})
	eventHandler.OnStockAdjusted(func(ctx context.Context, event *models.StockAdjustedEvent) error {
		return w.refresh(ctx, event.TenantID, []int64{event.ProductID})
	})
	eventHandler.OnBulkIntake(func(ctx context.Context, event *models.BulkIntakeEvent) error {
		return w.refresh(ctx, event.TenantID, event.ProductIDs)
	})
	w.eventHandler = eventHandler

	return w
}

func (w *StockCacheWorker) refresh(ctx context.Context, tenantID int64, productIDs []int64) error {
	for _, productID := range productIDs {
		count, err := w.counter.CountInStock(ctx, tenantID, productID)
		if err != nil {
			log.Printf("Failed to recount product %d: %v", productID, err)
			continue
		}
		if err := w.cache.SetStockCount(ctx, productID, count); err != nil {
			log.Printf("Failed to cache stock count for product %d: %v", productID, err)
		}
	}
	return nil
}

// Start starts the worker
func (w *StockCacheWorker) Start(ctx context.Context) error {
	log.Println("Starting stock cache worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockCacheWorker) Stop() error {
	log.Println("Stopping stock cache worker...")
	return w.consumer.Close()
}
