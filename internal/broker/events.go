package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"inventory-ledger/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing stock domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPurchaseCreated publishes a PurchaseCreated event
func (ep *EventPublisher) PublishPurchaseCreated(ctx context.Context, event *models.PurchaseCreatedEvent) error {
	key := fmt.Sprintf("purchase-%d", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPurchaseConfirmed publishes a PurchaseConfirmed event
func (ep *EventPublisher) PublishPurchaseConfirmed(ctx context.Context, event *models.PurchaseConfirmedEvent) error {
	key := fmt.Sprintf("purchase-%d", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPurchaseDeleted publishes a PurchaseDeleted event
func (ep *EventPublisher) PublishPurchaseDeleted(ctx context.Context, event *models.PurchaseDeletedEvent) error {
	key := fmt.Sprintf("purchase-%d", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockAdjusted publishes a StockAdjusted event
func (ep *EventPublisher) PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishBulkIntake publishes a BulkIntake event
func (ep *EventPublisher) PublishBulkIntake(ctx context.Context, event *models.BulkIntakeEvent) error {
	key := fmt.Sprintf("purchase-%d", event.PurchaseID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming stock events to registered callbacks
type EventHandler struct {
	onPurchaseConfirmed func(context.Context, *models.PurchaseConfirmedEvent) error
	onPurchaseDeleted   func(context.Context, *models.PurchaseDeletedEvent) error
	onStockAdjusted     func(context.Context, *models.StockAdjustedEvent) error
	onBulkIntake        func(context.Context, *models.BulkIntakeEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPurchaseConfirmed registers a handler for PurchaseConfirmed events
func (eh *EventHandler) OnPurchaseConfirmed(handler func(context.Context, *models.PurchaseConfirmedEvent) error) {
	eh.onPurchaseConfirmed = handler
}

// OnPurchaseDeleted registers a handler for PurchaseDeleted events
func (eh *EventHandler) OnPurchaseDeleted(handler func(context.Context, *models.PurchaseDeletedEvent) error) {
	eh.onPurchaseDeleted = handler
}

// OnStockAdjusted registers a handler for StockAdjusted events
func (eh *EventHandler) OnStockAdjusted(handler func(context.Context, *models.StockAdjustedEvent) error) {
	eh.onStockAdjusted = handler
}

// OnBulkIntake registers a handler for BulkIntake events
func (eh *EventHandler) OnBulkIntake(handler func(context.Context, *models.BulkIntakeEvent) error) {
	eh.onBulkIntake = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypePurchaseConfirmed:
		if eh.onPurchaseConfirmed != nil {
			var event models.PurchaseConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseConfirmed event: %w", err)
			}
			return eh.onPurchaseConfirmed(ctx, &event)
		}

	case models.EventTypePurchaseDeleted:
		if eh.onPurchaseDeleted != nil {
			var event models.PurchaseDeletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseDeleted event: %w", err)
			}
			return eh.onPurchaseDeleted(ctx, &event)
		}

	case models.EventTypeStockAdjusted:
		if eh.onStockAdjusted != nil {
			var event models.StockAdjustedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockAdjusted event: %w", err)
			}
			return eh.onStockAdjusted(ctx, &event)
		}

	case models.EventTypeBulkIntake:
		if eh.onBulkIntake != nil {
			var event models.BulkIntakeEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BulkIntake event: %w", err)
			}
			return eh.onBulkIntake(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
