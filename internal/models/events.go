package models

import "time"

// Event types
const (
	EventTypePurchaseCreated   = "PURCHASE_CREATED"
	EventTypePurchaseConfirmed = "PURCHASE_CONFIRMED"
	EventTypePurchaseDeleted   = "PURCHASE_DELETED"
	EventTypeStockAdjusted     = "STOCK_ADJUSTED"
	EventTypeBulkIntake        = "BULK_INTAKE"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	TenantID  int64     `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseCreatedEvent published when a draft receiving document is persisted
type PurchaseCreatedEvent struct {
	BaseEvent
	PurchaseID      int64  `json:"purchase_id"`
	ReceptionNumber string `json:"reception_number"`
	SupplierID      int64  `json:"supplier_id"`
	UnitCount       int    `json:"unit_count"`
	TotalCost       string `json:"total_cost"`
}

// PurchaseConfirmedEvent published when a document's units become live stock
type PurchaseConfirmedEvent struct {
	BaseEvent
	PurchaseID int64   `json:"purchase_id"`
	ProductIDs []int64 `json:"product_ids"`
}

// PurchaseDeletedEvent published when a document and its units are destroyed
type PurchaseDeletedEvent struct {
	BaseEvent
	PurchaseID int64   `json:"purchase_id"`
	ProductIDs []int64 `json:"product_ids"`
}

// StockAdjustedEvent published when a manual adjustment is committed
type StockAdjustedEvent struct {
	BaseEvent
	AdjustmentID int64  `json:"adjustment_id"`
	ProductID    int64  `json:"product_id"`
	Quantity     int    `json:"quantity"`
	Category     string `json:"category"`
	SignerName   string `json:"signer_name"`
}

// BulkIntakeEvent published once per bulk import run
type BulkIntakeEvent struct {
	BaseEvent
	PurchaseID int64   `json:"purchase_id"`
	Source     string  `json:"source"`
	ProductIDs []int64 `json:"product_ids"`
	UnitCount  int     `json:"unit_count"`
}
