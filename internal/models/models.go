package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog product owned by a tenant
type Product struct {
	ID        int64           `db:"id" json:"id"`
	TenantID  int64           `db:"tenant_id" json:"tenant_id"`
	UPC       string          `db:"upc" json:"upc"`
	Name      string          `db:"name" json:"name"`
	BasePrice decimal.Decimal `db:"base_price" json:"base_price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Supplier represents a stock supplier owned by a tenant
type Supplier struct {
	ID       int64  `db:"id" json:"id"`
	TenantID int64  `db:"tenant_id" json:"tenant_id"`
	Name     string `db:"name" json:"name"`
}

// User is a tenant account that can sign stock mutations.
// PIN is the plaintext credential inherited from the legacy schema; PINHash
// carries the bcrypt-migrated credential for accounts that no longer store
// plaintext.
type User struct {
	ID       int64   `db:"id" json:"id"`
	TenantID int64   `db:"tenant_id" json:"tenant_id"`
	Name     string  `db:"name" json:"name"`
	PIN      string  `db:"pin" json:"-"`
	PINHash  *string `db:"pin_hash" json:"-"`
	IsAdmin  bool    `db:"is_admin" json:"is_admin"`
}

// Operator is a field operator identified by PIN. Operators are not
// first-class signers; their name is snapshotted onto the records they touch.
type Operator struct {
	ID       int64  `db:"id" json:"id"`
	TenantID int64  `db:"tenant_id" json:"tenant_id"`
	Name     string `db:"name" json:"name"`
	PIN      string `db:"pin" json:"-"`
}

// Instance represents one physical, individually tracked unit of a product
type Instance struct {
	ID           int64               `db:"id" json:"id"`
	ProductID    int64               `db:"product_id" json:"product_id"`
	PurchaseID   *int64              `db:"purchase_id" json:"purchase_id,omitempty"`
	AdjustmentID *int64              `db:"adjustment_id" json:"adjustment_id,omitempty"`
	SaleID       *int64              `db:"sale_id" json:"sale_id,omitempty"`
	Serial       *string             `db:"serial" json:"serial,omitempty"`
	Status       string              `db:"status" json:"status"`
	Condition    string              `db:"condition" json:"condition"`
	UnitCost     decimal.Decimal     `db:"unit_cost" json:"unit_cost"`
	OriginalCost decimal.NullDecimal `db:"original_cost" json:"original_cost,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// Purchase represents a receiving document: a batch of units from a supplier
type Purchase struct {
	ID              int64           `db:"id" json:"id"`
	TenantID        int64           `db:"tenant_id" json:"tenant_id"`
	SupplierID      int64           `db:"supplier_id" json:"supplier_id"`
	Currency        string          `db:"currency" json:"currency"`
	ExchangeRate    decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`
	TotalCost       decimal.Decimal `db:"total_cost" json:"total_cost"`
	Status          string          `db:"status" json:"status"`
	ReceptionNumber string          `db:"reception_number" json:"reception_number"`
	Attendant       string          `db:"attendant" json:"attendant"`
	OperatorID      *int64          `db:"operator_id" json:"operator_id,omitempty"`
	OperatorName    *string         `db:"operator_name" json:"operator_name,omitempty"`
	Notes           string          `db:"notes" json:"notes"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// StockAdjustment is an audited manual addition or removal of units outside
// the receiving/selling flow. Quantity is signed: positive adds units,
// negative removes them; its magnitude equals the count of affected instances.
type StockAdjustment struct {
	ID           int64     `db:"id" json:"id"`
	TenantID     int64     `db:"tenant_id" json:"tenant_id"`
	ProductID    int64     `db:"product_id" json:"product_id"`
	Quantity     int       `db:"quantity" json:"quantity"`
	Reason       string    `db:"reason" json:"reason"`
	Category     string    `db:"category" json:"category"`
	SignerUserID int64     `db:"signer_user_id" json:"signer_user_id"`
	SignerName   string    `db:"signer_name" json:"signer_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Instance statuses
const (
	InstanceStatusPending    = "PENDING"
	InstanceStatusInStock    = "IN_STOCK"
	InstanceStatusSold       = "SOLD"
	InstanceStatusAdjustment = "ADJUSTMENT"
	InstanceStatusRemoved    = "REMOVED"
)

// Instance conditions
const (
	ConditionNew = "NEW"
)

// Purchase statuses
const (
	PurchaseStatusDraft     = "DRAFT"
	PurchaseStatusConfirmed = "CONFIRMED"
	PurchaseStatusCompleted = "COMPLETED"
)

// Adjustment categories
const (
	AdjustmentCategoryCorrection     = "CORRECTION"
	AdjustmentCategoryDamage         = "DAMAGE"
	AdjustmentCategoryLossTheft      = "LOSS_THEFT"
	AdjustmentCategoryInternalUse    = "INTERNAL_USE"
	AdjustmentCategoryCustomerReturn = "CUSTOMER_RETURN"
	AdjustmentCategoryOther          = "OTHER"
)

// ValidAdjustmentCategory reports whether category is a known category
func ValidAdjustmentCategory(category string) bool {
	switch category {
	case AdjustmentCategoryCorrection, AdjustmentCategoryDamage,
		AdjustmentCategoryLossTheft, AdjustmentCategoryInternalUse,
		AdjustmentCategoryCustomerReturn, AdjustmentCategoryOther:
		return true
	}
	return false
}

// BulkSerialPrefix marks placeholder serials assigned to bulk intake rows.
// Units carrying it are not individually serialized and are skipped by
// duplicate detection.
const BulkSerialPrefix = "BULK"

// IsPlaceholderSerial reports whether serial is empty or a bulk placeholder
func IsPlaceholderSerial(serial string) bool {
	serial = strings.TrimSpace(serial)
	return serial == "" || strings.HasPrefix(serial, BulkSerialPrefix)
}

// ActiveInstanceStatuses are the statuses under which a serial number must
// stay unique within a tenant.
var ActiveInstanceStatuses = []string{InstanceStatusPending, InstanceStatusInStock}

// Validate checks the exclusive-or provenance invariants on every write path:
// an instance is created by exactly one of purchase/adjustment and disposed by
// at most one of sale/adjustment-removal.
func (i *Instance) Validate() error {
	if i.PurchaseID == nil && i.AdjustmentID == nil {
		return &ValidationError{Field: "instance", Reason: "missing creating provenance"}
	}
	switch i.Status {
	case InstanceStatusPending:
		if i.PurchaseID == nil {
			return &ValidationError{Field: "instance", Reason: "pending unit without purchase"}
		}
		if i.SaleID != nil {
			return &ValidationError{Field: "instance", Reason: "pending unit already disposed"}
		}
	case InstanceStatusInStock:
		if i.SaleID != nil {
			return &ValidationError{Field: "instance", Reason: "in-stock unit already disposed"}
		}
	case InstanceStatusSold:
		if i.SaleID == nil {
			return &ValidationError{Field: "instance", Reason: "sold unit without sale"}
		}
	case InstanceStatusAdjustment, InstanceStatusRemoved:
		if i.AdjustmentID == nil {
			return &ValidationError{Field: "instance", Reason: "removed unit without adjustment"}
		}
		if i.SaleID != nil {
			return &ValidationError{Field: "instance", Reason: "unit disposed by both sale and adjustment"}
		}
	default:
		return &ValidationError{Field: "status", Reason: "unknown instance status"}
	}
	return nil
}
