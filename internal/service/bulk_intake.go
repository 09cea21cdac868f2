package service

import (
	"context"
	"fmt"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Intake sources. Three import workflows share this adapter: catalog import,
// initial-balance import, and ad-hoc bulk purchase.
const (
	IntakeSourceCatalog        = "CATALOG_IMPORT"
	IntakeSourceInitialBalance = "INITIAL_BALANCE"
	IntakeSourceBulkPurchase   = "BULK_PURCHASE"
)

// CatalogLookup resolves products by id or UPC
type CatalogLookup interface {
	GetProduct(ctx context.Context, tenantID, id int64) (*models.Product, error)
	GetProductByUPC(ctx context.Context, tenantID int64, upc string) (*models.Product, error)
}

// IntakeRow is one parsed tabular row. Parsing and column heuristics happen
// upstream; rows arrive here already shaped.
type IntakeRow struct {
	ProductID int64           `json:"product_id,omitempty"`
	UPC       string          `json:"upc,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// BulkIntakeRequest is one import run
type BulkIntakeRequest struct {
	Source     string      `json:"source"`
	SupplierID int64       `json:"supplier_id"`
	Attendant  string      `json:"attendant"`
	Rows       []IntakeRow `json:"rows"`
}

// BulkIntakeService turns tabular import rows into live stock: one synthetic
// receiving document per run, with quantity serial-less IN_STOCK units per
// row. Bulk rows are trusted administrative input, so the duplicate-serial
// and signer checks of the manual flow deliberately do not apply here.
type BulkIntakeService struct {
	store     PurchaseStore
	catalog   CatalogLookup
	numbering *ReceptionNumberAllocator
	events    Events
	cache     StockCache
	logger    *zap.Logger
}

// NewBulkIntakeService creates a new bulk intake adapter
func NewBulkIntakeService(
	store PurchaseStore,
	catalog CatalogLookup,
	numbering *ReceptionNumberAllocator,
	events Events,
	cache StockCache,
) *BulkIntakeService {
	return &BulkIntakeService{
		store:     store,
		catalog:   catalog,
		numbering: numbering,
		events:    events,
		cache:     cache,
		logger:    util.GetLogger(),
	}
}

// Import creates the synthetic purchase and appends its units in one run
func (s *BulkIntakeService) Import(ctx context.Context, tenantID int64, req *BulkIntakeRequest) (*models.Purchase, error) {
	ctx, span := util.StartSpan(ctx, "BulkIntakeService.Import")
	defer span.End()

	switch req.Source {
	case IntakeSourceCatalog, IntakeSourceInitialBalance, IntakeSourceBulkPurchase:
	default:
		return nil, &models.ValidationError{Field: "source", Reason: "unknown intake source"}
	}
	if len(req.Rows) == 0 {
		return nil, &models.ValidationError{Field: "rows", Reason: "at least one row required"}
	}

	if _, err := s.store.GetSupplier(ctx, tenantID, req.SupplierID); err != nil {
		return nil, err
	}

	instances := make([]*models.Instance, 0, len(req.Rows))
	productIDs := make([]int64, 0, len(req.Rows))
	total := decimal.Zero
	for i, row := range req.Rows {
		if row.Quantity <= 0 {
			return nil, &models.ValidationError{Field: "quantity", Reason: fmt.Sprintf("row %d: must be positive", i+1)}
		}
		if row.UnitCost.IsNegative() {
			return nil, &models.ValidationError{Field: "unit_cost", Reason: fmt.Sprintf("row %d: negative cost", i+1)}
		}

		product, err := s.resolveProduct(ctx, tenantID, row)
		if err != nil {
			return nil, err
		}
		productIDs = append(productIDs, product.ID)

		for j := 0; j < row.Quantity; j++ {
			instances = append(instances, &models.Instance{
				ProductID: product.ID,
				Status:    models.InstanceStatusInStock,
				Condition: models.ConditionNew,
				UnitCost:  row.UnitCost,
			})
		}
		total = total.Add(row.UnitCost.Mul(decimal.NewFromInt(int64(row.Quantity))))
	}

	purchase := &models.Purchase{
		TenantID:     tenantID,
		SupplierID:   req.SupplierID,
		Currency:     "",
		ExchangeRate: decimal.NewFromInt(1),
		TotalCost:    total,
		Status:       models.PurchaseStatusConfirmed,
		Attendant:    req.Attendant,
		Notes:        fmt.Sprintf("bulk intake: %s", req.Source),
	}

	number, err := s.numbering.Allocate(ctx, func(number string) error {
		purchase.ReceptionNumber = number
		return s.store.CreatePurchase(ctx, purchase, instances)
	})
	if err != nil {
		return nil, err
	}

	util.BulkIntakeUnitsTotal.WithLabelValues(req.Source).Add(float64(len(instances)))
	s.logger.Info("Bulk intake completed",
		zap.String("source", req.Source),
		zap.Int64("purchase_id", purchase.ID),
		zap.String("reception_number", number),
		zap.Int("units", len(instances)))

	if err := s.cache.InvalidateProductStock(ctx, uniqueIDs(productIDs)...); err != nil {
		s.logger.Warn("Failed to invalidate stock cache", zap.Error(err))
	}

	event := &models.BulkIntakeEvent{
		BaseEvent:  newBaseEvent(models.EventTypeBulkIntake, tenantID),
		PurchaseID: purchase.ID,
		Source:     req.Source,
		ProductIDs: uniqueIDs(productIDs),
		UnitCount:  len(instances),
	}
	if err := s.events.PublishBulkIntake(ctx, event); err != nil {
		s.logger.Error("Failed to publish BulkIntake event", zap.Error(err))
	}

	return purchase, nil
}

func (s *BulkIntakeService) resolveProduct(ctx context.Context, tenantID int64, row IntakeRow) (*models.Product, error) {
	if row.ProductID != 0 {
		return s.catalog.GetProduct(ctx, tenantID, row.ProductID)
	}
	if row.UPC != "" {
		return s.catalog.GetProductByUPC(ctx, tenantID, row.UPC)
	}
	return nil, &models.ValidationError{Field: "product", Reason: "product id or upc required"}
}
