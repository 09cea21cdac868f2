package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdjustmentStore is the slice of the store the instance ledger uses
type AdjustmentStore interface {
	GetProduct(ctx context.Context, tenantID, id int64) (*models.Product, error)
	AddAdjustmentInstances(ctx context.Context, adj *models.StockAdjustment, instances []*models.Instance) error
	RemoveOldestInStock(ctx context.Context, adj *models.StockAdjustment, count int) ([]int64, error)
	CountInStock(ctx context.Context, tenantID, productID int64) (int, error)
	GetAdjustment(ctx context.Context, tenantID, id int64) (*models.StockAdjustment, error)
	GetAdjustmentInstances(ctx context.Context, adjustmentID int64) ([]models.Instance, error)
}

// AdjustmentService owns the per-unit ledger's manual adjustment protocol.
// Every addition or removal is bound to a verified human signer.
type AdjustmentService struct {
	store   AdjustmentStore
	signers *SignerChain
	events  Events
	cache   StockCache
	logger  *zap.Logger
}

// NewAdjustmentService creates a new adjustment service
func NewAdjustmentService(store AdjustmentStore, signers *SignerChain, events Events, cache StockCache) *AdjustmentService {
	return &AdjustmentService{
		store:   store,
		signers: signers,
		events:  events,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

// AdjustmentRequest carries a manual stock mutation. Quantity is signed:
// positive adds units, negative removes them oldest-first. RecorderUserID is
// the session user; it becomes the recorded signer when an operator PIN is
// used, since operators are not first-class signers in this data model.
type AdjustmentRequest struct {
	ProductID      int64            `json:"product_id"`
	SignerPIN      string           `json:"signer_pin"`
	Quantity       int              `json:"quantity"`
	Reason         string           `json:"reason"`
	Category       string           `json:"category"`
	UnitCost       *decimal.Decimal `json:"unit_cost,omitempty"`
	RecorderUserID int64            `json:"-"`
}

// Adjust applies a signed manual addition or removal. Removals consume the
// oldest IN_STOCK units first and never partially fulfill.
func (s *AdjustmentService) Adjust(ctx context.Context, tenantID int64, req *AdjustmentRequest) (*models.StockAdjustment, error) {
	ctx, span := util.StartSpan(ctx, "AdjustmentService.Adjust")
	defer span.End()

	start := time.Now()
	defer func() {
		util.AdjustmentLatency.Observe(time.Since(start).Seconds())
	}()

	if req.Quantity == 0 {
		util.AdjustmentsFailedTotal.WithLabelValues("validation").Inc()
		return nil, &models.ValidationError{Field: "quantity", Reason: "must be non-zero"}
	}
	if strings.TrimSpace(req.Reason) == "" {
		util.AdjustmentsFailedTotal.WithLabelValues("validation").Inc()
		return nil, &models.ValidationError{Field: "reason", Reason: "reason required"}
	}
	if !models.ValidAdjustmentCategory(req.Category) {
		util.AdjustmentsFailedTotal.WithLabelValues("validation").Inc()
		return nil, &models.ValidationError{Field: "category", Reason: "unknown category"}
	}
	if req.UnitCost != nil && !req.UnitCost.IsPositive() {
		util.AdjustmentsFailedTotal.WithLabelValues("validation").Inc()
		return nil, &models.ValidationError{Field: "unit_cost", Reason: "must be positive"}
	}

	product, err := s.store.GetProduct(ctx, tenantID, req.ProductID)
	if err != nil {
		util.AdjustmentsFailedTotal.WithLabelValues("product").Inc()
		return nil, err
	}

	signer, err := s.signers.Resolve(ctx, tenantID, req.SignerPIN)
	if err != nil {
		util.AdjustmentsFailedTotal.WithLabelValues("signature").Inc()
		return nil, err
	}

	adj := &models.StockAdjustment{
		TenantID:   tenantID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		Category:   req.Category,
		SignerName: signer.Name,
	}
	switch signer.Kind {
	case SignerKindAdmin:
		adj.SignerUserID = signer.UserID
	case SignerKindOperator:
		// Operators co-sign: the session user records the adjustment and
		// the operator's name is appended to the reason as the explicit
		// co-signature.
		if req.RecorderUserID == 0 {
			util.AdjustmentsFailedTotal.WithLabelValues("validation").Inc()
			return nil, &models.ValidationError{Field: "recorder", Reason: "session user required for operator signatures"}
		}
		adj.SignerUserID = req.RecorderUserID
		adj.Reason = fmt.Sprintf("%s (signed by %s)", req.Reason, signer.Name)
	}

	if req.Quantity > 0 {
		if err := s.addUnits(ctx, adj, product, req); err != nil {
			return nil, err
		}
		util.AdjustmentsTotal.WithLabelValues("addition").Inc()
	} else {
		if _, err := s.store.RemoveOldestInStock(ctx, adj, -req.Quantity); err != nil {
			util.AdjustmentsFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, err
		}
		util.AdjustmentsTotal.WithLabelValues("removal").Inc()
	}

	s.logger.Info("Stock adjusted",
		zap.Int64("adjustment_id", adj.ID),
		zap.Int64("product_id", adj.ProductID),
		zap.Int("quantity", adj.Quantity),
		zap.String("signer", adj.SignerName))

	if err := s.cache.InvalidateProductStock(ctx, adj.ProductID); err != nil {
		s.logger.Warn("Failed to invalidate stock cache", zap.Error(err))
	}

	event := &models.StockAdjustedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeStockAdjusted, tenantID),
		AdjustmentID: adj.ID,
		ProductID:    adj.ProductID,
		Quantity:     adj.Quantity,
		Category:     adj.Category,
		SignerName:   adj.SignerName,
	}
	if err := s.events.PublishStockAdjusted(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockAdjusted event", zap.Error(err))
	}

	return adj, nil
}

// addUnits creates quantity new live units at the explicit unit cost, or the
// product's current base price when none is given.
func (s *AdjustmentService) addUnits(ctx context.Context, adj *models.StockAdjustment, product *models.Product, req *AdjustmentRequest) error {
	cost := product.BasePrice
	if req.UnitCost != nil {
		cost = *req.UnitCost
	}

	instances := make([]*models.Instance, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		instances = append(instances, &models.Instance{
			ProductID: req.ProductID,
			Status:    models.InstanceStatusInStock,
			Condition: models.ConditionNew,
			UnitCost:  cost,
		})
	}
	if err := s.store.AddAdjustmentInstances(ctx, adj, instances); err != nil {
		util.AdjustmentsFailedTotal.WithLabelValues("db_error").Inc()
		return err
	}
	return nil
}

// Get retrieves an adjustment and the units it created or consumed
func (s *AdjustmentService) Get(ctx context.Context, tenantID, adjustmentID int64) (*models.StockAdjustment, []models.Instance, error) {
	adj, err := s.store.GetAdjustment(ctx, tenantID, adjustmentID)
	if err != nil {
		return nil, nil, err
	}
	instances, err := s.store.GetAdjustmentInstances(ctx, adj.ID)
	if err != nil {
		return nil, nil, err
	}
	return adj, instances, nil
}

// StockOnHand returns the sellable unit count for a product, reading through
// the cache when it is warm.
func (s *AdjustmentService) StockOnHand(ctx context.Context, tenantID, productID int64) (int, error) {
	// Ownership check first so a warm cache cannot leak another tenant's counts.
	if _, err := s.store.GetProduct(ctx, tenantID, productID); err != nil {
		return 0, err
	}

	if count, ok, err := s.cache.GetStockCount(ctx, productID); err == nil && ok {
		return count, nil
	} else if err != nil {
		s.logger.Warn("Stock cache read failed, falling back to store",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}

	count, err := s.store.CountInStock(ctx, tenantID, productID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetStockCount(ctx, productID, count); err != nil {
		s.logger.Warn("Failed to warm stock cache", zap.Error(err))
	}
	return count, nil
}
