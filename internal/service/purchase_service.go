package service

import (
	"context"
	"strings"
	"time"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"
	"inventory-ledger/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Events is the slice of the event publisher the services use
type Events interface {
	PublishPurchaseCreated(ctx context.Context, event *models.PurchaseCreatedEvent) error
	PublishPurchaseConfirmed(ctx context.Context, event *models.PurchaseConfirmedEvent) error
	PublishPurchaseDeleted(ctx context.Context, event *models.PurchaseDeletedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
	PublishBulkIntake(ctx context.Context, event *models.BulkIntakeEvent) error
}

// StockCache is the per-product stock-count cache. Invalidation is
// fire-and-forget and never affects correctness.
type StockCache interface {
	GetStockCount(ctx context.Context, productID int64) (int, bool, error)
	SetStockCount(ctx context.Context, productID int64, count int) error
	InvalidateProductStock(ctx context.Context, productIDs ...int64) error
}

// PurchaseStore is the slice of the store the receiving document manager uses
type PurchaseStore interface {
	GetSupplier(ctx context.Context, tenantID, id int64) (*models.Supplier, error)
	GetPurchase(ctx context.Context, tenantID, id int64) (*models.Purchase, error)
	GetInstancesByPurchase(ctx context.Context, purchaseID int64) ([]models.Instance, error)
	CreatePurchase(ctx context.Context, purchase *models.Purchase, instances []*models.Instance) error
	UpdatePurchase(ctx context.Context, purchase *models.Purchase, updates []store.InstanceUpdate, added []*models.Instance) error
	ConfirmPurchase(ctx context.Context, tenantID, purchaseID int64) ([]int64, error)
	DeletePurchase(ctx context.Context, tenantID, purchaseID int64) ([]int64, error)
}

// PurchaseService manages receiving documents and their pending units
type PurchaseService struct {
	store      PurchaseStore
	numbering  *ReceptionNumberAllocator
	duplicates *DuplicateChecker
	verifier   IdentityVerifier
	events     Events
	cache      StockCache
	logger     *zap.Logger
}

// NewPurchaseService creates a new receiving document manager
func NewPurchaseService(
	store PurchaseStore,
	numbering *ReceptionNumberAllocator,
	duplicates *DuplicateChecker,
	verifier IdentityVerifier,
	events Events,
	cache StockCache,
) *PurchaseService {
	return &PurchaseService{
		store:      store,
		numbering:  numbering,
		duplicates: duplicates,
		verifier:   verifier,
		events:     events,
		cache:      cache,
		logger:     util.GetLogger(),
	}
}

// LineItem is one unit to receive. InstanceID is set on edits that update an
// existing unit in place.
type LineItem struct {
	InstanceID *int64          `json:"instance_id,omitempty"`
	ProductID  int64           `json:"product_id"`
	Serial     string          `json:"serial"`
	Cost       decimal.Decimal `json:"cost"`
}

// SignerRef is an optional operator co-signature on document creation
type SignerRef struct {
	OperatorID int64  `json:"operator_id"`
	PIN        string `json:"pin"`
}

// CreateDraftRequest carries a new receiving document
type CreateDraftRequest struct {
	SupplierID   int64           `json:"supplier_id"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Items        []LineItem      `json:"items"`
	Attendant    string          `json:"attendant"`
	Notes        string          `json:"notes"`
	Signer       *SignerRef      `json:"signer,omitempty"`
}

// UpdateRequest carries a document edit
type UpdateRequest struct {
	SupplierID   int64           `json:"supplier_id"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	Items        []LineItem      `json:"items"`
}

// CreateDraft validates, allocates a reception number, and persists the
// document as DRAFT with its units PENDING. The duplicate-serial check and
// the optional signer verification both run before any write, so a failure
// leaves nothing behind.
func (s *PurchaseService) CreateDraft(ctx context.Context, tenantID int64, req *CreateDraftRequest) (*models.Purchase, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.CreateDraft")
	defer span.End()

	if len(req.Items) == 0 {
		util.PurchaseCreateFailedTotal.WithLabelValues("validation").Inc()
		return nil, &models.ValidationError{Field: "items", Reason: "at least one line item required"}
	}
	if strings.TrimSpace(req.Attendant) == "" {
		util.PurchaseCreateFailedTotal.WithLabelValues("validation").Inc()
		return nil, &models.ValidationError{Field: "attendant", Reason: "attendant required"}
	}
	rate, err := normalizeExchangeRate(req.ExchangeRate)
	if err != nil {
		util.PurchaseCreateFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}
	for _, item := range req.Items {
		if item.Cost.IsNegative() {
			util.PurchaseCreateFailedTotal.WithLabelValues("validation").Inc()
			return nil, &models.ValidationError{Field: "cost", Reason: "negative line cost"}
		}
	}

	if _, err := s.store.GetSupplier(ctx, tenantID, req.SupplierID); err != nil {
		util.PurchaseCreateFailedTotal.WithLabelValues("supplier").Inc()
		return nil, err
	}

	serials := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		serials = append(serials, item.Serial)
	}
	if err := s.duplicates.Check(ctx, tenantID, serials); err != nil {
		util.PurchaseCreateFailedTotal.WithLabelValues("duplicate_serial").Inc()
		return nil, err
	}

	purchase := &models.Purchase{
		TenantID:     tenantID,
		SupplierID:   req.SupplierID,
		Currency:     req.Currency,
		ExchangeRate: rate,
		Status:       models.PurchaseStatusDraft,
		Attendant:    req.Attendant,
		Notes:        req.Notes,
	}

	// Verification happens before any document is persisted; a bad signer
	// fails the whole creation.
	if req.Signer != nil {
		name, err := s.verifier.VerifyOperator(ctx, tenantID, req.Signer.OperatorID, req.Signer.PIN)
		if err != nil {
			util.PurchaseCreateFailedTotal.WithLabelValues("signer").Inc()
			return nil, err
		}
		operatorID := req.Signer.OperatorID
		purchase.OperatorID = &operatorID
		purchase.OperatorName = &name
	}

	instances := make([]*models.Instance, 0, len(req.Items))
	total := decimal.Zero
	for _, item := range req.Items {
		inst := pendingInstance(item, rate)
		total = total.Add(inst.UnitCost)
		instances = append(instances, inst)
	}
	purchase.TotalCost = total

	number, err := s.numbering.Allocate(ctx, func(number string) error {
		purchase.ReceptionNumber = number
		return s.store.CreatePurchase(ctx, purchase, instances)
	})
	if err != nil {
		util.PurchaseCreateFailedTotal.WithLabelValues("numbering").Inc()
		return nil, err
	}

	util.PurchasesCreatedTotal.Inc()
	s.logger.Info("Receiving document created",
		zap.Int64("purchase_id", purchase.ID),
		zap.String("reception_number", number),
		zap.Int("units", len(instances)))

	event := &models.PurchaseCreatedEvent{
		BaseEvent:       newBaseEvent(models.EventTypePurchaseCreated, tenantID),
		PurchaseID:      purchase.ID,
		ReceptionNumber: number,
		SupplierID:      purchase.SupplierID,
		UnitCount:       len(instances),
		TotalCost:       purchase.TotalCost.String(),
	}
	if err := s.events.PublishPurchaseCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseCreated event", zap.Error(err))
	}

	return purchase, nil
}

// Update applies a document edit in one transaction. Items carrying an
// instance id update that unit in place; the rest become new PENDING units.
// The document drops back to DRAFT and must be re-confirmed.
func (s *PurchaseService) Update(ctx context.Context, tenantID, purchaseID int64, req *UpdateRequest) (*models.Purchase, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Update")
	defer span.End()

	rate, err := normalizeExchangeRate(req.ExchangeRate)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if item.Cost.IsNegative() {
			return nil, &models.ValidationError{Field: "cost", Reason: "negative line cost"}
		}
	}

	purchase, err := s.store.GetPurchase(ctx, tenantID, purchaseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetSupplier(ctx, tenantID, req.SupplierID); err != nil {
		return nil, err
	}

	// Edited serials cannot be checked against the store (they may match the
	// unit's own row), but the request as a whole must still be internally
	// distinct.
	allSerials := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		allSerials = append(allSerials, item.Serial)
	}
	if err := s.duplicates.CheckDistinct(allSerials); err != nil {
		return nil, err
	}

	var updates []store.InstanceUpdate
	var added []*models.Instance
	var addedSerials []string
	for _, item := range req.Items {
		if item.InstanceID != nil {
			upd := store.InstanceUpdate{ID: *item.InstanceID}
			upd.UnitCost, upd.OriginalCost = convertCost(item.Cost, rate)
			if serial := strings.TrimSpace(item.Serial); serial != "" {
				upd.Serial = &serial
			}
			updates = append(updates, upd)
			continue
		}
		added = append(added, pendingInstance(item, rate))
		addedSerials = append(addedSerials, item.Serial)
	}

	if err := s.duplicates.Check(ctx, tenantID, addedSerials); err != nil {
		return nil, err
	}

	purchase.SupplierID = req.SupplierID
	purchase.Currency = req.Currency
	purchase.ExchangeRate = rate
	if err := s.store.UpdatePurchase(ctx, purchase, updates, added); err != nil {
		return nil, err
	}

	s.logger.Info("Receiving document updated",
		zap.Int64("purchase_id", purchase.ID),
		zap.Int("edited", len(updates)),
		zap.Int("added", len(added)))
	return purchase, nil
}

// Confirm flips the document to CONFIRMED and all of its PENDING units to
// IN_STOCK in one transaction. Safe to call twice: units already IN_STOCK
// are untouched. The cost-completeness gate is the caller's responsibility
// (see HasIncompleteCosts).
func (s *PurchaseService) Confirm(ctx context.Context, tenantID, purchaseID int64) error {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Confirm")
	defer span.End()

	productIDs, err := s.store.ConfirmPurchase(ctx, tenantID, purchaseID)
	if err != nil {
		return err
	}

	util.PurchasesConfirmedTotal.Inc()
	s.logger.Info("Receiving document confirmed",
		zap.Int64("purchase_id", purchaseID),
		zap.Int("units", len(productIDs)))

	s.invalidateStock(ctx, productIDs)

	event := &models.PurchaseConfirmedEvent{
		BaseEvent:  newBaseEvent(models.EventTypePurchaseConfirmed, tenantID),
		PurchaseID: purchaseID,
		ProductIDs: uniqueIDs(productIDs),
	}
	if err := s.events.PublishPurchaseConfirmed(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseConfirmed event", zap.Error(err))
	}
	return nil
}

// HasIncompleteCosts reports whether any unit of the document has a zero or
// negative cost. Callers must gate Confirm on this.
func (s *PurchaseService) HasIncompleteCosts(ctx context.Context, tenantID, purchaseID int64) (bool, error) {
	if _, err := s.store.GetPurchase(ctx, tenantID, purchaseID); err != nil {
		return false, err
	}
	instances, err := s.store.GetInstancesByPurchase(ctx, purchaseID)
	if err != nil {
		return false, err
	}
	for _, inst := range instances {
		if !inst.UnitCost.IsPositive() {
			return true, nil
		}
	}
	return false, nil
}

// Delete destroys the document and its units. Refused when any unit has been
// sold, since deleting a confirmed document erases stock history.
func (s *PurchaseService) Delete(ctx context.Context, tenantID, purchaseID int64) error {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Delete")
	defer span.End()

	productIDs, err := s.store.DeletePurchase(ctx, tenantID, purchaseID)
	if err != nil {
		return err
	}

	util.PurchasesDeletedTotal.Inc()
	s.logger.Info("Receiving document deleted",
		zap.Int64("purchase_id", purchaseID),
		zap.Int("units", len(productIDs)))

	s.invalidateStock(ctx, productIDs)

	event := &models.PurchaseDeletedEvent{
		BaseEvent:  newBaseEvent(models.EventTypePurchaseDeleted, tenantID),
		PurchaseID: purchaseID,
		ProductIDs: uniqueIDs(productIDs),
	}
	if err := s.events.PublishPurchaseDeleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseDeleted event", zap.Error(err))
	}
	return nil
}

// Get retrieves a document and its units
func (s *PurchaseService) Get(ctx context.Context, tenantID, purchaseID int64) (*models.Purchase, []models.Instance, error) {
	purchase, err := s.store.GetPurchase(ctx, tenantID, purchaseID)
	if err != nil {
		return nil, nil, err
	}
	instances, err := s.store.GetInstancesByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, nil, err
	}
	return purchase, instances, nil
}

func (s *PurchaseService) invalidateStock(ctx context.Context, productIDs []int64) {
	if len(productIDs) == 0 {
		return
	}
	if err := s.cache.InvalidateProductStock(ctx, uniqueIDs(productIDs)...); err != nil {
		s.logger.Warn("Failed to invalidate stock cache", zap.Error(err))
	}
}

// pendingInstance builds a PENDING unit from a line item, converting the
// cost into tenant currency when the document carries an exchange rate.
func pendingInstance(item LineItem, rate decimal.Decimal) *models.Instance {
	inst := &models.Instance{
		ProductID: item.ProductID,
		Status:    models.InstanceStatusPending,
		Condition: models.ConditionNew,
	}
	inst.UnitCost, inst.OriginalCost = convertCost(item.Cost, rate)
	if serial := strings.TrimSpace(item.Serial); serial != "" {
		inst.Serial = &serial
	}
	return inst
}

// convertCost applies the document exchange rate. When the rate is 1 the
// cost is already in tenant currency and no original cost is kept.
func convertCost(cost, rate decimal.Decimal) (decimal.Decimal, decimal.NullDecimal) {
	if rate.Equal(decimal.NewFromInt(1)) {
		return cost, decimal.NullDecimal{}
	}
	return cost.Mul(rate), decimal.NullDecimal{Decimal: cost, Valid: true}
}

func normalizeExchangeRate(rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	if rate.IsNegative() {
		return decimal.Zero, &models.ValidationError{Field: "exchange_rate", Reason: "must be positive"}
	}
	return rate, nil
}

func newBaseEvent(eventType string, tenantID int64) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		TenantID:  tenantID,
		Timestamp: time.Now(),
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
