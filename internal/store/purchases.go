package store

import (
	"context"
	"database/sql"
	"fmt"

	"inventory-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// MaxReceptionSequence returns the highest sequence already allocated for the
// given YYMM prefix, 0 when the month is empty. The number space is global
// across tenants; the source schema keys uniqueness on the bare column and
// downstream documents depend on that, so no tenant filter is applied here.
func (s *Store) MaxReceptionSequence(ctx context.Context, prefix string) (int, error) {
	var max int
	err := s.db.GetContext(ctx, &max, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(reception_number FROM 5) AS INTEGER)), 0)
		FROM purchases
		WHERE reception_number LIKE $1 || '%'`, prefix)
	return max, err
}

// CreatePurchase persists a receiving document and its pending units in one
// transaction. A reception-number collision surfaces as
// ErrReceptionNumberTaken so the allocator can re-derive and retry; a serial
// collision that slipped past the pre-check surfaces as DuplicateSerialError.
func (s *Store) CreatePurchase(ctx context.Context, purchase *models.Purchase, instances []*models.Instance) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, purchase, `
		INSERT INTO purchases (tenant_id, supplier_id, currency, exchange_rate, total_cost,
			status, reception_number, attendant, operator_id, operator_name, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		purchase.TenantID, purchase.SupplierID, purchase.Currency, purchase.ExchangeRate,
		purchase.TotalCost, purchase.Status, purchase.ReceptionNumber, purchase.Attendant,
		purchase.OperatorID, purchase.OperatorName, purchase.Notes)
	if err != nil {
		if uniqueViolation(err) == constraintReceptionNumber {
			return ErrReceptionNumberTaken
		}
		return fmt.Errorf("failed to insert purchase: %w", err)
	}

	for _, inst := range instances {
		inst.PurchaseID = &purchase.ID
		if err := insertInstanceTx(ctx, tx, inst); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPurchase retrieves a tenant's purchase by ID
func (s *Store) GetPurchase(ctx context.Context, tenantID, id int64) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.GetContext(ctx, &purchase,
		"SELECT * FROM purchases WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// InstanceUpdate carries an in-place edit of a unit still owned by a draft
type InstanceUpdate struct {
	ID           int64
	Serial       *string
	UnitCost     decimal.Decimal
	OriginalCost decimal.NullDecimal
}

// UpdatePurchase applies a document edit atomically: header fields, in-place
// unit edits, newly added pending units, recomputed total, status reset to
// DRAFT. An edit referencing a unit no longer owned by the document fails the
// whole transaction with ErrNotFound.
func (s *Store) UpdatePurchase(ctx context.Context, purchase *models.Purchase, updates []InstanceUpdate, added []*models.Instance) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE purchases
		SET supplier_id = $1, currency = $2, exchange_rate = $3, status = $4
		WHERE id = $5 AND tenant_id = $6`,
		purchase.SupplierID, purchase.Currency, purchase.ExchangeRate,
		models.PurchaseStatusDraft, purchase.ID, purchase.TenantID)
	if err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}

	for _, upd := range updates {
		res, err := tx.ExecContext(ctx, `
			UPDATE instances
			SET serial = $1, unit_cost = $2, original_cost = $3, updated_at = NOW()
			WHERE id = $4 AND purchase_id = $5`,
			upd.Serial, upd.UnitCost, upd.OriginalCost, upd.ID, purchase.ID)
		if err != nil {
			if uniqueViolation(err) == constraintActiveSerial {
				return &models.DuplicateSerialError{Serials: []string{derefSerial(upd.Serial)}}
			}
			return fmt.Errorf("failed to update instance %d: %w", upd.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrNotFound
		}
	}

	for _, inst := range added {
		inst.PurchaseID = &purchase.ID
		if err := insertInstanceTx(ctx, tx, inst); err != nil {
			return err
		}
	}

	if err := tx.GetContext(ctx, &purchase.TotalCost, `
		SELECT COALESCE(SUM(unit_cost), 0) FROM instances WHERE purchase_id = $1`,
		purchase.ID); err != nil {
		return fmt.Errorf("failed to recompute total: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE purchases SET total_cost = $1 WHERE id = $2",
		purchase.TotalCost, purchase.ID); err != nil {
		return fmt.Errorf("failed to store total: %w", err)
	}

	purchase.Status = models.PurchaseStatusDraft
	return tx.Commit()
}

// ConfirmPurchase marks the document CONFIRMED and flips its PENDING units to
// IN_STOCK in the same transaction. Units already IN_STOCK are untouched, so
// confirming twice is a no-op on them. Returns the product IDs whose stock
// changed.
func (s *Store) ConfirmPurchase(ctx context.Context, tenantID, purchaseID int64) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE purchases SET status = $1 WHERE id = $2 AND tenant_id = $3`,
		models.PurchaseStatusConfirmed, purchaseID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm purchase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrNotFound
	}

	var productIDs []int64
	if err := tx.SelectContext(ctx, &productIDs, `
		UPDATE instances SET status = $1, updated_at = NOW()
		WHERE purchase_id = $2 AND status = $3
		RETURNING product_id`,
		models.InstanceStatusInStock, purchaseID, models.InstanceStatusPending); err != nil {
		return nil, fmt.Errorf("failed to flip units in stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return productIDs, nil
}

// DeletePurchase removes the document and all of its units in one
// transaction. Deletion is refused when any owned unit has been sold, since
// that would destroy the provenance of disposed stock.
func (s *Store) DeletePurchase(ctx context.Context, tenantID, purchaseID int64) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var owned bool
	err = tx.GetContext(ctx, &owned,
		"SELECT EXISTS(SELECT 1 FROM purchases WHERE id = $1 AND tenant_id = $2 FOR UPDATE)",
		purchaseID, tenantID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, models.ErrNotFound
	}

	var soldCount int
	err = tx.GetContext(ctx, &soldCount,
		"SELECT COUNT(*) FROM instances WHERE purchase_id = $1 AND status = $2",
		purchaseID, models.InstanceStatusSold)
	if err != nil {
		return nil, err
	}
	if soldCount > 0 {
		return nil, models.ErrPurchaseHasSales
	}

	var productIDs []int64
	if err := tx.SelectContext(ctx, &productIDs,
		"DELETE FROM instances WHERE purchase_id = $1 RETURNING product_id",
		purchaseID); err != nil {
		return nil, fmt.Errorf("failed to delete instances: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM purchases WHERE id = $1", purchaseID); err != nil {
		return nil, fmt.Errorf("failed to delete purchase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return productIDs, nil
}

func derefSerial(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
