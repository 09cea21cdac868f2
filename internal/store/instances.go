package store

import (
	"context"
	"fmt"

	"inventory-ledger/internal/models"

	"github.com/jmoiron/sqlx"
)

// insertInstanceTx validates the provenance invariants and inserts a unit
// inside an open transaction.
func insertInstanceTx(ctx context.Context, tx *sqlx.Tx, inst *models.Instance) error {
	if err := inst.Validate(); err != nil {
		return err
	}

	err := tx.GetContext(ctx, inst, `
		INSERT INTO instances (product_id, purchase_id, adjustment_id, sale_id, serial,
			status, condition, unit_cost, original_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		inst.ProductID, inst.PurchaseID, inst.AdjustmentID, inst.SaleID, inst.Serial,
		inst.Status, inst.Condition, inst.UnitCost, inst.OriginalCost)
	if err != nil {
		if uniqueViolation(err) == constraintActiveSerial {
			return &models.DuplicateSerialError{Serials: []string{derefSerial(inst.Serial)}}
		}
		return fmt.Errorf("failed to insert instance: %w", err)
	}
	return nil
}

// FindActiveSerials returns the subset of serials already attached to a
// PENDING or IN_STOCK unit of one of the tenant's products.
func (s *Store) FindActiveSerials(ctx context.Context, tenantID int64, serials []string) ([]string, error) {
	if len(serials) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT i.serial
		FROM instances i
		JOIN products p ON p.id = i.product_id
		WHERE p.tenant_id = ? AND i.serial IN (?) AND i.status IN (?)`,
		tenantID, serials, models.ActiveInstanceStatuses)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var found []string
	err = s.db.SelectContext(ctx, &found, query, args...)
	return found, err
}

// GetInstancesByPurchase retrieves all units owned by a receiving document
func (s *Store) GetInstancesByPurchase(ctx context.Context, purchaseID int64) ([]models.Instance, error) {
	var instances []models.Instance
	err := s.db.SelectContext(ctx, &instances,
		"SELECT * FROM instances WHERE purchase_id = $1 ORDER BY id", purchaseID)
	return instances, err
}

// CountInStock returns the number of sellable units for a tenant's product
func (s *Store) CountInStock(ctx context.Context, tenantID, productID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM instances i
		JOIN products p ON p.id = i.product_id
		WHERE p.tenant_id = $1 AND i.product_id = $2 AND i.status = $3`,
		tenantID, productID, models.InstanceStatusInStock)
	return count, err
}

// AddAdjustmentInstances records an addition adjustment and creates its units
// as live stock in one transaction. All units reference the adjustment as
// their creating provenance.
func (s *Store) AddAdjustmentInstances(ctx context.Context, adj *models.StockAdjustment, instances []*models.Instance) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertAdjustmentTx(ctx, tx, adj); err != nil {
		return err
	}

	for _, inst := range instances {
		inst.AdjustmentID = &adj.ID
		if err := insertInstanceTx(ctx, tx, inst); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RemoveOldestInStock records a removal adjustment and consumes the oldest
// IN_STOCK units of the product, oldest-created first. The candidate rows are
// locked with FOR UPDATE so two concurrent removals cannot consume the same
// units. When fewer units exist than requested, nothing is written and an
// InsufficientStockError reports available-vs-requested.
func (s *Store) RemoveOldestInStock(ctx context.Context, adj *models.StockAdjustment, count int) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var candidates []int64
	err = tx.SelectContext(ctx, &candidates, `
		SELECT id FROM instances
		WHERE product_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3
		FOR UPDATE`,
		adj.ProductID, models.InstanceStatusInStock, count)
	if err != nil {
		return nil, fmt.Errorf("failed to lock candidate units: %w", err)
	}

	if len(candidates) < count {
		return nil, &models.InsufficientStockError{
			ProductID: adj.ProductID,
			Available: len(candidates),
			Requested: count,
		}
	}

	if err := insertAdjustmentTx(ctx, tx, adj); err != nil {
		return nil, err
	}

	query, args, err := sqlx.In(`
		UPDATE instances
		SET status = ?, adjustment_id = ?, updated_at = NOW()
		WHERE id IN (?)`,
		models.InstanceStatusAdjustment, adj.ID, candidates)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to consume units: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return candidates, nil
}
