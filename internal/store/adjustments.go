package store

import (
	"context"
	"database/sql"
	"fmt"

	"inventory-ledger/internal/models"

	"github.com/jmoiron/sqlx"
)

func insertAdjustmentTx(ctx context.Context, tx *sqlx.Tx, adj *models.StockAdjustment) error {
	err := tx.GetContext(ctx, adj, `
		INSERT INTO stock_adjustments (tenant_id, product_id, quantity, reason, category,
			signer_user_id, signer_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		adj.TenantID, adj.ProductID, adj.Quantity, adj.Reason, adj.Category,
		adj.SignerUserID, adj.SignerName)
	if err != nil {
		return fmt.Errorf("failed to insert adjustment: %w", err)
	}
	return nil
}

// GetAdjustment retrieves a tenant's adjustment by ID
func (s *Store) GetAdjustment(ctx context.Context, tenantID, id int64) (*models.StockAdjustment, error) {
	var adj models.StockAdjustment
	err := s.db.GetContext(ctx, &adj,
		"SELECT * FROM stock_adjustments WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &adj, nil
}

// GetAdjustmentInstances retrieves the units created or consumed by an adjustment
func (s *Store) GetAdjustmentInstances(ctx context.Context, adjustmentID int64) ([]models.Instance, error) {
	var instances []models.Instance
	err := s.db.SelectContext(ctx, &instances,
		"SELECT * FROM instances WHERE adjustment_id = $1 ORDER BY id", adjustmentID)
	return instances, err
}
