package service

import (
	"context"
	"errors"

	"inventory-ledger/internal/models"
)

// IdentityVerifier resolves operator PINs to verified identities. The ledger
// depends on this capability but callers may back it with any directory.
type IdentityVerifier interface {
	// VerifyOperator checks that the PIN belongs to the given operator and
	// returns the operator's current display name.
	VerifyOperator(ctx context.Context, tenantID, operatorID int64, pin string) (string, error)

	// IdentifyByPin finds the operator holding the PIN, or models.ErrNotFound.
	IdentifyByPin(ctx context.Context, tenantID int64, pin string) (*models.Operator, error)
}

// OperatorStore is the slice of the store the directory needs
type OperatorStore interface {
	GetOperator(ctx context.Context, tenantID, id int64) (*models.Operator, error)
	GetOperatorByPIN(ctx context.Context, tenantID int64, pin string) (*models.Operator, error)
}

// OperatorDirectory is the store-backed IdentityVerifier
type OperatorDirectory struct {
	store OperatorStore
}

// NewOperatorDirectory creates a store-backed identity verifier
func NewOperatorDirectory(store OperatorStore) *OperatorDirectory {
	return &OperatorDirectory{store: store}
}

// VerifyOperator checks PIN ownership for a known operator
func (d *OperatorDirectory) VerifyOperator(ctx context.Context, tenantID, operatorID int64, pin string) (string, error) {
	op, err := d.store.GetOperator(ctx, tenantID, operatorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidSignature
		}
		return "", err
	}
	if op.PIN != pin {
		return "", models.ErrInvalidSignature
	}
	return op.Name, nil
}

// IdentifyByPin finds an operator by PIN alone
func (d *OperatorDirectory) IdentifyByPin(ctx context.Context, tenantID int64, pin string) (*models.Operator, error) {
	return d.store.GetOperatorByPIN(ctx, tenantID, pin)
}
