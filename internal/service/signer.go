package service

import (
	"context"
	"errors"

	"inventory-ledger/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// Signer kinds
const (
	SignerKindAdmin    = "ADMIN"
	SignerKindOperator = "OPERATOR"
)

// Signer is the verified human attributed to a stock mutation
type Signer struct {
	Kind   string
	UserID int64
	Name   string
}

// SignerStore is the slice of the store the admin resolvers need
type SignerStore interface {
	GetUserByPIN(ctx context.Context, tenantID int64, pin string) (*models.User, error)
	GetUsersWithPINHash(ctx context.Context, tenantID int64) ([]models.User, error)
}

// SignerResolver attempts to resolve a PIN to a signer. Returning (nil, nil)
// means no match and lets the chain continue; any error stops it.
type SignerResolver interface {
	Resolve(ctx context.Context, tenantID int64, pin string) (*Signer, error)
}

// SignerChain tries its resolvers in order; the first match wins. No match
// at the end of the chain is an invalid signature.
type SignerChain struct {
	resolvers []SignerResolver
}

// NewSignerChain builds the canonical resolution order: admin by plaintext
// PIN, admin by hashed PIN (legacy), then field operator via the identity
// verifier.
func NewSignerChain(store SignerStore, verifier IdentityVerifier) *SignerChain {
	return &SignerChain{resolvers: []SignerResolver{
		&adminPlainResolver{store: store},
		&adminHashResolver{store: store},
		&operatorResolver{verifier: verifier},
	}}
}

// Resolve walks the chain and returns the first matching signer
func (c *SignerChain) Resolve(ctx context.Context, tenantID int64, pin string) (*Signer, error) {
	if pin == "" {
		return nil, models.ErrInvalidSignature
	}
	for _, r := range c.resolvers {
		signer, err := r.Resolve(ctx, tenantID, pin)
		if err != nil {
			return nil, err
		}
		if signer != nil {
			return signer, nil
		}
	}
	return nil, models.ErrInvalidSignature
}

// adminPlainResolver matches a user whose stored PIN equals the input exactly
type adminPlainResolver struct {
	store SignerStore
}

func (r *adminPlainResolver) Resolve(ctx context.Context, tenantID int64, pin string) (*Signer, error) {
	user, err := r.store.GetUserByPIN(ctx, tenantID, pin)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return adminSigner(user)
}

// adminHashResolver matches users migrated off plaintext PINs through a slow
// bcrypt comparison. Legacy-compatibility path.
type adminHashResolver struct {
	store SignerStore
}

func (r *adminHashResolver) Resolve(ctx context.Context, tenantID int64, pin string) (*Signer, error) {
	users, err := r.store.GetUsersWithPINHash(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range users {
		user := &users[i]
		if user.PINHash == nil {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(*user.PINHash), []byte(pin)) == nil {
			return adminSigner(user)
		}
	}
	return nil, nil
}

// adminSigner enforces the privilege gate on a matched user: a matched user
// without admin privilege fails outright rather than falling through to the
// operator path.
func adminSigner(user *models.User) (*Signer, error) {
	if !user.IsAdmin {
		return nil, models.ErrInsufficientPrivilege
	}
	return &Signer{Kind: SignerKindAdmin, UserID: user.ID, Name: user.Name}, nil
}

// operatorResolver matches field operators by PIN. Possession of a valid
// operator PIN is treated as sufficient authorization for physical stock
// handling, so no further privilege check applies.
type operatorResolver struct {
	verifier IdentityVerifier
}

func (r *operatorResolver) Resolve(ctx context.Context, tenantID int64, pin string) (*Signer, error) {
	op, err := r.verifier.IdentifyByPin(ctx, tenantID, pin)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Signer{Kind: SignerKindOperator, UserID: op.ID, Name: op.Name}, nil
}
