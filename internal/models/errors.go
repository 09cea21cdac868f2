package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced verbatim to callers
var (
	// ErrNotFound covers both missing records and cross-tenant ownership
	// mismatches, so callers cannot probe for another tenant's data.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned when no tenant can be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNumberingExhausted is returned after reception-number allocation
	// keeps colliding past its retry budget.
	ErrNumberingExhausted = errors.New("reception numbering exhausted")

	// ErrInvalidSignature is returned when no signer matches the given PIN.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInsufficientPrivilege is returned when the matched user lacks the
	// admin privilege required to sign adjustments.
	ErrInsufficientPrivilege = errors.New("insufficient privilege")

	// ErrPurchaseHasSales blocks deletion of a purchase whose units have
	// already been sold, preserving stock provenance.
	ErrPurchaseHasSales = errors.New("purchase has sold units")
)

// ValidationError reports a missing or malformed field. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// DuplicateSerialError rejects a batch wholesale, listing the serials that
// are already active in the tenant's stock.
type DuplicateSerialError struct {
	Serials []string
}

func (e *DuplicateSerialError) Error() string {
	return fmt.Sprintf("duplicate serials: %s", strings.Join(e.Serials, ", "))
}

// InsufficientStockError reports available-vs-requested counts for a removal
// that could not be fulfilled. No partial fulfillment is ever performed.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available=%d, requested=%d",
		e.ProductID, e.Available, e.Requested)
}
