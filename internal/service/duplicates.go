package service

import (
	"context"
	"strings"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/util"
)

// SerialIndex looks up serials attached to active units of a tenant
type SerialIndex interface {
	FindActiveSerials(ctx context.Context, tenantID int64, serials []string) ([]string, error)
}

// DuplicateChecker reports serial numbers that are already active in a
// tenant's stock. Used as a hard pre-check before creating a receiving
// document and as a read-only lookup by intake adapters.
type DuplicateChecker struct {
	index SerialIndex
}

// NewDuplicateChecker creates a duplicate checker
func NewDuplicateChecker(index SerialIndex) *DuplicateChecker {
	return &DuplicateChecker{index: index}
}

// FilterCandidateSerials drops empty and bulk placeholder serials and
// deduplicates the remainder, preserving input order.
func FilterCandidateSerials(serials []string) []string {
	seen := make(map[string]struct{}, len(serials))
	out := make([]string, 0, len(serials))
	for _, serial := range serials {
		serial = strings.TrimSpace(serial)
		if models.IsPlaceholderSerial(serial) {
			continue
		}
		if _, ok := seen[serial]; ok {
			continue
		}
		seen[serial] = struct{}{}
		out = append(out, serial)
	}
	return out
}

// findBatchDuplicates returns the non-placeholder serials that appear more
// than once within the batch itself, preserving first-occurrence order.
func findBatchDuplicates(serials []string) []string {
	seen := make(map[string]int, len(serials))
	var out []string
	for _, serial := range serials {
		serial = strings.TrimSpace(serial)
		if models.IsPlaceholderSerial(serial) {
			continue
		}
		seen[serial]++
		if seen[serial] == 2 {
			out = append(out, serial)
		}
	}
	return out
}

// CheckDistinct rejects a batch whose own serials collide with each other.
// The active-serial index cannot back this up across products, so the batch
// must be internally distinct before any write.
func (c *DuplicateChecker) CheckDistinct(serials []string) error {
	if duplicates := findBatchDuplicates(serials); len(duplicates) > 0 {
		util.DuplicateSerialRejectionsTotal.Inc()
		return &models.DuplicateSerialError{Serials: duplicates}
	}
	return nil
}

// FindActiveDuplicates returns the subset of serials already attached to a
// PENDING or IN_STOCK unit of the tenant
func (c *DuplicateChecker) FindActiveDuplicates(ctx context.Context, tenantID int64, serials []string) ([]string, error) {
	candidates := FilterCandidateSerials(serials)
	if len(candidates) == 0 {
		return nil, nil
	}
	return c.index.FindActiveSerials(ctx, tenantID, candidates)
}

// Check rejects the whole batch when any serial collides, either with a unit
// already active in the tenant's stock or with another serial in the batch
func (c *DuplicateChecker) Check(ctx context.Context, tenantID int64, serials []string) error {
	if err := c.CheckDistinct(serials); err != nil {
		return err
	}
	duplicates, err := c.FindActiveDuplicates(ctx, tenantID, serials)
	if err != nil {
		return err
	}
	if len(duplicates) > 0 {
		util.DuplicateSerialRejectionsTotal.Inc()
		return &models.DuplicateSerialError{Serials: duplicates}
	}
	return nil
}
