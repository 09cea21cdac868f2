package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"
	"inventory-ledger/internal/util"

	"go.uber.org/zap"
)

// ReceptionSequencer reads the highest sequence already allocated for a
// month prefix.
type ReceptionSequencer interface {
	MaxReceptionSequence(ctx context.Context, prefix string) (int, error)
}

// ReceptionNumberAllocator derives reception numbers optimistically:
// compute the next number from the live maximum, attempt the insert, and
// re-derive on a uniqueness collision. No external locking is assumed.
type ReceptionNumberAllocator struct {
	seq         ReceptionSequencer
	maxAttempts int
	now         func() time.Time
	logger      *zap.Logger
}

// NewReceptionNumberAllocator creates an allocator with the given retry budget
func NewReceptionNumberAllocator(seq ReceptionSequencer, maxAttempts int) *ReceptionNumberAllocator {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &ReceptionNumberAllocator{
		seq:         seq,
		maxAttempts: maxAttempts,
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

// receptionPrefix returns the YYMM prefix for the allocation month
func receptionPrefix(t time.Time) string {
	return t.Format("0601")
}

// formatReceptionNumber renders a month prefix and sequence as a reception
// number, e.g. prefix "2501" and sequence 1 become "25010001".
func formatReceptionNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// Allocate derives the next reception number and hands it to insert. When
// insert reports a reception-number collision the number is re-derived and
// the insert retried, up to the allocator's budget; the first computed number
// is never assumed final. Returns the number the insert succeeded with.
func (a *ReceptionNumberAllocator) Allocate(ctx context.Context, insert func(number string) error) (string, error) {
	prefix := receptionPrefix(a.now())

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		max, err := a.seq.MaxReceptionSequence(ctx, prefix)
		if err != nil {
			return "", fmt.Errorf("failed to read reception sequence: %w", err)
		}

		number := formatReceptionNumber(prefix, max+1)
		err = insert(number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, store.ErrReceptionNumberTaken) {
			return "", err
		}

		util.NumberingRetriesTotal.Inc()
		a.logger.Warn("Reception number collision, retrying",
			zap.String("number", number),
			zap.Int("attempt", attempt))
	}

	return "", models.ErrNumberingExhausted
}
