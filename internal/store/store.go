// Package store provides the per-page counter store.
package store

import (
	"context"
	"errors"

	"github.com/fairyhunter13/page-stats-service/internal/model"
)

// Sentinel errors distinguishing expected store outcomes from connectivity
// failures. Anything not matching one of these is treated as the store being
// unavailable and the triggering message is requeued.
var (
	// ErrNotFound means no counter record exists for the page id.
	ErrNotFound = errors.New("page record not found")
	// ErrAlreadyExists means a create hit an existing record.
	ErrAlreadyExists = errors.New("page record already exists")
	// ErrConditionFailed means a decrement was rejected because the counter
	// is already at zero.
	ErrConditionFailed = errors.New("counter already at zero")
	// ErrUnknownCounter means the field has no counter (e.g. "page").
	ErrUnknownCounter = errors.New("field has no counter")
)

// Store is the counter store abstraction. All mutations are atomic
// conditional updates in the backing engine; callers never read-modify-write.
type Store interface {
	// Create inserts a zero-valued record. Returns ErrAlreadyExists when a
	// record for the page is present; existing counters are never reset.
	Create(ctx context.Context, pageID int64) error
	// Increment atomically adds 1 to the field's counter. Returns
	// ErrNotFound when no record exists; records are never created
	// implicitly.
	Increment(ctx context.Context, pageID int64, field model.Field) error
	// Decrement atomically subtracts 1 from the field's counter, guarded by
	// current value > 0. Returns ErrConditionFailed when the guard rejects,
	// ErrNotFound when no record exists.
	Decrement(ctx context.Context, pageID int64, field model.Field) error
	// Get returns the full counter record or ErrNotFound.
	Get(ctx context.Context, pageID int64) (model.Stats, error)
}
