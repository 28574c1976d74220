package repositories

import (
	"context"
	"fmt"

	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// maxUpdateRetries bounds the optimistic-locking loop.
const maxUpdateRetries = 3

/*
EntityWithVersion:

* `comparable`  → lets us compare against the zero value (nil pointer)
* the id + row_version accessors used by the retry loop
*/
type EntityWithVersion interface {
	comparable
	GetID() string
	GetRowVersion() int64
	SetRowVersion(int64)
}

type UpdateIfVersionFunc[T EntityWithVersion] func(
	ctx context.Context,
	entity T,
	expectedVersion int64,
) (pgconn.CommandTag, error)

type GetByIDFunc[T EntityWithVersion] func(
	ctx context.Context,
	id string,
) (T, error)

/*
WithRetry runs a read‑mutate‑update loop with optimistic locking. A mutate
error aborts the loop untouched, so callers can return their own AppErrors
from inside it. Exhausted retries surface utils.ErrRowVersionConflict.
*/
func WithRetry[T EntityWithVersion](
	ctx context.Context,
	maxRetries int,
	id string,
	getByID GetByIDFunc[T],
	updateIfVersion UpdateIfVersionFunc[T],
	mutate func(T) error,
) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		current, err := getByID(ctx, id)
		if err != nil {
			return err
		}

		var zero T
		if current == zero {
			return pgx.ErrNoRows
		}

		oldVersion := current.GetRowVersion()

		if err := mutate(current); err != nil {
			return err
		}

		tag, err := updateIfVersion(ctx, current, oldVersion)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			current.SetRowVersion(oldVersion + 1)
			return nil
		}
		// someone else updated first – retry
	}
	return fmt.Errorf("updating %q: %w", id, utils.ErrRowVersionConflict)
}
