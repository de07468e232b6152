package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service derives feature records from raw customer history.
type Service interface {
	// Compute builds a record for one customer as of the given date over
	// the trailing usage window. windowDays <= 0 uses the configured
	// default. A customer with zero usage rows yields zero-valued
	// usage-derived fields, not an error.
	Compute(ctx context.Context, customerID snowflake.ID, asOf time.Time, windowDays int) (Record, error)

	// ComputeBatch computes records for many customers; per-customer
	// failures are reported on the item, never as the call error.
	ComputeBatch(ctx context.Context, customerIDs []snowflake.ID, asOf time.Time) ([]BatchItem, error)
}

// Store is the versioned, append-only feature log.
type Store interface {
	// Append writes a record. Re-appending identical content for the same
	// (customer, date) is a no-op; different content is ErrConflict.
	Append(ctx context.Context, record Record) error

	// Latest returns the most recent record at or before asOf, or nil.
	Latest(ctx context.Context, customerID snowflake.ID, asOf time.Time) (*Record, error)

	// LatestPerCustomer returns the most recent record at or before asOf
	// for every customer that has one.
	LatestPerCustomer(ctx context.Context, asOf time.Time) ([]Record, error)

	// History returns records in [from, to] ordered by feature date.
	History(ctx context.Context, customerID snowflake.ID, from, to time.Time) ([]Record, error)
}
