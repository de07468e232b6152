package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository is the engine's read contract over the relational store.
// Customers, usage metrics and churn events are owned by upstream ingestion;
// the engine only reads them.
type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Customer, error)
	FindByIDs(ctx context.Context, ids []snowflake.ID) ([]Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Count(ctx context.Context) (int64, error)

	UsageBetween(ctx context.Context, customerID snowflake.ID, from, to time.Time) ([]UsageMetric, error)
	CustomersWithActivitySince(ctx context.Context, since time.Time) ([]snowflake.ID, error)

	ChurnEventFor(ctx context.Context, customerID snowflake.ID) (*ChurnEvent, error)
	ChurnEvents(ctx context.Context) ([]ChurnEvent, error)
}
