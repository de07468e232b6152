package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service scores customers with the active models. Predictions are cached
// per model version; feature records are computed on demand when the store
// has none for the customer.
type Service interface {
	PredictChurn(ctx context.Context, customerID snowflake.ID) (ChurnPrediction, error)
	PredictChurnBatch(ctx context.Context, customerIDs []snowflake.ID) ([]ChurnBatchItem, error)
	PredictCLV(ctx context.Context, customerID snowflake.ID) (CLVPrediction, error)
	PredictCLVBatch(ctx context.Context, customerIDs []snowflake.ID) ([]CLVBatchItem, error)
}
