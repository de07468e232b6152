// Package cache stores serialized prediction results keyed by model version
// and customer. Keys embed the model version, so activating a new model
// implicitly invalidates every entry of the old one.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/retainly/retainly/internal/config"
	"go.uber.org/zap"
)

// Cache is a TTL key-value store for prediction payloads.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Key builds the cache key for one prediction.
func Key(kind, modelVersion string, customerID snowflake.ID) string {
	return fmt.Sprintf("prediction:%s:%s:%d", kind, modelVersion, customerID)
}

// New selects the backend from configuration. Unknown backends fall back to
// the in-process cache with a warning.
func New(cfg config.Config, log *zap.Logger) Cache {
	switch cfg.Cache.Backend {
	case "redis":
		return NewRedis(cfg, log)
	case "memory", "":
		return NewMemory()
	default:
		log.Warn("unknown cache backend, using memory", zap.String("backend", cfg.Cache.Backend))
		return NewMemory()
	}
}
