// Package tracking emits training run records to an external experiment
// tracking service. The engine treats the sink as fire-and-forget: a failed
// emit is logged and dropped, never surfaced to the caller.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/retainly/retainly/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Run is one experiment record.
type Run struct {
	RunID        string             `json:"run_id"`
	Params       map[string]any     `json:"params"`
	Metrics      map[string]float64 `json:"metrics"`
	ArtifactRefs []string           `json:"artifact_refs"`
}

type Client struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Client {
	return &Client{
		endpoint: cfg.Tracking.Endpoint,
		client:   &http.Client{Timeout: cfg.Tracking.Timeout},
		log:      log.Named("tracking"),
	}
}

// LogRun posts the run asynchronously. No-op when no endpoint is configured.
func (c *Client) LogRun(ctx context.Context, run Run) {
	if c == nil || c.endpoint == "" {
		return
	}
	_ = ctx // the emit outlives the triggering request on purpose

	go func() {
		body, err := json.Marshal(run)
		if err != nil {
			c.log.Warn("marshal tracking run", zap.Error(err))
			return
		}
		resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
		if err != nil {
			c.log.Warn("emit tracking run",
				zap.String("run_id", run.RunID),
				zap.Error(err),
			)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			c.log.Warn("tracking sink rejected run",
				zap.String("run_id", run.RunID),
				zap.Int("status", resp.StatusCode),
			)
		}
	}()
}

// Module wires the experiment tracking client.
var Module = fx.Module("tracking",
	fx.Provide(New),
)
