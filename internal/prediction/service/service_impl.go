package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/retainly/retainly/internal/clock"
	"github.com/retainly/retainly/internal/config"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	featuredomain "github.com/retainly/retainly/internal/feature/domain"
	"github.com/retainly/retainly/internal/metrics"
	modeldomain "github.com/retainly/retainly/internal/model/domain"
	"github.com/retainly/retainly/internal/model/registry"
	"github.com/retainly/retainly/internal/prediction/cache"
	"github.com/retainly/retainly/internal/prediction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	Registry *registry.Registry
	Features featuredomain.Service
	Store    featuredomain.Store
	Repo     customerdomain.Repository
	Cache    cache.Cache
	Metrics  *metrics.Metrics `optional:"true"`
}

type service struct {
	cfg      config.Config
	log      *zap.Logger
	clock    clock.Clock
	registry *registry.Registry
	features featuredomain.Service
	store    featuredomain.Store
	repo     customerdomain.Repository
	cache    cache.Cache
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &service{
		cfg:      p.Cfg,
		log:      p.Log.Named("prediction.service"),
		clock:    p.Clock,
		registry: p.Registry,
		features: p.Features,
		store:    p.Store,
		repo:     p.Repo,
		cache:    p.Cache,
		metrics:  p.Metrics,
	}
}

func (s *service) PredictChurn(ctx context.Context, customerID snowflake.ID) (domain.ChurnPrediction, error) {
	handle, ok := s.registry.ActiveChurn()
	if !ok {
		return domain.ChurnPrediction{}, modeldomain.ErrModelUnavailable
	}

	key := cache.Key("churn", handle.Version, customerID)
	if payload, hit := s.cache.Get(ctx, key); hit {
		var pred domain.ChurnPrediction
		if err := json.Unmarshal(payload, &pred); err == nil {
			pred.Cached = true
			s.countCacheHit("churn")
			return pred, nil
		}
		s.log.Warn("corrupt cache entry dropped", zap.String("key", key))
	}
	s.countCacheMiss("churn")

	rec, err := s.featureRecord(ctx, customerID, handle.SchemaVersion)
	if err != nil {
		s.countPrediction("churn", "error")
		return domain.ChurnPrediction{}, err
	}

	prob := handle.Classifier.PredictProba(modeldomain.ClassifierVector(*rec))
	pred := domain.ChurnPrediction{
		CustomerID:   customerID,
		Probability:  prob,
		RiskTier:     s.riskTier(prob),
		ModelVersion: handle.Version,
		FeatureDate:  rec.FeatureDate,
	}
	s.cachePut(ctx, key, pred)
	s.countPrediction("churn", "ok")
	return pred, nil
}

func (s *service) PredictCLV(ctx context.Context, customerID snowflake.ID) (domain.CLVPrediction, error) {
	handle, ok := s.registry.ActiveCLV()
	if !ok {
		return domain.CLVPrediction{}, modeldomain.ErrModelUnavailable
	}

	key := cache.Key("clv", handle.Version, customerID)
	if payload, hit := s.cache.Get(ctx, key); hit {
		var pred domain.CLVPrediction
		if err := json.Unmarshal(payload, &pred); err == nil {
			pred.Cached = true
			s.countCacheHit("clv")
			return pred, nil
		}
		s.log.Warn("corrupt cache entry dropped", zap.String("key", key))
	}
	s.countCacheMiss("clv")

	rec, err := s.featureRecord(ctx, customerID, handle.SchemaVersion)
	if err != nil {
		s.countPrediction("clv", "error")
		return domain.CLVPrediction{}, err
	}

	value := handle.Regressor.Predict(modeldomain.RegressorVector(*rec))
	if value < 0 {
		value = 0
	}
	pred := domain.CLVPrediction{
		CustomerID:     customerID,
		PredictedValue: value,
		Segment:        s.valueSegment(value),
		ModelVersion:   handle.Version,
		FeatureDate:    rec.FeatureDate,
	}
	s.cachePut(ctx, key, pred)
	s.countPrediction("clv", "ok")
	return pred, nil
}

// PredictChurnBatch fans out over the ids with bounded concurrency. Failures
// are per-item, including a missing active model; the batch itself succeeds.
func (s *service) PredictChurnBatch(ctx context.Context, customerIDs []snowflake.ID) ([]domain.ChurnBatchItem, error) {
	items := make([]domain.ChurnBatchItem, len(customerIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, id := range customerIDs {
		g.Go(func() error {
			pred, err := s.PredictChurn(gctx, id)
			if err != nil {
				items[i] = domain.ChurnBatchItem{CustomerID: id, Err: err}
				return nil
			}
			items[i] = domain.ChurnBatchItem{CustomerID: id, Prediction: &pred}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *service) PredictCLVBatch(ctx context.Context, customerIDs []snowflake.ID) ([]domain.CLVBatchItem, error) {
	items := make([]domain.CLVBatchItem, len(customerIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, id := range customerIDs {
		g.Go(func() error {
			pred, err := s.PredictCLV(gctx, id)
			if err != nil {
				items[i] = domain.CLVBatchItem{CustomerID: id, Err: err}
				return nil
			}
			items[i] = domain.CLVBatchItem{CustomerID: id, Prediction: &pred}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// featureRecord loads the customer's latest feature record, computing one on
// demand when the store has none or the stored record predates the serving
// model's feature schema.
func (s *service) featureRecord(ctx context.Context, customerID snowflake.ID, wantSchema int) (*featuredomain.Record, error) {
	now := s.clock.Now()

	rec, err := s.store.Latest(ctx, customerID, now)
	if err != nil {
		return nil, err
	}
	if rec != nil && rec.SchemaVersion == wantSchema {
		return rec, nil
	}

	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, customerdomain.ErrNotFound
	}

	computed, err := s.features.Compute(ctx, customerID, now, 0)
	if err != nil {
		return nil, err
	}
	if computed.SchemaVersion != wantSchema {
		return nil, modeldomain.ErrSchemaMismatch
	}
	if err := s.store.Append(ctx, computed); err != nil && !errors.Is(err, featuredomain.ErrConflict) {
		return nil, err
	}
	return &computed, nil
}

// Thresholds are exclusive: a probability exactly at a boundary falls into
// the lower tier.
func (s *service) riskTier(prob float64) string {
	switch {
	case prob > s.cfg.Serving.RiskHighThreshold:
		return domain.RiskHigh
	case prob > s.cfg.Serving.RiskMediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func (s *service) valueSegment(value float64) string {
	switch {
	case value > s.cfg.Serving.CLVHighThreshold:
		return domain.SegmentHigh
	case value > s.cfg.Serving.CLVMediumThreshold:
		return domain.SegmentMedium
	default:
		return domain.SegmentLow
	}
}

func (s *service) concurrency() int {
	if s.cfg.Serving.BatchConcurrency > 0 {
		return s.cfg.Serving.BatchConcurrency
	}
	return 1
}

func (s *service) cachePut(ctx context.Context, key string, pred any) {
	payload, err := json.Marshal(pred)
	if err != nil {
		s.log.Warn("marshal prediction for cache", zap.Error(err))
		return
	}
	s.cache.Set(ctx, key, payload, s.cfg.Cache.PredictionTTL)
}

func (s *service) countPrediction(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.IncPrediction(kind, outcome)
	}
}

func (s *service) countCacheHit(kind string) {
	if s.metrics != nil {
		s.metrics.IncCacheHit(kind)
	}
}

func (s *service) countCacheMiss(kind string) {
	if s.metrics != nil {
		s.metrics.IncCacheMiss(kind)
	}
}
