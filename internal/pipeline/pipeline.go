// Package pipeline coordinates the batch jobs that feed the engine: the
// feature ETL and model training. It owns the ETL watermark and serializes
// training runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/retainly/retainly/internal/clock"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	featuredomain "github.com/retainly/retainly/internal/feature/domain"
	"github.com/retainly/retainly/internal/metrics"
	modeldomain "github.com/retainly/retainly/internal/model/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTrainingInProgress rejects a training run while another one is active.
var ErrTrainingInProgress = errors.New("training_in_progress")

const etlWatermarkName = "feature_etl"

// Watermark records how far a named job has progressed. The ETL watermark
// advances only after a fully successful run, so a failed run is retried
// from the same point.
type Watermark struct {
	Name      string    `gorm:"primaryKey" json:"name"`
	LastRunAt time.Time `json:"last_run_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Watermark) TableName() string {
	return "pipeline_watermarks"
}

// ETLReport summarizes one feature ETL run.
type ETLReport struct {
	Since      time.Time `json:"since"`
	AsOf       time.Time `json:"as_of"`
	Candidates int       `json:"candidates"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
	Advanced   bool      `json:"watermark_advanced"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     customerdomain.Repository
	Features featuredomain.Service
	Store    featuredomain.Store
	Trainer  modeldomain.Trainer
	Metrics  *metrics.Metrics `optional:"true"`
}

// Orchestrator runs the ETL and training jobs. Training is serialized with
// a try-lock; concurrent requests are rejected rather than queued.
type Orchestrator struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     customerdomain.Repository
	features featuredomain.Service
	store    featuredomain.Store
	trainer  modeldomain.Trainer
	metrics  *metrics.Metrics

	training atomic.Bool
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		db:       p.DB,
		log:      p.Log.Named("pipeline"),
		clock:    p.Clock,
		repo:     p.Repo,
		features: p.Features,
		store:    p.Store,
		trainer:  p.Trainer,
		metrics:  p.Metrics,
	}
}

// RunETL computes and appends feature records for every customer with
// activity since the watermark. full forces a run over all customers.
// Per-customer failures are counted, logged and leave the watermark in
// place; they never abort the remaining customers.
func (o *Orchestrator) RunETL(ctx context.Context, full bool) (ETLReport, error) {
	asOf := o.clock.Now()

	var since time.Time
	if !full {
		mark, err := o.loadWatermark(ctx)
		if err != nil {
			return ETLReport{}, err
		}
		since = mark
	}

	ids, err := o.repo.CustomersWithActivitySince(ctx, since)
	if err != nil {
		return ETLReport{}, fmt.Errorf("list active customers: %w", err)
	}
	report := ETLReport{Since: since, AsOf: asOf, Candidates: len(ids)}
	if len(ids) == 0 {
		o.log.Info("etl found no active customers", zap.Time("since", since))
		return report, nil
	}

	items, err := o.features.ComputeBatch(ctx, ids, asOf)
	if err != nil {
		return ETLReport{}, err
	}
	for _, item := range items {
		if item.Err != nil {
			report.Failed++
			o.log.Warn("feature computation failed",
				zap.Int64("customer_id", int64(item.CustomerID)),
				zap.Error(item.Err),
			)
			continue
		}
		if err := o.store.Append(ctx, *item.Record); err != nil {
			report.Failed++
			o.log.Warn("feature append failed",
				zap.Int64("customer_id", int64(item.CustomerID)),
				zap.Error(err),
			)
			continue
		}
		report.Processed++
	}

	if o.metrics != nil {
		o.metrics.AddETLRecords(report.Processed)
	}
	if report.Failed == 0 {
		if err := o.saveWatermark(ctx, asOf); err != nil {
			return report, err
		}
		report.Advanced = true
	}
	o.log.Info("etl run finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Bool("watermark_advanced", report.Advanced),
	)
	return report, nil
}

// RunTraining delegates to the trainer, rejecting overlap. A failed run
// leaves the previously active models serving.
func (o *Orchestrator) RunTraining(ctx context.Context) (modeldomain.TrainingReport, error) {
	if !o.training.CompareAndSwap(false, true) {
		return modeldomain.TrainingReport{}, ErrTrainingInProgress
	}
	defer o.training.Store(false)

	return o.trainer.Train(ctx)
}

func (o *Orchestrator) loadWatermark(ctx context.Context) (time.Time, error) {
	var mark Watermark
	err := o.db.WithContext(ctx).Where("name = ?", etlWatermarkName).First(&mark).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("load etl watermark: %w", err)
	}
	return mark.LastRunAt, nil
}

func (o *Orchestrator) saveWatermark(ctx context.Context, at time.Time) error {
	mark := Watermark{Name: etlWatermarkName, LastRunAt: at}
	err := o.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_run_at", "updated_at"}),
	}).Create(&mark).Error
	if err != nil {
		return fmt.Errorf("advance etl watermark: %w", err)
	}
	return nil
}

// Module wires the pipeline orchestrator.
var Module = fx.Module("pipeline.service",
	fx.Provide(New),
)
