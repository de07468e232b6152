package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/retainly/retainly/internal/clock"
	"github.com/retainly/retainly/internal/config"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	featuredomain "github.com/retainly/retainly/internal/feature/domain"
	"github.com/retainly/retainly/internal/metrics"
	"github.com/retainly/retainly/internal/model/domain"
	"github.com/retainly/retainly/internal/model/estimator"
	"github.com/retainly/retainly/internal/model/registry"
	"github.com/retainly/retainly/internal/tracking"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Store    featuredomain.Store
	Repo     customerdomain.Repository
	Registry *registry.Registry
	Tracker  *tracking.Client
	Metrics  *metrics.Metrics `optional:"true"`
}

type Trainer struct {
	cfg      config.TrainingConfig
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	store    featuredomain.Store
	repo     customerdomain.Repository
	registry *registry.Registry
	tracker  *tracking.Client
	metrics  *metrics.Metrics
}

func New(p Params) domain.Trainer {
	return &Trainer{
		cfg:      p.Cfg.Training,
		log:      p.Log.Named("model.trainer"),
		genID:    p.GenID,
		clock:    p.Clock,
		store:    p.Store,
		repo:     p.Repo,
		registry: p.Registry,
		tracker:  p.Tracker,
		metrics:  p.Metrics,
	}
}

// Train fits the churn classifier and the CLV regressor over the latest
// feature snapshot. The active artifacts are replaced only after both fits
// fully succeed; any failure leaves the previously active models serving.
func (t *Trainer) Train(ctx context.Context) (domain.TrainingReport, error) {
	start := t.clock.Now()

	records, err := t.snapshot(ctx, start)
	if err != nil {
		return domain.TrainingReport{}, err
	}

	labels, err := t.labels(ctx, records)
	if err != nil {
		return domain.TrainingReport{}, err
	}

	var positives, negatives int
	for _, label := range labels {
		if label == 1 {
			positives++
		} else {
			negatives++
		}
	}
	if positives < t.cfg.MinExamplesPerClass || negatives < t.cfg.MinExamplesPerClass {
		return domain.TrainingReport{}, fmt.Errorf(
			"%w: need at least %d examples per class, have %d churned / %d retained",
			domain.ErrTrainingPrecondition, t.cfg.MinExamplesPerClass, positives, negatives)
	}

	churnX := make([][]float64, len(records))
	for i, rec := range records {
		churnX[i] = domain.ClassifierVector(rec)
	}

	churnMetrics, classifier, algorithm, err := t.fitChurn(churnX, labels)
	if err != nil {
		return domain.TrainingReport{}, err
	}

	clvMetrics, regressor, err := t.fitCLV(ctx, records)
	if err != nil {
		return domain.TrainingReport{}, err
	}

	report := domain.TrainingReport{
		ChurnModel:  churnMetrics,
		CLVModel:    clvMetrics,
		Algorithm:   algorithm,
		TrainedAt:   start,
		SampleCount: len(records),
	}

	// Both artifacts commit in one transaction: a failure on either side
	// leaves the previously active pair serving.
	activation := registry.Activation{Classifier: classifier, Regressor: regressor}
	activation.Churn, err = t.churnArtifact(classifier, algorithm, churnMetrics, start)
	if err != nil {
		return domain.TrainingReport{}, err
	}
	if regressor != nil {
		clvArtifact, err := t.clvArtifact(regressor, clvMetrics, start)
		if err != nil {
			return domain.TrainingReport{}, err
		}
		activation.CLV = &clvArtifact
	}
	if err := t.registry.Activate(ctx, activation); err != nil {
		return domain.TrainingReport{}, err
	}
	report.ChurnModelVersion = activation.Churn.Version
	if activation.CLV != nil {
		report.CLVModelVersion = activation.CLV.Version
	}

	duration := t.clock.Now().Sub(start)
	if t.metrics != nil {
		t.metrics.ObserveTrainingDuration(duration)
	}
	t.logRun(ctx, report)
	t.log.Info("training completed",
		zap.String("algorithm", algorithm),
		zap.Int("samples", len(records)),
		zap.Float64("accuracy", churnMetrics.Accuracy),
		zap.Float64("auc", churnMetrics.AUCScore),
		zap.Duration("duration", duration),
	)
	return report, nil
}

func (t *Trainer) snapshot(ctx context.Context, asOf time.Time) ([]featuredomain.Record, error) {
	all, err := t.store.LatestPerCustomer(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("load feature snapshot: %w", err)
	}

	records := all[:0]
	for _, rec := range all {
		if rec.SchemaVersion != featuredomain.CurrentSchemaVersion {
			t.log.Warn("skipping record with stale feature schema",
				zap.String("customer_id", rec.CustomerID.String()),
				zap.Int("schema_version", rec.SchemaVersion),
			)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: feature store is empty", domain.ErrTrainingPrecondition)
	}
	return records, nil
}

// labels marks a record positive when a churn event lands within the
// prediction horizon after its feature date. Churn events preceding the
// feature date also count: records for already-churned customers are
// computed retroactively during ETL.
func (t *Trainer) labels(ctx context.Context, records []featuredomain.Record) ([]float64, error) {
	events, err := t.repo.ChurnEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load churn events: %w", err)
	}
	churnDates := make(map[snowflake.ID]time.Time, len(events))
	for _, event := range events {
		churnDates[event.CustomerID] = event.ChurnDate
	}

	horizon := time.Duration(t.cfg.PredictionHorizonDays) * 24 * time.Hour
	labels := make([]float64, len(records))
	for i, rec := range records {
		churnDate, churned := churnDates[rec.CustomerID]
		if churned && !churnDate.After(rec.FeatureDate.Add(horizon)) {
			labels[i] = 1
		}
	}
	return labels, nil
}

func (t *Trainer) fitChurn(x [][]float64, y []float64) (domain.ChurnMetrics, estimator.Classifier, string, error) {
	trainIdx, testIdx := estimator.StratifiedSplit(y, t.cfg.TestSplitFraction, t.cfg.RandomSeed)
	trainX, trainY := estimator.Subset(x, y, trainIdx)
	testX, testY := estimator.Subset(x, y, testIdx)
	if len(testY) == 0 {
		testX, testY = trainX, trainY
	}

	classifier, algorithm, err := t.fitWithFallback(t.cfg.Algorithm, trainX, trainY)
	if err != nil {
		return domain.ChurnMetrics{}, nil, "", err
	}

	probs := make([]float64, len(testX))
	for i, row := range testX {
		probs[i] = classifier.PredictProba(row)
	}

	cvMean, cvStd, err := estimator.CrossValidate(x, y, t.cfg.CrossValidationFolds, t.cfg.RandomSeed,
		func(foldX [][]float64, foldY []float64) (estimator.Classifier, error) {
			clf, _, fitErr := t.fitWithFallback(algorithm, foldX, foldY)
			return clf, fitErr
		})
	if err != nil {
		return domain.ChurnMetrics{}, nil, "", fmt.Errorf("cross validation: %w", err)
	}

	return domain.ChurnMetrics{
		Accuracy: estimator.Accuracy(probs, testY),
		AUCScore: estimator.AUC(probs, testY),
		CVMean:   cvMean,
		CVStd:    cvStd,
	}, classifier, algorithm, nil
}

// fitWithFallback retries a numerical failure once with the fallback
// algorithm before surfacing ErrTraining.
func (t *Trainer) fitWithFallback(algorithm string, x [][]float64, y []float64) (estimator.Classifier, string, error) {
	classifier, err := estimator.FitClassifier(algorithm, x, y, t.cfg.RandomSeed)
	if err == nil {
		return classifier, algorithm, nil
	}
	if !errors.Is(err, estimator.ErrNotConverged) {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrTraining, err)
	}

	fallback := estimator.Fallback(algorithm)
	t.log.Warn("fit did not converge, retrying with fallback",
		zap.String("algorithm", algorithm),
		zap.String("fallback", fallback),
	)
	classifier, err = estimator.FitClassifier(fallback, x, y, t.cfg.RandomSeed)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrTraining, err)
	}
	return classifier, fallback, nil
}

func (t *Trainer) fitCLV(ctx context.Context, records []featuredomain.Record) (domain.CLVMetrics, estimator.Regressor, error) {
	ids := make([]snowflake.ID, len(records))
	for i, rec := range records {
		ids[i] = rec.CustomerID
	}
	customers, err := t.repo.FindByIDs(ctx, ids)
	if err != nil {
		return domain.CLVMetrics{}, nil, fmt.Errorf("load customers for clv: %w", err)
	}
	totalCharges := make(map[snowflake.ID]float64, len(customers))
	for _, customer := range customers {
		totalCharges[customer.ID] = customer.TotalCharges
	}

	var x [][]float64
	var y []float64
	for _, rec := range records {
		charges, ok := totalCharges[rec.CustomerID]
		if !ok || charges <= 0 {
			continue
		}
		x = append(x, domain.RegressorVector(rec))
		y = append(y, charges)
	}
	if len(y) < 2 {
		t.log.Warn("not enough revenue history to fit clv model", zap.Int("samples", len(y)))
		return domain.CLVMetrics{}, nil, nil
	}

	trainIdx, testIdx := estimator.StratifiedSplit(make([]float64, len(y)), t.cfg.TestSplitFraction, t.cfg.RandomSeed)
	trainX, trainY := estimator.Subset(x, y, trainIdx)
	testX, testY := estimator.Subset(x, y, testIdx)
	if len(testY) == 0 {
		testX, testY = trainX, trainY
	}

	regressor, err := estimator.FitRandomForestRegressor(trainX, trainY, t.cfg.RandomSeed)
	if err != nil {
		return domain.CLVMetrics{}, nil, fmt.Errorf("%w: %v", domain.ErrTraining, err)
	}

	trainPreds := make([]float64, len(trainX))
	for i, row := range trainX {
		trainPreds[i] = regressor.Predict(row)
	}
	testPreds := make([]float64, len(testX))
	for i, row := range testX {
		testPreds[i] = regressor.Predict(row)
	}

	return domain.CLVMetrics{
		TrainR2: estimator.R2(trainPreds, trainY),
		TestR2:  estimator.R2(testPreds, testY),
	}, regressor, nil
}

func (t *Trainer) churnArtifact(classifier estimator.Classifier, algorithm string, churnMetrics domain.ChurnMetrics, trainedAt time.Time) (domain.Artifact, error) {
	params, err := estimator.MarshalClassifier(classifier)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("serialize churn model: %w", err)
	}
	metricsJSON, _ := json.Marshal(churnMetrics)

	return domain.Artifact{
		ID:                   t.genID.Generate(),
		Version:              uuid.NewString(),
		Kind:                 domain.KindChurn,
		Algorithm:            algorithm,
		FeatureSchemaVersion: featuredomain.CurrentSchemaVersion,
		TrainedAt:            trainedAt,
		Metrics:              metricsJSON,
		Parameters:           params,
	}, nil
}

func (t *Trainer) clvArtifact(regressor estimator.Regressor, clvMetrics domain.CLVMetrics, trainedAt time.Time) (domain.Artifact, error) {
	params, err := estimator.MarshalRegressor(regressor)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("serialize clv model: %w", err)
	}
	metricsJSON, _ := json.Marshal(clvMetrics)

	return domain.Artifact{
		ID:                   t.genID.Generate(),
		Version:              uuid.NewString(),
		Kind:                 domain.KindCLV,
		Algorithm:            estimator.AlgorithmRandomForest,
		FeatureSchemaVersion: featuredomain.CurrentSchemaVersion,
		TrainedAt:            trainedAt,
		Metrics:              metricsJSON,
		Parameters:           params,
	}, nil
}

func (t *Trainer) logRun(ctx context.Context, report domain.TrainingReport) {
	if t.tracker == nil {
		return
	}
	t.tracker.LogRun(ctx, tracking.Run{
		RunID: uuid.NewString(),
		Params: map[string]any{
			"algorithm":           report.Algorithm,
			"test_split_fraction": t.cfg.TestSplitFraction,
			"cv_folds":            t.cfg.CrossValidationFolds,
			"random_seed":         t.cfg.RandomSeed,
			"n_samples":           report.SampleCount,
		},
		Metrics: map[string]float64{
			"accuracy":  report.ChurnModel.Accuracy,
			"auc_score": report.ChurnModel.AUCScore,
			"cv_mean":   report.ChurnModel.CVMean,
			"cv_std":    report.ChurnModel.CVStd,
			"train_r2":  report.CLVModel.TrainR2,
			"test_r2":   report.CLVModel.TestR2,
		},
		ArtifactRefs: []string{report.ChurnModelVersion, report.CLVModelVersion},
	})
}
