package trainer

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/retainly/retainly/internal/clock"
	"github.com/retainly/retainly/internal/config"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
	customerrepository "github.com/retainly/retainly/internal/customer/repository"
	featuredomain "github.com/retainly/retainly/internal/feature/domain"
	featurestore "github.com/retainly/retainly/internal/feature/store"
	"github.com/retainly/retainly/internal/model/domain"
	"github.com/retainly/retainly/internal/model/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	store    *featurestore.Store
	registry *registry.Registry
	trainer  domain.Trainer
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&customerdomain.UsageMetric{},
		&customerdomain.ChurnEvent{},
		&featuredomain.Record{},
		&domain.Artifact{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	log := zap.NewNop()
	store := featurestore.New(db, log)
	reg := registry.New(db, log)

	cfg := config.Config{
		Training: config.TrainingConfig{
			Algorithm:             "random_forest",
			TestSplitFraction:     0.2,
			CrossValidationFolds:  5,
			RandomSeed:            42,
			PredictionHorizonDays: 90,
			MinExamplesPerClass:   2,
		},
	}

	return &fixture{
		db:       db,
		node:     node,
		store:    store,
		registry: reg,
		now:      now,
		trainer: New(Params{
			Cfg:      cfg,
			Log:      log,
			GenID:    node,
			Clock:    clock.NewFakeClock(now),
			Store:    store,
			Repo:     customerrepository.Provide(db),
			Registry: reg,
			Tracker:  nil,
		}),
	}
}

// seedLabeled writes customers with feature records where churned customers
// are clearly disengaged and retained ones clearly active.
func (f *fixture) seedLabeled(t *testing.T, churned, retained int) {
	t.Helper()
	ctx := context.Background()
	featureDate := f.now.AddDate(0, 0, -10)

	write := func(code string, isChurned bool) {
		id := f.node.Generate()
		customer := customerdomain.Customer{
			ID:               id,
			CustomerCode:     code,
			SignupDate:       f.now.AddDate(-1, 0, 0),
			SubscriptionType: "standard",
			MonthlyCharges:   50,
			TotalCharges:     600,
		}
		if isChurned {
			customer.TotalCharges = 200
		}
		require.NoError(t, f.db.Create(&customer).Error)

		rec := featuredomain.Record{
			ID:                   f.node.Generate(),
			CustomerID:           id,
			FeatureDate:          featureDate,
			SchemaVersion:        featuredomain.CurrentSchemaVersion,
			TenureDays:           365,
			AvgMonthlyUsage:      5,
			FeatureAdoptionScore: 0.8,
			EngagementScore:      0.9,
			ChurnRiskScore:       0.1,
			LifetimeValue:        1200,
		}
		if isChurned {
			rec.AvgMonthlyUsage = 0.2
			rec.SupportTicketRate = 0.8
			rec.FeatureAdoptionScore = 0.1
			rec.EngagementScore = 0.05
			rec.ChurnRiskScore = 0.9
			rec.LifetimeValue = 300
		}
		require.NoError(t, f.store.Append(ctx, rec))

		if isChurned {
			event := customerdomain.ChurnEvent{
				ID:         f.node.Generate(),
				CustomerID: id,
				ChurnDate:  f.now.AddDate(0, 0, -5),
				Voluntary:  true,
			}
			require.NoError(t, f.db.Create(&event).Error)
		}
	}

	for i := 0; i < churned; i++ {
		write(testCode("CHURN", i), true)
	}
	for i := 0; i < retained; i++ {
		write(testCode("STAY", i), false)
	}
}

func testCode(prefix string, i int) string {
	return prefix + "-" + string(rune('A'+i))
}

func TestTrain_ActivatesBothModels(t *testing.T) {
	f := newFixture(t)
	f.seedLabeled(t, 8, 12)

	report, err := f.trainer.Train(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.ChurnModelVersion)
	assert.NotEmpty(t, report.CLVModelVersion)
	assert.Equal(t, "random_forest", report.Algorithm)
	assert.Equal(t, 20, report.SampleCount)
	assert.GreaterOrEqual(t, report.ChurnModel.Accuracy, 0.75)
	assert.GreaterOrEqual(t, report.ChurnModel.AUCScore, 0.75)

	churn, ok := f.registry.ActiveChurn()
	require.True(t, ok)
	assert.Equal(t, report.ChurnModelVersion, churn.Version)

	clv, ok := f.registry.ActiveCLV()
	require.True(t, ok)
	assert.Equal(t, report.CLVModelVersion, clv.Version)

	// A disengaged profile scores above an engaged one.
	risky := domain.ClassifierVector(featuredomain.Record{
		TenureDays: 365, AvgMonthlyUsage: 0.2, SupportTicketRate: 0.8,
		FeatureAdoptionScore: 0.1, EngagementScore: 0.05, ChurnRiskScore: 0.9, LifetimeValue: 300,
	})
	safe := domain.ClassifierVector(featuredomain.Record{
		TenureDays: 365, AvgMonthlyUsage: 5, FeatureAdoptionScore: 0.8,
		EngagementScore: 0.9, ChurnRiskScore: 0.1, LifetimeValue: 1200,
	})
	assert.Greater(t, churn.Classifier.PredictProba(risky), churn.Classifier.PredictProba(safe))
}

func TestTrain_PersistsArtifactsAndDemotesOld(t *testing.T) {
	f := newFixture(t)
	f.seedLabeled(t, 8, 12)
	ctx := context.Background()

	first, err := f.trainer.Train(ctx)
	require.NoError(t, err)
	second, err := f.trainer.Train(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ChurnModelVersion, second.ChurnModelVersion)

	var active []domain.Artifact
	require.NoError(t, f.db.Where("active = ?", true).Find(&active).Error)
	require.Len(t, active, 2)
	for _, artifact := range active {
		switch artifact.Kind {
		case domain.KindChurn:
			assert.Equal(t, second.ChurnModelVersion, artifact.Version)
		case domain.KindCLV:
			assert.Equal(t, second.CLVModelVersion, artifact.Version)
		}
	}

	var total int64
	require.NoError(t, f.db.Model(&domain.Artifact{}).Count(&total).Error)
	assert.Equal(t, int64(4), total)
}

func TestTrain_EmptyStore(t *testing.T) {
	f := newFixture(t)

	_, err := f.trainer.Train(context.Background())
	assert.ErrorIs(t, err, domain.ErrTrainingPrecondition)
}

func TestTrain_SingleClass(t *testing.T) {
	f := newFixture(t)
	f.seedLabeled(t, 0, 10)

	_, err := f.trainer.Train(context.Background())
	assert.ErrorIs(t, err, domain.ErrTrainingPrecondition)

	_, ok := f.registry.ActiveChurn()
	assert.False(t, ok)
}

func TestTrain_PreconditionLeavesActiveModelUnchanged(t *testing.T) {
	f := newFixture(t)
	f.seedLabeled(t, 8, 12)
	ctx := context.Background()

	first, err := f.trainer.Train(ctx)
	require.NoError(t, err)

	// Without churn events every label is negative, failing the
	// per-class minimum on the next run.
	require.NoError(t, f.db.Where("1 = 1").Delete(&customerdomain.ChurnEvent{}).Error)

	_, err = f.trainer.Train(ctx)
	require.ErrorIs(t, err, domain.ErrTrainingPrecondition)

	churnVersion, clvVersion := f.registry.ActiveVersions()
	assert.Equal(t, first.ChurnModelVersion, churnVersion)
	assert.Equal(t, first.CLVModelVersion, clvVersion)

	var total int64
	require.NoError(t, f.db.Model(&domain.Artifact{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestTrain_IgnoresStaleSchemaRecords(t *testing.T) {
	f := newFixture(t)
	f.seedLabeled(t, 8, 12)
	ctx := context.Background()

	// A record from an older schema must not enter the snapshot. The column
	// default rewrites a zero schema version on insert, so force it after.
	stale := featuredomain.Record{
		ID:          f.node.Generate(),
		CustomerID:  f.node.Generate(),
		FeatureDate: f.now.AddDate(0, 0, -10),
	}
	require.NoError(t, f.db.Create(&stale).Error)
	require.NoError(t, f.db.Model(&featuredomain.Record{}).
		Where("id = ?", stale.ID).
		Update("schema_version", featuredomain.CurrentSchemaVersion-1).Error)

	report, err := f.trainer.Train(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, report.SampleCount)
}
