package registry

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/retainly/retainly/internal/model/domain"
	"github.com/retainly/retainly/internal/model/estimator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *Registry, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Artifact{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return db, New(db, zap.NewNop()), node
}

func fitTiny(t *testing.T) estimator.Classifier {
	t.Helper()
	x := [][]float64{{0, 0}, {0, 1}, {5, 5}, {5, 6}}
	y := []float64{0, 0, 1, 1}
	clf, err := estimator.FitLogistic(x, y)
	require.NoError(t, err)
	return clf
}

func fitTinyRegressor(t *testing.T) estimator.Regressor {
	t.Helper()
	x := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}}
	y := []float64{0, 10, 20, 30, 40, 50}
	reg, err := estimator.FitRandomForestRegressor(x, y, 1)
	require.NoError(t, err)
	return reg
}

func artifact(node *snowflake.Node, version, kind string, params []byte) domain.Artifact {
	return domain.Artifact{
		ID:                   node.Generate(),
		Version:              version,
		Kind:                 kind,
		Algorithm:            estimator.AlgorithmLogistic,
		FeatureSchemaVersion: 1,
		TrainedAt:            time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Parameters:           params,
	}
}

func TestRegistry_StartsEmpty(t *testing.T) {
	_, reg, _ := setup(t)

	_, ok := reg.ActiveChurn()
	assert.False(t, ok)
	_, ok = reg.ActiveCLV()
	assert.False(t, ok)

	churnVersion, clvVersion := reg.ActiveVersions()
	assert.Empty(t, churnVersion)
	assert.Empty(t, clvVersion)
}

func TestActivateChurn_PublishesAndDemotes(t *testing.T) {
	db, reg, node := setup(t)
	ctx := context.Background()
	clf := fitTiny(t)
	params, err := estimator.MarshalClassifier(clf)
	require.NoError(t, err)

	require.NoError(t, reg.ActivateChurn(ctx, artifact(node, "v1", domain.KindChurn, params), clf))
	require.NoError(t, reg.ActivateChurn(ctx, artifact(node, "v2", domain.KindChurn, params), clf))

	handle, ok := reg.ActiveChurn()
	require.True(t, ok)
	assert.Equal(t, "v2", handle.Version)

	var active []domain.Artifact
	require.NoError(t, db.Where("kind = ? AND active = ?", domain.KindChurn, true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, "v2", active[0].Version)
}

func TestActivate_PublishesPair(t *testing.T) {
	db, reg, node := setup(t)
	ctx := context.Background()
	clf := fitTiny(t)
	clfParams, err := estimator.MarshalClassifier(clf)
	require.NoError(t, err)
	rgr := fitTinyRegressor(t)
	rgrParams, err := estimator.MarshalRegressor(rgr)
	require.NoError(t, err)

	clv := artifact(node, "clv-v1", domain.KindCLV, rgrParams)
	require.NoError(t, reg.Activate(ctx, Activation{
		Churn:      artifact(node, "churn-v1", domain.KindChurn, clfParams),
		Classifier: clf,
		CLV:        &clv,
		Regressor:  rgr,
	}))

	churnVersion, clvVersion := reg.ActiveVersions()
	assert.Equal(t, "churn-v1", churnVersion)
	assert.Equal(t, "clv-v1", clvVersion)

	var active int64
	require.NoError(t, db.Model(&domain.Artifact{}).Where("active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(2), active)
}

func TestActivate_FailureLeavesPreviousPairServing(t *testing.T) {
	db, reg, node := setup(t)
	ctx := context.Background()
	clf := fitTiny(t)
	clfParams, err := estimator.MarshalClassifier(clf)
	require.NoError(t, err)
	rgr := fitTinyRegressor(t)
	rgrParams, err := estimator.MarshalRegressor(rgr)
	require.NoError(t, err)

	firstCLV := artifact(node, "clv-v1", domain.KindCLV, rgrParams)
	require.NoError(t, reg.Activate(ctx, Activation{
		Churn:      artifact(node, "churn-v1", domain.KindChurn, clfParams),
		Classifier: clf,
		CLV:        &firstCLV,
		Regressor:  rgr,
	}))

	// The clv version collides with an existing artifact, so its insert
	// fails after the churn insert already ran inside the transaction.
	// Nothing of the run may survive.
	badCLV := artifact(node, "churn-v1", domain.KindCLV, rgrParams)
	err = reg.Activate(ctx, Activation{
		Churn:      artifact(node, "churn-v2", domain.KindChurn, clfParams),
		Classifier: clf,
		CLV:        &badCLV,
		Regressor:  rgr,
	})
	require.Error(t, err)

	churnVersion, clvVersion := reg.ActiveVersions()
	assert.Equal(t, "churn-v1", churnVersion)
	assert.Equal(t, "clv-v1", clvVersion)

	var total int64
	require.NoError(t, db.Model(&domain.Artifact{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)

	var activeChurn domain.Artifact
	require.NoError(t, db.Where("kind = ? AND active = ?", domain.KindChurn, true).First(&activeChurn).Error)
	assert.Equal(t, "churn-v1", activeChurn.Version)
}

func TestLoadActive_RestoresHandles(t *testing.T) {
	db, reg, node := setup(t)
	ctx := context.Background()
	clf := fitTiny(t)
	params, err := estimator.MarshalClassifier(clf)
	require.NoError(t, err)

	require.NoError(t, reg.ActivateChurn(ctx, artifact(node, "v1", domain.KindChurn, params), clf))

	// A fresh registry over the same database picks the artifact back up.
	restored := New(db, zap.NewNop())
	require.NoError(t, restored.LoadActive(ctx))

	handle, ok := restored.ActiveChurn()
	require.True(t, ok)
	assert.Equal(t, "v1", handle.Version)
	assert.InDelta(t, clf.PredictProba([]float64{5, 5}), handle.Classifier.PredictProba([]float64{5, 5}), 1e-12)
}

func TestLoadActive_EmptyDatabase(t *testing.T) {
	db, _, _ := setup(t)

	reg := New(db, zap.NewNop())
	require.NoError(t, reg.LoadActive(context.Background()))

	_, ok := reg.ActiveChurn()
	assert.False(t, ok)
}
