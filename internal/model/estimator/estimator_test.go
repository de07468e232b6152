package estimator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableSet builds a deterministic two-cluster dataset: negatives around
// the origin, positives around (5, 5).
func separableSet(n int) (x [][]float64, y []float64) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < n; i++ {
		jitterA := rng.Float64() - 0.5
		jitterB := rng.Float64() - 0.5
		if i%2 == 0 {
			x = append(x, []float64{jitterA, jitterB})
			y = append(y, 0)
		} else {
			x = append(x, []float64{5 + jitterA, 5 + jitterB})
			y = append(y, 1)
		}
	}
	return x, y
}

func TestFitLogistic_SeparatesClusters(t *testing.T) {
	x, y := separableSet(40)

	model, err := FitLogistic(x, y)
	require.NoError(t, err)

	assert.Less(t, model.PredictProba([]float64{0, 0}), 0.1)
	assert.Greater(t, model.PredictProba([]float64{5, 5}), 0.9)
}

func TestFitRandomForestClassifier_SeparatesClusters(t *testing.T) {
	x, y := separableSet(40)

	model, err := FitRandomForestClassifier(x, y, 42)
	require.NoError(t, err)

	probs := make([]float64, len(x))
	for i, row := range x {
		probs[i] = model.PredictProba(row)
	}
	assert.GreaterOrEqual(t, Accuracy(probs, y), 0.95)
}

func TestFitGradientBoostedClassifier_SeparatesClusters(t *testing.T) {
	x, y := separableSet(40)

	model, err := FitGradientBoostedClassifier(x, y, 42)
	require.NoError(t, err)

	probs := make([]float64, len(x))
	for i, row := range x {
		probs[i] = model.PredictProba(row)
		assert.GreaterOrEqual(t, probs[i], 0.0)
		assert.LessOrEqual(t, probs[i], 1.0)
	}
	assert.GreaterOrEqual(t, Accuracy(probs, y), 0.95)
}

func TestFitClassifier_DeterministicGivenSeed(t *testing.T) {
	x, y := separableSet(40)

	a, err := FitClassifier(AlgorithmRandomForest, x, y, 42)
	require.NoError(t, err)
	b, err := FitClassifier(AlgorithmRandomForest, x, y, 42)
	require.NoError(t, err)

	for _, row := range x {
		assert.Equal(t, a.PredictProba(row), b.PredictProba(row))
	}
}

func TestFitClassifier_UnknownAlgorithm(t *testing.T) {
	x, y := separableSet(10)
	_, err := FitClassifier("neural_net", x, y, 42)
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	assert.Equal(t, AlgorithmGradientBoosted, Fallback(AlgorithmRandomForest))
	assert.Equal(t, AlgorithmRandomForest, Fallback(AlgorithmGradientBoosted))
	assert.Equal(t, AlgorithmRandomForest, Fallback(AlgorithmLogistic))
}

func TestClassifierRoundTrip(t *testing.T) {
	x, y := separableSet(40)

	for _, algorithm := range []string{AlgorithmRandomForest, AlgorithmGradientBoosted, AlgorithmLogistic} {
		model, err := FitClassifier(algorithm, x, y, 42)
		require.NoError(t, err, algorithm)

		data, err := MarshalClassifier(model)
		require.NoError(t, err, algorithm)

		restored, err := UnmarshalClassifier(algorithm, data)
		require.NoError(t, err, algorithm)

		for _, row := range x {
			assert.InDelta(t, model.PredictProba(row), restored.PredictProba(row), 1e-12, algorithm)
		}
	}
}

func TestFitRandomForestRegressor_RecoversTarget(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 60; i++ {
		v := float64(i)
		x = append(x, []float64{v, v / 2})
		y = append(y, 10*v)
	}

	model, err := FitRandomForestRegressor(x, y, 42)
	require.NoError(t, err)

	preds := make([]float64, len(x))
	for i, row := range x {
		preds[i] = model.Predict(row)
	}
	assert.Greater(t, R2(preds, y), 0.9)

	data, err := MarshalRegressor(model)
	require.NoError(t, err)
	restored, err := UnmarshalRegressor(data)
	require.NoError(t, err)
	assert.InDelta(t, model.Predict(x[10]), restored.Predict(x[10]), 1e-12)
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 1.0, Accuracy([]float64{0.9, 0.1}, []float64{1, 0}))
	assert.Equal(t, 0.0, Accuracy([]float64{0.1, 0.9}, []float64{1, 0}))
	assert.Equal(t, 0.5, Accuracy([]float64{0.9, 0.9}, []float64{1, 0}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}

func TestAUC(t *testing.T) {
	// Perfect ranking.
	assert.InDelta(t, 1.0, AUC([]float64{0.1, 0.2, 0.8, 0.9}, []float64{0, 0, 1, 1}), 1e-12)
	// Inverted ranking.
	assert.InDelta(t, 0.0, AUC([]float64{0.9, 0.8, 0.2, 0.1}, []float64{0, 0, 1, 1}), 1e-12)
	// All scores tied averages to chance.
	assert.InDelta(t, 0.5, AUC([]float64{0.5, 0.5, 0.5, 0.5}, []float64{0, 0, 1, 1}), 1e-12)
	// A single class is undefined; report chance.
	assert.InDelta(t, 0.5, AUC([]float64{0.4, 0.6}, []float64{1, 1}), 1e-12)
}

func TestR2(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, R2([]float64{1, 2, 3, 4}, y), 1e-12)
	// Predicting the mean explains nothing.
	assert.InDelta(t, 0.0, R2([]float64{2.5, 2.5, 2.5, 2.5}, y), 1e-12)
}

func TestStratifiedSplit(t *testing.T) {
	y := []float64{0, 0, 0, 0, 0, 0, 0, 0, 1, 1}

	train, test := StratifiedSplit(y, 0.2, 42)
	assert.Len(t, test, 2)
	assert.Len(t, train, 8)

	// Partition covers every index exactly once.
	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, len(y))

	// Both classes keep at least one training example.
	var trainPos int
	for _, i := range train {
		if y[i] == 1 {
			trainPos++
		}
	}
	assert.GreaterOrEqual(t, trainPos, 1)

	// Deterministic given a seed.
	train2, test2 := StratifiedSplit(y, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestCrossValidate(t *testing.T) {
	x, y := separableSet(40)

	mean, std, err := CrossValidate(x, y, 5, 42, func(foldX [][]float64, foldY []float64) (Classifier, error) {
		return FitLogistic(foldX, foldY)
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mean, 0.9)
	assert.GreaterOrEqual(t, std, 0.0)
}
