package estimator

import (
	"math"
	"math/rand"
)

const (
	boostRounds       = 100
	boostLearningRate = 0.1
	boostMaxDepth     = 6
	boostMinSamples   = 2
)

// GradientBoostedClassifier fits shallow regression trees to the logistic
// gradient, stage-wise.
type GradientBoostedClassifier struct {
	InitScore    float64     `json:"init_score"`
	LearningRate float64     `json:"learning_rate"`
	Trees        []*TreeNode `json:"trees"`
}

func FitGradientBoostedClassifier(x [][]float64, y []float64, seed int64) (*GradientBoostedClassifier, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, ErrInsufficientData
	}

	prior := meanAll(y)
	const eps = 1e-6
	prior = math.Min(math.Max(prior, eps), 1-eps)
	initScore := math.Log(prior / (1 - prior))

	rng := rand.New(rand.NewSource(seed))
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = initScore
	}

	residuals := make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	trees := make([]*TreeNode, 0, boostRounds)
	for round := 0; round < boostRounds; round++ {
		for i := range residuals {
			residuals[i] = y[i] - sigmoid(scores[i])
		}
		cfg := treeConfig{
			maxDepth:   boostMaxDepth,
			minSamples: boostMinSamples,
			rng:        rng,
			task:       taskRegress,
		}
		tree := growTree(x, residuals, idx, 0, cfg)
		trees = append(trees, tree)
		for i := range scores {
			scores[i] += boostLearningRate * tree.predict(x[i])
		}
	}

	return &GradientBoostedClassifier{
		InitScore:    initScore,
		LearningRate: boostLearningRate,
		Trees:        trees,
	}, nil
}

func (m *GradientBoostedClassifier) PredictProba(x []float64) float64 {
	score := m.InitScore
	for _, tree := range m.Trees {
		score += m.LearningRate * tree.predict(x)
	}
	return sigmoid(score)
}

func meanAll(y []float64) float64 {
	var sum float64
	for _, v := range y {
		sum += v
	}
	return sum / float64(len(y))
}
