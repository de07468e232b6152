package estimator

import (
	"math"
	"math/rand"
)

const (
	forestTrees      = 100
	forestMaxDepth   = 10
	forestMinSamples = 5
)

// RandomForestClassifier averages churn fractions over bootstrapped CART
// trees with sqrt(d) feature subsampling.
type RandomForestClassifier struct {
	Trees []*TreeNode `json:"trees"`
}

func FitRandomForestClassifier(x [][]float64, y []float64, seed int64) (*RandomForestClassifier, error) {
	trees, err := fitForest(x, y, seed, taskClassify)
	if err != nil {
		return nil, err
	}
	return &RandomForestClassifier{Trees: trees}, nil
}

func (m *RandomForestClassifier) PredictProba(x []float64) float64 {
	return forestPredict(m.Trees, x)
}

// RandomForestRegressor is the CLV estimator: mean of per-tree target means.
type RandomForestRegressor struct {
	Trees []*TreeNode `json:"trees"`
}

func FitRandomForestRegressor(x [][]float64, y []float64, seed int64) (*RandomForestRegressor, error) {
	trees, err := fitForest(x, y, seed, taskRegress)
	if err != nil {
		return nil, err
	}
	return &RandomForestRegressor{Trees: trees}, nil
}

func (m *RandomForestRegressor) Predict(x []float64) float64 {
	return forestPredict(m.Trees, x)
}

func fitForest(x [][]float64, y []float64, seed int64, task treeTask) ([]*TreeNode, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, ErrInsufficientData
	}
	d := len(x[0])
	subset := int(math.Ceil(math.Sqrt(float64(d))))

	rng := rand.New(rand.NewSource(seed))
	trees := make([]*TreeNode, 0, forestTrees)
	idx := make([]int, n)
	for t := 0; t < forestTrees; t++ {
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		cfg := treeConfig{
			maxDepth:      forestMaxDepth,
			minSamples:    forestMinSamples,
			featureSubset: subset,
			rng:           rng,
			task:          task,
		}
		trees = append(trees, growTree(x, y, idx, 0, cfg))
	}
	return trees, nil
}

func forestPredict(trees []*TreeNode, x []float64) float64 {
	var sum float64
	for _, tree := range trees {
		sum += tree.predict(x)
	}
	return sum / float64(len(trees))
}
