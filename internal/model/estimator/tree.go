package estimator

import (
	"math/rand"
	"sort"
)

// TreeNode is one node of a CART tree. Leaves carry the churn fraction
// (classification) or target mean (regression) of their training samples.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value"`
}

func (n *TreeNode) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

type treeTask int

const (
	taskClassify treeTask = iota
	taskRegress
)

type treeConfig struct {
	maxDepth      int
	minSamples    int
	featureSubset int // 0 means all features
	rng           *rand.Rand
	task          treeTask
}

func growTree(x [][]float64, y []float64, idx []int, depth int, cfg treeConfig) *TreeNode {
	value := meanAt(y, idx)
	if depth >= cfg.maxDepth || len(idx) < cfg.minSamples || isPure(y, idx) {
		return &TreeNode{Leaf: true, Value: value}
	}

	feature, threshold, ok := bestSplit(x, y, idx, cfg)
	if !ok {
		return &TreeNode{Leaf: true, Value: value}
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Leaf: true, Value: value}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(x, y, left, depth+1, cfg),
		Right:     growTree(x, y, right, depth+1, cfg),
	}
}

func bestSplit(x [][]float64, y []float64, idx []int, cfg treeConfig) (int, float64, bool) {
	d := len(x[idx[0]])
	features := make([]int, d)
	for j := range features {
		features[j] = j
	}
	if cfg.featureSubset > 0 && cfg.featureSubset < d && cfg.rng != nil {
		cfg.rng.Shuffle(d, func(a, b int) {
			features[a], features[b] = features[b], features[a]
		})
		features = features[:cfg.featureSubset]
	}

	parent := impurityAt(y, idx, cfg.task)
	bestGain := 1e-9
	bestFeature, bestThreshold := -1, 0.0

	values := make([]float64, 0, len(idx))
	for _, feature := range features {
		values = values[:0]
		for _, i := range idx {
			values = append(values, x[i][feature])
		}
		sort.Float64s(values)

		for k := 0; k+1 < len(values); k++ {
			if values[k] == values[k+1] {
				continue
			}
			threshold := (values[k] + values[k+1]) / 2

			var left, right []int
			for _, i := range idx {
				if x[i][feature] <= threshold {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}

			wl := float64(len(left)) / float64(len(idx))
			wr := float64(len(right)) / float64(len(idx))
			gain := parent - wl*impurityAt(y, left, cfg.task) - wr*impurityAt(y, right, cfg.task)
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func impurityAt(y []float64, idx []int, task treeTask) float64 {
	if task == taskClassify {
		p := meanAt(y, idx)
		return 1 - p*p - (1-p)*(1-p) // gini
	}
	mean := meanAt(y, idx)
	var variance float64
	for _, i := range idx {
		diff := y[i] - mean
		variance += diff * diff
	}
	return variance / float64(len(idx))
}

func meanAt(y []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func isPure(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}
