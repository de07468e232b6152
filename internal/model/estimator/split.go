package estimator

import "math/rand"

// StratifiedSplit partitions indices into train/test by testFraction,
// preserving the label balance within each class. Deterministic given seed.
func StratifiedSplit(y []float64, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	var positives, negatives []int
	for i, label := range y {
		if label == 1 {
			positives = append(positives, i)
		} else {
			negatives = append(negatives, i)
		}
	}

	split := func(idx []int) {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		cut := int(float64(len(idx)) * testFraction)
		if cut == 0 && len(idx) > 1 {
			cut = 1
		}
		test = append(test, idx[:cut]...)
		train = append(train, idx[cut:]...)
	}
	split(negatives)
	split(positives)

	return train, test
}

// foldAssignments maps each sample to a fold, stratified per class.
func foldAssignments(y []float64, folds int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	assignments := make([]int, len(y))

	assign := func(idx []int) {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for k, i := range idx {
			assignments[i] = k % folds
		}
	}

	var positives, negatives []int
	for i, label := range y {
		if label == 1 {
			positives = append(positives, i)
		} else {
			negatives = append(negatives, i)
		}
	}
	assign(negatives)
	assign(positives)

	return assignments
}

// Subset gathers rows of x and y at the given indices.
func Subset(x [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	subX := make([][]float64, len(idx))
	subY := make([]float64, len(idx))
	for k, i := range idx {
		subX[k] = x[i]
		subY[k] = y[i]
	}
	return subX, subY
}
