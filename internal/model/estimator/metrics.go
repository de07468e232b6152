package estimator

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Accuracy scores probabilistic predictions against 0/1 labels at the 0.5
// decision boundary.
func Accuracy(probs, y []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	var correct int
	for i, p := range probs {
		pred := 0.0
		if p > 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(probs))
}

// AUC computes the area under the ROC curve by the rank statistic: the
// probability a random positive is scored above a random negative, ties
// counted half.
func AUC(probs, y []float64) float64 {
	type scored struct {
		p   float64
		pos bool
	}
	items := make([]scored, len(probs))
	var positives, negatives float64
	for i, p := range probs {
		pos := y[i] == 1
		items[i] = scored{p: p, pos: pos}
		if pos {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0.5
	}

	sort.Slice(items, func(a, b int) bool { return items[a].p < items[b].p })

	// Sum positive ranks, averaging ranks across tied scores.
	var rankSum float64
	i := 0
	for i < len(items) {
		j := i
		for j < len(items) && items[j].p == items[i].p {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if items[k].pos {
				rankSum += avgRank
			}
		}
		i = j
	}

	return (rankSum - positives*(positives+1)/2) / (positives * negatives)
}

// R2 is the coefficient of determination of predictions against targets.
func R2(preds, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	mean := stat.Mean(y, nil)
	var ssRes, ssTot float64
	for i, v := range y {
		res := v - preds[i]
		ssRes += res * res
		tot := v - mean
		ssTot += tot * tot
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// CrossValidate runs stratified k-fold cross validation of a classifier fit
// and returns the mean and standard deviation of fold accuracies.
func CrossValidate(x [][]float64, y []float64, folds int, seed int64, fit func(x [][]float64, y []float64) (Classifier, error)) (mean, std float64, err error) {
	if folds < 2 {
		folds = 2
	}
	assignments := foldAssignments(y, folds, seed)

	scores := make([]float64, 0, folds)
	for fold := 0; fold < folds; fold++ {
		var trainX, testX [][]float64
		var trainY, testY []float64
		for i := range y {
			if assignments[i] == fold {
				testX = append(testX, x[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, x[i])
				trainY = append(trainY, y[i])
			}
		}
		if len(testY) == 0 || len(trainY) == 0 {
			continue
		}
		model, fitErr := fit(trainX, trainY)
		if fitErr != nil {
			return 0, 0, fitErr
		}
		probs := make([]float64, len(testX))
		for i, row := range testX {
			probs[i] = model.PredictProba(row)
		}
		scores = append(scores, Accuracy(probs, testY))
	}
	if len(scores) == 0 {
		return 0, 0, ErrInsufficientData
	}
	if len(scores) == 1 {
		return scores[0], 0, nil
	}
	return stat.Mean(scores, nil), stat.StdDev(scores, nil), nil
}
