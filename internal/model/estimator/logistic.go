package estimator

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	logisticMaxIter      = 10000
	logisticLearningRate = 0.1
	logisticTolerance    = 1e-6
)

// Logistic is a standard-scaled logistic regression fit by batch gradient
// descent. Scaling statistics are part of the model so serving applies the
// same transform the fit saw.
type Logistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean"`
	Std     []float64 `json:"std"`
}

// FitLogistic fits on x/y where y holds 0/1 labels. Returns ErrNotConverged
// when the loss has not stabilized within the iteration budget.
func FitLogistic(x [][]float64, y []float64) (*Logistic, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, ErrInsufficientData
	}
	d := len(x[0])

	mean, std := scalerStats(x)
	flat := make([]float64, 0, n*d)
	for _, row := range x {
		for j, v := range row {
			flat = append(flat, (v-mean[j])/std[j])
		}
	}
	xm := mat.NewDense(n, d, flat)

	w := mat.NewVecDense(d, nil)
	bias := 0.0
	probs := make([]float64, n)
	diff := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(d, nil)
	scores := mat.NewVecDense(n, nil)

	prevLoss := math.Inf(1)
	for iter := 0; iter < logisticMaxIter; iter++ {
		scores.MulVec(xm, w)

		loss := 0.0
		biasGrad := 0.0
		for i := 0; i < n; i++ {
			p := sigmoid(scores.AtVec(i) + bias)
			probs[i] = p
			loss += logLoss(y[i], p)
			delta := p - y[i]
			diff.SetVec(i, delta)
			biasGrad += delta
		}
		loss /= float64(n)

		grad.MulVec(xm.T(), diff)
		w.AddScaledVec(w, -logisticLearningRate/float64(n), grad)
		bias -= logisticLearningRate * biasGrad / float64(n)

		if math.Abs(prevLoss-loss) < logisticTolerance {
			weights := make([]float64, d)
			copy(weights, w.RawVector().Data)
			return &Logistic{Weights: weights, Bias: bias, Mean: mean, Std: std}, nil
		}
		prevLoss = loss
	}

	return nil, ErrNotConverged
}

func (m *Logistic) PredictProba(x []float64) float64 {
	score := m.Bias
	for j, w := range m.Weights {
		if j >= len(x) {
			break
		}
		score += w * (x[j] - m.Mean[j]) / m.Std[j]
	}
	return sigmoid(score)
}

func scalerStats(x [][]float64) (mean, std []float64) {
	n := float64(len(x))
	d := len(x[0])
	mean = make([]float64, d)
	std = make([]float64, d)
	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			diff := v - mean[j]
			std[j] += diff * diff
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			std[j] = 1
		}
	}
	return mean, std
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func logLoss(y, p float64) float64 {
	const eps = 1e-12
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}
