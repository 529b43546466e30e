package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics summarise how well predictions follow the true scores.
type Metrics struct {
	MAE               float64 `json:"meanAbsoluteError"`
	MSE               float64 `json:"meanSquaredError"`
	ExplainedVariance float64 `json:"explainedVariance"`
	R2                float64 `json:"r2"`
}

// Evaluate computes Metrics for predictions pred of targets y.
func Evaluate(y, pred []float64) (*Metrics, error) {
	if len(y) != len(pred) {
		return nil, fmt.Errorf("got %d predictions for %d targets", len(pred), len(y))
	}
	if len(y) == 0 {
		return nil, fmt.Errorf("no targets to evaluate")
	}

	residuals := make([]float64, len(y))
	var abs, sq float64
	for i := range y {
		r := y[i] - pred[i]
		residuals[i] = r
		abs += math.Abs(r)
		sq += r * r
	}
	n := float64(len(y))

	_, varY := stat.PopMeanVariance(y, nil)
	_, varRes := stat.PopMeanVariance(residuals, nil)

	m := &Metrics{
		MAE: abs / n,
		MSE: sq / n,
	}

	// A constant target has no variance to explain; a perfect fit scores 1.
	if varY == 0 {
		if sq == 0 {
			m.ExplainedVariance, m.R2 = 1, 1
		}
		return m, nil
	}

	m.ExplainedVariance = 1 - varRes/varY
	m.R2 = stat.RSquaredFrom(pred, y, nil)
	return m, nil
}
