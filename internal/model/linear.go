package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Linear is ridge regression with an unpenalised intercept.
type Linear struct {
	Alpha     float64   `json:"alpha"`
	Weights   []float64 `json:"weights,omitempty"`
	Intercept float64   `json:"intercept"`
}

func NewLinear(alpha float64) *Linear {
	if alpha < 0 {
		alpha = 0
	}
	return &Linear{Alpha: alpha}
}

func (l *Linear) Kind() string { return KindLinear }

func (l *Linear) Fit(x *mat.Dense, y []float64) error {
	n, d, err := checkFitInput(x, y)
	if err != nil {
		return err
	}

	means := make([]float64, d)
	col := make([]float64, n)
	for j := range d {
		mat.Col(col, j, x)
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	centered := mat.NewDense(n, d, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - means[j] }, x)

	yc := make([]float64, n)
	for i := range y {
		yc[i] = y[i] - yMean
	}

	var gram mat.Dense
	gram.Mul(centered.T(), centered)

	lambda := l.Alpha * float64(n)
	sym := mat.NewSymDense(d, nil)
	for i := range d {
		for j := i; j < d; j++ {
			v := gram.At(i, j)
			if i == j {
				v += lambda + jitter
			}
			sym.SetSym(i, j, v)
		}
	}

	var rhs mat.VecDense
	rhs.MulVec(centered.T(), mat.NewVecDense(n, yc))

	w := mat.NewVecDense(d, nil)
	var chol mat.Cholesky
	if chol.Factorize(sym) {
		err = chol.SolveVecTo(w, &rhs)
	} else {
		err = w.SolveVec(sym, &rhs)
	}
	if err != nil {
		return fmt.Errorf("solving normal equations: %w", err)
	}

	l.Weights = w.RawVector().Data
	l.Intercept = yMean - mat.Dot(w, mat.NewVecDense(d, means))
	return nil
}

func (l *Linear) Predict(x *mat.Dense) ([]float64, error) {
	if len(l.Weights) == 0 {
		return nil, ErrNotFitted
	}

	n, err := checkPredictInput(x, len(l.Weights))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []float64{}, nil
	}

	var pred mat.VecDense
	pred.MulVec(x, mat.NewVecDense(len(l.Weights), l.Weights))

	out := make([]float64, n)
	for i := range out {
		out[i] = pred.AtVec(i) + l.Intercept
	}
	return out, nil
}
