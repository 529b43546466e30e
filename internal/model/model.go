// Package model fits regression surfaces from pair feature rows to a
// compatibility score and persists them as JSON artifacts.
package model

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	KindRBF    = "rbf"
	KindLinear = "linear"
)

var ErrNotFitted = errors.New("model is not fitted")

// Regressor is a model that maps feature rows to scalar predictions.
type Regressor interface {
	Kind() string
	Fit(x *mat.Dense, y []float64) error
	Predict(x *mat.Dense) ([]float64, error)
}

// Options configure a new regressor.
type Options struct {
	Kind string
	// Gamma is the RBF kernel width; zero selects 1/(features*Var(X)).
	Gamma float64
	// Alpha is the ridge penalty per training sample.
	Alpha float64
	// Landmarks caps the number of training rows used as kernel centres.
	Landmarks int
	Seed      uint64
}

// New builds an unfitted regressor of the requested kind.
func New(opts Options) (Regressor, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", KindRBF:
		return NewKernelRidge(opts.Gamma, opts.Alpha, opts.Landmarks, opts.Seed), nil
	case KindLinear:
		return NewLinear(opts.Alpha), nil
	default:
		return nil, fmt.Errorf("unsupported model kind: %s", opts.Kind)
	}
}

func checkFitInput(x *mat.Dense, y []float64) (int, int, error) {
	if x == nil {
		return 0, 0, errors.New("training matrix is empty")
	}
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errors.New("training matrix is empty")
	}
	if len(y) != n {
		return 0, 0, fmt.Errorf("got %d targets for %d rows", len(y), n)
	}
	return n, d, nil
}

func checkPredictInput(x *mat.Dense, width int) (int, error) {
	if x == nil {
		return 0, nil
	}
	n, d := x.Dims()
	if d != width {
		return 0, fmt.Errorf("got %d features, model expects %d", d, width)
	}
	return n, nil
}
