package model

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/spigell/matchmaker/internal/features"
	"github.com/spigell/matchmaker/internal/generator"
)

func trainingSet(t *testing.T, employers, employees int) *features.Set {
	t.Helper()

	g, err := generator.New(11)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	rs, es := g.Profiles(employers), g.Profiles(employees)

	set, err := features.TrainingSet(rs, es, generator.Pairs(rs, es))
	if err != nil {
		t.Fatalf("training set: %v", err)
	}
	return set
}

func TestKernelRidgeLearnsScore(t *testing.T) {
	set := trainingSet(t, 30, 20)

	m := NewKernelRidge(0, 0, 300, 1)
	if err := m.Fit(set.X, set.Y); err != nil {
		t.Fatalf("fit: %v", err)
	}

	pred, err := m.Predict(set.X)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	metrics, err := Evaluate(set.Y, pred)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if metrics.R2 < 0.7 {
		t.Fatalf("expected R2 >= 0.7, got %+v", metrics)
	}
	if m.Gamma <= 0 {
		t.Fatalf("expected scaled gamma to be set")
	}
}

func TestKernelRidgeLandmarkCap(t *testing.T) {
	set := trainingSet(t, 10, 10)

	m := NewKernelRidge(0.05, 0, 25, 3)
	if err := m.Fit(set.X, set.Y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(m.Centers) != 25 || len(m.Coef) != 25 {
		t.Fatalf("expected 25 centres, got %d/%d", len(m.Centers), len(m.Coef))
	}
}

func TestLinearRecoversWeights(t *testing.T) {
	x := mat.NewDense(6, 2, []float64{
		1, 0,
		2, 1,
		3, 5,
		4, 2,
		5, 3,
		6, 1,
	})
	y := make([]float64, 6)
	for i := range y {
		y[i] = 2*x.At(i, 0) - 0.5*x.At(i, 1) + 1
	}

	m := NewLinear(0)
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("fit: %v", err)
	}

	if math.Abs(m.Weights[0]-2) > 1e-6 || math.Abs(m.Weights[1]+0.5) > 1e-6 || math.Abs(m.Intercept-1) > 1e-6 {
		t.Fatalf("unexpected coefficients: %v + %v", m.Weights, m.Intercept)
	}

	pred, err := m.Predict(mat.NewDense(1, 2, []float64{10, 2}))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if math.Abs(pred[0]-20) > 1e-6 {
		t.Fatalf("expected 20, got %v", pred[0])
	}
}

func TestPredictErrors(t *testing.T) {
	if _, err := NewKernelRidge(0, 0, 0, 0).Predict(mat.NewDense(1, 2, nil)); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}
	if _, err := NewLinear(0).Predict(mat.NewDense(1, 2, nil)); !errors.Is(err, ErrNotFitted) {
		t.Fatalf("expected ErrNotFitted, got %v", err)
	}

	m := NewLinear(0)
	if err := m.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), []float64{1, 2, 3}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if _, err := m.Predict(mat.NewDense(1, 2, nil)); err == nil {
		t.Fatalf("expected width mismatch error")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    string
		expect  string
		wantErr bool
	}{
		{kind: "", expect: KindRBF},
		{kind: " RBF ", expect: KindRBF},
		{kind: "linear", expect: KindLinear},
		{kind: "svm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			r, err := New(Options{Kind: tt.kind})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil || r.Kind() != tt.expect {
				t.Fatalf("expected %s, got %v (%v)", tt.expect, r, err)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	m, err := Evaluate([]float64{1, 2, 3}, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.MAE != 0 || m.MSE != 0 || m.R2 != 1 || m.ExplainedVariance != 1 {
		t.Fatalf("unexpected perfect-fit metrics: %+v", m)
	}

	m, err = Evaluate([]float64{0, 1}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.MAE != 0.5 || m.MSE != 0.25 || m.R2 != 0 {
		t.Fatalf("unexpected mean-predictor metrics: %+v", m)
	}

	if _, err := Evaluate([]float64{1}, nil); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	set := trainingSet(t, 6, 5)

	m := NewKernelRidge(0, 0, 20, 2)
	if err := m.Fit(set.X, set.Y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	want, _ := m.Predict(set.X)

	artifact, err := NewArtifact(m, len(set.Y), nil)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "model.json")
	if err := Save(path, artifact); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	r, err := loaded.Regressor()
	if err != nil {
		t.Fatalf("regressor: %v", err)
	}

	got, err := r.Predict(set.X)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("prediction %d differs after reload: %v vs %v", i, got[i], want[i])
		}
	}
}

func TestLoadRejectsMisalignedFeatures(t *testing.T) {
	m := NewLinear(0)
	if err := m.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1, 2}); err != nil {
		t.Fatalf("fit: %v", err)
	}

	artifact, _ := NewArtifact(m, 2, nil)
	artifact.Features = []string{"x"}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := Save(path, artifact); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := Load(path); !errors.Is(err, features.ErrFeatureMismatch) {
		t.Fatalf("expected feature mismatch, got %v", err)
	}
}

func TestLoadRejectsMalformedCentres(t *testing.T) {
	set := trainingSet(t, 4, 4)

	tests := []struct {
		name   string
		mangle func(k *KernelRidge)
	}{
		{name: "short row", mangle: func(k *KernelRidge) { k.Centers[1] = k.Centers[1][:3] }},
		{name: "missing coefficient", mangle: func(k *KernelRidge) { k.Coef = k.Coef[1:] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewKernelRidge(0, 0, 5, 4)
			if err := m.Fit(set.X, set.Y); err != nil {
				t.Fatalf("fit: %v", err)
			}
			tt.mangle(m)

			artifact, err := NewArtifact(m, len(set.Y), nil)
			if err != nil {
				t.Fatalf("artifact: %v", err)
			}
			path := filepath.Join(t.TempDir(), "model.json")
			if err := Save(path, artifact); err != nil {
				t.Fatalf("save: %v", err)
			}

			if _, err := Load(path); err == nil {
				t.Fatalf("expected load error")
			}
		})
	}
}
