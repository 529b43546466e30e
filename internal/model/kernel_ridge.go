package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultAlpha     = 1e-4
	DefaultLandmarks = 500

	blockRows = 1024
	jitter    = 1e-8
)

// KernelRidge is RBF kernel ridge regression on a Nyström landmark subset:
// predictions are k(x, centres)·coef + intercept, with coef solving
// (KnmᵀKnm + λKmm)·coef = Knmᵀ(y - intercept) and λ = Alpha·n.
type KernelRidge struct {
	Gamma     float64     `json:"gamma"`
	Alpha     float64     `json:"alpha"`
	Landmarks int         `json:"landmarks"`
	Seed      uint64      `json:"seed"`
	Centers   [][]float64 `json:"centers,omitempty"`
	Coef      []float64   `json:"coef,omitempty"`
	Intercept float64     `json:"intercept"`

	centers *mat.Dense
	norms   []float64
}

func NewKernelRidge(gamma, alpha float64, landmarks int, seed uint64) *KernelRidge {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	if landmarks <= 0 {
		landmarks = DefaultLandmarks
	}
	return &KernelRidge{Gamma: gamma, Alpha: alpha, Landmarks: landmarks, Seed: seed}
}

func (k *KernelRidge) Kind() string { return KindRBF }

func (k *KernelRidge) Fit(x *mat.Dense, y []float64) error {
	n, d, err := checkFitInput(x, y)
	if err != nil {
		return err
	}

	if k.Gamma <= 0 {
		k.Gamma = scaleGamma(x)
	}

	k.Centers = pickCenters(x, k.Landmarks, k.Seed)
	k.prepare()
	m := len(k.Centers)

	k.Intercept = stat.Mean(y, nil)

	// Accumulate KnmᵀKnm and Knmᵀy block by block so Knm is never held whole.
	gram := mat.NewDense(m, m, nil)
	rhs := mat.NewVecDense(m, nil)
	partial := mat.NewDense(m, m, nil)
	partialRHS := mat.NewVecDense(m, nil)

	for start := 0; start < n; start += blockRows {
		end := min(start+blockRows, n)
		kb := k.kernel(x.Slice(start, end, 0, d).(*mat.Dense))

		yb := make([]float64, end-start)
		for i := range yb {
			yb[i] = y[start+i] - k.Intercept
		}

		partial.Mul(kb.T(), kb)
		gram.Add(gram, partial)
		partialRHS.MulVec(kb.T(), mat.NewVecDense(len(yb), yb))
		rhs.AddVec(rhs, partialRHS)
	}

	kmm := k.kernel(k.centers)
	lambda := k.Alpha * float64(n)

	sym := mat.NewSymDense(m, nil)
	for i := range m {
		for j := i; j < m; j++ {
			v := gram.At(i, j) + lambda*kmm.At(i, j)
			if i == j {
				v += jitter
			}
			sym.SetSym(i, j, v)
		}
	}

	coef := mat.NewVecDense(m, nil)
	var chol mat.Cholesky
	if chol.Factorize(sym) {
		err = chol.SolveVecTo(coef, rhs)
	} else {
		err = coef.SolveVec(sym, rhs)
	}
	if err != nil {
		return fmt.Errorf("solving kernel system: %w", err)
	}

	k.Coef = coef.RawVector().Data
	return nil
}

func (k *KernelRidge) Predict(x *mat.Dense) ([]float64, error) {
	if k.centers == nil || len(k.Coef) != len(k.Centers) {
		return nil, ErrNotFitted
	}

	_, d := k.centers.Dims()
	n, err := checkPredictInput(x, d)
	if err != nil {
		return nil, err
	}

	out := make([]float64, 0, n)
	coef := mat.NewVecDense(len(k.Coef), k.Coef)
	for start := 0; start < n; start += blockRows {
		end := min(start+blockRows, n)
		kb := k.kernel(x.Slice(start, end, 0, d).(*mat.Dense))

		var pred mat.VecDense
		pred.MulVec(kb, coef)
		for i := range end - start {
			out = append(out, pred.AtVec(i)+k.Intercept)
		}
	}

	return out, nil
}

// checkShape reports centres that do not have width columns or do not pair
// up with the coefficients.
func (k *KernelRidge) checkShape(width int) error {
	for i, c := range k.Centers {
		if len(c) != width {
			return fmt.Errorf("centre %d has %d columns, expected %d", i, len(c), width)
		}
	}
	if len(k.Coef) != len(k.Centers) {
		return fmt.Errorf("%d coefficients for %d centres", len(k.Coef), len(k.Centers))
	}
	return nil
}

// prepare builds the dense centre matrix from Centers. Fit and Load call it,
// so Predict only reads and is safe for concurrent use.
func (k *KernelRidge) prepare() {
	k.centers, k.norms = nil, nil

	m := len(k.Centers)
	if m == 0 {
		return
	}
	d := len(k.Centers[0])
	data := make([]float64, 0, m*d)
	for _, c := range k.Centers {
		data = append(data, c...)
	}
	k.centers = mat.NewDense(m, d, data)
	k.norms = rowNorms(k.centers)
}

// kernel returns exp(-gamma·|a_i - c_j|²) for every row a_i and centre c_j.
func (k *KernelRidge) kernel(a *mat.Dense) *mat.Dense {
	r, _ := a.Dims()
	m, _ := k.centers.Dims()

	out := mat.NewDense(r, m, nil)
	out.Mul(a, k.centers.T())

	an := rowNorms(a)
	for i := range r {
		for j := range m {
			dist := an[i] + k.norms[j] - 2*out.At(i, j)
			if dist < 0 {
				dist = 0
			}
			out.Set(i, j, math.Exp(-k.Gamma*dist))
		}
	}
	return out
}

func rowNorms(a *mat.Dense) []float64 {
	r, _ := a.Dims()
	norms := make([]float64, r)
	for i := range r {
		row := a.RawRowView(i)
		norms[i] = mat.Dot(mat.NewVecDense(len(row), row), mat.NewVecDense(len(row), row))
	}
	return norms
}

// scaleGamma is 1/(features·Var(X)) over every element of x.
func scaleGamma(x *mat.Dense) float64 {
	n, d := x.Dims()
	values := make([]float64, 0, n*d)
	for i := range n {
		values = append(values, x.RawRowView(i)...)
	}

	_, variance := stat.PopMeanVariance(values, nil)
	if variance <= 0 {
		return 1 / float64(d)
	}
	return 1 / (float64(d) * variance)
}

// pickCenters samples up to limit distinct rows of x.
func pickCenters(x *mat.Dense, limit int, seed uint64) [][]float64 {
	n, _ := x.Dims()

	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	if n > limit {
		rnd := rand.New(rand.NewPCG(seed, seed+1))
		rows = rnd.Perm(n)[:limit]
	}

	centers := make([][]float64, 0, len(rows))
	for _, i := range rows {
		row := x.RawRowView(i)
		c := make([]float64, len(row))
		copy(c, row)
		centers = append(centers, c)
	}
	return centers
}
