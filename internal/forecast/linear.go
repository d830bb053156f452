package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRidge keeps the normal equations solvable when a feature is constant
// or two features are collinear.
const DefaultRidge = 1e-3

// LinearRegression is ordinary least squares on standardized features with a
// small ridge penalty.
type LinearRegression struct {
	ridge     float64
	means     []float64
	scales    []float64
	coeffs    []float64
	intercept float64
	fitted    bool
}

// NewLinearRegression creates an unfitted linear model.
func NewLinearRegression(ridge float64) *LinearRegression {
	if ridge < 0 {
		ridge = 0
	}
	return &LinearRegression{ridge: ridge}
}

func (m *LinearRegression) Name() string { return ModelLinear }

// Fit solves (X'X + λI)β = X'y on standardized X and centered y by Cholesky
// factorization.
func (m *LinearRegression) Fit(features [][]float64, target []float64) error {
	k, err := validateShape(features, target)
	if err != nil {
		return err
	}
	n := len(features)

	m.means = make([]float64, k)
	m.scales = make([]float64, k)
	col := make([]float64, n)
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			col[i] = features[i][j]
		}
		mean, scale := stat.PopMeanStdDev(col, nil)
		if scale == 0 || math.IsNaN(scale) {
			scale = 1
		}
		m.means[j] = mean
		m.scales[j] = scale
	}

	yMean := stat.Mean(target, nil)
	x := mat.NewDense(n, k, nil)
	y := mat.NewVecDense(n, nil)
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		m.standardize(features[i], row)
		x.SetRow(i, row)
		y.SetVec(i, target[i]-yMean)
	}

	gram := mat.NewSymDense(k, nil)
	gram.SymOuterK(1, x.T())
	for j := 0; j < k; j++ {
		gram.SetSym(j, j, gram.At(j, j)+m.ridge)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return fmt.Errorf("linear regression: normal equations are not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return fmt.Errorf("linear regression: %w", err)
	}

	m.coeffs = make([]float64, k)
	for j := range m.coeffs {
		m.coeffs[j] = beta.AtVec(j)
	}
	m.intercept = yMean
	m.fitted = true
	return nil
}

func (m *LinearRegression) Predict(features [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(features))
	row := make([]float64, len(m.coeffs))
	for i, f := range features {
		if len(f) != len(m.coeffs) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(f), len(m.coeffs))
		}
		m.standardize(f, row)
		y := m.intercept
		for j, c := range m.coeffs {
			y += c * row[j]
		}
		out[i] = y
	}
	return out, nil
}

func (m *LinearRegression) standardize(src, dst []float64) {
	for j := range src {
		dst[j] = (src[j] - m.means[j]) / m.scales[j]
	}
}
