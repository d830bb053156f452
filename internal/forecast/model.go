// Package forecast trains a regression model on the biweekly series and
// projects demand forward autoregressively.
package forecast

import (
	"errors"
	"fmt"
	"strings"
)

// Model is a swappable regression strategy.
type Model interface {
	Name() string
	Fit(features [][]float64, target []float64) error
	Predict(features [][]float64) ([]float64, error)
}

// ErrNotFitted is returned by Predict before a successful Fit.
var ErrNotFitted = errors.New("model is not fitted")

const (
	ModelLinear = "linear"
	ModelTree   = "tree"
)

// ModelFactory builds a fresh, unfitted model.
type ModelFactory func() Model

// NewModelFactory resolves a model name from configuration.
func NewModelFactory(name string, treeDepth, treeMinLeaf int) (ModelFactory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ModelLinear:
		return func() Model { return NewLinearRegression(DefaultRidge) }, nil
	case ModelTree:
		return func() Model { return NewRegressionTree(treeDepth, treeMinLeaf) }, nil
	default:
		return nil, fmt.Errorf("unknown forecast model %q", name)
	}
}

func validateShape(features [][]float64, target []float64) (int, error) {
	if len(features) == 0 {
		return 0, fmt.Errorf("no training rows")
	}
	if len(features) != len(target) {
		return 0, fmt.Errorf("features have %d rows but target has %d", len(features), len(target))
	}
	width := len(features[0])
	for i, row := range features {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}
	return width, nil
}
