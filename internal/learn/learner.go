// Package learn defines the trainable model capability the pipeline depends
// on and ships a gradient-boosted tree implementation of it.
//
// Feature matrices are row-major with NaN marking a missing cell.
package learn

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoRows is returned when fitting on an empty matrix.
	ErrNoRows = errors.New("learn: no training rows")
	// ErrSingleClass is returned when a classifier sees only one label.
	ErrSingleClass = errors.New("learn: labels contain a single class")
)

// Model is anything the codec can persist.
type Model interface {
	Kind() string
}

// Regressor predicts a continuous value per row.
type Regressor interface {
	Model
	Predict(x [][]float64) []float64
}

// Classifier predicts the probability of the positive class per row.
type Classifier interface {
	Model
	PredictProba(x [][]float64) []float64
}

// Learner fits models. Labels are 0 or 1 for classifiers.
type Learner interface {
	FitRegressor(x [][]float64, y []float64) (Regressor, error)
	FitClassifier(x [][]float64, y []int) (Classifier, error)
}

func checkShape(x [][]float64, n int) (int, error) {
	if len(x) == 0 {
		return 0, ErrNoRows
	}
	if len(x) != n {
		return 0, fmt.Errorf("learn: %d rows but %d labels", len(x), n)
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("learn: row %d has %d columns, want %d", i, len(row), width)
		}
	}
	return width, nil
}

// FiniteRows returns the indices of rows whose every cell is finite.
func FiniteRows(x [][]float64) []int {
	var out []int
	for i, row := range x {
		ok := true
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}
