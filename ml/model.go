package ml

import (
	"errors"
	"fmt"
	"math"
)

const (
	ModelTypeNaiveBayes   = "naive_bayes"
	ModelTypeDecisionTree = "decision_tree"
)

var ErrNotTrained = errors.New("model not trained")

// MLModel is a trained probabilistic classifier over fixed-width feature
// vectors. Implementations must be safe for concurrent PredictProba calls
// once trained or loaded.
type MLModel interface {
	Type() string
	Train(features [][]float64, labels []int) error
	// PredictProba returns one probability per class, indexed by label.
	PredictProba(features []float64) ([]float64, error)
	NumClasses() int
	// NumFeatures is the input width the model was trained on.
	NumFeatures() int
	Save(path string) error
	Load(path string) error
}

// Argmax returns the index of the largest probability. Ties go to the lowest
// index so equal scores always resolve to the same class.
func Argmax(probs []float64) (int, error) {
	if len(probs) == 0 {
		return 0, errors.New("empty probability vector")
	}
	best := 0
	for i, p := range probs {
		if math.IsNaN(p) {
			return 0, fmt.Errorf("probability %d is NaN", i)
		}
		if p > probs[best] {
			best = i
		}
	}
	return best, nil
}

// Predict returns the most probable class and its probability.
func Predict(model MLModel, features []float64) (int, float64, error) {
	probs, err := model.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	label, err := Argmax(probs)
	if err != nil {
		return 0, 0, err
	}
	return label, probs[label], nil
}

func validateTrainingSet(features [][]float64, labels []int) (int, error) {
	if len(features) == 0 || len(labels) == 0 {
		return 0, errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return 0, errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	if width == 0 {
		return 0, errors.New("features have zero width")
	}
	for i, row := range features {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}
	for i, label := range labels {
		if label < 0 {
			return 0, fmt.Errorf("label %d is negative", i)
		}
	}
	return width, nil
}

func numClasses(labels []int) int {
	n := 0
	for _, label := range labels {
		if label+1 > n {
			n = label + 1
		}
	}
	return n
}
