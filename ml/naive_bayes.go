package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const defaultVarSmoothing = 1e-9

// GaussianNB is a Gaussian naive Bayes classifier with one variance per
// feature pooled across classes, which makes its decision surface linear.
type GaussianNB struct {
	VarSmoothing float64

	priors    []float64
	means     [][]float64
	variances []float64
}

type gaussianNBJSON struct {
	VarSmoothing float64     `json:"var_smoothing"`
	Priors       []float64   `json:"priors"`
	Means        [][]float64 `json:"means"`
	Variances    []float64   `json:"variances"`
}

func NewGaussianNB() *GaussianNB {
	return &GaussianNB{VarSmoothing: defaultVarSmoothing}
}

func (nb *GaussianNB) Type() string { return ModelTypeNaiveBayes }

func (nb *GaussianNB) NumClasses() int { return len(nb.priors) }

func (nb *GaussianNB) NumFeatures() int { return len(nb.variances) }

func (nb *GaussianNB) Train(features [][]float64, labels []int) error {
	width, err := validateTrainingSet(features, labels)
	if err != nil {
		return err
	}
	classes := numClasses(labels)
	means, counts := columnMeans(features, labels, classes, width)
	for c, count := range counts {
		if count == 0 {
			return fmt.Errorf("class %d has no samples", c)
		}
	}

	variances := pooledVariance(features, labels, means, width)
	maxVar := 0.0
	for _, v := range variances {
		maxVar = math.Max(maxVar, v)
	}
	epsilon := nb.VarSmoothing * maxVar
	if epsilon <= 0 {
		epsilon = defaultVarSmoothing
	}
	for j := range variances {
		variances[j] += epsilon
	}

	priors := make([]float64, classes)
	for c, count := range counts {
		priors[c] = float64(count) / float64(len(labels))
	}

	nb.priors = priors
	nb.means = means
	nb.variances = variances
	return nil
}

func (nb *GaussianNB) PredictProba(features []float64) ([]float64, error) {
	if len(nb.priors) == 0 {
		return nil, ErrNotTrained
	}
	if len(features) != len(nb.variances) {
		return nil, errors.New("feature width mismatch")
	}

	scores := make([]float64, len(nb.priors))
	for c := range scores {
		score := math.Log(nb.priors[c])
		for j, x := range features {
			variance := nb.variances[j]
			diff := x - nb.means[c][j]
			score -= 0.5*math.Log(2*math.Pi*variance) + diff*diff/(2*variance)
		}
		scores[c] = score
	}
	return softmaxLog(scores), nil
}

func (nb *GaussianNB) MarshalJSON() ([]byte, error) {
	if len(nb.priors) == 0 {
		return nil, ErrNotTrained
	}
	return json.Marshal(gaussianNBJSON{
		VarSmoothing: nb.VarSmoothing,
		Priors:       nb.priors,
		Means:        nb.means,
		Variances:    nb.variances,
	})
}

func (nb *GaussianNB) UnmarshalJSON(data []byte) error {
	var payload gaussianNBJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if len(payload.Priors) == 0 || len(payload.Priors) != len(payload.Means) {
		return errors.New("naive bayes priors and means disagree")
	}
	for c, row := range payload.Means {
		if len(row) != len(payload.Variances) {
			return fmt.Errorf("naive bayes means for class %d have width %d, expected %d", c, len(row), len(payload.Variances))
		}
	}
	for j, v := range payload.Variances {
		if !(v > 0) {
			return fmt.Errorf("naive bayes variance %d is not positive", j)
		}
	}
	for c, p := range payload.Priors {
		if !(p > 0) || p > 1 {
			return fmt.Errorf("naive bayes prior %d is outside (0, 1]", c)
		}
	}
	nb.VarSmoothing = payload.VarSmoothing
	nb.priors = payload.Priors
	nb.means = payload.Means
	nb.variances = payload.Variances
	return nil
}

func (nb *GaussianNB) Save(path string) error {
	return SaveModel(path, nb)
}

func (nb *GaussianNB) Load(path string) error {
	return loadInto(path, nb)
}
