package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

const defaultTestRatio = 0.2

// SplitDataset performs a seeded, stratified train/test split: every label
// contributes the same share of its rows to the test set.
func SplitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = defaultTestRatio
	}

	byLabel := make(map[int][]int)
	for i, label := range labels {
		byLabel[label] = append(byLabel[label], i)
	}
	keys := make([]int, 0, len(byLabel))
	for label := range byLabel {
		keys = append(keys, label)
	}
	sort.Ints(keys)

	rnd := rand.New(rand.NewSource(seed))
	for _, label := range keys {
		indices := byLabel[label]
		rnd.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

		testCount := int(math.Round(float64(len(indices)) * testRatio))
		if testCount >= len(indices) {
			testCount = len(indices) - 1
		}
		for i, idx := range indices {
			if i < testCount {
				testX = append(testX, features[idx])
				testY = append(testY, labels[idx])
			} else {
				trainX = append(trainX, features[idx])
				trainY = append(trainY, labels[idx])
			}
		}
	}
	return trainX, trainY, testX, testY
}

// Evaluation summarises a model on held-out rows.
type Evaluation struct {
	Samples  int     `json:"samples"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
	// Recall per class label.
	Recall []float64 `json:"recall"`
}

func Evaluate(model MLModel, testX [][]float64, testY []int) (Evaluation, error) {
	if len(testX) != len(testY) {
		return Evaluation{}, errors.New("features and labels size mismatch")
	}
	eval := Evaluation{Samples: len(testX), Recall: make([]float64, model.NumClasses())}
	if len(testX) == 0 {
		return eval, nil
	}

	actual := make([]int, model.NumClasses())
	hits := make([]int, model.NumClasses())
	for i, feature := range testX {
		label, _, err := Predict(model, feature)
		if err != nil {
			return Evaluation{}, err
		}
		if testY[i] < len(actual) {
			actual[testY[i]]++
		}
		if label == testY[i] {
			eval.Correct++
			hits[label]++
		}
	}
	eval.Accuracy = float64(eval.Correct) / float64(len(testX))
	for c := range eval.Recall {
		if actual[c] > 0 {
			eval.Recall[c] = float64(hits[c]) / float64(actual[c])
		}
	}
	return eval, nil
}
