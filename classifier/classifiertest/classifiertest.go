// Package classifiertest builds small, fully deterministic model sets for
// tests. Every class is fitted on its noise-free centroid plus and minus a
// constant offset, so each model is a nearest-centroid classifier over the
// synthetic dataset's signatures.
package classifiertest

import (
	"testing"

	"organicscan/classifier"
	"organicscan/dataset"
	"organicscan/ml"
	"organicscan/spectral"
)

const offset = 0.025

func around(center spectral.Reading) [][]float64 {
	var up, down spectral.Reading
	for i, v := range center {
		up[i] = v + offset
		down[i] = v - offset
	}
	return [][]float64{up.Values(), down.Values()}
}

// Models returns a validated reference model set.
func Models(tb testing.TB) *classifier.Models {
	tb.Helper()

	var fruitX [][]float64
	var fruitY []int
	for _, f := range classifier.Fruits() {
		for _, organic := range []bool{false, true} {
			rows := around(dataset.Centroid(f, organic))
			fruitX = append(fruitX, rows...)
			for range rows {
				fruitY = append(fruitY, int(f))
			}
		}
	}
	fruitModel := ml.NewGaussianNB()
	if err := fruitModel.Train(fruitX, fruitY); err != nil {
		tb.Fatalf("train fruit model: %v", err)
	}

	labels, err := classifier.NewLabelDecoder(classifier.Fruits()...)
	if err != nil {
		tb.Fatalf("label decoder: %v", err)
	}
	models := &classifier.Models{Fruit: fruitModel, Labels: labels}

	for _, f := range classifier.Fruits() {
		var x [][]float64
		var y []int
		for _, organic := range []bool{false, true} {
			rows := around(dataset.Centroid(f, organic))
			x = append(x, rows...)
			for range rows {
				if organic {
					y = append(y, int(classifier.Organic))
				} else {
					y = append(y, int(classifier.NonOrganic))
				}
			}
		}
		model := ml.NewGaussianNB()
		if err := model.Train(x, y); err != nil {
			tb.Fatalf("train organic model for %s: %v", f, err)
		}
		models.Organic[f] = model
	}

	if err := models.Validate(); err != nil {
		tb.Fatalf("reference models invalid: %v", err)
	}
	return models
}

// SaveModels writes the reference set into dir and returns a store for it.
func SaveModels(tb testing.TB, dir string) *classifier.FileStore {
	tb.Helper()
	store := classifier.NewFileStore(dir)
	if err := store.Save(Models(tb)); err != nil {
		tb.Fatalf("save models: %v", err)
	}
	return store
}

// Scenario is a reading with its expected classification.
type Scenario struct {
	Name    string
	Reading spectral.Reading
	Fruit   classifier.Fruit
	Status  classifier.OrganicStatus
}

// Scenarios are the reference readings every correct model set must
// classify as labelled.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:    "apple organic",
			Reading: spectral.Reading{0.47, 0.55, 0.60, 0.64, 0.57, 0.50, 0.45, 0.41},
			Fruit:   classifier.Apple,
			Status:  classifier.Organic,
		},
		{
			Name:    "banana non-organic",
			Reading: spectral.Reading{0.72, 0.78, 0.82, 0.85, 0.80, 0.75, 0.68, 0.62},
			Fruit:   classifier.Banana,
			Status:  classifier.NonOrganic,
		},
		{
			Name:    "tomato organic",
			Reading: spectral.Reading{0.71, 0.44, 0.37, 0.40, 0.48, 0.55, 0.51, 0.46},
			Fruit:   classifier.Tomato,
			Status:  classifier.Organic,
		},
	}
}
