// Package training fits the fruit model and the per-fruit organic models
// from labelled samples. It runs offline only; the server never retrains.
package training

import (
	"errors"
	"fmt"
	"time"

	"organicscan/classifier"
	"organicscan/dataset"
	"organicscan/ml"
)

type Options struct {
	ModelType    string
	MaxTreeDepth int
	TestRatio    float64
	Seed         int64
}

func DefaultOptions() Options {
	return Options{
		ModelType:    ml.ModelTypeNaiveBayes,
		MaxTreeDepth: 10,
		TestRatio:    0.2,
		Seed:         42,
	}
}

// Report holds held-out accuracy for every model of a run.
type Report struct {
	ModelType string                   `json:"model_type"`
	Samples   int                      `json:"samples"`
	Fruit     ml.Evaluation            `json:"fruit"`
	Organic   map[string]ml.Evaluation `json:"organic"`
	Duration  time.Duration            `json:"duration"`
}

// MinOrganicAccuracy is the lowest held-out accuracy across the organic
// models.
func (r *Report) MinOrganicAccuracy() float64 {
	lowest := 1.0
	for _, eval := range r.Organic {
		if eval.Accuracy < lowest {
			lowest = eval.Accuracy
		}
	}
	return lowest
}

// Train splits the samples, fits every model on the training share and
// evaluates it on the rest. The returned set is validated and ready for
// classifier.FileStore.Save.
func Train(samples []dataset.Sample, opts Options) (*classifier.Models, *Report, error) {
	if len(samples) == 0 {
		return nil, nil, errors.New("no training samples")
	}
	if opts.ModelType == "" {
		opts.ModelType = ml.ModelTypeNaiveBayes
	}
	if _, err := ml.NewModel(opts.ModelType, opts.MaxTreeDepth); err != nil {
		return nil, nil, err
	}
	started := time.Now()

	labels, err := classifier.NewLabelDecoder(classifier.Fruits()...)
	if err != nil {
		return nil, nil, err
	}

	byFruit := make(map[classifier.Fruit][]dataset.Sample, classifier.NumFruits)
	features := make([][]float64, 0, len(samples))
	fruitLabels := make([]int, 0, len(samples))
	for _, s := range samples {
		idx, err := labels.Encode(s.Fruit)
		if err != nil {
			return nil, nil, fmt.Errorf("sample %s: %w", s.ID, err)
		}
		features = append(features, s.Values.Values())
		fruitLabels = append(fruitLabels, idx)
		byFruit[s.Fruit] = append(byFruit[s.Fruit], s)
	}

	report := &Report{
		ModelType: opts.ModelType,
		Samples:   len(samples),
		Organic:   make(map[string]ml.Evaluation, classifier.NumFruits),
	}
	models := &classifier.Models{Labels: labels}

	models.Fruit, report.Fruit, err = fit(opts, features, fruitLabels)
	if err != nil {
		return nil, nil, fmt.Errorf("fruit model: %w", err)
	}
	if models.Fruit.NumClasses() != labels.Len() {
		return nil, nil, fmt.Errorf("fruit model: samples cover %d of %d fruits", models.Fruit.NumClasses(), labels.Len())
	}

	for _, fruit := range classifier.Fruits() {
		group := byFruit[fruit]
		if len(group) == 0 {
			return nil, nil, fmt.Errorf("no samples for %s", fruit)
		}
		x := make([][]float64, len(group))
		y := make([]int, len(group))
		var seen [2]bool
		for i, s := range group {
			x[i] = s.Values.Values()
			y[i] = int(s.Status())
			seen[y[i]] = true
		}
		if !seen[classifier.NonOrganic] || !seen[classifier.Organic] {
			return nil, nil, fmt.Errorf("samples for %s must include both organic and non-organic produce", fruit)
		}

		model, eval, err := fit(opts, x, y)
		if err != nil {
			return nil, nil, fmt.Errorf("organic model for %s: %w", fruit, err)
		}
		models.Organic[fruit] = model
		report.Organic[fruit.String()] = eval
	}

	if err := models.Validate(); err != nil {
		return nil, nil, err
	}
	report.Duration = time.Since(started)
	return models, report, nil
}

func fit(opts Options, features [][]float64, labels []int) (ml.MLModel, ml.Evaluation, error) {
	trainX, trainY, testX, testY := ml.SplitDataset(features, labels, opts.TestRatio, opts.Seed)

	model, err := ml.NewModel(opts.ModelType, opts.MaxTreeDepth)
	if err != nil {
		return nil, ml.Evaluation{}, err
	}
	if err := model.Train(trainX, trainY); err != nil {
		return nil, ml.Evaluation{}, err
	}
	eval, err := ml.Evaluate(model, testX, testY)
	if err != nil {
		return nil, ml.Evaluation{}, err
	}
	return model, eval, nil
}
