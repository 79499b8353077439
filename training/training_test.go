package training

import (
	"testing"

	"organicscan/classifier"
	"organicscan/classifier/classifiertest"
	"organicscan/dataset"
	"organicscan/ml"
)

func generate(t *testing.T) []dataset.Sample {
	t.Helper()
	samples, err := dataset.Generate(dataset.DefaultConfig())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return samples
}

func TestTrainNaiveBayes(t *testing.T) {
	models, report, err := Train(generate(t), DefaultOptions())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if report.Samples != 200*2*classifier.NumFruits {
		t.Fatalf("unexpected sample count %d", report.Samples)
	}
	if report.Fruit.Accuracy < 0.95 {
		t.Fatalf("fruit accuracy %.3f below 0.95", report.Fruit.Accuracy)
	}
	if len(report.Organic) != classifier.NumFruits {
		t.Fatalf("expected %d organic reports, got %d", classifier.NumFruits, len(report.Organic))
	}
	if acc := report.MinOrganicAccuracy(); acc < 0.75 {
		t.Fatalf("organic accuracy %.3f below 0.75", acc)
	}

	c, err := classifier.NewWithModels(models, nil)
	if err != nil {
		t.Fatalf("NewWithModels: %v", err)
	}
	for _, sc := range classifiertest.Scenarios() {
		t.Run(sc.Name, func(t *testing.T) {
			result, err := c.Predict(sc.Reading)
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if result.Fruit != sc.Fruit || result.OrganicStatus != sc.Status {
				t.Fatalf("expected %s/%s, got %s/%s", sc.Fruit, sc.Status, result.Fruit, result.OrganicStatus)
			}
		})
	}
}

func TestTrainDecisionTree(t *testing.T) {
	opts := DefaultOptions()
	opts.ModelType = ml.ModelTypeDecisionTree
	models, report, err := Train(generate(t), opts)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if models.Fruit.Type() != ml.ModelTypeDecisionTree {
		t.Fatalf("expected decision tree, got %s", models.Fruit.Type())
	}
	if report.Fruit.Accuracy < 0.95 {
		t.Fatalf("fruit accuracy %.3f below 0.95", report.Fruit.Accuracy)
	}
}

func TestTrainIsDeterministic(t *testing.T) {
	samples := generate(t)
	_, a, err := Train(samples, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	_, b, err := Train(samples, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if a.Fruit.Correct != b.Fruit.Correct {
		t.Fatalf("fruit results differ: %d vs %d", a.Fruit.Correct, b.Fruit.Correct)
	}
	for name, eval := range a.Organic {
		if b.Organic[name].Correct != eval.Correct {
			t.Fatalf("%s results differ", name)
		}
	}
}

func TestTrainRejectsIncompleteData(t *testing.T) {
	samples := generate(t)

	var noTomato, onlyOrganicApple []dataset.Sample
	for _, s := range samples {
		if s.Fruit != classifier.Tomato {
			noTomato = append(noTomato, s)
		}
		if s.Fruit != classifier.Apple || s.Organic {
			onlyOrganicApple = append(onlyOrganicApple, s)
		}
	}

	tests := map[string][]dataset.Sample{
		"empty":         nil,
		"missing fruit": noTomato,
		"single status": onlyOrganicApple,
	}
	for name, input := range tests {
		if _, _, err := Train(input, DefaultOptions()); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	opts := DefaultOptions()
	opts.ModelType = "svm"
	if _, _, err := Train(samples, opts); err == nil {
		t.Fatal("expected error for unknown model type")
	}
}
