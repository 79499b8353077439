package classifier_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"organicscan/classifier"
	"organicscan/classifier/classifiertest"
	"organicscan/ml"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := classifiertest.Models(t)
	store := classifier.NewFileStore(dir)
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	for _, name := range classifier.ArtifactNames() {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("artifact %s missing: %v", name, err)
		}
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Labels.Len() != classifier.NumFruits {
		t.Fatalf("expected %d labels, got %d", classifier.NumFruits, got.Labels.Len())
	}

	for _, sc := range classifiertest.Scenarios() {
		wantProbs, _ := want.Fruit.PredictProba(sc.Reading.Values())
		gotProbs, err := got.Fruit.PredictProba(sc.Reading.Values())
		if err != nil {
			t.Fatalf("%s: %v", sc.Name, err)
		}
		for i := range wantProbs {
			if wantProbs[i] != gotProbs[i] {
				t.Fatalf("%s: fruit probability %d changed: %v vs %v", sc.Name, i, wantProbs[i], gotProbs[i])
			}
		}
		label, _, err := ml.Predict(got.Organic[sc.Fruit], sc.Reading.Values())
		if err != nil {
			t.Fatalf("%s: %v", sc.Name, err)
		}
		if classifier.OrganicStatus(label) != sc.Status {
			t.Fatalf("%s: expected %s, got %s", sc.Name, sc.Status, classifier.OrganicStatus(label))
		}
	}
}

func TestFileStoreMissingArtifacts(t *testing.T) {
	for _, name := range classifier.ArtifactNames() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			store := classifiertest.SaveModels(t, dir)
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				t.Fatal(err)
			}
			_, err := store.Load()
			if err == nil || !strings.Contains(err.Error(), "not found") {
				t.Fatalf("expected not found error, got %v", err)
			}
		})
	}
}

func TestFileStoreRejectsIncompleteOrganicSet(t *testing.T) {
	dir := t.TempDir()
	classifiertest.SaveModels(t, dir)
	path := filepath.Join(dir, classifier.OrganicModelsFile)
	payload := `{"Apple": {"type": "naive_bayes", "model": {}}}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := classifier.NewFileStore(dir).Load(); err == nil {
		t.Fatal("expected error for incomplete organic models")
	}
}

func TestFileStoreRejectsLabelMismatch(t *testing.T) {
	dir := t.TempDir()
	classifiertest.SaveModels(t, dir)
	path := filepath.Join(dir, classifier.LabelEncoderFile)
	if err := os.WriteFile(path, []byte(`{"classes":["Apple","Banana"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := classifier.NewFileStore(dir).Load()
	if err == nil || !strings.Contains(err.Error(), "label decoder") {
		t.Fatalf("expected label mismatch error, got %v", err)
	}
}

func TestFileStoreRejectsCorruptJSON(t *testing.T) {
	dir := t.TempDir()
	classifiertest.SaveModels(t, dir)
	path := filepath.Join(dir, classifier.FruitModelFile)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := classifier.NewFileStore(dir).Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFileStoreSaveValidates(t *testing.T) {
	models := classifiertest.Models(t)
	models.Labels = nil
	err := classifier.NewFileStore(t.TempDir()).Save(models)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if errors.Is(err, classifier.ErrModelUnavailable) {
		t.Fatal("save errors are plain validation errors")
	}
}

func TestCorruptArtifactsAreUnavailable(t *testing.T) {
	narrow := ml.NewGaussianNB()
	if err := narrow.Train([][]float64{{0.1}, {0.2}, {0.5}, {0.6}, {0.9}, {1.0}}, []int{0, 0, 1, 1, 2, 2}); err != nil {
		t.Fatal(err)
	}

	tests := map[string]func(t *testing.T, dir string){
		"cyclic tree": func(t *testing.T, dir string) {
			payload := `{"type":"decision_tree","model":{"max_depth":1,"classes":3,"width":8,"nodes":[` +
				`{"feature_idx":0,"threshold":0.5,"left_child":0,"right_child":0,"is_leaf":false}]}}`
			if err := os.WriteFile(filepath.Join(dir, classifier.FruitModelFile), []byte(payload), 0o644); err != nil {
				t.Fatal(err)
			}
		},
		"backward child": func(t *testing.T, dir string) {
			payload := `{"type":"decision_tree","model":{"max_depth":2,"classes":3,"width":8,"nodes":[` +
				`{"feature_idx":0,"threshold":0.5,"left_child":1,"right_child":2,"is_leaf":false},` +
				`{"class_label":0,"is_leaf":true,"distribution":[1,0,0]},` +
				`{"feature_idx":1,"threshold":0.5,"left_child":0,"right_child":1,"is_leaf":false}]}}`
			if err := os.WriteFile(filepath.Join(dir, classifier.FruitModelFile), []byte(payload), 0o644); err != nil {
				t.Fatal(err)
			}
		},
		"wrong width": func(t *testing.T, dir string) {
			if err := ml.SaveModel(filepath.Join(dir, classifier.FruitModelFile), narrow); err != nil {
				t.Fatal(err)
			}
		},
	}

	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			store := classifiertest.SaveModels(t, dir)
			corrupt(t, dir)

			if _, err := store.Load(); err == nil {
				t.Fatal("expected load error")
			}
			c := classifier.New(store, nil)
			_, err := c.Predict(classifiertest.Scenarios()[0].Reading)
			if !errors.Is(err, classifier.ErrModelUnavailable) {
				t.Fatalf("expected ErrModelUnavailable, got %v", err)
			}
			if c.Loaded() {
				t.Fatal("classifier should not be loaded")
			}
		})
	}
}

func TestModelsValidate(t *testing.T) {
	narrowOrganic := ml.NewGaussianNB()
	if err := narrowOrganic.Train([][]float64{{0.1, 0.2}, {0.2, 0.1}, {0.8, 0.9}, {0.9, 0.8}}, []int{0, 0, 1, 1}); err != nil {
		t.Fatal(err)
	}
	twoLabels, err := classifier.NewLabelDecoder(classifier.Apple, classifier.Banana)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]struct {
		mutate func(m *classifier.Models)
		want   string
	}{
		"valid":               {mutate: func(*classifier.Models) {}},
		"two labels":          {mutate: func(m *classifier.Models) { m.Labels = twoLabels }, want: "label decoder"},
		"narrow organic":      {mutate: func(m *classifier.Models) { m.Organic[classifier.Banana] = narrowOrganic }, want: "features"},
		"missing organic":     {mutate: func(m *classifier.Models) { m.Organic[classifier.Apple] = nil }, want: "no organic model"},
		"organic three-class": {mutate: func(m *classifier.Models) { m.Organic[classifier.Tomato] = m.Fruit }, want: "expected 2"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			models := classifiertest.Models(t)
			tt.mutate(models)
			err := models.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
