package classifier_test

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"organicscan/classifier"
	"organicscan/classifier/classifiertest"
	"organicscan/ml"
	"organicscan/spectral"
)

func newLoaded(t *testing.T) *classifier.Classifier {
	t.Helper()
	c, err := classifier.NewWithModels(classifiertest.Models(t), nil)
	if err != nil {
		t.Fatalf("NewWithModels: %v", err)
	}
	return c
}

func TestPredictScenarios(t *testing.T) {
	c := newLoaded(t)
	for _, sc := range classifiertest.Scenarios() {
		t.Run(sc.Name, func(t *testing.T) {
			result, err := c.Predict(sc.Reading)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Fruit != sc.Fruit {
				t.Errorf("expected fruit %s, got %s", sc.Fruit, result.Fruit)
			}
			if result.OrganicStatus != sc.Status {
				t.Errorf("expected status %s, got %s", sc.Status, result.OrganicStatus)
			}
		})
	}
}

func TestPredictIsIdempotent(t *testing.T) {
	c := newLoaded(t)
	reading := classifiertest.Scenarios()[0].Reading
	first, err := c.Predict(reading)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := c.Predict(reading)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("prediction changed: %+v vs %+v", first, again)
		}
	}
}

func TestPredictResultIsAlwaysWellFormed(t *testing.T) {
	c := newLoaded(t)
	rnd := rand.New(rand.NewSource(3))
	for n := 0; n < 200; n++ {
		var r spectral.Reading
		for i := range r {
			r[i] = rnd.Float64()
		}
		result, err := c.Predict(r)
		if err != nil {
			t.Fatalf("reading %v: unexpected error: %v", r, err)
		}
		if !result.Fruit.Valid() {
			t.Fatalf("invalid fruit %d", result.Fruit)
		}
		if result.OrganicStatus != classifier.Organic && result.OrganicStatus != classifier.NonOrganic {
			t.Fatalf("invalid status %d", result.OrganicStatus)
		}
		for _, conf := range []float64{result.FruitConfidence, result.OrganicConfidence} {
			if conf < 0 || conf > 1 {
				t.Fatalf("confidence %f outside [0,1]", conf)
			}
			if math.Round(conf*1e4)/1e4 != conf {
				t.Fatalf("confidence %v has more than four decimals", conf)
			}
		}
		if result.FruitConfidence < 0.3333 {
			t.Fatalf("winning fruit confidence %f below 1/3", result.FruitConfidence)
		}
		if result.OrganicConfidence < 0.5 {
			t.Fatalf("winning organic confidence %f below 1/2", result.OrganicConfidence)
		}
	}
}

func TestPredictWithoutModels(t *testing.T) {
	dir := t.TempDir()
	c := classifier.New(classifier.NewFileStore(dir), nil)

	_, err := c.Predict(classifiertest.Scenarios()[0].Reading)
	if !errors.Is(err, classifier.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if !classifier.IsModelUnavailable(err) {
		t.Fatal("IsModelUnavailable should report true")
	}
	if c.Loaded() {
		t.Fatal("classifier should not be loaded")
	}

	// The failure is not sticky: once artifacts exist the next call loads them.
	classifiertest.SaveModels(t, dir)
	result, err := c.Predict(classifiertest.Scenarios()[0].Reading)
	if err != nil {
		t.Fatalf("expected load to succeed after save, got %v", err)
	}
	if result.Fruit != classifier.Apple {
		t.Fatalf("expected Apple, got %s", result.Fruit)
	}
	if !c.Loaded() {
		t.Fatal("classifier should be loaded")
	}
}

func TestNilStore(t *testing.T) {
	c := classifier.New(nil, nil)
	if err := c.Warm(); !errors.Is(err, classifier.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

type countingStore struct {
	models *classifier.Models
	calls  atomic.Int32
}

func (s *countingStore) Load() (*classifier.Models, error) {
	s.calls.Add(1)
	time.Sleep(20 * time.Millisecond)
	return s.models, nil
}

func TestConcurrentFirstUseLoadsOnce(t *testing.T) {
	store := &countingStore{models: classifiertest.Models(t)}
	c := classifier.New(store, nil)

	reading := classifiertest.Scenarios()[1].Reading
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	results := make(chan classifier.PredictionResult, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := c.Predict(reading)
			if err != nil {
				errs <- err
				return
			}
			results <- result
		}()
	}
	wg.Wait()
	close(errs)
	close(results)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	var first *classifier.PredictionResult
	for r := range results {
		if first == nil {
			first = &r
			continue
		}
		if r != *first {
			t.Fatalf("concurrent results differ: %+v vs %+v", *first, r)
		}
	}
	if got := store.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
}

type stubModel struct {
	probs []float64
	err   error
	panic bool
}

func (m *stubModel) Type() string                   { return "stub" }
func (m *stubModel) Train([][]float64, []int) error { return nil }
func (m *stubModel) NumClasses() int                { return len(m.probs) }
func (m *stubModel) NumFeatures() int               { return spectral.ChannelCount }
func (m *stubModel) Save(string) error              { return nil }
func (m *stubModel) Load(string) error              { return nil }

func (m *stubModel) PredictProba([]float64) ([]float64, error) {
	if m.panic {
		panic("boom")
	}
	if m.err != nil {
		return nil, m.err
	}
	return append([]float64(nil), m.probs...), nil
}

func stubModels(t *testing.T, fruit ml.MLModel, organic ml.MLModel) *classifier.Models {
	t.Helper()
	labels, err := classifier.NewLabelDecoder(classifier.Fruits()...)
	if err != nil {
		t.Fatal(err)
	}
	m := &classifier.Models{Fruit: fruit, Labels: labels}
	for _, f := range classifier.Fruits() {
		m.Organic[f] = organic
	}
	return m
}

func TestTiesResolveToLowestClass(t *testing.T) {
	models := stubModels(t,
		&stubModel{probs: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}},
		&stubModel{probs: []float64{0.5, 0.5}},
	)
	c, err := classifier.NewWithModels(models, nil)
	if err != nil {
		t.Fatal(err)
	}
	result, err := c.Predict(spectral.Reading{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := classifier.PredictionResult{
		Fruit:             classifier.Apple,
		OrganicStatus:     classifier.NonOrganic,
		FruitConfidence:   0.3333,
		OrganicConfidence: 0.5,
	}
	if result != want {
		t.Fatalf("expected %+v, got %+v", want, result)
	}
}

func TestPredictionFailures(t *testing.T) {
	good := &stubModel{probs: []float64{0.2, 0.7, 0.1}}
	tests := map[string]*classifier.Models{
		"panic":         stubModels(t, &stubModel{probs: []float64{0, 0, 0}, panic: true}, &stubModel{probs: []float64{1, 0}}),
		"model error":   stubModels(t, &stubModel{probs: []float64{0, 0, 0}, err: errors.New("bad input")}, &stubModel{probs: []float64{1, 0}}),
		"organic panic": stubModels(t, good, &stubModel{probs: []float64{1, 0}, panic: true}),
		"nan":           stubModels(t, &stubModel{probs: []float64{math.NaN(), 0.5, 0.5}}, &stubModel{probs: []float64{1, 0}}),
		"above one":     stubModels(t, good, &stubModel{probs: []float64{1.5, 0}}),
	}
	for name, models := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := classifier.NewWithModels(models, nil)
			if err != nil {
				t.Fatal(err)
			}
			result, err := c.Predict(spectral.Reading{})
			if !errors.Is(err, classifier.ErrPredictionFailed) {
				t.Fatalf("expected ErrPredictionFailed, got %v", err)
			}
			if result != (classifier.PredictionResult{}) {
				t.Fatalf("expected zero result, got %+v", result)
			}
		})
	}
}

func TestNewWithModelsRejectsIncompleteSet(t *testing.T) {
	models := classifiertest.Models(t)
	models.Organic[classifier.Tomato] = nil
	if _, err := classifier.NewWithModels(models, nil); !errors.Is(err, classifier.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}
