package classifier

import (
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"organicscan/ml"
	"organicscan/spectral"
)

const confidencePlaces = 4

// PredictionResult is the outcome of one successful prediction. The two
// confidences come from independent models; their product is not a joint
// probability.
type PredictionResult struct {
	Fruit             Fruit         `json:"fruit"`
	OrganicStatus     OrganicStatus `json:"organic_status"`
	FruitConfidence   float64       `json:"fruit_confidence"`
	OrganicConfidence float64       `json:"organic_confidence"`
}

// Predictor is anything that turns a validated reading into a result.
type Predictor interface {
	Predict(reading spectral.Reading) (PredictionResult, error)
}

// Classifier runs the two-stage pipeline. Models are loaded lazily from the
// store on first use, published once and never mutated afterwards, so
// Predict is safe for concurrent use without holding locks during
// inference.
type Classifier struct {
	store  ModelStore
	logger *zap.Logger

	loadMu sync.Mutex
	models atomic.Pointer[Models]
}

func New(store ModelStore, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{store: store, logger: logger.Named("classifier")}
}

// NewWithModels returns a classifier that is already loaded.
func NewWithModels(models *Models, logger *zap.Logger) (*Classifier, error) {
	if err := models.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	c := New(nil, logger)
	c.models.Store(models)
	return c, nil
}

// Loaded reports whether a model set has been published.
func (c *Classifier) Loaded() bool {
	return c.models.Load() != nil
}

// Warm forces the lazy load.
func (c *Classifier) Warm() error {
	_, err := c.ensureModels()
	return err
}

func (c *Classifier) ensureModels() (*Models, error) {
	if m := c.models.Load(); m != nil {
		return m, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if m := c.models.Load(); m != nil {
		return m, nil
	}
	if c.store == nil {
		return nil, fmt.Errorf("%w: no model store configured", ErrModelUnavailable)
	}

	m, err := c.store.Load()
	if err == nil {
		err = m.Validate()
	}
	if err != nil {
		c.logger.Warn("model load failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	c.models.Store(m)
	c.logger.Info("models loaded",
		zap.Stringers("fruits", m.Labels.Classes()),
		zap.Any("model_types", m.describe()),
	)
	return m, nil
}

// Predict classifies the fruit, then asks that fruit's organic model. It
// either returns a complete result or an error wrapping
// ErrModelUnavailable or ErrPredictionFailed.
func (c *Classifier) Predict(reading spectral.Reading) (result PredictionResult, err error) {
	models, err := c.ensureModels()
	if err != nil {
		return PredictionResult{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("inference panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			result = PredictionResult{}
			err = fmt.Errorf("%w: internal error", ErrPredictionFailed)
		}
	}()

	features := reading.Values()

	fruitIdx, fruitProb, err := classify(models.Fruit, features, models.Labels.Len())
	if err != nil {
		return PredictionResult{}, fmt.Errorf("%w: fruit stage: %v", ErrPredictionFailed, err)
	}
	fruit, err := models.Labels.Decode(fruitIdx)
	if err != nil {
		return PredictionResult{}, fmt.Errorf("%w: fruit stage: %v", ErrPredictionFailed, err)
	}

	organicModel := models.Organic[fruit]
	if organicModel == nil {
		return PredictionResult{}, fmt.Errorf("%w: no organic model for %s", ErrModelUnavailable, fruit)
	}
	organicIdx, organicProb, err := classify(organicModel, features, 2)
	if err != nil {
		return PredictionResult{}, fmt.Errorf("%w: organic stage for %s: %v", ErrPredictionFailed, fruit, err)
	}

	return PredictionResult{
		Fruit:             fruit,
		OrganicStatus:     OrganicStatus(organicIdx),
		FruitConfidence:   roundConfidence(fruitProb),
		OrganicConfidence: roundConfidence(organicProb),
	}, nil
}

// classify runs one model and picks its class; ties go to the lowest
// class index (see ml.Argmax).
func classify(model ml.MLModel, features []float64, classes int) (int, float64, error) {
	probs, err := model.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	if len(probs) != classes {
		return 0, 0, fmt.Errorf("model returned %d probabilities, expected %d", len(probs), classes)
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return 0, 0, fmt.Errorf("probability %d is %v", i, p)
		}
	}
	idx, err := ml.Argmax(probs)
	if err != nil {
		return 0, 0, err
	}
	return idx, probs[idx], nil
}

func roundConfidence(p float64) float64 {
	f, _ := decimal.NewFromFloat(p).Round(confidencePlaces).Float64()
	return f
}

// IsModelUnavailable reports whether err means the models could not be
// loaded.
func IsModelUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}
