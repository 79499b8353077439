package classifier

import (
	"errors"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"organicscan/spectral"
)

// CachingPredictor memoises successful predictions per reading. Prediction
// is a pure function of the reading once models are loaded, so a cached
// result is always identical to a fresh one. Failures are never cached.
type CachingPredictor struct {
	next  Predictor
	cache *lru.Cache[spectral.Reading, PredictionResult]

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewCachingPredictor(next Predictor, size int) (*CachingPredictor, error) {
	if next == nil {
		return nil, errors.New("nil predictor")
	}
	cache, err := lru.New[spectral.Reading, PredictionResult](size)
	if err != nil {
		return nil, err
	}
	return &CachingPredictor{next: next, cache: cache}, nil
}

func (p *CachingPredictor) Predict(reading spectral.Reading) (PredictionResult, error) {
	if result, ok := p.cache.Get(reading); ok {
		p.hits.Add(1)
		return result, nil
	}
	p.misses.Add(1)

	result, err := p.next.Predict(reading)
	if err != nil {
		return PredictionResult{}, err
	}
	p.cache.Add(reading, result)
	return result, nil
}

func (p *CachingPredictor) Hits() uint64   { return p.hits.Load() }
func (p *CachingPredictor) Misses() uint64 { return p.misses.Load() }
func (p *CachingPredictor) Len() int       { return p.cache.Len() }
