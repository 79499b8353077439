// Package dataset produces the synthetic spectral training set and reads
// and writes it as CSV.
package dataset

import (
	"fmt"
	"math/rand"

	"organicscan/classifier"
	"organicscan/spectral"
)

// Sample is one labelled reading.
type Sample struct {
	ID      string
	Values  spectral.Reading
	Fruit   classifier.Fruit
	Organic bool
}

func (s Sample) Status() classifier.OrganicStatus {
	if s.Organic {
		return classifier.Organic
	}
	return classifier.NonOrganic
}

// Base reflectance of non-organic produce per fruit, channels F1..F8.
var signatures = [classifier.NumFruits]spectral.Reading{
	classifier.Apple:  {0.45, 0.52, 0.58, 0.62, 0.55, 0.48, 0.42, 0.38},
	classifier.Banana: {0.72, 0.78, 0.82, 0.85, 0.80, 0.75, 0.68, 0.62},
	classifier.Tomato: {0.68, 0.42, 0.35, 0.38, 0.45, 0.52, 0.48, 0.44},
}

// Shift added to the base signature for organic produce.
var organicShifts = [classifier.NumFruits]spectral.Reading{
	classifier.Apple:  {0.02, 0.03, 0.025, 0.02, 0.015, 0.02, 0.025, 0.03},
	classifier.Banana: {0.015, 0.02, 0.025, 0.03, 0.025, 0.02, 0.015, 0.01},
	classifier.Tomato: {0.025, 0.02, 0.015, 0.02, 0.025, 0.03, 0.028, 0.022},
}

func Signature(f classifier.Fruit) spectral.Reading {
	return signatures[f]
}

func OrganicShift(f classifier.Fruit) spectral.Reading {
	return organicShifts[f]
}

// Centroid is the noise-free reading of a fruit in the given state.
func Centroid(f classifier.Fruit, organic bool) spectral.Reading {
	r := signatures[f]
	if organic {
		for i := range r {
			r[i] += organicShifts[f][i]
		}
	}
	return r
}

type Config struct {
	SamplesPerCategory int
	Seed               int64
	NoiseStdDev        float64
}

func DefaultConfig() Config {
	return Config{SamplesPerCategory: 200, Seed: 42, NoiseStdDev: 0.025}
}

// Generate draws SamplesPerCategory readings for every fruit and organic
// state: centroid plus gaussian noise, clipped to [0,1] and rounded to six
// places, then shuffled. The same config always yields the same samples.
func Generate(cfg Config) ([]Sample, error) {
	if cfg.SamplesPerCategory <= 0 {
		return nil, fmt.Errorf("samples per category must be positive, got %d", cfg.SamplesPerCategory)
	}
	if cfg.NoiseStdDev < 0 {
		return nil, fmt.Errorf("noise stddev must not be negative, got %g", cfg.NoiseStdDev)
	}

	rnd := rand.New(rand.NewSource(cfg.Seed))
	samples := make([]Sample, 0, cfg.SamplesPerCategory*2*classifier.NumFruits)
	for _, fruit := range classifier.Fruits() {
		for _, organic := range []bool{false, true} {
			centroid := Centroid(fruit, organic)
			tag := "NonOrg"
			if organic {
				tag = "Org"
			}
			for n := 0; n < cfg.SamplesPerCategory; n++ {
				var values spectral.Reading
				for i, base := range centroid {
					values[i] = round6(clip(base + rnd.NormFloat64()*cfg.NoiseStdDev))
				}
				samples = append(samples, Sample{
					ID:      fmt.Sprintf("%s_%s_%03d", fruit, tag, n),
					Values:  values,
					Fruit:   fruit,
					Organic: organic,
				})
			}
		}
	}

	rnd.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })
	return samples, nil
}

// Counts tallies samples per fruit and organic state.
func Counts(samples []Sample) map[classifier.Fruit][2]int {
	counts := make(map[classifier.Fruit][2]int)
	for _, s := range samples {
		c := counts[s.Fruit]
		c[s.Status()]++
		counts[s.Fruit] = c
	}
	return counts
}
