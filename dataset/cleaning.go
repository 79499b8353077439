package dataset

import (
	"errors"
	"fmt"
	"sync"

	"organicscan/spectral"
)

// Rule inspects one sample before training. It returns the sample, possibly
// corrected, or an error to reject it.
type Rule interface {
	Name() string
	Apply(Sample) (Sample, error)
}

// Issue records a sample rejected by a rule.
type Issue struct {
	Rule     string `json:"rule"`
	SampleID string `json:"sample_id"`
	Message  string `json:"message"`
}

type CleaningStats struct {
	Processed int            `json:"processed"`
	Passed    int            `json:"passed"`
	Rejected  int            `json:"rejected"`
	Corrected int            `json:"corrected"`
	Issues    map[string]int `json:"issues"`
}

// Cleaner runs every rule over imported samples. Generated samples already
// satisfy the default rules.
type Cleaner struct {
	rules []Rule
}

// NewCleaner uses the given rules, or the default set when none are given:
// a sample id check, range clipping and duplicate detection.
func NewCleaner(rules ...Rule) *Cleaner {
	if len(rules) == 0 {
		rules = []Rule{IDRule{}, RangeRule{}, NewDuplicateRule()}
	}
	return &Cleaner{rules: rules}
}

// Clean keeps the samples every rule accepts. A sample is rejected by the
// first rule that fails; later rules do not see it.
func (c *Cleaner) Clean(samples []Sample) ([]Sample, []Issue, CleaningStats) {
	stats := CleaningStats{Issues: make(map[string]int)}
	var cleaned []Sample
	var issues []Issue

	for _, original := range samples {
		stats.Processed++
		sample := original
		var rejected bool
		for _, rule := range c.rules {
			next, err := rule.Apply(sample)
			if err != nil {
				issues = append(issues, Issue{Rule: rule.Name(), SampleID: sample.ID, Message: err.Error()})
				stats.Issues[rule.Name()]++
				rejected = true
				break
			}
			sample = next
		}
		if rejected {
			stats.Rejected++
			continue
		}
		if sample != original {
			stats.Corrected++
		}
		stats.Passed++
		cleaned = append(cleaned, sample)
	}
	return cleaned, issues, stats
}

// IDRule rejects samples without an id.
type IDRule struct{}

func (IDRule) Name() string { return "sample_id" }

func (IDRule) Apply(s Sample) (Sample, error) {
	if s.ID == "" {
		return s, errors.New("sample id is empty")
	}
	return s, nil
}

// RangeRule clips channel values into [0,1], the range the generator
// produces. Non-finite values are rejected.
type RangeRule struct{}

func (RangeRule) Name() string { return "range" }

func (RangeRule) Apply(s Sample) (Sample, error) {
	if _, err := spectral.FromFloats(s.Values.Values()); err != nil {
		return s, err
	}
	for i, v := range s.Values {
		s.Values[i] = clip(v)
	}
	return s, nil
}

// DuplicateRule rejects a sample whose id it has already seen. It remembers
// ids across Clean calls.
type DuplicateRule struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDuplicateRule() *DuplicateRule {
	return &DuplicateRule{seen: make(map[string]struct{})}
}

func (r *DuplicateRule) Name() string { return "duplicate" }

func (r *DuplicateRule) Apply(s Sample) (Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[s.ID]; ok {
		return s, fmt.Errorf("duplicate sample %s", s.ID)
	}
	r.seen[s.ID] = struct{}{}
	return s, nil
}
