// Package spectral validates raw optical reflectance readings before they
// reach any model.
package spectral

import "fmt"

// ChannelCount is the number of reflectance channels (F1..F8) per reading.
const ChannelCount = 8

// FieldName is the request field carrying the reading.
const FieldName = "spectral_values"

// Reading is a validated 8-channel reflectance vector. It is an array so a
// copy can never alias the caller's data.
type Reading [ChannelCount]float64

// Values returns the reading as a freshly allocated slice.
func (r Reading) Values() []float64 {
	out := make([]float64, ChannelCount)
	copy(out, r[:])
	return out
}

// ChannelNames returns F1..F8.
func ChannelNames() []string {
	names := make([]string, ChannelCount)
	for i := range names {
		names[i] = fmt.Sprintf("F%d", i+1)
	}
	return names
}

// Anomaly flags a channel whose value lies outside the nominal [0,1] range.
// It never blocks prediction.
type Anomaly struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

func (a Anomaly) String() string {
	return fmt.Sprintf("value %g at index %d is outside the nominal range [0, 1]", a.Value, a.Index)
}

// Validation is the outcome of a successful validation.
type Validation struct {
	Reading   Reading
	Anomalies []Anomaly
}
