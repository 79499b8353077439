package classifier

import (
	"errors"
	"fmt"

	"organicscan/ml"
	"organicscan/spectral"
)

// Models is the full set of trained artifacts the engine needs. Organic is
// indexed by Fruit, so a missing entry can only be a nil slot, which
// Validate rejects before the set is ever used.
type Models struct {
	Fruit   ml.MLModel
	Labels  *LabelDecoder
	Organic [NumFruits]ml.MLModel
}

func (m *Models) Validate() error {
	if m == nil {
		return errors.New("no models")
	}
	if m.Fruit == nil {
		return errors.New("fruit model missing")
	}
	if m.Labels == nil {
		return errors.New("label decoder missing")
	}
	if m.Labels.Len() != NumFruits {
		return fmt.Errorf("label decoder has %d classes, expected %d", m.Labels.Len(), NumFruits)
	}
	if m.Labels.Len() != m.Fruit.NumClasses() {
		return fmt.Errorf("label decoder has %d classes, fruit model has %d", m.Labels.Len(), m.Fruit.NumClasses())
	}
	if n := m.Fruit.NumFeatures(); n != spectral.ChannelCount {
		return fmt.Errorf("fruit model expects %d features, readings have %d", n, spectral.ChannelCount)
	}
	for _, f := range Fruits() {
		model := m.Organic[f]
		if model == nil {
			return fmt.Errorf("no organic model for fruit %s", f)
		}
		if model.NumClasses() != 2 {
			return fmt.Errorf("organic model for %s has %d classes, expected 2", f, model.NumClasses())
		}
		if n := model.NumFeatures(); n != spectral.ChannelCount {
			return fmt.Errorf("organic model for %s expects %d features, readings have %d", f, n, spectral.ChannelCount)
		}
	}
	return nil
}

func (m *Models) describe() map[string]string {
	out := map[string]string{"fruit": m.Fruit.Type()}
	for _, f := range Fruits() {
		out[f.String()] = m.Organic[f].Type()
	}
	return out
}
