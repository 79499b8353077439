package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
)

// LabelDecoder maps fruit-model class indices to fruits. It is immutable
// once built.
type LabelDecoder struct {
	classes []Fruit
}

type labelDecoderJSON struct {
	Classes []string `json:"classes"`
}

func NewLabelDecoder(fruits ...Fruit) (*LabelDecoder, error) {
	d := &LabelDecoder{}
	if err := d.set(fruits); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *LabelDecoder) set(fruits []Fruit) error {
	if len(fruits) == 0 {
		return errors.New("label decoder has no classes")
	}
	seen := make(map[Fruit]bool, len(fruits))
	for i, f := range fruits {
		if !f.Valid() {
			return fmt.Errorf("class %d is not a known fruit", i)
		}
		if seen[f] {
			return fmt.Errorf("fruit %s appears twice", f)
		}
		seen[f] = true
	}
	d.classes = append([]Fruit(nil), fruits...)
	return nil
}

func (d *LabelDecoder) Len() int { return len(d.classes) }

func (d *LabelDecoder) Classes() []Fruit {
	return append([]Fruit(nil), d.classes...)
}

func (d *LabelDecoder) Decode(idx int) (Fruit, error) {
	if idx < 0 || idx >= len(d.classes) {
		return 0, fmt.Errorf("class index %d outside decoder range [0, %d)", idx, len(d.classes))
	}
	return d.classes[idx], nil
}

func (d *LabelDecoder) Encode(f Fruit) (int, error) {
	for i, c := range d.classes {
		if c == f {
			return i, nil
		}
	}
	return 0, fmt.Errorf("fruit %s is not in the decoder", f)
}

func (d *LabelDecoder) MarshalJSON() ([]byte, error) {
	names := make([]string, len(d.classes))
	for i, f := range d.classes {
		names[i] = f.String()
	}
	return json.Marshal(labelDecoderJSON{Classes: names})
}

func (d *LabelDecoder) UnmarshalJSON(data []byte) error {
	var payload labelDecoderJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	fruits := make([]Fruit, len(payload.Classes))
	for i, name := range payload.Classes {
		f, err := ParseFruit(name)
		if err != nil {
			return fmt.Errorf("class %d: %w", i, err)
		}
		fruits[i] = f
	}
	return d.set(fruits)
}
