// Package classifier is the two-stage prediction engine: a fruit-type model
// followed by the organic model trained for that fruit.
package classifier

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fruit is the closed set of fruits the engine recognises. The numeric
// order is the fixed class ordering used for tie-breaks.
type Fruit int

const (
	Apple Fruit = iota
	Banana
	Tomato
)

const NumFruits = 3

var fruitNames = [NumFruits]string{"Apple", "Banana", "Tomato"}

// Fruits returns every fruit in class order.
func Fruits() []Fruit {
	return []Fruit{Apple, Banana, Tomato}
}

func FruitNames() []string {
	return append([]string(nil), fruitNames[:]...)
}

func (f Fruit) Valid() bool {
	return f >= 0 && int(f) < NumFruits
}

func (f Fruit) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Fruit(%d)", int(f))
	}
	return fruitNames[f]
}

// ParseFruit accepts any casing and surrounding whitespace ("apple",
// " BANANA ").
func ParseFruit(s string) (Fruit, error) {
	name := cases.Title(language.English).String(strings.TrimSpace(s))
	for i, candidate := range fruitNames {
		if candidate == name {
			return Fruit(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fruit %q", s)
}

func (f Fruit) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid fruit %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Fruit) UnmarshalText(text []byte) error {
	parsed, err := ParseFruit(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// OrganicStatus is the output of the binary organic models. Class 1 of
// every organic model means Organic.
type OrganicStatus int

const (
	NonOrganic OrganicStatus = iota
	Organic
)

func (s OrganicStatus) String() string {
	switch s {
	case NonOrganic:
		return "Non-Organic"
	case Organic:
		return "Organic"
	default:
		return fmt.Sprintf("OrganicStatus(%d)", int(s))
	}
}

func ParseOrganicStatus(s string) (OrganicStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "organic":
		return Organic, nil
	case "non-organic", "nonorganic", "non organic":
		return NonOrganic, nil
	default:
		return 0, fmt.Errorf("unknown organic status %q", s)
	}
}

func (s OrganicStatus) MarshalText() ([]byte, error) {
	if s != NonOrganic && s != Organic {
		return nil, fmt.Errorf("invalid organic status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *OrganicStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrganicStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
